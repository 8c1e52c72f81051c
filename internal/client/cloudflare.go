package client

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/windfall/poplingo_service/internal/errors"
)

// CloudflareClient stores generated media in a Cloudflare R2 bucket through
// the S3 API. Objects are served from publicURL, not from the S3 endpoint.
type CloudflareClient struct {
	s3     *s3.Client
	bucket string
	public string
}

// NewCloudflareClient creates an R2 media store. Every argument is required.
func NewCloudflareClient(ctx context.Context, accessKeyID, secretKey, endpoint, bucketName, publicURL string) (*CloudflareClient, error) {
	for name, v := range map[string]string{
		"access key id": accessKeyID,
		"secret key":    secretKey,
		"endpoint":      endpoint,
		"bucket":        bucketName,
		"public url":    publicURL,
	} {
		if v == "" {
			return nil, fmt.Errorf("cloudflare r2: %s is required", name)
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &CloudflareClient{
		s3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}),
		bucket: bucketName,
		public: publicURL,
	}, nil
}

// UploadObject puts data under key and returns its public URL.
func (c *CloudflareClient) UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(mediaCacheControl),
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrStorageService, "failed to upload to R2", err)
	}

	return publicObjectURL(c.public, key)
}
