package client

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/windfall/poplingo_service/internal/errors"
)

const gcsPublicHost = "https://storage.googleapis.com"

// StorageClient stores generated media in a Google Cloud Storage bucket.
type StorageClient struct {
	client     *storage.Client
	bucketName string
}

// NewStorageClient creates a GCS media store using application default
// credentials.
func NewStorageClient(ctx context.Context, bucketName string) (*StorageClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs: bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &StorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Close closes the client.
func (c *StorageClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// UploadObject writes data under key and returns its public HTTPS URL.
func (c *StorageClient) UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := c.client.Bucket(c.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = mediaCacheControl

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", errors.Wrap(errors.ErrStorageService, "failed to write object", err)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(errors.ErrStorageService, "failed to upload object", err)
	}

	return publicObjectURL(gcsPublicHost+"/"+c.bucketName, key)
}
