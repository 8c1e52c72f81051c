package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	litegenai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/errors"
)

// GeminiLiteClient wraps the generative-ai-go client for the low-latency
// flash-lite text model. It has no image or speech support.
type GeminiLiteClient struct {
	client *litegenai.Client
	model  string
}

// NewGeminiLiteClient authenticates with apiKey, or with the service account
// file at credentialsPath when no key is given.
func NewGeminiLiteClient(ctx context.Context, apiKey, credentialsPath string) (*GeminiLiteClient, error) {
	var opt option.ClientOption
	switch {
	case apiKey != "":
		opt = option.WithAPIKey(apiKey)
	case credentialsPath != "":
		opt = option.WithCredentialsFile(credentialsPath)
	default:
		return nil, errors.New(errors.ErrAIService, "Gemini Lite credentials not configured")
	}

	client, err := litegenai.NewClient(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini lite client: %w", err)
	}

	return &GeminiLiteClient{
		client: client,
		model:  "gemini-2.5-flash-lite",
	}, nil
}

// WithModel sets the model to use.
func (c *GeminiLiteClient) WithModel(model string) *GeminiLiteClient {
	if model != "" {
		c.model = model
	}
	return c
}

// Close closes the client.
func (c *GeminiLiteClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Name identifies the provider in logs and metrics.
func (c *GeminiLiteClient) Name() string {
	return "gemini-lite"
}

// GenerateText returns the model's reply to prompt.
func (c *GeminiLiteClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, litegenai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini lite generate text: %w", err)
	}
	return liteResponseText(resp), nil
}

// GenerateJSON asks for JSON matching schema and unmarshals it into target.
func (c *GeminiLiteClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = toLiteSchema(schema)

	resp, err := model.GenerateContent(ctx, litegenai.Text(prompt))
	if err != nil {
		return fmt.Errorf("gemini lite generate json: %w", err)
	}

	cleaned := cleanJSONBlock(liteResponseText(resp))
	if cleaned == "" {
		return errors.New(errors.ErrAIService, "empty response from gemini lite")
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return errors.Wrap(errors.ErrAIService, "invalid JSON from gemini lite", err)
	}
	return nil
}

// StreamText streams the reply to prompt chunk by chunk.
func (c *GeminiLiteClient) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	model := c.client.GenerativeModel(c.model)
	iter := model.GenerateContentStream(ctx, litegenai.Text(prompt))

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini lite stream: %w", err)
		}
		if text := liteResponseText(resp); text != "" {
			if err := onChunk(text); err != nil {
				return err
			}
		}
	}
}

func liteResponseText(resp *litegenai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(litegenai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// toLiteSchema converts a google.golang.org/genai schema to the older
// generative-ai-go representation.
func toLiteSchema(s *genai.Schema) *litegenai.Schema {
	if s == nil {
		return nil
	}

	out := &litegenai.Schema{
		Type:        toLiteType(s.Type),
		Format:      s.Format,
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       toLiteSchema(s.Items),
	}
	if s.Nullable != nil {
		out.Nullable = *s.Nullable
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*litegenai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toLiteSchema(prop)
		}
	}
	return out
}

func toLiteType(t genai.Type) litegenai.Type {
	switch t {
	case genai.TypeString:
		return litegenai.TypeString
	case genai.TypeNumber:
		return litegenai.TypeNumber
	case genai.TypeInteger:
		return litegenai.TypeInteger
	case genai.TypeBoolean:
		return litegenai.TypeBoolean
	case genai.TypeArray:
		return litegenai.TypeArray
	case genai.TypeObject:
		return litegenai.TypeObject
	default:
		return litegenai.TypeUnspecified
	}
}
