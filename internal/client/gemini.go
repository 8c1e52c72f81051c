package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/audio"
	"github.com/windfall/poplingo_service/internal/errors"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// GeminiClient wraps the Google Gen AI client. It serves text, image and
// speech generation from one connection.
type GeminiClient struct {
	client      *genai.Client
	textModel   string
	imageModel  string
	speechModel string
}

// NewGeminiClient creates a Gemini client on the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrAIService, "Gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiClient(client), nil
}

// NewGeminiVertexClient creates a Gemini client on Vertex AI. When
// serviceAccountPath is set it becomes the application default credential;
// an empty projectID is taken from the credentials.
func NewGeminiVertexClient(ctx context.Context, projectID, location, serviceAccountPath string) (*GeminiClient, error) {
	if serviceAccountPath != "" {
		if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", serviceAccountPath); err != nil {
			return nil, fmt.Errorf("failed to set GOOGLE_APPLICATION_CREDENTIALS: %w", err)
		}
	}

	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to find google credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, errors.New(errors.ErrAIService, "GCP project ID not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex gemini client: %w", err)
	}
	return newGeminiClient(client), nil
}

func newGeminiClient(client *genai.Client) *GeminiClient {
	return &GeminiClient{
		client:      client,
		textModel:   "gemini-3-flash-preview",
		imageModel:  "gemini-2.5-flash-image",
		speechModel: "gemini-2.5-flash-preview-tts",
	}
}

// WithModels overrides the text, image and speech models. Empty values keep
// the current model.
func (c *GeminiClient) WithModels(text, image, speech string) *GeminiClient {
	if text != "" {
		c.textModel = text
	}
	if image != "" {
		c.imageModel = image
	}
	if speech != "" {
		c.speechModel = speech
	}
	return c
}

// Name identifies the provider in logs and metrics.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// GenerateText returns the model's reply to prompt.
func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate text: %w", err)
	}
	return resp.Text(), nil
}

// GenerateJSON asks for JSON matching schema and unmarshals it into target.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, genai.Text(prompt), cfg)
	if err != nil {
		return fmt.Errorf("gemini generate json: %w", err)
	}

	cleaned := cleanJSONBlock(resp.Text())
	if cleaned == "" {
		return errors.New(errors.ErrAIService, "empty response from gemini")
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return errors.Wrap(errors.ErrAIService, "invalid JSON from gemini", err)
	}
	return nil
}

// StreamText streams the reply to prompt chunk by chunk.
func (c *GeminiClient) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.textModel, genai.Text(prompt), nil) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := onChunk(text); err != nil {
				return err
			}
		}
	}
	return nil
}

// GenerateImage returns the first image part of the response, or nil when
// the model answered without one.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate image: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil {
		return nil, nil
	}
	return &Image{Data: blob.Data, MIMEType: blob.MIMEType}, nil
}

// Synthesize reads text aloud with the named prebuilt voice.
func (c *GeminiClient) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.speechModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini synthesize: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, errors.New(errors.ErrAIService, "no audio in gemini response")
	}
	return &Speech{
		Data:       blob.Data,
		MIMEType:   blob.MIMEType,
		SampleRate: audio.SampleRateFromMIME(blob.MIMEType, audio.DefaultSampleRate),
	}, nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}
