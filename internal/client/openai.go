package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/audio"
	"github.com/windfall/poplingo_service/internal/errors"
)

// openAIVoices maps the prebuilt voice names used across the service onto
// OpenAI's TTS voices.
var openAIVoices = map[string]openai.SpeechVoice{
	"Puck":   openai.VoiceAlloy,
	"Charon": openai.VoiceOnyx,
	"Kore":   openai.VoiceNova,
	"Fenrir": openai.VoiceEcho,
	"Zephyr": openai.VoiceShimmer,
}

// OpenAIClient wraps the OpenAI API client.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	imageModel  string
	speechModel openai.SpeechModel
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return newOpenAIClient(openai.NewClient(apiKey))
}

// NewAzureOpenAIClient creates a client for an Azure OpenAI resource. Model
// names are used as deployment names.
func NewAzureOpenAIClient(apiKey, endpoint string) *OpenAIClient {
	return newOpenAIClient(openai.NewClientWithConfig(openai.DefaultAzureConfig(apiKey, endpoint)))
}

func newOpenAIClient(client *openai.Client) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		model:       openai.GPT4oMini,
		imageModel:  openai.CreateImageModelDallE3,
		speechModel: openai.TTSModel1,
	}
}

// WithModel sets the chat model to use.
func (c *OpenAIClient) WithModel(model string) *OpenAIClient {
	if model != "" {
		c.model = model
	}
	return c
}

// Name identifies the provider in logs and metrics.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// GenerateText returns the model's reply to prompt.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt, nil)
}

// GenerateJSON requests a JSON object and unmarshals it into target. The
// schema is passed to the model as part of the instructions.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	if schema != nil {
		raw, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		prompt = fmt.Sprintf("%s\n\nRespond only with a JSON object matching this schema:\n%s", prompt, raw)
	}

	text, err := c.chat(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return err
	}

	cleaned := cleanJSONBlock(text)
	if cleaned == "" {
		return errors.New(errors.ErrAIService, "empty response from openai")
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return errors.Wrap(errors.ErrAIService, "invalid JSON from openai", err)
	}
	return nil
}

func (c *OpenAIClient) chat(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamText streams the reply to prompt chunk by chunk.
func (c *OpenAIClient) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}

		if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
			if err := onChunk(response.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}
}

// GenerateImage creates one square PNG for prompt.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAIService, "invalid image data from openai", err)
	}
	return &Image{Data: data, MIMEType: "image/png"}, nil
}

// Synthesize reads text aloud. OpenAI's pcm format is 24kHz 16-bit mono.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	v, ok := openAIVoices[voice]
	if !ok {
		v = openai.VoiceAlloy
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          v,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, fmt.Errorf("openai create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrAIService, "no audio in openai response")
	}

	return &Speech{
		Data:       data,
		MIMEType:   fmt.Sprintf("audio/L16;codec=pcm;rate=%d", audio.DefaultSampleRate),
		SampleRate: audio.DefaultSampleRate,
	}, nil
}
