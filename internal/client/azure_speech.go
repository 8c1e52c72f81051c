package client

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/windfall/poplingo_service/internal/errors"
)

const azureOutputFormat = "raw-24khz-16bit-mono-pcm"

// azureVoices maps the prebuilt voice names used across the service onto
// Azure multilingual neural voices.
var azureVoices = map[string]string{
	"Puck":   "en-US-AndrewMultilingualNeural",
	"Charon": "en-US-BrianMultilingualNeural",
	"Kore":   "en-US-AvaMultilingualNeural",
	"Fenrir": "en-US-DavisMultilingualNeural",
	"Zephyr": "en-US-EmmaMultilingualNeural",
}

// AzureSpeechClient wraps the Azure AI Speech text-to-speech REST API.
type AzureSpeechClient struct {
	apiKey string
	region string
	client *resty.Client
}

// NewAzureSpeechClient creates a new Azure Speech client.
func NewAzureSpeechClient(apiKey, region string) *AzureSpeechClient {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("https://%s.tts.speech.microsoft.com", region)).
		SetTimeout(30 * time.Second)

	return &AzureSpeechClient{
		apiKey: apiKey,
		region: region,
		client: client,
	}
}

// WithBaseURL points the client at a different host.
func (c *AzureSpeechClient) WithBaseURL(baseURL string) *AzureSpeechClient {
	c.client.SetBaseURL(baseURL)
	return c
}

// Name identifies the provider in logs and metrics.
func (c *AzureSpeechClient) Name() string {
	return "azure"
}

// Synthesize reads text aloud and returns raw 24kHz mono PCM.
func (c *AzureSpeechClient) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	if c.apiKey == "" || c.region == "" {
		return nil, errors.New(errors.ErrAIService, "Azure Speech credentials not configured")
	}

	voiceName, ok := azureVoices[voice]
	if !ok {
		voiceName = azureVoices["Puck"]
	}

	ssml, err := buildSSML(text, voiceName)
	if err != nil {
		return nil, err
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Ocp-Apim-Subscription-Key", c.apiKey).
		SetHeader("Content-Type", "application/ssml+xml").
		SetHeader("X-Microsoft-OutputFormat", azureOutputFormat).
		SetHeader("User-Agent", "poplingo_service").
		SetBody(ssml).
		Post("/cognitiveservices/v1")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("azure speech api error %d: %s", res.StatusCode(), string(res.Body()))
	}
	if len(res.Body()) == 0 {
		return nil, errors.New(errors.ErrAIService, "no audio in azure response")
	}

	return &Speech{
		Data:       res.Body(),
		MIMEType:   "audio/L16;codec=pcm;rate=24000",
		SampleRate: 24000,
	}, nil
}

func buildSSML(text, voiceName string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("failed to escape text: %w", err)
	}

	ssml := fmt.Sprintf(
		`<speak version="1.0" xml:lang="en-US"><voice name="%s">%s</voice></speak>`,
		voiceName, escaped.String(),
	)
	return []byte(ssml), nil
}
