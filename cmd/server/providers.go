package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/config"
	"github.com/windfall/poplingo_service/internal/service"
)

// providers holds the configured AI backends. A field left nil means the
// capability is off; it must stay an untyped nil so the services see it.
type providers struct {
	text   service.TextGenerator
	image  service.ImageGenerator
	speech service.SpeechSynthesizer
	close  []func()
}

type providerFactory struct {
	ctx    context.Context
	cfg    *config.Config
	gemini *client.GeminiClient
	openai *client.OpenAIClient
}

func buildProviders(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*providers, error) {
	f := &providerFactory{ctx: ctx, cfg: cfg}
	p := &providers{}

	switch cfg.TextProvider {
	case config.ProviderGemini:
		c, err := f.geminiClient()
		if err != nil {
			return nil, err
		}
		p.text = c
	case config.ProviderGeminiLite:
		c, err := client.NewGeminiLiteClient(ctx, cfg.GeminiAPIKey, cfg.GeminiSAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini lite client: %w", err)
		}
		p.text = c.WithModel(cfg.GeminiLiteModel)
		p.close = append(p.close, c.Close)
	case config.ProviderOpenAI:
		c, err := f.openAIClient()
		if err != nil {
			return nil, err
		}
		p.text = c
	}

	switch cfg.ImageProvider {
	case config.ProviderGemini:
		c, err := f.geminiClient()
		if err != nil {
			return nil, err
		}
		p.image = c
	case config.ProviderOpenAI:
		c, err := f.openAIClient()
		if err != nil {
			return nil, err
		}
		p.image = c
	}

	switch cfg.SpeechProvider {
	case config.ProviderGemini:
		c, err := f.geminiClient()
		if err != nil {
			return nil, err
		}
		p.speech = c
	case config.ProviderOpenAI:
		c, err := f.openAIClient()
		if err != nil {
			return nil, err
		}
		p.speech = c
	case config.ProviderAzure:
		if cfg.AzureAISpeechKey == "" || cfg.AzureServiceRegion == "" {
			return nil, fmt.Errorf("AZURE_AI_SPEECH_KEY and AZURE_SERVICE_REGION are required for the azure speech provider")
		}
		p.speech = client.NewAzureSpeechClient(cfg.AzureAISpeechKey, cfg.AzureServiceRegion)
	}

	log.Info().
		Str("text", cfg.TextProvider).
		Str("image", cfg.ImageProvider).
		Str("speech", cfg.SpeechProvider).
		Msg("AI providers initialized")
	return p, nil
}

func (f *providerFactory) geminiClient() (*client.GeminiClient, error) {
	if f.gemini != nil {
		return f.gemini, nil
	}

	var (
		c   *client.GeminiClient
		err error
	)
	if f.cfg.UsesVertex() {
		c, err = client.NewGeminiVertexClient(f.ctx, f.cfg.GCPProjectID, f.cfg.GCPLocation, f.cfg.GeminiSAPath)
	} else {
		if f.cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY or GCP_PROJECT_ID is required for the gemini provider")
		}
		c, err = client.NewGeminiClient(f.ctx, f.cfg.GeminiAPIKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	f.gemini = c.WithModels(f.cfg.GeminiTextModel, f.cfg.GeminiImageModel, f.cfg.GeminiSpeechModel)
	return f.gemini, nil
}

func (f *providerFactory) openAIClient() (*client.OpenAIClient, error) {
	if f.openai != nil {
		return f.openai, nil
	}
	if f.cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}

	c := client.NewOpenAIClient(f.cfg.OpenAIAPIKey)
	if f.cfg.OpenAIAzureEndpoint != "" {
		c = client.NewAzureOpenAIClient(f.cfg.OpenAIAPIKey, f.cfg.OpenAIAzureEndpoint)
	}
	f.openai = c.WithModel(f.cfg.OpenAITextModel)
	return f.openai, nil
}

func (p *providers) Close() {
	for _, fn := range p.close {
		fn()
	}
}
