package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Provider names accepted by the *_PROVIDER settings.
const (
	ProviderGemini     = "gemini"
	ProviderGeminiLite = "gemini-lite"
	ProviderOpenAI     = "openai"
	ProviderAzure      = "azure"
	ProviderNone       = "none"
)

// Media store backends.
const (
	MediaInline     = "inline"
	MediaCloudflare = "r2"
	MediaGCS        = "gcs"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Host     string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"SERVER_HTTP_PORT" default:"8080"`
	GRPCPort int    `envconfig:"SERVER_GRPC_PORT" default:"9090"`

	Environment string `envconfig:"SERVER_ENV" default:"development"`

	// Timeouts
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"90s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET" default:"poplingo-dev-secret"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"72h"`

	// AI provider selection
	TextProvider   string        `envconfig:"TEXT_PROVIDER" default:"gemini"`
	ImageProvider  string        `envconfig:"IMAGE_PROVIDER" default:"gemini"`
	SpeechProvider string        `envconfig:"SPEECH_PROVIDER" default:"gemini"`
	AIMaxRetries   uint          `envconfig:"AI_MAX_RETRIES" default:"2"`
	AIRetryDelay   time.Duration `envconfig:"AI_RETRY_DELAY" default:"500ms"`

	// Gemini (API key backend, or Vertex AI when GCP_PROJECT_ID is set)
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	GeminiSAPath      string `envconfig:"GEMINI_SA_PATH"`
	GCPProjectID      string `envconfig:"GCP_PROJECT_ID"`
	GCPLocation       string `envconfig:"GCP_LOCATION" default:"us-central1"`
	GeminiTextModel   string `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-3-flash-preview"`
	GeminiImageModel  string `envconfig:"GEMINI_IMAGE_MODEL" default:"gemini-2.5-flash-image"`
	GeminiSpeechModel string `envconfig:"GEMINI_SPEECH_MODEL" default:"gemini-2.5-flash-preview-tts"`
	GeminiLiteModel   string `envconfig:"GEMINI_LITE_MODEL" default:"gemini-2.5-flash-lite"`

	// OpenAI (or Azure OpenAI when OPENAI_AZURE_ENDPOINT is set)
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIAzureEndpoint string `envconfig:"OPENAI_AZURE_ENDPOINT"`
	OpenAITextModel     string `envconfig:"OPENAI_TEXT_MODEL" default:"gpt-4o-mini"`

	// Azure AI Speech
	AzureAISpeechKey   string `envconfig:"AZURE_AI_SPEECH_KEY"`
	AzureServiceRegion string `envconfig:"AZURE_SERVICE_REGION"`

	// Redis
	RedisURL       string        `envconfig:"REDIS_URL"`
	LookupCacheTTL time.Duration `envconfig:"LOOKUP_CACHE_TTL" default:"24h"`
	SpeechCacheTTL time.Duration `envconfig:"SPEECH_CACHE_TTL" default:"168h"`

	// Database
	DatabaseURL         string        `envconfig:"DATABASE_URL"`
	DatabaseMaxConns    int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleTime time.Duration `envconfig:"DATABASE_MAX_IDLE_TIME" default:"5m"`

	// Media storage for generated images
	MediaBackend string `envconfig:"MEDIA_BACKEND" default:"inline"`

	// Cloudflare R2
	CloudflareAccessKeyID string `envconfig:"CLOUDFLARE_ACCESS_KEY_ID"`
	CloudflareSecretKey   string `envconfig:"CLOUDFLARE_SECRET_ACCESS_KEY"`
	CloudflareR2Endpoint  string `envconfig:"CLOUDFLARE_R2_ENDPOINT"`
	CloudflarePublicURL   string `envconfig:"CLOUDFLARE_PUBLIC_URL"`
	CloudflareBucketName  string `envconfig:"CLOUDFLARE_BUCKET_NAME"`

	// Google Cloud Storage
	GCSBucketName string `envconfig:"GCS_BUCKET_NAME"`

	// Pub/Sub notebook events
	PubSubTopicID string `envconfig:"PUBSUB_TOPIC_ID"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CORSAllowedMethods []string `envconfig:"CORS_ALLOWED_METHODS" default:"GET,POST,PUT,DELETE,OPTIONS"`
	CORSAllowedHeaders []string `envconfig:"CORS_ALLOWED_HEADERS" default:"Accept,Authorization,Content-Type,X-Request-ID"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the provider and backend selections.
func (c *Config) Validate() error {
	if err := oneOf("TEXT_PROVIDER", c.TextProvider, ProviderGemini, ProviderGeminiLite, ProviderOpenAI, ProviderNone); err != nil {
		return err
	}
	if err := oneOf("IMAGE_PROVIDER", c.ImageProvider, ProviderGemini, ProviderOpenAI, ProviderNone); err != nil {
		return err
	}
	if err := oneOf("SPEECH_PROVIDER", c.SpeechProvider, ProviderGemini, ProviderOpenAI, ProviderAzure, ProviderNone); err != nil {
		return err
	}
	if err := oneOf("MEDIA_BACKEND", c.MediaBackend, MediaInline, MediaCloudflare, MediaGCS); err != nil {
		return err
	}
	if c.IsProduction() && c.JWTSecret == "poplingo-dev-secret" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %v)", name, value, allowed)
}

// HTTPAddress returns the HTTP server address.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesVertex reports whether Gemini should go through Vertex AI.
func (c *Config) UsesVertex() bool {
	return c.GCPProjectID != ""
}
