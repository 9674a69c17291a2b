package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr         string `envconfig:"ADDR" default:":8080"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogConsole   bool   `envconfig:"LOG_CONSOLE"`
	RedisURL     string `envconfig:"REDIS_URL"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	AWSRegion    string `envconfig:"AWS_REGION"`

	// Share of new traces recorded when OTLP_ENDPOINT is set.
	TraceSampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`

	// Vertex AI. The project id is only checked when a generation is
	// attempted so the server can start and report configuration errors.
	GoogleCloudProjectID    string `envconfig:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudLocation     string `envconfig:"GOOGLE_CLOUD_LOCATION" default:"us-central1"`
	GoogleCredentialsJSON   string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`
	GoogleCredentialsSecret string `envconfig:"GOOGLE_CREDENTIALS_SECRET"`

	AnalysisModel string `envconfig:"ANALYSIS_MODEL" default:"gemini-1.5-pro"`
	ImageModel    string `envconfig:"IMAGE_MODEL" default:"imagen-3.0-generate-001"`
	VideoModel    string `envconfig:"VIDEO_MODEL" default:"veo-3.1"`

	// Demo credits and sessions
	InitialCredits    int           `envconfig:"INITIAL_CREDITS" default:"10"`
	AdminPassword     string        `envconfig:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	AnalysisCacheTTL   time.Duration `envconfig:"ANALYSIS_CACHE_TTL" default:"10m"`
	ClientRateLimitRPM int           `envconfig:"CLIENT_RATE_LIMIT_RPM" default:"30"`
	TrustForwardedFor  bool          `envconfig:"TRUST_FORWARDED_FOR"`
	SNSTopicARN        string        `envconfig:"SNS_TOPIC_ARN"`

	// Graceful shutdown
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"120s"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.InitialCredits < 0 {
		errs = append(errs, fmt.Errorf("INITIAL_CREDITS must be >= 0, got %d", c.InitialCredits))
	}
	if c.ClientRateLimitRPM < 0 {
		errs = append(errs, fmt.Errorf("CLIENT_RATE_LIMIT_RPM must be >= 0, got %d", c.ClientRateLimitRPM))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATIO must be within [0, 1], got %g", c.TraceSampleRatio))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.GoogleCredentialsSecret != "" && c.AWSRegion == "" {
		errs = append(errs, errors.New("GOOGLE_CREDENTIALS_SECRET requires AWS_REGION"))
	}
	if c.SNSTopicARN != "" && c.AWSRegion == "" {
		errs = append(errs, errors.New("SNS_TOPIC_ARN requires AWS_REGION"))
	}
	return errors.Join(errs...)
}
