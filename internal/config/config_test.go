package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"ADDR", "LOG_LEVEL", "REDIS_URL", "OTLP_ENDPOINT", "AWS_REGION",
	"GOOGLE_CLOUD_PROJECT_ID", "GOOGLE_CLOUD_LOCATION", "GOOGLE_APPLICATION_CREDENTIALS_JSON",
	"GOOGLE_CREDENTIALS_SECRET", "ANALYSIS_MODEL", "IMAGE_MODEL", "VIDEO_MODEL",
	"INITIAL_CREDITS", "ADMIN_PASSWORD", "ADMIN_PASSWORD_HASH", "SESSION_TTL",
	"ANALYSIS_CACHE_TTL", "CLIENT_RATE_LIMIT_RPM", "SNS_TOPIC_ARN", "SHUTDOWN_TIMEOUT", "WRITE_TIMEOUT",
	"LOG_CONSOLE", "TRUST_FORWARDED_FOR", "TRACE_SAMPLE_RATIO",
}

// clearEnv unsets every variable for the duration of the test. A variable set
// to "" counts as present for envconfig and would suppress its default.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		if old, ok := os.LookupEnv(v); ok {
			t.Cleanup(func() { os.Setenv(v, old) })
		}
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Addr", cfg.Addr, ":8080"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"RedisURL", cfg.RedisURL, ""},
		{"GoogleCloudProjectID", cfg.GoogleCloudProjectID, ""},
		{"GoogleCloudLocation", cfg.GoogleCloudLocation, "us-central1"},
		{"AnalysisModel", cfg.AnalysisModel, "gemini-1.5-pro"},
		{"ImageModel", cfg.ImageModel, "imagen-3.0-generate-001"},
		{"VideoModel", cfg.VideoModel, "veo-3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}

	assert.Equal(t, 10, cfg.InitialCredits)
	assert.Equal(t, 30, cfg.ClientRateLimitRPM)
	assert.False(t, cfg.TrustForwardedFor)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "velvet-demo")
	t.Setenv("INITIAL_CREDITS", "25")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("CLIENT_RATE_LIMIT_RPM", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "velvet-demo", cfg.GoogleCloudProjectID)
	assert.Equal(t, 25, cfg.InitialCredits)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 0, cfg.ClientRateLimitRPM)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"negative credits", map[string]string{"INITIAL_CREDITS": "-1"}},
		{"negative rpm", map[string]string{"CLIENT_RATE_LIMIT_RPM": "-5"}},
		{"unparseable duration", map[string]string{"SESSION_TTL": "soon"}},
		{"secret without region", map[string]string{"GOOGLE_CREDENTIALS_SECRET": "velvet/gcp"}},
		{"sample ratio above one", map[string]string{"TRACE_SAMPLE_RATIO": "1.5"}},
		{"topic without region", map[string]string{"SNS_TOPIC_ARN": "arn:aws:sns:us-east-1:1:velvet"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_TrustForwardedFor(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUST_FORWARDED_FOR", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TrustForwardedFor)
}
