// Package vertex builds the Vertex AI client shared by the analysis and
// generation stages. Configuration is resolved lazily on the first request so
// a misconfigured deployment still starts and reports ConfigError per request.
package vertex

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Models is the subset of *genai.Models the pipeline calls.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ModelsProvider hands out a ready Models client or a ConfigError.
type ModelsProvider interface {
	Models(ctx context.Context) (Models, error)
}

type Config struct {
	ProjectID       string
	Location        string
	CredentialsJSON string
}

type ClientProvider struct {
	cfg Config

	mu     sync.Mutex
	models Models
}

func NewClientProvider(cfg Config) *ClientProvider {
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	return &ClientProvider{cfg: cfg}
}

// Configured reports whether a project id is present. It does not validate
// credentials.
func (p *ClientProvider) Configured() bool {
	return strings.TrimSpace(p.cfg.ProjectID) != ""
}

func (p *ClientProvider) Models(ctx context.Context) (Models, error) {
	if !p.Configured() {
		return nil, &domain.ConfigError{
			Message: "Google Cloud project not configured. Add GOOGLE_CLOUD_PROJECT_ID to environment variables.",
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.models != nil {
		return p.models, nil
	}

	clientCfg := &genai.ClientConfig{
		Project:  p.cfg.ProjectID,
		Location: p.cfg.Location,
		Backend:  genai.BackendVertexAI,
	}

	if p.cfg.CredentialsJSON != "" {
		creds, err := ParseCredentials(p.cfg.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		clientCfg.Credentials = creds
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, &domain.ConfigError{Message: "create vertex client", Err: err}
	}

	p.models = client.Models
	return p.models, nil
}

// ParseCredentials turns a service-account JSON blob into credentials.
// Malformed JSON is reported separately from credentials the auth library rejects.
func ParseCredentials(raw string) (*auth.Credentials, error) {
	data := []byte(strings.TrimSpace(raw))
	if !json.Valid(data) {
		return nil, &domain.ConfigError{Message: "credentials JSON is malformed"}
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: data,
		Scopes:          []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, &domain.ConfigError{Message: "credentials JSON rejected", Err: err}
	}
	return creds, nil
}

// StaticProvider always returns the same Models. Used for tests and for
// callers that build their own client.
type StaticProvider struct {
	M   Models
	Err error
}

func (s StaticProvider) Models(ctx context.Context) (Models, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.M, nil
}
