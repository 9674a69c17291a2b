package vertex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

func TestClientProvider_MissingProject(t *testing.T) {
	p := NewClientProvider(Config{})

	assert.False(t, p.Configured())

	_, err := p.Models(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "GOOGLE_CLOUD_PROJECT_ID")
}

func TestClientProvider_MalformedCredentials(t *testing.T) {
	p := NewClientProvider(Config{
		ProjectID:       "velvet-demo",
		CredentialsJSON: `{"type": "service_account",`,
	})

	_, err := p.Models(context.Background())
	require.Error(t, err)

	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "credentials JSON is malformed", cfgErr.Message)
}

func TestParseCredentials_RejectsUnknownType(t *testing.T) {
	_, err := ParseCredentials(`{"type": "not_a_real_type"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewClientProvider_DefaultLocation(t *testing.T) {
	p := NewClientProvider(Config{ProjectID: "p"})
	assert.Equal(t, "us-central1", p.cfg.Location)
}

func TestStaticProvider(t *testing.T) {
	wantErr := &domain.ConfigError{Message: "nope"}

	_, err := StaticProvider{Err: wantErr}.Models(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	m, err := StaticProvider{}.Models(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, m)
}
