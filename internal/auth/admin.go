// Package auth guards the admin unlock that lifts the demo credit limit for
// one session.
package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

var ErrAdminDisabled = errors.New("admin unlock is not configured")

// AdminGate compares passwords against one bcrypt hash. A gate without a hash
// rejects every password.
type AdminGate struct {
	hash []byte
}

func NewAdminGate(hash string) *AdminGate {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &AdminGate{}
	}
	return &AdminGate{hash: []byte(hash)}
}

// NewAdminGateFromPassword hashes password once at startup so the plaintext
// is not kept in memory.
func NewAdminGateFromPassword(password string) (*AdminGate, error) {
	if password == "" {
		return &AdminGate{}, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewAdminGate(hash), nil
}

func (g *AdminGate) Enabled() bool {
	return g != nil && len(g.hash) > 0
}

func (g *AdminGate) Verify(password string) error {
	if !g.Enabled() {
		return ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		return domain.ErrInvalidPassword
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
