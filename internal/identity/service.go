package identity

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for API keys.
type RepositoryPort interface {
	FindKey(ctx context.Context, id string) (APIKey, error)
}

// Service authenticates direct callers from bearer API keys.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates a bearer token of the form "tv_<id>.<secret>" and
// returns the direct caller address bound to the key.
func (s *Service) Authenticate(ctx context.Context, token string) (Address, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return ZeroAddress, ErrBadCredentials
	}
	key, err := s.repo.FindKey(ctx, id)
	if err != nil {
		// Do not reveal whether the key id or the secret was wrong.
		return ZeroAddress, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return ZeroAddress, ErrBadCredentials
	}
	return key.Address, nil
}

func splitToken(token string) (id, secret string, ok bool) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "tv_") {
		return "", "", false
	}
	id, secret, found := strings.Cut(token, ".")
	if !found || id == "tv_" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}
