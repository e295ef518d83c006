package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryKeyRepo struct {
	keys map[string]APIKey
}

func (r *memoryKeyRepo) FindKey(ctx context.Context, id string) (APIKey, error) {
	key, ok := r.keys[id]
	if !ok {
		return APIKey{}, ErrKeyNotFound
	}
	return key, nil
}

func newKeyRepo(t *testing.T, id, secret string, addr Address) *memoryKeyRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return &memoryKeyRepo{keys: map[string]APIKey{
		id: {ID: id, Address: addr, SecretHash: string(hash)},
	}}
}

func TestAuthenticate(t *testing.T) {
	owner := addrWithByte(0x0a)
	svc := NewService(newKeyRepo(t, "tv_ops", "s3cret", owner))
	ctx := context.Background()

	addr, err := svc.Authenticate(ctx, "tv_ops.s3cret")
	require.NoError(t, err)
	require.Equal(t, owner, addr)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	svc := NewService(newKeyRepo(t, "tv_ops", "s3cret", addrWithByte(0x0a)))

	_, err := svc.Authenticate(context.Background(), "tv_ops.wrong")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateUnknownKey(t *testing.T) {
	svc := NewService(newKeyRepo(t, "tv_ops", "s3cret", addrWithByte(0x0a)))

	_, err := svc.Authenticate(context.Background(), "tv_other.s3cret")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateMalformedToken(t *testing.T) {
	svc := NewService(newKeyRepo(t, "tv_ops", "s3cret", addrWithByte(0x0a)))

	for _, token := range []string{"", "tv_ops", "nope.secret", "tv_.secret", "tv_ops."} {
		_, err := svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrBadCredentials, "token %q", token)
	}
}
