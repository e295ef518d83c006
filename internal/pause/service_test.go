package pause

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/tokenvault/tokenvault/internal/identity"
)

type memorySwitch struct {
	status Status
}

func (m *memorySwitch) Status(ctx context.Context) (Status, error) {
	return m.status, nil
}

// Transition mimics the guarded UPDATE: no row changes unless the current
// state matches from.
func (m *memorySwitch) Transition(ctx context.Context, from, to State, actor string) error {
	if m.status.State != from {
		return pgx.ErrNoRows
	}
	m.status.State = to
	m.status.ChangedBy = actor
	return nil
}

type staticRoles struct {
	admins map[string]bool
}

func (r staticRoles) HasRole(ctx context.Context, role string, addr identity.Address) (bool, error) {
	return r.admins[addr.String()], nil
}

func testAddr(b byte) identity.Address {
	var a identity.Address
	a[19] = b
	return a
}

func newTestService(initial State, admin identity.Address) (*Service, *memorySwitch) {
	sw := &memorySwitch{status: Status{State: initial}}
	return NewService(sw, staticRoles{admins: map[string]bool{admin.String(): true}}, nil), sw
}

func TestPauseAndUnpause(t *testing.T) {
	admin := testAddr(1)
	svc, sw := newTestService(StateActive, admin)
	ctx := context.Background()

	paused, err := svc.Paused(ctx)
	require.NoError(t, err)
	require.False(t, paused)

	require.NoError(t, svc.Pause(ctx, admin))
	require.Equal(t, StatePaused, sw.status.State)
	require.Equal(t, admin.String(), sw.status.ChangedBy)

	paused, err = svc.Paused(ctx)
	require.NoError(t, err)
	require.True(t, paused)

	require.NoError(t, svc.Unpause(ctx, admin))
	require.Equal(t, StateActive, sw.status.State)
}

func TestPauseAlreadyPaused(t *testing.T) {
	admin := testAddr(1)
	svc, _ := newTestService(StatePaused, admin)

	err := svc.Pause(context.Background(), admin)
	require.ErrorIs(t, err, ErrAlreadyPaused)
}

func TestUnpauseNotPaused(t *testing.T) {
	admin := testAddr(1)
	svc, _ := newTestService(StateActive, admin)

	err := svc.Unpause(context.Background(), admin)
	require.ErrorIs(t, err, ErrNotPaused)
}

func TestPauseRequiresAdmin(t *testing.T) {
	admin := testAddr(1)
	svc, sw := newTestService(StateActive, admin)

	err := svc.Pause(context.Background(), testAddr(9))
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, StateActive, sw.status.State)

	err = svc.Unpause(context.Background(), testAddr(9))
	require.ErrorIs(t, err, ErrUnauthorized)
}
