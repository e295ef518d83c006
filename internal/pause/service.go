package pause

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/roles"
	"github.com/tokenvault/tokenvault/internal/shared"
)

// RepositoryPort defines data access methods for the switch.
type RepositoryPort interface {
	Status(ctx context.Context) (Status, error)
	Transition(ctx context.Context, from, to State, actor string) error
}

// RolesPort answers role membership questions.
type RolesPort interface {
	HasRole(ctx context.Context, role string, addr identity.Address) (bool, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles pause switch transitions.
type Service struct {
	repo  RepositoryPort
	roles RolesPort
	audit AuditPort
}

// NewService builds Service instance. Audit may be nil.
func NewService(repo RepositoryPort, rolesPort RolesPort, audit AuditPort) *Service {
	return &Service{repo: repo, roles: rolesPort, audit: audit}
}

// Paused reports whether the ledger is currently paused.
func (s *Service) Paused(ctx context.Context) (bool, error) {
	status, err := s.repo.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.State == StatePaused, nil
}

// Status returns the current switch state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	return s.repo.Status(ctx)
}

// Pause flips the switch ACTIVE -> PAUSED. Admin only; fails with
// ErrAlreadyPaused when the switch is already PAUSED.
func (s *Service) Pause(ctx context.Context, actor identity.Address) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}
	if err := s.repo.Transition(ctx, StateActive, StatePaused, actor.String()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyPaused
		}
		return err
	}
	s.recordAudit(ctx, actor, "pause.pause")
	return nil
}

// Unpause flips the switch PAUSED -> ACTIVE. Admin only; fails with
// ErrNotPaused when the switch is already ACTIVE.
func (s *Service) Unpause(ctx context.Context, actor identity.Address) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}
	if err := s.repo.Transition(ctx, StatePaused, StateActive, actor.String()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotPaused
		}
		return err
	}
	s.recordAudit(ctx, actor, "pause.unpause")
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, actor identity.Address) error {
	isAdmin, err := s.roles.HasRole(ctx, roles.RoleAdmin, actor)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor identity.Address, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor.String(),
		Action:   action,
		Entity:   "pause_state",
		EntityID: "1",
	})
}
