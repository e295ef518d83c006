package roles

import (
	"context"
	"fmt"

	"github.com/tokenvault/tokenvault/internal/identity"
	"github.com/tokenvault/tokenvault/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	GetRole(ctx context.Context, name string) (Role, error)
	IsMember(ctx context.Context, role string, addr identity.Address) (bool, error)
	AddMember(ctx context.Context, role string, addr identity.Address) error
	RemoveMember(ctx context.Context, role string, addr identity.Address) error
	ListMembers(ctx context.Context, role string) ([]Member, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	audit AuditPort
}

// NewService builds Service instance. Cache and audit may be nil.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// HasRole reports whether addr currently holds role.
func (s *Service) HasRole(ctx context.Context, role string, addr identity.Address) (bool, error) {
	if member, hit := s.cache.GetMembership(ctx, role, addr); hit {
		return member, nil
	}
	member, err := s.repo.IsMember(ctx, role, addr)
	if err != nil {
		return false, err
	}
	s.cache.SetMembership(ctx, role, addr, member)
	return member, nil
}

// Grant adds addr to role. Only members of the role's admin role may grant;
// granting an existing member is a no-op.
func (s *Service) Grant(ctx context.Context, actor identity.Address, role string, addr identity.Address) error {
	if err := s.requireRoleAdmin(ctx, actor, role); err != nil {
		return err
	}
	if err := s.repo.AddMember(ctx, role, addr); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, role, addr)
	s.recordAudit(ctx, actor, "roles.grant", role, addr)
	return nil
}

// Revoke removes addr from role. Only members of the role's admin role may
// revoke; revoking a non-member is a no-op.
func (s *Service) Revoke(ctx context.Context, actor identity.Address, role string, addr identity.Address) error {
	if err := s.requireRoleAdmin(ctx, actor, role); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, role, addr); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, role, addr)
	s.recordAudit(ctx, actor, "roles.revoke", role, addr)
	return nil
}

// Members lists current members of a role.
func (s *Service) Members(ctx context.Context, role string) ([]Member, error) {
	if _, err := s.repo.GetRole(ctx, role); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, role)
}

func (s *Service) requireRoleAdmin(ctx context.Context, actor identity.Address, role string) error {
	def, err := s.repo.GetRole(ctx, role)
	if err != nil {
		return err
	}
	isAdmin, err := s.repo.IsMember(ctx, def.AdminRole, actor)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("%w: %s is not a member of %s", ErrUnauthorized, actor, def.AdminRole)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor identity.Address, action, role string, addr identity.Address) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor.String(),
		Action:   action,
		Entity:   "role",
		EntityID: role,
		Meta:     map[string]any{"member": addr.String()},
	})
}
