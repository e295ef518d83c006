package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenvault/tokenvault/internal/identity"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRole loads a role definition by name.
func (r *Repository) GetRole(ctx context.Context, name string) (Role, error) {
	if r == nil {
		return Role{}, errors.New("roles repository not initialised")
	}
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT name, admin_role, created_at FROM roles WHERE name=$1`, name).
		Scan(&role.Name, &role.AdminRole, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// IsMember reports membership of addr in role.
func (r *Repository) IsMember(ctx context.Context, role string, addr identity.Address) (bool, error) {
	if r == nil {
		return false, errors.New("roles repository not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_members WHERE role=$1 AND address=$2)`, role, addr.String()).
		Scan(&exists)
	return exists, err
}

// AddMember inserts a membership row. Granting an existing member is a
// no-op.
func (r *Repository) AddMember(ctx context.Context, role string, addr identity.Address) error {
	if r == nil {
		return errors.New("roles repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO role_members (role, address, granted_at) VALUES ($1,$2,NOW())
ON CONFLICT (role, address) DO NOTHING`, role, addr.String())
	return err
}

// RemoveMember deletes a membership row. Revoking a non-member is a no-op.
func (r *Repository) RemoveMember(ctx context.Context, role string, addr identity.Address) error {
	if r == nil {
		return errors.New("roles repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM role_members WHERE role=$1 AND address=$2`, role, addr.String())
	return err
}

// ListMembers returns every member of a role ordered by grant time.
func (r *Repository) ListMembers(ctx context.Context, role string) ([]Member, error) {
	if r == nil {
		return nil, errors.New("roles repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT role, address, granted_at FROM role_members WHERE role=$1 ORDER BY granted_at ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	members := []Member{}
	for rows.Next() {
		var (
			member Member
			addr   string
		)
		if err := rows.Scan(&member.Role, &addr, &member.GrantedAt); err != nil {
			return nil, err
		}
		member.Address, err = identity.ParseAddress(addr)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}
