package auth_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fretops/internal/core/apperror"
	"fretops/internal/domain/auth"
	"fretops/internal/infrastructure/storage/postgres"
)

const rolesTable = "roles"

// Compile-time check.
var _ auth.RoleRepository = (*RoleRepo)(nil)

// RoleRepo implements auth.RoleRepository on PostgreSQL.
type RoleRepo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewRoleRepo creates the role repository.
func NewRoleRepo(txManager *postgres.TxManager) *RoleRepo {
	return &RoleRepo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[auth.Role](),
	}
}

func (r *RoleRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a role.
func (r *RoleRepo) Create(ctx context.Context, role *auth.Role) error {
	q := r.builder().Insert(rolesTable).SetMap(postgres.StructToMap(role))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// GetByCode retrieves a role by code.
func (r *RoleRepo) GetByCode(ctx context.Context, code string) (*auth.Role, error) {
	q := r.builder().
		Select(r.cols...).
		From(rolesTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var role auth.Role
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &role, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("role", code)
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

// List retrieves all roles.
func (r *RoleRepo) List(ctx context.Context) ([]auth.Role, error) {
	q := r.builder().
		Select(r.cols...).
		From(rolesTable).
		OrderBy("code ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var roles []auth.Role
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &roles, sql, args...); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
