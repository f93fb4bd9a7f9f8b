// Package operation_repo provides the PostgreSQL implementation of the
// operation repository and its owned collections.
package operation_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/storage/postgres"
)

const operationsTable = "operations"

// Compile-time check.
var _ operation.Repository = (*Repo)(nil)

// Repo implements operation.Repository on PostgreSQL.
type Repo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewRepo creates the operation repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[operation.Operation](),
	}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(operationsTable)
}

// Create inserts a new operation using its "db" tags.
func (r *Repo) Create(ctx context.Context, op *operation.Operation) error {
	data := postgres.StructToMap(op)
	q := r.builder().Insert(operationsTable).SetMap(data)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID retrieves an operation by id.
func (r *Repo) GetByID(ctx context.Context, opID id.ID) (*operation.Operation, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": opID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var op operation.Operation
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &op, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("operation", opID.String())
		}
		return nil, fmt.Errorf("get operation: %w", err)
	}
	return &op, nil
}

// Update modifies an operation with optimistic locking: the write only
// lands when the stored version still matches, and the version advances by
// one on success.
func (r *Repo) Update(ctx context.Context, op *operation.Operation) error {
	data := postgres.StructToMap(op)
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")
	data["updated_at"] = squirrel.Expr("NOW()")

	q := r.builder().
		Update(operationsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": op.ID}).
		Where(squirrel.Eq{"version": op.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("operation", op.ID.String())
	}
	op.Version++
	return nil
}

// Delete removes the operation; documents, commentaires, historiques and
// notifications cascade at the schema level.
func (r *Repo) Delete(ctx context.Context, opID id.ID) error {
	q := r.builder().Delete(operationsTable).Where(squirrel.Eq{"id": opID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("operation", opID.String())
	}
	return nil
}

// List retrieves operations with filtering and pagination.
func (r *Repo) List(ctx context.Context, filter operation.ListFilter) (domain.ListResult[*operation.Operation], error) {
	result := domain.ListResult[*operation.Operation]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.applyFilter(r.baseSelect(), filter)

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count operations: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list operations: %w", err)
	}
	return result, nil
}

// ListWithDossier returns every matching operation that carries a dossier
// code, unpaged, ordered by code for stable aggregation.
func (r *Repo) ListWithDossier(ctx context.Context, filter operation.ListFilter) ([]*operation.Operation, error) {
	filter.WithCodeDossier = true
	q := r.applyFilter(r.baseSelect(), filter).
		OrderBy("code_dossier ASC", "created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []*operation.Operation
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list operations with dossier: %w", err)
	}
	return items, nil
}

// CodeDossierExists reports whether any operation carries the code.
func (r *Repo) CodeDossierExists(ctx context.Context, code string) (bool, error) {
	q := r.builder().
		Select("1").
		From(operationsTable).
		Where(squirrel.Eq{"code_dossier": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var one int
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("code dossier exists: %w", err)
	}
	return true, nil
}

// ClaimReservation atomically assigns the agent if and only if the
// operation is still unreserved. The conditional UPDATE makes the
// first-commit-wins guarantee without an explicit row lock.
func (r *Repo) ClaimReservation(ctx context.Context, opID id.ID, agentID string) (bool, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE operations
		SET reserver_par = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND reserver_par IS NULL
	`, agentID, opID)
	if err != nil {
		return false, fmt.Errorf("claim reservation: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Lost the race or unknown id; distinguish the two.
	var one int
	err = r.txManager.GetQuerier(ctx).
		QueryRow(ctx, "SELECT 1 FROM operations WHERE id = $1", opID).
		Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperror.NewNotFound("operation", opID.String())
		}
		return false, fmt.Errorf("check operation exists: %w", err)
	}
	return false, nil
}

func (r *Repo) applyFilter(q squirrel.SelectBuilder, filter operation.ListFilter) squirrel.SelectBuilder {
	if filter.UserID != "" {
		q = q.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if len(filter.UserIDs) > 0 {
		q = q.Where(squirrel.Eq{"user_id": filter.UserIDs})
	}
	if len(filter.AgentIDs) > 0 {
		q = q.Where(squirrel.Eq{"reserver_par": filter.AgentIDs})
	}
	if len(filter.Etats) > 0 {
		q = q.Where(squirrel.Eq{"etat": filter.Etats})
	}
	if len(filter.Types) > 0 {
		q = q.Where(squirrel.Eq{"type_operation": filter.Types})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"bureau": pattern},
			squirrel.ILike{"regime": pattern},
			squirrel.ILike{"code_dossier": pattern},
		})
	}
	if filter.CodeDossierContains != "" {
		q = q.Where(squirrel.ILike{"code_dossier": "%" + filter.CodeDossierContains + "%"})
	}
	if filter.OnlyUnreserved {
		q = q.Where(squirrel.Eq{"reserver_par": nil})
	}
	if filter.WithCodeDossier {
		q = q.Where(squirrel.NotEq{"code_dossier": nil})
	}
	return q
}

func (r *Repo) parseOrderBy(orderBy string) (string, error) {
	allowed := map[string]struct{}{
		"created_at":   {},
		"updated_at":   {},
		"priorite":     {},
		"etat":         {},
		"code_dossier": {},
	}

	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	}
	field = strings.TrimSpace(field)
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
