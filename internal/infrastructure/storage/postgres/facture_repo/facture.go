// Package facture_repo provides the PostgreSQL implementation of the
// invoice repository.
package facture_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain"
	"fretops/internal/domain/facture"
	"fretops/internal/infrastructure/storage/postgres"
)

const facturesTable = "factures"

// Compile-time check.
var _ facture.Repository = (*Repo)(nil)

// Repo implements facture.Repository on PostgreSQL.
type Repo struct {
	txManager *postgres.TxManager
	cols      []string
}

// NewRepo creates the facture repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		cols:      postgres.ExtractDBColumns[facture.Facture](),
	}
}

func (r *Repo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(r.cols...).From(facturesTable)
}

// Create inserts a new invoice.
func (r *Repo) Create(ctx context.Context, f *facture.Facture) error {
	q := r.builder().Insert(facturesTable).SetMap(postgres.StructToMap(f))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert facture: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by id.
func (r *Repo) GetByID(ctx context.Context, factureID id.ID) (*facture.Facture, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": factureID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var f facture.Facture
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &f, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("facture", factureID.String())
		}
		return nil, fmt.Errorf("get facture: %w", err)
	}
	return &f, nil
}

// Update modifies an invoice with optimistic locking.
func (r *Repo) Update(ctx context.Context, f *facture.Facture) error {
	data := postgres.StructToMap(f)
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")
	data["updated_at"] = squirrel.Expr("NOW()")

	q := r.builder().
		Update(facturesTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": f.ID}).
		Where(squirrel.Eq{"version": f.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update facture: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("facture", f.ID.String())
	}
	f.Version++
	return nil
}

// Delete removes an invoice.
func (r *Repo) Delete(ctx context.Context, factureID id.ID) error {
	q := r.builder().Delete(facturesTable).Where(squirrel.Eq{"id": factureID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete facture: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("facture", factureID.String())
	}
	return nil
}

// List retrieves invoices with filtering and pagination, newest first.
func (r *Repo) List(ctx context.Context, filter facture.ListFilter) (domain.ListResult[*facture.Facture], error) {
	result := domain.ListResult[*facture.Facture]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if filter.CodeClient != "" {
		q = q.Where(squirrel.Eq{"code_client": filter.CodeClient})
	}
	if len(filter.CodeClients) > 0 {
		q = q.Where(squirrel.Eq{"code_client": filter.CodeClients})
	}
	if filter.CodeDossier != "" {
		q = q.Where(squirrel.Eq{"code_dossier": filter.CodeDossier})
	}
	if len(filter.CodeDossiers) > 0 {
		q = q.Where(squirrel.Eq{"code_dossier": filter.CodeDossiers})
	}
	if len(filter.Etats) > 0 {
		q = q.Where(squirrel.Eq{"etat_payement": filter.Etats})
	}
	if filter.Numero != "" {
		q = q.Where(squirrel.ILike{"numero": "%" + filter.Numero + "%"})
	}

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count factures: %w", err)
	}

	q = q.OrderBy("date_emission DESC", "numero DESC")
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
		return result, fmt.Errorf("list factures: %w", err)
	}
	return result, nil
}

// ListByCodeDossier returns every invoice of the given dossier codes.
func (r *Repo) ListByCodeDossier(ctx context.Context, codes []string) ([]*facture.Facture, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"code_dossier": codes}).
		OrderBy("code_dossier ASC", "date_emission ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []*facture.Facture
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list factures by code dossier: %w", err)
	}
	return items, nil
}

// CodeDossierExists reports whether any invoice carries the code.
func (r *Repo) CodeDossierExists(ctx context.Context, code string) (bool, error) {
	q := r.builder().
		Select("1").
		From(facturesTable).
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
