package operation_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/storage/postgres"
)

const (
	documentsTable    = "documents"
	commentairesTable = "commentaires"
)

// AddDocument inserts a document record.
func (r *Repo) AddDocument(ctx context.Context, doc *operation.Document) error {
	q := r.builder().
		Insert(documentsTable).
		SetMap(postgres.StructToMap(doc))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (r *Repo) GetDocument(ctx context.Context, docID id.ID) (*operation.Document, error) {
	q := r.builder().
		Select(postgres.ExtractDBColumns[operation.Document]()...).
		From(documentsTable).
		Where(squirrel.Eq{"id": docID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var doc operation.Document
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the documents of an operation, oldest first.
func (r *Repo) ListDocuments(ctx context.Context, opID id.ID) ([]operation.Document, error) {
	q := r.builder().
		Select(postgres.ExtractDBColumns[operation.Document]()...).
		From(documentsTable).
		Where(squirrel.Eq{"operation_id": opID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var docs []operation.Document
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document record.
func (r *Repo) DeleteDocument(ctx context.Context, docID id.ID) error {
	q := r.builder().Delete(documentsTable).Where(squirrel.Eq{"id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}
	return nil
}

// AddCommentaire inserts a comment.
func (r *Repo) AddCommentaire(ctx context.Context, c *operation.Commentaire) error {
	q := r.builder().
		Insert(commentairesTable).
		SetMap(postgres.StructToMap(c))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert commentaire: %w", err)
	}
	return nil
}

// ListCommentaires returns the comments of an operation, oldest first.
func (r *Repo) ListCommentaires(ctx context.Context, opID id.ID) ([]operation.Commentaire, error) {
	q := r.builder().
		Select(postgres.ExtractDBColumns[operation.Commentaire]()...).
		From(commentairesTable).
		Where(squirrel.Eq{"operation_id": opID}).
		OrderBy("created_at ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var comments []operation.Commentaire
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &comments, sql, args...); err != nil {
		return nil, fmt.Errorf("list commentaires: %w", err)
	}
	return comments, nil
}
