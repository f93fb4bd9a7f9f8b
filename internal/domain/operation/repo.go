package operation

import (
	"context"

	"fretops/internal/core/id"
	"fretops/internal/domain"
)

// ListFilter narrows operation queries.
type ListFilter struct {
	domain.Page

	// UserID restricts to a single owning client.
	UserID string

	// UserIDs / AgentIDs restrict by owner or assignee lists.
	UserIDs  []string
	AgentIDs []string

	Etats []Etat
	Types []TypeOperation

	// Search matches bureau, regime and code_dossier (ILIKE).
	Search string

	// CodeDossierContains matches the dossier code substring.
	CodeDossierContains string

	// OnlyUnreserved keeps operations without an assigned agent.
	OnlyUnreserved bool

	// WithCodeDossier keeps operations carrying a non-blank dossier code.
	WithCodeDossier bool

	// OrderBy accepts "created_at", "-created_at", "priorite", "etat",
	// "code_dossier". Empty means newest first.
	OrderBy string
}

// Repository is the persistence contract for operations and their owned
// collections. Mutations respect the optimistic-locking version column.
type Repository interface {
	Create(ctx context.Context, op *Operation) error
	GetByID(ctx context.Context, opID id.ID) (*Operation, error)
	Update(ctx context.Context, op *Operation) error

	// Delete removes the operation; documents, commentaires and historiques
	// go with it (cascade).
	Delete(ctx context.Context, opID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Operation], error)

	// ListWithDossier returns, unpaged, every operation matching the filter
	// that carries a non-blank dossier code (read side of the aggregator).
	ListWithDossier(ctx context.Context, filter ListFilter) ([]*Operation, error)

	// CodeDossierExists reports whether any operation carries the code.
	CodeDossierExists(ctx context.Context, code string) (bool, error)

	// ClaimReservation atomically assigns the agent if and only if the
	// operation is still unreserved. Returns false when another agent won
	// the race; the row is left untouched in that case.
	ClaimReservation(ctx context.Context, opID id.ID, agentID string) (bool, error)

	AddDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, docID id.ID) (*Document, error)
	ListDocuments(ctx context.Context, opID id.ID) ([]Document, error)
	DeleteDocument(ctx context.Context, docID id.ID) error

	AddCommentaire(ctx context.Context, c *Commentaire) error
	ListCommentaires(ctx context.Context, opID id.ID) ([]Commentaire, error)
}

// HistoriqueRecorder appends immutable audit records. Record must run inside
// the mutation transaction so the trail only ever reflects committed changes.
type HistoriqueRecorder interface {
	Record(ctx context.Context, h *Historique) error
	ListByOperation(ctx context.Context, opID id.ID, limit int) ([]Historique, error)
}

// IdentityDirectory answers role and identity questions about users.
type IdentityDirectory interface {
	IsInRole(ctx context.Context, userID, role string) (bool, error)
	DisplayName(ctx context.Context, userID string) (string, error)

	// OperationTypeScope returns the single operation type a staff user is
	// restricted to, or nil when unrestricted.
	OperationTypeScope(ctx context.Context, userID string) (*TypeOperation, error)
}

// DossierLookup reports whether a dossier code resolves to known records
// (at least one operation or facture carrying it).
type DossierLookup interface {
	Exists(ctx context.Context, code string) (bool, error)
}
