package facture

import (
	"context"

	"fretops/internal/core/id"
	"fretops/internal/domain"
)

// ListFilter narrows invoice queries.
type ListFilter struct {
	domain.Page

	// CodeClient restricts to one billed client.
	CodeClient string

	// CodeClients restricts to a client-code list (dossier aggregator).
	CodeClients []string

	// CodeDossier matches exactly; CodeDossiers matches a list.
	CodeDossier  string
	CodeDossiers []string

	Etats []EtatPayement

	// Numero matches the invoice number substring (ILIKE).
	Numero string
}

// Repository is the persistence contract for invoices.
type Repository interface {
	Create(ctx context.Context, f *Facture) error
	GetByID(ctx context.Context, factureID id.ID) (*Facture, error)
	Update(ctx context.Context, f *Facture) error
	Delete(ctx context.Context, factureID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Facture], error)

	// ListByCodeDossier returns every invoice of the given dossier codes,
	// unpaged (read side of the dossier aggregator).
	ListByCodeDossier(ctx context.Context, codes []string) ([]*Facture, error)

	// CodeDossierExists reports whether any invoice carries the code.
	CodeDossierExists(ctx context.Context, code string) (bool, error)
}
