package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fretops/internal/domain/facture"
)

// CreateFactureRequest registers a new invoice (staff only).
type CreateFactureRequest struct {
	Numero       string          `json:"numero" binding:"required"`
	CodeClient   string          `json:"codeClient" binding:"required"`
	CodeDossier  string          `json:"codeDossier" binding:"required"`
	Designation  string          `json:"designation"`
	Montant      decimal.Decimal `json:"montant" binding:"required"`
	DateEmission time.Time       `json:"dateEmission" binding:"required"`
	DateEcheance *time.Time      `json:"dateEcheance,omitempty"`
}

// ToEntity builds the invoice.
func (r *CreateFactureRequest) ToEntity() *facture.Facture {
	f := facture.New(r.Numero, r.CodeClient, r.CodeDossier, r.Montant, r.DateEmission)
	f.Designation = r.Designation
	f.DateEcheance = r.DateEcheance
	return f
}

// RegisterPaymentRequest records a received amount.
type RegisterPaymentRequest struct {
	Montant decimal.Decimal `json:"montant" binding:"required"`
}

// FactureResponse represents an invoice in API responses.
type FactureResponse struct {
	ID           string          `json:"id"`
	Numero       string          `json:"numero"`
	CodeClient   string          `json:"codeClient"`
	CodeDossier  string          `json:"codeDossier"`
	Designation  string          `json:"designation,omitempty"`
	Montant      decimal.Decimal `json:"montant"`
	MontantPaye  decimal.Decimal `json:"montantPaye"`
	Solde        decimal.Decimal `json:"solde"`
	EtatPayement string          `json:"etatPayement"`
	DateEmission time.Time       `json:"dateEmission"`
	DateEcheance *time.Time      `json:"dateEcheance,omitempty"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// FromFacture creates response from domain invoice.
func FromFacture(f *facture.Facture) *FactureResponse {
	return &FactureResponse{
		ID:           f.ID.String(),
		Numero:       f.Numero,
		CodeClient:   f.CodeClient,
		CodeDossier:  f.CodeDossier,
		Designation:  f.Designation,
		Montant:      f.Montant,
		MontantPaye:  f.MontantPaye,
		Solde:        f.Solde(),
		EtatPayement: string(f.EtatPayement),
		DateEmission: f.DateEmission,
		DateEcheance: f.DateEcheance,
		Version:      f.Version,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}
