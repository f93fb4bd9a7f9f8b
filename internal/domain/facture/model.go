// Package facture provides invoices issued against customs dossiers.
package facture

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fretops/internal/core/apperror"
	"fretops/internal/core/entity"
)

// EtatPayement is the payment state of a single invoice.
type EtatPayement string

const (
	// EtatImpayee means nothing has been received.
	EtatImpayee EtatPayement = "impayee"

	// EtatPayementIncomplet means a partial amount has been received.
	EtatPayementIncomplet EtatPayement = "payement_incomplet"

	// EtatPayee means the invoice is settled in full.
	EtatPayee EtatPayement = "payee"
)

// ParseEtatPayement validates a wire value.
func ParseEtatPayement(s string) (EtatPayement, error) {
	switch EtatPayement(s) {
	case EtatImpayee, EtatPayementIncomplet, EtatPayee:
		return EtatPayement(s), nil
	}
	return "", apperror.NewValidation("invalid payment state").
		WithDetail("field", "etatPayement").
		WithDetail("value", s)
}

// Facture is one invoice. It attaches to a dossier through CodeDossier and
// to a client through CodeClient; the dossier aggregator joins on both.
type Facture struct {
	entity.BaseEntity

	// Numero is the human invoice number, unique per emitter.
	Numero string `db:"numero" json:"numero"`

	// CodeClient identifies the billed client (matches the client account's
	// invoicing code, not the portal user id).
	CodeClient string `db:"code_client" json:"codeClient"`

	// CodeDossier links the invoice to a dossier.
	CodeDossier string `db:"code_dossier" json:"codeDossier"`

	// Designation is the free-text description of what is billed; dossier
	// views concatenate it across the dossier's invoices.
	Designation string `db:"designation" json:"designation,omitempty"`

	Montant      decimal.Decimal `db:"montant" json:"montant"`
	MontantPaye  decimal.Decimal `db:"montant_paye" json:"montantPaye"`
	EtatPayement EtatPayement    `db:"etat_payement" json:"etatPayement"`

	DateEmission time.Time  `db:"date_emission" json:"dateEmission"`
	DateEcheance *time.Time `db:"date_echeance" json:"dateEcheance,omitempty"`
}

// New creates an unpaid invoice.
func New(numero, codeClient, codeDossier string, montant decimal.Decimal, dateEmission time.Time) *Facture {
	return &Facture{
		BaseEntity:   entity.NewBaseEntity(),
		Numero:       numero,
		CodeClient:   codeClient,
		CodeDossier:  codeDossier,
		Montant:      montant,
		MontantPaye:  decimal.Zero,
		EtatPayement: EtatImpayee,
		DateEmission: dateEmission,
	}
}

// Solde returns the outstanding amount.
func (f *Facture) Solde() decimal.Decimal {
	return f.Montant.Sub(f.MontantPaye)
}

// RegisterPayment adds a received amount and recomputes the payment state.
// The state never regresses from payee.
func (f *Facture) RegisterPayment(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "montant").
			WithDetail("value", amount.String())
	}
	if amount.GreaterThan(f.Solde()) {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"payment exceeds the outstanding amount",
		).WithDetail("solde", f.Solde().String())
	}
	f.MontantPaye = f.MontantPaye.Add(amount)
	f.refreshEtat()
	return nil
}

func (f *Facture) refreshEtat() {
	switch {
	case f.MontantPaye.GreaterThanOrEqual(f.Montant):
		f.EtatPayement = EtatPayee
	case f.MontantPaye.GreaterThan(decimal.Zero):
		f.EtatPayement = EtatPayementIncomplet
	default:
		f.EtatPayement = EtatImpayee
	}
}

// Validate implements entity.Validatable.
func (f *Facture) Validate(ctx context.Context) error {
	if strings.TrimSpace(f.Numero) == "" {
		return apperror.NewValidation("invoice number is required").
			WithDetail("field", "numero")
	}
	if strings.TrimSpace(f.CodeClient) == "" {
		return apperror.NewValidation("client code is required").
			WithDetail("field", "codeClient")
	}
	if strings.TrimSpace(f.CodeDossier) == "" {
		return apperror.NewValidation("dossier code is required").
			WithDetail("field", "codeDossier")
	}
	if f.Montant.LessThanOrEqual(decimal.Zero) {
		return apperror.NewValidation("invoice amount must be positive").
			WithDetail("field", "montant").
			WithDetail("value", f.Montant.String())
	}
	if f.MontantPaye.IsNegative() || f.MontantPaye.GreaterThan(f.Montant) {
		return apperror.NewValidation("paid amount must stay within the invoice amount").
			WithDetail("field", "montantPaye").
			WithDetail("value", f.MontantPaye.String())
	}
	if _, err := ParseEtatPayement(string(f.EtatPayement)); err != nil {
		return err
	}
	return nil
}
