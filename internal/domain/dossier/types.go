// Package dossier provides the read-side aggregation of operations and
// invoices sharing a dossier code, with the payment rollup used by the
// portal's dossier views.
package dossier

import (
	"github.com/shopspring/decimal"

	"fretops/internal/domain"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/operation"
)

// Dossier is an aggregated view: every operation and invoice carrying the
// same dossier code, plus the rolled-up payment state. It is never stored;
// it is rebuilt from its parts on every read.
type Dossier struct {
	CodeDossier string `json:"codeDossier"`

	Operations []*operation.Operation `json:"operations"`
	Factures   []*facture.Facture     `json:"factures"`

	// EtatPayement is the rollup over Factures (see Rollup).
	EtatPayement facture.EtatPayement `json:"etatPayement"`

	// Designations joins the non-empty invoice designations, one per line.
	Designations string `json:"designations,omitempty"`

	MontantTotal decimal.Decimal `json:"montantTotal"`
	MontantPaye  decimal.Decimal `json:"montantPaye"`
}

// Filter narrows the aggregated listing. Filtering happens on the built
// aggregates, before pagination.
type Filter struct {
	domain.Page

	// CodeDossierContains keeps dossiers whose code contains the substring.
	CodeDossierContains string

	// ClientIDs keeps dossiers with at least one operation owned by one of
	// the given clients. Staff listings only; the client variant pins the
	// owner itself.
	ClientIDs []string

	// AgentIDs keeps dossiers with at least one operation reserved by one of
	// the given agents.
	AgentIDs []string

	// EtatPayement keeps dossiers with the given rolled-up state.
	EtatPayement facture.EtatPayement
}

// Rollup folds invoice payment states into the dossier-level state:
// any partially paid invoice dominates, then full settlement requires every
// invoice paid, anything else is unpaid. A dossier without invoices is
// unpaid.
func Rollup(factures []*facture.Facture) facture.EtatPayement {
	if len(factures) == 0 {
		return facture.EtatImpayee
	}
	allPaid := true
	for _, f := range factures {
		switch f.EtatPayement {
		case facture.EtatPayementIncomplet:
			return facture.EtatPayementIncomplet
		case facture.EtatPayee:
		default:
			allPaid = false
		}
	}
	if allPaid {
		return facture.EtatPayee
	}
	return facture.EtatImpayee
}
