package dto

import (
	"github.com/shopspring/decimal"

	"fretops/internal/domain/dossier"
)

// DossierResponse is the aggregated dossier view: every operation and
// invoice carrying the code, plus the rolled-up payment state.
type DossierResponse struct {
	CodeDossier    string               `json:"codeDossier"`
	EtatPayement   string               `json:"etatPayement"`
	Designations   string               `json:"designations,omitempty"`
	MontantTotal   decimal.Decimal      `json:"montantTotal"`
	MontantPaye    decimal.Decimal      `json:"montantPaye"`
	MontantReste   decimal.Decimal      `json:"montantReste"`
	OperationCount int                  `json:"operationCount"`
	FactureCount   int                  `json:"factureCount"`
	Operations     []*OperationResponse `json:"operations"`
	Factures       []*FactureResponse   `json:"factures"`
}

// FromDossier creates response from the domain aggregate.
func FromDossier(d *dossier.Dossier) *DossierResponse {
	ops := make([]*OperationResponse, len(d.Operations))
	for i, op := range d.Operations {
		ops[i] = FromOperation(op)
	}
	factures := make([]*FactureResponse, len(d.Factures))
	for i, f := range d.Factures {
		factures[i] = FromFacture(f)
	}
	return &DossierResponse{
		CodeDossier:    d.CodeDossier,
		EtatPayement:   string(d.EtatPayement),
		Designations:   d.Designations,
		MontantTotal:   d.MontantTotal,
		MontantPaye:    d.MontantPaye,
		MontantReste:   d.MontantTotal.Sub(d.MontantPaye),
		OperationCount: len(d.Operations),
		FactureCount:   len(d.Factures),
		Operations:     ops,
		Factures:       factures,
	}
}
