package operation

import (
	"fretops/internal/core/apperror"
)

// Etat is the customs-clearance lifecycle stage of an operation.
// Stages are ordered; cloture is terminal.
type Etat int

const (
	EtatDepotDossier Etat = iota
	EtatEnCours
	EtatTraiter
	EtatPesage
	EtatVisite
	EtatEnvoiValeur
	EtatLiquidation
	EtatSousReserveCautionBancaire
	EtatSousReserveProductionDocuments
	EtatMainLevee
	EtatCloture
)

var etatNames = [...]string{
	"depot_dossier",
	"en_cours",
	"traiter",
	"pesage",
	"visite",
	"envoi_valeur",
	"liquidation",
	"sous_reserve_caution_bancaire",
	"sous_reserve_production_documents",
	"main_levee",
	"cloture",
}

// String returns the wire name of the stage.
func (e Etat) String() string {
	if !e.Valid() {
		return "unknown"
	}
	return etatNames[e]
}

// Valid reports whether e is one of the eleven lifecycle stages.
func (e Etat) Valid() bool {
	return e >= EtatDepotDossier && e <= EtatCloture
}

// IsCloture reports whether e is the terminal stage.
func (e Etat) IsCloture() bool {
	return e == EtatCloture
}

// ParseEtat converts a wire name to an Etat.
// An unknown name is a validation failure, rejected before policy evaluation.
func ParseEtat(s string) (Etat, error) {
	for i, name := range etatNames {
		if name == s {
			return Etat(i), nil
		}
	}
	return 0, apperror.NewValidation("invalid operation state").
		WithDetail("field", "etat").
		WithDetail("value", s)
}

// AllEtats returns the lifecycle stages in order.
func AllEtats() []Etat {
	out := make([]Etat, len(etatNames))
	for i := range etatNames {
		out[i] = Etat(i)
	}
	return out
}
