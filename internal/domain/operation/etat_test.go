package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
)

func TestEtat_String(t *testing.T) {
	assert.Equal(t, "depot_dossier", EtatDepotDossier.String())
	assert.Equal(t, "liquidation", EtatLiquidation.String())
	assert.Equal(t, "cloture", EtatCloture.String())
	assert.Equal(t, "unknown", Etat(42).String())
}

func TestEtat_Valid(t *testing.T) {
	for _, e := range AllEtats() {
		assert.True(t, e.Valid(), e.String())
	}
	assert.False(t, Etat(-1).Valid())
	assert.False(t, Etat(11).Valid())
}

func TestEtat_IsCloture(t *testing.T) {
	assert.True(t, EtatCloture.IsCloture())
	assert.False(t, EtatMainLevee.IsCloture())
	assert.False(t, EtatDepotDossier.IsCloture())
}

func TestParseEtat(t *testing.T) {
	tests := []struct {
		in   string
		want Etat
	}{
		{"depot_dossier", EtatDepotDossier},
		{"en_cours", EtatEnCours},
		{"traiter", EtatTraiter},
		{"pesage", EtatPesage},
		{"visite", EtatVisite},
		{"envoi_valeur", EtatEnvoiValeur},
		{"liquidation", EtatLiquidation},
		{"sous_reserve_caution_bancaire", EtatSousReserveCautionBancaire},
		{"sous_reserve_production_documents", EtatSousReserveProductionDocuments},
		{"main_levee", EtatMainLevee},
		{"cloture", EtatCloture},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEtat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseEtat("annule")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestAllEtats_Ordering(t *testing.T) {
	etats := AllEtats()
	require.Len(t, etats, 11)
	for i, e := range etats {
		assert.Equal(t, i, int(e))
	}
	assert.Equal(t, EtatDepotDossier, etats[0])
	assert.Equal(t, EtatCloture, etats[len(etats)-1])
}
