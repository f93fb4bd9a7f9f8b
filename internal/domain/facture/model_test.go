package facture

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
)

func sampleFacture() *Facture {
	return New("FA-2026-0117", "CL-ATLAS", "DOS-2026-044",
		decimal.NewFromInt(12500), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
}

func TestParseEtatPayement(t *testing.T) {
	for _, s := range []string{"impayee", "payement_incomplet", "payee"} {
		got, err := ParseEtatPayement(s)
		require.NoError(t, err)
		assert.Equal(t, EtatPayement(s), got)
	}
	_, err := ParseEtatPayement("en_retard")
	require.Error(t, err)
}

func TestFacture_RegisterPayment(t *testing.T) {
	f := sampleFacture()
	assert.Equal(t, EtatImpayee, f.EtatPayement)

	require.NoError(t, f.RegisterPayment(decimal.NewFromInt(5000)))
	assert.Equal(t, EtatPayementIncomplet, f.EtatPayement)
	assert.True(t, f.Solde().Equal(decimal.NewFromInt(7500)))

	require.NoError(t, f.RegisterPayment(decimal.NewFromInt(7500)))
	assert.Equal(t, EtatPayee, f.EtatPayement)
	assert.True(t, f.Solde().IsZero())
}

func TestFacture_RegisterPayment_Rejections(t *testing.T) {
	f := sampleFacture()

	err := f.RegisterPayment(decimal.Zero)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	err = f.RegisterPayment(decimal.NewFromInt(-10))
	require.Error(t, err)

	err = f.RegisterPayment(decimal.NewFromInt(20000))
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessRule(err, apperror.CodeBusinessRule))

	// Nothing applied on a rejected payment.
	assert.True(t, f.MontantPaye.IsZero())
	assert.Equal(t, EtatImpayee, f.EtatPayement)
}

func TestFacture_Validate(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, sampleFacture().Validate(ctx))

	f := sampleFacture()
	f.Numero = "  "
	require.Error(t, f.Validate(ctx))

	f = sampleFacture()
	f.CodeDossier = ""
	require.Error(t, f.Validate(ctx))

	f = sampleFacture()
	f.Montant = decimal.Zero
	require.Error(t, f.Validate(ctx))

	f = sampleFacture()
	f.MontantPaye = decimal.NewFromInt(99999)
	require.Error(t, f.Validate(ctx))

	f = sampleFacture()
	f.EtatPayement = "litige"
	require.Error(t, f.Validate(ctx))
}
