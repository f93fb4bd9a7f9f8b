package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
)

// commandFrom builds an update command that requests no change at all;
// tests then flip single fields to probe individual gates.
func commandFrom(op Operation) UpdateDetailsCommand {
	return UpdateDetailsCommand{
		Type:                     op.Type,
		CodeDossier:              op.CodeDossierValue(),
		Priorite:                 op.Priorite,
		Etat:                     op.Etat,
		Bureau:                   op.Bureau,
		TR:                       op.TR,
		Debours:                  op.Debours,
		ConfirmationDedouanement: op.ConfirmationDedouanement,
		Regime:                   op.Regime,
		ReserverPar:              op.ReserverParValue(),
	}
}

func sampleOperation() Operation {
	op := New("client-1", TypeImport)
	op.Bureau = "Casablanca"
	op.Regime = "10"
	op.Etat = EtatEnCours
	return *op
}

var (
	agentCaps = Capabilities{Agent: true}
	adminCaps = Capabilities{Admin: true}
	bothCaps  = Capabilities{Agent: true, Admin: true}
)

func TestPlanUpdate_NoChangeIsNoOp(t *testing.T) {
	op := sampleOperation()
	next, changes, err := PlanUpdate(op, commandFrom(op), agentCaps, false)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, op, next)
}

func TestPlanUpdate_FieldGates(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*UpdateDetailsCommand)
		caps    Capabilities
		valid   bool
		applied bool
		field   string
	}{
		{
			name:    "agent cannot change type",
			mutate:  func(c *UpdateDetailsCommand) { c.Type = TypeExport },
			caps:    agentCaps,
			applied: false,
		},
		{
			name:    "admin changes type",
			mutate:  func(c *UpdateDetailsCommand) { c.Type = TypeExport },
			caps:    adminCaps,
			applied: true,
			field:   FieldTypeOperation,
		},
		{
			name:    "agent assigns valid dossier code",
			mutate:  func(c *UpdateDetailsCommand) { c.CodeDossier = "DOS-2026-001" },
			caps:    agentCaps,
			valid:   true,
			applied: true,
			field:   FieldCodeDossier,
		},
		{
			name:    "agent cannot assign unknown dossier code",
			mutate:  func(c *UpdateDetailsCommand) { c.CodeDossier = "DOS-NOPE" },
			caps:    agentCaps,
			valid:   false,
			applied: false,
		},
		{
			name:    "admin cannot assign unknown dossier code either",
			mutate:  func(c *UpdateDetailsCommand) { c.CodeDossier = "DOS-NOPE" },
			caps:    adminCaps,
			valid:   false,
			applied: false,
		},
		{
			name:    "agent cannot change priority",
			mutate:  func(c *UpdateDetailsCommand) { c.Priorite = PrioriteUrgente },
			caps:    agentCaps,
			applied: false,
		},
		{
			name:    "admin changes priority",
			mutate:  func(c *UpdateDetailsCommand) { c.Priorite = PrioriteUrgente },
			caps:    adminCaps,
			applied: true,
			field:   FieldPriorite,
		},
		{
			name:    "agent advances state",
			mutate:  func(c *UpdateDetailsCommand) { c.Etat = EtatLiquidation },
			caps:    agentCaps,
			applied: true,
			field:   FieldEtat,
		},
		{
			name:    "agent changes bureau",
			mutate:  func(c *UpdateDetailsCommand) { c.Bureau = "Tanger Med" },
			caps:    agentCaps,
			applied: true,
			field:   FieldBureau,
		},
		{
			name:    "agent cannot toggle tr",
			mutate:  func(c *UpdateDetailsCommand) { c.TR = true },
			caps:    agentCaps,
			applied: false,
		},
		{
			name:    "admin toggles tr",
			mutate:  func(c *UpdateDetailsCommand) { c.TR = true },
			caps:    adminCaps,
			applied: true,
			field:   FieldTR,
		},
		{
			name:    "agent cannot toggle debours",
			mutate:  func(c *UpdateDetailsCommand) { c.Debours = true },
			caps:    agentCaps,
			applied: false,
		},
		{
			name:    "admin toggles confirmation",
			mutate:  func(c *UpdateDetailsCommand) { c.ConfirmationDedouanement = true },
			caps:    adminCaps,
			applied: true,
			field:   FieldConfirmationDedouanement,
		},
		{
			name:    "agent changes regime",
			mutate:  func(c *UpdateDetailsCommand) { c.Regime = "37" },
			caps:    agentCaps,
			applied: true,
			field:   FieldRegime,
		},
		{
			name:    "agent reassigns reservation",
			mutate:  func(c *UpdateDetailsCommand) { c.ReserverPar = "agent-9" },
			caps:    agentCaps,
			applied: true,
			field:   FieldReserverPar,
		},
		{
			name:    "admin supersedes agent when both held",
			mutate:  func(c *UpdateDetailsCommand) { c.Priorite = PrioriteHaute },
			caps:    bothCaps,
			applied: true,
			field:   FieldPriorite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := sampleOperation()
			cmd := commandFrom(op)
			tt.mutate(&cmd)

			next, changes, err := PlanUpdate(op, cmd, tt.caps, tt.valid)
			require.NoError(t, err)

			if !tt.applied {
				assert.Empty(t, changes, "gate should have silently skipped the field")
				assert.Equal(t, op, next)
				return
			}
			require.Len(t, changes, 1)
			assert.Equal(t, tt.field, changes[0].Field)
			assert.NotEqual(t, op, next)
		})
	}
}

func TestPlanUpdate_ClosureRequiresValidDossier(t *testing.T) {
	op := sampleOperation()
	op.Etat = EtatMainLevee

	cmd := commandFrom(op)
	cmd.Etat = EtatCloture

	// Blank code: rejected for every capability set, nothing applied.
	for _, caps := range []Capabilities{agentCaps, adminCaps, bothCaps} {
		next, changes, err := PlanUpdate(op, cmd, caps, false)
		require.Error(t, err)
		assert.True(t, apperror.IsBusinessRule(err, apperror.CodeClotureSansDossier))
		assert.Empty(t, changes)
		assert.Equal(t, op, next)
	}

	// Valid code supplied along with the closure: accepted.
	cmd.CodeDossier = "DOS-2026-001"
	next, changes, err := PlanUpdate(op, cmd, agentCaps, true)
	require.NoError(t, err)
	assert.Equal(t, EtatCloture, next.Etat)
	assert.Equal(t, "DOS-2026-001", next.CodeDossierValue())
	require.Len(t, changes, 2)
}

func TestPlanUpdate_ClosureDoesNotMutateUngatedFields(t *testing.T) {
	op := sampleOperation()

	cmd := commandFrom(op)
	cmd.Etat = EtatCloture
	cmd.Bureau = "Agadir"
	cmd.Regime = "22"

	_, _, err := PlanUpdate(op, cmd, agentCaps, false)
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessRule(err, apperror.CodeClotureSansDossier))
}

func TestPlanUpdate_AgentBureauRegimeBlockedOnClosure(t *testing.T) {
	op := sampleOperation()
	op.SetCodeDossier("DOS-2026-001")

	cmd := commandFrom(op)
	cmd.Etat = EtatCloture
	cmd.Bureau = "Agadir"
	cmd.Regime = "22"

	next, changes, err := PlanUpdate(op, cmd, agentCaps, true)
	require.NoError(t, err)

	// Only the state transition applies; bureau and regime stay frozen on a
	// closing command from an agent.
	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{FieldEtat}, fields)
	assert.Equal(t, op.Bureau, next.Bureau)
	assert.Equal(t, op.Regime, next.Regime)
	assert.Equal(t, EtatCloture, next.Etat)
}

func TestPlanUpdate_AdminBureauRegimeAllowedOnClosure(t *testing.T) {
	op := sampleOperation()
	op.SetCodeDossier("DOS-2026-001")

	cmd := commandFrom(op)
	cmd.Etat = EtatCloture
	cmd.Bureau = "Agadir"

	next, changes, err := PlanUpdate(op, cmd, adminCaps, true)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "Agadir", next.Bureau)
	assert.Equal(t, EtatCloture, next.Etat)
}

func TestPlanUpdate_ClearCodeDossier(t *testing.T) {
	op := sampleOperation()
	op.SetCodeDossier("DOS-2026-001")

	cmd := commandFrom(op)
	cmd.CodeDossier = ""

	next, changes, err := PlanUpdate(op, cmd, agentCaps, false)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, FieldCodeDossier, changes[0].Field)
	assert.Nil(t, next.CodeDossier)
}

func TestPlanUpdate_ChangeRecordsOldAndNew(t *testing.T) {
	op := sampleOperation()
	cmd := commandFrom(op)
	cmd.Etat = EtatPesage

	_, changes, err := PlanUpdate(op, cmd, agentCaps, false)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "en_cours", changes[0].Old)
	assert.Equal(t, "pesage", changes[0].New)
}

func TestPlanClientUpdate_DepotDossierEditable(t *testing.T) {
	op := sampleOperation()
	op.Etat = EtatDepotDossier

	next, changes, err := PlanClientUpdate(op, ClientUpdateCommand{
		Type:   TypeExport,
		Bureau: "Tanger Med",
		Regime: op.Regime,
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, TypeExport, next.Type)
	assert.Equal(t, "Tanger Med", next.Bureau)
}

func TestPlanClientUpdate_ReadOnlyAfterIntake(t *testing.T) {
	for _, etat := range AllEtats()[1:] {
		op := sampleOperation()
		op.Etat = etat

		_, _, err := PlanClientUpdate(op, ClientUpdateCommand{
			Type:   TypeMAC,
			Bureau: op.Bureau,
			Regime: op.Regime,
		})
		require.Error(t, err, etat.String())
		assert.True(t, apperror.IsBusinessRule(err, apperror.CodeOperationReadOnly), etat.String())
	}
}

func TestPlanClientUpdate_NoOpAfterIntakeSucceeds(t *testing.T) {
	op := sampleOperation()
	op.Etat = EtatLiquidation

	next, changes, err := PlanClientUpdate(op, ClientUpdateCommand{
		Type:   op.Type,
		Bureau: op.Bureau,
		Regime: op.Regime,
	})
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, op, next)
}

func TestUpdateDetailsCommand_Validate(t *testing.T) {
	cmd := commandFrom(sampleOperation())
	require.NoError(t, cmd.Validate())

	bad := cmd
	bad.Type = "transit"
	require.Error(t, bad.Validate())

	bad = cmd
	bad.Priorite = "critique"
	require.Error(t, bad.Validate())

	bad = cmd
	bad.Etat = Etat(99)
	require.Error(t, bad.Validate())
}
