package operation

import (
	"fmt"
	"strconv"

	"fretops/internal/core/apperror"
)

// Capabilities is the capability set of the acting staff user.
// A user may hold both; wherever both gates apply, the administrator
// gate supersedes the agent gate.
type Capabilities struct {
	Agent bool
	Admin bool
}

// Staff reports whether the actor holds at least one staff capability.
func (c Capabilities) Staff() bool {
	return c.Agent || c.Admin
}

// UpdateDetailsCommand is the staff field-update command. Every field is a
// full requested value; a field only changes when the requested value
// differs from the stored one and its gate allows the change.
type UpdateDetailsCommand struct {
	Type                     TypeOperation
	CodeDossier              string
	Priorite                 Priorite
	Etat                     Etat
	Bureau                   string
	TR                       bool
	Debours                  bool
	ConfirmationDedouanement bool
	Regime                   string
	ReserverPar              string
}

// Validate rejects malformed enum values before any policy evaluation.
func (c UpdateDetailsCommand) Validate() error {
	if _, err := ParseTypeOperation(string(c.Type)); err != nil {
		return err
	}
	if _, err := ParsePriorite(string(c.Priorite)); err != nil {
		return err
	}
	if !c.Etat.Valid() {
		return apperror.NewValidation("invalid operation state").
			WithDetail("field", "etat").
			WithDetail("value", int(c.Etat))
	}
	return nil
}

// ClientUpdateCommand is the narrower self-service command. Clients may only
// touch these three fields, and only while the operation sits in the intake
// stage (depot_dossier).
type ClientUpdateCommand struct {
	Type   TypeOperation
	Bureau string
	Regime string
}

// Validate rejects malformed enum values.
func (c ClientUpdateCommand) Validate() error {
	_, err := ParseTypeOperation(string(c.Type))
	return err
}

// FieldChange describes one committed field mutation. The service turns the
// change list into a history record and notification messages after commit;
// an empty list means the command was a no-op.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Field names reported in change lists and history payloads.
const (
	FieldTypeOperation            = "type_operation"
	FieldCodeDossier              = "code_dossier"
	FieldPriorite                 = "priorite"
	FieldEtat                     = "etat"
	FieldBureau                   = "bureau"
	FieldTR                       = "tr"
	FieldDebours                  = "debours"
	FieldConfirmationDedouanement = "confirmation_dedouanement"
	FieldRegime                   = "regime"
	FieldReserverPar              = "reserver_par"
)

// PlanUpdate evaluates the staff mutation policy against the current
// operation snapshot. It returns an updated copy plus the list of field
// changes the command produced; the stored entity is never touched here.
//
// Hard precondition, checked before any field gate and regardless of role:
// a command that moves the operation into cloture with a blank or unknown
// dossier code is rejected outright, so no partial mutation can apply.
func PlanUpdate(current Operation, cmd UpdateDetailsCommand, caps Capabilities, codeDossierValid bool) (Operation, []FieldChange, error) {
	closing := cmd.Etat.IsCloture()

	if closing && !codeDossierValid {
		return current, nil, apperror.NewBusinessRule(
			apperror.CodeClotureSansDossier,
			"an operation cannot be closed without a valid dossier code",
		).WithDetail("codeDossier", cmd.CodeDossier)
	}

	next := current
	var changes []FieldChange

	record := func(field, oldVal, newVal string) {
		changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
	}

	// TypeOperation: administrators only.
	if cmd.Type != current.Type && caps.Admin {
		record(FieldTypeOperation, string(current.Type), string(cmd.Type))
		next.Type = cmd.Type
	}

	// CodeDossier: staff may assign a code that resolves to a known dossier;
	// anyone on staff may clear it as long as the command is not a closure.
	if cmd.CodeDossier != current.CodeDossierValue() {
		allowed := (caps.Agent || caps.Admin) && codeDossierValid ||
			cmd.CodeDossier == "" && !closing
		if allowed {
			record(FieldCodeDossier, current.CodeDossierValue(), cmd.CodeDossier)
			next.SetCodeDossier(cmd.CodeDossier)
		}
	}

	// Priorite: administrators only.
	if cmd.Priorite != current.Priorite && caps.Admin {
		record(FieldPriorite, string(current.Priorite), string(cmd.Priorite))
		next.Priorite = cmd.Priorite
	}

	// Etat: agents may move through any stage, entering cloture only with a
	// valid dossier code; administrators are not further restricted (the
	// closure precondition above already applies to them).
	if cmd.Etat != current.Etat {
		allowed := caps.Agent && (!closing || codeDossierValid) || caps.Admin
		if allowed {
			record(FieldEtat, current.Etat.String(), cmd.Etat.String())
			next.Etat = cmd.Etat
		}
	}

	// Bureau: agents except on closure commands; administrators always.
	if cmd.Bureau != current.Bureau {
		if caps.Agent && !closing || caps.Admin {
			record(FieldBureau, current.Bureau, cmd.Bureau)
			next.Bureau = cmd.Bureau
		}
	}

	// Administrative flags: administrators only.
	if cmd.TR != current.TR && caps.Admin {
		record(FieldTR, strconv.FormatBool(current.TR), strconv.FormatBool(cmd.TR))
		next.TR = cmd.TR
	}
	if cmd.Debours != current.Debours && caps.Admin {
		record(FieldDebours, strconv.FormatBool(current.Debours), strconv.FormatBool(cmd.Debours))
		next.Debours = cmd.Debours
	}
	if cmd.ConfirmationDedouanement != current.ConfirmationDedouanement && caps.Admin {
		record(FieldConfirmationDedouanement,
			strconv.FormatBool(current.ConfirmationDedouanement),
			strconv.FormatBool(cmd.ConfirmationDedouanement))
		next.ConfirmationDedouanement = cmd.ConfirmationDedouanement
	}

	// Regime: agents except on closure commands; administrators always.
	if cmd.Regime != current.Regime {
		if caps.Agent && !closing || caps.Admin {
			record(FieldRegime, current.Regime, cmd.Regime)
			next.Regime = cmd.Regime
		}
	}

	// ReserverPar: reassignment or clearing; the reserved flag is derived
	// from the field, so no second write is needed.
	if cmd.ReserverPar != current.ReserverParValue() {
		if caps.Agent && !closing || caps.Admin {
			record(FieldReserverPar, current.ReserverParValue(), cmd.ReserverPar)
			next.SetReserverPar(cmd.ReserverPar)
		}
	}

	return next, changes, nil
}

// PlanClientUpdate evaluates the self-service policy: TypeOperation, Bureau
// and Regime are mutable only while the operation is in depot_dossier. Once
// it has advanced, any requested change is a business-rule violation; a
// request that changes nothing stays a silent no-op.
func PlanClientUpdate(current Operation, cmd ClientUpdateCommand) (Operation, []FieldChange, error) {
	next := current
	var changes []FieldChange

	if cmd.Type != current.Type {
		changes = append(changes, FieldChange{FieldTypeOperation, string(current.Type), string(cmd.Type)})
		next.Type = cmd.Type
	}
	if cmd.Bureau != current.Bureau {
		changes = append(changes, FieldChange{FieldBureau, current.Bureau, cmd.Bureau})
		next.Bureau = cmd.Bureau
	}
	if cmd.Regime != current.Regime {
		changes = append(changes, FieldChange{FieldRegime, current.Regime, cmd.Regime})
		next.Regime = cmd.Regime
	}

	if len(changes) > 0 && current.Etat != EtatDepotDossier {
		return current, nil, apperror.NewBusinessRule(
			apperror.CodeOperationReadOnly,
			fmt.Sprintf("operation can no longer be edited by the client (state %s)", current.Etat),
		).WithDetail("etat", current.Etat.String())
	}

	return next, changes, nil
}
