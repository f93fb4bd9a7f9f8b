// Package operation provides the Operation aggregate: customs dossiers
// submitted by clients and processed by agents and administrators.
package operation

import (
	"context"
	"time"

	"fretops/internal/core/apperror"
	"fretops/internal/core/entity"
	"fretops/internal/core/id"
)

// TypeOperation classifies the customs flow of an operation.
type TypeOperation string

const (
	TypeImport TypeOperation = "import"
	TypeExport TypeOperation = "export"
	TypeMAC    TypeOperation = "mac"
)

// ParseTypeOperation validates a wire value.
func ParseTypeOperation(s string) (TypeOperation, error) {
	switch TypeOperation(s) {
	case TypeImport, TypeExport, TypeMAC:
		return TypeOperation(s), nil
	}
	return "", apperror.NewValidation("invalid operation type").
		WithDetail("field", "typeOperation").
		WithDetail("value", s)
}

// Priorite is the processing priority of an operation.
type Priorite string

const (
	PrioriteBasse   Priorite = "basse"
	PrioriteNormale Priorite = "normale"
	PrioriteHaute   Priorite = "haute"
	PrioriteUrgente Priorite = "urgente"
)

// ParsePriorite validates a wire value.
func ParsePriorite(s string) (Priorite, error) {
	switch Priorite(s) {
	case PrioriteBasse, PrioriteNormale, PrioriteHaute, PrioriteUrgente:
		return Priorite(s), nil
	}
	return "", apperror.NewValidation("invalid operation priority").
		WithDetail("field", "priorite").
		WithDetail("value", s)
}

// Operation is the aggregate root of the portal: one customs dossier.
//
// Ownership (UserID) is set at creation and never changes. Assignment is
// carried by ReserverPar alone; EstReserver is derived from it, never stored.
type Operation struct {
	entity.BaseEntity

	// UserID is the owning client, immutable after creation.
	UserID string `db:"user_id" json:"userId"`

	// ReserverPar is the assigned agent, nil while unreserved.
	ReserverPar *string `db:"reserver_par" json:"reserverPar,omitempty"`

	Type     TypeOperation `db:"type_operation" json:"typeOperation"`
	Priorite Priorite      `db:"priorite" json:"priorite"`
	Etat     Etat          `db:"etat" json:"etat"`

	Regime string `db:"regime" json:"regime,omitempty"`
	Bureau string `db:"bureau" json:"bureau,omitempty"`

	// CodeDossier links the operation to invoicing, nil until assigned.
	CodeDossier *string `db:"code_dossier" json:"codeDossier,omitempty"`

	// Administrative flags, admin-only toggles.
	TR                       bool `db:"tr" json:"tr"`
	Debours                  bool `db:"debours" json:"debours"`
	ConfirmationDedouanement bool `db:"confirmation_dedouanement" json:"confirmationDedouanement"`
}

// New creates an operation for the given client in the intake stage.
func New(userID string, typeOp TypeOperation) *Operation {
	return &Operation{
		BaseEntity: entity.NewBaseEntity(),
		UserID:     userID,
		Type:       typeOp,
		Priorite:   PrioriteNormale,
		Etat:       EtatDepotDossier,
	}
}

// EstReserver reports whether an agent holds the operation.
// Derived from ReserverPar; there is no second stored flag to drift.
func (o *Operation) EstReserver() bool {
	return o.ReserverPar != nil && *o.ReserverPar != ""
}

// ReserverParValue returns the assigned agent id or empty string.
func (o *Operation) ReserverParValue() string {
	if o.ReserverPar == nil {
		return ""
	}
	return *o.ReserverPar
}

// SetReserverPar assigns or clears the agent.
func (o *Operation) SetReserverPar(agentID string) {
	if agentID == "" {
		o.ReserverPar = nil
	} else {
		o.ReserverPar = &agentID
	}
}

// CodeDossierValue returns the dossier code or empty string.
func (o *Operation) CodeDossierValue() string {
	if o.CodeDossier == nil {
		return ""
	}
	return *o.CodeDossier
}

// SetCodeDossier assigns or clears the dossier code.
func (o *Operation) SetCodeDossier(code string) {
	if code == "" {
		o.CodeDossier = nil
	} else {
		o.CodeDossier = &code
	}
}

// Validate implements entity.Validatable.
func (o *Operation) Validate(ctx context.Context) error {
	if o.UserID == "" {
		return apperror.NewValidation("owning client is required").
			WithDetail("field", "userId")
	}
	if _, err := ParseTypeOperation(string(o.Type)); err != nil {
		return err
	}
	if _, err := ParsePriorite(string(o.Priorite)); err != nil {
		return err
	}
	if !o.Etat.Valid() {
		return apperror.NewValidation("invalid operation state").
			WithDetail("field", "etat").
			WithDetail("value", int(o.Etat))
	}
	return nil
}

// Document is a file attached to an operation (cascade-deleted with it).
type Document struct {
	ID          id.ID     `db:"id" json:"id"`
	OperationID id.ID     `db:"operation_id" json:"operationId"`
	UserID      string    `db:"user_id" json:"userId"`
	Nom         string    `db:"nom" json:"nom"`
	Chemin      string    `db:"chemin" json:"-"`
	MimeType    string    `db:"mime_type" json:"mimeType,omitempty"`
	TailleOctet int64     `db:"taille_octet" json:"tailleOctet"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// NewDocument creates a document record for an operation.
func NewDocument(operationID id.ID, userID, nom, chemin, mimeType string, taille int64) *Document {
	return &Document{
		ID:          id.New(),
		OperationID: operationID,
		UserID:      userID,
		Nom:         nom,
		Chemin:      chemin,
		MimeType:    mimeType,
		TailleOctet: taille,
		CreatedAt:   time.Now().UTC(),
	}
}

// Commentaire is a free-form note on an operation (cascade-deleted with it).
type Commentaire struct {
	ID          id.ID     `db:"id" json:"id"`
	OperationID id.ID     `db:"operation_id" json:"operationId"`
	UserID      string    `db:"user_id" json:"userId"`
	Contenu     string    `db:"contenu" json:"contenu"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// NewCommentaire creates a comment on an operation.
func NewCommentaire(operationID id.ID, userID, contenu string) *Commentaire {
	return &Commentaire{
		ID:          id.New(),
		OperationID: operationID,
		UserID:      userID,
		Contenu:     contenu,
		CreatedAt:   time.Now().UTC(),
	}
}

// Historique is an immutable audit record: who did what to an operation.
// Rows are only ever inserted, and removed solely by cascade when the
// operation itself is deleted.
type Historique struct {
	ID          id.ID         `db:"id" json:"id"`
	OperationID id.ID         `db:"operation_id" json:"operationId"`
	UserID      string        `db:"user_id" json:"userId"`
	Action      string        `db:"action" json:"action"`
	Changes     []FieldChange `db:"-" json:"changes,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// NewHistorique creates an audit record.
func NewHistorique(operationID id.ID, userID, action string, changes []FieldChange) *Historique {
	return &Historique{
		ID:          id.New(),
		OperationID: operationID,
		UserID:      userID,
		Action:      action,
		Changes:     changes,
		CreatedAt:   time.Now().UTC(),
	}
}
