package dto

import (
	"time"

	"fretops/internal/domain/operation"
)

// --- Request DTOs ---

// CreateOperationRequest opens a new operation. Clients always create for
// themselves; staff may set userId to create on behalf of a client.
type CreateOperationRequest struct {
	TypeOperation string `json:"typeOperation" binding:"required"`
	Bureau        string `json:"bureau,omitempty"`
	Regime        string `json:"regime,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Commentaire   string `json:"commentaire,omitempty"`
}

// ToEntity builds the operation aggregate.
func (r *CreateOperationRequest) ToEntity() (*operation.Operation, error) {
	typeOp, err := operation.ParseTypeOperation(r.TypeOperation)
	if err != nil {
		return nil, err
	}
	op := operation.New(r.UserID, typeOp)
	op.Bureau = r.Bureau
	op.Regime = r.Regime
	return op, nil
}

// UpdateOperationRequest is the staff field-update form. Omitted fields keep
// their stored value; present fields are the full requested value.
type UpdateOperationRequest struct {
	TypeOperation            *string `json:"typeOperation"`
	CodeDossier              *string `json:"codeDossier"`
	Priorite                 *string `json:"priorite"`
	Etat                     *string `json:"etat"`
	Bureau                   *string `json:"bureau"`
	TR                       *bool   `json:"tr"`
	Debours                  *bool   `json:"debours"`
	ConfirmationDedouanement *bool   `json:"confirmationDedouanement"`
	Regime                   *string `json:"regime"`
	ReserverPar              *string `json:"reserverPar"`
}

// ToCommand fills the command from the current snapshot, overriding with the
// requested values.
func (r *UpdateOperationRequest) ToCommand(current *operation.Operation) (operation.UpdateDetailsCommand, error) {
	cmd := operation.UpdateDetailsCommand{
		Type:                     current.Type,
		CodeDossier:              current.CodeDossierValue(),
		Priorite:                 current.Priorite,
		Etat:                     current.Etat,
		Bureau:                   current.Bureau,
		TR:                       current.TR,
		Debours:                  current.Debours,
		ConfirmationDedouanement: current.ConfirmationDedouanement,
		Regime:                   current.Regime,
		ReserverPar:              current.ReserverParValue(),
	}

	if r.TypeOperation != nil {
		typeOp, err := operation.ParseTypeOperation(*r.TypeOperation)
		if err != nil {
			return cmd, err
		}
		cmd.Type = typeOp
	}
	if r.CodeDossier != nil {
		cmd.CodeDossier = *r.CodeDossier
	}
	if r.Priorite != nil {
		priorite, err := operation.ParsePriorite(*r.Priorite)
		if err != nil {
			return cmd, err
		}
		cmd.Priorite = priorite
	}
	if r.Etat != nil {
		etat, err := operation.ParseEtat(*r.Etat)
		if err != nil {
			return cmd, err
		}
		cmd.Etat = etat
	}
	if r.Bureau != nil {
		cmd.Bureau = *r.Bureau
	}
	if r.TR != nil {
		cmd.TR = *r.TR
	}
	if r.Debours != nil {
		cmd.Debours = *r.Debours
	}
	if r.ConfirmationDedouanement != nil {
		cmd.ConfirmationDedouanement = *r.ConfirmationDedouanement
	}
	if r.Regime != nil {
		cmd.Regime = *r.Regime
	}
	if r.ReserverPar != nil {
		cmd.ReserverPar = *r.ReserverPar
	}
	return cmd, nil
}

// ClientUpdateOperationRequest is the client self-service form.
type ClientUpdateOperationRequest struct {
	TypeOperation *string `json:"typeOperation"`
	Bureau        *string `json:"bureau"`
	Regime        *string `json:"regime"`
}

// ToCommand fills the command from the current snapshot.
func (r *ClientUpdateOperationRequest) ToCommand(current *operation.Operation) (operation.ClientUpdateCommand, error) {
	cmd := operation.ClientUpdateCommand{
		Type:   current.Type,
		Bureau: current.Bureau,
		Regime: current.Regime,
	}
	if r.TypeOperation != nil {
		typeOp, err := operation.ParseTypeOperation(*r.TypeOperation)
		if err != nil {
			return cmd, err
		}
		cmd.Type = typeOp
	}
	if r.Bureau != nil {
		cmd.Bureau = *r.Bureau
	}
	if r.Regime != nil {
		cmd.Regime = *r.Regime
	}
	return cmd, nil
}

// CreateCommentaireRequest attaches a comment.
type CreateCommentaireRequest struct {
	Contenu string `json:"contenu" binding:"required"`
}

// --- Response DTOs ---

// OperationResponse represents an operation in API responses.
type OperationResponse struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"userId"`
	ReserverPar              string    `json:"reserverPar,omitempty"`
	EstReserver              bool      `json:"estReserver"`
	TypeOperation            string    `json:"typeOperation"`
	Priorite                 string    `json:"priorite"`
	Etat                     string    `json:"etat"`
	Regime                   string    `json:"regime,omitempty"`
	Bureau                   string    `json:"bureau,omitempty"`
	CodeDossier              string    `json:"codeDossier,omitempty"`
	TR                       bool      `json:"tr"`
	Debours                  bool      `json:"debours"`
	ConfirmationDedouanement bool      `json:"confirmationDedouanement"`
	Version                  int       `json:"version"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// FromOperation creates response from domain operation.
func FromOperation(op *operation.Operation) *OperationResponse {
	return &OperationResponse{
		ID:                       op.ID.String(),
		UserID:                   op.UserID,
		ReserverPar:              op.ReserverParValue(),
		EstReserver:              op.EstReserver(),
		TypeOperation:            string(op.Type),
		Priorite:                 string(op.Priorite),
		Etat:                     op.Etat.String(),
		Regime:                   op.Regime,
		Bureau:                   op.Bureau,
		CodeDossier:              op.CodeDossierValue(),
		TR:                       op.TR,
		Debours:                  op.Debours,
		ConfirmationDedouanement: op.ConfirmationDedouanement,
		Version:                  op.Version,
		CreatedAt:                op.CreatedAt,
		UpdatedAt:                op.UpdatedAt,
	}
}

// DocumentResponse represents an attached document.
type DocumentResponse struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operationId"`
	UserID      string    `json:"userId"`
	Nom         string    `json:"nom"`
	MimeType    string    `json:"mimeType,omitempty"`
	TailleOctet int64     `json:"tailleOctet"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromDocument creates response from domain document.
func FromDocument(d *operation.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID.String(),
		OperationID: d.OperationID.String(),
		UserID:      d.UserID,
		Nom:         d.Nom,
		MimeType:    d.MimeType,
		TailleOctet: d.TailleOctet,
		CreatedAt:   d.CreatedAt,
	}
}

// CommentaireResponse represents a comment.
type CommentaireResponse struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operationId"`
	UserID      string    `json:"userId"`
	Contenu     string    `json:"contenu"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FromCommentaire creates response from domain comment.
func FromCommentaire(c *operation.Commentaire) *CommentaireResponse {
	return &CommentaireResponse{
		ID:          c.ID.String(),
		OperationID: c.OperationID.String(),
		UserID:      c.UserID,
		Contenu:     c.Contenu,
		CreatedAt:   c.CreatedAt,
	}
}

// HistoriqueResponse represents one audit record.
type HistoriqueResponse struct {
	ID          string                  `json:"id"`
	OperationID string                  `json:"operationId"`
	UserID      string                  `json:"userId"`
	Action      string                  `json:"action"`
	Changes     []operation.FieldChange `json:"changes,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// FromHistorique creates response from domain audit record.
func FromHistorique(h *operation.Historique) *HistoriqueResponse {
	return &HistoriqueResponse{
		ID:          h.ID.String(),
		OperationID: h.OperationID.String(),
		UserID:      h.UserID,
		Action:      h.Action,
		Changes:     h.Changes,
		CreatedAt:   h.CreatedAt,
	}
}
