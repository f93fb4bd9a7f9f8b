package operation

import (
	"context"
	"fmt"
	"strings"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/core/tx"
	"fretops/internal/domain"
	"fretops/pkg/logger"
)

// Service provides business operations on customs dossiers.
//
// Every mutating command runs inside one transaction: entity update, then
// historique insert, then event publication. Notifications are delivered by
// the fan-out worker strictly after commit, so the audit trail and the
// notification stream only ever reflect committed changes.
type Service struct {
	repo       Repository
	historique HistoriqueRecorder
	directory  IdentityDirectory
	dossiers   DossierLookup
	events     EventSink
	txManager  tx.Manager
}

// NewService creates the operation service.
func NewService(
	repo Repository,
	historique HistoriqueRecorder,
	directory IdentityDirectory,
	dossiers DossierLookup,
	events EventSink,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:       repo,
		historique: historique,
		directory:  directory,
		dossiers:   dossiers,
		events:     events,
		txManager:  txManager,
	}
}

func (s *Service) actor(ctx context.Context) (*appctx.UserContext, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return user, nil
}

// capabilitiesOf resolves the staff capability set through the role
// directory. The JWT carries roles too, but the directory is authoritative:
// a revoked role takes effect without waiting for token expiry.
func (s *Service) capabilitiesOf(ctx context.Context, userID string) (Capabilities, error) {
	agent, err := s.directory.IsInRole(ctx, userID, appctx.RoleAgent)
	if err != nil {
		return Capabilities{}, err
	}
	admin, err := s.directory.IsInRole(ctx, userID, appctx.RoleAdministrateur)
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{Agent: agent, Admin: admin}, nil
}

func clientOnly(user *appctx.UserContext) bool {
	for _, r := range user.Roles {
		if r == appctx.RoleAgent || r == appctx.RoleAdministrateur {
			return false
		}
	}
	return true
}

// Create registers a new operation, with optional initial documents and
// comments; the whole write commits atomically or not at all.
func (s *Service) Create(ctx context.Context, op *Operation, docs []Document, comments []Commentaire) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}

	// Clients always create for themselves; staff create on behalf.
	if clientOnly(actor) || op.UserID == "" {
		op.UserID = actor.UserID
	}

	if err := op.Validate(ctx); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, op); err != nil {
			return fmt.Errorf("create operation: %w", err)
		}
		for i := range docs {
			docs[i].OperationID = op.ID
			if docs[i].UserID == "" {
				docs[i].UserID = actor.UserID
			}
			if err := s.repo.AddDocument(ctx, &docs[i]); err != nil {
				return fmt.Errorf("attach document: %w", err)
			}
		}
		for i := range comments {
			comments[i].OperationID = op.ID
			if comments[i].UserID == "" {
				comments[i].UserID = actor.UserID
			}
			if err := s.repo.AddCommentaire(ctx, &comments[i]); err != nil {
				return fmt.Errorf("attach commentaire: %w", err)
			}
		}
		h := NewHistorique(op.ID, actor.UserID, "Opération créée", nil)
		if err := s.historique.Record(ctx, h); err != nil {
			return fmt.Errorf("record historique: %w", err)
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventCreated,
			OperationID: op.ID,
			ActorID:     actor.UserID,
			Message:     fmt.Sprintf("Nouvelle opération %s (%s) déposée", op.ID, op.Type),
		}})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "operation created", "operation_id", op.ID, "type", op.Type)
	return nil
}

// GetByID retrieves an operation; clients only see their own.
func (s *Service) GetByID(ctx context.Context, opID id.ID) (*Operation, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	op, err := s.repo.GetByID(ctx, opID)
	if err != nil {
		return nil, err
	}
	if clientOnly(actor) && op.UserID != actor.UserID {
		return nil, apperror.NewForbidden("operation belongs to another client")
	}
	return op, nil
}

// List retrieves operations. Clients are pinned to their own operations;
// staff with an operation-type scope only see that type.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Operation], error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ListResult[*Operation]{}, err
	}
	if clientOnly(actor) {
		filter.UserID = actor.UserID
	} else {
		scope, err := s.directory.OperationTypeScope(ctx, actor.UserID)
		if err != nil {
			return domain.ListResult[*Operation]{}, err
		}
		if scope != nil {
			filter.Types = []TypeOperation{*scope}
		}
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// UpdateDetails applies the staff field-update command under the mutation
// policy. A command that changes nothing is a successful no-op with no side
// effects beyond a diagnostic log line.
func (s *Service) UpdateDetails(ctx context.Context, opID id.ID, cmd UpdateDetailsCommand) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	caps, err := s.capabilitiesOf(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !caps.Staff() {
		return apperror.NewValidation("invalid staff id value").
			WithDetail("userId", actor.UserID)
	}

	op, err := s.repo.GetByID(ctx, opID)
	if err != nil {
		return err
	}

	codeDossierValid, err := s.codeDossierValid(ctx, cmd.CodeDossier)
	if err != nil {
		return err
	}

	next, changes, err := PlanUpdate(*op, cmd, caps, codeDossierValid)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		logger.Debug(ctx, "operation update is a no-op", "operation_id", opID)
		return nil
	}

	username, err := s.directory.DisplayName(ctx, actor.UserID)
	if err != nil {
		return apperror.NewValidation("invalid staff id value").
			WithDetail("userId", actor.UserID).
			WithCause(err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, &next); err != nil {
			return err
		}
		h := NewHistorique(opID, actor.UserID,
			fmt.Sprintf("Détails de l'opération modifiés par %s", username), changes)
		if err := s.historique.Record(ctx, h); err != nil {
			return fmt.Errorf("record historique: %w", err)
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventDetailsUpdated,
			OperationID: opID,
			ActorID:     actor.UserID,
			Message: fmt.Sprintf("L'opération %s a été mise à jour par %s (%s)",
				opID, username, changedFields(changes)),
			Changes: changes,
		}})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "operation details updated",
		"operation_id", opID, "fields", changedFields(changes))
	return nil
}

// ClientUpdateDetails applies the self-service command on the caller's own
// operation, only while it is still in the intake stage.
func (s *Service) ClientUpdateDetails(ctx context.Context, opID id.ID, cmd ClientUpdateCommand) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	op, err := s.repo.GetByID(ctx, opID)
	if err != nil {
		return err
	}
	if op.UserID != actor.UserID {
		return apperror.NewForbidden("operation belongs to another client")
	}

	next, changes, err := PlanClientUpdate(*op, cmd)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		logger.Debug(ctx, "client update is a no-op", "operation_id", opID)
		return nil
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, &next); err != nil {
			return err
		}
		h := NewHistorique(opID, actor.UserID, "Détails modifiés par le client", changes)
		if err := s.historique.Record(ctx, h); err != nil {
			return fmt.Errorf("record historique: %w", err)
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventDetailsUpdated,
			OperationID: opID,
			ActorID:     actor.UserID,
			Message: fmt.Sprintf("Le client a modifié l'opération %s (%s)",
				opID, changedFields(changes)),
			Changes: changes,
		}})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "operation updated by client", "operation_id", opID)
	return nil
}

// Reserver claims an unreserved operation for the acting agent. First agent
// to commit wins; a losing concurrent attempt observes the reservation and
// returns success without touching anything.
func (s *Service) Reserver(ctx context.Context, opID id.ID) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	isAgent, err := s.directory.IsInRole(ctx, actor.UserID, appctx.RoleAgent)
	if err != nil {
		return err
	}
	if !isAgent {
		return apperror.NewForbidden("only agents may reserve operations")
	}

	var claimed bool
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		claimed, err = s.repo.ClaimReservation(ctx, opID, actor.UserID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		username, err := s.directory.DisplayName(ctx, actor.UserID)
		if err != nil {
			username = actor.UserID
		}
		h := NewHistorique(opID, actor.UserID,
			fmt.Sprintf("Opération réservée par %s", username), nil)
		if err := s.historique.Record(ctx, h); err != nil {
			return fmt.Errorf("record historique: %w", err)
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventReserved,
			OperationID: opID,
			ActorID:     actor.UserID,
			Message:     fmt.Sprintf("L'opération %s a été réservée par %s", opID, username),
		}})
	})
	if err != nil {
		return err
	}

	if !claimed {
		logger.Info(ctx, "operation already reserved", "operation_id", opID)
		return nil
	}
	logger.Info(ctx, "operation reserved", "operation_id", opID, "agent_id", actor.UserID)
	return nil
}

// Delete removes an operation and its owned collections. Administrators only;
// not exposed in the normal client/agent flow.
func (s *Service) Delete(ctx context.Context, opID id.ID) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	isAdmin, err := s.directory.IsInRole(ctx, actor.UserID, appctx.RoleAdministrateur)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apperror.NewForbidden("only administrators may delete operations")
	}
	if err := s.repo.Delete(ctx, opID); err != nil {
		return err
	}
	logger.Info(ctx, "operation deleted", "operation_id", opID)
	return nil
}

// AddDocument attaches a file record. Clients may attach to their own
// operations at any stage except cloture; staff are unrestricted.
func (s *Service) AddDocument(ctx context.Context, opID id.ID, doc *Document) error {
	actor, err := s.actor(ctx)
	if err != nil {
		return err
	}
	op, err := s.repo.GetByID(ctx, opID)
	if err != nil {
		return err
	}
	if clientOnly(actor) {
		if op.UserID != actor.UserID {
			return apperror.NewForbidden("operation belongs to another client")
		}
		if op.Etat.IsCloture() {
			return apperror.NewBusinessRule(
				apperror.CodeOperationCloturee,
				"documents cannot be added to a closed operation",
			)
		}
	}

	doc.OperationID = opID
	if doc.UserID == "" {
		doc.UserID = actor.UserID
	}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AddDocument(ctx, doc); err != nil {
			return err
		}
		h := NewHistorique(opID, actor.UserID,
			fmt.Sprintf("Document ajouté: %s", doc.Nom), nil)
		if err := s.historique.Record(ctx, h); err != nil {
			return fmt.Errorf("record historique: %w", err)
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventDocumentAdded,
			OperationID: opID,
			ActorID:     actor.UserID,
			Message:     fmt.Sprintf("Un document a été ajouté à l'opération %s: %s", opID, doc.Nom),
		}})
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "document added", "operation_id", opID, "nom", doc.Nom)
	return nil
}

// AddCommentaire attaches a comment. Comments carry no stage restriction.
func (s *Service) AddCommentaire(ctx context.Context, opID id.ID, contenu string) (*Commentaire, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(contenu) == "" {
		return nil, apperror.NewValidation("comment content is required").
			WithDetail("field", "contenu")
	}
	op, err := s.repo.GetByID(ctx, opID)
	if err != nil {
		return nil, err
	}
	if clientOnly(actor) && op.UserID != actor.UserID {
		return nil, apperror.NewForbidden("operation belongs to another client")
	}

	c := NewCommentaire(opID, actor.UserID, contenu)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AddCommentaire(ctx, c); err != nil {
			return err
		}
		return s.events.Publish(ctx, []Event{{
			Type:        EventCommentAdded,
			OperationID: opID,
			ActorID:     actor.UserID,
			Message:     fmt.Sprintf("Nouveau commentaire sur l'opération %s", opID),
		}})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListDocuments returns the documents of an operation the caller may see.
func (s *Service) ListDocuments(ctx context.Context, opID id.ID) ([]Document, error) {
	if _, err := s.GetByID(ctx, opID); err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, opID)
}

// GetDocument returns one document of an operation the caller may see.
func (s *Service) GetDocument(ctx context.Context, opID, docID id.ID) (*Document, error) {
	if _, err := s.GetByID(ctx, opID); err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OperationID != opID {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return doc, nil
}

// ListCommentaires returns the comments of an operation the caller may see.
func (s *Service) ListCommentaires(ctx context.Context, opID id.ID) ([]Commentaire, error) {
	if _, err := s.GetByID(ctx, opID); err != nil {
		return nil, err
	}
	return s.repo.ListCommentaires(ctx, opID)
}

// ListHistoriques returns the audit trail of an operation the caller may see.
func (s *Service) ListHistoriques(ctx context.Context, opID id.ID, limit int) ([]Historique, error) {
	if _, err := s.GetByID(ctx, opID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.historique.ListByOperation(ctx, opID, limit)
}

// codeDossierValid applies the closure invariant's validity rule: the code
// is non-blank and resolves to at least one known dossier record.
func (s *Service) codeDossierValid(ctx context.Context, code string) (bool, error) {
	if strings.TrimSpace(code) == "" {
		return false, nil
	}
	return s.dossiers.Exists(ctx, code)
}

func changedFields(changes []FieldChange) string {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Field
	}
	return strings.Join(names, ", ")
}
