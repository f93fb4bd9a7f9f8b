package facture

import (
	"context"

	"github.com/shopspring/decimal"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/core/tx"
	"fretops/internal/domain"
	"fretops/pkg/logger"
)

// Service provides invoice management. Creation and payment registration are
// staff operations; clients read their own invoices through their CodeClient.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates the facture service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

func (s *Service) actor(ctx context.Context) (*appctx.UserContext, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return user, nil
}

// Create registers a new invoice. Staff only.
func (s *Service) Create(ctx context.Context, f *Facture) error {
	if _, err := s.actor(ctx); err != nil {
		return err
	}
	if !appctx.IsStaff(ctx) {
		return apperror.NewForbidden("only staff may create invoices")
	}
	if err := f.Validate(ctx); err != nil {
		return err
	}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, f)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "facture created",
		"facture_id", f.ID, "numero", f.Numero, "code_dossier", f.CodeDossier)
	return nil
}

// GetByID retrieves an invoice; clients only see invoices billed to their
// own client code.
func (s *Service) GetByID(ctx context.Context, factureID id.ID) (*Facture, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.GetByID(ctx, factureID)
	if err != nil {
		return nil, err
	}
	if !appctx.IsStaff(ctx) && f.CodeClient != actor.CodeClient {
		return nil, apperror.NewForbidden("invoice belongs to another client")
	}
	return f, nil
}

// List retrieves invoices. Clients are pinned to their own client code.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Facture], error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ListResult[*Facture]{}, err
	}
	if !appctx.IsStaff(ctx) {
		if actor.CodeClient == "" {
			return domain.ListResult[*Facture]{Limit: filter.Limit, Offset: filter.Offset}, nil
		}
		filter.CodeClient = actor.CodeClient
		filter.CodeClients = nil
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// RegisterPayment records a received amount against the invoice and
// recomputes its payment state, under optimistic locking. Staff only.
func (s *Service) RegisterPayment(ctx context.Context, factureID id.ID, amount decimal.Decimal) (*Facture, error) {
	if _, err := s.actor(ctx); err != nil {
		return nil, err
	}
	if !appctx.IsStaff(ctx) {
		return nil, apperror.NewForbidden("only staff may register payments")
	}

	var updated *Facture
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		f, err := s.repo.GetByID(ctx, factureID)
		if err != nil {
			return err
		}
		if err := f.RegisterPayment(amount); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, f); err != nil {
			return err
		}
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "payment registered",
		"facture_id", factureID, "montant", amount.String(),
		"etat_payement", updated.EtatPayement)
	return updated, nil
}

// Delete removes an invoice. Administrators only.
func (s *Service) Delete(ctx context.Context, factureID id.ID) error {
	if _, err := s.actor(ctx); err != nil {
		return err
	}
	if !appctx.HasRole(ctx, appctx.RoleAdministrateur) {
		return apperror.NewForbidden("only administrators may delete invoices")
	}
	if err := s.repo.Delete(ctx, factureID); err != nil {
		return err
	}
	logger.Info(ctx, "facture deleted", "facture_id", factureID)
	return nil
}
