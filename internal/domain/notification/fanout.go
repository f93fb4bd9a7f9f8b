package notification

import (
	"context"
	"fmt"

	appctx "fretops/internal/core/context"
	"fretops/internal/domain/operation"
	"fretops/pkg/logger"
)

// RecipientDirectory resolves recipient sets and email addresses.
type RecipientDirectory interface {
	// UserIDsInRole returns every active user holding the role.
	UserIDsInRole(ctx context.Context, role string) ([]string, error)

	// Email returns the address of a user, empty when none is on file.
	Email(ctx context.Context, userID string) (string, error)
}

// EmailSender delivers one message. Failures must not fail the fan-out.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Fanout turns one committed operation event into notifications.
//
// Recipient rule: the operation's owning client is always notified; on top
// of that, the reserving agent when the operation is reserved, otherwise
// every administrator. The actor never receives their own event.
type Fanout struct {
	operations operation.Repository
	repo       Repository
	directory  RecipientDirectory
	email      EmailSender
}

// NewFanout creates the fan-out. email may be nil to disable mail delivery.
func NewFanout(operations operation.Repository, repo Repository, directory RecipientDirectory, email EmailSender) *Fanout {
	return &Fanout{operations: operations, repo: repo, directory: directory, email: email}
}

// Deliver resolves the recipients of ev and writes one in-app notification
// each, then sends emails best-effort. In-app write failures abort so the
// outbox relay can retry the event; email failures only log.
func (f *Fanout) Deliver(ctx context.Context, ev operation.Event) error {
	op, err := f.operations.GetByID(ctx, ev.OperationID)
	if err != nil {
		return fmt.Errorf("load operation %s: %w", ev.OperationID, err)
	}

	recipients, err := f.recipients(ctx, op, ev.ActorID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		logger.Debug(ctx, "event has no recipients",
			"event_type", ev.Type, "operation_id", ev.OperationID)
		return nil
	}

	for _, userID := range recipients {
		n := New(userID, ev.OperationID, ev.Type, ev.Message)
		if err := f.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("create notification for %s: %w", userID, err)
		}
	}
	logger.Info(ctx, "event fanned out",
		"event_type", ev.Type, "operation_id", ev.OperationID,
		"recipients", len(recipients))

	if f.email == nil {
		return nil
	}
	for _, userID := range recipients {
		addr, err := f.directory.Email(ctx, userID)
		if err != nil || addr == "" {
			continue
		}
		subject := fmt.Sprintf("Opération %s", ev.OperationID)
		if err := f.email.Send(ctx, addr, subject, ev.Message); err != nil {
			logger.Warn(ctx, "email delivery failed",
				"user_id", userID, "event_type", ev.Type, "error", err)
		}
	}
	return nil
}

func (f *Fanout) recipients(ctx context.Context, op *operation.Operation, actorID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(userID string) {
		if userID == "" || userID == actorID || seen[userID] {
			return
		}
		seen[userID] = true
		out = append(out, userID)
	}

	add(op.UserID)

	if op.EstReserver() {
		add(op.ReserverParValue())
		return out, nil
	}

	admins, err := f.directory.UserIDsInRole(ctx, appctx.RoleAdministrateur)
	if err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	for _, adminID := range admins {
		add(adminID)
	}
	return out, nil
}
