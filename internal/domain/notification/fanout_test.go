package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain"
	"fretops/internal/domain/operation"
)

type fakeOperations struct {
	op *operation.Operation
}

func (r *fakeOperations) GetByID(_ context.Context, opID id.ID) (*operation.Operation, error) {
	if r.op == nil || r.op.ID != opID {
		return nil, apperror.NewNotFound("operation", opID)
	}
	return r.op, nil
}

func (r *fakeOperations) Create(context.Context, *operation.Operation) error { return nil }
func (r *fakeOperations) Update(context.Context, *operation.Operation) error { return nil }
func (r *fakeOperations) Delete(context.Context, id.ID) error                { return nil }
func (r *fakeOperations) List(context.Context, operation.ListFilter) (domain.ListResult[*operation.Operation], error) {
	return domain.ListResult[*operation.Operation]{}, nil
}
func (r *fakeOperations) ListWithDossier(context.Context, operation.ListFilter) ([]*operation.Operation, error) {
	return nil, nil
}
func (r *fakeOperations) CodeDossierExists(context.Context, string) (bool, error) {
	return false, nil
}
func (r *fakeOperations) ClaimReservation(context.Context, id.ID, string) (bool, error) {
	return false, nil
}
func (r *fakeOperations) AddDocument(context.Context, *operation.Document) error { return nil }
func (r *fakeOperations) GetDocument(context.Context, id.ID) (*operation.Document, error) {
	return nil, nil
}
func (r *fakeOperations) ListDocuments(context.Context, id.ID) ([]operation.Document, error) {
	return nil, nil
}
func (r *fakeOperations) DeleteDocument(context.Context, id.ID) error { return nil }
func (r *fakeOperations) AddCommentaire(context.Context, *operation.Commentaire) error {
	return nil
}
func (r *fakeOperations) ListCommentaires(context.Context, id.ID) ([]operation.Commentaire, error) {
	return nil, nil
}

type fakeNotifications struct {
	created []*Notification
	fail    bool
}

func (r *fakeNotifications) Create(_ context.Context, n *Notification) error {
	if r.fail {
		return errors.New("insert failed")
	}
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotifications) List(context.Context, ListFilter) (domain.ListResult[*Notification], error) {
	return domain.ListResult[*Notification]{}, nil
}
func (r *fakeNotifications) CountUnread(context.Context, string) (int64, error) { return 0, nil }
func (r *fakeNotifications) MarkRead(context.Context, id.ID, string) error      { return nil }
func (r *fakeNotifications) MarkAllRead(context.Context, string) error          { return nil }

type fakeDirectory struct {
	admins []string
	emails map[string]string
}

func (d *fakeDirectory) UserIDsInRole(_ context.Context, _ string) ([]string, error) {
	return d.admins, nil
}

func (d *fakeDirectory) Email(_ context.Context, userID string) (string, error) {
	return d.emails[userID], nil
}

type fakeEmail struct {
	sent []string
	fail bool
}

func (e *fakeEmail) Send(_ context.Context, to, _, _ string) error {
	if e.fail {
		return errors.New("smtp unavailable")
	}
	e.sent = append(e.sent, to)
	return nil
}

func recipientIDs(created []*Notification) []string {
	out := make([]string, len(created))
	for i, n := range created {
		out[i] = n.UserID
	}
	return out
}

func TestFanout_UnreservedGoesToClientAndAdmins(t *testing.T) {
	op := operation.New("client-1", operation.TypeImport)
	repo := &fakeNotifications{}
	f := NewFanout(
		&fakeOperations{op: op},
		repo,
		&fakeDirectory{admins: []string{"admin-1", "admin-2"}},
		nil,
	)

	err := f.Deliver(context.Background(), operation.Event{
		Type:        operation.EventDetailsUpdated,
		OperationID: op.ID,
		ActorID:     "agent-1",
		Message:     "L'opération a été mise à jour",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"client-1", "admin-1", "admin-2"}, recipientIDs(repo.created))
}

func TestFanout_ReservedGoesToClientAndAgent(t *testing.T) {
	op := operation.New("client-1", operation.TypeImport)
	op.SetReserverPar("agent-7")
	repo := &fakeNotifications{}
	f := NewFanout(
		&fakeOperations{op: op},
		repo,
		&fakeDirectory{admins: []string{"admin-1"}},
		nil,
	)

	err := f.Deliver(context.Background(), operation.Event{
		Type:        operation.EventDocumentAdded,
		OperationID: op.ID,
		ActorID:     "client-1",
		Message:     "Un document a été ajouté",
	})
	require.NoError(t, err)

	// Admins stay out once an agent holds the operation, and the acting
	// client does not get notified of their own upload.
	assert.ElementsMatch(t, []string{"agent-7"}, recipientIDs(repo.created))
}

func TestFanout_ActorExcluded(t *testing.T) {
	op := operation.New("client-1", operation.TypeImport)
	op.SetReserverPar("agent-7")
	repo := &fakeNotifications{}
	f := NewFanout(&fakeOperations{op: op}, repo, &fakeDirectory{}, nil)

	err := f.Deliver(context.Background(), operation.Event{
		Type:        operation.EventDetailsUpdated,
		OperationID: op.ID,
		ActorID:     "agent-7",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"client-1"}, recipientIDs(repo.created))
}

func TestFanout_EmailBestEffort(t *testing.T) {
	op := operation.New("client-1", operation.TypeImport)
	op.SetReserverPar("agent-7")
	repo := &fakeNotifications{}
	email := &fakeEmail{fail: true}
	f := NewFanout(
		&fakeOperations{op: op},
		repo,
		&fakeDirectory{emails: map[string]string{"client-1": "atlas@example.com"}},
		email,
	)

	// Email failure never fails delivery; the in-app notifications stand.
	err := f.Deliver(context.Background(), operation.Event{
		Type:        operation.EventDetailsUpdated,
		OperationID: op.ID,
		ActorID:     "agent-7",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"client-1"}, recipientIDs(repo.created))
	assert.Empty(t, email.sent)
}

func TestFanout_InAppFailureAborts(t *testing.T) {
	op := operation.New("client-1", operation.TypeImport)
	op.SetReserverPar("agent-7")
	repo := &fakeNotifications{fail: true}
	f := NewFanout(&fakeOperations{op: op}, repo, &fakeDirectory{}, nil)

	// The relay retries the event when the in-app write fails.
	err := f.Deliver(context.Background(), operation.Event{
		Type:        operation.EventDetailsUpdated,
		OperationID: op.ID,
		ActorID:     "someone-else",
	})
	require.Error(t, err)
}
