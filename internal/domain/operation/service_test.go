package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain"
)

// --- In-memory fakes ---

type fakeRepo struct {
	ops          map[id.ID]*Operation
	docs         []Document
	comments     []Commentaire
	updates      int
	claimedBy    map[id.ID]string
	failUpdate   error
	dossierCodes map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ops:          make(map[id.ID]*Operation),
		claimedBy:    make(map[id.ID]string),
		dossierCodes: make(map[string]bool),
	}
}

func (r *fakeRepo) Create(_ context.Context, op *Operation) error {
	cp := *op
	r.ops[op.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, opID id.ID) (*Operation, error) {
	op, ok := r.ops[opID]
	if !ok {
		return nil, apperror.NewNotFound("operation", opID)
	}
	cp := *op
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, op *Operation) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	stored, ok := r.ops[op.ID]
	if !ok {
		return apperror.NewNotFound("operation", op.ID)
	}
	if stored.Version != op.Version {
		return apperror.NewConcurrentModification("operation", op.ID)
	}
	cp := *op
	cp.Version++
	r.ops[op.ID] = &cp
	r.updates++
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, opID id.ID) error {
	if _, ok := r.ops[opID]; !ok {
		return apperror.NewNotFound("operation", opID)
	}
	delete(r.ops, opID)
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) (domain.ListResult[*Operation], error) {
	var items []*Operation
	for _, op := range r.ops {
		if filter.UserID != "" && op.UserID != filter.UserID {
			continue
		}
		if len(filter.Types) > 0 && op.Type != filter.Types[0] {
			continue
		}
		cp := *op
		items = append(items, &cp)
	}
	return domain.ListResult[*Operation]{
		Items: items, TotalCount: int64(len(items)),
		Limit: filter.Limit, Offset: filter.Offset,
	}, nil
}

func (r *fakeRepo) ListWithDossier(_ context.Context, _ ListFilter) ([]*Operation, error) {
	var items []*Operation
	for _, op := range r.ops {
		if op.CodeDossierValue() != "" {
			cp := *op
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (r *fakeRepo) CodeDossierExists(_ context.Context, code string) (bool, error) {
	return r.dossierCodes[code], nil
}

func (r *fakeRepo) ClaimReservation(_ context.Context, opID id.ID, agentID string) (bool, error) {
	op, ok := r.ops[opID]
	if !ok {
		return false, apperror.NewNotFound("operation", opID)
	}
	if op.EstReserver() {
		return false, nil
	}
	op.SetReserverPar(agentID)
	r.claimedBy[opID] = agentID
	return true, nil
}

func (r *fakeRepo) AddDocument(_ context.Context, doc *Document) error {
	r.docs = append(r.docs, *doc)
	return nil
}

func (r *fakeRepo) GetDocument(_ context.Context, docID id.ID) (*Document, error) {
	for i := range r.docs {
		if r.docs[i].ID == docID {
			return &r.docs[i], nil
		}
	}
	return nil, apperror.NewNotFound("document", docID)
}

func (r *fakeRepo) ListDocuments(_ context.Context, opID id.ID) ([]Document, error) {
	var out []Document
	for _, d := range r.docs {
		if d.OperationID == opID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteDocument(_ context.Context, docID id.ID) error {
	for i := range r.docs {
		if r.docs[i].ID == docID {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("document", docID)
}

func (r *fakeRepo) AddCommentaire(_ context.Context, c *Commentaire) error {
	r.comments = append(r.comments, *c)
	return nil
}

func (r *fakeRepo) ListCommentaires(_ context.Context, opID id.ID) ([]Commentaire, error) {
	var out []Commentaire
	for _, c := range r.comments {
		if c.OperationID == opID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeHistorique struct {
	records []Historique
}

func (h *fakeHistorique) Record(_ context.Context, rec *Historique) error {
	h.records = append(h.records, *rec)
	return nil
}

func (h *fakeHistorique) ListByOperation(_ context.Context, opID id.ID, _ int) ([]Historique, error) {
	var out []Historique
	for _, r := range h.records {
		if r.OperationID == opID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	roles map[string][]string
	names map[string]string
	scope map[string]TypeOperation
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		roles: make(map[string][]string),
		names: make(map[string]string),
		scope: make(map[string]TypeOperation),
	}
}

func (d *fakeDirectory) IsInRole(_ context.Context, userID, role string) (bool, error) {
	for _, r := range d.roles[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) DisplayName(_ context.Context, userID string) (string, error) {
	name, ok := d.names[userID]
	if !ok {
		return "", apperror.NewNotFound("user", userID)
	}
	return name, nil
}

func (d *fakeDirectory) OperationTypeScope(_ context.Context, userID string) (*TypeOperation, error) {
	if t, ok := d.scope[userID]; ok {
		return &t, nil
	}
	return nil, nil
}

type fakeDossiers struct {
	codes map[string]bool
}

func (d *fakeDossiers) Exists(_ context.Context, code string) (bool, error) {
	return d.codes[code], nil
}

type fakeSink struct {
	events []Event
}

func (s *fakeSink) Publish(_ context.Context, events []Event) error {
	s.events = append(s.events, events...)
	return nil
}

// noopTx runs the function directly; rollback behavior is exercised through
// the postgres TxManager tests, not here.
type noopTx struct{}

func (noopTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Fixture ---

type fixture struct {
	svc        *Service
	repo       *fakeRepo
	historique *fakeHistorique
	directory  *fakeDirectory
	dossiers   *fakeDossiers
	sink       *fakeSink
}

func newFixture() *fixture {
	f := &fixture{
		repo:       newFakeRepo(),
		historique: &fakeHistorique{},
		directory:  newFakeDirectory(),
		dossiers:   &fakeDossiers{codes: make(map[string]bool)},
		sink:       &fakeSink{},
	}
	f.directory.roles["agent-1"] = []string{appctx.RoleAgent}
	f.directory.names["agent-1"] = "Karim Alaoui"
	f.directory.roles["admin-1"] = []string{appctx.RoleAdministrateur}
	f.directory.names["admin-1"] = "Salma Bennani"
	f.directory.names["client-1"] = "Société Atlas Export"
	f.svc = NewService(f.repo, f.historique, f.directory, f.dossiers, f.sink, noopTx{})
	return f
}

func ctxAs(userID string, roles ...string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: userID,
		Roles:  roles,
	})
}

func (f *fixture) seedOperation(t *testing.T, userID string) *Operation {
	t.Helper()
	op := New(userID, TypeImport)
	op.Etat = EtatEnCours
	op.Bureau = "Casablanca"
	require.NoError(t, f.repo.Create(context.Background(), op))
	return op
}

// --- Tests ---

func TestService_UpdateDetails_RequiresAuthentication(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	err := f.svc.UpdateDetails(context.Background(), op.ID, commandFrom(*op))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestService_UpdateDetails_RejectsNonStaff(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	err := f.svc.UpdateDetails(ctxAs("client-1", appctx.RoleClient), op.ID, commandFrom(*op))
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Zero(t, f.repo.updates)
}

func TestService_UpdateDetails_NoOpSkipsSideEffects(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	err := f.svc.UpdateDetails(ctxAs("agent-1", appctx.RoleAgent), op.ID, commandFrom(*op))
	require.NoError(t, err)
	assert.Zero(t, f.repo.updates)
	assert.Empty(t, f.historique.records)
	assert.Empty(t, f.sink.events)
}

func TestService_UpdateDetails_RecordsHistoryAndEvent(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	cmd := commandFrom(*op)
	cmd.Etat = EtatPesage
	err := f.svc.UpdateDetails(ctxAs("agent-1", appctx.RoleAgent), op.ID, cmd)
	require.NoError(t, err)

	stored, err := f.repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, EtatPesage, stored.Etat)
	assert.Equal(t, op.Version+1, stored.Version)

	require.Len(t, f.historique.records, 1)
	assert.Equal(t, "Détails de l'opération modifiés par Karim Alaoui", f.historique.records[0].Action)
	assert.Equal(t, "agent-1", f.historique.records[0].UserID)
	require.Len(t, f.historique.records[0].Changes, 1)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, EventDetailsUpdated, f.sink.events[0].Type)
	assert.Equal(t, op.ID, f.sink.events[0].OperationID)
}

func TestService_UpdateDetails_IsIdempotent(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	cmd := commandFrom(*op)
	cmd.Bureau = "Tanger Med"
	ctx := ctxAs("agent-1", appctx.RoleAgent)

	require.NoError(t, f.svc.UpdateDetails(ctx, op.ID, cmd))
	require.NoError(t, f.svc.UpdateDetails(ctx, op.ID, cmd))

	// Replaying the same command changes nothing the second time.
	assert.Equal(t, 1, f.repo.updates)
	assert.Len(t, f.historique.records, 1)
	assert.Len(t, f.sink.events, 1)
}

func TestService_UpdateDetails_ClosureEndToEnd(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")
	op.Etat = EtatMainLevee
	require.NoError(t, f.repo.Update(context.Background(), op))
	op, _ = f.repo.GetByID(context.Background(), op.ID)

	ctx := ctxAs("agent-1", appctx.RoleAgent)

	// Closing without a dossier code fails and nothing is written.
	cmd := commandFrom(*op)
	cmd.Etat = EtatCloture
	err := f.svc.UpdateDetails(ctx, op.ID, cmd)
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessRule(err, apperror.CodeClotureSansDossier))
	assert.Empty(t, f.historique.records)

	// With a known code the closure commits, is audited and published.
	f.dossiers.codes["DOS-2026-044"] = true
	cmd.CodeDossier = "DOS-2026-044"
	require.NoError(t, f.svc.UpdateDetails(ctx, op.ID, cmd))

	stored, err := f.repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	assert.True(t, stored.Etat.IsCloture())
	assert.Equal(t, "DOS-2026-044", stored.CodeDossierValue())
	require.Len(t, f.historique.records, 1)
	require.Len(t, f.sink.events, 1)
}

func TestService_ClientUpdateDetails(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")
	op.Etat = EtatDepotDossier
	require.NoError(t, f.repo.Update(context.Background(), op))

	ctx := ctxAs("client-1", appctx.RoleClient)

	// Another client's operation is off-limits.
	err := f.svc.ClientUpdateDetails(ctxAs("client-2", appctx.RoleClient), op.ID, ClientUpdateCommand{
		Type: TypeExport, Bureau: op.Bureau, Regime: op.Regime,
	})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)

	// Owner edits in intake stage.
	require.NoError(t, f.svc.ClientUpdateDetails(ctx, op.ID, ClientUpdateCommand{
		Type: TypeExport, Bureau: op.Bureau, Regime: op.Regime,
	}))
	stored, _ := f.repo.GetByID(context.Background(), op.ID)
	assert.Equal(t, TypeExport, stored.Type)
	require.Len(t, f.historique.records, 1)
	assert.Equal(t, "Détails modifiés par le client", f.historique.records[0].Action)

	// Once advanced, edits are rejected.
	stored.Etat = EtatEnCours
	require.NoError(t, f.repo.Update(context.Background(), stored))
	err = f.svc.ClientUpdateDetails(ctx, op.ID, ClientUpdateCommand{
		Type: TypeMAC, Bureau: stored.Bureau, Regime: stored.Regime,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessRule(err, apperror.CodeOperationReadOnly))
}

func TestService_Reserver(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	// Clients cannot reserve.
	err := f.svc.Reserver(ctxAs("client-1", appctx.RoleClient), op.ID)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)

	// First agent wins.
	require.NoError(t, f.svc.Reserver(ctxAs("agent-1", appctx.RoleAgent), op.ID))
	stored, _ := f.repo.GetByID(context.Background(), op.ID)
	assert.True(t, stored.EstReserver())
	assert.Equal(t, "agent-1", stored.ReserverParValue())
	require.Len(t, f.historique.records, 1)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, EventReserved, f.sink.events[0].Type)

	// Second attempt is a silent no-op: no reassignment, no new records.
	f.directory.roles["agent-2"] = []string{appctx.RoleAgent}
	f.directory.names["agent-2"] = "Nadia Berrada"
	require.NoError(t, f.svc.Reserver(ctxAs("agent-2", appctx.RoleAgent), op.ID))
	stored, _ = f.repo.GetByID(context.Background(), op.ID)
	assert.Equal(t, "agent-1", stored.ReserverParValue())
	assert.Len(t, f.historique.records, 1)
	assert.Len(t, f.sink.events, 1)
}

func TestService_Create(t *testing.T) {
	f := newFixture()
	ctx := ctxAs("client-1", appctx.RoleClient)

	op := New("", TypeImport)
	docs := []Document{{ID: id.New(), Nom: "facture.pdf", Chemin: "/tmp/facture.pdf"}}
	require.NoError(t, f.svc.Create(ctx, op, docs, nil))

	// Owner forced to the acting client.
	assert.Equal(t, "client-1", op.UserID)
	stored, err := f.repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, EtatDepotDossier, stored.Etat)

	require.Len(t, f.repo.docs, 1)
	assert.Equal(t, op.ID, f.repo.docs[0].OperationID)
	require.Len(t, f.historique.records, 1)
	assert.Equal(t, "Opération créée", f.historique.records[0].Action)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, EventCreated, f.sink.events[0].Type)
}

func TestService_GetByID_ClientScoping(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	_, err := f.svc.GetByID(ctxAs("client-2", appctx.RoleClient), op.ID)
	require.Error(t, err)

	got, err := f.svc.GetByID(ctxAs("client-1", appctx.RoleClient), op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)

	// Staff see everything.
	got, err = f.svc.GetByID(ctxAs("agent-1", appctx.RoleAgent), op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, got.ID)
}

func TestService_List_Scoping(t *testing.T) {
	f := newFixture()
	f.seedOperation(t, "client-1")
	f.seedOperation(t, "client-2")
	exportOp := New("client-1", TypeExport)
	require.NoError(t, f.repo.Create(context.Background(), exportOp))

	// Clients only ever see their own, whatever the filter says.
	res, err := f.svc.List(ctxAs("client-1", appctx.RoleClient), ListFilter{UserID: "client-2"})
	require.NoError(t, err)
	for _, op := range res.Items {
		assert.Equal(t, "client-1", op.UserID)
	}
	assert.EqualValues(t, 2, res.TotalCount)

	// Scoped staff are pinned to their operation type.
	f.directory.scope["agent-1"] = TypeExport
	res, err = f.svc.List(ctxAs("agent-1", appctx.RoleAgent), ListFilter{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TypeExport, res.Items[0].Type)
}

func TestService_AddDocument_ClosedOperation(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")
	op.Etat = EtatCloture
	require.NoError(t, f.repo.Update(context.Background(), op))

	doc := NewDocument(op.ID, "", "dum.pdf", "/tmp/dum.pdf", "application/pdf", 128)
	err := f.svc.AddDocument(ctxAs("client-1", appctx.RoleClient), op.ID, doc)
	require.Error(t, err)
	assert.True(t, apperror.IsBusinessRule(err, apperror.CodeOperationCloturee))

	// Staff may still attach to a closed operation.
	err = f.svc.AddDocument(ctxAs("agent-1", appctx.RoleAgent), op.ID, doc)
	require.NoError(t, err)
	require.Len(t, f.repo.docs, 1)
}

func TestService_AddCommentaire(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")
	op.Etat = EtatCloture
	require.NoError(t, f.repo.Update(context.Background(), op))

	// Comments carry no stage restriction, even on closed operations.
	c, err := f.svc.AddCommentaire(ctxAs("client-1", appctx.RoleClient), op.ID, "Documents transmis au transitaire")
	require.NoError(t, err)
	assert.Equal(t, "client-1", c.UserID)

	_, err = f.svc.AddCommentaire(ctxAs("client-1", appctx.RoleClient), op.ID, "   ")
	require.Error(t, err)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, EventCommentAdded, f.sink.events[0].Type)
}

func TestService_Delete_AdminOnly(t *testing.T) {
	f := newFixture()
	op := f.seedOperation(t, "client-1")

	err := f.svc.Delete(ctxAs("agent-1", appctx.RoleAgent), op.ID)
	require.Error(t, err)

	require.NoError(t, f.svc.Delete(ctxAs("admin-1", appctx.RoleAdministrateur), op.ID))
	_, err = f.repo.GetByID(context.Background(), op.ID)
	require.Error(t, err)
}
