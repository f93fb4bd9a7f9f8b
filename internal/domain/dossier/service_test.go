package dossier

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/operation"
)

// --- Fakes (read-side only; unused repository methods are stubbed) ---

type fakeOperations struct {
	ops []*operation.Operation
}

func (r *fakeOperations) ListWithDossier(_ context.Context, filter operation.ListFilter) ([]*operation.Operation, error) {
	var out []*operation.Operation
	for _, op := range r.ops {
		if op.CodeDossierValue() == "" {
			continue
		}
		if filter.UserID != "" && op.UserID != filter.UserID {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}

func (r *fakeOperations) CodeDossierExists(_ context.Context, code string) (bool, error) {
	for _, op := range r.ops {
		if op.CodeDossierValue() == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeOperations) Create(context.Context, *operation.Operation) error { return nil }
func (r *fakeOperations) GetByID(context.Context, id.ID) (*operation.Operation, error) {
	return nil, nil
}
func (r *fakeOperations) Update(context.Context, *operation.Operation) error { return nil }
func (r *fakeOperations) Delete(context.Context, id.ID) error                { return nil }
func (r *fakeOperations) List(context.Context, operation.ListFilter) (domain.ListResult[*operation.Operation], error) {
	return domain.ListResult[*operation.Operation]{}, nil
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
func (r *fakeOperations) DeleteDocument(context.Context, id.ID) error              { return nil }
func (r *fakeOperations) AddCommentaire(context.Context, *operation.Commentaire) error {
	return nil
}
func (r *fakeOperations) ListCommentaires(context.Context, id.ID) ([]operation.Commentaire, error) {
	return nil, nil
}

type fakeFactures struct {
	factures []*facture.Facture
}

func (r *fakeFactures) ListByCodeDossier(_ context.Context, codes []string) ([]*facture.Facture, error) {
	keep := make(map[string]bool, len(codes))
	for _, c := range codes {
		keep[c] = true
	}
	var out []*facture.Facture
	for _, f := range r.factures {
		if keep[f.CodeDossier] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeFactures) CodeDossierExists(_ context.Context, code string) (bool, error) {
	for _, f := range r.factures {
		if f.CodeDossier == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeFactures) Create(context.Context, *facture.Facture) error { return nil }
func (r *fakeFactures) GetByID(context.Context, id.ID) (*facture.Facture, error) {
	return nil, nil
}
func (r *fakeFactures) Update(context.Context, *facture.Facture) error { return nil }
func (r *fakeFactures) Delete(context.Context, id.ID) error            { return nil }
func (r *fakeFactures) List(context.Context, facture.ListFilter) (domain.ListResult[*facture.Facture], error) {
	return domain.ListResult[*facture.Facture]{}, nil
}

// --- Builders ---

func opWithCode(userID, code string) *operation.Operation {
	op := operation.New(userID, operation.TypeImport)
	op.SetCodeDossier(code)
	return op
}

func factureWith(codeClient, codeDossier string, etat facture.EtatPayement) *facture.Facture {
	f := facture.New("FA-"+codeDossier, codeClient, codeDossier,
		decimal.NewFromInt(1000), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	f.EtatPayement = etat
	if etat == facture.EtatPayee {
		f.MontantPaye = f.Montant
	} else if etat == facture.EtatPayementIncomplet {
		f.MontantPaye = decimal.NewFromInt(400)
	}
	return f
}

func staffCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "agent-1", Roles: []string{appctx.RoleAgent},
	})
}

func clientCtx(userID, codeClient string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: userID, Roles: []string{appctx.RoleClient}, CodeClient: codeClient,
	})
}

// --- Tests ---

func TestRollup(t *testing.T) {
	tests := []struct {
		name  string
		etats []facture.EtatPayement
		want  facture.EtatPayement
	}{
		{"no invoices", nil, facture.EtatImpayee},
		{"single unpaid", []facture.EtatPayement{facture.EtatImpayee}, facture.EtatImpayee},
		{"single paid", []facture.EtatPayement{facture.EtatPayee}, facture.EtatPayee},
		{"single partial", []facture.EtatPayement{facture.EtatPayementIncomplet}, facture.EtatPayementIncomplet},
		{"partial dominates paid", []facture.EtatPayement{facture.EtatPayee, facture.EtatPayementIncomplet}, facture.EtatPayementIncomplet},
		{"partial dominates unpaid", []facture.EtatPayement{facture.EtatImpayee, facture.EtatPayementIncomplet}, facture.EtatPayementIncomplet},
		{"paid and unpaid is unpaid", []facture.EtatPayement{facture.EtatPayee, facture.EtatImpayee}, facture.EtatImpayee},
		{"all paid", []facture.EtatPayement{facture.EtatPayee, facture.EtatPayee}, facture.EtatPayee},
		{"all unpaid", []facture.EtatPayement{facture.EtatImpayee, facture.EtatImpayee}, facture.EtatImpayee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var factures []*facture.Facture
			for _, e := range tt.etats {
				factures = append(factures, factureWith("CL-1", "DOS-X", e))
			}
			assert.Equal(t, tt.want, Rollup(factures))
		})
	}
}

func TestService_List_GroupsAndSorts(t *testing.T) {
	ops := &fakeOperations{ops: []*operation.Operation{
		opWithCode("client-1", "DOS-B"),
		opWithCode("client-2", "DOS-A"),
		opWithCode("client-1", "DOS-B"),
		operation.New("client-1", operation.TypeImport), // no code, excluded
	}}
	factures := &fakeFactures{factures: []*facture.Facture{
		factureWith("CL-1", "DOS-B", facture.EtatPayee),
		factureWith("CL-2", "DOS-A", facture.EtatPayementIncomplet),
		factureWith("CL-1", "DOS-ORPHAN", facture.EtatImpayee), // no matching code
	}}
	svc := NewService(ops, factures)

	res, err := svc.List(staffCtx(), Filter{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.EqualValues(t, 2, res.TotalCount)

	// Sorted by code ascending.
	assert.Equal(t, "DOS-A", res.Items[0].CodeDossier)
	assert.Equal(t, "DOS-B", res.Items[1].CodeDossier)

	assert.Len(t, res.Items[0].Operations, 1)
	assert.Equal(t, facture.EtatPayementIncomplet, res.Items[0].EtatPayement)

	assert.Len(t, res.Items[1].Operations, 2)
	require.Len(t, res.Items[1].Factures, 1)
	assert.Equal(t, facture.EtatPayee, res.Items[1].EtatPayement)
	assert.True(t, res.Items[1].MontantPaye.Equal(decimal.NewFromInt(1000)))
}

func TestService_List_FilterThenPaginate(t *testing.T) {
	ops := &fakeOperations{}
	for _, code := range []string{"DOS-1", "DOS-2", "DOS-3", "DOS-4", "AUTRE-1"} {
		ops.ops = append(ops.ops, opWithCode("client-1", code))
	}
	svc := NewService(ops, &fakeFactures{})

	res, err := svc.List(staffCtx(), Filter{
		Page:                domain.Page{Limit: 2, Offset: 2},
		CodeDossierContains: "dos",
	})
	require.NoError(t, err)

	// TotalCount counts the filtered set, pagination applies afterwards.
	assert.EqualValues(t, 4, res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "DOS-3", res.Items[0].CodeDossier)
	assert.Equal(t, "DOS-4", res.Items[1].CodeDossier)
}

func TestService_List_EtatFilter(t *testing.T) {
	ops := &fakeOperations{ops: []*operation.Operation{
		opWithCode("client-1", "DOS-PAID"),
		opWithCode("client-1", "DOS-OPEN"),
	}}
	factures := &fakeFactures{factures: []*facture.Facture{
		factureWith("CL-1", "DOS-PAID", facture.EtatPayee),
	}}
	svc := NewService(ops, factures)

	res, err := svc.List(staffCtx(), Filter{EtatPayement: facture.EtatPayee})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "DOS-PAID", res.Items[0].CodeDossier)

	res, err = svc.List(staffCtx(), Filter{EtatPayement: facture.EtatImpayee})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "DOS-OPEN", res.Items[0].CodeDossier)
}

func TestService_List_RequiresStaff(t *testing.T) {
	svc := NewService(&fakeOperations{}, &fakeFactures{})

	_, err := svc.List(context.Background(), Filter{})
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	_, err = svc.List(clientCtx("client-1", "CL-1"), Filter{})
	require.Error(t, err)
	appErr, _ = apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestService_ListForClient_Scoping(t *testing.T) {
	ops := &fakeOperations{ops: []*operation.Operation{
		opWithCode("client-1", "DOS-MINE"),
		opWithCode("client-2", "DOS-THEIRS"),
	}}
	factures := &fakeFactures{factures: []*facture.Facture{
		factureWith("CL-1", "DOS-MINE", facture.EtatPayee),
		factureWith("CL-2", "DOS-MINE", facture.EtatImpayee), // other client's invoice on same code
	}}
	svc := NewService(ops, factures)

	res, err := svc.ListForClient(clientCtx("client-1", "CL-1"), Filter{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	d := res.Items[0]
	assert.Equal(t, "DOS-MINE", d.CodeDossier)

	// The foreign invoice is filtered out, so the rollup only sees CL-1's.
	require.Len(t, d.Factures, 1)
	assert.Equal(t, "CL-1", d.Factures[0].CodeClient)
	assert.Equal(t, facture.EtatPayee, d.EtatPayement)
}

func TestService_GetByCode(t *testing.T) {
	ops := &fakeOperations{ops: []*operation.Operation{
		opWithCode("client-1", "DOS-44"),
	}}
	factures := &fakeFactures{factures: []*facture.Facture{
		factureWith("CL-1", "DOS-44", facture.EtatPayementIncomplet),
	}}
	svc := NewService(ops, factures)

	d, err := svc.GetByCode(staffCtx(), "DOS-44")
	require.NoError(t, err)
	assert.Len(t, d.Operations, 1)
	assert.Len(t, d.Factures, 1)
	assert.Equal(t, facture.EtatPayementIncomplet, d.EtatPayement)

	_, err = svc.GetByCode(staffCtx(), "DOS-UNKNOWN")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestLookup_Exists(t *testing.T) {
	ops := &fakeOperations{ops: []*operation.Operation{
		opWithCode("client-1", "DOS-OP"),
	}}
	factures := &fakeFactures{factures: []*facture.Facture{
		factureWith("CL-1", "DOS-FA", facture.EtatImpayee),
	}}
	lookup := NewLookup(ops, factures)

	ok, err := lookup.Exists(context.Background(), "DOS-OP")
	require.NoError(t, err)
	assert.True(t, ok)

	// A code known only through an invoice still counts: that is what lets
	// staff assign a first dossier code coming from invoicing.
	ok, err = lookup.Exists(context.Background(), "DOS-FA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lookup.Exists(context.Background(), "DOS-NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
}
