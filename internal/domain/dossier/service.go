package dossier

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/domain"
	"fretops/internal/domain/facture"
	"fretops/internal/domain/operation"
)

// Service builds dossier aggregates from the operation and invoice stores.
type Service struct {
	operations operation.Repository
	factures   facture.Repository
}

// NewService creates the dossier service.
func NewService(operations operation.Repository, factures facture.Repository) *Service {
	return &Service{operations: operations, factures: factures}
}

// List returns the aggregated dossiers visible to staff, filtered then
// paginated. Dossiers are ordered by code ascending so pages stay stable
// across requests.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Dossier], error) {
	if appctx.GetUser(ctx) == nil {
		return domain.ListResult[*Dossier]{}, apperror.NewUnauthorized("authentication required")
	}
	if !appctx.IsStaff(ctx) {
		return domain.ListResult[*Dossier]{}, apperror.NewForbidden("staff access required")
	}
	opFilter := operation.ListFilter{
		UserIDs:  filter.ClientIDs,
		AgentIDs: filter.AgentIDs,
	}
	return s.list(ctx, opFilter, nil, filter)
}

// ListForClient returns the aggregated dossiers of the calling client:
// operations it owns, invoices billed to its client code.
func (s *Service) ListForClient(ctx context.Context, filter Filter) (domain.ListResult[*Dossier], error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return domain.ListResult[*Dossier]{}, apperror.NewUnauthorized("authentication required")
	}
	opFilter := operation.ListFilter{UserID: user.UserID}
	var codeClients []string
	if user.CodeClient != "" {
		codeClients = []string{user.CodeClient}
	}
	return s.list(ctx, opFilter, codeClients, filter)
}

// GetByCode returns one aggregated dossier, or not-found when no operation
// and no invoice carries the code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Dossier, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	opFilter := operation.ListFilter{CodeDossierContains: code}
	if !appctx.IsStaff(ctx) {
		opFilter.UserID = user.UserID
	}
	ops, err := s.operations.ListWithDossier(ctx, opFilter)
	if err != nil {
		return nil, err
	}
	factures, err := s.factures.ListByCodeDossier(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	if !appctx.IsStaff(ctx) {
		factures = filterByCodeClient(factures, user.CodeClient)
	}

	d := &Dossier{CodeDossier: code}
	for _, op := range ops {
		if op.CodeDossierValue() == code {
			d.Operations = append(d.Operations, op)
		}
	}
	d.Factures = factures
	if len(d.Operations) == 0 && len(d.Factures) == 0 {
		return nil, apperror.NewNotFound("dossier", code)
	}
	d.finalize()
	return d, nil
}

func (s *Service) list(ctx context.Context, opFilter operation.ListFilter, codeClients []string, filter Filter) (domain.ListResult[*Dossier], error) {
	var empty domain.ListResult[*Dossier]

	ops, err := s.operations.ListWithDossier(ctx, opFilter)
	if err != nil {
		return empty, err
	}

	// Group operations by dossier code first; invoices are then fetched for
	// exactly the codes that appeared.
	byCode := make(map[string]*Dossier)
	codes := make([]string, 0, len(byCode))
	for _, op := range ops {
		code := op.CodeDossierValue()
		d, ok := byCode[code]
		if !ok {
			d = &Dossier{CodeDossier: code}
			byCode[code] = d
			codes = append(codes, code)
		}
		d.Operations = append(d.Operations, op)
	}

	if len(codes) > 0 {
		factures, err := s.factures.ListByCodeDossier(ctx, codes)
		if err != nil {
			return empty, err
		}
		if len(codeClients) > 0 {
			factures = filterByCodeClients(factures, codeClients)
		}
		for _, f := range factures {
			if d, ok := byCode[f.CodeDossier]; ok {
				d.Factures = append(d.Factures, f)
			}
		}
	}

	dossiers := make([]*Dossier, 0, len(byCode))
	for _, d := range byCode {
		d.finalize()
		if matches(d, filter) {
			dossiers = append(dossiers, d)
		}
	}
	sort.Slice(dossiers, func(i, j int) bool {
		return dossiers[i].CodeDossier < dossiers[j].CodeDossier
	})

	// Paginate only after filtering, so TotalCount reflects the filtered set.
	filter.Normalize()
	total := int64(len(dossiers))
	start := filter.Offset
	if start > len(dossiers) {
		start = len(dossiers)
	}
	end := start + filter.Limit
	if end > len(dossiers) {
		end = len(dossiers)
	}

	return domain.ListResult[*Dossier]{
		Items:      dossiers[start:end],
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (d *Dossier) finalize() {
	d.EtatPayement = Rollup(d.Factures)
	total, paid := decimal.Zero, decimal.Zero
	var designations []string
	for _, f := range d.Factures {
		total = total.Add(f.Montant)
		paid = paid.Add(f.MontantPaye)
		if f.Designation != "" {
			designations = append(designations, f.Designation)
		}
	}
	d.MontantTotal = total
	d.MontantPaye = paid
	d.Designations = strings.Join(designations, "\n")
}

func matches(d *Dossier, filter Filter) bool {
	if filter.CodeDossierContains != "" &&
		!strings.Contains(strings.ToLower(d.CodeDossier), strings.ToLower(filter.CodeDossierContains)) {
		return false
	}
	if filter.EtatPayement != "" && d.EtatPayement != filter.EtatPayement {
		return false
	}
	return true
}

func filterByCodeClient(factures []*facture.Facture, codeClient string) []*facture.Facture {
	return filterByCodeClients(factures, []string{codeClient})
}

func filterByCodeClients(factures []*facture.Facture, codes []string) []*facture.Facture {
	keep := make(map[string]bool, len(codes))
	for _, c := range codes {
		if c != "" {
			keep[c] = true
		}
	}
	out := factures[:0]
	for _, f := range factures {
		if keep[f.CodeClient] {
			out = append(out, f)
		}
	}
	return out
}

// Lookup answers dossier-code existence questions for the operation policy:
// a code is known when at least one operation or one invoice carries it.
type Lookup struct {
	operations operation.Repository
	factures   facture.Repository
}

// NewLookup creates the combined lookup.
func NewLookup(operations operation.Repository, factures facture.Repository) *Lookup {
	return &Lookup{operations: operations, factures: factures}
}

// Exists implements operation.DossierLookup.
func (l *Lookup) Exists(ctx context.Context, code string) (bool, error) {
	ok, err := l.operations.CodeDossierExists(ctx, code)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return l.factures.CodeDossierExists(ctx, code)
}
