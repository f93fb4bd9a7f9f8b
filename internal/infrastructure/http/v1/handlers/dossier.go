package handlers

import (
	"github.com/gin-gonic/gin"

	appctx "fretops/internal/core/context"
	"fretops/internal/domain/dossier"
	"fretops/internal/domain/facture"
	"fretops/internal/infrastructure/http/v1/dto"
)

// DossierHandler handles aggregated dossier endpoints.
type DossierHandler struct {
	*BaseHandler
	service *dossier.Service
}

// NewDossierHandler creates a new dossier handler.
func NewDossierHandler(base *BaseHandler, service *dossier.Service) *DossierHandler {
	return &DossierHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /dossiers. Staff see everything; clients get their own
// scoped aggregation.
func (h *DossierHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	list := h.service.List
	if !appctx.IsStaff(ctx) {
		list = h.service.ListForClient
	}

	res, err := list(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.DossierResponse, len(res.Items))
	for i, d := range res.Items {
		items[i] = dto.FromDossier(d)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	})
}

// Get handles GET /dossiers/:code
func (h *DossierHandler) Get(c *gin.Context) {
	d, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDossier(d))
}

func (h *DossierHandler) parseFilter(c *gin.Context) (dossier.Filter, bool) {
	filter := dossier.Filter{}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.CodeDossierContains = c.Query("codeDossier")
	filter.ClientIDs = c.QueryArray("clientId")
	filter.AgentIDs = c.QueryArray("agentId")

	if raw := c.Query("etatPayement"); raw != "" {
		etat, err := facture.ParseEtatPayement(raw)
		if err != nil {
			h.Error(c, err)
			return filter, false
		}
		filter.EtatPayement = etat
	}
	return filter, true
}

// RegisterRoutes registers dossier routes.
func (h *DossierHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:code", h.Get)
}
