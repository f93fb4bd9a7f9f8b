package handlers

import (
	"github.com/gin-gonic/gin"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain/facture"
	"fretops/internal/infrastructure/http/v1/dto"
	"fretops/internal/infrastructure/http/v1/middleware"
)

// FactureHandler handles invoice endpoints.
type FactureHandler struct {
	*BaseHandler
	service *facture.Service
}

// NewFactureHandler creates a new facture handler.
func NewFactureHandler(base *BaseHandler, service *facture.Service) *FactureHandler {
	return &FactureHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /factures (staff).
func (h *FactureHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateFactureRequest
	if !h.BindJSON(c, &req) {
		return
	}

	f := req.ToEntity()
	if err := h.service.Create(ctx, f); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromFacture(f))
}

// Get handles GET /factures/:id
func (h *FactureHandler) Get(c *gin.Context) {
	factureID, ok := h.pathID(c)
	if !ok {
		return
	}

	f, err := h.service.GetByID(c.Request.Context(), factureID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromFacture(f))
}

// List handles GET /factures
func (h *FactureHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := facture.ListFilter{}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.CodeClient = c.Query("codeClient")
	filter.CodeDossier = c.Query("codeDossier")
	filter.Numero = c.Query("numero")

	for _, raw := range c.QueryArray("etatPayement") {
		etat, err := facture.ParseEtatPayement(raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Etats = append(filter.Etats, etat)
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.FactureResponse, len(result.Items))
	for i, f := range result.Items {
		items[i] = dto.FromFacture(f)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterPayment handles POST /factures/:id/payments (staff).
func (h *FactureHandler) RegisterPayment(c *gin.Context) {
	factureID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req dto.RegisterPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	f, err := h.service.RegisterPayment(c.Request.Context(), factureID, req.Montant)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromFacture(f))
}

// Delete handles DELETE /factures/:id (administrators).
func (h *FactureHandler) Delete(c *gin.Context) {
	factureID, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), factureID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

func (h *FactureHandler) pathID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return id.Nil(), false
	}
	return parsed, true
}

// RegisterRoutes registers facture routes.
func (h *FactureHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", middleware.RequireStaff(), h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/payments", middleware.RequireStaff(), h.RegisterPayment)
	rg.DELETE("/:id", middleware.RequireRole(appctx.RoleAdministrateur), h.Delete)
}
