package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fretops/internal/core/apperror"
	appctx "fretops/internal/core/context"
	"fretops/internal/core/id"
	"fretops/internal/domain/operation"
	"fretops/internal/infrastructure/filestore"
	"fretops/internal/infrastructure/http/v1/dto"
	"fretops/internal/infrastructure/http/v1/middleware"
)

// maxUploadBytes caps document uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// OperationHandler handles operation endpoints.
type OperationHandler struct {
	*BaseHandler
	service *operation.Service
	files   filestore.Store
}

// NewOperationHandler creates a new operation handler.
func NewOperationHandler(base *BaseHandler, service *operation.Service, files filestore.Store) *OperationHandler {
	return &OperationHandler{
		BaseHandler: base,
		service:     service,
		files:       files,
	}
}

// Create handles POST /operations
func (h *OperationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateOperationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	var comments []operation.Commentaire
	if req.Commentaire != "" {
		comments = append(comments, *operation.NewCommentaire(op.ID, op.UserID, req.Commentaire))
	}

	if err := h.service.Create(ctx, op, nil, comments); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromOperation(op))
}

// Get handles GET /operations/:id
func (h *OperationHandler) Get(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	op, err := h.service.GetByID(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOperation(op))
}

// List handles GET /operations
func (h *OperationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := operation.ListFilter{}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.Search = c.Query("search")
	filter.CodeDossierContains = c.Query("codeDossier")
	filter.OnlyUnreserved = c.Query("onlyUnreserved") == "true"
	filter.WithCodeDossier = c.Query("withCodeDossier") == "true"
	filter.OrderBy = c.Query("orderBy")

	for _, raw := range c.QueryArray("etat") {
		etat, err := operation.ParseEtat(raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Etats = append(filter.Etats, etat)
	}
	for _, raw := range c.QueryArray("typeOperation") {
		typeOp, err := operation.ParseTypeOperation(raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Types = append(filter.Types, typeOp)
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.OperationResponse, len(result.Items))
	for i, op := range result.Items {
		items[i] = dto.FromOperation(op)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /operations/:id - the staff field-update form.
func (h *OperationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOperationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.service.GetByID(ctx, opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	cmd, err := req.ToCommand(op)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.UpdateDetails(ctx, opID, cmd); err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.GetByID(ctx, opID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOperation(updated))
}

// ClientUpdate handles PUT /operations/:id/client - the self-service form,
// accepted only while the operation is still in the intake stage.
func (h *OperationHandler) ClientUpdate(c *gin.Context) {
	ctx := c.Request.Context()
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.ClientUpdateOperationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.service.GetByID(ctx, opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	cmd, err := req.ToCommand(op)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.ClientUpdateDetails(ctx, opID, cmd); err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.service.GetByID(ctx, opID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOperation(updated))
}

// Reserver handles POST /operations/:id/reserver - first agent to commit
// wins; a lost race still answers 200.
func (h *OperationHandler) Reserver(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Reserver(c.Request.Context(), opID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "operation reserved")
}

// Delete handles DELETE /operations/:id (administrators).
func (h *OperationHandler) Delete(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), opID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// UploadDocument handles POST /operations/:id/documents (multipart).
func (h *OperationHandler) UploadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("fichier")
	if err != nil {
		h.Error(c, apperror.NewValidation("multipart field 'fichier' is required").
			WithDetail("error", err.Error()))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer src.Close()

	path, size, err := h.files.Save(ctx, opID, fileHeader.Filename, src)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	doc := operation.NewDocument(opID, h.GetUserID(c), fileHeader.Filename, path,
		fileHeader.Header.Get("Content-Type"), size)

	if err := h.service.AddDocument(ctx, opID, doc); err != nil {
		// The row never existed; drop the orphaned file.
		_ = h.files.Remove(ctx, path)
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromDocument(doc))
}

// ListDocuments handles GET /operations/:id/documents
func (h *OperationHandler) ListDocuments(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.DocumentResponse, len(docs))
	for i := range docs {
		items[i] = dto.FromDocument(&docs[i])
	}
	h.OK(c, gin.H{"items": items})
}

// DownloadDocument handles GET /operations/:id/documents/:docId/download
func (h *OperationHandler) DownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(ctx, opID, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	content, err := h.files.Open(ctx, doc.Chemin)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer content.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Nom+`"`)
	c.DataFromReader(http.StatusOK, doc.TailleOctet, contentType, content, nil)
}

// AddCommentaire handles POST /operations/:id/commentaires
func (h *OperationHandler) AddCommentaire(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateCommentaireRequest
	if !h.BindJSON(c, &req) {
		return
	}

	commentaire, err := h.service.AddCommentaire(c.Request.Context(), opID, req.Contenu)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCommentaire(commentaire))
}

// ListCommentaires handles GET /operations/:id/commentaires
func (h *OperationHandler) ListCommentaires(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	comments, err := h.service.ListCommentaires(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.CommentaireResponse, len(comments))
	for i := range comments {
		items[i] = dto.FromCommentaire(&comments[i])
	}
	h.OK(c, gin.H{"items": items})
}

// ListHistoriques handles GET /operations/:id/historiques
func (h *OperationHandler) ListHistoriques(c *gin.Context) {
	opID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)

	historiques, err := h.service.ListHistoriques(c.Request.Context(), opID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.HistoriqueResponse, len(historiques))
	for i := range historiques {
		items[i] = dto.FromHistorique(&historiques[i])
	}
	h.OK(c, gin.H{"items": items})
}

func (h *OperationHandler) pathID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("param", name))
		return id.Nil(), false
	}
	return parsed, true
}

// RegisterRoutes registers operation routes.
func (h *OperationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", middleware.RequireStaff(), h.Update)
	rg.PUT("/:id/client", h.ClientUpdate)
	rg.POST("/:id/reserver", middleware.RequireRole(appctx.RoleAgent), h.Reserver)
	rg.DELETE("/:id", middleware.RequireRole(appctx.RoleAdministrateur), h.Delete)

	rg.POST("/:id/documents", h.UploadDocument)
	rg.GET("/:id/documents", h.ListDocuments)
	rg.GET("/:id/documents/:docId/download", h.DownloadDocument)

	rg.POST("/:id/commentaires", h.AddCommentaire)
	rg.GET("/:id/commentaires", h.ListCommentaires)

	rg.GET("/:id/historiques", h.ListHistoriques)
}
