package handlers

import (
	"github.com/gin-gonic/gin"

	"fretops/internal/core/apperror"
	"fretops/internal/core/id"
	"fretops/internal/domain/notification"
	"fretops/internal/infrastructure/http/v1/dto"
)

// NotificationHandler handles the caller's notification feed.
type NotificationHandler struct {
	*BaseHandler
	service *notification.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(base *BaseHandler, service *notification.Service) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	filter := notification.ListFilter{}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OnlyUnread = c.Query("onlyUnread") == "true"

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.NotificationResponse, len(result.Items))
	for i, n := range result.Items {
		items[i] = dto.FromNotification(n)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// CountUnread handles GET /notifications/unread-count
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	count, err := h.service.CountUnread(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.UnreadCountResponse{Unread: count})
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), notificationID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "notification marked as read")
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllRead(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "notifications marked as read")
}

// RegisterRoutes registers notification routes.
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread-count", h.CountUnread)
	rg.POST("/:id/read", h.MarkRead)
	rg.POST("/read-all", h.MarkAllRead)
}
