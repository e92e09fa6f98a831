package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hms-api/internal/handler"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/audit"
	"github.com/jwalitptl/hms-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

type Handler struct {
	service *audit.Service
	authz   *rbac.Service
}

func NewHandler(service *audit.Service, authz *rbac.Service) *Handler {
	return &Handler{
		service: service,
		authz:   authz,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/logs/entity/:type/:id", h.GetEntityLogs)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.list(c, filter)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityID, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	filter.EntityType = c.Param("type")
	filter.EntityID = &entityID
	h.list(c, filter)
}

func (h *Handler) list(c *gin.Context, filter *model.AuditFilter) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if err := h.authz.Check(actor, rbac.ViewAuditLog, nil); err != nil {
		handler.RespondError(c, err)
		return
	}

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}

func parseFilter(c *gin.Context) (*model.AuditFilter, error) {
	filter := &model.AuditFilter{
		Outcome:    c.Query("outcome"),
		EntityType: c.Query("entity_type"),
	}

	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperrors.BadRequest("invalid actor_id", err)
		}
		filter.ActorID = &id
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperrors.BadRequest("since must be RFC3339", err)
		}
		filter.Since = since
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			return nil, apperrors.BadRequest("limit must be between 1 and 1000", err)
		}
		filter.Limit = limit
	}
	return filter, nil
}
