package permission

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms-api/internal/handler"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

type Handler struct {
	service *rbac.Service
}

func NewHandler(service *rbac.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	perms := r.Group("/permissions")
	{
		perms.GET("/me", h.ListMine)
		perms.GET("/:name", h.CanPerform)
	}
}

type capabilities struct {
	Role        model.Role        `json:"role"`
	Permissions []rbac.Permission `json:"permissions"`
}

type decision struct {
	Permission rbac.Permission `json:"permission"`
	Role       model.Role      `json:"role"`
	Defined    bool            `json:"defined"`
	Allowed    bool            `json:"allowed"`
}

// ListMine returns every permission held by the caller's role.
func (h *Handler) ListMine(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	perms := h.service.Permissions(actor.Role)
	if perms == nil {
		perms = []rbac.Permission{}
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(capabilities{
		Role:        actor.Role,
		Permissions: perms,
	}))
}

// CanPerform answers whether the caller's role, or the role in ?role=, holds
// the named permission.
func (h *Handler) CanPerform(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	role := actor.Role
	if q := c.Query("role"); q != "" {
		role, err = model.ParseRole(q)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest(err.Error(), nil))
			return
		}
	}

	perm := rbac.Permission(c.Param("name"))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(decision{
		Permission: perm,
		Role:       role,
		Defined:    h.service.Table().Defined(perm),
		Allowed:    h.service.CanPerform(role, perm),
	}))
}
