package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms-api/internal/handler"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/appointment"
	"github.com/jwalitptl/hms-api/pkg/validator"
)

type Handler struct {
	service   *appointment.Service
	validator validator.Validator
}

func NewHandler(service *appointment.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/transitions", h.TransitionAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.DELETE("/:id", h.HardDeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), actor, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) TransitionAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.TransitionAppointmentRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	apt, err := h.service.AttemptTransition(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	original, successor, err := h.service.RescheduleAppointment(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"original":    original,
		"appointment": successor,
	}))
}

func (h *Handler) HardDeleteAppointment(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	id, err := handler.ParamUUID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.service.HardDeleteAppointment(c.Request.Context(), actor, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
