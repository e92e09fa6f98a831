package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hms-api/internal/handler"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/billing"
	"github.com/jwalitptl/hms-api/pkg/validator"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type Handler struct {
	service   *billing.Service
	validator validator.Validator
}

func NewHandler(service *billing.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", h.CreateInvoice)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/:id/items", h.AddLineItem)
		invoices.PUT("/:id/items/:itemId", h.EditLineItem)
		invoices.DELETE("/:id/items/:itemId", h.RemoveLineItem)
		invoices.POST("/:id/send", h.SendInvoice)
		invoices.POST("/:id/payments", h.RecordPayment)
		invoices.POST("/:id/void", h.VoidInvoice)
	}
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	actor, err := handler.CurrentActor(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CreateInvoiceRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	inv, err := h.service.CreateInvoice(c.Request.Context(), actor, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(inv))
}

func (h *Handler) GetInvoice(c *gin.Context) {
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

	inv, err := h.service.GetInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) AddLineItem(c *gin.Context) {
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

	var req model.LineItemRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	inv, err := h.service.AddLineItem(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) EditLineItem(c *gin.Context) {
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
	itemID, err := handler.ParamUUID(c, "itemId")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.LineItemRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}

	inv, err := h.service.EditLineItem(c.Request.Context(), actor, id, itemID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) RemoveLineItem(c *gin.Context) {
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
	itemID, err := handler.ParamUUID(c, "itemId")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	inv, err := h.service.RemoveLineItem(c.Request.Context(), actor, id, itemID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) SendInvoice(c *gin.Context) {
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

	inv, err := h.service.SendInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) RecordPayment(c *gin.Context) {
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

	var req model.RecordPaymentRequest
	if err := handler.BindJSON(c, &req, h.validator.Validate); err != nil {
		handler.RespondError(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)

	outcome, err := h.service.AttemptRecordPayment(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.Replayed {
		c.Header("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	c.JSON(status, handler.NewSuccessResponse(outcome))
}

func (h *Handler) VoidInvoice(c *gin.Context) {
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

	inv, err := h.service.AttemptVoidInvoice(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}
