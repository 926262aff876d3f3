package handler

import (
	"time"

	"loyalty-topup/internal/adapter/http/dto"
	"loyalty-topup/internal/adapter/http/middleware"
	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"
	"loyalty-topup/pkg/response"

	"github.com/gin-gonic/gin"
)

// TopupHandler handles QR top-up order endpoints.
type TopupHandler struct {
	topupSvc ports.TopupService
	exponent int32
}

// NewTopupHandler creates a new TopupHandler. exponent is the currency's
// minor-unit exponent used to parse and render amounts.
func NewTopupHandler(topupSvc ports.TopupService, exponent int32) *TopupHandler {
	return &TopupHandler{topupSvc: topupSvc, exponent: exponent}
}

// Create handles POST /api/v1/topups.
func (h *TopupHandler) Create(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)
	dto.TrimStrings(req.Contact)

	amountMinor, err := domain.ParseMajor(req.Amount.String(), h.exponent)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount().WithDetail(err.Error()))
		return
	}

	issued, err := h.topupSvc.CreateOrder(c.Request.Context(), ports.CreateOrderRequest{
		OwnerID:     ownerID,
		AmountMinor: amountMinor,
		Contact:     toContactInfo(req.Contact),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.toOrderResponse(issued.Order))
}

// RetryQR handles POST /api/v1/topups/:order_id/qr.
func (h *TopupHandler) RetryQR(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	var uri dto.OrderURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	issued, err := h.topupSvc.RetryQR(c.Request.Context(), ownerID, uri.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.toOrderResponse(issued.Order))
}

// Get handles GET /api/v1/topups/:order_id.
func (h *TopupHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	var uri dto.OrderURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.topupSvc.GetOrder(c.Request.Context(), ownerID, uri.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.toOrderResponse(order))
}

func (h *TopupHandler) toOrderResponse(o *domain.Order) dto.TopupOrderResponse {
	resp := dto.TopupOrderResponse{
		OrderID:               o.OrderID,
		Amount:                domain.FormatMinor(o.AmountMinor, h.exponent),
		Currency:              o.Currency,
		PointsToCredit:        o.PointsToCredit,
		Status:                string(o.Status),
		QRIssued:              o.QRIssued(),
		QRPayload:             o.QRPayload,
		ProviderTransactionID: o.ProviderTransactionID,
		ExpiresAt:             o.ExpiresAt.Format(time.RFC3339),
		CreatedAt:             o.CreatedAt.Format(time.RFC3339),
	}
	if o.CompletedAt != nil {
		s := o.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

func toContactInfo(c *dto.ContactRequest) *domain.ContactInfo {
	if c == nil {
		return nil
	}
	info := &domain.ContactInfo{}
	if c.Name != nil {
		info.Name = *c.Name
	}
	if c.Phone != nil {
		info.Phone = *c.Phone
	}
	if c.Email != nil {
		info.Email = *c.Email
	}
	if *info == (domain.ContactInfo{}) {
		return nil
	}
	return info
}
