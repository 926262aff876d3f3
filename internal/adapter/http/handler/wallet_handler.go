package handler

import (
	"time"

	"loyalty-topup/internal/adapter/http/dto"
	"loyalty-topup/internal/adapter/http/middleware"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"
	"loyalty-topup/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet read endpoints.
type WalletHandler struct {
	walletSvc ports.WalletQueryService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletQueryService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance handles GET /api/v1/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	w, err := h.walletSvc.GetBalance(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		OwnerID: w.OwnerID,
		Balance: w.Balance,
	})
}

// ListLedger handles GET /api/v1/wallet/ledger.
func (h *WalletHandler) ListLedger(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var q dto.LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	entries, total, err := h.walletSvc.ListLedger(c.Request.Context(), ownerID, q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.LedgerEntryResponse{
			ID:              e.ID.String(),
			TransactionType: string(e.TransactionType),
			PointsChange:    e.PointsChange,
			BalanceBefore:   e.BalanceBefore,
			BalanceAfter:    e.BalanceAfter,
			Description:     e.Description,
			CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		})
	}

	totalPages := int(total) / q.PageSize
	if int(total)%q.PageSize != 0 {
		totalPages++
	}

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	})
}
