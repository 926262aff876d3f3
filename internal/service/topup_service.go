package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"
	"loyalty-topup/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderIDAttempts = 3

// TopupOptions carries issuance settings from config.
type TopupOptions struct {
	OrderPrefix      string
	Currency         string
	CurrencyExponent int32
	PointRate        decimal.Decimal
	MaxAmountMinor   int64
	ExpiryMinutes    int
	QRTimeout        time.Duration
}

// TopupServiceImpl implements ports.TopupService.
type TopupServiceImpl struct {
	orders ports.OrderRepository
	qr     ports.QRIssuer
	opts   TopupOptions
	log    zerolog.Logger
	now    func() time.Time
	rnd    io.Reader
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(orders ports.OrderRepository, qr ports.QRIssuer, opts TopupOptions, log zerolog.Logger) *TopupServiceImpl {
	if opts.QRTimeout <= 0 {
		opts.QRTimeout = 10 * time.Second
	}
	return &TopupServiceImpl{
		orders: orders,
		qr:     qr,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		rnd:    rand.Reader,
	}
}

// CreateOrder persists a PENDING order and asks the provider for a QR.
// A provider failure leaves the order retryable and is not an error.
func (s *TopupServiceImpl) CreateOrder(ctx context.Context, req ports.CreateOrderRequest) (*ports.IssuedOrder, error) {
	if req.AmountMinor <= 0 || req.AmountMinor > s.opts.MaxAmountMinor {
		return nil, apperror.ErrInvalidAmount().WithDetail(
			"amount must be between " + domain.FormatMinor(1, s.opts.CurrencyExponent) +
				" and " + domain.FormatMinor(s.opts.MaxAmountMinor, s.opts.CurrencyExponent))
	}
	if req.OwnerID == "" {
		return nil, apperror.ErrInvalidToken()
	}

	now := s.now()
	order := &domain.Order{
		ID:             uuid.New(),
		WalletOwnerID:  req.OwnerID,
		AmountMinor:    req.AmountMinor,
		Currency:       s.opts.Currency,
		PointsToCredit: domain.PointsForAmount(req.AmountMinor, s.opts.CurrencyExponent, s.opts.PointRate),
		Status:         domain.OrderStatusPending,
		ExpiresAt:      now.Add(time.Duration(s.opts.ExpiryMinutes) * time.Minute),
		Contact:        req.Contact,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.createWithFreshID(ctx, order, now); err != nil {
		return nil, err
	}

	log := s.log.With().Str("order_id", order.OrderID).Str("owner_id", order.WalletOwnerID).Logger()
	log.Info().Int64("amount_minor", order.AmountMinor).Int64("points", order.PointsToCredit).Msg("topup order created")

	qr, err := s.issue(ctx, order)
	if err != nil {
		log.Warn().Err(err).Msg("QR issuance failed, order left pending for retry")
		return &ports.IssuedOrder{Order: order}, nil
	}
	return &ports.IssuedOrder{Order: order, QR: qr}, nil
}

// RetryQR re-requests a QR for an owner's pending order that has none yet.
func (s *TopupServiceImpl) RetryQR(ctx context.Context, ownerID, orderID string) (*ports.IssuedOrder, error) {
	order, err := s.GetOrder(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, apperror.ErrOrderNotPending()
	}
	if order.QRIssued() {
		return nil, apperror.ErrQRAlreadyIssued()
	}

	order.ExpiresAt = s.now().Add(time.Duration(s.opts.ExpiryMinutes) * time.Minute)
	qr, err := s.issue(ctx, order)
	if err != nil {
		if errors.Is(err, apperror.ErrQRAlreadyIssued()) {
			return nil, err
		}
		return nil, apperror.ErrProviderUnavailable(err)
	}
	s.log.Info().Str("order_id", order.OrderID).Msg("QR issued on retry")
	return &ports.IssuedOrder{Order: order, QR: qr}, nil
}

// GetOrder returns an order visible to ownerID.
func (s *TopupServiceImpl) GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get order: %w", err))
	}
	// someone else's order looks the same as a missing one
	if order == nil || order.WalletOwnerID != ownerID {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

func (s *TopupServiceImpl) createWithFreshID(ctx context.Context, order *domain.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		id, err := domain.NewOrderID(s.opts.OrderPrefix, now, s.rnd)
		if err != nil {
			return apperror.InternalError(err)
		}
		order.OrderID = id

		err = s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderID) {
			return apperror.ErrDatabaseError(fmt.Errorf("create order: %w", err))
		}
		if attempt == orderIDAttempts {
			return apperror.InternalError(fmt.Errorf("no unique order id after %d attempts: %w", attempt, err))
		}
		s.log.Debug().Str("order_id", id).Msg("order id collision, regenerating")
	}
}

// issue calls the provider and attaches the result to the order.
func (s *TopupServiceImpl) issue(ctx context.Context, order *domain.Order) (*ports.QRResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.QRTimeout)
	defer cancel()

	qr, err := s.qr.IssueQR(callCtx, ports.QRRequest{
		AmountMinor:   order.AmountMinor,
		Currency:      order.Currency,
		OrderID:       order.OrderID,
		ExpiryMinutes: s.opts.ExpiryMinutes,
	})
	if err != nil {
		return nil, err
	}
	if qr.ProviderTransactionID == "" || qr.QRPayload == "" {
		return nil, fmt.Errorf("provider returned an incomplete QR for %s", order.OrderID)
	}

	expiresAt := order.ExpiresAt
	if !qr.ExpiresAt.IsZero() {
		expiresAt = qr.ExpiresAt.UTC()
	}
	ok, err := s.orders.AttachQR(ctx, order.ID, qr.ProviderTransactionID, qr.QRPayload, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("attach QR: %w", err)
	}
	if !ok {
		return nil, apperror.ErrQRAlreadyIssued()
	}

	order.ProviderTransactionID = &qr.ProviderTransactionID
	order.QRPayload = &qr.QRPayload
	order.ExpiresAt = expiresAt
	return qr, nil
}
