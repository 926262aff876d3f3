package ports

import (
	"context"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(timestamp string, body []byte) string
}

// TokenService validates bearer tokens issued by the CRM session service.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OwnerID string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached value or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Collaborators ---

// QRIssuer asks the payment provider for a displayable QR payload.
type QRIssuer interface {
	IssueQR(ctx context.Context, req QRRequest) (*QRResult, error)
}

// QRRequest is the input to QRIssuer.
type QRRequest struct {
	AmountMinor   int64
	Currency      string
	OrderID       string
	ExpiryMinutes int
}

// QRResult is what the provider returns for an issued QR.
type QRResult struct {
	ProviderTransactionID string
	QRPayload             string
	ExpiresAt             time.Time // zero if the provider did not send one
}

// ProfileMirror additively updates the external profile's total points.
type ProfileMirror interface {
	MirrorPointsIncrement(ctx context.Context, profileRef string, delta int64) error
}

// Notifier sends a best-effort notification to a wallet owner.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventPublisher publishes settlement events to downstream consumers.
type EventPublisher interface {
	PublishSettlement(ctx context.Context, ev domain.SettlementEvent) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// WebhookVerifier checks authenticity and freshness of inbound webhooks.
type WebhookVerifier interface {
	Verify(raw []byte, signatureHeader, timestampHeader string) domain.Verification
}

// IdempotencyGuard is the advisory replay check in front of settlement.
type IdempotencyGuard interface {
	CheckAndReserve(ctx context.Context, providerTxID string) (domain.GuardResult, error)
	Remember(ctx context.Context, providerTxID string, status domain.OrderStatus) error
}

// SettlementService converts verified webhooks into order transitions and wallet credits.
type SettlementService interface {
	Settle(ctx context.Context, req SettleRequest) (*domain.SettlementResult, error)
}

// SettleRequest holds a verified webhook for settlement.
type SettleRequest struct {
	ProviderTransactionID string
	Event                 domain.WebhookEvent
	AmountMinor           int64
	Currency              string
	OrderID               string // optional metadata.orderId
	RawPayload            []byte
}

// TopupService defines QR order issuance.
type TopupService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*IssuedOrder, error)
	RetryQR(ctx context.Context, ownerID, orderID string) (*IssuedOrder, error)
	GetOrder(ctx context.Context, ownerID, orderID string) (*domain.Order, error)
}

// CreateOrderRequest holds validated input for order creation.
type CreateOrderRequest struct {
	OwnerID     string
	AmountMinor int64
	Contact     *domain.ContactInfo
}

// IssuedOrder is the persisted order plus the QR the provider returned.
// QR is nil if the provider call failed; the order stays PENDING and can be retried.
type IssuedOrder struct {
	Order *domain.Order
	QR    *QRResult
}

// WalletQueryService defines read-only wallet queries for owners.
type WalletQueryService interface {
	GetBalance(ctx context.Context, ownerID string) (*domain.Wallet, error)
	ListLedger(ctx context.Context, ownerID string, page, pageSize int) ([]domain.LedgerEntry, int64, error)
}

// AuditService records webhook receipts.
type AuditService interface {
	RecordReceipt(ctx context.Context, receipt *domain.WebhookReceipt)
}

// ReconciliationService works the ledger inconsistency queue.
type ReconciliationService interface {
	ListOpen(ctx context.Context, limit int) ([]domain.LedgerInconsistency, error)
	Replay(ctx context.Context, id uuid.UUID) (*ReplayResult, error)
	Resolve(ctx context.Context, id uuid.UUID, note string) error
}

// ReplayResult describes what a replay did.
type ReplayResult struct {
	Inconsistency domain.LedgerInconsistency
	Credited      bool // false when the ledger already held the entry
	NewBalance    int64
}
