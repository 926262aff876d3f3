package domain

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrAlreadyCredited is returned when an order already has its TOPUP ledger entry.
var ErrAlreadyCredited = errors.New("order already credited")

// Wallet holds the current points balance of one wallet owner.
// It is created lazily and never deleted.
type Wallet struct {
	OwnerID       string    `json:"owner_id"`
	Balance       int64     `json:"balance"`
	LastAuditHash *string   `json:"-"` // hash of the most recent ledger entry
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LedgerTransactionType represents the kind of balance change.
type LedgerTransactionType string

const (
	LedgerTypeTopup      LedgerTransactionType = "TOPUP"
	LedgerTypeRedeem     LedgerTransactionType = "REDEEM"
	LedgerTypeAdjustment LedgerTransactionType = "ADJUSTMENT"
)

// LedgerEntry is an immutable row in the append-only wallet ledger.
type LedgerEntry struct {
	ID              uuid.UUID             `json:"id"`
	WalletOwnerID   string                `json:"wallet_owner_id"`
	OrderRef        *uuid.UUID            `json:"order_ref,omitempty"`
	TransactionType LedgerTransactionType `json:"transaction_type"`
	PointsChange    int64                 `json:"points_change"`
	BalanceBefore   int64                 `json:"balance_before"`
	BalanceAfter    int64                 `json:"balance_after"`
	Description     string                `json:"description"`
	EntryHash       string                `json:"-"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Validate checks the entry's arithmetic before it is appended.
func (e *LedgerEntry) Validate() error {
	if e.WalletOwnerID == "" {
		return fmt.Errorf("ledger entry: empty wallet owner")
	}
	switch e.TransactionType {
	case LedgerTypeTopup, LedgerTypeRedeem, LedgerTypeAdjustment:
	default:
		return fmt.Errorf("ledger entry: unknown transaction type %q", e.TransactionType)
	}
	if e.BalanceAfter != e.BalanceBefore+e.PointsChange {
		return fmt.Errorf("ledger entry: balance_after %d != balance_before %d + change %d",
			e.BalanceAfter, e.BalanceBefore, e.PointsChange)
	}
	if e.BalanceAfter < 0 {
		return fmt.Errorf("ledger entry: negative balance %d", e.BalanceAfter)
	}
	return nil
}

// NewTopupEntry builds the ledger entry crediting an order's points onto a wallet.
func NewTopupEntry(w *Wallet, o *Order, now time.Time) *LedgerEntry {
	ref := o.ID
	e := &LedgerEntry{
		ID:              uuid.New(),
		WalletOwnerID:   w.OwnerID,
		OrderRef:        &ref,
		TransactionType: LedgerTypeTopup,
		PointsChange:    o.PointsToCredit,
		BalanceBefore:   w.Balance,
		BalanceAfter:    w.Balance + o.PointsToCredit,
		Description:     "Top-up " + o.OrderID,
		CreatedAt:       now,
	}
	prev := ""
	if w.LastAuditHash != nil {
		prev = *w.LastAuditHash
	}
	e.EntryHash = ChainHash(prev, e)
	return e
}

// ChainHash computes the BLAKE2b-256 hash linking an entry to its predecessor.
func ChainHash(prev string, e *LedgerEntry) string {
	h, _ := blake2b.New256(nil) // only errors on an oversized key
	h.Write([]byte(prev))
	h.Write([]byte{0})
	h.Write(e.ID[:])
	h.Write([]byte(e.WalletOwnerID))
	h.Write([]byte{0})
	if e.OrderRef != nil {
		h.Write(e.OrderRef[:])
	}
	h.Write([]byte(e.TransactionType))
	var num [8]byte
	for _, v := range []int64{e.PointsChange, e.BalanceBefore, e.BalanceAfter, e.CreatedAt.UnixNano()} {
		binary.BigEndian.PutUint64(num[:], uint64(v))
		h.Write(num[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain recomputes the hash chain of entries ordered oldest first.
// It returns the index of the first broken entry, or -1.
func VerifyChain(entries []LedgerEntry) int {
	prev := ""
	for i := range entries {
		if ChainHash(prev, &entries[i]) != entries[i].EntryHash {
			return i
		}
		if i > 0 && entries[i].BalanceBefore != entries[i-1].BalanceAfter {
			return i
		}
		prev = entries[i].EntryHash
	}
	return -1
}
