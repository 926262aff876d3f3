package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "topup_orders_order_id_key"}

	assert.True(t, isUniqueViolation(dup, ""))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dup), "topup_orders_order_id_key"))
	assert.False(t, isUniqueViolation(dup, "topup_orders_provider_transaction_id_key"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23514"}, ""))
	assert.False(t, isUniqueViolation(errors.New("plain"), ""))
}
