package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance holds the current funds of an account. It is mutated only
// inside a locked transfer transaction and is never negative.
type Balance struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}
