package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryDirection marks which side of a transfer a ledger entry records.
type EntryDirection string

// Entry directions.
const (
	DirectionDebit  EntryDirection = "DEBIT"
	DirectionCredit EntryDirection = "CREDIT"
)

// Entry is an immutable append-only ledger record. Every committed
// transfer produces exactly one DEBIT and one CREDIT entry of equal amount.
type Entry struct {
	ID         int64           `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Direction  EntryDirection  `json:"direction"`
	Amount     decimal.Decimal `json:"amount"`
	TransferID string          `json:"transfer_id"`
	CreatedAt  time.Time       `json:"created_at"`
}
