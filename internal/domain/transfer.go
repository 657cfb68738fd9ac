package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus enumerates the transfer state machine states.
// PROCESSING transitions exactly once to SUCCESS or FAILED.
type TransferStatus string

// Transfer statuses.
const (
	TransferProcessing TransferStatus = "PROCESSING"
	TransferSuccess    TransferStatus = "SUCCESS"
	TransferFailed     TransferStatus = "FAILED"
)

// Transfer modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

var (
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates a zero or negative amount.
	ErrNegativeAmount = errors.New("amount must be positive")
	// ErrSameAccount indicates a transfer between an account and itself.
	ErrSameAccount = errors.New("cannot transfer to the same account")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient funds")
	// ErrInvalidOwner indicates that the user does not own the source account.
	ErrInvalidOwner = errors.New("unauthorized owner")
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrDuplicateTransfer indicates a repeated logical submission under the same idempotency key.
	ErrDuplicateTransfer = errors.New("duplicate transfer submission")
	// ErrTransactionFailed is surfaced when the atomic step fails unexpectedly.
	ErrTransactionFailed = errors.New("transaction failed")
)

// Transfer holds transfer data between two accounts. A transfer row is
// created in PROCESSING before any balance mutation so a crash mid-transfer
// leaves an inspectable record.
type Transfer struct {
	ID             string          `json:"transfer_id"`
	FromAccountID  string          `json:"from_acct"`
	ToAccountID    string          `json:"to_acct"`
	Amount         decimal.Decimal `json:"amount"`
	Status         TransferStatus  `json:"status"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateTransferParams is the input data for transfer creation.
type CreateTransferParams struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Mode           string
	IdempotencyKey string
}

// CreateTransferResult is the outcome of the transfer creation entry point.
type CreateTransferResult struct {
	TransferID string
	Status     TransferStatus
	Accepted   bool
}
