// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"
)

// AccountStatus enumerates the externally triggered account states.
type AccountStatus string

// Account statuses.
const (
	StatusActive AccountStatus = "active"
	StatusFrozen AccountStatus = "frozen"
	StatusClosed AccountStatus = "closed"
)

// ValidAccountStatus reports whether s is one of the known account statuses.
func ValidAccountStatus(s string) bool {
	switch AccountStatus(s) {
	case StatusActive, StatusFrozen, StatusClosed:
		return true
	}

	return false
}

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAccountStatus indicates an unknown account status value.
	ErrInvalidAccountStatus = errors.New("invalid account status")
	// ErrSourceAccountFrozen indicates that the source account cannot send transfers.
	ErrSourceAccountFrozen = errors.New("source account is frozen and cannot send transfers")
	// ErrDestinationAccountFrozen indicates that the destination account cannot receive transfers.
	ErrDestinationAccountFrozen = errors.New("destination account is frozen and cannot receive transfers")
	// ErrSourceAccountClosed indicates that the source account is closed.
	ErrSourceAccountClosed = errors.New("source account is closed")
	// ErrDestinationAccountClosed indicates that the destination account is closed.
	ErrDestinationAccountClosed = errors.New("destination account is closed")
)

// Account holds the identity and status of a customer account.
// Status transitions happen outside the transfer engine but are
// enforced by it.
type Account struct {
	ID        string        `json:"account_id"`
	Owner     string        `json:"owner"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
