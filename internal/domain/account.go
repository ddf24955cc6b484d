// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNotActive indicates that the account is inactive or frozen.
	ErrAccountNotActive = errors.New("account is not active")
)

// Account types.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
	AccountTypeLoan     = "loan"
)

// Account statuses. Accounts are never deleted, only moved between statuses.
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
	AccountStatusFrozen   = "frozen"
)

// Account holds user balance data for a specific currency.
// The balance is mutated only by the transfer settlement transaction.
type Account struct {
	ID        int32     `json:"id"`
	Owner     string    `json:"owner"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CanSettle reports whether the account may take part in a transfer.
func (a Account) CanSettle() bool {
	return a.Status == AccountStatusActive
}

// BalanceSummary aggregates the balances of all accounts of one owner.
type BalanceSummary struct {
	Total  string            `json:"total"`
	ByType map[string]string `json:"by_type"`
}
