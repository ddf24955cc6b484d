package domain

import (
	"errors"
	"time"
)

var (
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrCurrencyMismatch indicates that transfer accounts have different currencies.
	ErrCurrencyMismatch = errors.New("accounts currency mismatch")
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates negative amount.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidOwner indicates that the user is unauthorized to operate on the transfer or account.
	ErrInvalidOwner = errors.New("unauthorized owner")
	// ErrExternalAccountIncomplete indicates missing external destination fields.
	ErrExternalAccountIncomplete = errors.New("incomplete external account details")
	// ErrDestinationRequired indicates that an internal transfer lacks a destination account.
	ErrDestinationRequired = errors.New("destination account required")
	// ErrInvalidKind indicates an unsupported transfer kind.
	ErrInvalidKind = errors.New("unsupported transfer kind")
	// ErrTransferNotPending indicates that the transfer already left the pending status.
	ErrTransferNotPending = errors.New("transfer is not pending")
	// ErrTransferClaimed indicates that a concurrent sweep or cancellation claimed the transfer first.
	ErrTransferClaimed = errors.New("transfer claimed by concurrent operation")
	// ErrRecurrenceEnded indicates that the recurrence series has no next occurrence.
	ErrRecurrenceEnded = errors.New("recurrence series ended")
	// ErrInvalidFrequency indicates an unsupported recurrence frequency.
	ErrInvalidFrequency = errors.New("unsupported recurrence frequency")
)

// Transfer kinds.
const (
	TransferKindInternal = "internal"
	TransferKindExternal = "external"
)

// Transfer statuses. Pending is the only status visible to users as
// non-terminal; executing marks a transfer claimed by a running sweep.
const (
	TransferStatusPending   = "pending"
	TransferStatusExecuting = "executing"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
	TransferStatusCancelled = "cancelled"
)

// IsTerminalTransferStatus reports whether the status permits no further transitions.
func IsTerminalTransferStatus(status string) bool {
	switch status {
	case TransferStatusCompleted, TransferStatusFailed, TransferStatusCancelled:
		return true
	}

	return false
}

// Recurrence frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// IsSupportedFrequency returns true if the recurrence frequency is supported.
func IsSupportedFrequency(frequency string) bool {
	switch frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}

	return false
}

// Recurrence describes a repeating transfer series.
type Recurrence struct {
	Frequency string     `json:"frequency"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// NextAfter advances the given occurrence date by one frequency step using
// calendar arithmetic. Monthly and yearly steps clamp to the last day of the
// target month when the source day overflows it, so a series from Jan 31 runs
// on Feb 28/29 rather than drifting into March. It returns ErrRecurrenceEnded
// when the advanced date falls after the series end date.
func (r Recurrence) NextAfter(occurrence time.Time) (time.Time, error) {
	var next time.Time

	switch r.Frequency {
	case FrequencyDaily:
		next = occurrence.AddDate(0, 0, 1)
	case FrequencyWeekly:
		next = occurrence.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = addMonthsClamped(occurrence, 1)
	case FrequencyYearly:
		next = addMonthsClamped(occurrence, 12)
	default:
		return next, ErrInvalidFrequency
	}

	if r.EndDate != nil && next.After(*r.EndDate) {
		return next, ErrRecurrenceEnded
	}

	return next, nil
}

// addMonthsClamped advances by whole months without the time.AddDate
// normalization that carries an overflowing day into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	target := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}

	return time.Date(target.Year(), target.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ExternalAccount describes a destination outside the bank.
type ExternalAccount struct {
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number"`
	HolderName    string `json:"holder_name"`
	BankName      string `json:"bank_name"`
}

// Complete reports whether all descriptor fields are present.
func (e ExternalAccount) Complete() bool {
	return e.AccountNumber != "" && e.RoutingNumber != "" && e.HolderName != "" && e.BankName != ""
}

// Transfer holds data for moving money out of one account, either to another
// internal account (ToAccountID set) or to an external one (External set).
// The reference is immutable once assigned, terminal statuses are final, and a
// recurring transfer never mutates itself for the next occurrence.
type Transfer struct {
	ID            int64            `json:"id"`
	Reference     string           `json:"reference"`
	Owner         string           `json:"owner"`
	FromAccountID int32            `json:"from_account_id"`
	Kind          string           `json:"kind"`
	ToAccountID   *int32           `json:"to_account_id,omitempty"`
	External      *ExternalAccount `json:"external,omitempty"`
	Amount        string           `json:"amount"` // must be positive
	Currency      string           `json:"currency"`
	Status        string           `json:"status"`
	Description   string           `json:"description"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	Recurrence    *Recurrence      `json:"recurrence,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Deferred reports whether the transfer settles later via the sweep instead of
// immediately at submission.
func (t Transfer) Deferred(now time.Time) bool {
	if t.Recurrence != nil {
		return true
	}

	if t.ScheduledAt == nil {
		return false
	}

	return !t.ScheduledAt.Before(startOfDay(now))
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// CreateTransferParams is the input data for submitting a transfer.
type CreateTransferParams struct {
	FromAccountID int32            `json:"from_account_id"`
	Kind          string           `json:"kind"`
	ToAccountID   *int32           `json:"to_account_id,omitempty"`
	External      *ExternalAccount `json:"external,omitempty"`
	Amount        string           `json:"amount"`
	Description   string           `json:"description"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	Recurrence    *Recurrence      `json:"recurrence,omitempty"`
}

// ListTransfersParams is the input data to list an owner's transfers.
type ListTransfersParams struct {
	Status string `json:"status"`
	Limit  int32  `json:"limit"`
	Offset int32  `json:"offset"`
}

// SettleParams carries a transfer into the atomic settlement transaction
// together with pre-generated references for the journal entries it produces.
// CreditReference is unused for external transfers.
type SettleParams struct {
	Transfer        Transfer `json:"transfer"`
	DebitReference  string   `json:"debit_reference"`
	CreditReference string   `json:"credit_reference"`
}

// TransferResult is the outcome of submitting or executing a transfer.
// Entries and account snapshots are populated only for settled transfers;
// a deferred submission carries just the pending Transfer.
type TransferResult struct {
	Transfer    Transfer `json:"transfer"`
	FromAccount Account  `json:"from_account,omitempty"`
	ToAccount   Account  `json:"to_account,omitempty"`
	Entries     []Entry  `json:"entries,omitempty"`
}

// SweepReport aggregates the outcome of one due-transfer sweep.
type SweepReport struct {
	Executed    int             `json:"executed"`
	Failed      int             `json:"failed"`
	Rescheduled int             `json:"rescheduled"`
	Failures    map[int64]error `json:"-"`
}
