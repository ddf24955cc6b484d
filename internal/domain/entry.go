package domain

import "time"

// Entry directions.
const (
	EntryDirectionDebit  = "debit"
	EntryDirectionCredit = "credit"
)

// Entry categories.
const (
	EntryCategoryTransfer = "transfer"
	EntryCategoryFunding  = "funding"
)

// Entry statuses.
const (
	EntryStatusSettled = "settled"
)

// Entry holds one side of a settled balance change. Entries are append-only:
// a completed internal transfer produces exactly one debit and one credit
// sharing the same amount and transfer id, an external transfer a single
// debit. Corrections are new offsetting entries, never updates.
type Entry struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	AccountID   int32     `json:"account_id"`
	Owner       string    `json:"owner"`
	Direction   string    `json:"direction"`
	Amount      string    `json:"amount"` // non-negative
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	TransferID  *int64    `json:"transfer_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateEntryParams is the input data for appending one journal entry.
type CreateEntryParams struct {
	Reference   string `json:"reference"`
	AccountID   int32  `json:"account_id"`
	Owner       string `json:"owner"`
	Direction   string `json:"direction"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	TransferID  *int64 `json:"transfer_id,omitempty"`
}

// ListEntriesParams filters the owner's journal entries. Zero values mean
// the dimension is not filtered.
type ListEntriesParams struct {
	AccountID  int32      `json:"account_id"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Direction  string     `json:"direction"`
	Category   string     `json:"category"`
	MinAmount  string     `json:"min_amount"`
	MaxAmount  string     `json:"max_amount"`
	Status     string     `json:"status"`
	TransferID int64      `json:"transfer_id"`
	Limit      int32      `json:"limit"`
	Offset     int32      `json:"offset"`
}

// EntriesPage is one page of journal entries with the filter-wide total.
type EntriesPage struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
	Limit   int32   `json:"limit"`
	Offset  int32   `json:"offset"`
}
