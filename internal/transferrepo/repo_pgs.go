// Package transferrepo manages repository layer of transfers.
package transferrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-petr/ledger-engine/internal/accountrepo"
	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/internal/entryrepo"
	"github.com/go-petr/ledger-engine/pkg/dbpkg"
	"github.com/go-petr/ledger-engine/pkg/errorspkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates transfer repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns transfer RepoPGS bound to an open transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns transfer RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const transferColumns = `
id, reference, owner, from_account_id, kind, to_account_id,
external_account_number, external_routing_number, external_holder_name, external_bank_name,
amount, currency, status, description, scheduled_at, recurrence_frequency, recurrence_end, created_at
`

const createQuery = `
INSERT INTO transfers (
	reference, owner, from_account_id, kind, to_account_id,
	external_account_number, external_routing_number, external_holder_name, external_bank_name,
	amount, currency, status, description, scheduled_at, recurrence_frequency, recurrence_end
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING ` + transferColumns

// Create creates the transfer record with its given status and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.Transfer) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	var (
		accountNumber, routingNumber, holderName, bankName sql.NullString
		frequency                                          sql.NullString
		recurrenceEnd                                      sql.NullTime
	)

	if arg.External != nil {
		accountNumber = sql.NullString{String: arg.External.AccountNumber, Valid: true}
		routingNumber = sql.NullString{String: arg.External.RoutingNumber, Valid: true}
		holderName = sql.NullString{String: arg.External.HolderName, Valid: true}
		bankName = sql.NullString{String: arg.External.BankName, Valid: true}
	}

	if arg.Recurrence != nil {
		frequency = sql.NullString{String: arg.Recurrence.Frequency, Valid: true}

		if arg.Recurrence.EndDate != nil {
			recurrenceEnd = sql.NullTime{Time: *arg.Recurrence.EndDate, Valid: true}
		}
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.Reference,
		arg.Owner,
		arg.FromAccountID,
		arg.Kind,
		arg.ToAccountID,
		accountNumber,
		routingNumber,
		holderName,
		bankName,
		arg.Amount,
		arg.Currency,
		arg.Status,
		arg.Description,
		arg.ScheduledAt,
		frequency,
		recurrenceEnd,
	)

	t, err := scanTransfer(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "transfers_from_account_id_fkey", "transfers_to_account_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transfers_amount_check":
				return t, domain.ErrInvalidAmount
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

// rowScanner abstracts sql.Row and sql.Rows for transfer scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransfer(row rowScanner) (domain.Transfer, error) {
	var (
		t                                                  domain.Transfer
		toAccountID                                        sql.NullInt32
		accountNumber, routingNumber, holderName, bankName sql.NullString
		frequency                                          sql.NullString
		scheduledAt, recurrenceEnd                         sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.Reference,
		&t.Owner,
		&t.FromAccountID,
		&t.Kind,
		&toAccountID,
		&accountNumber,
		&routingNumber,
		&holderName,
		&bankName,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.Description,
		&scheduledAt,
		&frequency,
		&recurrenceEnd,
		&t.CreatedAt,
	)
	if err != nil {
		return t, err
	}

	if toAccountID.Valid {
		id := toAccountID.Int32
		t.ToAccountID = &id
	}

	if accountNumber.Valid {
		t.External = &domain.ExternalAccount{
			AccountNumber: accountNumber.String,
			RoutingNumber: routingNumber.String,
			HolderName:    holderName.String,
			BankName:      bankName.String,
		}
	}

	if scheduledAt.Valid {
		at := scheduledAt.Time
		t.ScheduledAt = &at
	}

	if frequency.Valid {
		t.Recurrence = &domain.Recurrence{Frequency: frequency.String}

		if recurrenceEnd.Valid {
			end := recurrenceEnd.Time
			t.Recurrence.EndDate = &end
		}
	}

	return t, nil
}

const getQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE id = $1
`

// Get returns the transfer with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransfer(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return t, domain.ErrTransferNotFound
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE owner = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`

// List returns the owner's transfers, newest first, optionally filtered by status.
func (r *RepoPGS) List(ctx context.Context, owner string, arg domain.ListTransfersParams) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, owner, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transfer{}

	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const listDueQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
ORDER BY scheduled_at, id
`

// ListDue returns all pending transfers whose scheduled date has arrived.
func (r *RepoPGS) ListDue(ctx context.Context, now time.Time) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listDueQuery, domain.TransferStatusPending, now)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transfer{}

	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const transitionQuery = `
UPDATE transfers
SET status = $1
WHERE id = $2 AND status = $3
RETURNING ` + transferColumns

// Transition moves the transfer from one exact status to another. The
// conditional update is claimed by at most one caller, which makes it both
// the sweep's exactly-once guard (pending -> executing) and the guard that
// keeps cancellation and execution mutually exclusive.
func (r *RepoPGS) Transition(ctx context.Context, id int64, from, to string) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransfer(r.db.QueryRowContext(ctx, transitionQuery, to, id, from))
	if err == nil {
		return t, nil
	}

	if err != sql.ErrNoRows {
		l.Error().Err(err).Send()
		return t, errorspkg.ErrInternal
	}

	// Lost the conditional update. Inspect the current status to report why.
	current, err := r.Get(ctx, id)
	if err != nil {
		return t, err
	}

	if current.Status == domain.TransferStatusExecuting {
		return t, domain.ErrTransferClaimed
	}

	return t, domain.ErrTransferNotPending
}

// SettleNew performs an immediate transfer in one database transaction.
//
// It creates the transfer record as completed, moves the balances, and appends
// the journal entries. Either everything commits or nothing does: a debit is
// never observable without its matching entries.
func (r *RepoPGS) SettleNew(ctx context.Context, arg domain.SettleParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.TransferResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	txRepo := NewTxRepoPGS(tx)

	arg.Transfer.Status = domain.TransferStatusCompleted

	result.Transfer, err = txRepo.Create(ctx, arg.Transfer)
	if err != nil {
		return result, err
	}

	if err := settle(ctx, tx, result.Transfer, arg, &result); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return result, nil
}

// SettleExisting settles a previously claimed transfer (status executing) in
// one database transaction: balances, journal entries, and the transition to
// completed commit together or not at all.
func (r *RepoPGS) SettleExisting(ctx context.Context, arg domain.SettleParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.TransferResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	txRepo := NewTxRepoPGS(tx)

	result.Transfer, err = txRepo.Transition(ctx, arg.Transfer.ID, domain.TransferStatusExecuting, domain.TransferStatusCompleted)
	if err != nil {
		return result, err
	}

	if err := settle(ctx, tx, result.Transfer, arg, &result); err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return result, nil
}

// settle moves the balances and appends the journal entries for the given
// transfer inside the caller's transaction. Balance updates run in consistent
// account id order to avoid deadlocks between concurrent transfers.
func settle(ctx context.Context, tx dbpkg.SQLInterface, transfer domain.Transfer, arg domain.SettleParams, result *domain.TransferResult) error {
	l := zerolog.Ctx(ctx)

	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)

	if transfer.Kind == domain.TransferKindExternal {
		fromAccount, err := accountRepo.AddBalance(ctx, "-"+transfer.Amount, transfer.FromAccountID)
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				l.Error().Err(err).Send()
			}

			return err
		}

		result.FromAccount = fromAccount

		debit, err := entryRepo.Create(ctx, debitParams(transfer, arg.DebitReference))
		if err != nil {
			return err
		}

		result.Entries = []domain.Entry{debit}

		return nil
	}

	fromID, toID := transfer.FromAccountID, *transfer.ToAccountID

	var err error
	if fromID < toID {
		result.FromAccount, err = accountRepo.AddBalance(ctx, "-"+transfer.Amount, fromID)
		if err == nil {
			result.ToAccount, err = accountRepo.AddBalance(ctx, transfer.Amount, toID)
		}
	} else {
		result.ToAccount, err = accountRepo.AddBalance(ctx, transfer.Amount, toID)
		if err == nil {
			result.FromAccount, err = accountRepo.AddBalance(ctx, "-"+transfer.Amount, fromID)
		}
	}

	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			l.Error().Err(err).Send()
		}

		return err
	}

	debit, err := entryRepo.Create(ctx, debitParams(transfer, arg.DebitReference))
	if err != nil {
		return err
	}

	credit, err := entryRepo.Create(ctx, domain.CreateEntryParams{
		Reference:   arg.CreditReference,
		AccountID:   toID,
		Owner:       result.ToAccount.Owner,
		Direction:   domain.EntryDirectionCredit,
		Amount:      transfer.Amount,
		Category:    domain.EntryCategoryTransfer,
		Description: transfer.Description,
		TransferID:  &transfer.ID,
	})
	if err != nil {
		return err
	}

	result.Entries = []domain.Entry{debit, credit}

	return nil
}

func debitParams(transfer domain.Transfer, reference string) domain.CreateEntryParams {
	return domain.CreateEntryParams{
		Reference:   reference,
		AccountID:   transfer.FromAccountID,
		Owner:       transfer.Owner,
		Direction:   domain.EntryDirectionDebit,
		Amount:      transfer.Amount,
		Category:    domain.EntryCategoryTransfer,
		Description: transfer.Description,
		TransferID:  &transfer.ID,
	}
}

const referenceUsedQuery = `
SELECT EXISTS (SELECT 1 FROM transfers WHERE reference = $1)
`

// ReferenceUsed reports whether a transfer already carries the given reference.
func (r *RepoPGS) ReferenceUsed(ctx context.Context, reference string) (bool, error) {
	var used bool

	if err := r.db.QueryRowContext(ctx, referenceUsedQuery, reference).Scan(&used); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return false, errorspkg.ErrInternal
	}

	return used, nil
}
