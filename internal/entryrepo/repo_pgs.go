// Package entryrepo manages repository layer of journal entries.
//
// The journal is append-only: the repository exposes no update or delete of
// settled entries. Corrections are modeled as new offsetting entries.
package entryrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/pkg/dbpkg"
	"github.com/go-petr/ledger-engine/pkg/errorspkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    entries (reference, account_id, owner, direction, amount, category, description, status, transfer_id)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, reference, account_id, owner, direction, amount, category, description, status, transfer_id, created_at
`

// Create appends the entry and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.Reference,
		arg.AccountID,
		arg.Owner,
		arg.Direction,
		arg.Amount,
		arg.Category,
		arg.Description,
		domain.EntryStatusSettled,
		arg.TransferID,
	)

	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.Reference,
		&e.AccountID,
		&e.Owner,
		&e.Direction,
		&e.Amount,
		&e.Category,
		&e.Description,
		&e.Status,
		&e.TransferID,
		&e.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const getQuery = `
SELECT id, reference, account_id, owner, direction, amount, category, description, status, transfer_id, created_at
FROM entries
WHERE id = $1 LIMIT 1
`

// Get returns the entry with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.Reference,
		&e.AccountID,
		&e.Owner,
		&e.Direction,
		&e.Amount,
		&e.Category,
		&e.Description,
		&e.Status,
		&e.TransferID,
		&e.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

// filterClauses builds the WHERE conditions shared by List and Count.
func filterClauses(owner string, arg domain.ListEntriesParams) (string, []interface{}) {
	conditions := []string{"owner = $1"}
	args := []interface{}{owner}

	add := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if arg.AccountID != 0 {
		add("account_id = $%d", arg.AccountID)
	}

	if arg.From != nil {
		add("created_at >= $%d", *arg.From)
	}

	if arg.To != nil {
		add("created_at <= $%d", *arg.To)
	}

	if arg.Direction != "" {
		add("direction = $%d", arg.Direction)
	}

	if arg.Category != "" {
		add("category = $%d", arg.Category)
	}

	if arg.MinAmount != "" {
		add("amount >= $%d", arg.MinAmount)
	}

	if arg.MaxAmount != "" {
		add("amount <= $%d", arg.MaxAmount)
	}

	if arg.Status != "" {
		add("status = $%d", arg.Status)
	}

	if arg.TransferID != 0 {
		add("transfer_id = $%d", arg.TransferID)
	}

	return strings.Join(conditions, " AND "), args
}

// List returns one page of the owner's entries matching the filter together
// with the filter-wide total count, ordered newest first.
func (r *RepoPGS) List(ctx context.Context, owner string, arg domain.ListEntriesParams) (domain.EntriesPage, error) {
	l := zerolog.Ctx(ctx)

	page := domain.EntriesPage{
		Entries: []domain.Entry{},
		Limit:   arg.Limit,
		Offset:  arg.Offset,
	}

	where, args := filterClauses(owner, arg)

	countQuery := "SELECT count(*) FROM entries WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	listQuery := fmt.Sprintf(`
SELECT id, reference, account_id, owner, direction, amount, category, description, status, transfer_id, created_at
FROM entries
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	args = append(args, arg.Limit, arg.Offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(
			&e.ID,
			&e.Reference,
			&e.AccountID,
			&e.Owner,
			&e.Direction,
			&e.Amount,
			&e.Category,
			&e.Description,
			&e.Status,
			&e.TransferID,
			&e.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return page, errorspkg.ErrInternal
		}

		page.Entries = append(page.Entries, e)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return page, errorspkg.ErrInternal
	}

	return page, nil
}

const referenceUsedQuery = `
SELECT EXISTS (SELECT 1 FROM entries WHERE reference = $1)
`

// ReferenceUsed reports whether an entry already carries the given reference.
func (r *RepoPGS) ReferenceUsed(ctx context.Context, reference string) (bool, error) {
	var used bool

	if err := r.db.QueryRowContext(ctx, referenceUsedQuery, reference).Scan(&used); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return false, errorspkg.ErrInternal
	}

	return used, nil
}
