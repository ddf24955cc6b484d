// Package reportservice manages read-only reporting over accounts and the
// entry journal. It has no mutation capability.
package reportservice

import (
	"context"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EntryRepo provides the journal read access needed by the report layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package reportservice
type EntryRepo interface {
	List(ctx context.Context, owner string, arg domain.ListEntriesParams) (domain.EntriesPage, error)
}

// AccountRepo provides the account read access needed by the report layer.
type AccountRepo interface {
	List(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// accountsPageSize bounds the balance summary scan; owners hold a
	// handful of accounts in practice.
	accountsPageSize = 100
)

// Service facilitates reporting layer logic.
type Service struct {
	entryRepo   EntryRepo
	accountRepo AccountRepo
}

// New returns report service struct to serve dashboards and exports.
func New(er EntryRepo, ar AccountRepo) *Service {
	return &Service{
		entryRepo:   er,
		accountRepo: ar,
	}
}

// BalanceSummary returns the owner's total balance and per-type subtotals.
func (s *Service) BalanceSummary(ctx context.Context, owner string) (domain.BalanceSummary, error) {
	l := zerolog.Ctx(ctx)

	accounts, err := s.accountRepo.List(ctx, owner, accountsPageSize, 0)
	if err != nil {
		return domain.BalanceSummary{}, err
	}

	total := decimal.Zero
	byType := map[string]decimal.Decimal{}

	for _, account := range accounts {
		balance, err := decimal.NewFromString(account.Balance)
		if err != nil {
			l.Error().Err(err).Int32("account_id", account.ID).Send()
			return domain.BalanceSummary{}, err
		}

		total = total.Add(balance)
		byType[account.Type] = byType[account.Type].Add(balance)
	}

	summary := domain.BalanceSummary{
		Total:  total.String(),
		ByType: map[string]string{},
	}

	for accountType, subtotal := range byType {
		summary.ByType[accountType] = subtotal.String()
	}

	return summary, nil
}

// ListEntries returns one page of the owner's journal entries matching the
// filter, newest first, with the filter-wide total count.
func (s *Service) ListEntries(ctx context.Context, owner string, arg domain.ListEntriesParams) (domain.EntriesPage, error) {
	if arg.Limit <= 0 {
		arg.Limit = defaultPageSize
	}

	if arg.Limit > maxPageSize {
		arg.Limit = maxPageSize
	}

	if arg.Offset < 0 {
		arg.Offset = 0
	}

	return s.entryRepo.List(ctx, owner, arg)
}
