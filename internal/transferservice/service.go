// Package transferservice manages business logic layer of transfers.
//
// It owns the transfer state machine: pending is the only non-terminal
// status, completed, failed and cancelled are final. Deferred transfers are
// persisted pending and settled later by the sweep; immediate transfers settle
// synchronously inside one database transaction.
package transferservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	Create(ctx context.Context, arg domain.Transfer) (domain.Transfer, error)
	Get(ctx context.Context, id int64) (domain.Transfer, error)
	List(ctx context.Context, owner string, arg domain.ListTransfersParams) ([]domain.Transfer, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.Transfer, error)
	Transition(ctx context.Context, id int64, from, to string) (domain.Transfer, error)
	SettleNew(ctx context.Context, arg domain.SettleParams) (domain.TransferResult, error)
	SettleExisting(ctx context.Context, arg domain.SettleParams) (domain.TransferResult, error)
}

// AccountService provides the account read access needed to validate transfers.
type AccountService interface {
	Get(ctx context.Context, id int32) (domain.Account, error)
}

// RefGenerator produces collision-free references for one entity collection.
type RefGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Reference prefixes.
const (
	TransferRefPrefix = "TRF"
	EntryRefPrefix    = "TXN"
)

// Service facilitates transfer service layer logic.
type Service struct {
	repo           Repo
	accountService AccountService
	transferRefs   RefGenerator
	entryRefs      RefGenerator
	now            func() time.Time
}

// New returns transfer service struct to manage transfer bussines logic.
func New(tr Repo, as AccountService, transferRefs, entryRefs RefGenerator) *Service {
	return &Service{
		repo:           tr,
		accountService: as,
		transferRefs:   transferRefs,
		entryRefs:      entryRefs,
		now:            time.Now,
	}
}

// validRequest validates the submission and returns the source account.
// Validation and authorization errors are resolved here and never reach the
// balance mutation path.
func (s *Service) validRequest(ctx context.Context, owner string, arg domain.CreateTransferParams) (domain.Account, decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.Account{}, amount, domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Account{}, amount, domain.ErrNegativeAmount
	}

	fromAccount, err := s.accountService.Get(ctx, arg.FromAccountID)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Account{}, amount, err
	}

	if fromAccount.Owner != owner {
		return domain.Account{}, amount, domain.ErrInvalidOwner
	}

	if !fromAccount.CanSettle() {
		return domain.Account{}, amount, domain.ErrAccountNotActive
	}

	switch arg.Kind {
	case domain.TransferKindInternal:
		if arg.ToAccountID == nil {
			return domain.Account{}, amount, domain.ErrDestinationRequired
		}

		toAccount, err := s.accountService.Get(ctx, *arg.ToAccountID)
		if err != nil {
			l.Info().Err(err).Send()
			return domain.Account{}, amount, err
		}

		if !toAccount.CanSettle() {
			return domain.Account{}, amount, domain.ErrAccountNotActive
		}

		if fromAccount.Currency != toAccount.Currency {
			return domain.Account{}, amount, domain.ErrCurrencyMismatch
		}
	case domain.TransferKindExternal:
		if arg.External == nil || !arg.External.Complete() {
			return domain.Account{}, amount, domain.ErrExternalAccountIncomplete
		}
	default:
		return domain.Account{}, amount, domain.ErrInvalidKind
	}

	if arg.Recurrence != nil && !domain.IsSupportedFrequency(arg.Recurrence.Frequency) {
		return domain.Account{}, amount, domain.ErrInvalidFrequency
	}

	return fromAccount, amount, nil
}

// Submit validates the transfer intent and either settles it immediately or
// persists it pending for the sweep. Deferred submissions never touch
// balances; their outcome is observable later via status queries.
func (s *Service) Submit(ctx context.Context, owner string, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	fromAccount, amount, err := s.validRequest(ctx, owner, arg)
	if err != nil {
		return domain.TransferResult{}, err
	}

	reference, err := s.transferRefs.Next(ctx, TransferRefPrefix)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.TransferResult{}, err
	}

	transfer := domain.Transfer{
		Reference:     reference,
		Owner:         owner,
		FromAccountID: arg.FromAccountID,
		Kind:          arg.Kind,
		ToAccountID:   arg.ToAccountID,
		External:      arg.External,
		Amount:        arg.Amount,
		Currency:      fromAccount.Currency,
		Description:   arg.Description,
		ScheduledAt:   arg.ScheduledAt,
		Recurrence:    arg.Recurrence,
	}

	// A recurring transfer without an explicit start date begins today.
	if transfer.Recurrence != nil && transfer.ScheduledAt == nil {
		today := startOfDay(s.now())
		transfer.ScheduledAt = &today
	}

	if transfer.Deferred(s.now()) {
		transfer.Status = domain.TransferStatusPending

		created, err := s.repo.Create(ctx, transfer)
		if err != nil {
			return domain.TransferResult{}, err
		}

		return domain.TransferResult{Transfer: created}, nil
	}

	balance, err := decimal.NewFromString(fromAccount.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.TransferResult{}, err
	}

	if balance.LessThan(amount) {
		return domain.TransferResult{}, domain.ErrInsufficientBalance
	}

	settleArg, err := s.settleParams(ctx, transfer)
	if err != nil {
		return domain.TransferResult{}, err
	}

	return s.repo.SettleNew(ctx, settleArg)
}

// Cancel transitions the owner's pending transfer to cancelled. Funds were
// never moved for a pending transfer, so cancellation has no balance effect.
func (s *Service) Cancel(ctx context.Context, owner string, id int64) (domain.Transfer, error) {
	transfer, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Transfer{}, err
	}

	if transfer.Owner != owner {
		return domain.Transfer{}, domain.ErrInvalidOwner
	}

	return s.repo.Transition(ctx, id, domain.TransferStatusPending, domain.TransferStatusCancelled)
}

// Execute settles a due pending transfer on behalf of the sweep. It first
// claims the transfer with the conditional pending -> executing transition so
// that repeated or concurrent sweeps settle it at most once, then re-checks
// the balance at execution time.
//
// Semantically final failures (insufficient funds, unusable account) move the
// transfer to failed. Transient failures put the claim back to pending so the
// next sweep retries.
func (s *Service) Execute(ctx context.Context, id int64) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	transfer, err := s.repo.Transition(ctx, id, domain.TransferStatusPending, domain.TransferStatusExecuting)
	if err != nil {
		return domain.TransferResult{}, err
	}

	fromAccount, err := s.accountService.Get(ctx, transfer.FromAccountID)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.TransferResult{}, s.releaseClaim(ctx, transfer, err)
	}

	if !fromAccount.CanSettle() {
		return domain.TransferResult{}, s.failTransfer(ctx, transfer, domain.ErrAccountNotActive)
	}

	// The destination may have been frozen or closed between submission and
	// execution; an internal transfer must not credit an unusable account.
	if transfer.Kind == domain.TransferKindInternal && transfer.ToAccountID != nil {
		toAccount, err := s.accountService.Get(ctx, *transfer.ToAccountID)
		if err != nil {
			l.Error().Err(err).Send()
			return domain.TransferResult{}, s.releaseClaim(ctx, transfer, err)
		}

		if !toAccount.CanSettle() {
			return domain.TransferResult{}, s.failTransfer(ctx, transfer, domain.ErrAccountNotActive)
		}
	}

	amount, err := decimal.NewFromString(transfer.Amount)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.TransferResult{}, s.failTransfer(ctx, transfer, domain.ErrInvalidAmount)
	}

	balance, err := decimal.NewFromString(fromAccount.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.TransferResult{}, s.releaseClaim(ctx, transfer, err)
	}

	if balance.LessThan(amount) {
		return domain.TransferResult{}, s.failTransfer(ctx, transfer, domain.ErrInsufficientBalance)
	}

	settleArg, err := s.settleParams(ctx, transfer)
	if err != nil {
		return domain.TransferResult{}, s.releaseClaim(ctx, transfer, err)
	}

	result, err := s.repo.SettleExisting(ctx, settleArg)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return domain.TransferResult{}, s.failTransfer(ctx, transfer, err)
		}

		return domain.TransferResult{}, s.releaseClaim(ctx, transfer, err)
	}

	return result, nil
}

// failTransfer records a semantically final execution failure and returns the
// original cause.
func (s *Service) failTransfer(ctx context.Context, transfer domain.Transfer, cause error) error {
	if _, err := s.repo.Transition(ctx, transfer.ID, domain.TransferStatusExecuting, domain.TransferStatusFailed); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("transfer_id", transfer.ID).Msg("cannot mark transfer failed")
	}

	return cause
}

// releaseClaim puts a transiently failed claim back to pending and returns the
// original cause, leaving the transfer to the next sweep.
func (s *Service) releaseClaim(ctx context.Context, transfer domain.Transfer, cause error) error {
	if _, err := s.repo.Transition(ctx, transfer.ID, domain.TransferStatusExecuting, domain.TransferStatusPending); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("transfer_id", transfer.ID).Msg("cannot release transfer claim")
	}

	return cause
}

func (s *Service) settleParams(ctx context.Context, transfer domain.Transfer) (domain.SettleParams, error) {
	l := zerolog.Ctx(ctx)

	arg := domain.SettleParams{Transfer: transfer}

	debitRef, err := s.entryRefs.Next(ctx, EntryRefPrefix)
	if err != nil {
		l.Error().Err(err).Send()
		return arg, err
	}

	arg.DebitReference = debitRef

	if transfer.Kind == domain.TransferKindInternal {
		creditRef, err := s.entryRefs.Next(ctx, EntryRefPrefix)
		if err != nil {
			l.Error().Err(err).Send()
			return arg, err
		}

		arg.CreditReference = creditRef
	}

	return arg, nil
}

// Get returns the owner's transfer with the given id.
func (s *Service) Get(ctx context.Context, owner string, id int64) (domain.Transfer, error) {
	transfer, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Transfer{}, err
	}

	if transfer.Owner != owner {
		return domain.Transfer{}, domain.ErrInvalidOwner
	}

	return transfer, nil
}

// List returns the owner's transfers, newest first.
func (s *Service) List(ctx context.Context, owner string, arg domain.ListTransfersParams) ([]domain.Transfer, error) {
	return s.repo.List(ctx, owner, arg)
}

// ListDue returns all pending transfers due at the given time.
func (s *Service) ListDue(ctx context.Context, now time.Time) ([]domain.Transfer, error) {
	return s.repo.ListDue(ctx, now)
}

// CreatePending persists a brand-new pending transfer, used by the sweep to
// materialize the next occurrence of a recurring series.
func (s *Service) CreatePending(ctx context.Context, transfer domain.Transfer) (domain.Transfer, error) {
	reference, err := s.transferRefs.Next(ctx, TransferRefPrefix)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return domain.Transfer{}, err
	}

	transfer.ID = 0
	transfer.Reference = reference
	transfer.Status = domain.TransferStatusPending
	transfer.CreatedAt = time.Time{}

	return s.repo.Create(ctx, transfer)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
