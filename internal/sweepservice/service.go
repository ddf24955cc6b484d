// Package sweepservice manages the periodic settlement of due transfers.
//
// One sweep selects every pending transfer whose scheduled date has arrived
// and executes each through the transfer state machine. Failures are isolated
// per transfer: a bad transfer never aborts the remainder of the sweep.
package sweepservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/rs/zerolog"
)

// TransferService provides the transfer state machine operations the sweep drives.
//
//go:generate mockgen -source service.go -destination service_mock.go -package sweepservice
type TransferService interface {
	ListDue(ctx context.Context, now time.Time) ([]domain.Transfer, error)
	Execute(ctx context.Context, id int64) (domain.TransferResult, error)
	CreatePending(ctx context.Context, transfer domain.Transfer) (domain.Transfer, error)
}

// Service runs due-transfer sweeps on a fixed cadence.
type Service struct {
	transfers TransferService
	now       func() time.Time
}

// New returns sweep service struct driving the given transfer service.
func New(ts TransferService) *Service {
	return &Service{
		transfers: ts,
		now:       time.Now,
	}
}

// RunDueSweep executes every transfer due at the given time and materializes
// the next occurrence of recurring series. The claim step inside Execute makes
// a re-run of the same sweep settle each transfer at most once: transfers
// already claimed by a concurrent sweep are skipped, not counted as failures.
func (s *Service) RunDueSweep(ctx context.Context, now time.Time) (domain.SweepReport, error) {
	l := zerolog.Ctx(ctx)

	report := domain.SweepReport{Failures: map[int64]error{}}

	due, err := s.transfers.ListDue(ctx, now)
	if err != nil {
		l.Error().Err(err).Send()
		return report, err
	}

	for _, transfer := range due {
		_, err := s.transfers.Execute(ctx, transfer.ID)

		switch {
		case err == nil:
			report.Executed++
		case errors.Is(err, domain.ErrTransferClaimed), errors.Is(err, domain.ErrTransferNotPending):
			// Another sweep instance settled or is settling this transfer.
			continue
		default:
			report.Failed++
			report.Failures[transfer.ID] = err
			l.Warn().Err(err).Int64("transfer_id", transfer.ID).Str("reference", transfer.Reference).
				Msg("due transfer failed")
		}

		if !finalOutcome(err) {
			// Transient failure left the transfer pending for the next sweep;
			// rescheduling now would duplicate the series.
			continue
		}

		if rescheduled := s.materializeNext(ctx, transfer); rescheduled {
			report.Rescheduled++
		}
	}

	return report, nil
}

// finalOutcome reports whether execution reached a terminal status, which is
// when a recurring series advances. Both completed and failed occurrences
// advance the series; a human resubmits a failed occurrence explicitly.
func finalOutcome(err error) bool {
	if err == nil {
		return true
	}

	return errors.Is(err, domain.ErrInsufficientBalance) ||
		errors.Is(err, domain.ErrAccountNotActive) ||
		errors.Is(err, domain.ErrInvalidAmount)
}

// materializeNext creates the next pending occurrence of a recurring transfer.
// The executed record itself is never reused or mutated.
func (s *Service) materializeNext(ctx context.Context, transfer domain.Transfer) bool {
	l := zerolog.Ctx(ctx)

	if transfer.Recurrence == nil || transfer.ScheduledAt == nil {
		return false
	}

	next, err := transfer.Recurrence.NextAfter(*transfer.ScheduledAt)
	if err != nil {
		if !errors.Is(err, domain.ErrRecurrenceEnded) {
			l.Error().Err(err).Int64("transfer_id", transfer.ID).Send()
		}

		return false
	}

	occurrence := transfer
	occurrence.ScheduledAt = &next

	created, err := s.transfers.CreatePending(ctx, occurrence)
	if err != nil {
		l.Error().Err(err).Int64("transfer_id", transfer.ID).Msg("cannot materialize next occurrence")
		return false
	}

	l.Info().Int64("transfer_id", created.ID).Str("reference", created.Reference).
		Time("scheduled_at", next).Msg("next occurrence scheduled")

	return true
}

// Start runs sweeps on the given interval until the context is cancelled.
// It performs one sweep immediately so a restarted service catches up on
// transfers that became due while it was down.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	l := zerolog.Ctx(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("sweep runner stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	l := zerolog.Ctx(ctx)

	report, err := s.RunDueSweep(ctx, s.now())
	if err != nil {
		l.Error().Err(err).Msg("sweep aborted")
		return
	}

	l.Info().
		Int("executed", report.Executed).
		Int("failed", report.Failed).
		Int("rescheduled", report.Rescheduled).
		Msg("sweep finished")
}
