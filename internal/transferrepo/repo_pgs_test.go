package transferrepo

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-petr/ledger-engine/internal/accountrepo"
	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/internal/entryrepo"
	"github.com/go-petr/ledger-engine/pkg/configpkg"
	"github.com/go-petr/ledger-engine/pkg/randompkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testRepo        *RepoPGS
	testAccountRepo *accountrepo.RepoPGS
	testEntryRepo   *entryrepo.RepoPGS
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	testDB, err := sql.Open(config.DBDriver, config.DBSource)
	if err != nil {
		log.Fatal("cannot connect to db:", err)
	}

	testRepo = NewRepoPGS(testDB)
	testAccountRepo = accountrepo.NewRepoPGS(testDB)
	testEntryRepo = entryrepo.NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func randomReference(prefix string) string {
	return prefix + strings.ToUpper(randompkg.String(12))
}

func createRandomAccount(t *testing.T, owner, balance string) domain.Account {
	t.Helper()

	account, err := testAccountRepo.Create(context.Background(), owner, domain.AccountTypeChecking, balance, "USD")
	require.NoError(t, err)
	require.NotEmpty(t, account)

	return account
}

func internalTransfer(from, to domain.Account, amount, status string) domain.Transfer {
	toID := to.ID

	return domain.Transfer{
		Reference:     randomReference("TRF"),
		Owner:         from.Owner,
		FromAccountID: from.ID,
		Kind:          domain.TransferKindInternal,
		ToAccountID:   &toID,
		Amount:        amount,
		Currency:      from.Currency,
		Status:        status,
		Description:   "test transfer",
	}
}

func createPendingTransfer(t *testing.T, from, to domain.Account, amount string, scheduledAt time.Time) domain.Transfer {
	t.Helper()

	arg := internalTransfer(from, to, amount, domain.TransferStatusPending)
	arg.ScheduledAt = &scheduledAt

	transfer, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)
	require.NotEmpty(t, transfer)

	return transfer
}

func TestCreate(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	arg := internalTransfer(from, to, "100", domain.TransferStatusPending)
	scheduledAt := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	arg.ScheduledAt = &scheduledAt
	arg.Recurrence = &domain.Recurrence{Frequency: domain.FrequencyWeekly, EndDate: &endDate}

	transfer, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)
	require.NotEmpty(t, transfer)

	require.Equal(t, arg.Reference, transfer.Reference)
	require.Equal(t, arg.Owner, transfer.Owner)
	require.Equal(t, arg.FromAccountID, transfer.FromAccountID)
	require.Equal(t, domain.TransferKindInternal, transfer.Kind)
	require.NotNil(t, transfer.ToAccountID)
	require.Equal(t, to.ID, *transfer.ToAccountID)
	require.Equal(t, domain.TransferStatusPending, transfer.Status)

	require.NotNil(t, transfer.ScheduledAt)
	require.True(t, scheduledAt.Equal(transfer.ScheduledAt.UTC()))
	require.NotNil(t, transfer.Recurrence)
	require.Equal(t, domain.FrequencyWeekly, transfer.Recurrence.Frequency)
	require.NotNil(t, transfer.Recurrence.EndDate)
	require.True(t, endDate.Equal(transfer.Recurrence.EndDate.UTC()))

	require.NotZero(t, transfer.ID)
	require.NotZero(t, transfer.CreatedAt)
}

func TestCreateExternal(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")

	arg := domain.Transfer{
		Reference:     randomReference("TRF"),
		Owner:         from.Owner,
		FromAccountID: from.ID,
		Kind:          domain.TransferKindExternal,
		External: &domain.ExternalAccount{
			AccountNumber: "12345678",
			RoutingNumber: "021000021",
			HolderName:    "Jane Roe",
			BankName:      "First National",
		},
		Amount:   "100",
		Currency: from.Currency,
		Status:   domain.TransferStatusPending,
	}

	transfer, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)

	require.Nil(t, transfer.ToAccountID)
	require.NotNil(t, transfer.External)
	require.Equal(t, arg.External.AccountNumber, transfer.External.AccountNumber)
	require.Equal(t, arg.External.BankName, transfer.External.BankName)
}

func TestCreateConstraintViolations(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	testCases := []struct {
		name     string
		mutate   func(arg *domain.Transfer)
		expected error
	}{
		{
			name: "UnknownFromAccount",
			mutate: func(arg *domain.Transfer) {
				arg.FromAccountID = -1
			},
			expected: domain.ErrAccountNotFound,
		},
		{
			name: "NonPositiveAmount",
			mutate: func(arg *domain.Transfer) {
				arg.Amount = "0"
			},
			expected: domain.ErrInvalidAmount,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			arg := internalTransfer(from, to, "100", domain.TransferStatusPending)
			tc.mutate(&arg)

			transfer, err := testRepo.Create(context.Background(), arg)
			require.EqualError(t, err, tc.expected.Error())
			require.Empty(t, transfer)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	transfer, err := testRepo.Get(context.Background(), -1)
	require.EqualError(t, err, domain.ErrTransferNotFound.Error())
	require.Empty(t, transfer)
}

func TestList(t *testing.T) {
	owner := randompkg.Owner()
	from := createRandomAccount(t, owner, "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	scheduledAt := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		createPendingTransfer(t, from, to, "100", scheduledAt)
	}

	cancelled := createPendingTransfer(t, from, to, "100", scheduledAt)
	_, err := testRepo.Transition(context.Background(), cancelled.ID, domain.TransferStatusPending, domain.TransferStatusCancelled)
	require.NoError(t, err)

	all, err := testRepo.List(context.Background(), owner, domain.ListTransfersParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)

	pending, err := testRepo.List(context.Background(), owner, domain.ListTransfersParams{
		Status: domain.TransferStatusPending,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, pending, 3)

	for _, transfer := range pending {
		require.Equal(t, domain.TransferStatusPending, transfer.Status)
		require.Equal(t, owner, transfer.Owner)
	}
}

func TestListDue(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	past := time.Now().UTC().AddDate(0, 0, -1)
	future := time.Now().UTC().AddDate(0, 0, 7)

	due := createPendingTransfer(t, from, to, "100", past)
	notDue := createPendingTransfer(t, from, to, "100", future)

	transfers, err := testRepo.ListDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)

	ids := map[int64]bool{}
	for _, transfer := range transfers {
		ids[transfer.ID] = true
		require.Equal(t, domain.TransferStatusPending, transfer.Status)
	}

	require.True(t, ids[due.ID])
	require.False(t, ids[notDue.ID])
}

func TestTransition(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")
	scheduledAt := time.Now().UTC()

	t.Run("ClaimWonOnce", func(t *testing.T) {
		transfer := createPendingTransfer(t, from, to, "100", scheduledAt)

		claimed, err := testRepo.Transition(context.Background(), transfer.ID, domain.TransferStatusPending, domain.TransferStatusExecuting)
		require.NoError(t, err)
		require.Equal(t, domain.TransferStatusExecuting, claimed.Status)

		// The same conditional update loses the second time.
		_, err = testRepo.Transition(context.Background(), transfer.ID, domain.TransferStatusPending, domain.TransferStatusExecuting)
		require.EqualError(t, err, domain.ErrTransferClaimed.Error())
	})

	t.Run("CancelledTransferNotClaimable", func(t *testing.T) {
		transfer := createPendingTransfer(t, from, to, "100", scheduledAt)

		_, err := testRepo.Transition(context.Background(), transfer.ID, domain.TransferStatusPending, domain.TransferStatusCancelled)
		require.NoError(t, err)

		_, err = testRepo.Transition(context.Background(), transfer.ID, domain.TransferStatusPending, domain.TransferStatusExecuting)
		require.EqualError(t, err, domain.ErrTransferNotPending.Error())
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := testRepo.Transition(context.Background(), -1, domain.TransferStatusPending, domain.TransferStatusExecuting)
		require.EqualError(t, err, domain.ErrTransferNotFound.Error())
	})
}

func requireBalanceDelta(t *testing.T, before domain.Account, after domain.Account, delta string) {
	t.Helper()

	b := decimal.RequireFromString(before.Balance)
	a := decimal.RequireFromString(after.Balance)
	d := decimal.RequireFromString(delta)

	require.True(t, b.Add(d).Equal(a), "balance %s + %s != %s", before.Balance, delta, after.Balance)
}

func TestSettleNew(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	arg := domain.SettleParams{
		Transfer:        internalTransfer(from, to, "100", ""),
		DebitReference:  randomReference("TXN"),
		CreditReference: randomReference("TXN"),
	}

	result, err := testRepo.SettleNew(context.Background(), arg)
	require.NoError(t, err)

	require.Equal(t, domain.TransferStatusCompleted, result.Transfer.Status)
	requireBalanceDelta(t, from, result.FromAccount, "-100")
	requireBalanceDelta(t, to, result.ToAccount, "100")

	require.Len(t, result.Entries, 2)
	require.Equal(t, domain.EntryDirectionDebit, result.Entries[0].Direction)
	require.Equal(t, domain.EntryDirectionCredit, result.Entries[1].Direction)

	for _, entry := range result.Entries {
		require.NotNil(t, entry.TransferID)
		require.Equal(t, result.Transfer.ID, *entry.TransferID)
		require.Equal(t, "100", entry.Amount)
	}
}

func TestSettleNewInsufficientBalance(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "50")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	arg := domain.SettleParams{
		Transfer:        internalTransfer(from, to, "100", ""),
		DebitReference:  randomReference("TXN"),
		CreditReference: randomReference("TXN"),
	}

	_, err := testRepo.SettleNew(context.Background(), arg)
	require.EqualError(t, err, domain.ErrInsufficientBalance.Error())

	// The whole transaction rolled back: no transfer record, no balance
	// movement, no journal entries.
	used, err := testRepo.ReferenceUsed(context.Background(), arg.Transfer.Reference)
	require.NoError(t, err)
	require.False(t, used)

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.Equal(t, from.Balance, fromAfter.Balance)

	toAfter, err := testAccountRepo.Get(context.Background(), to.ID)
	require.NoError(t, err)
	require.Equal(t, to.Balance, toAfter.Balance)

	debitUsed, err := testEntryRepo.ReferenceUsed(context.Background(), arg.DebitReference)
	require.NoError(t, err)
	require.False(t, debitUsed)
}

func TestSettleNewConcurrentDebits(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	// Two settlements race for the account's entire balance.
	n := 2
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func() {
			arg := domain.SettleParams{
				Transfer:        internalTransfer(from, to, "1000", ""),
				DebitReference:  randomReference("TXN"),
				CreditReference: randomReference("TXN"),
			}

			_, err := testRepo.SettleNew(context.Background(), arg)
			errs <- err
		}()
	}

	var completed, insufficient int

	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			completed++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("SettleNew returned unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, completed)
	require.Equal(t, 1, insufficient)

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.False(t, decimal.RequireFromString(fromAfter.Balance).IsNegative())
	require.True(t, decimal.RequireFromString(fromAfter.Balance).IsZero())

	toAfter, err := testAccountRepo.Get(context.Background(), to.ID)
	require.NoError(t, err)
	requireBalanceDelta(t, to, toAfter, "1000")
}

func TestSettleExisting(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	pending := createPendingTransfer(t, from, to, "100", time.Now().UTC())

	claimed, err := testRepo.Transition(context.Background(), pending.ID, domain.TransferStatusPending, domain.TransferStatusExecuting)
	require.NoError(t, err)

	arg := domain.SettleParams{
		Transfer:        claimed,
		DebitReference:  randomReference("TXN"),
		CreditReference: randomReference("TXN"),
	}

	result, err := testRepo.SettleExisting(context.Background(), arg)
	require.NoError(t, err)

	require.Equal(t, pending.ID, result.Transfer.ID)
	require.Equal(t, domain.TransferStatusCompleted, result.Transfer.Status)
	requireBalanceDelta(t, from, result.FromAccount, "-100")
	requireBalanceDelta(t, to, result.ToAccount, "100")
	require.Len(t, result.Entries, 2)
}

func TestSettleExistingWithoutClaim(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	pending := createPendingTransfer(t, from, to, "100", time.Now().UTC())

	arg := domain.SettleParams{
		Transfer:        pending,
		DebitReference:  randomReference("TXN"),
		CreditReference: randomReference("TXN"),
	}

	// Settling requires the executing claim; a still-pending transfer refuses.
	_, err := testRepo.SettleExisting(context.Background(), arg)
	require.EqualError(t, err, domain.ErrTransferNotPending.Error())

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.Equal(t, from.Balance, fromAfter.Balance)
}

func TestReferenceUsed(t *testing.T) {
	from := createRandomAccount(t, randompkg.Owner(), "1000")
	to := createRandomAccount(t, randompkg.Owner(), "500")

	transfer := createPendingTransfer(t, from, to, "100", time.Now().UTC())

	used, err := testRepo.ReferenceUsed(context.Background(), transfer.Reference)
	require.NoError(t, err)
	require.True(t, used)

	used, err = testRepo.ReferenceUsed(context.Background(), randomReference("TRF"))
	require.NoError(t, err)
	require.False(t, used)
}
