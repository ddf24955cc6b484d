package entryrepo

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-petr/ledger-engine/internal/accountrepo"
	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/pkg/configpkg"
	"github.com/go-petr/ledger-engine/pkg/randompkg"
	"github.com/stretchr/testify/require"
)

var (
	testRepo        *RepoPGS
	testAccountRepo *accountrepo.RepoPGS
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

	os.Exit(m.Run())
}

func randomReference() string {
	return "TXN" + strings.ToUpper(randompkg.String(12))
}

func createRandomAccount(t *testing.T, owner string) domain.Account {
	t.Helper()

	account, err := testAccountRepo.Create(
		context.Background(),
		owner,
		domain.AccountTypeChecking,
		randompkg.MoneyAmountBetween(1_000, 10_000),
		"USD",
	)
	require.NoError(t, err)
	require.NotEmpty(t, account)

	return account
}

func createRandomEntry(t *testing.T, account domain.Account, direction, amount string) domain.Entry {
	t.Helper()

	arg := domain.CreateEntryParams{
		Reference:   randomReference(),
		AccountID:   account.ID,
		Owner:       account.Owner,
		Direction:   direction,
		Amount:      amount,
		Category:    domain.EntryCategoryTransfer,
		Description: "test entry",
	}

	entry, err := testRepo.Create(context.Background(), arg)
	require.NoError(t, err)
	require.NotEmpty(t, entry)

	require.Equal(t, arg.Reference, entry.Reference)
	require.Equal(t, arg.AccountID, entry.AccountID)
	require.Equal(t, arg.Owner, entry.Owner)
	require.Equal(t, arg.Direction, entry.Direction)
	require.Equal(t, domain.EntryStatusSettled, entry.Status)

	require.NotZero(t, entry.ID)
	require.NotZero(t, entry.CreatedAt)

	return entry
}

func TestCreate(t *testing.T) {
	account := createRandomAccount(t, randompkg.Owner())
	createRandomEntry(t, account, domain.EntryDirectionDebit, "100")
}

func TestGet(t *testing.T) {
	account := createRandomAccount(t, randompkg.Owner())
	entry := createRandomEntry(t, account, domain.EntryDirectionCredit, "100")

	entry2, err := testRepo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entry2)

	require.Equal(t, entry.ID, entry2.ID)
	require.Equal(t, entry.Reference, entry2.Reference)
	require.Equal(t, entry.Amount, entry2.Amount)
	require.WithinDuration(t, entry.CreatedAt, entry2.CreatedAt, time.Second)
}

func TestList(t *testing.T) {
	owner := randompkg.Owner()
	account := createRandomAccount(t, owner)
	other := createRandomAccount(t, randompkg.Owner())

	for i := 0; i < 3; i++ {
		createRandomEntry(t, account, domain.EntryDirectionDebit, "100")
	}

	createRandomEntry(t, account, domain.EntryDirectionCredit, "300")
	createRandomEntry(t, other, domain.EntryDirectionDebit, "50")

	testCases := []struct {
		name          string
		arg           domain.ListEntriesParams
		checkResponse func(t *testing.T, page domain.EntriesPage)
	}{
		{
			name: "AllOwnerEntries",
			arg:  domain.ListEntriesParams{Limit: 10},
			checkResponse: func(t *testing.T, page domain.EntriesPage) {
				require.EqualValues(t, 4, page.Total)
				require.Len(t, page.Entries, 4)

				for _, entry := range page.Entries {
					require.Equal(t, owner, entry.Owner)
				}
			},
		},
		{
			name: "DebitsOnly",
			arg:  domain.ListEntriesParams{Direction: domain.EntryDirectionDebit, Limit: 10},
			checkResponse: func(t *testing.T, page domain.EntriesPage) {
				require.EqualValues(t, 3, page.Total)

				for _, entry := range page.Entries {
					require.Equal(t, domain.EntryDirectionDebit, entry.Direction)
				}
			},
		},
		{
			name: "MinAmount",
			arg:  domain.ListEntriesParams{MinAmount: "200", Limit: 10},
			checkResponse: func(t *testing.T, page domain.EntriesPage) {
				require.EqualValues(t, 1, page.Total)
				require.Equal(t, domain.EntryDirectionCredit, page.Entries[0].Direction)
			},
		},
		{
			name: "PageSmallerThanTotal",
			arg:  domain.ListEntriesParams{Limit: 2},
			checkResponse: func(t *testing.T, page domain.EntriesPage) {
				require.EqualValues(t, 4, page.Total)
				require.Len(t, page.Entries, 2)
			},
		},
		{
			name: "OffsetBeyondTotal",
			arg:  domain.ListEntriesParams{Limit: 10, Offset: 10},
			checkResponse: func(t *testing.T, page domain.EntriesPage) {
				require.EqualValues(t, 4, page.Total)
				require.Empty(t, page.Entries)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			page, err := testRepo.List(context.Background(), owner, tc.arg)
			require.NoError(t, err)
			tc.checkResponse(t, page)
		})
	}
}

func TestListOrderedNewestFirst(t *testing.T) {
	owner := randompkg.Owner()
	account := createRandomAccount(t, owner)

	first := createRandomEntry(t, account, domain.EntryDirectionDebit, "10")
	second := createRandomEntry(t, account, domain.EntryDirectionDebit, "20")

	page, err := testRepo.List(context.Background(), owner, domain.ListEntriesParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)

	require.Equal(t, second.ID, page.Entries[0].ID)
	require.Equal(t, first.ID, page.Entries[1].ID)
}

func TestReferenceUsed(t *testing.T) {
	account := createRandomAccount(t, randompkg.Owner())
	entry := createRandomEntry(t, account, domain.EntryDirectionDebit, "100")

	used, err := testRepo.ReferenceUsed(context.Background(), entry.Reference)
	require.NoError(t, err)
	require.True(t, used)

	used, err = testRepo.ReferenceUsed(context.Background(), randomReference())
	require.NoError(t, err)
	require.False(t, used)
}
