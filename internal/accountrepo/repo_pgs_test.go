package accountrepo

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/pkg/configpkg"
	"github.com/go-petr/ledger-engine/pkg/randompkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testRepo *RepoPGS

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

	os.Exit(m.Run())
}

func createRandomAccount(t *testing.T, owner string) domain.Account {
	t.Helper()

	testBalance := randompkg.MoneyAmountBetween(1_000, 10_000)
	testCurrency := randompkg.Currency()

	account, err := testRepo.Create(context.Background(), owner, domain.AccountTypeChecking, testBalance, testCurrency)
	require.NoError(t, err)
	require.NotEmpty(t, account)

	require.Equal(t, owner, account.Owner)
	require.Equal(t, domain.AccountTypeChecking, account.Type)
	require.Equal(t, testBalance, account.Balance)
	require.Equal(t, testCurrency, account.Currency)
	require.Equal(t, domain.AccountStatusActive, account.Status)

	require.NotZero(t, account.ID)
	require.NotZero(t, account.CreatedAt)

	return account
}

func TestCreate(t *testing.T) {
	createRandomAccount(t, randompkg.Owner())
}

func TestGet(t *testing.T) {
	testAccount := createRandomAccount(t, randompkg.Owner())

	account2, err := testRepo.Get(context.Background(), testAccount.ID)
	require.NoError(t, err)
	require.NotEmpty(t, account2)

	require.Equal(t, testAccount.ID, account2.ID)
	require.Equal(t, testAccount.Owner, account2.Owner)
	require.Equal(t, testAccount.Balance, account2.Balance)
	require.Equal(t, testAccount.Currency, account2.Currency)
	require.WithinDuration(t, testAccount.CreatedAt, account2.CreatedAt, time.Second)
}

func TestGetNotFound(t *testing.T) {
	account, err := testRepo.Get(context.Background(), -1)
	require.EqualError(t, err, domain.ErrAccountNotFound.Error())
	require.Empty(t, account)
}

func TestSetStatus(t *testing.T) {
	testAccount := createRandomAccount(t, randompkg.Owner())

	frozen, err := testRepo.SetStatus(context.Background(), testAccount.ID, domain.AccountStatusFrozen)
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusFrozen, frozen.Status)
	require.Equal(t, testAccount.Balance, frozen.Balance)

	active, err := testRepo.SetStatus(context.Background(), testAccount.ID, domain.AccountStatusActive)
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusActive, active.Status)
}

func TestList(t *testing.T) {
	owner := randompkg.Owner()

	for i := 0; i < 5; i++ {
		createRandomAccount(t, owner)
	}

	accounts, err := testRepo.List(context.Background(), owner, 5, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 5)

	for _, account := range accounts {
		require.NotEmpty(t, account)
		require.Equal(t, owner, account.Owner)
	}
}

func TestAddBalance(t *testing.T) {
	testAccount := createRandomAccount(t, randompkg.Owner())
	testAmount := randompkg.MoneyAmountBetween(100, 1_000)

	balanceBefore, err := decimal.NewFromString(testAccount.Balance)
	require.NoError(t, err)
	delta, err := decimal.NewFromString(testAmount)
	require.NoError(t, err)

	account2, err := testRepo.AddBalance(context.Background(), testAmount, testAccount.ID)
	require.NoError(t, err)
	require.NotEmpty(t, account2)

	balanceAfter, err := decimal.NewFromString(account2.Balance)
	require.NoError(t, err)

	require.Equal(t, testAccount.ID, account2.ID)
	require.Equal(t, testAccount.Owner, account2.Owner)
	require.True(t, balanceBefore.Add(delta).Equal(balanceAfter))
	require.Equal(t, testAccount.Currency, account2.Currency)
}

func TestAddBalanceInsufficient(t *testing.T) {
	testAccount := createRandomAccount(t, randompkg.Owner())

	overdraft := decimal.RequireFromString(testAccount.Balance).Add(decimal.NewFromInt(1)).Neg().String()

	account, err := testRepo.AddBalance(context.Background(), overdraft, testAccount.ID)
	require.EqualError(t, err, domain.ErrInsufficientBalance.Error())
	require.Empty(t, account)
}

func TestAddBalanceNotFound(t *testing.T) {
	account, err := testRepo.AddBalance(context.Background(), "100", -1)
	require.EqualError(t, err, domain.ErrAccountNotFound.Error())
	require.Empty(t, account)
}
