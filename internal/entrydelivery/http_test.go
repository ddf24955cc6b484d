package entrydelivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/internal/middleware"
	"github.com/go-petr/ledger-engine/pkg/errorspkg"
	"github.com/go-petr/ledger-engine/pkg/randompkg"
	"github.com/go-petr/ledger-engine/pkg/tokenpkg"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*gin.Engine, *MockService, tokenpkg.Maker) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := NewHandler(service)

	server := gin.New()
	authorized := server.Group("/").Use(middleware.AuthMiddleware(tokenMaker))
	authorized.GET("/entries", handler.List)
	authorized.GET("/balance", handler.Balance)

	return server, service, tokenMaker
}

func addAuth(t *testing.T, request *http.Request, tokenMaker tokenpkg.Maker, username string) {
	t.Helper()

	err := middleware.AddAuthorization(request, tokenMaker, middleware.AuthTypeBearer, username, time.Minute)
	require.NoError(t, err)
}

func TestListEntriesAPI(t *testing.T) {
	username := randompkg.Owner()

	page := domain.EntriesPage{
		Entries: []domain.Entry{
			{
				Reference: "TXN20240610-AAAAAA",
				AccountID: 1,
				Owner:     username,
				Direction: domain.EntryDirectionDebit,
				Amount:    "100",
				Category:  domain.EntryCategoryTransfer,
				Status:    domain.EntryStatusSettled,
			},
		},
		Total:  1,
		Limit:  20,
		Offset: 0,
	}

	testCases := []struct {
		name          string
		query         string
		buildStubs    func(service *MockService)
		checkResponse func(recorder *httptest.ResponseRecorder)
	}{
		{
			name:  "MissingPagination",
			query: "",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:  "InvalidDirection",
			query: "?direction=sideways&page_id=1&page_size=20",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:  "InvalidFromDate",
			query: "?from=10-06-2024&page_id=1&page_size=20",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:  "FiltersForwarded",
			query: "?account_id=1&from=2024-06-01&to=2024-06-30&direction=debit&min_amount=10&page_id=2&page_size=20",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Eq(username), gomock.Any()).
					Times(1).
					DoAndReturn(func(_ context.Context, _ string, arg domain.ListEntriesParams) (domain.EntriesPage, error) {
						require.Equal(t, int32(1), arg.AccountID)
						require.Equal(t, domain.EntryDirectionDebit, arg.Direction)
						require.Equal(t, "10", arg.MinAmount)
						require.Equal(t, int32(20), arg.Limit)
						require.Equal(t, int32(20), arg.Offset)

						require.NotNil(t, arg.From)
						require.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), arg.From.UTC())

						// The end date filter covers the whole closing day.
						require.NotNil(t, arg.To)
						require.Equal(t, time.Date(2024, time.June, 30, 23, 59, 59, 999999999, time.UTC), arg.To.UTC())

						return page, nil
					})
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
			},
		},
		{
			name:  "InternalError",
			query: "?page_id=1&page_size=20",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Eq(username), gomock.Any()).
					Times(1).
					Return(domain.EntriesPage{}, errorspkg.ErrInternal)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
		{
			name:  "OK",
			query: "?page_id=1&page_size=20",
			buildStubs: func(service *MockService) {
				service.EXPECT().ListEntries(gomock.Any(), gomock.Eq(username), gomock.Any()).
					Times(1).
					Return(page, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			server, service, tokenMaker := newTestServer(t)
			tc.buildStubs(service)

			request, err := http.NewRequest(http.MethodGet, "/entries"+tc.query, nil)
			require.NoError(t, err)

			addAuth(t, request, tokenMaker, username)
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)
			tc.checkResponse(recorder)
		})
	}
}

func TestBalanceAPI(t *testing.T) {
	username := randompkg.Owner()

	summary := domain.BalanceSummary{
		Total: "1600",
		ByType: map[string]string{
			domain.AccountTypeChecking: "1300",
			domain.AccountTypeSavings:  "800",
			domain.AccountTypeLoan:     "-500",
		},
	}

	testCases := []struct {
		name          string
		setupAuth     func(t *testing.T, request *http.Request, tokenMaker tokenpkg.Maker)
		buildStubs    func(service *MockService)
		checkResponse func(recorder *httptest.ResponseRecorder)
	}{
		{
			name:      "NoAuthorization",
			setupAuth: func(t *testing.T, request *http.Request, tokenMaker tokenpkg.Maker) {},
			buildStubs: func(service *MockService) {
				service.EXPECT().BalanceSummary(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnauthorized, recorder.Code)
			},
		},
		{
			name: "InternalError",
			setupAuth: func(t *testing.T, request *http.Request, tokenMaker tokenpkg.Maker) {
				addAuth(t, request, tokenMaker, username)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().BalanceSummary(gomock.Any(), gomock.Eq(username)).
					Times(1).
					Return(domain.BalanceSummary{}, errorspkg.ErrInternal)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
		{
			name: "OK",
			setupAuth: func(t *testing.T, request *http.Request, tokenMaker tokenpkg.Maker) {
				addAuth(t, request, tokenMaker, username)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().BalanceSummary(gomock.Any(), gomock.Eq(username)).
					Times(1).
					Return(summary, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			server, service, tokenMaker := newTestServer(t)
			tc.buildStubs(service)

			request, err := http.NewRequest(http.MethodGet, "/balance", nil)
			require.NoError(t, err)

			tc.setupAuth(t, request, tokenMaker)
			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)
			tc.checkResponse(recorder)
		})
	}
}
