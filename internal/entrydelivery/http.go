// Package entrydelivery manages delivery layer of journal entries and balance
// reports.
package entrydelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/ledger-engine/internal/domain"
	"github.com/go-petr/ledger-engine/internal/middleware"
	"github.com/go-petr/ledger-engine/pkg/errorspkg"
	"github.com/go-petr/ledger-engine/pkg/tokenpkg"
	"github.com/go-petr/ledger-engine/pkg/web"
)

const dateLayout = "2006-01-02"

// Service provides service layer interface needed by entry delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package entrydelivery
type Service interface {
	ListEntries(ctx context.Context, owner string, arg domain.ListEntriesParams) (domain.EntriesPage, error)
	BalanceSummary(ctx context.Context, owner string) (domain.BalanceSummary, error)
}

// Handler facilitates entry delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns entry handler.
func NewHandler(rs Service) *Handler {
	return &Handler{service: rs}
}

func bindingErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + web.GetErrorMsg(field)
	}

	return err.Error()
}

type listRequest struct {
	AccountID  int32  `form:"account_id" binding:"omitempty,min=1"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Direction  string `form:"direction" binding:"omitempty,oneof=debit credit"`
	Category   string `form:"category" binding:"omitempty"`
	MinAmount  string `form:"min_amount" binding:"omitempty"`
	MaxAmount  string `form:"max_amount" binding:"omitempty"`
	Status     string `form:"status" binding:"omitempty"`
	TransferID int64  `form:"transfer_id" binding:"omitempty,min=1"`
	PageID     int32  `form:"page_id" binding:"required,min=1"`
	PageSize   int32  `form:"page_size" binding:"required,min=1,max=100"`
}

func (req listRequest) toParams() (domain.ListEntriesParams, error) {
	arg := domain.ListEntriesParams{
		AccountID:  req.AccountID,
		Direction:  req.Direction,
		Category:   req.Category,
		MinAmount:  req.MinAmount,
		MaxAmount:  req.MaxAmount,
		Status:     req.Status,
		TransferID: req.TransferID,
		Limit:      req.PageSize,
		Offset:     (req.PageID - 1) * req.PageSize,
	}

	if req.From != "" {
		from, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return arg, err
		}

		arg.From = &from
	}

	if req.To != "" {
		to, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return arg, err
		}

		// Include the whole end day.
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		arg.To = &end
	}

	return arg, nil
}

// List handles http request to list the owner's journal entries.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	arg, err := req.toParams()
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	page, err := h.service.ListEntries(ctx, authPayload.Username, arg)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: page})
}

// Balance handles http request for the owner's balance summary.
func (h *Handler) Balance(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	summary, err := h.service.BalanceSummary(ctx, authPayload.Username)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: summary})
}
