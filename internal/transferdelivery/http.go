// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

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

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Submit(ctx context.Context, owner string, arg domain.CreateTransferParams) (domain.TransferResult, error)
	Cancel(ctx context.Context, owner string, id int64) (domain.Transfer, error)
	Get(ctx context.Context, owner string, id int64) (domain.Transfer, error)
	List(ctx context.Context, owner string, arg domain.ListTransfersParams) ([]domain.Transfer, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type externalRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	RoutingNumber string `json:"routing_number" binding:"required"`
	HolderName    string `json:"holder_name" binding:"required"`
	BankName      string `json:"bank_name" binding:"required"`
}

type recurrenceRequest struct {
	Frequency string `json:"frequency" binding:"required,oneof=daily weekly monthly yearly"`
	EndDate   string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

type createRequest struct {
	FromAccountID int32              `json:"from_account_id" binding:"required,min=1"`
	Kind          string             `json:"kind" binding:"required,oneof=internal external"`
	ToAccountID   *int32             `json:"to_account_id" binding:"omitempty,min=1"`
	External      *externalRequest   `json:"external" binding:"omitempty"`
	Amount        string             `json:"amount" binding:"required"`
	Description   string             `json:"description"`
	ScheduledAt   string             `json:"scheduled_at" binding:"omitempty,datetime=2006-01-02"`
	Recurrence    *recurrenceRequest `json:"recurrence" binding:"omitempty"`
}

func (req createRequest) toParams() (domain.CreateTransferParams, error) {
	arg := domain.CreateTransferParams{
		FromAccountID: req.FromAccountID,
		Kind:          req.Kind,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Description:   req.Description,
	}

	if req.External != nil {
		arg.External = &domain.ExternalAccount{
			AccountNumber: req.External.AccountNumber,
			RoutingNumber: req.External.RoutingNumber,
			HolderName:    req.External.HolderName,
			BankName:      req.External.BankName,
		}
	}

	if req.ScheduledAt != "" {
		at, err := time.Parse(dateLayout, req.ScheduledAt)
		if err != nil {
			return arg, err
		}

		arg.ScheduledAt = &at
	}

	if req.Recurrence != nil {
		arg.Recurrence = &domain.Recurrence{Frequency: req.Recurrence.Frequency}

		if req.Recurrence.EndDate != "" {
			end, err := time.Parse(dateLayout, req.Recurrence.EndDate)
			if err != nil {
				return arg, err
			}

			arg.Recurrence.EndDate = &end
		}
	}

	return arg, nil
}

func bindingErrorMsg(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return field.Field() + web.GetErrorMsg(field)
	}

	return err.Error()
}

// Create handles http request to submit a transfer. Immediate transfers
// report their settlement synchronously; deferred transfers are accepted
// pending and settle via the sweep.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
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

	result, err := h.service.Submit(ctx, authPayload.Username, arg)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrInvalidOwner:
			gctx.JSON(http.StatusForbidden, web.Error(err))
			return
		case domain.ErrAccountNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case
			domain.ErrInvalidAmount,
			domain.ErrNegativeAmount,
			domain.ErrInsufficientBalance,
			domain.ErrCurrencyMismatch,
			domain.ErrDestinationRequired,
			domain.ErrExternalAccountIncomplete,
			domain.ErrInvalidKind,
			domain.ErrInvalidFrequency,
			domain.ErrAccountNotActive:
			gctx.JSON(http.StatusBadRequest, web.Error(err))

			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	status := http.StatusOK
	if result.Transfer.Status == domain.TransferStatusPending {
		status = http.StatusAccepted
	}

	gctx.JSON(status, web.Response{Data: result})
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// Cancel handles http request to cancel a pending transfer.
func (h *Handler) Cancel(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req uriRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	transfer, err := h.service.Cancel(ctx, authPayload.Username, req.ID)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrTransferNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case domain.ErrInvalidOwner:
			gctx.JSON(http.StatusForbidden, web.Error(err))
			return
		case domain.ErrTransferNotPending, domain.ErrTransferClaimed:
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transfer})
}

// Get handles http request to get one of the owner's transfers.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req uriRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	transfer, err := h.service.Get(ctx, authPayload.Username, req.ID)
	if err != nil {
		l.Info().Err(err).Send()

		switch err {
		case domain.ErrTransferNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case domain.ErrInvalidOwner:
			gctx.JSON(http.StatusForbidden, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transfer})
}

type listRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending executing completed failed cancelled"`
	PageID   int32  `form:"page_id" binding:"required,min=1"`
	PageSize int32  `form:"page_size" binding:"required,min=1,max=100"`
}

// List handles http request to list the owner's transfers.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: bindingErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	arg := domain.ListTransfersParams{
		Status: req.Status,
		Limit:  req.PageSize,
		Offset: (req.PageID - 1) * req.PageSize,
	}

	transfers, err := h.service.List(ctx, authPayload.Username, arg)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transfers})
}
