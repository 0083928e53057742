// Package admindelivery manages delivery layer of the operator console.
package admindelivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

//go:generate mockgen -source http.go -destination http_mock.go -package admindelivery

// Service provides service layer interface needed by admin delivery layer.
type Service interface {
	AccountExists(username string) bool
	Deposit(ctx context.Context, username string, amount int64) (int64, error)
	Withdraw(ctx context.Context, username string, amount int64) (int64, error)
	Transfer(ctx context.Context, fromUser, toUser string, amount int64) (bool, error)
	Transactions(ctx context.Context, username string) []domain.Transaction
	AllTransactions(ctx context.Context) []domain.Transaction
}

// Sessions lists the users logged in over TCP.
type Sessions interface {
	Active() []string
}

// Interest controls the periodic interest task.
type Interest interface {
	Rate() float64
	Period() time.Duration
	SetRate(rate float64) error
	SetPeriod(period time.Duration) error
}

// ErrWrongAdminKey is returned when the admin key does not match.
var ErrWrongAdminKey = errors.New("wrong admin key")

// Handler facilitates admin delivery layer logic.
type Handler struct {
	service       Service
	sessions      Sessions
	interest      Interest
	tokenMaker    tokenpkg.Maker
	adminKey      string
	tokenDuration time.Duration
}

// NewHandler returns admin handler. An empty adminKey disables admin login.
func NewHandler(
	s Service,
	sess Sessions,
	i Interest,
	tokenMaker tokenpkg.Maker,
	adminKey string,
	tokenDuration time.Duration,
) *Handler {
	return &Handler{
		service:       s,
		sessions:      sess,
		interest:      i,
		tokenMaker:    tokenMaker,
		adminKey:      adminKey,
		tokenDuration: tokenDuration,
	}
}

type loginRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
}

// Login exchanges the admin key for an admin token.
func (h *Handler) Login(gctx *gin.Context) {
	l := zerolog.Ctx(gctx.Request.Context())

	var req loginRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(h.adminKey)) != 1 {
		l.Warn().Str("client_ip", gctx.ClientIP()).Msg("admin login rejected")
		gctx.JSON(http.StatusUnauthorized, web.Error(ErrWrongAdminKey))

		return
	}

	token, payload, err := h.tokenMaker.CreateToken("admin", tokenpkg.RoleAdmin, h.tokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		AccessToken:          token,
		AccessTokenExpiresAt: payload.ExpiredAt.Format(time.RFC3339),
	})
}

type activeUsersData struct {
	Users []string `json:"users"`
}

// ActiveUsers lists the users logged in over TCP.
func (h *Handler) ActiveUsers(gctx *gin.Context) {
	users := h.sessions.Active()
	if users == nil {
		users = []string{}
	}

	gctx.JSON(http.StatusOK, web.Response{Data: activeUsersData{Users: users}})
}

type transactionsData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// AllTransactions returns the whole ledger.
func (h *Handler) AllTransactions(gctx *gin.Context) {
	txs := h.service.AllTransactions(gctx.Request.Context())
	if txs == nil {
		txs = []domain.Transaction{}
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transactionsData{Transactions: txs}})
}

type userURI struct {
	Username string `uri:"username" binding:"required"`
}

// UserTransactions returns the ledger entries of one user.
func (h *Handler) UserTransactions(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri userURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		gctx.JSON(http.StatusBadRequest, web.BindError(err))
		return
	}

	if !h.service.AccountExists(uri.Username) {
		gctx.JSON(http.StatusNotFound, web.Error(domain.ErrUnknownUser))
		return
	}

	txs := h.service.Transactions(ctx, uri.Username)

	gctx.JSON(http.StatusOK, web.Response{Data: transactionsData{Transactions: txs}})
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type balanceData struct {
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// Credit deposits an amount to a user.
func (h *Handler) Credit(gctx *gin.Context) {
	h.changeBalance(gctx, h.service.Deposit)
}

// Debit withdraws an amount from a user.
func (h *Handler) Debit(gctx *gin.Context) {
	h.changeBalance(gctx, h.service.Withdraw)
}

func (h *Handler) changeBalance(gctx *gin.Context, op func(context.Context, string, int64) (int64, error)) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri userURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		gctx.JSON(http.StatusBadRequest, web.BindError(err))
		return
	}

	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	balance, err := op(ctx, uri.Username, req.Amount)
	if err != nil {
		switch err {
		case domain.ErrUnknownUser:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case domain.ErrInsufficientFunds:
			gctx.JSON(http.StatusConflict, web.Error(err))
			return
		case errorspkg.ErrInvalidArgument:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: balanceData{Username: uri.Username, Balance: balance}})
}

type transferRequest struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required,nefield=From"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// ErrTransferRefused is returned when a transfer is refused by the bank.
var ErrTransferRefused = errors.New("transfer refused")

// Transfer moves an amount between two users.
func (h *Handler) Transfer(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	ok, err := h.service.Transfer(ctx, req.From, req.To, req.Amount)
	if err != nil {
		if err == errorspkg.ErrInvalidArgument {
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	if !ok {
		gctx.JSON(http.StatusConflict, web.Error(ErrTransferRefused))
		return
	}

	gctx.Status(http.StatusNoContent)
}

type interestData struct {
	Rate   float64 `json:"rate"`
	Period string  `json:"period"`
}

// GetInterest returns the current interest schedule.
func (h *Handler) GetInterest(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, web.Response{Data: h.interestData()})
}

type interestRequest struct {
	Rate   *float64 `json:"rate" binding:"omitempty,gt=0"`
	Period string   `json:"period"`
}

// UpdateInterest changes the interest rate, the period or both. The new values
// apply from the next cycle.
func (h *Handler) UpdateInterest(gctx *gin.Context) {
	l := zerolog.Ctx(gctx.Request.Context())

	var req interestRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	if req.Rate == nil && req.Period == "" {
		gctx.JSON(http.StatusBadRequest, web.Error(errorspkg.ErrInvalidArgument))
		return
	}

	var period time.Duration

	if req.Period != "" {
		var err error

		period, err = time.ParseDuration(req.Period)
		if err != nil || period <= 0 {
			gctx.JSON(http.StatusBadRequest, web.Error(errorspkg.ErrInvalidArgument))
			return
		}
	}

	if req.Rate != nil {
		if err := h.interest.SetRate(*req.Rate); err != nil {
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}
	}

	if period > 0 {
		if err := h.interest.SetPeriod(period); err != nil {
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}
	}

	data := h.interestData()
	l.Info().Float64("rate", data.Rate).Str("period", data.Period).Msg("interest schedule changed")

	gctx.JSON(http.StatusOK, web.Response{Data: data})
}

func (h *Handler) interestData() interestData {
	return interestData{
		Rate:   h.interest.Rate(),
		Period: h.interest.Period().String(),
	}
}
