// Package userdelivery manages delivery layer of account holders over HTTP.
package userdelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by user delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package userdelivery
type Service interface {
	CreateAccount(ctx context.Context, username, secret string) (*domain.Account, bool)
	Login(ctx context.Context, username, secret string) (*domain.Account, bool)
	Balance(ctx context.Context, username string) (int64, error)
	ChangeCredential(ctx context.Context, username, secret string) error
	Transactions(ctx context.Context, username string) []domain.Transaction
}

// ErrSignupRefused is returned when the account could not be created.
var ErrSignupRefused = errors.New("account creation failed")

// Handler facilitates user delivery layer logic.
type Handler struct {
	service       Service
	tokenMaker    tokenpkg.Maker
	tokenDuration time.Duration
}

// NewHandler returns user handler.
func NewHandler(us Service, tokenMaker tokenpkg.Maker, tokenDuration time.Duration) *Handler {
	return &Handler{
		service:       us,
		tokenMaker:    tokenMaker,
		tokenDuration: tokenDuration,
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,alphanum,max=64"`
	Secret   string `json:"secret" binding:"required,max=128,credential"`
}

type accountData struct {
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// Signup handles http request to open an account and logs the user in.
func (h *Handler) Signup(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req credentialsRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	acc, ok := h.service.CreateAccount(ctx, req.Username, req.Secret)
	if !ok {
		gctx.JSON(http.StatusConflict, web.Error(ErrSignupRefused))
		return
	}

	h.respondWithToken(gctx, acc)
}

// Login handles http login request and returns an access token.
func (h *Handler) Login(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req credentialsRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	acc, ok := h.service.Login(ctx, req.Username, req.Secret)
	if !ok {
		gctx.JSON(http.StatusUnauthorized, web.Error(domain.ErrInvalidCredentials))
		return
	}

	h.respondWithToken(gctx, acc)
}

func (h *Handler) respondWithToken(gctx *gin.Context, acc *domain.Account) {
	l := zerolog.Ctx(gctx.Request.Context())

	token, payload, err := h.tokenMaker.CreateToken(acc.Username(), tokenpkg.RoleUser, h.tokenDuration)
	if err != nil {
		l.Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{
		AccessToken:          token,
		AccessTokenExpiresAt: payload.ExpiredAt.Format(time.RFC3339),
		Data:                 accountData{Username: acc.Username(), Balance: acc.Balance()},
	})
}

// Balance returns the balance of the token's user.
func (h *Handler) Balance(gctx *gin.Context) {
	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	balance, err := h.service.Balance(gctx.Request.Context(), authPayload.Username)
	if err != nil {
		if err == domain.ErrUnknownUser {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{Username: authPayload.Username, Balance: balance}})
}

type historyData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// History returns the ledger entries of the token's user.
func (h *Handler) History(gctx *gin.Context) {
	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	txs := h.service.Transactions(gctx.Request.Context(), authPayload.Username)

	gctx.JSON(http.StatusOK, web.Response{Data: historyData{Transactions: txs}})
}

type changeSecretRequest struct {
	Secret string `json:"secret" binding:"required,max=128,credential"`
}

// ChangeSecret replaces the credential of the token's user.
func (h *Handler) ChangeSecret(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req changeSecretRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.BindError(err))

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	err := h.service.ChangeCredential(ctx, authPayload.Username, req.Secret)
	if err != nil {
		switch err {
		case domain.ErrUnknownUser:
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		case errorspkg.ErrInvalidArgument:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.Status(http.StatusNoContent)
}
