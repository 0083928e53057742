// Package httpserver manages server creation and api routing.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/admindelivery"
	"github.com/go-petr/pet-ledger/internal/bankservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/notifydelivery"
	"github.com/go-petr/pet-ledger/internal/userdelivery"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

// Deps are the running components the HTTP API exposes.
type Deps struct {
	Bank     *bankservice.Service
	Sessions admindelivery.Sessions
	Interest admindelivery.Interest
}

// Server holds handlers router and configuration.
type Server struct {
	Engine *gin.Engine
	Config configpkg.Config

	http *http.Server
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated handlers and routes.
func New(deps Deps, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	tokenMaker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker: " + err.Error())
	}

	userHandler := userdelivery.NewHandler(deps.Bank, tokenMaker, config.AccessTokenDuration)
	adminHandler := admindelivery.NewHandler(deps.Bank, deps.Sessions, deps.Interest,
		tokenMaker, config.AdminKey, config.AccessTokenDuration)
	notifyHandler := notifydelivery.NewHandler(deps.Bank)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.POST("/users", userHandler.Signup)
	engine.POST("/users/login", userHandler.Login)
	engine.POST("/admin/login", adminHandler.Login)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.GET("/balance", userHandler.Balance)
	authRoutes.GET("/transactions", userHandler.History)
	authRoutes.PUT("/users/secret", userHandler.ChangeSecret)
	authRoutes.GET("/notifications", notifyHandler.Stream)

	adminRoutes := engine.Group("/admin").Use(middleware.AuthMiddleware(tokenMaker), middleware.RequireAdmin())

	adminRoutes.GET("/sessions", adminHandler.ActiveUsers)
	adminRoutes.GET("/transactions", adminHandler.AllTransactions)
	adminRoutes.GET("/users/:username/transactions", adminHandler.UserTransactions)
	adminRoutes.POST("/users/:username/credit", adminHandler.Credit)
	adminRoutes.POST("/users/:username/debit", adminHandler.Debit)
	adminRoutes.POST("/transfers", adminHandler.Transfer)
	adminRoutes.GET("/interest", adminHandler.GetInterest)
	adminRoutes.PUT("/interest", adminHandler.UpdateInterest)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("credential", userdelivery.ValidCredential)
		if err != nil {
			return nil, errors.New("cannot register credential validator")
		}
	}

	server := &Server{
		Engine: engine,
		Config: config,
		http: &http.Server{
			Addr:              config.ServerAddress,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	return server, nil
}

// ListenAndServe serves HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops the server, waiting for active requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
