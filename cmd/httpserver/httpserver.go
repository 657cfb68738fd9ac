// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/accountdelivery"
	"github.com/mockbank/ledgersvc/internal/accountrepo"
	"github.com/mockbank/ledgersvc/internal/accountservice"
	"github.com/mockbank/ledgersvc/internal/entryrepo"
	"github.com/mockbank/ledgersvc/internal/middleware"
	"github.com/mockbank/ledgersvc/internal/notifier"
	"github.com/mockbank/ledgersvc/internal/transferdelivery"
	"github.com/mockbank/ledgersvc/internal/transferrepo"
	"github.com/mockbank/ledgersvc/internal/transferservice"
	"github.com/mockbank/ledgersvc/internal/transferworker"
	"github.com/mockbank/ledgersvc/internal/userdelivery"
	"github.com/mockbank/ledgersvc/internal/userrepo"
	"github.com/mockbank/ledgersvc/internal/userservice"
	"github.com/mockbank/ledgersvc/internal/webhookdelivery"
	"github.com/mockbank/ledgersvc/pkg/configpkg"
	"github.com/mockbank/ledgersvc/pkg/kvpkg"
	"github.com/mockbank/ledgersvc/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config

	// Workers finalizes async-mode transfers; started by the caller.
	Workers *transferworker.Pool
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, kv kvpkg.Store, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	userRepo := userrepo.NewRepoPGS(conn)
	accountRepo := accountrepo.NewRepoPGS(conn)
	entryRepo := entryrepo.NewRepoPGS(conn)
	transferRepo := transferrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	userService := userservice.New(userRepo)
	accountService := accountservice.New(accountRepo, entryRepo)

	webhook := notifier.NewWebhook(config.WebhookURL, config.WebhookTimeout)

	// The queue is wired into the service before workers start; the
	// service only ever hands it transfer ids.
	workers := transferworker.NewPool(logger, config.AsyncFinalizeDelay, 64)
	transferService := transferservice.New(transferRepo, accountService, webhook, workers, config.SyncNotify)
	workers.SetFinalizer(transferService)

	userHandler := userdelivery.NewHandler(userService, tokenMaker, config.AccessTokenDuration)
	accountHandler := accountdelivery.NewHandler(accountService)
	transferHandler := transferdelivery.NewHandler(transferService)
	webhookHandler := webhookdelivery.NewHandler()

	limiter := middleware.NewLimiter(kv)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("accountstatus", accountdelivery.ValidStatus); err != nil {
			return nil, errors.New("cannot register account status validator")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.GET("/health", func(gctx *gin.Context) {
		gctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	engine.POST("/users/login", userHandler.Login)
	engine.POST("/webhooks/transfer-status", webhookHandler.TransferStatus)

	authRoutes := engine.Group("/").Use(middleware.Auth(tokenMaker))

	authRoutes.GET("/accounts", accountHandler.List)
	authRoutes.GET("/accounts/:id/balance",
		limiter.Limit(middleware.RouteBalance, config.RateLimitPerMinBalance),
		accountHandler.GetBalance)
	authRoutes.GET("/accounts/:id/transactions", accountHandler.ListEntries)
	authRoutes.PATCH("/accounts/:id/status", accountHandler.UpdateStatus)

	// Rate limiting runs before idempotent replay, so replayed requests
	// still consume rate budget.
	authRoutes.POST("/transfers",
		limiter.Limit(middleware.RouteTransfer, config.RateLimitPerMinTransfer),
		middleware.Idempotency(kv, config.IdempotencyTTL),
		transferHandler.Create)
	authRoutes.GET("/transfers/:id", transferHandler.Get)
	authRoutes.GET("/transfers", transferHandler.List)

	server := &Server{
		DB:      conn,
		Engine:  engine,
		Config:  config,
		Workers: workers,
	}

	return server, nil
}
