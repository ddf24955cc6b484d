package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/ledger-engine/pkg/configpkg"
	"github.com/go-petr/ledger-engine/pkg/referencepkg"
	"github.com/go-petr/ledger-engine/pkg/tokenpkg"
	_ "github.com/lib/pq"

	"github.com/go-petr/ledger-engine/internal/accountdelivery"
	"github.com/go-petr/ledger-engine/internal/accountrepo"
	"github.com/go-petr/ledger-engine/internal/accountservice"
	"github.com/go-petr/ledger-engine/internal/entrydelivery"
	"github.com/go-petr/ledger-engine/internal/entryrepo"
	"github.com/go-petr/ledger-engine/internal/middleware"
	"github.com/go-petr/ledger-engine/internal/reportservice"
	"github.com/go-petr/ledger-engine/internal/sweepservice"
	"github.com/go-petr/ledger-engine/internal/transferdelivery"
	"github.com/go-petr/ledger-engine/internal/transferrepo"
	"github.com/go-petr/ledger-engine/internal/transferservice"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	conn, err := sql.Open(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to db")
	}

	server, sweeper, err := createServer(conn, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	sweepCtx, stopSweep := context.WithCancel(logger.WithContext(context.Background()))
	defer stopSweep()

	go sweeper.Start(sweepCtx, config.SweepInterval)

	err = server.Run(config.ServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}

func createServer(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*gin.Engine, *sweepservice.Service, error) {
	accountRepo := accountrepo.NewRepoPGS(conn)
	transferRepo := transferrepo.NewRepoPGS(conn)
	entryRepo := entryrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return nil, nil, errors.New("cannot create token maker")
	}

	accountService := accountservice.New(accountRepo)
	transferService := transferservice.New(
		transferRepo,
		accountService,
		referencepkg.New(transferRepo),
		referencepkg.New(entryRepo),
	)
	reportService := reportservice.New(entryRepo, accountRepo)
	sweepService := sweepservice.New(transferService)

	accountHandler := accountdelivery.NewHandler(accountService)
	transferHandler := transferdelivery.NewHandler(transferService)
	entryHandler := entrydelivery.NewHandler(reportService)

	gin.SetMode(gin.ReleaseMode)
	server := gin.New()

	server.Use(middleware.RequestLogger(logger))
	server.Use(gin.Recovery())

	authRoutes := server.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts/:id", accountHandler.Get)
	authRoutes.GET("/accounts", accountHandler.List)

	authRoutes.POST("/transfers", transferHandler.Create)
	authRoutes.POST("/transfers/:id/cancel", transferHandler.Cancel)
	authRoutes.GET("/transfers/:id", transferHandler.Get)
	authRoutes.GET("/transfers", transferHandler.List)

	authRoutes.GET("/entries", entryHandler.List)
	authRoutes.GET("/balance", entryHandler.Balance)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("currency", accountdelivery.ValidCurrency)
		if err != nil {
			return nil, nil, errors.New("cannot register currency validator")
		}

		err = v.RegisterValidation("balance", accountdelivery.ValidBalance)
		if err != nil {
			return nil, nil, errors.New("cannot register balance validator")
		}
	}

	return server, sweepService, nil
}
