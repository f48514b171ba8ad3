package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"meetapp/cmd/buildCFG"
	"meetapp/internal/api/api"
	"meetapp/internal/cache"
	notifyReader "meetapp/internal/consumerWorker"
	"meetapp/internal/handler"
	"meetapp/internal/mailer"
	"meetapp/internal/rabbit"
	"meetapp/internal/repo"
	"meetapp/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	buildCFG.LoadDotenv(&log)

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	smtpCfg, err := buildCFG.BuildSMTPConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load SMTP config")
	}
	mail := mailer.New(smtpCfg, &log)

	// Listings survive without the cache; only log when it is unreachable.
	var listingCache service.ListingCache
	redisCfg := buildCFG.BuildRedisConfig(cfg, &log)
	if redisCfg.Addr != "" {
		rc, err := cache.New(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.TTL, &log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, listing cache disabled")
		} else {
			defer rc.Close()
			listingCache = rc
		}
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	reader := notifyReader.NewReader(rmq, repository, mail)
	go reader.Start(workerCtx)

	meetupService := service.NewMeetupService(repository, &log, listingCache, time.Now)
	subscriptionService := service.NewSubscriptionService(repository, &log, rmq, time.Now)
	h := handler.New(meetupService, subscriptionService, &log, time.Now, serverCfg.FileBaseURL)
	app := api.NewRouters(&api.Routers{Handler: h})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := app.Run(":" + serverCfg.Port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	cancelWorkers()
	reader.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if closer, ok := interface{}(app).(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			log.Error().Msgf("Error shutting down server: %v", err)
		}
	}

	log.Info().Msg("Shutdown complete")
}
