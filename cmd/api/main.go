package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"personastudio/internal/apiclient"
	"personastudio/internal/generations"
	"personastudio/internal/http/handlers"
	"personastudio/internal/http/httpapi"
	"personastudio/internal/identity"
	"personastudio/internal/infra"
	"personastudio/internal/journal"
	"personastudio/internal/privileges"
	"personastudio/internal/studio"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := apiclient.NewClient(apiclient.Options{
		BaseURL:        cfg.APIBaseURL,
		EditPath:       cfg.APIEditPath,
		Logger:         &logger,
		RequestTimeout: cfg.APITimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build api client")
	}
	gallery, err := generations.NewClient(generations.Options{
		BaseURL:        cfg.APIBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.APITimeout,
	}, identity.ContextAuth{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generations client")
	}

	cognito, err := identity.NewCognito(ctx, cfg.AWSRegion, cfg.UserPoolClientID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build identity provider")
	}
	verifier, err := identity.NewVerifier(identity.VerifierOptions{
		Region:     cfg.AWSRegion,
		UserPoolID: cfg.UserPoolID,
		ClientID:   cfg.UserPoolClientID,
		Profiles:   cognito,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build token verifier")
	}

	resolvers := privileges.Chain{privileges.AllowList(cfg.JudgeEmails...)}
	var runJournal handlers.RunJournal
	if cfg.HasDatabase() {
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, logger)
		resolvers = append(resolvers, privileges.NewStore(runner))
		runJournal = journal.New(runner, &logger)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; runs are not journaled and monthly limits are not enforced")
	}

	studios := studio.NewRegistry(cfg.StudioSessionTTL, &logger)
	go studios.RunSweeper(ctx, time.Minute)

	app := &handlers.App{
		API:        api,
		Gallery:    gallery,
		Accounts:   identity.NewClient(cognito, identity.DiscardStore{}, &logger),
		Privileges: resolvers,
		Studios:    studios,
		Journal:    runJournal,
		Logger:     &logger,
		RunTimeout: cfg.StudioRunTimeout,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Verifier:       verifier,
		Logger:         &logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RatePerMinute:  cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("addr", server.Addr()).Str("remote", api.BaseURL()).Msg("api listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.StudioRunTimeout)
	defer cancel()
	if err := studios.Wait(waitCtx); err != nil {
		logger.Warn().Err(err).Msg("studio runs still in flight at shutdown")
	}
	logger.Info().Msg("server stopped")
}
