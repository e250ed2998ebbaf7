package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"dinlipi/internal/auth"
	"dinlipi/internal/config"
	"dinlipi/internal/db"
	"dinlipi/internal/handlers"
	"dinlipi/internal/logging"
	"dinlipi/internal/repository"
	"dinlipi/internal/services"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logging.Must(false).Fatal("load config", zap.Error(err))
	}

	logger := logging.Must(cfg.IsProduction())
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	dbConn, err := sqlx.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open db", zap.Error(err))
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(10)
	dbConn.SetConnMaxLifetime(2 * time.Hour)

	ctx := context.Background()
	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	err = dbConn.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal("failed to ping db", zap.Error(err))
	}
	if err := db.RunMigrations(ctx, dbConn); err != nil {
		logger.Fatal("failed migrations", zap.Error(err))
	}

	encKey, idxKey, err := cfg.Keys()
	if err != nil {
		logger.Fatal("invalid keys", zap.Error(err))
	}
	enc, err := services.NewEncryptionService(encKey, idxKey)
	if err != nil {
		logger.Fatal("init encryption", zap.Error(err))
	}

	entries := repository.NewEntryRepository(dbConn, enc)
	practices := repository.NewPracticeRepository(dbConn)
	moods := repository.NewMoodRepository(dbConn, enc)
	profiles := repository.NewProfileRepository(dbConn)

	opts := []auth.Option{auth.WithLogger(logger)}
	if cfg.GoogleEnabled() {
		opts = append(opts, auth.WithProvider("google",
			auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleSecret, cfg.OAuthCallbackURL("google"))))
	} else {
		logger.Info("google sign-in disabled; GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}
	authSvc := auth.NewService(dbConn, enc, auth.Config{
		Secret:            []byte(cfg.JWTSecret),
		AccessTTL:         cfg.AccessTokenTTL,
		RefreshTTL:        cfg.RefreshTokenTTL,
		PublicURL:         cfg.PublicURL,
		RedirectAllowlist: cfg.RedirectAllowlist,
	}, opts...)
	authSvc.Subscribe(auth.ProfileOnSignUp(profiles, logger))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := handlers.NewRouter(handlers.Deps{
		Logger:      logger,
		Registry:    reg,
		CORSOrigins: cfg.CORSOrigins,
		Auth:        authSvc,
		Verifier:    authSvc,
		Entries:     entries,
		Practices:   practices,
		Moods:       moods,
		Profiles:    profiles,
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
