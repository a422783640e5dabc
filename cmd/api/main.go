package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tesouraria/internal/app"
	"github.com/MrJamesThe3rd/tesouraria/internal/config"
	"github.com/MrJamesThe3rd/tesouraria/internal/database"
	tesourariaHttp "github.com/MrJamesThe3rd/tesouraria/internal/http"
	importHandler "github.com/MrJamesThe3rd/tesouraria/internal/http/importer"
	ledgerHandler "github.com/MrJamesThe3rd/tesouraria/internal/http/ledger"
	matchingHandler "github.com/MrJamesThe3rd/tesouraria/internal/http/matching"
	movementHandler "github.com/MrJamesThe3rd/tesouraria/internal/http/movement"
	periodHandler "github.com/MrJamesThe3rd/tesouraria/internal/http/period"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.CheckAuth(); err != nil {
		slog.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	a, err := app.New(db, cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.Disabled {
		slog.Warn("AUTH_DISABLED is set, every request runs as the local administrator")
	}

	router := tesourariaHttp.New(
		tesourariaHttp.Options{
			AuthSecret:     []byte(cfg.Auth.Secret),
			AuthDisabled:   cfg.Auth.Disabled,
			AdminRole:      cfg.Auth.AdminRole,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
		tesourariaHttp.Handlers{
			Periods:   periodHandler.NewHandler(a.Periods, cfg.Auth.AdminRole),
			Ledger:    ledgerHandler.NewHandler(a.Aggregator, a.Validator),
			Movements: movementHandler.NewHandler(a.Movements),
			Import:    importHandler.NewHandler(a.Import),
			Matching:  matchingHandler.NewHandler(a.Matching),
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "port", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}

	// Pending audit writes must land before the pool closes.
	a.Audit.Wait()

	slog.Info("server stopped")
}
