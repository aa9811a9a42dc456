package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"cohort/internal/assignment"
	"cohort/internal/attendance"
	"cohort/internal/config"
	"cohort/internal/credential"
	"cohort/internal/identity"
	"cohort/internal/importer"
	"cohort/internal/logging"
	"cohort/internal/store"
	"cohort/internal/web"
)

func main() {
	// Load .env if present; real environment variables win in production.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"program_start", cfg.Program.StartDate,
		"program_days", cfg.Program.Days,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	if err := seedAdmin(ctx, st, cfg); err != nil {
		slog.Error("failed to seed admin account", "error", err)
		os.Exit(1)
	}

	ledger := assignment.NewLedger(st.ForAssignments())
	att := attendance.NewLedger(st.Attendance, st.Identities)
	imports := importer.NewService(st.Identities, ledger)

	// Heal any one-sided assignment writes left behind by a crash.
	if fixed, err := ledger.Repair(ctx); err != nil {
		slog.Warn("assignment repair pass failed", "error", err)
	} else if fixed > 0 {
		slog.Info("assignment ledger repaired", "fixed", fixed)
	}

	server := web.NewServer(cfg, st.Identities, imports, ledger, att)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// seedAdmin creates the default admin identity when the configured admin
// email is unknown and a password was provided. Existing identities are
// never touched.
func seedAdmin(ctx context.Context, st *store.Store, cfg *config.Config) error {
	if cfg.Auth.AdminPassword == "" {
		return nil
	}

	_, err := st.Identities.FindByEmail(ctx, cfg.Auth.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrNotFound) {
		return err
	}

	hash, err := credential.Hash(cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}

	admin := &identity.Identity{
		Email:        cfg.Auth.AdminEmail,
		Name:         "Administrator",
		Role:         identity.RoleAdmin,
		Active:       true,
		PasswordHash: hash,
	}
	if err := st.Identities.Create(ctx, admin); err != nil {
		return err
	}
	slog.Info("seeded admin account", "email", admin.Email)
	return nil
}
