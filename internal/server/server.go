// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the token service together and runs the HTTP
// listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aiueoka/smartlocket/internal/config"
	"github.com/aiueoka/smartlocket/internal/database"
	"github.com/aiueoka/smartlocket/internal/handlers"
	"github.com/aiueoka/smartlocket/internal/repository"
	"github.com/aiueoka/smartlocket/internal/services/editsession"
	"github.com/aiueoka/smartlocket/internal/services/email"
	"github.com/aiueoka/smartlocket/internal/services/gallery"
	"github.com/aiueoka/smartlocket/internal/services/inventory"
	"github.com/aiueoka/smartlocket/internal/services/lifecycle"
	"github.com/aiueoka/smartlocket/internal/services/passcode"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	repo := repository.New(db)

	// Services
	sessions, err := editsession.NewManager(
		cfg.Session.HashKey,
		cfg.Session.BlockKey,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
	)
	if err != nil {
		return fmt.Errorf("failed to create edit session manager: %w", err)
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}

	inventorySvc := inventory.NewService(repo)
	lifecycleSvc := lifecycle.NewService(repo)
	passcodeSvc := passcode.NewService(repo, mailer)
	gallerySvc := gallery.NewService(repo, sessions)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)

	secureCookies := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	h := handlers.New(repo, inventorySvc, lifecycleSvc, passcodeSvc, gallerySvc, sessions, secureCookies)
	setupRoutes(e, h, cfg)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, h *handlers.Handlers, cfg *config.Config) {
	e.GET("/health", h.Health)

	limited := passcodeRateLimiter(cfg.RateLimit.PerMinute)

	// The JS clients call both the bare paths and the /api prefix.
	for _, g := range []*echo.Group{e.Group(""), e.Group("/api")} {
		g.GET("/memory/:memoryId", h.GetMemory)
		g.PUT("/memory/:memoryId", h.UpdateMemory)
		g.POST("/memory/:memoryId/activate", h.ActivateMemory)
		g.POST("/memory/:memoryId/images/:imageId/favorite", h.ToggleFavorite)
		g.POST("/verify-passcode", h.VerifyPasscode, limited)
		g.POST("/memory/request-reset", h.RequestReset, limited)
		g.POST("/memory/reset-passcode", h.ResetPasscode)
	}

	if cfg.Admin.APIKey == "" {
		slog.Warn("admin API key not configured, admin routes disabled")
		return
	}

	adm := e.Group("/api/admin", adminKeyMiddleware(cfg.Admin.APIKey))
	adm.POST("/generate-batch", h.GenerateBatch)
	adm.GET("/next-unused", h.NextUnused)
	adm.POST("/mark-written/:memoryId", h.MarkWritten)
	adm.POST("/assign-order", h.AssignOrder)
	adm.GET("/stats", h.Stats)
	adm.GET("/inventory", h.Inventory)
}

// newMailer returns the SMTP mailer, or a log-only fallback when SMTP is
// not configured so local development does not need a mail server.
func newMailer(cfg *config.Config) (passcode.Mailer, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("SMTP not configured, reset codes are logged instead of sent")
		return logMailer{}, nil
	}
	return email.NewService(&cfg.SMTP)
}

type logMailer struct{}

func (logMailer) SendResetCode(_ context.Context, to, memoryID, code string) error {
	slog.Info("reset code issued", "to", to, "memory_id", memoryID, "code", code)
	return nil
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
