// Package main provides the entry point for the API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kanbanflow/kanbanflow/internal/api"
	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/email"
	"github.com/kanbanflow/kanbanflow/internal/realtime"
	pgstore "github.com/kanbanflow/kanbanflow/internal/store/postgres"
	"github.com/kanbanflow/kanbanflow/pkg/config"
	"github.com/kanbanflow/kanbanflow/pkg/logger"
)

// invitationSweepInterval controls how often overdue invitations are
// marked expired.
const invitationSweepInterval = time.Hour

func main() {
	// Initialize logger
	log := logger.New(slog.LevelInfo, true)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database store
	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	st, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize auth service
	authCfg := &auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}
	authService := auth.NewService(authCfg, log.WithComponent("auth").Logger)
	access := auth.NewAccessService(st, cfg.InvitationTTL, log.WithComponent("access").Logger)
	recorder := audit.NewRecorder(st, log.WithComponent("audit").Logger)

	// Initialize email service
	mail := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, log.Logger)

	// Cross-instance broadcast bus. Without Redis the hub still serves
	// every connection on this instance.
	var bus realtime.Bus
	if cfg.RedisURL != "" {
		redisBus, err := realtime.NewRedisBus(cfg.RedisURL, log.Logger)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisBus.Close()
		bus = redisBus
		log.Info("connected to redis broadcast bus")
	}

	hub := realtime.NewHub(st, access, recorder, authService, bus, cfg.ClientOrigin, log.WithComponent("realtime").Logger)

	// Create the API server
	server := api.NewServer(cfg, st, authService, hub, mail, st, log.Logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go hub.Run(ctx)

	// Periodically expire overdue invitations
	go func() {
		ticker := time.NewTicker(invitationSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := access.ExpireOverdueInvitations(ctx)
				if err != nil {
					log.Error("failed to expire invitations", "error", err)
					continue
				}
				if n > 0 {
					log.Info("expired overdue invitations", "count", n)
				}
			}
		}
	}()

	// Start the server
	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	// Give time for graceful shutdown
	time.Sleep(100 * time.Millisecond)
	log.Info("server stopped")
}
