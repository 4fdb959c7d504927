package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/Mr-houngbo/Colit/internal/api/http"
	appAnnouncement "github.com/Mr-houngbo/Colit/internal/application/announcement"
	appMatching "github.com/Mr-houngbo/Colit/internal/application/matching"
	appMessaging "github.com/Mr-houngbo/Colit/internal/application/messaging"
	appNotification "github.com/Mr-houngbo/Colit/internal/application/notification"
	"github.com/Mr-houngbo/Colit/internal/application/realtime"
	appTimeline "github.com/Mr-houngbo/Colit/internal/application/timeline"
	"github.com/Mr-houngbo/Colit/internal/config"
	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/domain/notification"
	"github.com/Mr-houngbo/Colit/internal/domain/profile"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/amqp"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/memory"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/postgres"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/sse"
)

// stores groups the repositories of one backend.
type stores struct {
	announcements announcement.Repository
	spaces        colispace.Repository
	messages      colispace.MessageRepository
	feed          colispace.Feed
	profiles      profile.Repository
	notifications notification.Repository
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel, cfg.LogPretty)
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st stores
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store := memory.NewStore()
		st = stores{
			announcements: store.Announcements,
			spaces:        store.ColiSpaces,
			messages:      store.ColiSpaces,
			feed:          store.ColiSpaces,
			profiles:      store.Profiles,
			notifications: store.Notifications,
		}
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		spaces := postgres.NewColiSpaceRepository(pool)
		feed := postgres.NewFeed(pool, spaces, logger)
		go func() {
			_ = feed.Run(ctx)
		}()
		st = stores{
			announcements: postgres.NewAnnouncementRepository(pool),
			spaces:        spaces,
			messages:      spaces,
			feed:          feed,
			profiles:      postgres.NewProfileRepository(pool),
			notifications: postgres.NewNotificationRepository(pool),
		}
	}

	// delivery
	sseHub := sse.NewHub(logger)
	defer sseHub.Stop()
	senders := appNotification.MultiSender{{Name: "sse", Sender: sseHub}}
	if cfg.RabbitURL != "" {
		publisher, err := amqp.Dial(cfg.RabbitURL, cfg.NotifyExchange, logger)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer publisher.Close()
		senders = append(senders, appNotification.Channel{Name: "amqp", Sender: publisher})
	}

	// services
	notificationSvc := appNotification.NewService(st.notifications, senders, st.announcements, st.profiles, cfg.NotifyTimeout, logger)
	matchingSvc := appMatching.NewService(st.spaces, logger)
	announcementSvc := appAnnouncement.NewService(st.announcements, matchingSvc, logger)
	timelineSvc := appTimeline.NewService(st.spaces, st.announcements, notificationSvc, logger)
	messagingSvc := appMessaging.NewService(st.spaces, st.messages, st.profiles, notificationSvc, logger)
	adapter := realtime.NewAdapter(st.feed, st.spaces, st.messages, logger)

	go notificationSvc.RunRetryLoop(ctx, cfg.NotifyRetryInterval, cfg.NotifyRetryBatch)

	apiServer := httpapi.NewServer(
		announcementSvc,
		matchingSvc,
		timelineSvc,
		messagingSvc,
		notificationSvc,
		adapter,
		sseHub,
		httpapi.AuthConfig{JWTSecret: cfg.JWTSecret, JWTIssuer: cfg.JWTIssuer},
		logger,
	)
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpServer.RegisterOnShutdown(apiServer.CloseStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("backend", cfg.StoreBackend).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	notificationSvc.Wait()
	return nil
}
