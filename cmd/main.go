// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/bot"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/config"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/database"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/handler"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/logging"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/notify"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// store is what the services need from either backend.
type store interface {
	service.OfferingStore
	service.RegistrationStore
}

func main() {
	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 2. Store ──────────────────────────────────────────────────────────
	st, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer closeStore()

	// ── 3. Telegram and notifications ────────────────────────────────────
	var api *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.WithError(err).Error("telegram bot unavailable, chat features disabled")
			api = nil
		} else {
			log.WithField("bot", api.Self.UserName).Info("✓ Connected to Telegram")
		}
	} else {
		log.Warn("TG_BOT_TOKEN not set, chat features disabled")
	}

	var notifiers []notify.Notifier
	if api != nil && cfg.Telegram.AdminChatID != 0 {
		notifiers = append(notifiers, notify.NewTelegramNotifier(api, cfg.Telegram.AdminChatID))
	}

	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = notify.ConnectNATS(cfg.NATS.URL, cfg.NATS.Token)
		if err != nil {
			log.WithError(err).Error("nats unavailable, event publishing disabled")
		} else {
			defer nc.Close()
			notifiers = append(notifiers, notify.NewNATSNotifier(nc, cfg.NATS.Subject))
			log.WithField("subject", cfg.NATS.Subject).Info("✓ Connected to NATS")
		}
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, notifiers...)

	// ── 4. Wire up layers ────────────────────────────────────────────────
	tableSvc := service.NewTableService(st)
	regSvc := service.NewRegistrationService(st, dispatcher, cfg.SeatPolicy == config.SeatPolicyServer)
	adminSvc := service.NewAdminService(st)

	var updates handler.UpdateHandler
	if api != nil && cfg.Telegram.BotMode != config.BotModeOff {
		botHandler := bot.NewHandler(adminSvc, bot.NewTelegramClient(api), cfg.Telegram.AllowedChats)
		switch cfg.Telegram.BotMode {
		case config.BotModePolling:
			go bot.RunPolling(ctx, api, botHandler)
		default:
			updates = botHandler
		}
	}

	apiHandler := handler.NewAPIHandler(tableSvc, regSvc, updates, cfg.PingMessage, cfg.Telegram.WebhookSecret)

	// ── 5. Build the router ───────────────────────────────────────────────
	r := handler.NewRouter(handler.Options{
		API:               apiHandler,
		AllowedOrigins:    cfg.AllowedOrigins,
		RegisterRateLimit: cfg.RateLimit,
		StaticDir:         cfg.StaticDir,
	})

	// ── 6. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.Port,
			"driver":      cfg.Database.Driver,
			"seat_policy": cfg.SeatPolicy,
			"bot_mode":    cfg.Telegram.BotMode,
			"notifiers":   dispatcher.Len(),
		}).Infof("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	<-ctx.Done()

	log.Info("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.WithError(err).Warn("pending notifications dropped")
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Database) (store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.MigrateSQLite(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		log.WithField("path", cfg.SQLitePath).Info("✓ Opened SQLite")
		return sqlite.NewStore(db), func() { _ = db.Close() }, nil

	default:
		pool, err := database.NewPool(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Info("✓ Connected to PostgreSQL")
		return pgStore{
			OfferingRepository:     repository.NewOfferingRepository(pool),
			RegistrationRepository: repository.NewRegistrationRepository(pool),
		}, pool.Close, nil
	}
}

// pgStore joins the two Postgres repositories into one store.
type pgStore struct {
	*repository.OfferingRepository
	*repository.RegistrationRepository
}

