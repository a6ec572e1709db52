package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backlogwatch/internal/api"
	"backlogwatch/internal/auth"
	"backlogwatch/internal/config"
	"backlogwatch/internal/httpx"
	"backlogwatch/internal/ingest"
	"backlogwatch/internal/integrations/llm"
	slackbot "backlogwatch/internal/integrations/slack"
	"backlogwatch/internal/mail"
	"backlogwatch/internal/notify"
	"backlogwatch/internal/overdue"
	"backlogwatch/internal/scheduler"
	"backlogwatch/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Listen=%s Timezone=%s Recipients=%d MinOverdue=%d Schedule=%q SMTP=%t Slack=%t LLM=%t Redis=%t ExternalHTTPTimeout=%s",
		cfg.ListenAddr,
		cfg.Timezone,
		len(cfg.AlertRecipients),
		cfg.AlertMinOverdue,
		cfg.AlertSchedule,
		cfg.SMTPConfigured(),
		cfg.SlackConfigured(),
		cfg.LLMConfigured(),
		cfg.RedisAddr != "",
		appliedHTTPTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	authSvc := &auth.Service{
		DB:         db,
		Issuer:     auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL()),
		Tokens:     tokenStore(ctx, cfg, db),
		RefreshTTL: cfg.RefreshTokenTTL(),
	}
	if cfg.AdminUsername != "" {
		created, err := authSvc.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail)
		if err != nil {
			log.Fatalf("Failed to bootstrap admin user: %v", err)
		}
		if created {
			log.Printf("Admin user %s created", cfg.AdminUsername)
		}
	}
	if purged, err := sqlite.PurgeExpiredRefreshTokens(db, time.Now()); err != nil {
		log.Printf("Error purging refresh tokens: %v", err)
	} else if purged > 0 {
		log.Printf("Purged %d expired refresh token(s)", purged)
	}

	classifier := overdue.NewClassifier(cfg.Thresholds)
	runner := &scheduler.Runner{
		DB: db,
		Notifier: &notify.Notifier{
			Classifier: classifier,
			Sender:     alertSender(cfg),
			Recipients: cfg.AlertRecipients,
			MinOverdue: cfg.AlertMinOverdue,
		},
		Location: cfg.Location,
	}
	scheduler.Start(ctx, cfg.AlertSchedule, cfg.Location, runner)

	srv := &api.Server{
		DB:             db,
		Auth:           authSvc,
		Classifier:     classifier,
		Parser:         ingest.NewParser(cfg.Mapping, cfg.Location),
		Runner:         runner,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	log.Printf("Starting Backlog Watch API on %s...", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server error: %v", err)
	}
	log.Println("Backlog Watch stopped")
}

// tokenStore prefers Redis when configured and reachable.
func tokenStore(ctx context.Context, cfg config.Config, db *sql.DB) auth.TokenStore {
	if cfg.RedisAddr == "" {
		return auth.SQLiteTokenStore{DB: db}
	}
	store := auth.NewRedisTokenStore(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Printf("Redis at %s unreachable (%v); refresh tokens stored in SQLite", cfg.RedisAddr, err)
		return auth.SQLiteTokenStore{DB: db}
	}
	log.Printf("Refresh tokens stored in Redis at %s", cfg.RedisAddr)
	return store
}

func alertSender(cfg config.Config) notify.Sender {
	mailer := mail.NewSender(mail.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		OutboxDir: cfg.OutboxDir,
		Subject:   cfg.AlertSubject,
	})
	if cfg.LLMConfigured() {
		mailer.Summarizer = llm.NewSummarizer(cfg.AnthropicAPIKey, cfg.LLMModel)
	}
	if !cfg.SMTPConfigured() {
		log.Printf("SMTP not configured; alerts will be written to %s", cfg.OutboxDir)
	}

	if !cfg.SlackConfigured() {
		return mailer
	}
	return notify.Fanout{mailer, slackbot.NewDigestSender(cfg.SlackBotToken, cfg.SlackChannelID)}
}
