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

	"onetalk/internal/accounts"
	"onetalk/internal/auth"
	"onetalk/internal/config"
	"onetalk/internal/events"
	"onetalk/internal/logger"
	"onetalk/internal/messages"
	"onetalk/internal/payments"
	"onetalk/internal/profiles"
	"onetalk/internal/sessions"
	"onetalk/internal/store"
	"onetalk/internal/topics"
	"onetalk/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.WithError(err).Fatal("config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log := logger.For("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := sqlx.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db open")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("db ping")
	}
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	// Lifecycle events
	var pub events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, logger.For("events"))
		if err != nil {
			log.WithError(err).Fatal("amqp connect")
		}
		pub = p
		log.WithField("exchange", events.Exchange).Info("publishing lifecycle events")
	}
	defer pub.Close()

	// Realtime fan-out
	var broker ws.Broker
	if cfg.RedisAddr != "" {
		b, err := ws.NewRedisBroker(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Fatal("redis connect")
		}
		defer b.Close()
		broker = b
		log.WithField("redis", cfg.RedisAddr).Info("sharing session rooms over redis")
	}
	hub := ws.NewHub(broker, logger.For("ws"))
	go hub.Run(ctx)

	// Stores & services
	jwt := auth.NewJWT(cfg.JWTSecret)
	profileSvc := profiles.NewService(st)
	d := deps{
		cfg:      cfg,
		jwt:      jwt,
		hub:      hub,
		accounts: accounts.NewService(st, jwt, profileSvc, cfg.AutoVerifyListeners, logger.For("accounts")),
		profiles: profileSvc,
		topics:   topics.NewService(st),
		sessions: sessions.NewService(st, pub, logger.For("sessions")),
	}
	d.messages = messages.NewService(st, d.sessions)
	d.payments = payments.NewService(st, d.sessions)

	// Background expirer
	go sessions.StartExpirer(ctx, d.sessions, hub, cfg.ExpireInterval, cfg.ExpireGrace)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           routes(d),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("stopped")
}
