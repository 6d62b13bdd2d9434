package main

import (
	"net/http"
	"time"

	"onetalk/internal/accounts"
	"onetalk/internal/auth"
	"onetalk/internal/config"
	"onetalk/internal/httputil"
	"onetalk/internal/logger"
	"onetalk/internal/messages"
	"onetalk/internal/payments"
	"onetalk/internal/profiles"
	"onetalk/internal/sessions"
	"onetalk/internal/topics"
	"onetalk/internal/ws"
)

type deps struct {
	cfg      config.Config
	jwt      *auth.JWT
	hub      *ws.Hub
	accounts *accounts.Service
	profiles *profiles.Service
	topics   *topics.Service
	sessions *sessions.Service
	messages *messages.Service
	payments *payments.Service
}

type handlerFunc = func(http.ResponseWriter, *http.Request) error

func routes(d deps) http.Handler {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	limited := httputil.RateLimit(d.cfg.RateLimitPerMinute, time.Minute)
	public := func(h handlerFunc) http.Handler { return limited(httputil.JSONHandler(h)) }
	protected := func(h handlerFunc) http.Handler {
		return httputil.Chain(httputil.JWTAuth(d.jwt), limited)(httputil.JSONHandler(h))
	}

	// Auth
	mux.Handle("POST /api/auth/signup", public(func(w http.ResponseWriter, r *http.Request) error {
		return accounts.HandleSignUp(d.accounts, w, r)
	}))
	mux.Handle("POST /api/auth/signin", public(func(w http.ResponseWriter, r *http.Request) error {
		return accounts.HandleSignIn(d.accounts, w, r)
	}))

	// Profiles & topics
	mux.Handle("GET /api/profiles/me", protected(func(w http.ResponseWriter, r *http.Request) error {
		return profiles.HandleMe(d.profiles, w, r)
	}))
	mux.Handle("POST /api/profiles/me/availability", protected(func(w http.ResponseWriter, r *http.Request) error {
		return profiles.HandleAvailability(d.profiles, w, r)
	}))
	mux.Handle("GET /api/topics", protected(func(w http.ResponseWriter, r *http.Request) error {
		return topics.HandleList(d.topics, w, r)
	}))

	// Sessions
	mux.Handle("POST /api/sessions", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleCreate(d.sessions, w, r)
	}))
	mux.Handle("GET /api/sessions/history", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleHistory(d.sessions, w, r)
	}))
	mux.Handle("GET /api/sessions/{id}", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleGet(d.sessions, w, r)
	}))
	mux.Handle("POST /api/sessions/{id}/complete", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleComplete(d.sessions, d.hub, w, r)
	}))
	mux.Handle("POST /api/sessions/{id}/rating", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleRate(d.sessions, w, r)
	}))

	// Remote procedures
	mux.Handle("POST /api/rpc/matchmake", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleMatchmake(d.sessions, d.hub, w, r)
	}))
	mux.Handle("POST /api/rpc/extend_session", protected(func(w http.ResponseWriter, r *http.Request) error {
		return sessions.HandleExtend(d.sessions, d.hub, w, r)
	}))

	// Messages
	mux.Handle("GET /api/messages", protected(func(w http.ResponseWriter, r *http.Request) error {
		return messages.HandleList(d.messages, w, r)
	}))
	mux.Handle("POST /api/messages", protected(func(w http.ResponseWriter, r *http.Request) error {
		return messages.HandleCreate(d.messages, d.hub, w, r)
	}))
	mux.Handle("GET /api/messages/{id}", protected(func(w http.ResponseWriter, r *http.Request) error {
		return messages.HandleGet(d.messages, w, r)
	}))

	// Payments
	mux.Handle("POST /api/transactions", protected(func(w http.ResponseWriter, r *http.Request) error {
		return payments.HandleRecord(d.payments, w, r)
	}))

	// WS endpoint with JWT & participant check inside handler
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		ws.Handle(d.hub, d.jwt, d.sessions, w, r)
	})

	return httputil.Chain(
		httputil.Logging(logger.For("http")),
		httputil.CORS(d.cfg.AllowedOrigins),
	)(mux)
}
