package httputil

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
)

// JSONHandler wraps handlers that return error

type JSONHandler func(http.ResponseWriter, *http.Request) error

func (h JSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h(w, r); err != nil {
		WriteError(w, err)
	}
}

// WriteError writes {"error": ...} with the status carried by err.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		status = ae.Status
	case errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// Chain middlewares

type Middleware func(http.Handler) http.Handler

func Chain(mws ...Middleware) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// JWTAuth protects /api/*

func JWTAuth(jwt *auth.JWT) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				WriteError(w, apierr.Unauthorized("missing bearer token"))
				return
			}
			claims, err := jwt.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				WriteError(w, apierr.Unauthorized("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// CORS allows "*" or a comma separated list of exact origins.

func CORS(allowed string) Middleware {
	allowAll := allowed == "*"
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || origins[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Simple IP rate limit

type tokenBucket struct {
	mu     sync.Mutex
	tokens int
	last   time.Time
}

// RateLimit allows n requests per IP, refilling one token every per/n.
func RateLimit(n int, per time.Duration) Middleware {
	buckets := make(map[string]*tokenBucket)
	var mu sync.Mutex
	interval := per / time.Duration(n)
	refill := func(b *tokenBucket, now time.Time) {
		add := int(now.Sub(b.last) / interval)
		if add > 0 {
			b.tokens = min(n, b.tokens+add)
			b.last = b.last.Add(time.Duration(add) * interval)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			mu.Lock()
			b := buckets[ip]
			if b == nil {
				b = &tokenBucket{tokens: n, last: time.Now()}
				buckets[ip] = b
			}
			b.mu.Lock()
			mu.Unlock()
			refill(b, time.Now())
			if b.tokens <= 0 {
				b.mu.Unlock()
				WriteError(w, apierr.New(http.StatusTooManyRequests, "rate limit exceeded"))
				return
			}
			b.tokens--
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one line per request.
func Logging(log *logrus.Entry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
			switch {
			case rec.status >= 500:
				entry.Error("request")
			case rec.status >= 400:
				entry.Warn("request")
			default:
				entry.Debug("request")
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
