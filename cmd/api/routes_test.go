package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"onetalk/internal/auth"
	"onetalk/internal/config"
	"onetalk/internal/logger"
	"onetalk/internal/ws"
)

func TestRoutesGuardAPI(t *testing.T) {
	d := deps{
		cfg: config.Config{AllowedOrigins: "*", RateLimitPerMinute: 1000},
		jwt: auth.NewJWT("secret"),
		hub: ws.NewHub(nil, logger.Discard()),
	}
	srv := httptest.NewServer(routes(d))
	defer srv.Close()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/profiles/me", http.StatusUnauthorized},
		{http.MethodPost, "/api/sessions", http.StatusUnauthorized},
		{http.MethodGet, "/api/sessions/history", http.StatusUnauthorized},
		{http.MethodPost, "/api/rpc/matchmake", http.StatusUnauthorized},
		{http.MethodPost, "/api/transactions", http.StatusUnauthorized},
		{http.MethodGet, "/ws?session_id=x&token=bad", http.StatusUnauthorized},
		{http.MethodOptions, "/api/messages", http.StatusNoContent},
		{http.MethodDelete, "/api/messages/1", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, c := range cases {
		req, _ := http.NewRequest(c.method, srv.URL+c.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != c.want {
			t.Errorf("%s %s = %d, want %d", c.method, c.path, resp.StatusCode, c.want)
		}
	}
}
