// Package client talks to the OneTalk API over HTTP and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"onetalk/internal/models"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
}

func New(baseURL string, tokens TokenSource) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: 15 * time.Second}, tokens: tokens}, nil
}

// AuthResult is returned by SignUp and SignIn.
type AuthResult struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
}

func (c *Client) SignUp(ctx context.Context, nickname, password string, listener bool) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]any{
		"nickname": nickname, "password": password, "listener": listener,
	}, &out)
	return out, err
}

func (c *Client) SignIn(ctx context.Context, nickname, password string) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]any{
		"nickname": nickname, "password": password,
	}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (models.Profile, error) {
	var p models.Profile
	return p, c.do(ctx, http.MethodGet, "/api/profiles/me", nil, &p)
}

func (c *Client) SetAvailable(ctx context.Context, available bool) (models.Profile, error) {
	var p models.Profile
	return p, c.do(ctx, http.MethodPost, "/api/profiles/me/availability", map[string]bool{"available": available}, &p)
}

func (c *Client) Topics(ctx context.Context) ([]models.Topic, error) {
	var out []models.Topic
	return out, c.do(ctx, http.MethodGet, "/api/topics", nil, &out)
}

func (c *Client) CreateSession(ctx context.Context, topicID *string, description string) (models.ChatSession, error) {
	var s models.ChatSession
	return s, c.do(ctx, http.MethodPost, "/api/sessions", map[string]any{
		"topic_id": topicID, "description": description,
	}, &s)
}

func (c *Client) GetSession(ctx context.Context, id string) (models.ChatSession, error) {
	var s models.ChatSession
	return s, c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &s)
}

func (c *Client) History(ctx context.Context) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	return out, c.do(ctx, http.MethodGet, "/api/sessions/history", nil, &out)
}

func (c *Client) CompleteSession(ctx context.Context, id string) (models.ChatSession, error) {
	var s models.ChatSession
	return s, c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/complete", nil, &s)
}

func (c *Client) RateSession(ctx context.Context, id string, score int, comment string) (models.Rating, error) {
	var r models.Rating
	return r, c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(id)+"/rating", map[string]any{
		"score": score, "comment": comment,
	}, &r)
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var out []models.Message
	return out, c.do(ctx, http.MethodGet, "/api/messages?session_id="+url.QueryEscape(sessionID), nil, &out)
}

func (c *Client) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	var m models.Message
	return m, c.do(ctx, http.MethodGet, "/api/messages/"+strconv.FormatInt(id, 10), nil, &m)
}

func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (models.Message, error) {
	var m models.Message
	return m, c.do(ctx, http.MethodPost, "/api/messages", map[string]string{
		"session_id": sessionID, "content": content,
	}, &m)
}

// Matchmake returns the claimed session id, or "" when nobody is waiting.
func (c *Client) Matchmake(ctx context.Context, listenerProfileID string) (string, error) {
	var out struct {
		SessionID *string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/rpc/matchmake", map[string]string{
		"listener_profile_id": listenerProfileID,
	}, &out); err != nil {
		return "", err
	}
	if out.SessionID == nil {
		return "", nil
	}
	return *out.SessionID, nil
}

func (c *Client) ExtendSession(ctx context.Context, sessionID string, minutes int) (models.ChatSession, error) {
	var s models.ChatSession
	return s, c.do(ctx, http.MethodPost, "/api/rpc/extend_session", map[string]any{
		"session_id": sessionID, "minutes_to_add": minutes,
	}, &s)
}

func (c *Client) RecordTransaction(ctx context.Context, req models.TransactionRequest) (models.Transaction, error) {
	var t models.Transaction
	return t, c.do(ctx, http.MethodPost, "/api/transactions", req, &t)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
