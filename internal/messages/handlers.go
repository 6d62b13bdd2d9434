package messages

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
	"onetalk/internal/realtime"
	"onetalk/internal/sessions"
)

type createReq struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func HandleList(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		return apierr.BadRequest("session_id is required")
	}
	items, err := s.List(r.Context(), sessionID, u.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(items)
}

func HandleGet(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return apierr.NotFound(ErrNotFound.Error())
	}
	m, err := s.Get(r.Context(), id, u.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(m)
}

func HandleCreate(s *Service, hub sessions.Broadcaster, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	m, err := s.Create(r.Context(), req.SessionID, u.ProfileID, req.Content)
	if err != nil {
		return mapErr(err)
	}
	if ev, err := realtime.NewMessageInserted(*m); err == nil {
		hub.Broadcast(ev)
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(m)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, sessions.ErrNotFound):
		return apierr.NotFound(err.Error())
	case errors.Is(err, ErrNotParticipant):
		return apierr.Forbidden(err.Error())
	case errors.Is(err, ErrSessionClosed):
		return apierr.Conflict(err.Error())
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong):
		return apierr.BadRequest("%s", err.Error())
	}
	return err
}
