package sessions

import (
	"encoding/json"
	"errors"
	"net/http"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
)

type createReq struct {
	TopicID     *string `json:"topic_id"`
	Description string  `json:"description"`
}

func HandleCreate(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	cs, err := s.Create(r.Context(), u.ProfileID, req.TopicID, req.Description)
	if err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(cs)
}

func HandleGet(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	cs, err := s.GetFor(r.Context(), r.PathValue("id"), u.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(cs)
}

func HandleHistory(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	items, err := s.History(r.Context(), u.ProfileID)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(items)
}

func HandleComplete(s *Service, hub Broadcaster, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	cs, changed, err := s.Complete(r.Context(), r.PathValue("id"), u.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	if changed {
		announce(s, hub, *cs)
	}
	return json.NewEncoder(w).Encode(cs)
}

type rateReq struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func HandleRate(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req rateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	rating, err := s.Rate(r.Context(), r.PathValue("id"), u.ProfileID, req.Score, req.Comment)
	if err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(rating)
}

type matchmakeReq struct {
	ListenerProfileID string `json:"listener_profile_id"`
}

type matchmakeResp struct {
	SessionID *string `json:"session_id"`
}

// HandleMatchmake answers {"session_id": null} when nobody is waiting.
func HandleMatchmake(s *Service, hub Broadcaster, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req matchmakeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	cs, err := s.Matchmake(r.Context(), u.ProfileID, req.ListenerProfileID)
	if err != nil {
		return mapErr(err)
	}
	var resp matchmakeResp
	if cs != nil {
		resp.SessionID = &cs.ID
		announce(s, hub, *cs)
	}
	return json.NewEncoder(w).Encode(resp)
}

type extendReq struct {
	SessionID    string `json:"session_id"`
	MinutesToAdd int    `json:"minutes_to_add"`
}

func HandleExtend(s *Service, hub Broadcaster, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req extendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	cs, err := s.Extend(r.Context(), req.SessionID, u.ProfileID, req.MinutesToAdd)
	if err != nil {
		return mapErr(err)
	}
	announce(s, hub, *cs)
	return json.NewEncoder(w).Encode(cs)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apierr.NotFound(err.Error())
	case errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotOwnProfile),
		errors.Is(err, ErrNotVerified), errors.Is(err, ErrNotSeeker):
		return apierr.Forbidden(err.Error())
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrAlreadyRated), errors.Is(err, ErrNoListener):
		return apierr.Conflict(err.Error())
	case errors.Is(err, ErrInvalidMinutes), errors.Is(err, ErrInvalidScore):
		return apierr.BadRequest("%s", err.Error())
	}
	return err
}
