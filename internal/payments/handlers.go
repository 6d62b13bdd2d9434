package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
	"onetalk/internal/sessions"
)

func HandleRecord(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req Input
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	tx, err := s.Record(r.Context(), u.ProfileID, req)
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return apierr.BadRequest("%s", err.Error())
	case errors.Is(err, ErrNotParticipant):
		return apierr.Forbidden(err.Error())
	case errors.Is(err, sessions.ErrNotFound):
		return apierr.NotFound(err.Error())
	case err != nil:
		return err
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(tx)
}
