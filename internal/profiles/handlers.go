package profiles

import (
	"encoding/json"
	"errors"
	"net/http"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
)

func HandleMe(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	p, err := s.Get(r.Context(), u.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(p)
}

type availabilityReq struct {
	Available bool `json:"available"`
}

func HandleAvailability(s *Service, w http.ResponseWriter, r *http.Request) error {
	u, _ := auth.ClaimsFrom(r.Context())
	var req availabilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	p, err := s.SetAvailable(r.Context(), u.ProfileID, req.Available)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(p)
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apierr.NotFound(err.Error())
	}
	return err
}
