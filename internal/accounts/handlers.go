package accounts

import (
	"encoding/json"
	"errors"
	"net/http"

	"onetalk/internal/apierr"
	"onetalk/internal/auth"
)

type credentialsReq struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Listener bool   `json:"listener"`
}

func HandleSignUp(s *Service, w http.ResponseWriter, r *http.Request) error {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	res, err := s.SignUp(r.Context(), req.Nickname, req.Password, req.Listener)
	if err != nil {
		return mapErr(err)
	}
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(res)
}

func HandleSignIn(s *Service, w http.ResponseWriter, r *http.Request) error {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	res, err := s.SignIn(r.Context(), req.Nickname, req.Password)
	if err != nil {
		return mapErr(err)
	}
	return json.NewEncoder(w).Encode(res)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNicknameTaken):
		return apierr.Conflict(err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return apierr.Unauthorized(err.Error())
	case errors.Is(err, auth.ErrNicknameRequired), errors.Is(err, auth.ErrNicknameLength), errors.Is(err, auth.ErrNicknameChars),
		errors.Is(err, auth.ErrPasswordRequired), errors.Is(err, auth.ErrPasswordShort):
		return apierr.BadRequest("%s", err.Error())
	}
	return err
}
