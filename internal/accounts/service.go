package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"onetalk/internal/auth"
	"onetalk/internal/models"
	"onetalk/internal/profiles"
	"onetalk/internal/store"
)

var (
	ErrNicknameTaken      = errors.New("this nickname is already in use")
	ErrInvalidCredentials = errors.New("invalid nickname or password")
)

type Service struct {
	st         *store.Store
	jwt        *auth.JWT
	profiles   *profiles.Service
	autoVerify bool
	log        *logrus.Entry
}

func NewService(st *store.Store, jwt *auth.JWT, ps *profiles.Service, autoVerifyListeners bool, log *logrus.Entry) *Service {
	return &Service{st: st, jwt: jwt, profiles: ps, autoVerify: autoVerifyListeners, log: log}
}

// Result is what a successful sign-up or sign-in hands back to the client.
type Result struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

func (s *Service) SignUp(ctx context.Context, nickname, password string, listener bool) (*Result, error) {
	nickname = strings.TrimSpace(nickname)
	if err := auth.ValidateNickname(nickname); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	ls := models.ListenerUnverified
	if listener {
		ls = models.ListenerPending
		if s.autoVerify {
			ls = models.ListenerVerified
		}
	}

	var p *models.Profile
	err = s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		var userID string
		if err := tx.QueryRowxContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
			auth.PseudoEmail(nickname), hash).Scan(&userID); err != nil {
			if store.IsUniqueViolation(err) {
				return ErrNicknameTaken
			}
			return err
		}
		var err error
		p, err = profiles.Create(ctx, tx, userID, nickname, ls)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"profile_id": p.ID, "listener_status": p.ListenerStatus}).Info("account created")
	return s.issue(p)
}

func (s *Service) SignIn(ctx context.Context, nickname, password string) (*Result, error) {
	if strings.TrimSpace(nickname) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	var (
		id string
		ph string
	)
	err := s.st.DB.QueryRowxContext(ctx, `SELECT id, password_hash FROM users WHERE LOWER(email)=LOWER($1)`,
		auth.PseudoEmail(nickname)).Scan(&id, &ph)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(password, ph) {
		return nil, ErrInvalidCredentials
	}
	p, err := s.profiles.GetByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.issue(p)
}

func (s *Service) issue(p *models.Profile) (*Result, error) {
	tok, err := s.jwt.Sign(p.UserID, p.ID, p.Nickname, auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &Result{Token: tok, Profile: p}, nil
}
