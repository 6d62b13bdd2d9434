package profiles

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"onetalk/internal/models"
	"onetalk/internal/store"
)

var ErrNotFound = errors.New("profile not found")

const columns = `id, user_id, nickname, bio, role, listener_status, is_available,
	rating_average, rating_count, total_sessions, created_at`

type Service struct{ st *store.Store }

func NewService(st *store.Store) *Service { return &Service{st: st} }

// Create inserts the profile row for a freshly registered user. q may be a transaction.
func Create(ctx context.Context, q sqlx.QueryerContext, userID, nickname string, ls models.ListenerStatus) (*models.Profile, error) {
	role := models.RoleSeeker
	if ls != models.ListenerUnverified {
		role = models.RoleListener
	}
	var p models.Profile
	err := sqlx.GetContext(ctx, q, &p, `INSERT INTO profiles (user_id, nickname, role, listener_status)
		VALUES ($1, $2, $3, $4) RETURNING `+columns, userID, nickname, role, ls)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	return s.one(ctx, `SELECT `+columns+` FROM profiles WHERE id=$1`, id)
}

func (s *Service) GetByUser(ctx context.Context, userID string) (*models.Profile, error) {
	return s.one(ctx, `SELECT `+columns+` FROM profiles WHERE user_id=$1`, userID)
}

// SetAvailable flips the listener availability flag, the only profile field
// a client may write.
func (s *Service) SetAvailable(ctx context.Context, id string, available bool) (*models.Profile, error) {
	return s.one(ctx, `UPDATE profiles SET is_available=$2 WHERE id=$1 RETURNING `+columns, id, available)
}

func (s *Service) one(ctx context.Context, q string, args ...any) (*models.Profile, error) {
	var p models.Profile
	if err := s.st.DB.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
