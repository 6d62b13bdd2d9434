package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"onetalk/internal/models"
	"onetalk/internal/store"
)

var (
	ErrNotFound       = errors.New("message not found")
	ErrNotParticipant = errors.New("not a participant in this session")
	ErrSessionClosed  = errors.New("session is not active")
)

// Sessions looks up the session a message belongs to.
type Sessions interface {
	Get(ctx context.Context, id string) (*models.ChatSession, error)
}

// Messages are append-only: there is no update or delete path.
type Service struct {
	st       *store.Store
	sessions Sessions
}

func NewService(st *store.Store, sessions Sessions) *Service {
	return &Service{st: st, sessions: sessions}
}

const selectWithNickname = `SELECT m.id, m.session_id, m.profile_id, m.content, m.created_at,
		COALESCE(p.nickname, '') AS sender_nickname
	FROM messages m LEFT JOIN profiles p ON p.id = m.profile_id`

// List returns the session's messages in creation order.
func (s *Service) List(ctx context.Context, sessionID, profileID string) ([]models.Message, error) {
	cs, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !cs.IsParticipant(profileID) {
		return nil, ErrNotParticipant
	}
	out := []models.Message{}
	err = s.st.DB.SelectContext(ctx, &out, selectWithNickname+`
		WHERE m.session_id = $1 ORDER BY m.created_at, m.id`, sessionID)
	return out, err
}

// Get returns one message with its sender's nickname, if profileID took part
// in its session.
func (s *Service) Get(ctx context.Context, id int64, profileID string) (*models.Message, error) {
	m, err := one(ctx, s.st.DB, id)
	if err != nil {
		return nil, err
	}
	cs, err := s.sessions.Get(ctx, m.SessionID)
	if err != nil {
		return nil, err
	}
	if !cs.IsParticipant(profileID) {
		return nil, ErrNotParticipant
	}
	return m, nil
}

// Create appends a message from senderID to an active session.
func (s *Service) Create(ctx context.Context, sessionID, senderID, text string) (*models.Message, error) {
	content, err := NormalizeContent(text)
	if err != nil {
		return nil, err
	}
	cs, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !cs.IsParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	if cs.Status != models.StatusActive {
		return nil, ErrSessionClosed
	}

	var id int64
	err = s.st.DB.QueryRowxContext(ctx, `INSERT INTO messages (session_id, profile_id, content)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1 AND status = 'active')
		RETURNING id`, sessionID, senderID, content).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// completed between the check and the insert
		return nil, ErrSessionClosed
	}
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return one(ctx, s.st.DB, id)
}

func one(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Message, error) {
	var m models.Message
	if err := sqlx.GetContext(ctx, q, &m, selectWithNickname+` WHERE m.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
