package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"onetalk/internal/events"
	"onetalk/internal/models"
	"onetalk/internal/store"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNotParticipant = errors.New("not a participant in this session")
	ErrSessionClosed  = errors.New("session is not active")
	ErrNotVerified    = errors.New("listener is not verified")
	ErrInvalidStatus  = errors.New("invalid session status")
	ErrNotOwnProfile  = errors.New("can only matchmake for your own profile")
	ErrInvalidMinutes = errors.New("minutes to add must be positive")
	ErrNotSeeker      = errors.New("only the seeker can rate this session")
	ErrAlreadyRated   = errors.New("session already rated")
	ErrInvalidScore   = errors.New("score must be between 1 and 5")
	ErrNoListener     = errors.New("session never had a listener")
)

const DefaultDurationMinutes = 30

// MaxDescription bounds the free-text reason a seeker gives when starting a chat.
const MaxDescription = 1000

const columns = `id, seeker_id, listener_id, topic_id, description, status,
	duration_minutes, extended_duration_minutes, created_at, ended_at`

type Service struct {
	st     *store.Store
	events events.Publisher
	log    *logrus.Entry
}

func NewService(st *store.Store, pub events.Publisher, log *logrus.Entry) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{st: st, events: pub, log: log}
}

// Create opens a waiting session for seekerID.
func (s *Service) Create(ctx context.Context, seekerID string, topicID *string, description string) (*models.ChatSession, error) {
	description = strings.TrimSpace(description)
	if len(description) > MaxDescription {
		return nil, fmt.Errorf("description longer than %d bytes", MaxDescription)
	}
	if topicID != nil && *topicID == "" {
		topicID = nil
	}
	var cs models.ChatSession
	err := s.st.DB.GetContext(ctx, &cs, `INSERT INTO chat_sessions (seeker_id, topic_id, description, status, duration_minutes)
		VALUES ($1, $2, $3, 'waiting', $4) RETURNING `+columns, seekerID, topicID, description, DefaultDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.publish(ctx, events.Event{Kind: events.SessionCreated, SessionID: cs.ID, ProfileID: seekerID})
	return &cs, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	return get(ctx, s.st.DB, id, false)
}

// GetFor returns the session if profileID may see it.
func (s *Service) GetFor(ctx context.Context, id, profileID string) (*models.ChatSession, error) {
	cs, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cs.IsParticipant(profileID) && cs.Status != models.StatusWaiting {
		return nil, ErrNotParticipant
	}
	return cs, nil
}

// IsParticipant reports whether profileID is the seeker or listener of sessionID.
func (s *Service) IsParticipant(ctx context.Context, sessionID, profileID string) (bool, error) {
	cs, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cs.IsParticipant(profileID), nil
}

// History lists the caller's completed sessions, newest first.
func (s *Service) History(ctx context.Context, profileID string) ([]models.HistoryEntry, error) {
	out := []models.HistoryEntry{}
	err := s.st.DB.SelectContext(ctx, &out, `SELECT cs.id, cs.created_at, cs.status,
			t.name AS topic_name, sp.nickname AS seeker_nickname, lp.nickname AS listener_nickname
		FROM chat_sessions cs
		LEFT JOIN topics t ON t.id = cs.topic_id
		LEFT JOIN profiles sp ON sp.id = cs.seeker_id
		LEFT JOIN profiles lp ON lp.id = cs.listener_id
		WHERE (cs.seeker_id = $1 OR cs.listener_id = $1) AND cs.status = 'completed'
		ORDER BY cs.created_at DESC`, profileID)
	return out, err
}

// Complete ends a session on behalf of a participant. Completing an already
// completed session returns it unchanged with changed=false.
func (s *Service) Complete(ctx context.Context, id, profileID string) (cs *models.ChatSession, changed bool, err error) {
	err = s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		cur, err := get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !cur.IsParticipant(profileID) {
			return ErrNotParticipant
		}
		if cur.Status == models.StatusCompleted {
			cs = cur
			return nil
		}
		if err := models.CheckTransition(cur.Status, models.StatusCompleted); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		}
		cs, err = completeLocked(ctx, tx, id)
		changed = cs != nil
		if cs == nil {
			cs = cur
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.publish(ctx, events.Event{Kind: events.SessionCompleted, SessionID: id, ProfileID: profileID})
	}
	return cs, changed, nil
}

// completeLocked flips a non-completed session to completed and counts it
// towards both participants' totals. It returns nil when nothing changed.
func completeLocked(ctx context.Context, tx *sqlx.Tx, id string) (*models.ChatSession, error) {
	var cs models.ChatSession
	err := tx.GetContext(ctx, &cs, `UPDATE chat_sessions SET status = 'completed', ended_at = now()
		WHERE id = $1 AND status <> 'completed' RETURNING `+columns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET total_sessions = total_sessions + 1
		WHERE id = $1 OR id = $2`, cs.SeekerID, cs.ListenerID); err != nil {
		return nil, fmt.Errorf("count session: %w", err)
	}
	return &cs, nil
}

// Matchmake claims the oldest waiting session for listenerID. It returns nil
// when the queue is empty. Concurrent callers never claim the same session.
func (s *Service) Matchmake(ctx context.Context, callerID, listenerID string) (*models.ChatSession, error) {
	if callerID != listenerID {
		return nil, ErrNotOwnProfile
	}
	var cs *models.ChatSession
	err := s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		var status models.ListenerStatus
		if err := tx.GetContext(ctx, &status, `SELECT listener_status FROM profiles WHERE id = $1`, listenerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotVerified
			}
			return err
		}
		if status != models.ListenerVerified {
			return ErrNotVerified
		}

		var id string
		err := tx.GetContext(ctx, &id, `SELECT id FROM chat_sessions
			WHERE status = 'waiting' AND seeker_id <> $1
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, listenerID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find waiting session: %w", err)
		}

		// The clock starts when the chat does, not when the seeker queued.
		var claimed models.ChatSession
		if err := tx.GetContext(ctx, &claimed, `UPDATE chat_sessions
			SET status = 'active', listener_id = $2, created_at = now()
			WHERE id = $1 AND status = 'waiting' RETURNING `+columns, id, listenerID); err != nil {
			return fmt.Errorf("claim session: %w", err)
		}
		cs = &claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cs != nil {
		s.publish(ctx, events.Event{Kind: events.SessionMatched, SessionID: cs.ID, ProfileID: listenerID})
	}
	return cs, nil
}

// Extend atomically adds minutes to an active session.
func (s *Service) Extend(ctx context.Context, id, profileID string, minutes int) (*models.ChatSession, error) {
	if minutes <= 0 {
		return nil, ErrInvalidMinutes
	}
	var cs models.ChatSession
	err := s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		cur, err := get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !cur.IsParticipant(profileID) {
			return ErrNotParticipant
		}
		if cur.Status != models.StatusActive {
			return ErrSessionClosed
		}
		return tx.GetContext(ctx, &cs, `UPDATE chat_sessions
			SET extended_duration_minutes = extended_duration_minutes + $2
			WHERE id = $1 AND status = 'active' RETURNING `+columns, id, minutes)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{Kind: events.SessionExtended, SessionID: id, ProfileID: profileID, Minutes: minutes})
	return &cs, nil
}

// Rate records the seeker's score for the listener of a completed session and
// refreshes the listener's aggregate rating.
func (s *Service) Rate(ctx context.Context, id, raterID string, score int, comment string) (*models.Rating, error) {
	if score < 1 || score > 5 {
		return nil, ErrInvalidScore
	}
	var r models.Rating
	err := s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		cur, err := get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if cur.SeekerID != raterID {
			return ErrNotSeeker
		}
		if cur.Status != models.StatusCompleted {
			return ErrInvalidStatus
		}
		if cur.ListenerID == nil {
			return ErrNoListener
		}
		err = tx.GetContext(ctx, &r, `INSERT INTO ratings (session_id, rater_id, listener_id, score, comment)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING session_id, rater_id, listener_id, score, comment, created_at`,
			id, raterID, *cur.ListenerID, score, strings.TrimSpace(comment))
		if store.IsUniqueViolation(err) {
			return ErrAlreadyRated
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE profiles SET
				rating_average = (SELECT avg(score) FROM ratings WHERE listener_id = $1),
				rating_count = (SELECT count(*) FROM ratings WHERE listener_id = $1)
			WHERE id = $1`, *cur.ListenerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ExpireOverdue completes every active session whose deadline passed more
// than grace ago and returns the sessions it closed.
func (s *Service) ExpireOverdue(ctx context.Context, grace time.Duration) ([]models.ChatSession, error) {
	var closed []models.ChatSession
	err := s.st.Tx(ctx, func(tx *sqlx.Tx) error {
		var ids []string
		err := tx.SelectContext(ctx, &ids, `SELECT id FROM chat_sessions
			WHERE status = 'active'
			  AND created_at + make_interval(mins => duration_minutes + extended_duration_minutes) + make_interval(secs => $1) < now()
			FOR UPDATE SKIP LOCKED`, grace.Seconds())
		if err != nil {
			return err
		}
		for _, id := range ids {
			cs, err := completeLocked(ctx, tx, id)
			if err != nil {
				return err
			}
			if cs != nil {
				closed = append(closed, *cs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, cs := range closed {
		s.publish(ctx, events.Event{Kind: events.SessionCompleted, SessionID: cs.ID})
	}
	return closed, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("session_id", ev.SessionID).Warn("publish lifecycle event")
	}
}

func get(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (*models.ChatSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + columns + ` FROM chat_sessions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var cs models.ChatSession
	if err := sqlx.GetContext(ctx, q, &cs, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cs, nil
}
