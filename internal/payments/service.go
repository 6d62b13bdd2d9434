// Package payments records captured extension payments against a session.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onetalk/internal/models"
	"onetalk/internal/store"
)

var (
	ErrNotParticipant = errors.New("not a participant in this session")
	ErrInvalidAmount  = errors.New("minutes and amount must be positive")
)

type Sessions interface {
	Get(ctx context.Context, id string) (*models.ChatSession, error)
}

type Service struct {
	st       *store.Store
	sessions Sessions
}

func NewService(st *store.Store, sessions Sessions) *Service {
	return &Service{st: st, sessions: sessions}
}

type Input = models.TransactionRequest

// Record inserts an extension transaction. The listener records it after
// capturing the seeker's payment, so the payer may differ from the caller;
// both must belong to the session. An empty PayerID means the caller paid.
func (s *Service) Record(ctx context.Context, callerID string, in Input) (*models.Transaction, error) {
	if in.Minutes <= 0 || in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.PayerID == "" {
		in.PayerID = callerID
	}
	cs, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if !cs.IsParticipant(callerID) || !cs.IsParticipant(in.PayerID) {
		return nil, ErrNotParticipant
	}
	var tx models.Transaction
	err = s.st.DB.GetContext(ctx, &tx, `INSERT INTO transactions (session_id, profile_id, minutes, amount_cents, kind, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, session_id, profile_id, minutes, amount_cents, kind, reference, created_at`,
		in.SessionID, in.PayerID, in.Minutes, in.AmountCents, models.TransactionExtension, strings.TrimSpace(in.Reference))
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &tx, nil
}
