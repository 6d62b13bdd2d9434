package models

import "time"

type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleListener Role = "listener"
	RoleExpert   Role = "expert"
)

type ListenerStatus string

const (
	ListenerUnverified ListenerStatus = "unverified"
	ListenerPending    ListenerStatus = "pending"
	ListenerVerified   ListenerStatus = "verified"
)

type Profile struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Nickname       string         `db:"nickname" json:"nickname"`
	Bio            *string        `db:"bio" json:"bio"`
	Role           Role           `db:"role" json:"role"`
	ListenerStatus ListenerStatus `db:"listener_status" json:"listener_status"`
	IsAvailable    bool           `db:"is_available" json:"is_available"`
	RatingAverage  float64        `db:"rating_average" json:"rating_average"`
	RatingCount    int            `db:"rating_count" json:"rating_count"`
	TotalSessions  int            `db:"total_sessions" json:"total_sessions"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

type Topic struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Color       string `db:"color" json:"color"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

type ChatSession struct {
	ID                      string        `db:"id" json:"id"`
	SeekerID                string        `db:"seeker_id" json:"seeker_id"`
	ListenerID              *string       `db:"listener_id" json:"listener_id"`
	TopicID                 *string       `db:"topic_id" json:"topic_id"`
	Description             string        `db:"description" json:"description"`
	Status                  SessionStatus `db:"status" json:"status"`
	DurationMinutes         int           `db:"duration_minutes" json:"duration_minutes"`
	ExtendedDurationMinutes int           `db:"extended_duration_minutes" json:"extended_duration_minutes"`
	CreatedAt               time.Time     `db:"created_at" json:"created_at"`
	EndedAt                 *time.Time    `db:"ended_at" json:"ended_at"`
}

// TotalMinutes is the booked length including purchased extensions.
func (s ChatSession) TotalMinutes() int { return s.DurationMinutes + s.ExtendedDurationMinutes }

// Deadline is when the session runs out of time.
func (s ChatSession) Deadline() time.Time {
	return s.CreatedAt.Add(time.Duration(s.TotalMinutes()) * time.Minute)
}

// IsParticipant reports whether profileID is the seeker or the assigned listener.
func (s ChatSession) IsParticipant(profileID string) bool {
	if profileID == "" {
		return false
	}
	return s.SeekerID == profileID || (s.ListenerID != nil && *s.ListenerID == profileID)
}

// PeerOf returns the other participant's profile id, or "" when there is none yet.
func (s ChatSession) PeerOf(profileID string) string {
	if s.SeekerID == profileID {
		if s.ListenerID != nil {
			return *s.ListenerID
		}
		return ""
	}
	return s.SeekerID
}

type Message struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	ProfileID      string    `db:"profile_id" json:"profile_id"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	SenderNickname string    `db:"sender_nickname" json:"sender_nickname"`
}

type Transaction struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	ProfileID   string    `db:"profile_id" json:"profile_id"`
	Minutes     int       `db:"minutes" json:"minutes"`
	AmountCents int       `db:"amount_cents" json:"amount_cents"`
	Kind        string    `db:"kind" json:"kind"`
	Reference   string    `db:"reference" json:"reference"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const TransactionExtension = "extension"

type Rating struct {
	SessionID  string    `db:"session_id" json:"session_id"`
	RaterID    string    `db:"rater_id" json:"rater_id"`
	ListenerID string    `db:"listener_id" json:"listener_id"`
	Score      int       `db:"score" json:"score"`
	Comment    string    `db:"comment" json:"comment"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HistoryEntry is a completed session as shown in a participant's history.
type HistoryEntry struct {
	ID               string        `db:"id" json:"id"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	Status           SessionStatus `db:"status" json:"status"`
	TopicName        *string       `db:"topic_name" json:"topic_name"`
	SeekerNickname   *string       `db:"seeker_nickname" json:"seeker_nickname"`
	ListenerNickname *string       `db:"listener_nickname" json:"listener_nickname"`
}

// ExtensionOffer is a proposed paid extension. It is only ever broadcast, never stored.
type ExtensionOffer struct {
	Minutes     int    `json:"minutes"`
	PriceCents  int    `json:"price_cents"`
	RequestedBy string `json:"requested_by"`
}

// TransactionRequest records a captured extension payment. An empty PayerID
// means the caller paid.
type TransactionRequest struct {
	SessionID   string `json:"session_id"`
	PayerID     string `json:"payer_id"`
	Minutes     int    `json:"minutes"`
	AmountCents int    `json:"amount_cents"`
	Reference   string `json:"reference"`
}
