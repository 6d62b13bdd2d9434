package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"onetalk/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Terminal clients send no Origin; browsers are filtered by the CORS middleware.
		return true
	},
}

// Participants decides who may join a session's room.
type Participants interface {
	IsParticipant(ctx context.Context, sessionID, profileID string) (bool, error)
}

func Handle(h *Hub, jwt *auth.JWT, sessions Participants, w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	tok := r.URL.Query().Get("token")
	claims, err := jwt.Parse(tok)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	ok, err := sessions.IsParticipant(r.Context(), sessionID, claims.ProfileID)
	if err != nil || !ok {
		http.Error(w, "not in session", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(h, sessionID, claims.ProfileID, conn)
	h.Join(sessionID, c)
	h.log.WithField("session_id", sessionID).WithField("profile_id", claims.ProfileID).Debug("realtime subscriber joined")
	go c.writePump()
	go c.readPump()
}
