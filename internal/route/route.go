// Package route names the client's screens and maps them to and from paths.
package route

import "strings"

type Name string

const (
	Landing   Name = "landing"
	Auth      Name = "auth"
	Dashboard Name = "dashboard"
	ChatStart Name = "chat-start"
	Waiting   Name = "chat-waiting"
	Session   Name = "chat-session"
	Queue     Name = "listener-queue"
	History   Name = "history"
	Rating    Name = "rating"
	NotFound  Name = "not-found"
)

type Route struct {
	Name      Name
	SessionID string
}

func To(name Name) Route { return Route{Name: name} }

func ToWaiting(sessionID string) Route { return Route{Name: Waiting, SessionID: sessionID} }
func ToSession(sessionID string) Route { return Route{Name: Session, SessionID: sessionID} }
func ToRating(sessionID string) Route  { return Route{Name: Rating, SessionID: sessionID} }

var static = map[Name]string{
	Landing:   "/",
	Auth:      "/auth",
	Dashboard: "/dashboard",
	ChatStart: "/chat/start",
	Queue:     "/listener/queue",
	History:   "/history",
}

var withID = map[Name]string{
	Waiting: "/chat/waiting/",
	Session: "/chat/session/",
	Rating:  "/rating/",
}

func (r Route) Path() string {
	if p, ok := static[r.Name]; ok {
		return p
	}
	if p, ok := withID[r.Name]; ok && r.SessionID != "" {
		return p + r.SessionID
	}
	return "/404"
}

func (r Route) String() string { return r.Path() }

// Parse maps a path to its route. Unknown paths, and id routes without an
// id, parse to NotFound.
func Parse(path string) Route {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for name, p := range static {
		if path == p {
			return Route{Name: name}
		}
	}
	for name, prefix := range withID {
		if id, ok := strings.CutPrefix(path, prefix); ok && id != "" && !strings.Contains(id, "/") {
			return Route{Name: name, SessionID: id}
		}
	}
	return Route{Name: NotFound}
}
