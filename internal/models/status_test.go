package models

import (
	"errors"
	"testing"
	"time"
)

func TestStatusOnlyMovesForward(t *testing.T) {
	all := []SessionStatus{StatusWaiting, StatusActive, StatusCompleted}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			want := to.rank() > from.rank() || (from == StatusCompleted && to == StatusCompleted)
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition(StatusActive, StatusWaiting) {
		t.Fatal("active -> waiting must be rejected")
	}
	if CanTransition(StatusCompleted, StatusActive) {
		t.Fatal("completed -> active must be rejected")
	}
	if CanTransition("bogus", StatusActive) || CanTransition(StatusWaiting, "bogus") {
		t.Fatal("unknown statuses must be rejected")
	}
}

func TestCheckTransitionError(t *testing.T) {
	err := CheckTransition(StatusCompleted, StatusWaiting)
	var bad ErrInvalidTransition
	if !errors.As(err, &bad) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if bad.From != StatusCompleted || bad.To != StatusWaiting {
		t.Fatalf("unexpected error fields %+v", bad)
	}
	if err := CheckTransition(StatusWaiting, StatusActive); err != nil {
		t.Fatalf("waiting -> active: %v", err)
	}
}

func TestDeadlineIncludesExtension(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := ChatSession{CreatedAt: created, DurationMinutes: 30, ExtendedDurationMinutes: 15}
	if s.TotalMinutes() != 45 {
		t.Fatalf("total minutes = %d", s.TotalMinutes())
	}
	if want := created.Add(45 * time.Minute); !s.Deadline().Equal(want) {
		t.Fatalf("deadline = %v, want %v", s.Deadline(), want)
	}
}

func TestParticipants(t *testing.T) {
	l := "listener"
	s := ChatSession{SeekerID: "seeker"}
	if !s.IsParticipant("seeker") || s.IsParticipant("listener") || s.IsParticipant("") {
		t.Fatal("waiting session participants wrong")
	}
	if s.PeerOf("seeker") != "" {
		t.Fatal("no peer before matchmaking")
	}
	s.ListenerID = &l
	if !s.IsParticipant("listener") || s.PeerOf("seeker") != "listener" || s.PeerOf("listener") != "seeker" {
		t.Fatal("active session participants wrong")
	}
}

func TestPrecedes(t *testing.T) {
	if !StatusWaiting.Precedes(StatusActive) || !StatusActive.Precedes(StatusCompleted) {
		t.Fatal("forward order broken")
	}
	if StatusActive.Precedes(StatusActive) || StatusCompleted.Precedes(StatusWaiting) {
		t.Fatal("equal or later statuses do not precede")
	}
	if SessionStatus("bogus").Precedes(StatusCompleted) {
		t.Fatal("unknown status precedes nothing")
	}
}
