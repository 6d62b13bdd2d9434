package realtime

import (
	"testing"

	"onetalk/internal/models"
)

func TestMessageInsertedCarriesMessage(t *testing.T) {
	ev, err := NewMessageInserted(models.Message{ID: 7, SessionID: "s1", ProfileID: "p1", Content: "hello", SenderNickname: "owl"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeMessageInserted || ev.SessionID != "s1" || ev.SenderID != "p1" {
		t.Fatalf("unexpected envelope %+v", ev)
	}
	m, err := ev.Message()
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 7 || m.Content != "hello" || m.SenderNickname != "owl" {
		t.Fatalf("unexpected message %+v", m)
	}
	if _, err := ev.Session(); err == nil {
		t.Fatal("decoding a message event as a session must fail")
	}
}

func TestBroadcastOffer(t *testing.T) {
	ev, err := NewBroadcast("s1", "p1", EventExtensionRequest, models.ExtensionOffer{Minutes: 30, PriceCents: 499, RequestedBy: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	o, err := ev.Offer()
	if err != nil {
		t.Fatal(err)
	}
	if o.Minutes != 30 || o.PriceCents != 499 {
		t.Fatalf("unexpected offer %+v", o)
	}

	bare, _ := NewBroadcast("s1", "p1", EventTyping, nil)
	if len(bare.Payload) != 0 {
		t.Fatal("nil payload should stay empty")
	}
	if _, err := bare.Offer(); err == nil {
		t.Fatal("empty payload must not decode")
	}
}

func TestValidBroadcast(t *testing.T) {
	for _, e := range []string{EventTyping, EventStoppedTyping, EventExtensionRequest, EventExtensionAccepted, EventExtensionDeclined} {
		if !ValidBroadcast(e) {
			t.Errorf("%s should be valid", e)
		}
	}
	if ValidBroadcast("session.updated") || ValidBroadcast("") {
		t.Fatal("server-only or empty events are not client broadcasts")
	}
	if Topic("abc") != "onetalk:session:abc" {
		t.Fatal("topic naming changed")
	}
}
