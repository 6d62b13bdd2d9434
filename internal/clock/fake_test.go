package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	c := Fake(epoch)
	c.Advance(5 * time.Second)
	if got := c.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("Now() = %v", got)
	}
}

func TestFakeAfterFuncResetAndStop(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	timer := c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(time.Second)
	if !timer.Reset(2 * time.Second) {
		t.Fatal("Reset should report an active timer")
	}
	c.Advance(time.Second + 500*time.Millisecond)
	if fired != 0 {
		t.Fatal("reset timer fired early")
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if timer.Stop() {
		t.Fatal("Stop after firing should report false")
	}

	timer.Reset(time.Second)
	if !timer.Stop() {
		t.Fatal("Stop on a re-armed timer should report true")
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("stopped timer fired, count %d", fired)
	}
}

func TestFakeResetAfterStopFiresOnce(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	timer := c.AfterFunc(time.Second, func() { fired++ })

	timer.Stop()
	if timer.Reset(time.Second) {
		t.Fatal("Reset after Stop should report an inactive timer")
	}
	if got := c.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestFakeTickerDropsBacklog(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Second)
	c.Advance(10 * time.Second)
	<-tk.C
	select {
	case <-tk.C:
		t.Fatal("ticker should hold at most one tick")
	default:
	}
	tk.Stop()
	if c.PendingCount() != 0 {
		t.Fatalf("pending = %d after Stop", c.PendingCount())
	}
}
