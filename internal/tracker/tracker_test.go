package tracker

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/shared"
)

func dispatch(bus *realtime.Bus, event, data string) {
	bus.Dispatch(realtime.Envelope{Event: event, Data: json.RawMessage(data)})
}

func TestTracker(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Submitted Is Optimistic", func(t *testing.T) {
		tr := New(realtime.NewBus(logger), 0, logger)
		tr.Bind("u1")
		tr.Submitted("Minha Música")

		snap := tr.Snapshot()
		if snap.Phase != PhaseSubmitted {
			t.Errorf("expected submitted phase, got %s", snap.Phase)
		}
		if snap.MusicName != "Minha Música" {
			t.Errorf("unexpected music name %q", snap.MusicName)
		}
	})

	t.Run("Progress Is Last Write Wins", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Minha Música")

		dispatch(bus, realtime.EventMusicProgress, `{"music_id":"m1","progress":40,"step":"cooking","message":"m"}`)
		dispatch(bus, realtime.EventMusicProgress, `{"music_id":"m1","progress":10,"step":"received","message":"m2"}`)

		snap := tr.Snapshot()
		if snap.Phase != PhaseGenerating {
			t.Fatalf("expected generating phase, got %s", snap.Phase)
		}
		if snap.Progress == nil || snap.Progress.Percent != 10 {
			t.Errorf("expected latest progress 10, got %+v", snap.Progress)
		}
		if snap.Progress.Step != "received" || snap.Progress.Message != "m2" {
			t.Errorf("expected latest step and message, got %+v", snap.Progress)
		}
	})

	t.Run("Completed Raises One Shot Alert", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")

		dispatch(bus, realtime.EventMusicCompleted, `{"user_id":"u1","music_id":"m1","music_name":"Foo"}`)

		snap := tr.Snapshot()
		if snap.Phase != PhaseCompleted {
			t.Fatalf("expected completed phase, got %s", snap.Phase)
		}
		if snap.Progress != nil {
			t.Errorf("expected progress cleared, got %+v", snap.Progress)
		}
		alert := tr.TakeAlert()
		if alert == nil || alert.Kind != AlertSuccess {
			t.Fatalf("expected success alert, got %+v", alert)
		}
		if !strings.Contains(alert.Message, "Foo") {
			t.Errorf("expected alert to name the music, got %q", alert.Message)
		}
		if tr.TakeAlert() != nil {
			t.Error("expected alert consumed on first take")
		}
	})

	t.Run("Terminal State Is Sticky", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")

		dispatch(bus, realtime.EventMusicCompleted, `{"user_id":"u1","music_id":"m1","music_name":"Foo"}`)
		dispatch(bus, realtime.EventMusicProgress, `{"music_id":"m1","progress":55,"step":"cooking","message":"stray"}`)

		snap := tr.Snapshot()
		if snap.Phase != PhaseCompleted {
			t.Errorf("expected completed phase to persist, got %s", snap.Phase)
		}
		if snap.Progress != nil {
			t.Errorf("expected stray progress dropped, got %+v", snap.Progress)
		}
	})

	t.Run("New Submission Clears Terminal State", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")
		dispatch(bus, realtime.EventMusicFailed, `{"user_id":"u1","music_id":"m1","error":"boom"}`)
		tr.TakeAlert()

		tr.Submitted("Bar")
		dispatch(bus, realtime.EventMusicProgress, `{"music_id":"m2","progress":5,"step":"received","message":"ok"}`)

		snap := tr.Snapshot()
		if snap.Phase != PhaseGenerating || snap.Progress == nil {
			t.Errorf("expected new request to track again, got %+v", snap)
		}
	})

	t.Run("Legacy Error Event Fails Request", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")

		dispatch(bus, realtime.EventMusicError, `{"user_id":"u1","music_id":"m1","message":"sem voz"}`)

		if snap := tr.Snapshot(); snap.Phase != PhaseFailed {
			t.Fatalf("expected failed phase, got %s", snap.Phase)
		}
		alert := tr.TakeAlert()
		if alert == nil || alert.Kind != AlertError || !strings.Contains(alert.Message, "sem voz") {
			t.Errorf("expected failure alert with backend reason, got %+v", alert)
		}
	})

	t.Run("Foreign Terminal Events Are Ignored", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")

		dispatch(bus, realtime.EventMusicCompleted, `{"user_id":"u2","music_id":"m9","music_name":"Alheia"}`)

		if snap := tr.Snapshot(); snap.Phase != PhaseSubmitted {
			t.Errorf("expected other user's completion ignored, got %s", snap.Phase)
		}
		if tr.TakeAlert() != nil {
			t.Error("expected no alert for another user's music")
		}
	})

	t.Run("Stalled Generation Fails", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 20*time.Millisecond, logger)
		changed := make(chan struct{}, 8)
		tr.OnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		tr.Bind("u1")
		tr.Submitted("Foo")

		deadline := time.After(2 * time.Second)
		for tr.Snapshot().Phase != PhaseFailed {
			select {
			case <-changed:
			case <-deadline:
				t.Fatalf("expected stall watchdog to fail the request, still %s", tr.Snapshot().Phase)
			}
		}
		if alert := tr.TakeAlert(); alert == nil || alert.Kind != AlertError {
			t.Errorf("expected stall alert, got %+v", alert)
		}
	})

	t.Run("Completion Disarms Watchdog", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 20*time.Millisecond, logger)
		tr.Bind("u1")
		tr.Submitted("Foo")
		dispatch(bus, realtime.EventMusicCompleted, `{"user_id":"u1","music_id":"m1","music_name":"Foo"}`)

		time.Sleep(60 * time.Millisecond)

		if snap := tr.Snapshot(); snap.Phase != PhaseCompleted {
			t.Errorf("expected completion to stand after watchdog window, got %s", snap.Phase)
		}
	})

	t.Run("Release Unsubscribes", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		tr := New(bus, 0, logger)
		tr.Bind("u1")
		tr.Release()

		for _, event := range []string{
			realtime.EventMusicProgress,
			realtime.EventMusicCompleted,
			realtime.EventMusicFailed,
			realtime.EventMusicError,
		} {
			if bus.SubscriberCount(event) != 0 {
				t.Errorf("expected no subscribers for %s after release", event)
			}
		}
		if snap := tr.Snapshot(); snap.Phase != PhaseIdle {
			t.Errorf("expected idle after release, got %s", snap.Phase)
		}
	})
}
