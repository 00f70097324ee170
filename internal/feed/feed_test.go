package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/shared"
)

func TestFeed(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	ctx := context.Background()

	list := &api.NotificationList{
		Notifications: []models.Notification{{ID: "n1", Title: "Sua música ficou pronta!", Read: false}},
		UnreadCount:   1,
	}

	t.Run("Inactive Feed Does Not Fetch", func(t *testing.T) {
		calls := 0
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			calls++
			return list, nil
		}, nil, realtime.NewBus(logger), logger)

		f.Refresh(ctx)

		if calls != 0 {
			t.Errorf("expected no fetch before activation, got %d", calls)
		}
	})

	t.Run("Activate Loads Snapshot", func(t *testing.T) {
		calls := 0
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			calls++
			return list, nil
		}, nil, realtime.NewBus(logger), logger)

		f.Activate(ctx)

		if calls != 1 {
			t.Fatalf("expected one initial fetch, got %d", calls)
		}
		snap := f.Snapshot()
		if snap.UnreadCount != 1 || len(snap.Notifications) != 1 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("Refresh Events Trigger Refetch", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		calls := 0
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			calls++
			return list, nil
		}, nil, bus, logger)

		f.Activate(ctx)
		initial := calls

		for _, event := range refreshEvents {
			bus.Dispatch(realtime.Envelope{Event: event, Data: json.RawMessage(`{}`)})
		}

		if got := calls - initial; got != len(refreshEvents) {
			t.Errorf("expected one fetch per refresh event, got %d", got)
		}
	})

	t.Run("Legacy Error Event Refreshes The Feed", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		calls := 0
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			calls++
			return list, nil
		}, nil, bus, logger)

		f.Activate(ctx)
		initial := calls

		// Failures on the music_error path write a history entry too, so the
		// alias must refresh just like music_failed.
		bus.Dispatch(realtime.Envelope{
			Event: realtime.EventMusicError,
			Data:  json.RawMessage(`{"user_id":"u1","music_id":"m1"}`),
		})

		if got := calls - initial; got != 1 {
			t.Errorf("expected music_error to refresh the feed, got %d fetches", got)
		}
	})

	t.Run("Fetch Error Keeps Previous Entries", func(t *testing.T) {
		failing := false
		fail := errors.New("backend down")
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			if failing {
				return nil, fail
			}
			return list, nil
		}, nil, realtime.NewBus(logger), logger)

		f.Activate(ctx)
		failing = true
		f.Refresh(ctx)

		snap := f.Snapshot()
		if !errors.Is(snap.Err, fail) {
			t.Errorf("expected error flag, got %v", snap.Err)
		}
		if len(snap.Notifications) != 1 {
			t.Errorf("expected stale entries to survive, got %+v", snap.Notifications)
		}
	})

	t.Run("MarkRead Refreshes After Success", func(t *testing.T) {
		fetches := 0
		var marked []string
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			fetches++
			return list, nil
		}, func(ctx context.Context, id string) error {
			marked = append(marked, id)
			return nil
		}, realtime.NewBus(logger), logger)

		f.Activate(ctx)
		before := fetches

		if err := f.MarkRead(ctx, "n1"); err != nil {
			t.Fatalf("expected mark read to succeed, got %v", err)
		}
		if len(marked) != 1 || marked[0] != "n1" {
			t.Errorf("expected n1 marked, got %v", marked)
		}
		if fetches != before+1 {
			t.Errorf("expected refetch after mark, got %d extra", fetches-before)
		}
	})

	t.Run("MarkRead Failure Skips Refresh", func(t *testing.T) {
		fetches := 0
		fail := errors.New("mark failed")
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			fetches++
			return list, nil
		}, func(ctx context.Context, id string) error {
			return fail
		}, realtime.NewBus(logger), logger)

		f.Activate(ctx)
		before := fetches

		if err := f.MarkRead(ctx, "n1"); !errors.Is(err, fail) {
			t.Errorf("expected mark error, got %v", err)
		}
		if fetches != before {
			t.Errorf("expected no refetch after failed mark")
		}
	})

	t.Run("Deactivate Clears State And Subscriptions", func(t *testing.T) {
		bus := realtime.NewBus(logger)
		calls := 0
		f := New(func(ctx context.Context) (*api.NotificationList, error) {
			calls++
			return list, nil
		}, nil, bus, logger)

		f.Activate(ctx)
		f.Deactivate()

		for _, event := range refreshEvents {
			if bus.SubscriberCount(event) != 0 {
				t.Errorf("expected no subscribers for %s after deactivate", event)
			}
		}
		if snap := f.Snapshot(); len(snap.Notifications) != 0 || snap.UnreadCount != 0 {
			t.Errorf("expected cleared snapshot, got %+v", snap)
		}
	})
}
