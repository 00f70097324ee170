package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/feed"
	"github.com/alquimista/studio/internal/library"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/shared"
	mocks "github.com/alquimista/studio/internal/testing"
	"github.com/alquimista/studio/internal/tracker"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// sessionEnv assembles a full client stack against an in-process websocket
// server and a mocked REST backend.
type sessionEnv struct {
	manager *Manager
	conn    *realtime.Conn
	bus     *realtime.Bus
	store   *Store
	tracker *tracker.Tracker

	joins        chan map[string]any
	server       chan *websocket.Conn
	libFetches   atomic.Int64
	feedFetches  atomic.Int64
	loginCalls   atomic.Int64
	profileValid bool
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	logger := shared.NewLogger(io.Discard)

	env := &sessionEnv{
		joins:        make(chan map[string]any, 4),
		server:       make(chan *websocket.Conn, 4),
		profileValid: true,
	}

	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		var join map[string]any
		if err := wsjson.Read(r.Context(), conn, &join); err != nil {
			return
		}
		env.joins <- join
		env.server <- conn
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ws.Close)

	transport := mocks.NewMockRoundTripper(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.URL.Path == "/api/login":
			env.loginCalls.Add(1)
			return mocks.JSONResponse(http.StatusOK,
				`{"user":{"id":"u1","username":"ana"},"token":"abc"}`), nil
		case req.URL.Path == "/api/profile":
			if env.profileValid {
				return mocks.JSONResponse(http.StatusOK,
					`{"valid":true,"user":{"id":"u1","username":"ana"}}`), nil
			}
			return mocks.JSONResponse(http.StatusOK, `{"valid":false}`), nil
		default:
			return mocks.JSONResponse(http.StatusOK, `{}`), nil
		}
	})
	client := api.NewClient("http://studio.test", &http.Client{Transport: transport}, 0, logger)

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	env.store = NewStore(db)
	if err := env.store.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}

	env.bus = realtime.NewBus(logger)
	env.conn = realtime.NewConn("ws"+strings.TrimPrefix(ws.URL, "http"), env.bus, logger)
	t.Cleanup(env.conn.Disconnect)

	lib := library.NewManager(func(ctx context.Context, userID string) ([]models.Music, error) {
		env.libFetches.Add(1)
		return []models.Music{{ID: "m1", UserID: userID, MusicName: "Foo", Status: "completed"}}, nil
	}, env.bus, logger)
	t.Cleanup(lib.Close)

	fd := feed.New(func(ctx context.Context) (*api.NotificationList, error) {
		env.feedFetches.Add(1)
		return &api.NotificationList{}, nil
	}, client.MarkNotificationRead, env.bus, logger)

	env.tracker = tracker.New(env.bus, 0, logger)
	env.manager = NewManager(client, env.conn, env.store, lib, fd, env.tracker, logger)
	return env
}

func (env *sessionEnv) push(t *testing.T, event, data string) {
	t.Helper()
	select {
	case conn := <-env.server:
		env.server <- conn
		err := wsjson.Write(context.Background(), conn, map[string]any{
			"event": event,
			"data":  mustDecode(t, data),
		})
		if err != nil {
			t.Fatalf("push %s: %v", event, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no server-side connection to push through")
	}
}

func mustDecode(t *testing.T, data string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return out
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Login Brings Session Online", func(t *testing.T) {
		env := newSessionEnv(t)

		user, err := env.manager.Login(ctx, "ana", "segredo")
		if err != nil {
			t.Fatalf("expected login to succeed, got %v", err)
		}
		if user.ID != "u1" {
			t.Errorf("unexpected user %+v", user)
		}

		join := <-env.joins
		if join["user_id"] != "u1" {
			t.Errorf("expected join scoped to u1, got %v", join)
		}
		eventually(t, "connected state", func() bool {
			return env.conn.State() == realtime.Connected
		})
		if env.libFetches.Load() != 1 {
			t.Errorf("expected one initial library fetch, got %d", env.libFetches.Load())
		}

		token, saved, ok, err := env.store.Load()
		if err != nil || !ok {
			t.Fatalf("expected persisted session, got ok=%v err=%v", ok, err)
		}
		if token != "abc" || saved.Username != "ana" {
			t.Errorf("unexpected persisted session %q %+v", token, saved)
		}
	})

	t.Run("Completed Envelope Raises Alert And Refetches Library", func(t *testing.T) {
		env := newSessionEnv(t)
		if _, err := env.manager.Login(ctx, "ana", "segredo"); err != nil {
			t.Fatal(err)
		}
		<-env.joins
		env.tracker.Submitted("Foo")

		before := env.libFetches.Load()
		env.push(t, realtime.EventMusicCompleted, `{"user_id":"u1","music_id":"m1","music_name":"Foo"}`)

		eventually(t, "completed phase", func() bool {
			return env.tracker.Snapshot().Phase == tracker.PhaseCompleted
		})
		alert := env.tracker.TakeAlert()
		if alert == nil || !strings.Contains(alert.Message, "Foo") {
			t.Errorf("expected success alert naming the music, got %+v", alert)
		}

		eventually(t, "library refetch", func() bool {
			return env.libFetches.Load() == before+1
		})
		time.Sleep(50 * time.Millisecond)
		if got := env.libFetches.Load(); got != before+1 {
			t.Errorf("expected exactly one refetch, got %d", got-before)
		}
	})

	t.Run("Resume Revalidates Saved Credential", func(t *testing.T) {
		env := newSessionEnv(t)
		if err := env.store.Save("abc", models.User{ID: "u1", Username: "ana"}); err != nil {
			t.Fatal(err)
		}

		user, ok, err := env.manager.Resume(ctx)
		if err != nil || !ok {
			t.Fatalf("expected resume to succeed, got ok=%v err=%v", ok, err)
		}
		if user.Username != "ana" {
			t.Errorf("unexpected user %+v", user)
		}
		if env.loginCalls.Load() != 0 {
			t.Error("expected resume to skip the login endpoint")
		}
	})

	t.Run("Resume Clears Rejected Credential", func(t *testing.T) {
		env := newSessionEnv(t)
		env.profileValid = false
		if err := env.store.Save("stale", models.User{ID: "u1", Username: "ana"}); err != nil {
			t.Fatal(err)
		}

		_, ok, err := env.manager.Resume(ctx)
		if ok || !errors.Is(err, shared.ErrTokenRejected) {
			t.Fatalf("expected token rejection, got ok=%v err=%v", ok, err)
		}
		if _, _, stillThere, _ := env.store.Load(); stillThere {
			t.Error("expected rejected session cleared from store")
		}
	})

	t.Run("Resume Without Saved Session Is Quiet", func(t *testing.T) {
		env := newSessionEnv(t)

		user, ok, err := env.manager.Resume(ctx)
		if err != nil || ok || user != nil {
			t.Errorf("expected quiet no-session resume, got user=%v ok=%v err=%v", user, ok, err)
		}
	})

	t.Run("Logout Tears Everything Down", func(t *testing.T) {
		env := newSessionEnv(t)
		if _, err := env.manager.Login(ctx, "ana", "segredo"); err != nil {
			t.Fatal(err)
		}
		<-env.joins

		if err := env.manager.Logout(ctx); err != nil {
			t.Fatalf("expected logout to succeed, got %v", err)
		}
		if _, ok := env.manager.Current(); ok {
			t.Error("expected no current user after logout")
		}
		if _, _, ok, _ := env.store.Load(); ok {
			t.Error("expected stored session cleared")
		}
		eventually(t, "disconnected state", func() bool {
			return env.conn.State() == realtime.Disconnected
		})
		if n := env.bus.SubscriberCount(realtime.EventMusicCompleted); n != 0 {
			t.Errorf("expected no completed-event subscribers after logout, got %d", n)
		}
	})
}

func TestStore(t *testing.T) {
	newStore := func(t *testing.T) *Store {
		t.Helper()
		db, err := shared.NewDatabase(":memory:")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		s := NewStore(db)
		if err := s.Init(); err != nil {
			t.Fatal(err)
		}
		return s
	}

	t.Run("Load Without Session", func(t *testing.T) {
		s := newStore(t)
		if _, _, ok, err := s.Load(); ok || err != nil {
			t.Errorf("expected empty store, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("Save Then Load Round Trip", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save("abc", models.User{ID: "u1", Username: "ana", DisplayName: "Ana"}); err != nil {
			t.Fatal(err)
		}

		token, user, ok, err := s.Load()
		if err != nil || !ok {
			t.Fatalf("expected saved session, got ok=%v err=%v", ok, err)
		}
		if token != "abc" || user.ID != "u1" || user.DisplayName != "Ana" {
			t.Errorf("unexpected session %q %+v", token, user)
		}
	})

	t.Run("Save Overwrites Previous Session", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save("old", models.User{ID: "u1", Username: "ana"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Save("new", models.User{ID: "u2", Username: "bia"}); err != nil {
			t.Fatal(err)
		}

		token, user, _, _ := s.Load()
		if token != "new" || user.ID != "u2" {
			t.Errorf("expected latest session, got %q %+v", token, user)
		}
	})

	t.Run("Clear Forgets Session", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save("abc", models.User{ID: "u1", Username: "ana"}); err != nil {
			t.Fatal(err)
		}
		if err := s.Clear(); err != nil {
			t.Fatal(err)
		}
		if _, _, ok, _ := s.Load(); ok {
			t.Error("expected cleared store")
		}
	})
}
