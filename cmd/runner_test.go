package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/session"
	"github.com/alquimista/studio/internal/shared"
	tu "github.com/alquimista/studio/internal/testing"
)

func newTestRunner(t *testing.T, handler func(*http.Request) (*http.Response, error)) (*Runner, *bytes.Buffer) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := session.NewStore(db)
	if err := store.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}

	output := &bytes.Buffer{}
	config := shared.DefaultConfig()
	config.Studio.StallTimeoutMinutes = 0

	runner := NewRunner(RunnerOpts{
		Config:     config,
		HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(handler)},
		Store:      store,
		Logger:     shared.NewLogger(io.Discard),
		Output:     output,
	})
	t.Cleanup(runner.conn.Disconnect)
	return runner, output
}

func okHandler(req *http.Request) (*http.Response, error) {
	switch req.URL.Path {
	case "/api/profile":
		return tu.JSONResponse(http.StatusOK, `{"valid":true,"user":{"id":"u1","username":"ana"}}`), nil
	case "/api/notifications":
		return tu.JSONResponse(http.StatusOK, `{"notifications":[{"id":"n1","title":"Pronto","message":"Sua música ficou pronta","read":false}],"unread_count":1}`), nil
	case "/api/notifications/process-history":
		return tu.JSONResponse(http.StatusOK, `{"history":[{"id":"h1","process_id":"p1","step":"generating","status":"in_progress","message":"Compondo a melodia","timestamp":1700000000}]}`), nil
	case "/api/machines":
		return tu.JSONResponse(http.StatusOK, `[{"id":"ma1","name":"Roland","services":[{"name":"mix","value":100},{"name":"master","value":50}],"expenses":[{"name":"cabos","value":30}],"labor":20}]`), nil
	case "/static/musics/m1.mp3":
		return tu.JSONResponse(http.StatusOK, "fake-audio"), nil
	default:
		if strings.HasPrefix(req.URL.Path, "/api/music/list/user/") {
			return tu.JSONResponse(http.StatusOK, `[{"id":"m1","user_id":"u1","music_name":"Chuva","music_url":"/static/musics/m1.mp3","status":"completed"}]`), nil
		}
		return tu.JSONResponse(http.StatusOK, `{}`), nil
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with defaults for missing options", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.client == nil || runner.conn == nil || runner.bus == nil {
				t.Error("expected client stack to be constructed")
			}
			if runner.session == nil || runner.ledger == nil {
				t.Error("expected session services to be constructed")
			}
		})

		t.Run("register exposes all top-level commands", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			commands := runner.register()

			names := map[string]bool{}
			for _, cmd := range commands {
				names[cmd.Name] = true
			}
			for _, want := range []string{"setup", "auth", "music", "notify", "finance", "studio"} {
				if !names[want] {
					t.Errorf("expected %q command registered", want)
				}
			}
		})
	})

	t.Run("Output Helpers", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)

		if err := runner.writeJSON(models.User{ID: "u1", Username: "ana"}, false); err != nil {
			t.Fatalf("expected writeJSON to succeed, got %v", err)
		}
		if !strings.Contains(output.String(), `"username":"ana"`) {
			t.Errorf("unexpected JSON output %q", output.String())
		}

		output.Reset()
		if err := runner.writePlain("olá %s", "ana"); err != nil {
			t.Fatalf("expected writePlain to succeed, got %v", err)
		}
		if output.String() != "olá ana" {
			t.Errorf("unexpected plain output %q", output.String())
		}

		runner.output = &tu.FWriter{}
		if err := runner.writePlain("olá"); err == nil {
			t.Error("expected writePlain to surface the write error")
		}

		limited := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
		runner.output = &limited
		if err := runner.writeJSON(models.User{ID: "u1"}, false); err == nil {
			t.Error("expected writeJSON to fail on the trailing newline write")
		}
	})

	t.Run("Whoami", func(t *testing.T) {
		t.Run("without stored session", func(t *testing.T) {
			runner, _ := newTestRunner(t, okHandler)

			root := authCommand(runner)
			err := root.Run(context.Background(), []string{"auth", "whoami"})
			if err == nil {
				t.Fatal("expected error without stored session")
			}
			if !strings.Contains(err.Error(), "auth login") {
				t.Errorf("expected login hint, got %v", err)
			}
		})

		t.Run("with stored session", func(t *testing.T) {
			runner, output := newTestRunner(t, okHandler)
			seedSession(t, runner)

			root := authCommand(runner)
			if err := root.Run(context.Background(), []string{"auth", "whoami"}); err != nil {
				t.Fatalf("expected whoami to succeed, got %v", err)
			}
			if !strings.Contains(output.String(), "ana (u1)") {
				t.Errorf("unexpected output %q", output.String())
			}
		})
	})

	t.Run("Music List Prints Library", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)
		seedSession(t, runner)

		root := musicCommand(runner)
		if err := root.Run(context.Background(), []string{"music", "list"}); err != nil {
			t.Fatalf("expected list to succeed, got %v", err)
		}
		if !strings.Contains(output.String(), "Chuva") {
			t.Errorf("expected library entry in output, got %q", output.String())
		}
	})

	t.Run("Notify List Shows Unread", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)
		seedSession(t, runner)

		root := notifyCommand(runner)
		if err := root.Run(context.Background(), []string{"notify", "list"}); err != nil {
			t.Fatalf("expected list to succeed, got %v", err)
		}
		if !strings.Contains(output.String(), "(1 não lidas)") {
			t.Errorf("expected unread count in output, got %q", output.String())
		}
	})

	t.Run("Notify History Shows Trail", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)
		seedSession(t, runner)

		root := notifyCommand(runner)
		if err := root.Run(context.Background(), []string{"notify", "history"}); err != nil {
			t.Fatalf("expected history to succeed, got %v", err)
		}
		if !strings.Contains(output.String(), "p1 generating/in_progress: Compondo a melodia") {
			t.Errorf("expected history entry in output, got %q", output.String())
		}
	})

	t.Run("Music Download Saves File", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)
		seedSession(t, runner)

		path := filepath.Join(t.TempDir(), "chuva.mp3")
		root := musicCommand(runner)
		if err := root.Run(context.Background(), []string{"music", "download", "--output", path, "m1"}); err != nil {
			t.Fatalf("expected download to succeed, got %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected audio file at %s: %v", path, err)
		}
		if string(data) != "fake-audio" {
			t.Errorf("unexpected file contents %q", data)
		}
		if !strings.Contains(output.String(), "Chuva salvo em") {
			t.Errorf("expected confirmation in output, got %q", output.String())
		}
	})

	t.Run("Music Download Rejects Unknown ID", func(t *testing.T) {
		runner, _ := newTestRunner(t, okHandler)
		seedSession(t, runner)

		root := musicCommand(runner)
		err := root.Run(context.Background(), []string{"music", "download", "missing"})
		if !errors.Is(err, shared.ErrMusicNotFound) {
			t.Errorf("expected ErrMusicNotFound, got %v", err)
		}
	})

	t.Run("Finance Summary Shows Split", func(t *testing.T) {
		runner, output := newTestRunner(t, okHandler)
		seedSession(t, runner)

		root := financeCommand(runner)
		if err := root.Run(context.Background(), []string{"finance", "summary"}); err != nil {
			t.Fatalf("expected summary to succeed, got %v", err)
		}
		for _, want := range []string{"Roland — total R$ 140.00", "Mãe (70%)", "Você (30%)"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %q in output, got %q", want, output.String())
			}
		}
	})

	t.Run("Parse Line Items", func(t *testing.T) {
		items, err := parseLineItems([]string{"mix=100", "master=50.5"})
		if err != nil {
			t.Fatalf("expected parse to succeed, got %v", err)
		}
		if len(items) != 2 || items[1].Value != 50.5 {
			t.Errorf("unexpected items %+v", items)
		}

		if _, err := parseLineItems([]string{"semvalor"}); err == nil {
			t.Error("expected error for missing value")
		}
		if _, err := parseLineItems([]string{"mix=abc"}); err == nil {
			t.Error("expected error for non-numeric value")
		}
	})
}

func seedSession(t *testing.T, runner *Runner) {
	t.Helper()
	if err := runner.store.Save("abc", models.User{ID: "u1", Username: "ana"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}
