// Package session owns the authenticated-session lifecycle. It logs in or
// resumes a saved credential, then brings up the realtime connection and the
// derived views in one place, and tears everything down again on logout.
package session

import (
	"context"
	"sync"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/feed"
	"github.com/alquimista/studio/internal/library"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/tracker"
	"github.com/charmbracelet/log"
)

// Manager coordinates the session-scoped services. All of them are
// constructed once at startup; the manager only switches them between bound
// and released as the user signs in and out.
type Manager struct {
	api     *api.Client
	conn    *realtime.Conn
	store   *Store
	library *library.Manager
	feed    *feed.Feed
	tracker *tracker.Tracker
	logger  *log.Logger

	mu   sync.Mutex
	user *models.User
}

// NewManager wires the session-scoped services together.
func NewManager(client *api.Client, conn *realtime.Conn, store *Store, lib *library.Manager, fd *feed.Feed, tr *tracker.Tracker, logger *log.Logger) *Manager {
	return &Manager{
		api:     client,
		conn:    conn,
		store:   store,
		library: lib,
		feed:    fd,
		tracker: tr,
		logger:  logger,
	}
}

// Current returns the signed-in user, if any.
func (m *Manager) Current() (*models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, false
	}
	u := *m.user
	return &u, true
}

// Login authenticates against the backend, persists the session, and brings
// the realtime services online.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, token, err := m.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(token, *user); err != nil {
		m.logger.Warn("session not persisted, login will not survive restart", "error", err)
	}
	if err := m.activate(ctx, user, token); err != nil {
		return nil, err
	}
	return user, nil
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, username, password, confirm string) (*models.User, error) {
	user, token, err := m.api.Register(ctx, username, password, confirm)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(token, *user); err != nil {
		m.logger.Warn("session not persisted, login will not survive restart", "error", err)
	}
	if err := m.activate(ctx, user, token); err != nil {
		return nil, err
	}
	return user, nil
}

// Resume revalidates a previously saved credential against /api/profile and,
// when the backend still accepts it, comes online without a password prompt.
// A rejected credential is cleared from the store so the next start goes
// straight to login.
func (m *Manager) Resume(ctx context.Context) (*models.User, bool, error) {
	token, _, ok, err := m.store.Load()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	m.api.SetToken(token)
	user, err := m.api.Profile(ctx)
	if err != nil {
		m.api.SetToken("")
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Warn("failed to clear rejected session", "error", clearErr)
		}
		return nil, false, err
	}

	if err := m.activate(ctx, user, token); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Logout tears the session down: realtime connection, derived views, stored
// credential.
func (m *Manager) Logout(ctx context.Context) error {
	m.conn.Disconnect()
	m.tracker.Release()
	m.feed.Deactivate()
	m.library.SetIdentity(ctx, "", "")
	m.api.SetToken("")

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return err
	}
	m.logger.Info("signed out")
	return nil
}

// activate brings every session-scoped service online for one identity. The
// realtime connect is attempted but not required: REST keeps working while
// the channel reconnects in the background.
func (m *Manager) activate(ctx context.Context, user *models.User, token string) error {
	m.api.SetToken(token)

	if err := m.conn.Connect(ctx, token, user.ID); err != nil {
		m.logger.Warn("realtime channel unavailable, continuing with REST only", "error", err)
	}

	m.tracker.Bind(user.ID)
	m.library.SetIdentity(ctx, user.ID, token)
	m.feed.Activate(ctx)

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	m.logger.Info("signed in", "user", user.Username)
	return nil
}
