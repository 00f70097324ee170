package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alquimista/studio/internal/models"
)

// Store persists the single local session (credential plus user identity) in
// sqlite so the client reconnects without asking for the password again.
type Store struct {
	db *sql.DB
}

// NewStore creates a session store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the session table. The CHECK keeps the table single-row: this
// client holds at most one session at a time.
func (s *Store) Init() error {
	query := `
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			token TEXT NOT NULL,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			display_name TEXT NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}
	return nil
}

// Save replaces the stored session.
func (s *Store) Save(token string, user models.User) error {
	query := `
		INSERT INTO session (id, token, user_id, username, display_name, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			username = excluded.username,
			display_name = excluded.display_name,
			saved_at = excluded.saved_at
	`
	_, err := s.db.Exec(query, token, user.ID, user.Username, user.DisplayName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the stored session, or ok == false when none exists.
func (s *Store) Load() (token string, user models.User, ok bool, err error) {
	query := `SELECT token, user_id, username, display_name FROM session WHERE id = 1`

	err = s.db.QueryRow(query).Scan(&token, &user.ID, &user.Username, &user.DisplayName)
	if err == sql.ErrNoRows {
		return "", models.User{}, false, nil
	}
	if err != nil {
		return "", models.User{}, false, fmt.Errorf("failed to load session: %w", err)
	}
	return token, user, true, nil
}

// Clear forgets the stored session.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
