package models

// User represents the authenticated identity returned by the profile endpoint.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Music represents one generated (or in-flight) track in the user's library.
type Music struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	MusicName string  `json:"music_name"`
	MusicURL  string  `json:"music_url,omitempty"`
	Status    string  `json:"status"` // requested, in_progress, completed, failed
	Genre     string  `json:"genre,omitempty"`
	CreatedAt float64 `json:"created_at,omitempty"` // unix seconds, as the backend emits it
}

// Notification is one entry of the user's notification feed.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"` // info, success, warning, error
	Read      bool           `json:"read"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProcessRecord is one step of a generation's audit trail, newest first.
type ProcessRecord struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	ProcessID string  `json:"process_id"`
	Step      string  `json:"step"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// GenerationRequest is the multipart form submitted to start a generation.
type GenerationRequest struct {
	Description string
	MusicName   string
	VoiceType   string
	Lyrics      string
	Genre       string
	Rhythm      string
	Instruments string
	StudioType  string
	VoicePath   string // optional local path to a voice sample
}

// Machine is one entry of the bookkeeping panel: a serviced machine with its
// revenue and expense line items.
type Machine struct {
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name"`
	Services []LineItem `json:"services"`
	Expenses []LineItem `json:"expenses"`
	Labor    float64    `json:"labor"`
}

// LineItem is a named monetary value on a machine (a service performed or a
// part/expense bought).
type LineItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}
