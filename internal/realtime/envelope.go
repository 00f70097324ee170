package realtime

import "encoding/json"

// Event names pushed by the backend's sync service.
const (
	EventMusicProgress   = "music_progress"
	EventMusicCompleted  = "music_completed"
	EventMusicFailed     = "music_failed"
	EventMusicError      = "music_error" // legacy alias for music_failed
	EventMusicDeleted    = "music_deleted"
	EventMusicRequested  = "music_requested"
	EventNewNotification = "new_notification"

	// Synthetic connection-level events published locally by [Conn].
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// Envelope is the wire-level sync unit: a logical event name plus an opaque
// payload. It is consumed immediately by the bus and never persisted.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// decodeEnvelope parses a raw channel frame. Frames that are not valid JSON
// or carry no event name do not match the envelope shape and are ignored by
// the ingress path (ok == false), not treated as errors.
func decodeEnvelope(raw []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, false
	}
	if env.Event == "" {
		return Envelope{}, false
	}
	return env, true
}

// OwnerID extracts the owning identity key from an envelope payload, used by
// derived resources to filter events scoped to other users. Payloads without
// a user_id field return the empty string.
func (e Envelope) OwnerID() string {
	return OwnerOf(e.Data)
}

// OwnerOf is [Envelope.OwnerID] for bare payloads, as bus handlers see them.
func OwnerOf(data json.RawMessage) string {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.UserID
}
