// Package tracker holds the per-request generation state machine: idle →
// submitted → generating → completed/failed. It feeds the progress view and
// raises one-shot alerts on terminal envelopes.
package tracker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alquimista/studio/internal/realtime"
	"github.com/charmbracelet/log"
)

// Phase is the lifecycle position of the current generation request.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitted
	PhaseGenerating
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitted:
		return "submitted"
	case PhaseGenerating:
		return "generating"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return ""
	}
}

func (p Phase) terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Progress is the latest progress snapshot. Each progress envelope replaces
// it wholesale; the backend's percentages are displayed as received, without
// monotonic clamping.
type Progress struct {
	MusicID string  `json:"music_id"`
	Percent float64 `json:"progress"`
	Step    string  `json:"step"`
	Message string  `json:"message"`
}

// AlertKind distinguishes success toasts from failure toasts.
type AlertKind int

const (
	AlertSuccess AlertKind = iota
	AlertError
)

// Alert is a one-shot user-facing notice raised on terminal transitions.
// Callers consume it with [Tracker.TakeAlert].
type Alert struct {
	Kind    AlertKind
	Title   string
	Message string
}

// Snapshot is the tracker state as the view layer reads it. Progress is nil
// outside the generating phase.
type Snapshot struct {
	Phase     Phase
	MusicName string
	Progress  *Progress
}

// Tracker follows one generation request at a time. It is created once per
// authenticated session and rebinds when the identity changes.
type Tracker struct {
	bus    *realtime.Bus
	logger *log.Logger

	// stallAfter bounds how long the generating phase may sit without a
	// progress envelope before the request is declared failed. Zero
	// disables the watchdog.
	stallAfter time.Duration

	mu        sync.Mutex
	userID    string
	phase     Phase
	musicName string
	progress  *Progress
	alert     *Alert
	subs      []*realtime.Subscription
	stall     *time.Timer
	stallGen  int
	onChange  func()
}

// New wires a tracker to the bus. stallAfter of zero disables the stalled
// generation watchdog.
func New(bus *realtime.Bus, stallAfter time.Duration, logger *log.Logger) *Tracker {
	return &Tracker{bus: bus, stallAfter: stallAfter, logger: logger}
}

// OnChange registers a callback invoked after every state transition.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) notify() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Bind scopes the tracker to an identity and subscribes to the generation
// event stream. A previous binding is torn down first.
func (t *Tracker) Bind(userID string) {
	t.mu.Lock()
	t.teardownLocked()
	t.userID = userID
	t.phase = PhaseIdle
	t.musicName = ""
	t.progress = nil
	t.alert = nil
	if userID != "" {
		t.subs = []*realtime.Subscription{
			t.bus.Subscribe(realtime.EventMusicProgress, t.handleProgress),
			t.bus.Subscribe(realtime.EventMusicCompleted, t.handleCompleted),
			t.bus.Subscribe(realtime.EventMusicFailed, t.handleFailed),
			t.bus.Subscribe(realtime.EventMusicError, t.handleFailed),
		}
	}
	t.mu.Unlock()
	t.notify()
}

// Release drops the binding and all subscriptions, used on logout.
func (t *Tracker) Release() {
	t.mu.Lock()
	t.teardownLocked()
	t.userID = ""
	t.phase = PhaseIdle
	t.musicName = ""
	t.progress = nil
	t.alert = nil
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) teardownLocked() {
	for _, sub := range t.subs {
		sub.Cancel()
	}
	t.subs = nil
	t.stopStallLocked()
}

// Submitted records that a generation request was dispatched. The view shows
// "generating" immediately, before any server progress arrives, and a prior
// terminal state is cleared so a new request can be followed.
func (t *Tracker) Submitted(musicName string) {
	t.mu.Lock()
	t.phase = PhaseSubmitted
	t.musicName = musicName
	t.progress = nil
	t.armStallLocked()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) handleProgress(data json.RawMessage) {
	if t.foreign(data) {
		return
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		t.logger.Warn("unreadable progress payload", "error", err)
		return
	}

	t.mu.Lock()
	if t.phase.terminal() {
		// Stray progress after a terminal envelope never reopens the
		// view; the state stays where the terminal event left it.
		t.mu.Unlock()
		t.logger.Debug("dropping progress after terminal state", "music_id", p.MusicID)
		return
	}
	t.phase = PhaseGenerating
	t.progress = &p
	t.armStallLocked()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) handleCompleted(data json.RawMessage) {
	if t.foreign(data) {
		return
	}
	var payload struct {
		MusicID   string `json:"music_id"`
		MusicName string `json:"music_name"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Warn("unreadable completion payload", "error", err)
		return
	}
	name := payload.MusicName
	if name == "" {
		name = t.currentName()
	}

	t.mu.Lock()
	t.phase = PhaseCompleted
	t.progress = nil
	t.stopStallLocked()
	t.alert = &Alert{
		Kind:    AlertSuccess,
		Title:   "Música pronta",
		Message: fmt.Sprintf("%s está pronta para ouvir.", name),
	}
	t.mu.Unlock()
	t.logger.Info("generation completed", "music", name)
	t.notify()
}

func (t *Tracker) handleFailed(data json.RawMessage) {
	if t.foreign(data) {
		return
	}
	var payload struct {
		MusicID string `json:"music_id"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.logger.Warn("unreadable failure payload", "error", err)
		return
	}
	reason := payload.Error
	if reason == "" {
		reason = payload.Message
	}
	if reason == "" {
		reason = "a geração falhou"
	}

	t.failWith(reason)
}

func (t *Tracker) failWith(reason string) {
	t.mu.Lock()
	t.phase = PhaseFailed
	t.progress = nil
	t.stopStallLocked()
	t.alert = &Alert{Kind: AlertError, Title: "Falha na geração", Message: reason}
	t.mu.Unlock()
	t.logger.Warn("generation failed", "reason", reason)
	t.notify()
}

// foreign reports whether a payload belongs to another identity. Payloads
// without a user_id field (progress envelopes) pass through, since the
// backend already scopes them via the join message.
func (t *Tracker) foreign(data json.RawMessage) bool {
	owner := realtime.OwnerOf(data)
	if owner == "" {
		return false
	}
	t.mu.Lock()
	mine := t.userID
	t.mu.Unlock()
	return mine != "" && owner != mine
}

func (t *Tracker) currentName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.musicName
}

// armStallLocked (re)starts the watchdog for the current request. Every
// progress envelope pushes the deadline out again, so only a genuinely
// silent backend trips it.
func (t *Tracker) armStallLocked() {
	t.stopStallLocked()
	if t.stallAfter <= 0 {
		return
	}
	t.stallGen++
	gen := t.stallGen
	t.stall = time.AfterFunc(t.stallAfter, func() { t.stalled(gen) })
}

func (t *Tracker) stopStallLocked() {
	if t.stall != nil {
		t.stall.Stop()
		t.stall = nil
	}
	t.stallGen++
}

func (t *Tracker) stalled(gen int) {
	t.mu.Lock()
	if gen != t.stallGen || t.phase.terminal() || t.phase == PhaseIdle {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.failWith(fmt.Sprintf("sem progresso há %s, a geração foi abandonada", t.stallAfter))
}

// TakeAlert returns the pending one-shot alert, if any, and clears it so the
// same toast is never shown twice.
func (t *Tracker) TakeAlert() *Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.alert
	t.alert = nil
	return a
}

// Snapshot returns the current view state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	var p *Progress
	if t.progress != nil {
		cp := *t.progress
		p = &cp
	}
	return Snapshot{Phase: t.phase, MusicName: t.musicName, Progress: p}
}
