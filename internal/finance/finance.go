// Package finance implements the bookkeeping panel: machine line items, net
// totals, and the fixed 70/30 profit split, with debounced persistence so
// rapid edits collapse into one save.
package finance

import (
	"context"
	"sync"
	"time"

	"github.com/alquimista/studio/internal/models"
	"github.com/charmbracelet/log"
)

// Profit split between the studio owner and the partner. The split is a
// business constant, not configuration.
const (
	motherShare  = 0.7
	partnerShare = 0.3
)

// defaultDebounce is how long the ledger waits after the last edit before
// persisting staged changes.
const defaultDebounce = time.Second

// MachineTotal is the net value of one machine: everything charged for
// services plus labor, minus what was spent on parts.
func MachineTotal(m models.Machine) float64 {
	var total float64
	for _, s := range m.Services {
		total += s.Value
	}
	total += m.Labor
	for _, e := range m.Expenses {
		total -= e.Value
	}
	return total
}

// Totals aggregates every machine into the panel's summary row.
type Totals struct {
	Revenue      float64
	Expenses     float64
	Labor        float64
	Profit       float64
	MotherShare  float64
	PartnerShare float64
}

// GlobalTotals sums all machines and splits the profit. The partner share is
// computed as the remainder so the two shares always sum exactly to the
// profit, with no float drift.
func GlobalTotals(machines []models.Machine) Totals {
	var t Totals
	for _, m := range machines {
		for _, s := range m.Services {
			t.Revenue += s.Value
		}
		for _, e := range m.Expenses {
			t.Expenses += e.Value
		}
		t.Labor += m.Labor
	}
	t.Profit = t.Revenue + t.Labor - t.Expenses
	t.MotherShare = t.Profit * motherShare
	t.PartnerShare = t.Profit - t.MotherShare
	return t
}

// Store is the persistence surface the ledger writes through; api.Client
// satisfies it.
type Store interface {
	Machines(ctx context.Context) ([]models.Machine, error)
	CreateMachine(ctx context.Context, m models.Machine) (*models.Machine, error)
	UpdateMachine(ctx context.Context, m models.Machine) error
	DeleteMachine(ctx context.Context, id string) error
}

// Ledger is the in-memory machine collection with optimistic edits. Staged
// updates persist after a quiet period rather than per keystroke; Flush
// forces them through immediately.
type Ledger struct {
	store    Store
	logger   *log.Logger
	debounce time.Duration

	mu       sync.Mutex
	machines []models.Machine
	dirty    map[string]bool
	timer    *time.Timer
	onChange func()
}

// NewLedger builds a ledger over a store. debounce <= 0 uses the default
// one-second quiet period.
func NewLedger(store Store, debounce time.Duration, logger *log.Logger) *Ledger {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Ledger{
		store:    store,
		logger:   logger,
		debounce: debounce,
		dirty:    make(map[string]bool),
	}
}

// OnChange registers a callback invoked after the collection changes.
func (l *Ledger) OnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

func (l *Ledger) notify() {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Load replaces the collection with the backend's view.
func (l *Ledger) Load(ctx context.Context) error {
	machines, err := l.store.Machines(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.machines = machines
	l.dirty = make(map[string]bool)
	l.mu.Unlock()
	l.notify()
	return nil
}

// Create persists a new machine immediately (the server assigns its id) and
// appends it to the collection.
func (l *Ledger) Create(ctx context.Context, m models.Machine) (*models.Machine, error) {
	created, err := l.store.CreateMachine(ctx, m)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.machines = append(l.machines, *created)
	l.mu.Unlock()
	l.notify()
	return created, nil
}

// Stage applies an edit optimistically and schedules a debounced save. The
// panel stays responsive while the user is still typing values.
func (l *Ledger) Stage(m models.Machine) {
	l.mu.Lock()
	for i := range l.machines {
		if l.machines[i].ID == m.ID {
			l.machines[i] = m
			break
		}
	}
	l.dirty[m.ID] = true
	l.armLocked()
	l.mu.Unlock()
	l.notify()
}

// Remove deletes a machine optimistically and on the backend.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	if err := l.store.DeleteMachine(ctx, id); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.dirty, id)
	kept := l.machines[:0]
	for _, m := range l.machines {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	l.machines = kept
	l.mu.Unlock()
	l.notify()
	return nil
}

func (l *Ledger) armLocked() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, func() {
		if err := l.Flush(context.Background()); err != nil {
			l.logger.Error("debounced machine save failed", "error", err)
		}
	})
}

// Flush persists every staged edit now and cancels the pending debounce.
// A machine whose save fails stays dirty for the next attempt.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	var pending []models.Machine
	for _, m := range l.machines {
		if l.dirty[m.ID] {
			pending = append(pending, m)
		}
	}
	l.mu.Unlock()

	var firstErr error
	for _, m := range pending {
		if err := l.store.UpdateMachine(ctx, m); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			l.logger.Warn("machine save failed", "machine", m.ID, "error", err)
			continue
		}
		l.mu.Lock()
		delete(l.dirty, m.ID)
		l.mu.Unlock()
	}
	return firstErr
}

// Snapshot returns a copy of the current collection.
func (l *Ledger) Snapshot() []models.Machine {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Machine, len(l.machines))
	copy(out, l.machines)
	return out
}

// Totals computes the summary row for the current collection.
func (l *Ledger) Totals() Totals {
	return GlobalTotals(l.Snapshot())
}
