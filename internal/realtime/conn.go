package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alquimista/studio/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// State is the connection lifecycle state of a [Conn]. Transitions through
// this enum are the only way connection indicators change.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return ""
	}
}

// DialFunc matches [websocket.Dial] and is injectable for tests.
type DialFunc func(ctx context.Context, u string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error)

type joinMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
}

// Conn owns the single persistent channel to the backend: connect, join,
// ingress decode, reconnect on unexpected drops, teardown. It is a thin
// lifecycle wrapper; backoff between redial attempts is delegated to
// go-retry's fibonacci schedule rather than implemented here.
type Conn struct {
	url      string
	bus      *Bus
	logger   *log.Logger
	dial     DialFunc
	clientID string

	mu      sync.Mutex
	ws      *websocket.Conn
	stop    context.CancelFunc
	state   State
	onState func(State)
}

// NewConn creates a disconnected manager that will dial url and feed decoded
// envelopes into bus.
func NewConn(url string, bus *Bus, logger *log.Logger) *Conn {
	return &Conn{
		url:      url,
		bus:      bus,
		logger:   logger,
		dial:     websocket.Dial,
		clientID: shared.GenerateID(),
	}
}

// OnStateChange registers a callback invoked on every state transition.
func (c *Conn) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State reports the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Connect opens the channel authenticated as credential and announces userID
// to the backend. Idempotent: a connect while connected or connecting is a
// no-op. The credential travels in the Authorization header of the dial
// handshake, never in the URL, so it cannot leak into access logs.
//
// A handshake-level rejection (401/403) is terminal for the attempt: state
// becomes [Errored] and no automatic retry happens, distinguishing a bad
// credential from a transient drop.
func (c *Conn) Connect(ctx context.Context, credential, userID string) error {
	if credential == "" {
		return fmt.Errorf("%w: empty credential", shared.ErrMissingCredentials)
	}

	c.mu.Lock()
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(Connecting)

	ws, err := c.handshake(ctx, credential, userID)
	if err != nil {
		c.setState(Errored)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.ws = ws
	c.stop = cancel
	c.mu.Unlock()

	c.setState(Connected)
	c.bus.Dispatch(Envelope{Event: EventConnect})
	go c.run(runCtx, credential, userID)
	return nil
}

// Disconnect tears the channel down and transitions to [Disconnected].
// Idempotent; buffered-but-undelivered frames are dropped, there is no replay
// across reconnects.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	ws := c.ws
	stop := c.stop
	c.ws = nil
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, "client disconnect")
	}

	c.setState(Disconnected)
	if ws != nil {
		c.bus.Dispatch(Envelope{Event: EventDisconnect})
	}
}

// handshake dials the backend and sends the join frame that scopes future
// envelopes to userID. Called once per successful (re)connect.
func (c *Conn) handshake(ctx context.Context, credential, userID string) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + credential}},
	}

	ws, resp, err := c.dial(ctx, c.url, opts)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", shared.ErrHandshakeRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	join := joinMessage{Type: "join", UserID: userID, ClientID: c.clientID}
	if err := wsjson.Write(ctx, ws, join); err != nil {
		ws.Close(websocket.StatusInternalError, "join failed")
		return nil, fmt.Errorf("failed to send join message: %w", err)
	}

	return ws, nil
}

// run owns the read loop and the redial cycle. It exits when the context is
// cancelled (explicit disconnect) or a reconnect attempt is terminally
// rejected.
func (c *Conn) run(ctx context.Context, credential, userID string) {
	for {
		err := c.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		// The handle is dead; clear it so an explicit Disconnect during the
		// redial window does not announce a second disconnect.
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		c.logger.Warn("realtime channel dropped", "err", err)
		c.bus.Dispatch(Envelope{Event: EventDisconnect})
		c.setState(Connecting)

		if err := c.redial(ctx, credential, userID); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("realtime reconnect abandoned", "err", err)
				c.setState(Errored)
			}
			return
		}

		c.setState(Connected)
		c.bus.Dispatch(Envelope{Event: EventConnect})
	}
}

func (c *Conn) redial(ctx context.Context, credential, userID string) error {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewFibonacci(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		ws, err := c.handshake(ctx, credential, userID)
		if err != nil {
			if errors.Is(err, shared.ErrHandshakeRejected) {
				return err
			}
			return retry.RetryableError(err)
		}
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		return nil
	})
}

// readLoop decodes incoming frames and hands matching envelopes to the bus.
// Frames that do not match the envelope shape are ignored. Dispatch happens
// inline, so subscribers see envelopes in wire arrival order.
func (c *Conn) readLoop(ctx context.Context) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return shared.ErrNotConnected
	}

	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		env, ok := decodeEnvelope(raw)
		if !ok {
			continue
		}
		c.bus.Dispatch(env)
	}
}
