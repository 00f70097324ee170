package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/feed"
	"github.com/alquimista/studio/internal/finance"
	"github.com/alquimista/studio/internal/library"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/session"
	"github.com/alquimista/studio/internal/shared"
	"github.com/alquimista/studio/internal/tracker"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	client  *api.Client
	bus     *realtime.Bus
	conn    *realtime.Conn
	library *library.Manager
	feed    *feed.Feed
	tracker *tracker.Tracker
	ledger  *finance.Ledger
	session *session.Manager
	store   *session.Store
	logger  *log.Logger
	output  io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Store      *session.Store
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner wires the full client stack: REST client, realtime connection,
// derived resources, bookkeeping ledger, and the session manager that owns
// their lifecycle.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	client := api.NewClient(opts.Config.Server.BaseURL, opts.HTTPClient, opts.Config.Server.RateLimit, opts.Logger)
	bus := realtime.NewBus(opts.Logger)
	conn := realtime.NewConn(opts.Config.Server.SocketURL, bus, opts.Logger)

	lib := library.NewManager(client.ListUserMusic, bus, opts.Logger)
	fd := feed.New(client.Notifications, client.MarkNotificationRead, bus, opts.Logger)

	stall := time.Duration(opts.Config.Studio.StallTimeoutMinutes) * time.Minute
	tr := tracker.New(bus, stall, opts.Logger)

	ledger := finance.NewLedger(client, 0, opts.Logger)
	sess := session.NewManager(client, conn, opts.Store, lib, fd, tr, opts.Logger)

	return &Runner{
		config:  opts.Config,
		client:  client,
		bus:     bus,
		conn:    conn,
		library: lib,
		feed:    fd,
		tracker: tr,
		ledger:  ledger,
		session: sess,
		store:   opts.Store,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

// SetLogger swaps the runner's logger, used when the TUI redirects logs to a file.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, musicCommand, notifyCommand, financeCommand, studioCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
