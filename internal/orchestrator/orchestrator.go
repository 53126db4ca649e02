// Package orchestrator runs the control loop that ties the status file, the
// game process monitor and the Discord session together.
//
// The loop moves through four phases:
//
//	AwaitingFile -> Running -> ShuttingDown -> Terminated
//
// All state lives on the goroutine that calls [Orchestrator.Run]. The file
// watcher only wakes the loop through its event channel, and cancellation
// arrives through the context, so nothing here needs a lock.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"tools.zach/dev/tekkencord/internal/game"
	"tools.zach/dev/tekkencord/internal/presence"
	"tools.zach/dev/tekkencord/internal/procmon"
	"tools.zach/dev/tekkencord/internal/status"
)

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// StateSource reads the status file. [*status.Source] satisfies it.
type StateSource interface {
	Path() string
	Read() status.Reading
	Exists() bool
	Remove() error
}

// ProcessMonitor reports whether the game is running. [*procmon.Monitor]
// satisfies it.
type ProcessMonitor interface {
	IsRunning(ctx context.Context) procmon.Status
}

// Mapper turns a game state into presence. [*presence.Mapper] satisfies it.
type Mapper interface {
	Map(s game.GameState) presence.Descriptor
}

// Connector drives the Discord session. [*presence.Connector] satisfies it.
type Connector interface {
	State() presence.ConnectionState
	Connect() error
	Push(d presence.Descriptor) error
	Clear()
	Close()
}

// Watcher delivers advisory change notifications for the status file.
// [*status.Watcher] satisfies it.
type Watcher interface {
	Events() <-chan struct{}
	Close() error
}

// ///////////////////////////////////////////////
// Phases and reasons
// ///////////////////////////////////////////////

// Phase is the loop's position in its lifecycle.
type Phase int

const (
	AwaitingFile Phase = iota
	Running
	ShuttingDown
	Terminated
)

func (p Phase) String() string {
	switch p {
	case AwaitingFile:
		return "awaiting_file"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reason records why the loop stopped.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonCancelled means the context was cancelled, usually by a signal.
	ReasonCancelled
	// ReasonTerminal means the mod reported game_mode "game_closed".
	ReasonTerminal
	// ReasonGameExited means the game process disappeared.
	ReasonGameExited
	// ReasonPanic means an iteration panicked.
	ReasonPanic
)

func (r Reason) String() string {
	switch r {
	case ReasonCancelled:
		return "cancelled"
	case ReasonTerminal:
		return "game_closed"
	case ReasonGameExited:
		return "game_exited"
	case ReasonPanic:
		return "panic"
	default:
		return "none"
	}
}

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Options tunes the loop cadence and thresholds. Zero fields take the value
// from [DefaultOptions].
type Options struct {
	// PollInterval is the sleep between Running iterations.
	PollInterval time.Duration
	// ConnectBackoff is the sleep after a failed connection attempt.
	ConnectBackoff time.Duration
	// AwaitInterval is the existence check cadence while awaiting the file.
	AwaitInterval time.Duration
	// ProcessCheckEvery queries the process monitor every Nth iteration.
	ProcessCheckEvery int
	// EmptyNotice is the number of consecutive empty reads that logs a notice.
	EmptyNotice int
	// EmptyRecheck is the number of consecutive empty reads that triggers an
	// out-of-band process check.
	EmptyRecheck int
	// EmptyPlateau is where the empty counter is held after a recheck that
	// found the game alive. It must be below EmptyRecheck.
	EmptyPlateau int
	// ExitCountdown is the number of countdown ticks after the game exits.
	ExitCountdown int
	// CountdownTick is the length of one countdown tick.
	CountdownTick time.Duration
}

// DefaultOptions returns the stock cadence: 2s polls, 5s connect backoff and
// a process check every third iteration.
func DefaultOptions() Options {
	return Options{
		PollInterval:      2 * time.Second,
		ConnectBackoff:    5 * time.Second,
		AwaitInterval:     time.Second,
		ProcessCheckEvery: 3,
		EmptyNotice:       10,
		EmptyRecheck:      30,
		EmptyPlateau:      25,
		ExitCountdown:     3,
		CountdownTick:     time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ConnectBackoff <= 0 {
		o.ConnectBackoff = d.ConnectBackoff
	}
	if o.AwaitInterval <= 0 {
		o.AwaitInterval = d.AwaitInterval
	}
	if o.ProcessCheckEvery <= 0 {
		o.ProcessCheckEvery = d.ProcessCheckEvery
	}
	if o.EmptyNotice <= 0 {
		o.EmptyNotice = d.EmptyNotice
	}
	if o.EmptyRecheck <= 0 {
		o.EmptyRecheck = d.EmptyRecheck
	}
	if o.EmptyPlateau <= 0 || o.EmptyPlateau >= o.EmptyRecheck {
		o.EmptyPlateau = o.EmptyRecheck - 1
	}
	if o.ExitCountdown < 0 {
		o.ExitCountdown = 0
	}
	if o.CountdownTick <= 0 {
		o.CountdownTick = d.CountdownTick
	}
	return o
}

// ///////////////////////////////////////////////
// Orchestrator
// ///////////////////////////////////////////////

// State is the loop's mutable bookkeeping.
type State struct {
	// LastApplied is the last state successfully pushed, or nil.
	LastApplied *game.GameState
	// ConsecutiveEmptyReads counts reads in a row that returned nothing.
	ConsecutiveEmptyReads int
	// ShutdownRequested is set once any shutdown trigger has fired.
	ShutdownRequested bool
}

// Orchestrator owns one run of the control loop. Create it with [New] and
// call [Orchestrator.Run] once.
type Orchestrator struct {
	source    StateSource
	monitor   ProcessMonitor
	mapper    Mapper
	connector Connector
	watcher   Watcher
	opts      Options

	state     State
	phase     Phase
	reason    Reason
	iteration int
	cleaned   bool
}

// New wires an orchestrator. watcher may be nil, in which case the loop
// relies on its timers alone.
func New(source StateSource, monitor ProcessMonitor, mapper Mapper, connector Connector, watcher Watcher, opts Options) *Orchestrator {
	return &Orchestrator{
		source:    source,
		monitor:   monitor,
		mapper:    mapper,
		connector: connector,
		watcher:   watcher,
		opts:      opts.withDefaults(),
	}
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Reason returns why the loop stopped, or ReasonNone while it runs.
func (o *Orchestrator) Reason() Reason { return o.reason }

// State returns a copy of the loop state.
func (o *Orchestrator) State() State {
	s := o.state
	if s.LastApplied != nil {
		applied := *s.LastApplied
		s.LastApplied = &applied
	}
	return s
}

// Run drives the loop until a shutdown trigger fires, then clears the
// presence and releases the session. The cleanup runs even if an iteration
// panics; the panic is returned as an error.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator panic", "panic", r, "stack", string(debug.Stack()))
			o.reason = ReasonPanic
			o.state.ShutdownRequested = true
			o.shutdown()
			err = fmt.Errorf("orchestrator panic: %v", r)
		}
	}()

	o.setPhase(AwaitingFile)
	if o.awaitFile(ctx) {
		o.setPhase(Running)
		slog.Info("starting Discord presence monitoring", "path", o.source.Path())
		for o.iterate(ctx) {
		}
	}
	o.shutdown()
	return nil
}

// awaitFile blocks until the status file exists. It returns false if ctx
// was cancelled first.
func (o *Orchestrator) awaitFile(ctx context.Context) bool {
	if o.source.Exists() {
		return true
	}

	slog.Info("waiting for status file to be created", "path", o.source.Path())
	for {
		if o.cancelled(ctx) {
			return false
		}
		if o.source.Exists() {
			slog.Info("status file detected", "path", o.source.Path())
			return true
		}
		if !o.sleep(ctx, o.opts.AwaitInterval, true) {
			return false
		}
	}
}

// iterate runs one Running iteration and reports whether the loop should
// continue.
func (o *Orchestrator) iterate(ctx context.Context) bool {
	if o.cancelled(ctx) || o.state.ShutdownRequested {
		return false
	}

	if o.connector.State() != presence.Connected {
		if err := o.connector.Connect(); err != nil {
			return o.sleep(ctx, o.opts.ConnectBackoff, false)
		}
	}

	o.iteration++
	if o.iteration%o.opts.ProcessCheckEvery == 0 && o.state.LastApplied != nil {
		if o.monitor.IsRunning(ctx) == procmon.NotRunning {
			o.exitGame(ctx)
			return false
		}
	}

	reading := o.source.Read()
	switch reading.Kind {
	case status.Terminal:
		slog.Info("game closed detected")
		o.requestShutdown(ReasonTerminal)
		return false

	case status.Empty:
		o.state.ConsecutiveEmptyReads++
		n := o.state.ConsecutiveEmptyReads
		if n == o.opts.EmptyNotice {
			slog.Info("no game data", "polls", n, "elapsed", time.Duration(n)*o.opts.PollInterval)
		}
		if n >= o.opts.EmptyRecheck {
			slog.Info("long period without data, checking if game is still running", "polls", n)
			// Without an applied state there is nothing to tear down.
			if o.state.LastApplied != nil && o.monitor.IsRunning(ctx) == procmon.NotRunning {
				o.exitGame(ctx)
				return false
			}
			o.state.ConsecutiveEmptyReads = o.opts.EmptyPlateau
		}

	case status.Snapshot:
		o.state.ConsecutiveEmptyReads = 0
		if o.state.LastApplied == nil || !o.state.LastApplied.Equal(reading.State) {
			o.apply(reading.State)
		}
	}

	return o.sleep(ctx, o.opts.PollInterval, true)
}

// apply pushes s and records it on success. A failed push leaves
// LastApplied alone so the state is retried.
func (o *Orchestrator) apply(s game.GameState) {
	d := o.mapper.Map(s)
	if err := o.connector.Push(d); err != nil {
		slog.Debug("presence not applied", "state", s.String(), "error", err)
		return
	}
	o.state.LastApplied = &s
}

// exitGame runs the game-exit sequence: clear the presence, delete the
// status file, forget the last state and count down.
func (o *Orchestrator) exitGame(ctx context.Context) {
	slog.Info("game process not detected, clearing Discord presence")
	o.connector.Clear()

	existed := o.source.Exists()
	if err := o.source.Remove(); err != nil {
		slog.Debug("deleting status file failed", "path", o.source.Path(), "error", err)
	} else if existed {
		slog.Info("deleted status file", "path", o.source.Path())
	}

	o.state.LastApplied = nil
	o.state.ConsecutiveEmptyReads = 0
	o.requestShutdown(ReasonGameExited)
	o.countdown(ctx)
}

// countdown logs the exit countdown. Cancellation cuts it short.
func (o *Orchestrator) countdown(ctx context.Context) {
	if o.opts.ExitCountdown == 0 {
		return
	}
	slog.Info(fmt.Sprintf("Shutting down in %d seconds...", o.opts.ExitCountdown))
	for i := o.opts.ExitCountdown; i > 0; i-- {
		slog.Info(fmt.Sprintf("%d...", i))
		if !o.sleep(ctx, o.opts.CountdownTick, false) {
			break
		}
	}
	slog.Info("Goodbye!")
}

// shutdown stops the watcher and tears the session down. It runs at most
// once.
func (o *Orchestrator) shutdown() {
	if o.cleaned {
		return
	}
	o.cleaned = true
	o.setPhase(ShuttingDown)

	if o.watcher != nil {
		if err := o.watcher.Close(); err != nil {
			slog.Debug("closing watcher failed", "error", err)
		}
	}
	o.connector.Close()
	slog.Info("Discord presence disconnected", "reason", o.reason.String())

	o.setPhase(Terminated)
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// cancelled reports whether ctx is done, recording the shutdown request the
// first time it is seen.
func (o *Orchestrator) cancelled(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	if !o.state.ShutdownRequested {
		slog.Info("shutdown signal received")
		o.requestShutdown(ReasonCancelled)
	}
	return true
}

func (o *Orchestrator) requestShutdown(r Reason) {
	o.state.ShutdownRequested = true
	if o.reason == ReasonNone {
		o.reason = r
	}
}

// sleep waits for d, returning false if ctx is cancelled first. When
// wakeable is set a watcher event ends the wait early.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration, wakeable bool) bool {
	if o.cancelled(ctx) {
		return false
	}

	var wake <-chan struct{}
	if wakeable && o.watcher != nil {
		wake = o.watcher.Events()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return !o.cancelled(ctx)
	case <-t.C:
		return true
	case <-wake:
		return true
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	if o.phase != p {
		slog.Debug("orchestrator phase", "from", o.phase.String(), "to", p.String())
	}
	o.phase = p
}
