package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tools.zach/dev/tekkencord/internal/discord"
	"tools.zach/dev/tekkencord/internal/game"
	"tools.zach/dev/tekkencord/internal/presence"
	"tools.zach/dev/tekkencord/internal/procmon"
	"tools.zach/dev/tekkencord/internal/status"
)

// ///////////////////////////////////////////////
// Fakes
// ///////////////////////////////////////////////

// recorder collects the ordered side effects of a run.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeSource replays readings in order and repeats the last one.
type fakeSource struct {
	rec      *recorder
	readings []status.Reading
	exists   atomic.Bool
	// onRead runs after each read with the 1-based read count.
	onRead func(n int)

	reads   int
	removes int
}

func (f *fakeSource) Path() string { return "tekken8_discord_rpc.json" }

func (f *fakeSource) Read() status.Reading {
	f.reads++
	var r status.Reading
	if len(f.readings) > 0 {
		r = f.readings[0]
		if len(f.readings) > 1 {
			f.readings = f.readings[1:]
		}
	}
	if f.onRead != nil {
		f.onRead(f.reads)
	}
	return r
}

func (f *fakeSource) Exists() bool { return f.exists.Load() }

func (f *fakeSource) Remove() error {
	f.removes++
	f.exists.Store(false)
	f.rec.add("remove")
	return nil
}

// fakeMonitor returns a fixed status.
type fakeMonitor struct {
	status procmon.Status
	calls  int
}

func (f *fakeMonitor) IsRunning(context.Context) procmon.Status {
	f.calls++
	return f.status
}

// fakeMapper renders the state into the details line.
type fakeMapper struct {
	panicOn game.Mode
}

func (f fakeMapper) Map(s game.GameState) presence.Descriptor {
	if f.panicOn != game.ModeUnknown && s.Mode == f.panicOn {
		panic("mapper exploded")
	}
	return presence.Descriptor{Details: s.String()}
}

// fakeConnector models the connector state machine.
type fakeConnector struct {
	rec          *recorder
	failConnects int
	failPushes   int

	state    presence.ConnectionState
	connects int
	pushes   []presence.Descriptor
	clears   int
	closes   int
}

func (f *fakeConnector) State() presence.ConnectionState { return f.state }

func (f *fakeConnector) Connect() error {
	f.connects++
	if f.failConnects > 0 {
		f.failConnects--
		return errors.New("discord not running")
	}
	f.state = presence.Connected
	f.rec.add("connect")
	return nil
}

func (f *fakeConnector) Push(d presence.Descriptor) error {
	if f.state != presence.Connected {
		return discord.ErrNotConnected
	}
	if f.failPushes > 0 {
		f.failPushes--
		f.state = presence.Disconnected
		return errors.New("broken pipe")
	}
	f.pushes = append(f.pushes, d)
	f.rec.add("push")
	return nil
}

func (f *fakeConnector) Clear() {
	if f.state != presence.Connected {
		return
	}
	f.clears++
	f.rec.add("clear")
}

func (f *fakeConnector) Close() {
	f.Clear()
	f.closes++
	f.state = presence.Disconnected
	f.rec.add("close")
}

// fakeWatcher exposes a channel the test can signal.
type fakeWatcher struct {
	events chan struct{}
	closed atomic.Bool
}

func (f *fakeWatcher) Events() <-chan struct{} { return f.events }

func (f *fakeWatcher) Close() error {
	f.closed.Store(true)
	return nil
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// fastOptions shrinks every wait so a run takes milliseconds.
func fastOptions() Options {
	return Options{
		PollInterval:      time.Millisecond,
		ConnectBackoff:    time.Millisecond,
		AwaitInterval:     time.Millisecond,
		ProcessCheckEvery: 3,
		EmptyNotice:       10,
		EmptyRecheck:      30,
		EmptyPlateau:      25,
		ExitCountdown:     3,
		CountdownTick:     time.Millisecond,
	}
}

type harness struct {
	rec       *recorder
	source    *fakeSource
	monitor   *fakeMonitor
	connector *fakeConnector
}

func newHarness(readings ...status.Reading) *harness {
	rec := &recorder{}
	h := &harness{
		rec:       rec,
		source:    &fakeSource{rec: rec, readings: readings},
		monitor:   &fakeMonitor{status: procmon.Running},
		connector: &fakeConnector{rec: rec},
	}
	h.source.exists.Store(true)
	return h
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	return New(h.source, h.monitor, fakeMapper{}, h.connector, nil, opts)
}

// runWithTimeout runs o and fails the test if it does not finish.
func runWithTimeout(t *testing.T, ctx context.Context, o *Orchestrator) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func snapshot(mode game.Mode, p1, p2 string) status.Reading {
	return status.Reading{Kind: status.Snapshot, State: game.GameState{
		Mode:        mode,
		P1Character: p1,
		P2Character: p2,
		ObservedAt:  time.Unix(1700000000, 0),
	}}
}

var (
	terminal = status.Reading{Kind: status.Terminal}
	empty    = status.Reading{Kind: status.Empty}
)

// ///////////////////////////////////////////////
// Change detection
// ///////////////////////////////////////////////

func TestRunPushesOnlyChanges(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	result := snapshot(game.ModeResult, "Jin", "Kazuya")
	h := newHarness(battle, battle, battle, result, result, battle, terminal)

	o := h.orchestrator(fastOptions())
	if err := runWithTimeout(t, context.Background(), o); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := len(h.connector.pushes); got != 3 {
		t.Fatalf("pushes = %d, want 3 (one per distinct consecutive state)", got)
	}
	want := []string{"battle(Jin vs Kazuya)", "result(Jin vs Kazuya)", "battle(Jin vs Kazuya)"}
	for i, d := range h.connector.pushes {
		if d.Details != want[i] {
			t.Errorf("push %d = %q, want %q", i, d.Details, want[i])
		}
	}
}

func TestRunEmptyReadKeepsLastApplied(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "")
	h := newHarness(battle, empty, battle, terminal)

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, context.Background(), o)

	if got := len(h.connector.pushes); got != 1 {
		t.Errorf("pushes = %d, want 1", got)
	}
}

func TestRunPushFailureRetries(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle, battle, battle, terminal)
	h.connector.failPushes = 1

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, context.Background(), o)

	if got := len(h.connector.pushes); got != 1 {
		t.Fatalf("successful pushes = %d, want 1", got)
	}
	if h.connector.connects != 2 {
		t.Errorf("connects = %d, want 2 (initial and after push failure)", h.connector.connects)
	}
}

// ///////////////////////////////////////////////
// Shutdown triggers
// ///////////////////////////////////////////////

func TestRunTerminal(t *testing.T) {
	h := newHarness(snapshot(game.ModeMenu, "", ""), terminal)

	o := h.orchestrator(fastOptions())
	if err := runWithTimeout(t, context.Background(), o); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if o.Reason() != ReasonTerminal {
		t.Errorf("Reason() = %v, want %v", o.Reason(), ReasonTerminal)
	}
	if o.Phase() != Terminated {
		t.Errorf("Phase() = %v, want terminated", o.Phase())
	}
	if h.connector.clears != 1 || h.connector.closes != 1 {
		t.Errorf("clears/closes = %d/%d, want 1/1", h.connector.clears, h.connector.closes)
	}
	if h.source.removes != 0 {
		t.Error("status file removed on terminal state")
	}
	if h.source.reads != 2 {
		t.Errorf("reads = %d, want 2 (terminal stops within one poll)", h.source.reads)
	}
}

func TestRunGameExitSequence(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle)
	h.monitor.status = procmon.NotRunning

	o := h.orchestrator(fastOptions())
	if err := runWithTimeout(t, context.Background(), o); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Shutdown clears once more before closing.
	want := []string{"connect", "push", "clear", "remove", "clear", "close"}
	got := h.rec.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	if o.Reason() != ReasonGameExited {
		t.Errorf("Reason() = %v, want game_exited", o.Reason())
	}
	if o.State().LastApplied != nil {
		t.Error("LastApplied not reset after game exit")
	}
	// First check happens on iteration 3; iterations 1 and 2 read.
	if h.source.reads != 2 {
		t.Errorf("reads = %d, want 2", h.source.reads)
	}
}

func TestRunGameExitDeletesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tekken8_discord_rpc.json")
	content := `{"game_mode":"battle","p1_character":"Jin","p2_character":"Kazuya","timestamp":1700000000}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	conn := &fakeConnector{rec: rec}
	monitor := &fakeMonitor{status: procmon.NotRunning}
	opts := fastOptions()
	opts.ProcessCheckEvery = 1

	o := New(status.NewSource(path), monitor, fakeMapper{}, conn, nil, opts)
	if err := runWithTimeout(t, context.Background(), o); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("status file still exists after game exit (stat err %v)", err)
	}
	if len(conn.pushes) != 1 || conn.clears < 1 {
		t.Errorf("pushes/clears = %d/%d", len(conn.pushes), conn.clears)
	}
}

func TestRunNoExitBeforeFirstApply(t *testing.T) {
	h := newHarness(empty, empty, empty, empty, empty, empty, terminal)
	h.monitor.status = procmon.NotRunning

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, context.Background(), o)

	if o.Reason() != ReasonTerminal {
		t.Errorf("Reason() = %v, want game_closed", o.Reason())
	}
	if h.monitor.calls != 0 {
		t.Errorf("monitor calls = %d, want 0 while nothing was applied", h.monitor.calls)
	}
}

func TestRunUnknownProcessStatusKeepsRunning(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle, battle, battle, battle, battle, battle, battle, terminal)
	h.monitor.status = procmon.Unknown

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, context.Background(), o)

	if o.Reason() != ReasonTerminal {
		t.Errorf("Reason() = %v, want game_closed", o.Reason())
	}
	if h.monitor.calls == 0 {
		t.Error("monitor was never consulted")
	}
	if h.source.removes != 0 {
		t.Error("status file removed although the process state was unknown")
	}
}

// ///////////////////////////////////////////////
// Empty reads
// ///////////////////////////////////////////////

func TestRunEmptyPlateau(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle, empty)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := fastOptions()
	opts.ProcessCheckEvery = 1000

	var maxEmpty int
	o := h.orchestrator(opts)
	h.source.onRead = func(n int) {
		if c := o.state.ConsecutiveEmptyReads; c > maxEmpty {
			maxEmpty = c
		}
		if n == 41 {
			cancel()
		}
	}

	runWithTimeout(t, ctx, o)

	// Rechecks at empty reads 30, 35 and 40: the counter drops to 25 after each.
	if h.monitor.calls != 3 {
		t.Errorf("monitor calls = %d, want 3", h.monitor.calls)
	}
	if maxEmpty >= 30 {
		t.Errorf("empty counter reached %d before the read, want it held below 30", maxEmpty)
	}
	if got := o.State().ConsecutiveEmptyReads; got != 25 {
		t.Errorf("ConsecutiveEmptyReads = %d, want plateau 25", got)
	}
	if o.Reason() != ReasonCancelled {
		t.Errorf("Reason() = %v, want cancelled", o.Reason())
	}
}

func TestRunEmptyRecheckFindsGameGone(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle, empty)
	h.monitor.status = procmon.NotRunning
	opts := fastOptions()
	opts.ProcessCheckEvery = 1000
	opts.EmptyNotice = 2
	opts.EmptyRecheck = 4
	opts.EmptyPlateau = 3

	o := h.orchestrator(opts)
	runWithTimeout(t, context.Background(), o)

	if o.Reason() != ReasonGameExited {
		t.Errorf("Reason() = %v, want game_exited", o.Reason())
	}
	if h.source.reads != 5 {
		t.Errorf("reads = %d, want 5", h.source.reads)
	}
	if h.source.removes != 1 {
		t.Errorf("removes = %d, want 1", h.source.removes)
	}
	if h.connector.clears == 0 {
		t.Error("presence was never cleared")
	}
}

func TestRunEmptyRecheckWithNothingApplied(t *testing.T) {
	h := newHarness(empty)
	h.monitor.status = procmon.NotRunning
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := fastOptions()
	opts.EmptyNotice = 2
	opts.EmptyRecheck = 4
	opts.EmptyPlateau = 3

	o := h.orchestrator(opts)
	h.source.onRead = func(n int) {
		if n == 12 {
			cancel()
		}
	}
	runWithTimeout(t, ctx, o)

	if o.Reason() != ReasonCancelled {
		t.Errorf("Reason() = %v, want cancelled", o.Reason())
	}
	if h.source.removes != 0 {
		t.Errorf("removes = %d, want 0", h.source.removes)
	}
	if h.monitor.calls != 0 {
		t.Errorf("monitor calls = %d, want 0 with nothing applied", h.monitor.calls)
	}
	if got := o.State().ConsecutiveEmptyReads; got != 3 {
		t.Errorf("ConsecutiveEmptyReads = %d, want plateau 3", got)
	}
}

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

func TestRunReconnectEventuallySucceeds(t *testing.T) {
	battle := snapshot(game.ModeBattle, "Jin", "Kazuya")
	h := newHarness(battle, terminal)
	h.connector.failConnects = 4

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, context.Background(), o)

	if h.connector.connects != 5 {
		t.Errorf("connects = %d, want 5", h.connector.connects)
	}
	if len(h.connector.pushes) != 1 {
		t.Errorf("pushes = %d, want 1 after reconnect", len(h.connector.pushes))
	}
	// Failed attempts do no other work.
	if h.source.reads != 2 {
		t.Errorf("reads = %d, want 2", h.source.reads)
	}
}

// ///////////////////////////////////////////////
// Cancellation
// ///////////////////////////////////////////////

func TestRunCancellationLatency(t *testing.T) {
	slow := Options{
		PollInterval:   time.Hour,
		ConnectBackoff: time.Hour,
		AwaitInterval:  time.Hour,
	}

	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"during poll sleep", func(h *harness) {}},
		{"during connect backoff", func(h *harness) { h.connector.failConnects = 1 << 30 }},
		{"while awaiting file", func(h *harness) { h.source.exists.Store(false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(snapshot(game.ModeMenu, "", ""))
			tt.setup(h)
			o := h.orchestrator(slow)

			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(50*time.Millisecond, cancel)

			start := time.Now()
			if err := runWithTimeout(t, ctx, o); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("Run took %v after cancel", elapsed)
			}
			if o.Reason() != ReasonCancelled {
				t.Errorf("Reason() = %v, want cancelled", o.Reason())
			}
			if o.Phase() != Terminated {
				t.Errorf("Phase() = %v, want terminated", o.Phase())
			}
			if h.connector.closes != 1 {
				t.Errorf("closes = %d, want 1", h.connector.closes)
			}
		})
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	h := newHarness(snapshot(game.ModeMenu, "", ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := h.orchestrator(fastOptions())
	runWithTimeout(t, ctx, o)

	if h.source.reads != 0 {
		t.Errorf("reads = %d, want 0", h.source.reads)
	}
	if o.Reason() != ReasonCancelled {
		t.Errorf("Reason() = %v, want cancelled", o.Reason())
	}
}

// ///////////////////////////////////////////////
// Awaiting the file
// ///////////////////////////////////////////////

func TestRunWatcherWakesAwait(t *testing.T) {
	h := newHarness(terminal)
	h.source.exists.Store(false)
	w := &fakeWatcher{events: make(chan struct{}, 1)}

	opts := fastOptions()
	opts.AwaitInterval = time.Hour
	o := New(h.source, h.monitor, fakeMapper{}, h.connector, w, opts)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	h.source.exists.Store(true)
	w.events <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher event did not wake the await loop")
	}
	if o.Reason() != ReasonTerminal {
		t.Errorf("Reason() = %v, want game_closed", o.Reason())
	}
	if !w.closed.Load() {
		t.Error("watcher not closed on shutdown")
	}
}

// ///////////////////////////////////////////////
// Failure boundary
// ///////////////////////////////////////////////

func TestRunPanicStillCleansUp(t *testing.T) {
	h := newHarness(snapshot(game.ModeBattle, "Jin", "Kazuya"))
	w := &fakeWatcher{events: make(chan struct{}, 1)}
	o := New(h.source, h.monitor, fakeMapper{panicOn: game.ModeBattle}, h.connector, w, fastOptions())

	err := runWithTimeout(t, context.Background(), o)
	if err == nil {
		t.Fatal("expected error from panicking iteration")
	}
	if o.Reason() != ReasonPanic {
		t.Errorf("Reason() = %v, want panic", o.Reason())
	}
	if o.Phase() != Terminated {
		t.Errorf("Phase() = %v, want terminated", o.Phase())
	}
	if h.connector.closes != 1 || h.connector.clears != 1 {
		t.Errorf("clears/closes = %d/%d, want 1/1", h.connector.clears, h.connector.closes)
	}
	if !w.closed.Load() {
		t.Error("watcher not closed after panic")
	}
}

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{EmptyRecheck: 10, EmptyPlateau: 12}.withDefaults()
	if got.PollInterval != 2*time.Second || got.ConnectBackoff != 5*time.Second {
		t.Errorf("intervals = %v/%v", got.PollInterval, got.ConnectBackoff)
	}
	if got.ProcessCheckEvery != 3 {
		t.Errorf("ProcessCheckEvery = %d, want 3", got.ProcessCheckEvery)
	}
	if got.EmptyPlateau != 9 {
		t.Errorf("EmptyPlateau = %d, want 9 (held below recheck)", got.EmptyPlateau)
	}
	if d := DefaultOptions(); d.withDefaults() != d {
		t.Error("defaults are not a fixed point of withDefaults")
	}
}

func TestPhaseAndReasonStrings(t *testing.T) {
	if AwaitingFile.String() != "awaiting_file" || Terminated.String() != "terminated" {
		t.Error("unexpected phase names")
	}
	if ReasonGameExited.String() != "game_exited" || ReasonNone.String() != "none" {
		t.Error("unexpected reason names")
	}
}
