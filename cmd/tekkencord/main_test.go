package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	rootpkg "tools.zach/dev/tekkencord"
	"tools.zach/dev/tekkencord/internal/config"
	"tools.zach/dev/tekkencord/internal/game"
	"tools.zach/dev/tekkencord/internal/orchestrator"
)

// ///////////////////////////////////////////////
// resolveVersion Tests
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	// Test binaries may or may not carry VCS info.
	original := version
	defer func() { version = original }()

	version = "dev"
	if got := resolveVersion(); !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, expected to start with 'dev'", got)
	}
}

// ///////////////////////////////////////////////
// Builder Tests
// ///////////////////////////////////////////////

func TestBuildTableDefaults(t *testing.T) {
	table, err := buildTable(config.DefaultConfig().Display)
	if err != nil {
		t.Fatalf("buildTable: %v", err)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	if table.Versus != "{p1} VS {p2}" {
		t.Errorf("Versus = %q", table.Versus)
	}
}

func TestBuildTableOverrides(t *testing.T) {
	d := config.DisplayConfig{
		Locale:             "ko",
		LargeText:          "Tekken Eight",
		VersusFormat:       "{p1} x {p2}",
		TrainingWithFormat: "Labbing {p1}",
		Modes: map[string]config.ModeOverride{
			"battle": {State: "Ranked"},
		},
		Characters: map[string]string{"Kuma": "kuma_alt", "New Fighter": "new_fighter"},
	}

	table, err := buildTable(d)
	if err != nil {
		t.Fatalf("buildTable: %v", err)
	}
	if table.LargeText != "Tekken Eight" || table.Versus != "{p1} x {p2}" || table.TrainingWith != "Labbing {p1}" {
		t.Errorf("string overrides not applied: %+v", table)
	}
	if table.PlayingAs != "{p1} 플레이 중..." {
		t.Errorf("PlayingAs = %q, want Korean preset", table.PlayingAs)
	}
	battle := table.Modes[game.ModeBattle]
	if battle.State != "Ranked" || battle.LargeImage != "battle" {
		t.Errorf("battle entry = %+v", battle)
	}
	if table.Characters["Kuma"] != "kuma_alt" || table.Characters["New Fighter"] != "new_fighter" {
		t.Errorf("character overrides not applied")
	}
	if table.Characters["Jin"] == "" {
		t.Error("preset characters dropped")
	}
}

func TestBuildTableErrors(t *testing.T) {
	if _, err := buildTable(config.DisplayConfig{Locale: "fr"}); err == nil {
		t.Error("expected error for unknown locale")
	}
	d := config.DisplayConfig{Modes: map[string]config.ModeOverride{"boss_rush": {}}}
	if _, err := buildTable(d); err == nil {
		t.Error("expected error for unknown mode key")
	}
}

func TestBuildOptions(t *testing.T) {
	b := config.DefaultConfig().Behavior
	b.PollIntervalSeconds = 4
	b.ExitCountdownSeconds = 0

	got := buildOptions(b)
	want := orchestrator.Options{
		PollInterval:      4 * time.Second,
		ConnectBackoff:    5 * time.Second,
		AwaitInterval:     time.Second,
		ProcessCheckEvery: 3,
		EmptyNotice:       10,
		EmptyRecheck:      30,
		EmptyPlateau:      25,
		ExitCountdown:     0,
		CountdownTick:     time.Second,
	}
	if got != want {
		t.Errorf("buildOptions = %+v, want %+v", got, want)
	}
}

func TestResolveStatusPath(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	abs := filepath.Join(t.TempDir(), "status.json")

	tests := []struct {
		name string
		flag string
		cfg  string
		want string
	}{
		{"config relative", "", "tekken8_discord_rpc.json", filepath.Join(wd, "tekken8_discord_rpc.json")},
		{"config absolute", "", abs, abs},
		{"flag wins", abs, "ignored.json", abs},
		{"empty falls back to default name", "", "", filepath.Join(wd, "tekken8_discord_rpc.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStatusPath(tt.flag, config.GameConfig{StatusFile: tt.cfg})
			if got != tt.want {
				t.Errorf("resolveStatusPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildRunsAndCleansUp(t *testing.T) {
	cfg := config.DefaultConfig()
	statusPath := filepath.Join(t.TempDir(), "tekken8_discord_rpc.json")

	o, err := build(cfg, statusPath)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Phase() != orchestrator.Terminated || o.Reason() != orchestrator.ReasonCancelled {
		t.Errorf("phase %v reason %v, want terminated/cancelled", o.Phase(), o.Reason())
	}
}

func TestBuildRejectsBadPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Game.ProcessNames = []string{"Polaris[*"}
	if _, err := build(cfg, filepath.Join(t.TempDir(), "s.json")); err == nil {
		t.Fatal("expected error for invalid process pattern")
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := defaultDataDir()
	if !strings.HasSuffix(dir, ".tekkencord") {
		t.Errorf("defaultDataDir() = %q, want path ending in .tekkencord", dir)
	}
}

// ///////////////////////////////////////////////
// run Tests
// ///////////////////////////////////////////////

func TestRunVersion(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"-version"}, &stderr); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(stderr.String(), "tekkencord ") {
		t.Errorf("output = %q", stderr.String())
	}
}

func TestRunBadFlag(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"-no-such-flag"}, &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("version = 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	if code := run([]string{"-data-dir", dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "load config") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "tekkencord.pid")); !os.IsNotExist(err) {
		t.Error("PID file should not exist after a config failure")
	}
}

func TestEnsureConfig(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	if err := ensureConfig(dp); err != nil {
		t.Fatalf("ensureConfig: %v", err)
	}
	data, err := os.ReadFile(dp.Config())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, rootpkg.DefaultConfigTOML) {
		t.Error("first-run config differs from the embedded default")
	}
	if _, err := config.Parse(data); err != nil {
		t.Errorf("embedded default does not parse: %v", err)
	}

	custom := []byte("version = 1\n")
	if err := os.WriteFile(dp.Config(), custom, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfig(dp); err != nil {
		t.Fatalf("ensureConfig on existing file: %v", err)
	}
	if data, _ := os.ReadFile(dp.Config()); !bytes.Equal(data, custom) {
		t.Errorf("existing config overwritten: %q", data)
	}

	entries, _ := os.ReadDir(dp.Root)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	f, err := writePID(dp, pidToken())
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	var stderr bytes.Buffer
	if code := run([]string{"-data-dir", dp.Root}, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "already running") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

// ///////////////////////////////////////////////
// pidToken Tests
// ///////////////////////////////////////////////

func TestPidToken(t *testing.T) {
	a, b := pidToken(), pidToken()
	if a == b {
		t.Errorf("pidToken() returned the same value twice: %q", a)
	}
	if len(a) != 16 {
		t.Errorf("pidToken() length = %d, want 16", len(a))
	}
}

// ///////////////////////////////////////////////
// writePID / removePID Tests
// ///////////////////////////////////////////////

func TestWritePID_FileContainsPID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	// Read through the open handle; on Windows the lock prevents os.ReadFile.
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	data := make([]byte, 256)
	n, err := f.Read(data)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	expected := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data[:n]) != expected {
		t.Errorf("PID file content = %q, want %q", string(data[:n]), expected)
	}
}

func TestRemovePID_MatchingToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	removePID(dp, token, f)

	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file should have been removed with matching token")
	}
}

func TestRemovePID_MismatchedToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	f, err := writePID(dp, pidToken())
	if err != nil {
		t.Fatalf("writePID() error: %v", err)
	}
	removePID(dp, "wrong-token", f)

	if _, err := os.Stat(dp.PID()); os.IsNotExist(err) {
		t.Error("PID file should NOT have been removed with mismatched token")
	}
}

func TestRemovePID_NilFile(t *testing.T) {
	// Should not panic with a nil file handle.
	removePID(DataPaths{Root: t.TempDir()}, "any-token", nil)
}

// ///////////////////////////////////////////////
// checkStalePID Tests
// ///////////////////////////////////////////////

func TestCheckStalePID_NoFile(t *testing.T) {
	alive, pid := checkStalePID(DataPaths{Root: t.TempDir()})
	if alive || pid != 0 {
		t.Errorf("checkStalePID() = (%v, %d), want (false, 0)", alive, pid)
	}
}

func TestCheckStalePID_StalePID(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	// A PID file nobody holds a lock on belongs to a dead process.
	if err := os.WriteFile(dp.PID(), []byte("99999:staletoken"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	alive, pid := checkStalePID(dp)
	if alive || pid != 0 {
		t.Errorf("checkStalePID() = (%v, %d), want (false, 0)", alive, pid)
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file should have been removed")
	}
}

func TestCheckStalePID_Locked(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	f, err := writePID(dp, pidToken())
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}
	defer func() {
		_ = unlockFile(f)
		f.Close()
	}()

	alive, pid := checkStalePID(dp)
	if !alive {
		t.Fatal("checkStalePID() = not alive while the lock is held")
	}
	// Windows refuses reads of the locked range, so the PID is unknown there.
	if runtime.GOOS != "windows" && pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}
