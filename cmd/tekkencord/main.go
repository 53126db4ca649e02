// Package main implements the tekkencord bridge, which follows the TEKKEN 8
// status file written by the instrumentation mod and mirrors it into Discord
// Rich Presence until the game exits or the user interrupts it.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "tools.zach/dev/tekkencord"
	"tools.zach/dev/tekkencord/internal/atomicfile"
	"tools.zach/dev/tekkencord/internal/config"
	"tools.zach/dev/tekkencord/internal/discord"
	"tools.zach/dev/tekkencord/internal/game"
	"tools.zach/dev/tekkencord/internal/logger"
	"tools.zach/dev/tekkencord/internal/orchestrator"
	"tools.zach/dev/tekkencord/internal/paths"
	"tools.zach/dev/tekkencord/internal/presence"
	"tools.zach/dev/tekkencord/internal/procmon"
	"tools.zach/dev/tekkencord/internal/status"
	"tools.zach/dev/tekkencord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags it is returned as-is; otherwise the embedded VCS revision is used
// to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token that proves ownership
// of the PID file, so [removePID] only deletes a file this instance wrote.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID opens the PID file, takes an advisory lock and writes
// "PID:TOKEN". The handle must stay open for the life of the bridge to hold
// the lock; pass it to [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	fail := func(what string, err error) (*os.File, error) {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("%s PID file: %w", what, err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		return fail("write", err)
	}
	return f, nil
}

// removePID releases the lock, closes f, and removes the PID file only if
// it still carries token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	if _, got, ok := strings.Cut(string(data), ":"); ok && got == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another bridge holds the PID lock. When the
// lock can be taken the previous owner is dead and its file is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		head, _, _ := strings.Cut(string(data), ":")
		if p, convErr := strconv.Atoi(head); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Builders
// ///////////////////////////////////////////////

// buildTable starts from the locale preset and applies the display overrides.
func buildTable(d config.DisplayConfig) (presence.Table, error) {
	table, err := presence.Preset(d.Locale)
	if err != nil {
		return presence.Table{}, err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&table.LargeText, d.LargeText)
	set(&table.SmallText, d.SmallText)
	set(&table.GenericAsset, d.GenericAsset)
	set(&table.Versus, d.VersusFormat)
	set(&table.PlayingAs, d.PlayingAsFormat)
	set(&table.TrainingWith, d.TrainingWithFormat)

	for key, ov := range d.Modes {
		mode, ok := game.LookupMode(key)
		if !ok {
			return presence.Table{}, fmt.Errorf("unknown game mode %q", key)
		}
		e := table.Modes[mode]
		set(&e.Details, ov.Details)
		set(&e.State, ov.State)
		set(&e.LargeImage, ov.LargeImage)
		table.Modes[mode] = e
	}
	maps.Copy(table.Characters, d.Characters)
	return table, nil
}

// buildOptions converts the behavior settings to loop options.
func buildOptions(b config.BehaviorConfig) orchestrator.Options {
	return orchestrator.Options{
		PollInterval:      b.PollInterval(),
		ConnectBackoff:    b.ReconnectInterval(),
		AwaitInterval:     b.AwaitInterval(),
		ProcessCheckEvery: b.ProcessCheckEvery,
		EmptyNotice:       b.EmptyNoticePolls,
		EmptyRecheck:      b.EmptyRecheckPolls,
		EmptyPlateau:      b.EmptyPlateauPolls,
		ExitCountdown:     b.ExitCountdownSeconds,
		CountdownTick:     time.Second,
	}
}

// resolveStatusPath picks the status file: the flag wins over the config,
// and relative paths resolve against the working directory.
func resolveStatusPath(flagValue string, g config.GameConfig) string {
	path := g.StatusFile
	if flagValue != "" {
		path = flagValue
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return paths.ResolveStatusFile(wd, path)
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns ~/.tekkencord, falling back to ./.tekkencord if the
// home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// ensureConfig writes the embedded default config on first run. An existing
// file is left alone.
func ensureConfig(dp DataPaths) error {
	if _, err := os.Stat(dp.Config()); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return atomicfile.Write(dp.Config(), rootpkg.DefaultConfigTOML, 0o644)
}

// run is the whole program. It returns the process exit code.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory for config, logs and the PID file")
	statusFile := fs.String("status-file", "", "Status file to follow (overrides game.status_file)")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ver := resolveVersion()
	if *showVersion {
		fmt.Fprintln(stderr, paths.BinaryName, ver)
		return 0
	}

	dp := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(stderr, "fatal: create data dir: %v\n", err)
		return 1
	}

	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(stderr, "tekkencord already running (pid %d)\n", pid)
		return 1
	}

	if err := ensureConfig(dp); err != nil {
		fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return 1
	}

	logOpts := logger.Options{
		Path:      dp.Log(),
		Level:     logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB: cfg.Log.MaxSizeMB,
	}
	if cfg.Log.Console {
		logOpts.Console = stderr
	}
	log, logCloser, err := logger.New(logOpts)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		return 1
	}
	defer removePID(dp, token, pidFile)

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	statusPath := resolveStatusPath(*statusFile, cfg.Game)
	slog.Info("TEKKEN 8 Discord Rich Presence starting",
		"version", ver, "data_dir", dp.Root, "status_file", statusPath)

	if cfg.Update.Check {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("update check panic", "error", r)
				}
			}()
			update.NewChecker(cfg.Update.ManifestURL).Check(ctx, ver)
		}()
	}

	o, err := build(cfg, statusPath)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return 1
	}

	if err := o.Run(ctx); err != nil {
		logger.Fail(log, "presence loop failed", "error", err)
		return 1
	}
	slog.Info("tekkencord stopped", "reason", o.Reason())
	return 0
}

// build wires the components for one run of the loop.
func build(cfg *config.Config, statusPath string) (*orchestrator.Orchestrator, error) {
	table, err := buildTable(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("build presence table: %w", err)
	}
	mapper, err := presence.NewMapper(table, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build presence table: %w", err)
	}

	monitor, err := procmon.New(cfg.Game.ProcessNames, cfg.Game.ProcessTimeout())
	if err != nil {
		return nil, fmt.Errorf("build process monitor: %w", err)
	}
	if !procmon.Supported() {
		slog.Info("process detection unavailable on this platform, relying on the status file")
	}

	client := discord.NewClient(cfg.Discord.AppID, discord.WithTimeout(cfg.Behavior.IPCTimeout()))
	connector := presence.NewConnector(client)

	// A nil *status.Watcher must not reach the interface.
	var watcher orchestrator.Watcher
	w, err := status.NewWatcher(statusPath, cfg.Behavior.PollInterval())
	if err != nil {
		slog.Warn("file watcher unavailable, using timers only", "error", err)
	} else {
		if w.Polling() {
			slog.Info("using polling mode for file watching")
		}
		watcher = w
	}

	return orchestrator.New(status.NewSource(statusPath), monitor, mapper, connector, watcher, buildOptions(cfg.Behavior)), nil
}
