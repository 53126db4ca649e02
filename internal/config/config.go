// Package config loads, validates and saves the tekkencord configuration.
//
// Configuration lives in <data-dir>/config.toml. Any key left out of the file
// keeps its value from [DefaultConfig], so a minimal file only needs the
// settings a user wants to change.
package config

//go:generate go run ../../cmd/genconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/tekkencord/internal/game"
	"tools.zach/dev/tekkencord/internal/logger"
	"tools.zach/dev/tekkencord/internal/paths"
)

// DefaultDiscordAppID is the Discord application that owns the TEKKEN 8
// presence assets.
const DefaultDiscordAppID = "1409915140484104364"

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Game holds status file and process detection settings.
	Game GameConfig `toml:"game"`
	// Display holds presence text and asset settings.
	Display DisplayConfig `toml:"display"`
	// Behavior holds loop cadence and threshold settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Update holds release check settings.
	Update UpdateConfig `toml:"update"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the Discord application ID for Rich Presence.
	AppID string `toml:"app_id"`
}

// GameConfig holds settings for locating the game's output.
type GameConfig struct {
	// StatusFile is the status file written by the mod. Relative paths are
	// resolved against the working directory.
	StatusFile string `toml:"status_file"`
	// ProcessNames are doublestar patterns matched case-insensitively against
	// running process names.
	ProcessNames []string `toml:"process_names"`
	// ProcessTimeoutSeconds bounds one process enumeration.
	ProcessTimeoutSeconds int `toml:"process_timeout_seconds"`
}

// ModeOverride replaces parts of the built-in entry for one game mode.
// Empty fields keep the built-in value.
type ModeOverride struct {
	Details    string `toml:"details,omitempty"`
	State      string `toml:"state,omitempty"`
	LargeImage string `toml:"large_image,omitempty"`
}

// DisplayConfig holds presence text and asset settings. Empty strings keep
// the value from the locale preset.
type DisplayConfig struct {
	// Locale selects the built-in message set: "en" or "ko".
	Locale string `toml:"locale"`
	// LargeText is the tooltip of the large image.
	LargeText string `toml:"large_text,omitempty"`
	// SmallText is the tooltip of the small image when no character is shown.
	SmallText string `toml:"small_text,omitempty"`
	// GenericAsset is the small image used for unrecognized characters.
	GenericAsset string `toml:"generic_asset,omitempty"`
	// VersusFormat is the details line when both characters are known ({p1}, {p2}).
	VersusFormat string `toml:"versus_format,omitempty"`
	// PlayingAsFormat is the details line when only P1 is known ({p1}).
	PlayingAsFormat string `toml:"playing_as_format,omitempty"`
	// TrainingWithFormat is the practice mode state line ({p1}).
	TrainingWithFormat string `toml:"training_with_format,omitempty"`
	// Modes overrides the built-in entry per game_mode value.
	Modes map[string]ModeOverride `toml:"modes,omitempty"`
	// Characters adds or replaces character asset keys.
	Characters map[string]string `toml:"characters,omitempty"`
}

// BehaviorConfig holds loop cadence and threshold settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the sleep between status file reads.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is the wait after a failed Discord connection.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// AwaitIntervalSeconds is how often the status file is checked before it exists.
	AwaitIntervalSeconds int `toml:"await_interval_seconds"`
	// ProcessCheckEvery checks the game process every Nth poll.
	ProcessCheckEvery int `toml:"process_check_every"`
	// EmptyNoticePolls is the empty-read streak that logs a notice.
	EmptyNoticePolls int `toml:"empty_notice_polls"`
	// EmptyRecheckPolls is the empty-read streak that rechecks the process.
	EmptyRecheckPolls int `toml:"empty_recheck_polls"`
	// EmptyPlateauPolls is where the streak is held after a recheck.
	EmptyPlateauPolls int `toml:"empty_plateau_polls"`
	// ExitCountdownSeconds is the countdown after the game exits.
	ExitCountdownSeconds int `toml:"exit_countdown_seconds"`
	// IPCTimeoutSeconds bounds each Discord IPC operation.
	IPCTimeoutSeconds int `toml:"ipc_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fail).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
	// Console also writes log lines to stderr.
	Console bool `toml:"console"`
}

// UpdateConfig holds release check settings.
type UpdateConfig struct {
	// Check enables the startup release check.
	Check bool `toml:"check"`
	// ManifestURL is the JSON release manifest to query.
	ManifestURL string `toml:"manifest_url,omitempty"`
}

// ///////////////////////////////////////////////
// Duration Helpers
// ///////////////////////////////////////////////

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// PollInterval returns the poll interval as a duration.
func (b BehaviorConfig) PollInterval() time.Duration { return seconds(b.PollIntervalSeconds) }

// ReconnectInterval returns the reconnect backoff as a duration.
func (b BehaviorConfig) ReconnectInterval() time.Duration {
	return seconds(b.ReconnectIntervalSeconds)
}

// AwaitInterval returns the file-await interval as a duration.
func (b BehaviorConfig) AwaitInterval() time.Duration { return seconds(b.AwaitIntervalSeconds) }

// IPCTimeout returns the IPC deadline as a duration.
func (b BehaviorConfig) IPCTimeout() time.Duration { return seconds(b.IPCTimeoutSeconds) }

// ProcessTimeout returns the process enumeration bound as a duration.
func (g GameConfig) ProcessTimeout() time.Duration { return seconds(g.ProcessTimeoutSeconds) }

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with the stock settings.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Discord: DiscordConfig{
			AppID: DefaultDiscordAppID,
		},
		Game: GameConfig{
			StatusFile:            paths.StatusFile,
			ProcessNames:          []string{"Polaris-Win64-Shipping*"},
			ProcessTimeoutSeconds: 2,
		},
		Display: DisplayConfig{
			Locale: "en",
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      2,
			ReconnectIntervalSeconds: 5,
			AwaitIntervalSeconds:     1,
			ProcessCheckEvery:        3,
			EmptyNoticePolls:         10,
			EmptyRecheckPolls:        30,
			EmptyPlateauPolls:        25,
			ExitCountdownSeconds:     3,
			IPCTimeoutSeconds:        5,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
			Console:   true,
		},
	}
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result. Unknown
// keys are logged and ignored.
func Parse(data []byte) (*Config, error) {
	if v := PeekVersion(data); v > CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", v, CurrentVersion)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("ignoring unknown config keys", "keys", strings.Join(keys, ","))
	}
	cfg.Version = CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// Validate checks that all configuration values are within acceptable
// ranges and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Discord.AppID) == "" {
		add("discord.app_id must not be empty")
	}

	if len(c.Game.ProcessNames) == 0 {
		add("game.process_names must list at least one pattern")
	}
	for _, p := range c.Game.ProcessNames {
		if !doublestar.ValidatePattern(p) {
			add("invalid game.process_names pattern %q", p)
		}
	}
	if c.Game.ProcessTimeoutSeconds <= 0 {
		add("game.process_timeout_seconds must be > 0, got %d", c.Game.ProcessTimeoutSeconds)
	}

	switch strings.ToLower(c.Display.Locale) {
	case "", "en", "ko":
	default:
		add("invalid display.locale %q: must be en or ko", c.Display.Locale)
	}
	for key := range c.Display.Modes {
		if _, ok := game.LookupMode(key); !ok {
			add("unknown game mode %q in display.modes", key)
		}
	}
	for name, asset := range c.Display.Characters {
		if asset == "" {
			add("display.characters.%q must not be empty", name)
		}
	}
	checkPlaceholders := func(key, value string, required ...string) {
		if value == "" {
			return
		}
		for _, r := range required {
			if !strings.Contains(value, r) {
				add("display.%s %q must contain %s", key, value, r)
			}
		}
	}
	checkPlaceholders("versus_format", c.Display.VersusFormat, "{p1}", "{p2}")
	checkPlaceholders("playing_as_format", c.Display.PlayingAsFormat, "{p1}")

	b := c.Behavior
	positive := map[string]int{
		"poll_interval_seconds":      b.PollIntervalSeconds,
		"reconnect_interval_seconds": b.ReconnectIntervalSeconds,
		"await_interval_seconds":     b.AwaitIntervalSeconds,
		"process_check_every":        b.ProcessCheckEvery,
		"empty_notice_polls":         b.EmptyNoticePolls,
		"empty_recheck_polls":        b.EmptyRecheckPolls,
		"empty_plateau_polls":        b.EmptyPlateauPolls,
		"ipc_timeout_seconds":        b.IPCTimeoutSeconds,
	}
	for _, key := range slices.Sorted(maps.Keys(positive)) {
		if positive[key] <= 0 {
			add("behavior.%s must be > 0, got %d", key, positive[key])
		}
	}
	if b.EmptyPlateauPolls >= b.EmptyRecheckPolls {
		add("behavior.empty_plateau_polls (%d) must be below empty_recheck_polls (%d)", b.EmptyPlateauPolls, b.EmptyRecheckPolls)
	}
	if b.ExitCountdownSeconds < 0 {
		add("behavior.exit_countdown_seconds must be >= 0, got %d", b.ExitCountdownSeconds)
	}

	if !logger.ValidLevel(c.Log.Level) {
		add("invalid log.level %q: must be trace, debug, info, warn, error, or fail", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		add("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Update.Check {
		u, err := url.Parse(c.Update.ManifestURL)
		switch {
		case c.Update.ManifestURL == "":
			add("update.manifest_url is required when update.check is enabled")
		case err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "":
			add("invalid update.manifest_url %q: must be an http or https URL", c.Update.ManifestURL)
		}
	}

	return errors.Join(errs...)
}
