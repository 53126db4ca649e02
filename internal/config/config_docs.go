package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "behavior.poll_interval_seconds")
// to their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.app_id": {
		Comment: "Application ID for Discord Rich Presence.\nOverride with your own Discord app if you upload your own art assets.",
	},

	// ── Game ─────────────────────────────────────────────────────
	"game.status_file": {
		Comment: "Status file written by the TEKKEN 8 mod.\nRelative paths resolve against the working directory.",
		Alternatives: []string{
			`status_file = "C:/Games/TEKKEN 8/Polaris/Binaries/Win64/tekken8_discord_rpc.json"`,
		},
	},
	"game.process_names": {
		Comment: "Process name patterns (doublestar globs, case-insensitive) that mean the game is running.",
	},
	"game.process_timeout_seconds": {
		Comment: "Upper bound for one process listing.",
	},

	// ── Display ──────────────────────────────────────────────────
	"display.locale": {
		Comment: "Built-in message set: en or ko.",
		Alternatives: []string{`locale = "ko"`},
	},
	"display.large_text": {
		Comment: "Tooltip of the large image.",
		Alternatives: []string{`large_text = "TEKKEN 8"`},
	},
	"display.small_text": {
		Comment: "Tooltip of the small image when no character is known.",
		Alternatives: []string{`small_text = "Fighting"`},
	},
	"display.generic_asset": {
		Comment: "Small image used for characters without their own asset.",
		Alternatives: []string{`generic_asset = "tekken8"`},
	},
	"display.versus_format": {
		Comment: "Details line when both characters are known. Must contain {p1} and {p2}.",
		Alternatives: []string{`versus_format = "{p1} vs {p2}"`},
	},
	"display.playing_as_format": {
		Comment: "Details line when only the player's character is known. Must contain {p1}.",
		Alternatives: []string{`playing_as_format = "Playing as {p1}"`},
	},
	"display.training_with_format": {
		Comment: "State line in practice mode. {p1} is the player's character.",
		Alternatives: []string{`training_with_format = "Training with {p1}"`},
	},
	"display.modes": {
		Comment: "Per-mode overrides keyed by game_mode value. Empty fields keep the built-in text.",
		Alternatives: []string{
			"[display.modes.battle]",
			`details = "In the ring"`,
			`state = "Ranked"`,
		},
	},
	"display.characters": {
		Comment: "Character name to Discord asset key. Adds to or replaces the built-in list.",
		Alternatives: []string{
			"[display.characters]",
			`"Jin Kazama" = "jin"`,
		},
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.poll_interval_seconds": {
		Comment: "Seconds between status file reads.",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Seconds to wait after a failed Discord connection.",
	},
	"behavior.await_interval_seconds": {
		Comment: "Seconds between checks while waiting for the status file to appear.",
	},
	"behavior.process_check_every": {
		Comment: "Check for the game process every Nth poll.",
	},
	"behavior.empty_notice_polls": {
		Comment: "Consecutive empty reads before a notice is logged.",
	},
	"behavior.empty_recheck_polls": {
		Comment: "Consecutive empty reads before the game process is checked again.",
	},
	"behavior.empty_plateau_polls": {
		Comment: "Streak value kept after a recheck that finds the game alive. Must be below empty_recheck_polls.",
	},
	"behavior.exit_countdown_seconds": {
		Comment: "Countdown after the game exits. 0 exits immediately.",
	},
	"behavior.ipc_timeout_seconds": {
		Comment: "Deadline for each Discord IPC round trip.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Log level: trace, debug, info, warn, error, fail",
	},
	"log.max_size_mb": {
		Comment: "Rotate the log file after this many megabytes.",
	},
	"log.console": {
		Comment: "Also write log lines to stderr.",
	},

	// ── Update ───────────────────────────────────────────────────
	"update.check": {
		Comment: "Check a release manifest on startup.",
	},
	"update.manifest_url": {
		Comment: "JSON manifest with a \"version\" field. Required when check is enabled.",
		Alternatives: []string{`manifest_url = "https://example.com/tekkencord/latest.json"`},
	},
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns the configuration written to config.default.toml.
// It matches [DefaultConfig]; optional display keys are documented through
// [ConfigDocs] alternatives instead of active values.
func ExampleConfig() *Config {
	return DefaultConfig()
}
