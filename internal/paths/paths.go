// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "tekkencord.pid"
	ConfigFile = "config.toml"
	LogFile    = "tekkencord.log"
	BinaryName = "tekkencord"
	DataDirRel = ".tekkencord" // relative to $HOME
)

// StatusFile is the file name the TEKKEN 8 instrumentation mod writes next to
// the game, and the default value of game.status_file.
const StatusFile = "tekken8_discord_rpc.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// ResolveStatusFile returns path unchanged when it is absolute. A relative
// path is joined to base, which is normally the working directory the bridge
// was started from (the game directory, where the mod writes its file).
func ResolveStatusFile(base, path string) string {
	if path == "" {
		path = StatusFile
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
