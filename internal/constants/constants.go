// Package constants provides named constants used throughout the trialrun codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Data extraction constants
const (
	// DefaultProximityMeters is the straight-line distance threshold for
	// including a candidate entity in a frame snapshot. Candidates at or
	// beyond this distance from the monitored entity are excluded.
	DefaultProximityMeters = 100.0

	// SpeedToKMH converts a velocity magnitude from simulation units per
	// second (meters/second) to kilometers per hour.
	SpeedToKMH = 3.6

	// MaxDisplayNameLen is the maximum length for an entity display name.
	// Longer names are truncated and marked with a trailing ellipsis.
	MaxDisplayNameLen = 250
)

// Windowed batch writer constants
const (
	// DefaultWindowSize is the number of frame records accumulated before
	// a window is flushed to the storage sink.
	DefaultWindowSize = 50
)

// Scenario execution constants
const (
	// DefaultTimeoutSeconds is the simulated-time bound applied to a
	// scenario when its definition does not specify one.
	DefaultTimeoutSeconds = 60.0

	// DefaultPollIntervalMillis is the spin-poll back-off used while
	// waiting for the frame source to produce a new frame. Keeps the
	// fallback poll loop from consuming a full core.
	DefaultPollIntervalMillis = 1
)

// Storage backend identifiers accepted by the output configuration.
const (
	BackendFile   = "file"   // one JSON file per flushed window
	BackendSQLite = "sqlite" // windows table in a SQLite database
)
