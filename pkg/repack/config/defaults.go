// Package config provides configuration management for the repack
// repository builder.
package config

// Default configuration values for repack.
const (
	// DefaultTexmfPrefix is the top-level directory prefix of package
	// payloads.
	DefaultTexmfPrefix = "texmf"

	// DefaultSeries is the target repository series.
	DefaultSeries = "2.9"

	// DefaultReleaseState is recorded in the repository summary.
	DefaultReleaseState = "stable"

	// DefaultLevel is the inclusion tier for packages absent from the
	// selection list.
	DefaultLevel = "T"

	// DefaultLogLevel is the log verbosity when none is configured.
	DefaultLogLevel = "warn"
)
