// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for pictree. Defaults are decoded over by
// the config file; the environment and CLI flags override on top. Unknown
// keys are rejected with "did you mean?" suggestions.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Watcher  WatcherConfig  `toml:"watcher"`
	Cache    CacheConfig    `toml:"cache"`
	Metadata MetadataConfig `toml:"metadata"`
	Index    IndexConfig    `toml:"index"`
	Logging  LoggingConfig  `toml:"logging"`
}

// WatcherConfig tunes the watch/coalesce/dispatch pipeline. All numeric
// thresholds here are defaults, not contracts — the services accept whatever
// the operator configures.
type WatcherConfig struct {
	MaxWatchers         int    `toml:"max_watchers"`
	QuietInterval       string `toml:"quiet_interval"`
	MaxBatchesPerCycle  int    `toml:"max_batches_per_cycle"`
	MaxEventsPerBatch   int    `toml:"max_events_per_batch"`
	DiscardThreshold    int    `toml:"discard_threshold"`
	ErrorResetThreshold int    `toml:"error_reset_threshold"`
	ErrorResetCooldown  string `toml:"error_reset_cooldown"`
}

// QuietIntervalValue returns the parsed quiet interval. Validate guarantees
// parseability; a zero result falls back to the pipeline default.
func (w WatcherConfig) QuietIntervalValue() time.Duration {
	d, _ := time.ParseDuration(w.QuietInterval)
	return d
}

// ErrorResetCooldownValue returns the parsed reset cooldown.
func (w WatcherConfig) ErrorResetCooldownValue() time.Duration {
	d, _ := time.ParseDuration(w.ErrorResetCooldown)
	return d
}

// CacheConfig tunes the directory-existence cache.
type CacheConfig struct {
	ExistenceTTL string `toml:"existence_ttl"`
}

// ExistenceTTLValue returns the parsed TTL.
func (c CacheConfig) ExistenceTTLValue() time.Duration {
	d, _ := time.ParseDuration(c.ExistenceTTL)
	return d
}

// MetadataConfig controls the per-folder sidecar files.
type MetadataConfig struct {
	SidecarName string `toml:"sidecar_name"`
}

// IndexConfig locates the tag catalog database. An empty path resolves to
// <data dir>/tags.db at startup.
type IndexConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig controls log output behavior: level, format, destination,
// and rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
	LogFile          string `toml:"log_file"`
	LogRetentionDays int    `toml:"log_retention_days"`
}
