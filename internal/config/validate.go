package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation range constants.
const (
	minWatchers       = 1
	maxWatchers       = 10_000
	minQuietInterval  = 10 * time.Millisecond
	maxQuietInterval  = time.Minute
	minResetCooldown  = time.Second
	minExistenceTTL   = 100 * time.Millisecond
	minLogRetention   = 1
	maxSidecarNameLen = 255
)

// Validate checks all configuration values and returns all errors found,
// accumulated rather than first-only, so users can fix everything in one
// pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateWatcher(&cfg.Watcher)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateMetadata(&cfg.Metadata)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateWatcher(w *WatcherConfig) []error {
	var errs []error

	if w.MaxWatchers < minWatchers || w.MaxWatchers > maxWatchers {
		errs = append(errs, fmt.Errorf("max_watchers must be in [%d,%d], got %d",
			minWatchers, maxWatchers, w.MaxWatchers))
	}

	if d, err := time.ParseDuration(w.QuietInterval); err != nil {
		errs = append(errs, fmt.Errorf("quiet_interval: %w", err))
	} else if d < minQuietInterval || d > maxQuietInterval {
		errs = append(errs, fmt.Errorf("quiet_interval must be in [%v,%v], got %v",
			minQuietInterval, maxQuietInterval, d))
	}

	if d, err := time.ParseDuration(w.ErrorResetCooldown); err != nil {
		errs = append(errs, fmt.Errorf("error_reset_cooldown: %w", err))
	} else if d < minResetCooldown {
		errs = append(errs, fmt.Errorf("error_reset_cooldown must be at least %v, got %v",
			minResetCooldown, d))
	}

	if w.MaxBatchesPerCycle < 1 {
		errs = append(errs, fmt.Errorf("max_batches_per_cycle must be positive, got %d",
			w.MaxBatchesPerCycle))
	}

	if w.MaxEventsPerBatch < 1 {
		errs = append(errs, fmt.Errorf("max_events_per_batch must be positive, got %d",
			w.MaxEventsPerBatch))
	}

	if w.DiscardThreshold < w.MaxEventsPerBatch {
		errs = append(errs, fmt.Errorf(
			"discard_threshold (%d) must not be below max_events_per_batch (%d)",
			w.DiscardThreshold, w.MaxEventsPerBatch))
	}

	return errs
}

func validateCache(c *CacheConfig) []error {
	var errs []error

	if d, err := time.ParseDuration(c.ExistenceTTL); err != nil {
		errs = append(errs, fmt.Errorf("existence_ttl: %w", err))
	} else if d < minExistenceTTL {
		errs = append(errs, fmt.Errorf("existence_ttl must be at least %v, got %v",
			minExistenceTTL, d))
	}

	return errs
}

func validateMetadata(m *MetadataConfig) []error {
	var errs []error

	name := m.SidecarName

	switch {
	case name == "":
		errs = append(errs, errors.New("sidecar_name must not be empty"))
	case len(name) > maxSidecarNameLen:
		errs = append(errs, fmt.Errorf("sidecar_name too long (%d bytes)", len(name)))
	case strings.ContainsAny(name, `/\`):
		errs = append(errs, fmt.Errorf("sidecar_name must be a bare filename, got %q", name))
	case !strings.HasPrefix(name, "."):
		errs = append(errs, fmt.Errorf("sidecar_name must be hidden (start with '.'), got %q", name))
	}

	return errs
}

// Valid log levels and formats.
var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[strings.ToLower(l.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level must be debug|info|warn|error, got %q", l.LogLevel))
	}

	if !validLogFormats[strings.ToLower(l.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format must be auto|text|json, got %q", l.LogFormat))
	}

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("log_retention_days must be at least %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	return errs
}
