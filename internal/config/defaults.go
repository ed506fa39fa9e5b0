package config

// Default values for configuration options — "layer 0" of the override
// chain, chosen so pictree works without any config file.
const (
	defaultMaxWatchers         = 100
	defaultQuietInterval       = "300ms"
	defaultMaxBatchesPerCycle  = 10
	defaultMaxEventsPerBatch   = 20
	defaultDiscardThreshold    = 100
	defaultErrorResetThreshold = 5
	defaultErrorResetCooldown  = "30s"
	defaultExistenceTTL        = "5s"
	defaultSidecarName         = ".foldertags"
	defaultLogLevel            = "info"
	defaultLogFormat           = "auto"
	defaultLogRetentionDays    = 30
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the starting point for TOML decoding (unset fields keep defaults)
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Watcher: WatcherConfig{
			MaxWatchers:         defaultMaxWatchers,
			QuietInterval:       defaultQuietInterval,
			MaxBatchesPerCycle:  defaultMaxBatchesPerCycle,
			MaxEventsPerBatch:   defaultMaxEventsPerBatch,
			DiscardThreshold:    defaultDiscardThreshold,
			ErrorResetThreshold: defaultErrorResetThreshold,
			ErrorResetCooldown:  defaultErrorResetCooldown,
		},
		Cache: CacheConfig{
			ExistenceTTL: defaultExistenceTTL,
		},
		Metadata: MetadataConfig{
			SidecarName: defaultSidecarName,
		},
		Logging: LoggingConfig{
			LogLevel:         defaultLogLevel,
			LogFormat:        defaultLogFormat,
			LogRetentionDays: defaultLogRetentionDays,
		},
	}
}
