package config

import "os"

// Environment variable names recognized by pictree.
const (
	envConfigPath = "PICTREE_CONFIG"
	envLogLevel   = "PICTREE_LOG_LEVEL"
)

// EnvOverrides holds values read from the process environment.
type EnvOverrides struct {
	ConfigPath string
	LogLevel   string
}

// ReadEnvOverrides reads the recognized environment variables.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(envConfigPath),
		LogLevel:   os.Getenv(envLogLevel),
	}
}
