package config

import (
	"os"
	"strconv"

	"procsight/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Analysis AnalysisConfig
}

// ServerConfig holds HTTP collaborator surface settings
type ServerConfig struct {
	Port string
}

// AnalysisConfig holds engine defaults used when the caller omits options
type AnalysisConfig struct {
	ResamplePeriod string  // empty = raw data
	Aggregator     string  // mean, first, max, min, median
	TopRules       int     // fuzzy miner top-K
	MaxLagCap      int     // causality maxlag upper clamp
	PeakDistance   int     // step detector minimum peak separation
	ThresholdFloor float64 // step detector epsilon
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Analysis: AnalysisConfig{
			ResamplePeriod: getEnvOrDefault("RESAMPLE_PERIOD", ""),
			Aggregator:     getEnvOrDefault("RESAMPLE_AGG", "mean"),
			TopRules:       getEnvIntOrDefault("FUZZY_TOP_RULES", 20),
			MaxLagCap:      getEnvIntOrDefault("CAUSALITY_MAX_LAG", 10),
			PeakDistance:   getEnvIntOrDefault("STEP_PEAK_DISTANCE", 5),
			ThresholdFloor: getEnvFloatOrDefault("STEP_THRESHOLD_FLOOR", 1e-6),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Analysis.TopRules <= 0 {
		return errors.ConfigInvalid("FUZZY_TOP_RULES must be positive")
	}
	if config.Analysis.MaxLagCap < 1 {
		return errors.ConfigInvalid("CAUSALITY_MAX_LAG must be at least 1")
	}
	if config.Analysis.PeakDistance < 1 {
		return errors.ConfigInvalid("STEP_PEAK_DISTANCE must be at least 1")
	}
	if config.Analysis.ThresholdFloor <= 0 {
		return errors.ConfigInvalid("STEP_THRESHOLD_FLOOR must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
