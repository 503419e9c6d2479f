// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/openvend/vmcd/internal/log"
)

// ParseString reads a string from an environment variable or returns the
// default value. The source is logged for observability.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		logger.Debug().Str(log.FieldKey, key).Str("source", "environment").Msg("using environment variable")
		return value
	}
	logger.Debug().Str(log.FieldKey, key).Str("default", defaultValue).Str("source", "default").Msg("using default value")
	return defaultValue
}

// ParseInt reads an int64 from an environment variable or returns the default.
// Malformed values are logged and fall back to the default.
func ParseInt(key string, defaultValue int64) int64 {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			logger.Warn().Str(log.FieldKey, key).Str("value", value).Err(err).Msg("invalid integer in environment, using default")
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// ParseFloat reads a float64 from an environment variable or returns the default.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			logger.Warn().Str(log.FieldKey, key).Str("value", value).Err(err).Msg("invalid float in environment, using default")
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// ParseDuration reads a time.Duration (Go duration syntax) from an
// environment variable or returns the default.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			logger.Warn().Str(log.FieldKey, key).Str("value", value).Err(err).Msg("invalid duration in environment, using default")
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
