// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/camio/internal/log"
	"github.com/rs/zerolog"
)

// lookup returns the raw value of key and logs where the effective value came from.
// Empty variables count as unset.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return "", false
	}
	return v, true
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "token") || strings.Contains(lower, "password")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	evt := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		evt = evt.Bool("sensitive", true)
	} else {
		evt = evt.Str("value", v)
	}
	evt.Msg("using environment variable")
	return v
}

// ParseInt reads an integer from environment variable. Invalid values fall back
// to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a duration in Go format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Dur("default", defaultValue).Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool accepts true/false, 1/0 and yes/no (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		logger.Warn().Str("key", key).Str("value", v).Bool("default", defaultValue).Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
}
