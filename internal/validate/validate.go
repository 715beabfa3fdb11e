// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates configuration validation failures.
package validate

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Error represents a validation error
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors.
type Validator struct {
	errors []Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

func New() *Validator {
	return &Validator{errors: make([]Error, 0)}
}

func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// Errors returns the individual validation errors making up the failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Range validates that an integer is within a specified range (inclusive)
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value), value)
	}
}

// Positive validates that a number is positive (> 0)
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

// DurationRange validates that d lies in [minVal, maxVal].
func (v *Validator) DurationRange(field string, d, minVal, maxVal time.Duration) {
	if d < minVal || d > maxVal {
		v.AddError(field, fmt.Sprintf("duration must be between %s and %s, got %s", minVal, maxVal, d), d)
	}
}

// NotEmpty validates that a string is not empty or whitespace-only
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf validates that a value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) {
	if slices.Contains(allowed, value) {
		return
	}
	v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
}

// Directory validates a directory path. When mustExist is false a missing
// directory is created.
func (v *Validator) Directory(field, path string, mustExist bool) {
	if path == "" {
		v.AddError(field, "directory path cannot be empty", path)
		return
	}
	if strings.Contains(path, "..") {
		v.AddError(field, "path contains traversal sequences (..)", path)
		return
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid path: %v", err), path)
		return
	}

	info, err := os.Stat(absPath)
	switch {
	case os.IsNotExist(err) && mustExist:
		v.AddError(field, "directory does not exist", path)
	case os.IsNotExist(err):
		if err := os.MkdirAll(absPath, 0o750); err != nil {
			v.AddError(field, fmt.Sprintf("cannot create directory: %v", err), path)
		}
	case err != nil:
		v.AddError(field, fmt.Sprintf("cannot access directory: %v", err), path)
	case !info.IsDir():
		v.AddError(field, "path is not a directory", path)
	}
}

// ListenAddr validates a host:port listen address. The host may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), addr)
		return
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		v.AddError(field, fmt.Sprintf("invalid port %q", port), addr)
	}
}

// URLPath validates an absolute URL path prefix such as /streams.
func (v *Validator) URLPath(field, value string) {
	if !strings.HasPrefix(value, "/") {
		v.AddError(field, "must start with /", value)
		return
	}
	if strings.ContainsAny(value, "?#") || strings.Contains(value, "..") {
		v.AddError(field, "must be a plain path", value)
	}
}
