package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// pluginNamePattern matches adapter names: an identifier, as a class name would be.
var pluginNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsJSONObject reports whether raw is a JSON object (not an array, scalar or null).
func IsJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// ValidateService checks a Service for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the service is valid.
func ValidateService(s *Service) error {
	var ve ValidationError

	if s.ClientID <= 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "client_id",
			Message: fmt.Sprintf("must be positive, got %d", s.ClientID),
		})
	}

	if s.Plugin != "" && !pluginNamePattern.MatchString(s.Plugin) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "plugin",
			Message: fmt.Sprintf("invalid name %q", s.Plugin),
		})
	}

	// Both blobs are optional, but when present they must be objects.
	if len(s.Config) > 0 && !IsJSONObject(s.Config) {
		ve.Errors = append(ve.Errors, FieldError{Field: "config", Message: "must be a JSON object"})
	}
	if len(s.PluginConfig) > 0 && !IsJSONObject(s.PluginConfig) {
		ve.Errors = append(ve.Errors, FieldError{Field: "plugin_config", Message: "must be a JSON object"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
