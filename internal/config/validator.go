package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "fit.steps")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Valid option values.
var (
	ValidModels     = []string{"linear", "gaussian", "polynomial"}
	ValidMethods    = []string{"lbfgs", "gd", "sgd", "adam"}
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"text", "json"}
)

// Validate checks the configuration and returns every problem found, or nil.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if len(c.Data.X) == 0 {
		add("data.x", c.Data.X, "must not be empty")
	}
	if len(c.Data.X) != len(c.Data.Y) {
		add("data.y", len(c.Data.Y), fmt.Sprintf("must have the same length as data.x (%d)", len(c.Data.X)))
	}

	if !slices.Contains(ValidModels, c.Model.Name) {
		add("model.name", c.Model.Name, "must be one of "+strings.Join(ValidModels, ", "))
	}
	if c.Model.Degree < 0 {
		add("model.degree", c.Model.Degree, "must be >= 0")
	}

	if !slices.Contains(ValidMethods, c.Fit.Method) {
		add("fit.method", c.Fit.Method, "must be one of "+strings.Join(ValidMethods, ", "))
	}
	if c.Fit.Steps <= 0 {
		add("fit.steps", c.Fit.Steps, "must be > 0")
	}
	if (c.Fit.Method == "sgd" || c.Fit.Method == "adam") && c.Fit.LR <= 0 {
		add("fit.lr", c.Fit.LR, "must be > 0")
	}
	if c.Fit.Momentum < 0 || c.Fit.Momentum >= 1 {
		add("fit.momentum", c.Fit.Momentum, "must be in [0, 1)")
	}
	if c.Fit.Chains < 1 {
		add("fit.chains", c.Fit.Chains, "must be >= 1")
	}
	if c.Fit.Jitter < 0 {
		add("fit.jitter", c.Fit.Jitter, "must be >= 0")
	}

	if c.Prior.Sigma < 0 {
		add("prior.sigma", c.Prior.Sigma, "must be >= 0")
	}

	if !slices.Contains(ValidLogLevels, strings.ToLower(c.Log.Level)) {
		add("log.level", c.Log.Level, "must be one of "+strings.Join(ValidLogLevels, ", "))
	}
	if !slices.Contains(ValidLogFormats, strings.ToLower(c.Log.Format)) {
		add("log.format", c.Log.Format, "must be one of "+strings.Join(ValidLogFormats, ", "))
	}

	return errs
}
