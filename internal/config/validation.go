package config

import (
	"fmt"
	neturl "net/url"
	"strings"

	friendlyerrors "giftscope/internal/errors"
)

// ValidationError represents a detailed config validation error
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Config validation error in '%s': %s", e.Field, e.Message)
}

// ValidateDetailed performs comprehensive validation with friendly error messages
func (c *Config) ValidateDetailed() []ValidationError {
	var errs []ValidationError

	if c.Version != 1 {
		errs = append(errs, ValidationError{
			Field:      "version",
			Value:      c.Version,
			Message:    fmt.Sprintf("Unsupported version: %d", c.Version),
			Suggestion: "Use version: 1",
		})
	}

	if c.General.DataRoot == "" {
		errs = append(errs, ValidationError{
			Field:      "general.data_root",
			Message:    "Required field missing",
			Suggestion: "Set to a directory for giftscope data:\n  data_root: ~/.local/share/giftscope",
		})
	}

	// API section
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		errs = append(errs, ValidationError{
			Field:      "api.base_url",
			Message:    "Required field missing",
			Suggestion: "Point it at the marketplace API:\n  base_url: https://api.example.com/v1",
		})
	} else if u, err := neturl.Parse(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:      "api.base_url",
			Value:      c.API.BaseURL,
			Message:    "Must be an absolute http(s) URL",
			Suggestion: "Example: https://api.example.com/v1",
		})
	}

	if c.API.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:      "api.timeout_seconds",
			Value:      c.API.TimeoutSeconds,
			Message:    "Must be at least 1 second",
			Suggestion: "Recommended: 10-60 seconds",
		})
	}

	if c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:      "api.max_retries",
			Value:      c.API.MaxRetries,
			Message:    "Unusually high (>10 retries)",
			Suggestion: "Interactive filtering feels sluggish past 2-3 retries",
		})
	}

	if c.API.Backoff.MinMS < 0 {
		errs = append(errs, ValidationError{
			Field:      "api.backoff.min_ms",
			Value:      c.API.Backoff.MinMS,
			Message:    "Must be >= 0",
			Suggestion: "Recommended: 100-500 ms",
		})
	}

	if c.API.Backoff.MaxMS < c.API.Backoff.MinMS {
		errs = append(errs, ValidationError{
			Field:      "api.backoff.max_ms",
			Value:      c.API.Backoff.MaxMS,
			Message:    "max_ms must be >= min_ms",
			Suggestion: fmt.Sprintf("Set max_ms to at least %d", c.API.Backoff.MinMS),
		})
	}

	// Filters section
	if c.Filters.PageSize < 1 || c.Filters.PageSize > 200 {
		errs = append(errs, ValidationError{
			Field:      "filters.page_size",
			Value:      c.Filters.PageSize,
			Message:    "Must be between 1 and 200",
			Suggestion: "Recommended: 24",
		})
	}

	if c.Filters.PreviewDebounceMS > 5000 {
		errs = append(errs, ValidationError{
			Field:      "filters.preview_debounce_ms",
			Value:      c.Filters.PreviewDebounceMS,
			Message:    "Very long quiet period (>5s)",
			Suggestion: "The live count will feel unresponsive; try 300-800 ms",
		})
	}

	if !isKnownSort(c.Filters.DefaultSort) {
		errs = append(errs, ValidationError{
			Field:      "filters.default_sort",
			Value:      c.Filters.DefaultSort,
			Message:    "Unknown sort option",
			Suggestion: "Use one of: price_asc, price_desc, number_asc, number_desc, newest",
		})
	}

	lvl := strings.ToLower(c.Logging.Level)
	validLevels := []string{"", "debug", "info", "warn", "error"}
	found := false
	for _, valid := range validLevels {
		if lvl == valid {
			found = true
			break
		}
	}
	if !found {
		errs = append(errs, ValidationError{
			Field:      "logging.level",
			Value:      c.Logging.Level,
			Message:    "Invalid log level",
			Suggestion: "Use one of: debug, info, warn, error",
		})
	}

	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		errs = append(errs, ValidationError{
			Field:      "logging.file.path",
			Message:    "File logging enabled without a path",
			Suggestion: "Set path: ~/.local/share/giftscope/giftscope.log",
		})
	}

	if c.Metrics.PrometheusTextfile.Enabled && strings.TrimSpace(c.Metrics.PrometheusTextfile.Path) == "" {
		errs = append(errs, ValidationError{
			Field:      "metrics.prometheus_textfile.path",
			Message:    "Textfile metrics enabled without a path",
			Suggestion: "Set path: /var/lib/node_exporter/textfile/giftscope.prom",
		})
	}

	return errs
}

// ValidateWithFriendlyErrors returns a user-friendly validation error
func (c *Config) ValidateWithFriendlyErrors() error {
	if err := c.Validate(); err != nil {
		return err
	}

	errs := c.ValidateDetailed()
	if len(errs) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString("Configuration validation failed:\n\n")

	for i, err := range errs {
		msg.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
		if err.Value != nil {
			msg.WriteString(fmt.Sprintf("   Current value: %v\n", err.Value))
		}
		if err.Suggestion != "" {
			for _, line := range strings.Split(err.Suggestion, "\n") {
				msg.WriteString(fmt.Sprintf("   → %s\n", line))
			}
		}
		msg.WriteString("\n")
	}

	return friendlyerrors.NewFriendlyError(
		"Config validation failed",
		msg.String(),
	)
}
