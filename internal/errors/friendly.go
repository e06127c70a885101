package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// UserFriendlyError provides actionable error messages for end users
type UserFriendlyError struct {
	Message    string // User-facing message explaining what went wrong
	Suggestion string // Actionable steps to fix the issue
	Details    error  // Original error for debugging/logs
}

func (e *UserFriendlyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString("How to fix:\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *UserFriendlyError) Unwrap() error {
	return e.Details
}

// NewFriendlyError creates a user-friendly error
func NewFriendlyError(message, suggestion string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// WithDetails adds the underlying error details
func (e *UserFriendlyError) WithDetails(err error) *UserFriendlyError {
	e.Details = err
	return e
}

// Friendly converts any error into a UserFriendlyError for CLI output.
// Errors that already are friendly pass through unchanged.
func Friendly(err error) *UserFriendlyError {
	if err == nil {
		return nil
	}
	var fe *UserFriendlyError
	if stderrors.As(err, &fe) {
		return fe
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return &UserFriendlyError{Message: err.Error(), Details: err}
	}
	switch e.Kind {
	case KindNetwork:
		return networkHelp(e)
	case KindAPI:
		return apiHelp(e)
	default:
		return &UserFriendlyError{Message: e.Message, Details: err}
	}
}

func networkHelp(e *Error) *UserFriendlyError {
	msg := "Network error occurred"
	suggestion := "Check your internet connection and try again"

	errStr := ""
	if e.Err != nil {
		errStr = e.Err.Error()
	}

	// DNS resolution failure
	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "name resolution") {
		msg = "Cannot resolve hostname - DNS lookup failed"
		suggestion = "1. Check your internet connection\n2. Verify api.base_url in the config\n3. Verify DNS settings"
	}

	if strings.Contains(errStr, "connection refused") {
		msg = "Server refused connection"
		suggestion = "The API may be down or blocking requests. Try again later."
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		msg = "Connection timed out"
		suggestion = "The API is slow or unreachable. Try:\n1. Increase api.timeout_seconds\n2. Check your network\n3. Try again later"
	}

	if strings.Contains(errStr, "certificate") || strings.Contains(errStr, "x509") {
		msg = "SSL/TLS certificate verification failed"
		suggestion = "You may be behind a corporate proxy; make sure its CA is trusted by the system"
	}

	return &UserFriendlyError{Message: msg, Suggestion: suggestion, Details: e}
}

func apiHelp(e *Error) *UserFriendlyError {
	switch e.Status {
	case 401, 403:
		return &UserFriendlyError{
			Message:    fmt.Sprintf("Authentication failed (%d)", e.Status),
			Suggestion: "Export the token named by api.token_env, e.g.\n  export GIFTSCOPE_TOKEN=...",
			Details:    e,
		}
	case 404:
		return &UserFriendlyError{
			Message:    "Collection not found",
			Suggestion: "Check the collection name; names are matched exactly by the API",
			Details:    e,
		}
	case 429:
		return &UserFriendlyError{
			Message:    "Rate limited by the API",
			Suggestion: "Wait a moment and retry, or raise api.backoff.max_ms",
			Details:    e,
		}
	}
	return &UserFriendlyError{Message: e.Message, Details: e}
}

// ConfigError returns configuration-related errors
func ConfigError(field, issue string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Configuration error in field '%s': %s", field, issue),
		Suggestion: "Run 'giftscope config validate' to check your configuration\nOr run 'giftscope config init' to create a new configuration interactively",
	}
}

// DatabaseError returns database-related errors with recovery suggestions
func DatabaseError(err error) *UserFriendlyError {
	msg := "Database error"
	suggestion := "Try running: giftscope cache clear"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "locked") {
			msg = "Database is locked by another process"
			suggestion = "Close other giftscope instances and try again"
		}

		if strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") {
			msg = "Database is corrupted"
			suggestion = "Remove state.db under general.data_root; it only holds cached catalogs and recent collections"
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}
