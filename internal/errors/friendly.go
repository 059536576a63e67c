// internal/errors/friendly.go
package errors

import (
	"context"
	"errors"
	"net"
)

// FriendlyError is the user-facing rendition of a failure: a short title,
// a plain-language message, a recovery suggestion, and whether a retry of
// the same action can reasonably succeed.
//
// Nothing in the studio retries automatically; Retryable only controls
// whether the UI offers a retry button.
type FriendlyError struct {
	Category  string `json:"category"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Recovery  string `json:"recovery,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Friendly translates any error into its user-facing form. Unknown errors
// collapse into a generic retryable category rather than leaking internals.
func Friendly(err error) *FriendlyError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return friendlyFromType(appErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FriendlyError{
			Category:  "timeout",
			Title:     "Request timed out",
			Message:   "The generation service took too long to respond.",
			Recovery:  "Try again in a moment.",
			Retryable: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &FriendlyError{
			Category:  "network",
			Title:     "Connection problem",
			Message:   "We couldn't reach the generation service.",
			Recovery:  "Check your connection and try again.",
			Retryable: true,
		}
	}

	return &FriendlyError{
		Category:  "unknown",
		Title:     "Something went wrong",
		Message:   "An unexpected error occurred.",
		Recovery:  "Try again, and contact support if it keeps happening.",
		Retryable: true,
	}
}

func friendlyFromType(appErr *AppError) *FriendlyError {
	switch appErr.Type {
	case ErrorTypeValidation:
		return &FriendlyError{
			Category:  "validation",
			Title:     "Check your input",
			Message:   appErr.Message,
			Retryable: false,
		}
	case ErrorTypeNotFound:
		return &FriendlyError{
			Category:  "not_found",
			Title:     "Not found",
			Message:   appErr.Message,
			Recovery:  "It may have been deleted, or the link is stale.",
			Retryable: false,
		}
	case ErrorTypeUnauthorized:
		return &FriendlyError{
			Category:  "auth",
			Title:     "Not signed in",
			Message:   "Your session is missing or expired.",
			Recovery:  "Sign in again and retry.",
			Retryable: false,
		}
	case ErrorTypeForbidden:
		return &FriendlyError{
			Category:  "auth",
			Title:     "No access",
			Message:   appErr.Message,
			Retryable: false,
		}
	case ErrorTypeConflict:
		return &FriendlyError{
			Category:  "conflict",
			Title:     "Action not possible right now",
			Message:   appErr.Message,
			Recovery:  "Wait for the current operation to finish.",
			Retryable: true,
		}
	case ErrorTypeTimeout:
		return &FriendlyError{
			Category:  "timeout",
			Title:     "Request timed out",
			Message:   "The generation service took too long to respond.",
			Recovery:  "Try again in a moment.",
			Retryable: true,
		}
	case ErrorTypeUnavailable:
		return &FriendlyError{
			Category:  "service",
			Title:     "Service unavailable",
			Message:   "The generation service is temporarily unavailable.",
			Recovery:  "Try again in a few minutes.",
			Retryable: true,
		}
	case ErrorTypeMedia:
		return &FriendlyError{
			Category:  "media",
			Title:     "Playback problem",
			Message:   appErr.Message,
			Recovery:  "Reload the clip and try again.",
			Retryable: true,
		}
	default:
		return &FriendlyError{
			Category:  "processing",
			Title:     "Something went wrong",
			Message:   appErr.Message,
			Recovery:  "Try again, and contact support if it keeps happening.",
			Retryable: true,
		}
	}
}
