package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures that are expected to clear on a later run
	// (network timeouts, rate limits, flaky upstreams).
	ErrTransient = errors.New("transient failure")
	// ErrUnavailable marks content that the upstream reports as missing or
	// inaccessible (private video, no captions published).
	ErrUnavailable = errors.New("content unavailable")
	// ErrValidation marks malformed input or output (empty transcript,
	// unparseable response body).
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent local configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrQuota marks upstream quota or billing exhaustion.
	ErrQuota = errors.New("quota exhausted")
	// ErrAuth marks rejected credentials (invalid or expired API key).
	ErrAuth = errors.New("authentication error")
)

// Wrap builds an error message that includes adapter context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason extracts a human-readable failure reason suitable for persisting on
// an item. It strips nothing; the wrapped chain already reads top-down.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
