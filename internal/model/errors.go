package model

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidReferenceError is returned for malformed references or hosts outside
// the allowed domain family. No cascade is attempted.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid company reference %q: %s", e.Reference, e.Reason)
}

// OrganizationNotResolvedError is returned when every org-ID step failed. The
// message concatenates each step's failure.
type OrganizationNotResolvedError struct {
	Slug   string
	Causes []error
}

func (e *OrganizationNotResolvedError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, c.Error())
	}
	return fmt.Sprintf("organization %q not resolved: %s", e.Slug, strings.Join(parts, "; "))
}

// Unwrap exposes the per-step causes to errors.Is / errors.As.
func (e *OrganizationNotResolvedError) Unwrap() []error {
	return e.Causes
}

// AuthRequiredError means the upstream redirected to a login or challenge page.
type AuthRequiredError struct {
	URL string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("authentication required: redirected to %s", e.URL)
}

// UpstreamThrottledError is an HTTP 429 from the upstream.
type UpstreamThrottledError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamThrottledError) Error() string {
	return fmt.Sprintf("upstream throttled (status %d): %s", e.StatusCode, e.URL)
}

// UpstreamBlockedError is an access denial (HTTP 403 or a challenge wall).
type UpstreamBlockedError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *UpstreamBlockedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream blocked (%s): %s", e.Reason, e.URL)
	}
	return fmt.Sprintf("upstream blocked (status %d): %s", e.StatusCode, e.URL)
}

// ParseFailure means a response was fetched but nothing matched the expected shape.
type ParseFailure struct {
	What string
}

func (e *ParseFailure) Error() string {
	return "no match: " + e.What
}

// TerminalDataSource returns the data source tag for errors that must stop
// the cascade for a metric, or "" when err is not terminal.
func TerminalDataSource(err error) string {
	if err == nil {
		return ""
	}
	var throttled *UpstreamThrottledError
	if errors.As(err, &throttled) {
		return DataSourceRateLimited
	}
	var blocked *UpstreamBlockedError
	if errors.As(err, &blocked) {
		return DataSourceBlocked
	}
	return ""
}

// IsAuthRequired reports whether err carries an AuthRequiredError.
func IsAuthRequired(err error) bool {
	var auth *AuthRequiredError
	return errors.As(err, &auth)
}
