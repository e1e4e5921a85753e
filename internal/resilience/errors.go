package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/orgmetrics/internal/model"
)

// TransientError marks a failure that is safe to retry, such as a 5xx or a
// dropped connection.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"net::err_connection_reset",
	"net::err_timed_out",
	"net::err_network_changed",
}

// IsTerminal reports errors that must never be retried: login redirects,
// throttling and access denial.
func IsTerminal(err error) bool {
	return model.TerminalDataSource(err) != "" || model.IsAuthRequired(err)
}

// IsTransient reports whether err is worth another attempt. Throttling and
// blocks are never transient here; they end the metric's cascade instead.
func IsTransient(err error) bool {
	if err == nil || IsTerminal(err) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports retryable upstream statuses. 429 is absent:
// it is mapped to model.UpstreamThrottledError.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
