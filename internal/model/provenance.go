package model

import (
	"sync"
	"time"
)

// ResolutionAttempt records a single strategy or identity step.
type ResolutionAttempt struct {
	Strategy     string     `json:"strategy"`
	Metric       MetricKind `json:"metric,omitempty"`
	Step         string     `json:"step,omitempty"`
	Succeeded    bool       `json:"succeeded"`
	ErrorMessage *string    `json:"errorMessage"`
	LatencyMs    int64      `json:"latencyMs"`
}

// NewAttempt builds an attempt from the outcome of a timed call.
func NewAttempt(strategy string, metric MetricKind, step string, started time.Time, err error) ResolutionAttempt {
	a := ResolutionAttempt{
		Strategy:  strategy,
		Metric:    metric,
		Step:      step,
		Succeeded: err == nil,
		LatencyMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		msg := err.Error()
		a.ErrorMessage = &msg
	}
	return a
}

// AttemptLog is an append-only attempt list safe for concurrent use.
type AttemptLog struct {
	mu    sync.Mutex
	items []ResolutionAttempt
}

// Append adds attempts to the log.
func (l *AttemptLog) Append(attempts ...ResolutionAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, attempts...)
}

// Snapshot returns a copy of the attempts recorded so far.
func (l *AttemptLog) Snapshot() []ResolutionAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ResolutionAttempt, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of recorded attempts.
func (l *AttemptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Failed returns the failed attempts recorded for a strategy.
func (l *AttemptLog) Failed(strategy string) []ResolutionAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ResolutionAttempt
	for _, a := range l.items {
		if a.Strategy == strategy && !a.Succeeded {
			out = append(out, a)
		}
	}
	return out
}
