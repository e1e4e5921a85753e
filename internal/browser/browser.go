// Package browser manages the shared rendered-browser session. The engine
// itself sits behind Session and Page so strategies and tests never touch it.
package browser

import (
	"context"
	"net/http"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orgmetrics/internal/credentials"
)

// Page is one browser tab.
type Page interface {
	// Navigate loads url and returns the URL the tab ended on.
	Navigate(ctx context.Context, url string) (string, error)
	// Text returns the rendered text of the document body.
	Text(ctx context.Context) (string, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// ClickText clicks the first button or link whose text equals one of
	// labels. It reports whether anything was clicked.
	ClickText(ctx context.Context, labels []string) (bool, error)
	// InterceptJSON calls fn with the URL and body of every JSON response the
	// tab receives until stop is called. stop waits for in-flight callbacks.
	InterceptJSON(ctx context.Context, fn func(url string, body []byte)) (stop func(), err error)
	Close() error
}

// Session is a long-lived browser instance.
type Session interface {
	OpenPage(ctx context.Context) (Page, error)
	HasCookie(ctx context.Context, name string) (bool, error)
	SetCookie(ctx context.Context, c *http.Cookie) error
	Close() error
}

// Provider hands out the shared session.
type Provider interface {
	Session(ctx context.Context) (Session, error)
}

// Launcher starts a new session. ctx bounds the launch only; the session
// outlives it.
type Launcher func(ctx context.Context) (Session, error)

// Manager lazily launches one session, reuses it across calls, and injects
// the session cookie once.
type Manager struct {
	launch Launcher
	creds  credentials.Provider

	mu        sync.Mutex
	session   Session
	cookieSet bool
}

// NewManager builds a manager. creds may be nil for anonymous sessions.
func NewManager(launch Launcher, creds credentials.Provider) *Manager {
	return &Manager{launch: launch, creds: creds}
}

// Session returns the shared session, launching it on first use. Concurrent
// callers wait for the single in-flight launch. A failed launch is not
// cached.
func (m *Manager) Session(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		zap.L().Info("browser: launching session")
		s, err := m.launch(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "browser: launch")
		}
		m.session = s
	}

	if err := m.ensureCookie(ctx); err != nil {
		zap.L().Warn("browser: session cookie not injected", zap.Error(err))
	}
	return m.session, nil
}

// ensureCookie adds the credential cookie only if the session lacks it.
func (m *Manager) ensureCookie(ctx context.Context) error {
	if m.cookieSet || m.creds == nil {
		return nil
	}
	cookie, ok := m.creds.SessionCookie()
	if !ok {
		return nil
	}

	present, err := m.session.HasCookie(ctx, cookie.Name)
	if err != nil {
		return eris.Wrap(err, "browser: read cookies")
	}
	if !present {
		if err := m.session.SetCookie(ctx, cookie); err != nil {
			return eris.Wrap(err, "browser: set cookie")
		}
	}
	m.cookieSet = true
	return nil
}

// Close shuts the session down. The next Session call launches a new one.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	m.cookieSet = false
	return err
}

// inflight tracks callbacks started from an event listener. Once stop has
// begun no new callback is admitted, so the WaitGroup never grows during Wait.
type inflight struct {
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// begin admits one callback. It returns false after stop.
func (f *inflight) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) done() { f.wg.Done() }

func (f *inflight) stopping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// stop refuses new callbacks and waits for admitted ones.
func (f *inflight) stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.wg.Wait()
}
