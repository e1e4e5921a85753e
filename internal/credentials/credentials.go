// Package credentials exposes the read-only session capability consumed by the
// strategies. Storage and refresh of the session live elsewhere.
package credentials

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mazen160/go-random"
	"github.com/rotisserie/eris"
)

// SessionCookieName is the upstream's authenticated session cookie.
const SessionCookieName = "li_at"

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Headers are the per-request authentication headers.
type Headers struct {
	Cookie           string
	AntiForgeryToken string
	UserAgent        string
}

// Apply writes h onto an outbound header set.
func (h Headers) Apply(dst http.Header) {
	if h.Cookie != "" {
		dst.Set("Cookie", h.Cookie)
	}
	if h.AntiForgeryToken != "" {
		dst.Set("Csrf-Token", h.AntiForgeryToken)
	}
	if h.UserAgent != "" {
		dst.Set("User-Agent", h.UserAgent)
	}
}

// Provider is the credential capability. Implementations must be safe for
// concurrent use; callers never mutate or refresh them.
type Provider interface {
	// BuildAuthHeaders returns headers carrying a freshly minted
	// anti-forgery token.
	BuildAuthHeaders(ctx context.Context) (Headers, error)
	// Healthy reports whether an authenticated session is available.
	Healthy(ctx context.Context) bool
	// SessionCookie returns the session cookie for browser injection.
	SessionCookie() (*http.Cookie, bool)
}

// Static serves a fixed session cookie from configuration. An empty session
// makes it an anonymous provider.
type Static struct {
	session   string
	userAgent string
	expiresAt time.Time
	nowFunc   func() time.Time
}

// Option configures a Static provider.
type Option func(*Static)

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(s *Static) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithExpiry marks the session stale after t.
func WithExpiry(t time.Time) Option {
	return func(s *Static) { s.expiresAt = t }
}

// NewStatic builds a provider for the given li_at value.
func NewStatic(session string, opts ...Option) *Static {
	s := &Static{
		session:   strings.TrimSpace(session),
		userAgent: DefaultUserAgent,
		nowFunc:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BuildAuthHeaders mints a token and pairs it with a matching JSESSIONID so
// the upstream's double-submit check passes.
func (s *Static) BuildAuthHeaders(_ context.Context) (Headers, error) {
	token, err := NewToken()
	if err != nil {
		return Headers{}, err
	}
	cookie := `JSESSIONID="` + token + `"`
	if s.session != "" {
		cookie = SessionCookieName + "=" + s.session + "; " + cookie
	}
	return Headers{Cookie: cookie, AntiForgeryToken: token, UserAgent: s.userAgent}, nil
}

// Healthy reports whether a session is configured and not expired.
func (s *Static) Healthy(_ context.Context) bool {
	if s.session == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.nowFunc().Before(s.expiresAt)
}

// SessionCookie returns the li_at cookie scoped to the upstream domain.
func (s *Static) SessionCookie() (*http.Cookie, bool) {
	if s.session == "" {
		return nil, false
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.session,
		Domain:   ".linkedin.com",
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		Expires:  s.expiresAt,
	}, true
}

// NewToken returns a fresh anti-forgery token in the upstream's "ajax:" form.
func NewToken() (string, error) {
	suffix, err := random.String(19)
	if err != nil {
		return "", eris.Wrap(err, "credentials: generate token")
	}
	return "ajax:" + suffix, nil
}
