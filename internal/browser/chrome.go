package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ChromeOptions configures the chromedp-backed launcher.
type ChromeOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
}

// ChromeLauncher returns a Launcher that starts a local Chrome via chromedp.
func ChromeLauncher(opts ChromeOptions) Launcher {
	return func(ctx context.Context) (Session, error) {
		allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}
		if opts.Width > 0 && opts.Height > 0 {
			allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
		}

		// The browser is rooted in Background so caller cancellation never
		// tears down the shared session.
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		s := &chromeSession{ctx: browserCtx, cancel: func() { cancelBrowser(); cancelAlloc() }}

		if err := startBound(ctx, browserCtx); err != nil {
			s.cancel()
			return nil, eris.Wrap(err, "browser: start chrome")
		}
		return s, nil
	}
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the browser's root target, aborting them (but not
// the browser) when caller ends.
func (s *chromeSession) run(caller context.Context, actions ...chromedp.Action) error {
	return runBound(caller, s.ctx, actions...)
}

func (s *chromeSession) OpenPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	p := &chromePage{ctx: tabCtx, cancel: cancel}
	if err := startBound(ctx, tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, eris.Wrap(err, "browser: open tab")
	}
	return p, nil
}

func (s *chromeSession) HasCookie(ctx context.Context, name string) (bool, error) {
	var found bool
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == name {
				found = true
				break
			}
		}
		return nil
	}))
	return found, err
}

func (s *chromeSession) SetCookie(ctx context.Context, c *http.Cookie) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(c.Name, c.Value).
			WithDomain(c.Domain).
			WithPath(c.Path).
			WithSecure(c.Secure).
			WithHTTPOnly(c.HttpOnly).
			Do(ctx)
	}))
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) run(caller context.Context, actions ...chromedp.Action) error {
	return runBound(caller, p.ctx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) (string, error) {
	var final string
	err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&final),
	)
	if err != nil {
		return final, eris.Wrapf(err, "browser: navigate %s", url)
	}
	return final, nil
}

func (p *chromePage) Text(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var markup string
	err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery))
	return markup, err
}

const clickTextScript = `(function(labels) {
  const wanted = labels.map(l => l.trim().toLowerCase());
  const nodes = document.querySelectorAll('button, a, [role="button"]');
  for (const n of nodes) {
    const t = (n.innerText || '').trim().toLowerCase();
    if (wanted.includes(t)) { n.click(); return true; }
  }
  return false;
})(%s)`

func (p *chromePage) ClickText(ctx context.Context, labels []string) (bool, error) {
	arg, err := json.Marshal(labels)
	if err != nil {
		return false, eris.Wrap(err, "browser: encode labels")
	}
	var clicked bool
	script := strings.Replace(clickTextScript, "%s", string(arg), 1)
	if err := p.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

func (p *chromePage) InterceptJSON(_ context.Context, fn func(url string, body []byte)) (func(), error) {
	var (
		flight  inflight
		pending sync.Map // network.RequestID -> url
		mu      sync.Mutex
	)

	chromedp.ListenTarget(p.ctx, func(ev any) {
		if flight.stopping() {
			return
		}
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Response != nil && strings.Contains(strings.ToLower(e.Response.MimeType), "json") {
				pending.Store(e.RequestID, e.Response.URL)
			}
		case *network.EventLoadingFinished:
			v, ok := pending.LoadAndDelete(e.RequestID)
			if !ok || !flight.begin() {
				return
			}
			// Bodies must be fetched off the event goroutine.
			go func(id network.RequestID, url string) {
				defer flight.done()
				c := chromedp.FromContext(p.ctx)
				body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(p.ctx, c.Target))
				if err != nil {
					zap.L().Debug("browser: response body unavailable", zap.String("url", url), zap.Error(err))
					return
				}
				if flight.stopping() {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				fn(url, body)
			}(e.RequestID, v.(string))
		}
	})

	return flight.stop, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// runBound runs actions against target but aborts them when caller is done,
// leaving the target itself alive.
func runBound(caller, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	stop := context.AfterFunc(caller, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if caller.Err() != nil {
			return eris.Wrap(caller.Err(), "browser: caller cancelled")
		}
		return err
	}
	return nil
}

// startBound performs the first Run on a fresh chromedp context, which
// allocates the browser or tab. That Run must use the context itself, so the
// caller's deadline is enforced by waiting instead of deriving.
func startBound(caller, target context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(target, actions...) }()
	select {
	case err := <-done:
		return err
	case <-caller.Done():
		return caller.Err()
	}
}
