package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/orgmetrics/internal/browser"
	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/identity"
	"github.com/sells-group/orgmetrics/internal/policy"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/internal/resolver"
	"github.com/sells-group/orgmetrics/internal/strategy"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// resolverEnv holds the orchestrator and the resources the resolve and serve
// commands must release.
type resolverEnv struct {
	Orchestrator *resolver.Orchestrator
	Browsers     *browser.Manager // nil when the browser is disabled
	shutdown     func(context.Context) error
}

// Close stops the browser and flushes pending spans.
func (e *resolverEnv) Close() {
	if e.Browsers != nil {
		if err := e.Browsers.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
	}
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.shutdown(ctx); err != nil {
			zap.L().Warn("flush traces", zap.Error(err))
		}
	}
}

// initResolver validates config for mode and wires the upstream client,
// identity cascade, strategies and orchestrator. Callers should defer
// env.Close().
func initResolver(ctx context.Context, mode string) (*resolverEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return nil, err
	}

	shutdown, err := initTracing(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	env := &resolverEnv{shutdown: shutdown}

	creds := credentials.NewStatic(cfg.LinkedIn.SessionCookie, credentials.WithUserAgent(cfg.LinkedIn.UserAgent))
	if !creds.Healthy(ctx) {
		zap.L().Info("no session cookie configured; structured strategy disabled")
	}

	retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs, cfg.Retry.Multiplier, cfg.Retry.JitterFraction)
	client := linkedin.NewClient(creds,
		linkedin.WithBaseURL(cfg.LinkedIn.BaseURL),
		linkedin.WithLimiter(rate.NewLimiter(rate.Limit(cfg.LinkedIn.RPS), max(cfg.LinkedIn.Burst, 1))),
		linkedin.WithTimeout(time.Duration(cfg.LinkedIn.TimeoutSecs)*time.Second),
		linkedin.WithRetry(retry),
	)

	ids := identity.NewResolver(identity.DefaultSources(client, creds, pol.Queries.CompanyLookup)...)

	strategies := []strategy.Strategy{
		strategy.NewStructured(client, creds, pol, resilience.FromPacingConfig(cfg.Pacing.StructuredMinMs, cfg.Pacing.StructuredMaxMs)),
		strategy.NewSemiStructured(client, pol, resilience.FromPacingConfig(cfg.Pacing.SemiMinMs, cfg.Pacing.SemiMaxMs)),
	}
	if cfg.Browser.Enabled {
		env.Browsers = browser.NewManager(browser.ChromeLauncher(browser.ChromeOptions{
			Headless:  cfg.Browser.Headless,
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.LinkedIn.UserAgent,
			Width:     cfg.Browser.Width,
			Height:    cfg.Browser.Height,
		}), creds)

		nav := resilience.NavigationRetryConfig()
		nav.MaxAttempts = retry.MaxAttempts
		nav.OnRetry = resilience.RetryLogger("rendered", "navigate")
		strategies = append(strategies, strategy.NewRendered(env.Browsers, pol,
			resilience.FromPacingConfig(cfg.Pacing.RenderedMinMs, cfg.Pacing.RenderedMaxMs), nav))
	}

	breakerCfg := resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		zap.L().Warn("resolver: circuit state changed",
			zap.String("strategy", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	defaultMode, err := resolver.ParseMode(cfg.Resolve.Mode)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Orchestrator = resolver.New(ids, strategies,
		resolver.WithBreakers(resilience.NewServiceBreakers(breakerCfg)),
		resolver.WithStrategyGap(resilience.FromPacingConfig(cfg.Pacing.StrategyGapMs, cfg.Pacing.StrategyGapMs)),
		resolver.WithCallTimeout(cfg.Resolve.CallTimeout()),
		resolver.WithTimeout(cfg.Resolve.Timeout()),
		resolver.WithDefaultMode(defaultMode),
	)
	return env, nil
}
