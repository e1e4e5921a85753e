// Package resolver turns a company reference into its employee and job counts.
// It resolves the organization identity, runs the strategy cascade for each
// metric concurrently, and merges the candidates.
package resolver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orgmetrics/internal/identity"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/resilience"
	"github.com/sells-group/orgmetrics/internal/strategy"
)

const tracerName = "github.com/sells-group/orgmetrics/internal/resolver"

// State is a resolution lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateResolvingIdentity
	StateRunningStrategies
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingIdentity:
		return "resolving_identity"
	case StateRunningStrategies:
		return "running_strategies"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IdentityResolver maps a normalized reference to an organization ID.
type IdentityResolver interface {
	Resolve(ctx context.Context, ref model.CompanyReference, log *model.AttemptLog) (model.OrganizationIdentity, error)
}

// Orchestrator runs resolutions. It is safe for concurrent use; nothing but
// the circuit breakers is shared between calls.
type Orchestrator struct {
	identity    IdentityResolver
	strategies  []strategy.Strategy
	breakers    *resilience.ServiceBreakers
	gap         resilience.Pacer
	callTimeout time.Duration
	timeout     time.Duration
	mode        Mode
	nowFunc     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBreakers shares a breaker set (one breaker per strategy name).
func WithBreakers(b *resilience.ServiceBreakers) Option {
	return func(o *Orchestrator) {
		o.breakers = b
	}
}

// WithStrategyGap sets the pause between strategy attempts for one metric.
func WithStrategyGap(p resilience.Pacer) Option {
	return func(o *Orchestrator) {
		o.gap = p
	}
}

// WithCallTimeout bounds each strategy attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithTimeout bounds a whole resolution. Zero means the caller's context only.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithDefaultMode sets the mode used when a call does not pass WithMode.
func WithDefaultMode(m Mode) Option {
	return func(o *Orchestrator) {
		o.mode = m
	}
}

// New builds an orchestrator. strategies are tried in the given order.
func New(identity IdentityResolver, strategies []strategy.Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		identity:    identity,
		strategies:  strategies,
		callTimeout: 90 * time.Second,
		mode:        ModeAuto,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breakers == nil {
		o.breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return o
}

// CallOption adjusts a single Resolve call.
type CallOption func(*callOptions)

type callOptions struct {
	mode Mode
}

// WithMode restricts the call to the strategies mode allows.
func WithMode(m Mode) CallOption {
	return func(c *callOptions) {
		c.mode = m
	}
}

// metricOutcome is everything the cascade produced for one metric.
type metricOutcome struct {
	candidates []model.MetricCandidate
	facts      *model.OrganizationFacts
	terminal   string
}

// Resolve runs one resolution. Only InvalidReferenceError and
// OrganizationNotResolvedError are returned as errors; strategy failures are
// reported through the result's attempts and data source.
func (o *Orchestrator) Resolve(ctx context.Context, reference string, opts ...CallOption) (*model.ResolutionResult, error) {
	call := callOptions{mode: o.mode}
	for _, opt := range opts {
		opt(&call)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver.resolve")
	defer span.End()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("reference", reference), zap.String("mode", string(call.mode)))
	state := StateIdle
	setState := func(next State) {
		log.Debug("resolver: state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}
	fail := func(err error) (*model.ResolutionResult, error) {
		setState(StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("resolver: resolution failed", zap.Error(err))
		return nil, err
	}

	ref, err := identity.Normalize(reference)
	if err != nil {
		return fail(err)
	}
	log = log.With(zap.String("company", ref.Slug))
	span.SetAttributes(attribute.String("company", ref.Slug))

	var attempts model.AttemptLog
	setState(StateResolvingIdentity)
	id, err := o.identity.Resolve(ctx, ref, &attempts)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.String("organization.id", id.ID))

	setState(StateRunningStrategies)
	target := strategy.Target{Reference: ref, Identity: id}
	strategies := o.selectStrategies(call.mode)
	metrics := model.AllMetrics()
	outcomes := make([]metricOutcome, len(metrics))

	g, gCtx := errgroup.WithContext(ctx)
	for i, kind := range metrics {
		g.Go(func() error {
			outcomes[i] = o.runMetric(gCtx, target, kind, strategies, &attempts)
			return nil
		})
	}
	_ = g.Wait()

	setState(StateMerging)
	result := &model.ResolutionResult{
		ResolutionID:   uuid.NewString(),
		OrganizationID: id.ID,
		Slug:           ref.Slug,
		CanonicalURL:   ref.URL,
		IdentityMethod: id.Method,
		Sources:        make(map[model.MetricKind]string, len(metrics)),
		FetchedAt:      o.nowFunc().UTC(),
	}
	order := strategyNames(strategies)
	for i, kind := range metrics {
		out := outcomes[i]
		if result.Organization == nil && out.facts != nil {
			result.Organization = out.facts
		}

		candidates := out.candidates
		if kind == model.MetricJobCount {
			candidates = valuesOnly(candidates)
		}
		winner, ok := Merge(candidates, order)
		switch {
		case ok:
			if kind == model.MetricEmployeeCount {
				result.SetEmployee(winner)
			} else {
				result.SetJobs(winner)
			}
			result.Sources[kind] = winner.Source
		case out.terminal != "":
			result.Sources[kind] = out.terminal
		default:
			result.Sources[kind] = model.DataSourceNone
		}
	}
	result.DataSource = resultDataSource(result.Sources)
	result.Attempts = attempts.Snapshot()
	setState(StateDone)

	log.Info("resolver: resolved",
		zap.String("organization_id", id.ID),
		zap.String("data_source", result.DataSource),
		zap.Int("attempts", len(result.Attempts)),
	)
	return result, nil
}

// runMetric walks the strategies for one metric. An exact value ends the
// cascade; throttling or blocking stops it with a terminal tag.
func (o *Orchestrator) runMetric(ctx context.Context, target strategy.Target, kind model.MetricKind, strategies []strategy.Strategy, attempts *model.AttemptLog) metricOutcome {
	log := zap.L().With(zap.String("company", target.Reference.Slug), zap.String("metric", string(kind)))
	var (
		out metricOutcome
		ran bool
	)

	for _, st := range strategies {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		if !st.Available(ctx) {
			attempts.Append(model.NewAttempt(st.Name(), kind, "", started, eris.Errorf("%s: not available", st.Name())))
			log.Debug("resolver: strategy unavailable", zap.String("strategy", st.Name()))
			continue
		}
		if ran {
			if err := o.gap.Wait(ctx); err != nil {
				break
			}
		}
		ran = true

		started = time.Now()
		res, err := resilience.ExecuteVal(ctx, o.breakers.Get(st.Name()), func(ctx context.Context) (strategy.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			return st.Collect(ctx, target, kind, attempts)
		})
		attempts.Append(model.NewAttempt(st.Name(), kind, "", started, err))

		out.candidates = append(out.candidates, res.Candidates...)
		if out.facts == nil && res.Facts != nil {
			out.facts = res.Facts
		}

		if err != nil {
			log.Warn("resolver: strategy failed", zap.String("strategy", st.Name()), zap.Error(err))
			if tag := model.TerminalDataSource(err); tag != "" {
				out.terminal = tag
				break
			}
			continue
		}

		if best, ok := res.Best(); ok {
			log.Debug("resolver: strategy produced candidate",
				zap.String("strategy", st.Name()),
				zap.Stringer("confidence", best.Confidence),
				zap.String("detail", best.Detail),
			)
		}
		if res.HasExact() {
			break
		}
	}
	return out
}

func (o *Orchestrator) selectStrategies(mode Mode) []strategy.Strategy {
	out := make([]strategy.Strategy, 0, len(o.strategies))
	for _, st := range o.strategies {
		if mode.allows(st.Name()) {
			out = append(out, st)
		}
	}
	return out
}

func strategyNames(strategies []strategy.Strategy) []string {
	names := make([]string, len(strategies))
	for i, st := range strategies {
		names[i] = st.Name()
	}
	return names
}

// BreakerStates reports the circuit state of every strategy that has run.
func (o *Orchestrator) BreakerStates() map[string]resilience.CircuitState {
	return o.breakers.States()
}
