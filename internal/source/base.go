package source

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/omicsflow/pathway-enrich/internal/metrics"
	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
)

// DefaultTimeout bounds a single fetch, including the rate-limit wait.
const DefaultTimeout = 30 * time.Second

// Settings are the operator-tunable parts of an adapter.
type Settings struct {
	// BaseURL overrides the client's default endpoint.
	BaseURL string
	// Reliability overrides the adapter's built-in trust score when > 0.
	Reliability float64
	// MinInterval is the minimum spacing between calls to the source.
	MinInterval time.Duration
	// Timeout is the hard per-call limit. Zero means DefaultTimeout.
	Timeout time.Duration
	Backoff resilience.Backoff
	// Breakers supplies the per-host circuit breaker. Nil gives the adapter
	// a private breaker.
	Breakers *resilience.Breakers
}

// FetchFunc is the source-specific part of a fetch.
type FetchFunc func(ctx context.Context) (model.Result, error)

// Base implements the shared half of an Adapter: identity, pacing, the hard
// timeout, circuit breaking, retry and failure classification.
type Base struct {
	name        string
	host        string
	reliability float64
	categories  []model.Category
	timeout     time.Duration
	backoff     resilience.Backoff
	limiter     *rate.Limiter
	breaker     *resilience.Breaker

	now func() time.Time
}

// NewBase builds a Base. defaultURL supplies the host when s.BaseURL is empty.
func NewBase(name, defaultURL string, reliability float64, categories []model.Category, s Settings) *Base {
	if s.Reliability > 0 {
		reliability = s.Reliability
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Backoff.OnRetry == nil {
		s.Backoff.OnRetry = resilience.LogRetry(name, "fetch")
	}

	host := hostOf(defaultURL)
	if s.BaseURL != "" {
		host = hostOf(s.BaseURL)
	}

	limit := rate.Inf
	if s.MinInterval > 0 {
		limit = rate.Every(s.MinInterval)
	}

	var breaker *resilience.Breaker
	if s.Breakers != nil {
		breaker = s.Breakers.For(host)
	} else {
		breaker = resilience.NewBreaker(host, resilience.DefaultBreakerConfig())
	}

	return &Base{
		name:        name,
		host:        host,
		reliability: model.Clamp01(reliability),
		categories:  categories,
		timeout:     s.Timeout,
		backoff:     s.Backoff,
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     breaker,
		now:         time.Now,
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

// Name implements Adapter.
func (b *Base) Name() string { return b.name }

// Host implements Adapter.
func (b *Base) Host() string { return b.host }

// Reliability implements Adapter.
func (b *Base) Reliability() float64 { return b.reliability }

// Supports implements Adapter.
func (b *Base) Supports(c model.Category) bool { return slices.Contains(b.categories, c) }

// Categories lists what the adapter can fetch.
func (b *Base) Categories() []model.Category { return slices.Clone(b.categories) }

// Now is the clock used for attribution timestamps.
func (b *Base) Now() time.Time { return b.now().UTC() }

// Run executes fn for category c and returns a finished Result. Source,
// Category, Query and Reliability are always filled in here, so fn only
// has to build the payload and the other quality components.
func (b *Base) Run(ctx context.Context, c model.Category, query map[string]string, fn FetchFunc) model.Result {
	start := time.Now()

	res := b.run(ctx, c, fn)
	res.Source = b.name
	res.Category = c
	res.Query = query
	res.Attribution.Source = b.name
	if res.Attribution.RetrievedAt.IsZero() {
		res.Attribution.RetrievedAt = b.Now()
	}
	if res.OK() {
		res.Quality.Reliability = b.reliability
		res.Quality = res.Quality.Clamped()
	}

	metrics.ObserveFetch(b.name, string(c), string(res.Status), string(res.Failure), time.Since(start))
	switch res.Failure {
	case model.FailureNone:
		zap.L().Debug("source fetch succeeded",
			zap.String("source", b.name),
			zap.String("category", string(c)),
			zap.Int("items", res.Payload.Len()),
		)
	case model.FailureNotFound, model.FailureCancelled:
		zap.L().Debug("source fetch empty",
			zap.String("source", b.name),
			zap.String("category", string(c)),
			zap.String("reason", res.Reason),
		)
	default:
		zap.L().Warn("source fetch failed",
			zap.String("source", b.name),
			zap.String("category", string(c)),
			zap.String("failure", string(res.Failure)),
			zap.String("reason", res.Reason),
		)
	}
	return res
}

func (b *Base) run(ctx context.Context, c model.Category, fn FetchFunc) model.Result {
	if !b.Supports(c) {
		return model.Failed(b.name, c, model.FailureNotFound, fmt.Sprintf("%s does not provide %s", b.name, c))
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	waitStart := time.Now()
	if err := b.limiter.Wait(callCtx); err != nil {
		return b.classify(ctx, callCtx, c, eris.Wrap(err, "waiting for minimum interval"))
	}
	metrics.RateLimitWaitTime.WithLabelValues(b.name).Observe(time.Since(waitStart).Seconds())

	res, err := resilience.CallValue(callCtx, b.breaker, func(ctx context.Context) (model.Result, error) {
		return resilience.RetryValue(ctx, b.backoff, func(ctx context.Context) (model.Result, error) {
			return fn(ctx)
		})
	})
	if err != nil {
		return b.classify(ctx, callCtx, c, err)
	}
	if res.Payload == nil || res.Payload.Len() == 0 {
		return model.Failed(b.name, c, model.FailureNotFound, "source returned no data")
	}
	res.Status = model.StatusSuccess
	res.Failure = model.FailureNone
	return res
}

// classify turns a fetch error into a non-success Result.
func (b *Base) classify(parent, call context.Context, c model.Category, err error) model.Result {
	switch {
	case parent.Err() != nil:
		return model.Failed(b.name, c, model.FailureCancelled, "request cancelled")
	case resilience.IsNotFound(err):
		return model.Failed(b.name, c, model.FailureNotFound, err.Error())
	case call.Err() != nil:
		return model.Failed(b.name, c, model.FailureSourceUnavailable,
			fmt.Sprintf("no response within %s", b.timeout))
	case eris.Is(err, resilience.ErrOpen):
		return model.Failed(b.name, c, model.FailureSourceUnavailable, "circuit open for "+b.host)
	default:
		return model.Failed(b.name, c, model.FailureSourceUnavailable, err.Error())
	}
}
