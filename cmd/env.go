package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/omicsflow/pathway-enrich/internal/config"
	"github.com/omicsflow/pathway-enrich/internal/enricher"
	"github.com/omicsflow/pathway-enrich/internal/fetcher"
	"github.com/omicsflow/pathway-enrich/internal/layout"
	"github.com/omicsflow/pathway-enrich/internal/metrics"
	"github.com/omicsflow/pathway-enrich/internal/orchestrator"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
	"github.com/omicsflow/pathway-enrich/internal/scorer"
	"github.com/omicsflow/pathway-enrich/internal/source"
	"github.com/omicsflow/pathway-enrich/internal/store"
	"github.com/omicsflow/pathway-enrich/pkg/biomodels"
	"github.com/omicsflow/pathway-enrich/pkg/kegg"
	"github.com/omicsflow/pathway-enrich/pkg/sabiork"
	"github.com/omicsflow/pathway-enrich/pkg/wikipathways"
)

// enrichEnv holds everything the enrich, layout and serve commands share.
type enrichEnv struct {
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Resolver     *layout.Resolver
	Breakers     *resilience.Breakers
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the store.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates config for mode, opens the store and wires adapters,
// enrichers, the orchestrator and the layout resolver. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env, err := buildEnv(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// buildEnv wires the engine around an open store.
func buildEnv(st store.Store) (*enrichEnv, error) {
	breakers := newBreakers()
	sources := buildSources(breakers)
	if len(sources.List()) == 0 {
		return nil, eris.New("no sources enabled")
	}

	sc, err := scorer.New(cfg.Weights.Model())
	if err != nil {
		return nil, eris.Wrap(err, "scorer weights")
	}

	coord := enricher.NewCoordinate(enricher.WithCoverage(cfg.Enrichment.CoverageThreshold))
	enrichers := enricher.NewRegistry(enricher.NewKinetic(nil), enricher.NewAnnotation(nil), coord)

	opts := []orchestrator.Option{orchestrator.WithScorer(sc)}
	if st != nil {
		opts = append(opts, orchestrator.WithRecorder(st))
	}
	if path := cfg.Enrichment.PolicyPath; path != "" {
		policy, err := orchestrator.LoadPolicy(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithPolicy(policy))
	}
	orch := orchestrator.New(sources, enrichers, opts...)

	zap.L().Info("engine ready",
		zap.Strings("sources", sources.List()),
		zap.Strings("categories", categoryNames(enrichers)),
	)

	return &enrichEnv{
		Store:        st,
		Orchestrator: orch,
		Resolver:     layout.NewResolver(orch.Refetcher(coord), nil),
		Breakers:     breakers,
	}, nil
}

func newBreakers() *resilience.Breakers {
	bc := resilience.BreakerFrom(cfg.Circuit.Threshold, cfg.Circuit.CooldownSecs)
	bc.OnTransition = func(name string, from, to resilience.State) {
		metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
		zap.L().Warn("circuit breaker transition",
			zap.String("host", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return resilience.NewBreakers(bc)
}

// buildSources registers every enabled adapter. All adapters share one HTTP
// fetcher and the per-host breakers.
func buildSources(breakers *resilience.Breakers) *source.Registry {
	getter := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxBody:   int64(cfg.HTTP.MaxBodyMB) << 20,
	})
	backoff := resilience.BackoffFrom(cfg.Retry.Attempts, cfg.Retry.InitialMs, cfg.Retry.MaxMs, cfg.Retry.Factor, cfg.Retry.Jitter)

	settings := func(sc config.SourceConfig) source.Settings {
		return source.Settings{
			BaseURL:     sc.BaseURL,
			Reliability: sc.Reliability,
			MinInterval: sc.MinInterval(),
			Timeout:     sc.Timeout(),
			Backoff:     backoff,
			Breakers:    breakers,
		}
	}

	reg := source.NewRegistry()
	if sc := cfg.Sources.SabioRK; sc.Enabled {
		opts := []sabiork.Option{sabiork.WithGetter(getter)}
		if sc.BaseURL != "" {
			opts = append(opts, sabiork.WithBaseURL(sc.BaseURL))
		}
		reg.Register(source.NewSabioRK(sabiork.NewClient(opts...), settings(sc)))
	}
	if sc := cfg.Sources.BioModels; sc.Enabled {
		opts := []biomodels.Option{biomodels.WithGetter(getter)}
		if sc.BaseURL != "" {
			opts = append(opts, biomodels.WithBaseURL(sc.BaseURL))
		}
		reg.Register(source.NewBioModels(biomodels.NewClient(opts...), settings(sc)))
	}
	if sc := cfg.Sources.KEGG; sc.Enabled {
		opts := []kegg.Option{kegg.WithGetter(getter)}
		if sc.BaseURL != "" {
			opts = append(opts, kegg.WithBaseURL(sc.BaseURL))
		}
		reg.Register(source.NewKEGG(kegg.NewClient(opts...), settings(sc)))
	}
	if sc := cfg.Sources.WikiPathways; sc.Enabled {
		opts := []wikipathways.Option{wikipathways.WithGetter(getter)}
		if sc.BaseURL != "" {
			opts = append(opts, wikipathways.WithBaseURL(sc.BaseURL))
		}
		reg.Register(source.NewWikiPathways(wikipathways.NewClient(opts...), settings(sc)))
	}
	return reg
}

func categoryNames(r *enricher.Registry) []string {
	var out []string
	for _, c := range r.Categories() {
		out = append(out, string(c))
	}
	return out
}
