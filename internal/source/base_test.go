package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/resilience"
)

func kineticOK(_ context.Context) (model.Result, error) {
	return WithQuality(model.Result{Payload: &model.KineticPayload{Parameters: []model.KineticParameter{
		{Reaction: model.ForeignRef{ForeignID: "R1"}, Name: "Km", Value: 0.2, Unit: "mM"},
	}}}), nil
}

func newTestBase(s Settings) *Base {
	s.Backoff = resilience.Backoff{Attempts: 1}
	return NewBase("test", "https://kb.example.org/api", 0.8, []model.Category{model.CategoryKinetics}, s)
}

func TestBase_Identity(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{})
	assert.Equal(t, "test", b.Name())
	assert.Equal(t, "kb.example.org", b.Host())
	assert.Equal(t, 0.8, b.Reliability())
	assert.True(t, b.Supports(model.CategoryKinetics))
	assert.False(t, b.Supports(model.CategoryCoordinates))

	b = newTestBase(Settings{BaseURL: "http://127.0.0.1:9999", Reliability: 0.5})
	assert.Equal(t, "127.0.0.1:9999", b.Host())
	assert.Equal(t, 0.5, b.Reliability())
}

func TestBase_Success(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{})
	res := b.Run(context.Background(), model.CategoryKinetics, map[string]string{"id": "p1"}, kineticOK)

	require.True(t, res.OK())
	assert.Equal(t, "test", res.Source)
	assert.Equal(t, model.CategoryKinetics, res.Category)
	assert.Equal(t, model.FailureNone, res.Failure)
	assert.Equal(t, 0.8, res.Quality.Reliability)
	assert.Equal(t, 1.0, res.Quality.Completeness)
	assert.Equal(t, 1.0, res.Quality.Validation)
	assert.Equal(t, "p1", res.Query["id"])
	assert.Equal(t, "test", res.Attribution.Source)
	assert.False(t, res.Attribution.RetrievedAt.IsZero())
}

func TestBase_NotFound(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{})
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(context.Context) (model.Result, error) {
		return model.Result{}, eris.Wrap(resilience.ErrNotFound, "no such pathway")
	})

	assert.False(t, res.OK())
	assert.Equal(t, model.StatusNotFound, res.Status)
	assert.Equal(t, model.FailureNotFound, res.Failure)
	assert.Contains(t, res.Reason, "no such pathway")
}

func TestBase_EmptyPayloadIsNotFound(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{})
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(context.Context) (model.Result, error) {
		return model.Result{Payload: &model.KineticPayload{}}, nil
	})
	assert.Equal(t, model.FailureNotFound, res.Failure)
}

func TestBase_NetworkErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{})
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(context.Context) (model.Result, error) {
		return model.Result{}, errors.New("dial tcp: connection refused")
	})
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.FailureSourceUnavailable, res.Failure)
}

func TestBase_UnsupportedCategory(t *testing.T) {
	t.Parallel()

	called := false
	b := newTestBase(Settings{})
	res := b.Run(context.Background(), model.CategoryCoordinates, nil, func(context.Context) (model.Result, error) {
		called = true
		return model.Result{}, nil
	})
	assert.False(t, called)
	assert.Equal(t, model.FailureNotFound, res.Failure)
}

func TestBase_HardTimeout(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{Timeout: 20 * time.Millisecond})
	start := time.Now()
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(ctx context.Context) (model.Result, error) {
		<-ctx.Done()
		return model.Result{}, ctx.Err()
	})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, model.FailureSourceUnavailable, res.Failure)
	assert.Contains(t, res.Reason, "no response within")
}

func TestBase_MinIntervalBlocks(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{MinInterval: 60 * time.Millisecond})
	ctx := context.Background()

	first := b.Run(ctx, model.CategoryKinetics, nil, kineticOK)
	require.True(t, first.OK())

	start := time.Now()
	second := b.Run(ctx, model.CategoryKinetics, nil, kineticOK)
	require.True(t, second.OK())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestBase_MinIntervalBeyondTimeout(t *testing.T) {
	t.Parallel()

	b := newTestBase(Settings{MinInterval: time.Hour, Timeout: 20 * time.Millisecond})
	ctx := context.Background()

	require.True(t, b.Run(ctx, model.CategoryKinetics, nil, kineticOK).OK())
	res := b.Run(ctx, model.CategoryKinetics, nil, kineticOK)
	assert.Equal(t, model.FailureSourceUnavailable, res.Failure)
}

func TestBase_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := newTestBase(Settings{})
	res := b.Run(ctx, model.CategoryKinetics, nil, kineticOK)
	assert.Equal(t, model.FailureCancelled, res.Failure)
}

func TestBase_CircuitOpens(t *testing.T) {
	t.Parallel()

	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Minute})
	b := newTestBase(Settings{Breakers: breakers})
	down := func(context.Context) (model.Result, error) {
		return model.Result{}, errors.New("bad gateway")
	}

	b.Run(context.Background(), model.CategoryKinetics, nil, down)
	b.Run(context.Background(), model.CategoryKinetics, nil, down)

	called := false
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(ctx context.Context) (model.Result, error) {
		called = true
		return kineticOK(ctx)
	})
	assert.False(t, called)
	assert.Equal(t, model.FailureSourceUnavailable, res.Failure)
	assert.Contains(t, res.Reason, "circuit open")
	assert.Equal(t, resilience.Open, breakers.For("kb.example.org").State())
}

func TestBase_RetriesTransient(t *testing.T) {
	t.Parallel()

	s := Settings{}
	b := NewBase("test", "https://kb.example.org", 0.8, []model.Category{model.CategoryKinetics}, s)
	b.backoff = resilience.Backoff{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	var calls int
	res := b.Run(context.Background(), model.CategoryKinetics, nil, func(ctx context.Context) (model.Result, error) {
		calls++
		if calls < 3 {
			return model.Result{}, resilience.Transient(errors.New("throttled"), 429)
		}
		return kineticOK(ctx)
	})
	assert.True(t, res.OK())
	assert.Equal(t, 3, calls)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(
		NewKEGG(&fakeKEGG{}, Settings{}),
		NewSabioRK(&fakeSabio{}, Settings{}),
		NewBioModels(&fakeBioModels{}, Settings{}),
		NewWikiPathways(&fakeWP{}, Settings{}),
	)
	assert.Equal(t, []string{"biomodels", "kegg", "sabiork", "wikipathways"}, r.List())
	assert.Nil(t, r.Get("reactome"))
	require.NotNil(t, r.Get("kegg"))

	kin := r.ForCategory(model.CategoryKinetics)
	require.Len(t, kin, 2)
	assert.Equal(t, "biomodels", kin[0].Name())
	assert.Equal(t, "sabiork", kin[1].Name())

	coords := r.ForCategory(model.CategoryCoordinates)
	assert.Len(t, coords, 2)
	assert.Equal(t, 2, Hosts(coords))
}
