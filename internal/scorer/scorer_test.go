package scorer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

func kinetic(source string, rel float64, values map[string]float64) model.Result {
	p := &model.KineticPayload{}
	for name, v := range values {
		p.Parameters = append(p.Parameters, model.KineticParameter{
			Reaction: model.ForeignRef{ForeignID: "R1", Name: "hexokinase"},
			Name:     name,
			Value:    v,
		})
	}
	return model.Result{
		Source:   source,
		Category: model.CategoryKinetics,
		Payload:  p,
		Status:   model.StatusSuccess,
		Quality: model.QualityMetrics{
			Completeness: 1,
			Reliability:  rel,
			Consistency:  1,
			Validation:   1,
		},
		Attribution: model.SourceAttribution{Source: source},
	}
}

func names(rs []model.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Source
	}
	return out
}

func TestScore_WeightedSum(t *testing.T) {
	t.Parallel()

	s := Default()
	r := kinetic("a", 0.9, map[string]float64{"km": 1})
	r.Quality = model.QualityMetrics{Completeness: 0.8, Reliability: 0.9, Consistency: 0.5, Validation: 1}

	want := 0.25*0.8 + 0.40*0.9 + 0.15*0.5 + 0.20*1
	assert.InDelta(t, want, s.Score(r), 1e-9)
}

func TestScore_ClampsComponents(t *testing.T) {
	t.Parallel()

	s := Default()
	r := kinetic("a", 1.7, map[string]float64{"km": 1})
	r.Quality.Completeness = -2
	score := s.Score(r)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScore_NonSuccessIsZero(t *testing.T) {
	t.Parallel()

	s := Default()
	r := model.Failed("a", model.CategoryKinetics, model.FailureSourceUnavailable, "down")
	r.Quality.Reliability = 1
	assert.Zero(t, s.Score(r))
}

func TestNew_RejectsBadWeights(t *testing.T) {
	t.Parallel()

	_, err := New(model.Weights{Completeness: 0.5, Reliability: 0.5, Consistency: 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid weights")

	_, err = New(model.Weights{Completeness: -0.1, Reliability: 1.1})
	require.Error(t, err)

	s, err := New(model.Weights{Reliability: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Weights().Reliability)
}

func TestRank_OrdersByScore(t *testing.T) {
	t.Parallel()

	s := Default()
	rs := []model.Result{
		kinetic("low", 0.3, map[string]float64{"km": 1}),
		model.Failed("down", model.CategoryKinetics, model.FailureSourceUnavailable, "timeout"),
		kinetic("high", 1.0, map[string]float64{"km": 1}),
		kinetic("mid", 0.7, map[string]float64{"km": 1}),
	}

	ranked := s.Rank(rs, nil)
	assert.Equal(t, []string{"high", "mid", "low", "down"}, names(ranked))
	assert.Equal(t, "low", rs[0].Source, "input must not be reordered")
}

func TestRank_Idempotent(t *testing.T) {
	t.Parallel()

	s := Default()
	rs := []model.Result{
		kinetic("b", 0.7, map[string]float64{"km": 1}),
		kinetic("a", 0.7, map[string]float64{"km": 1}),
		kinetic("c", 0.9, map[string]float64{"km": 1}),
	}
	once := s.Rank(rs, nil)
	twice := s.Rank(once, nil)
	assert.Equal(t, names(once), names(twice))
}

func TestRank_OrderIndependent(t *testing.T) {
	t.Parallel()

	s := Default()
	base := []model.Result{
		kinetic("kegg", 0.85, map[string]float64{"km": 1}),
		kinetic("wiki", 0.7, map[string]float64{"km": 1}),
		kinetic("sabio", 0.9, map[string]float64{"km": 1}),
		kinetic("bio", 0.9, map[string]float64{"km": 1}),
		model.Failed("gone", model.CategoryKinetics, model.FailureNotFound, "404"),
	}
	want := names(s.Rank(base, []string{"sabio"}))

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]model.Result(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, names(s.Rank(shuffled, []string{"sabio"})))
	}
}

func TestRank_TieBreaks(t *testing.T) {
	t.Parallel()

	// Equal overall scores with different reliabilities.
	s, err := New(model.Weights{Completeness: 1})
	require.NoError(t, err)

	t.Run("reliability", func(t *testing.T) {
		t.Parallel()
		rs := []model.Result{
			kinetic("a", 0.5, map[string]float64{"km": 1}),
			kinetic("b", 0.9, map[string]float64{"km": 1}),
		}
		assert.Equal(t, []string{"b", "a"}, names(s.Rank(rs, nil)))
	})

	t.Run("recency", func(t *testing.T) {
		t.Parallel()
		old := kinetic("a", 0.9, map[string]float64{"km": 1})
		old.Attribution.UpdatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		recent := kinetic("b", 0.9, map[string]float64{"km": 1})
		recent.Attribution.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, []string{"b", "a"}, names(s.Rank([]model.Result{old, recent}, nil)))
	})

	t.Run("preference", func(t *testing.T) {
		t.Parallel()
		rs := []model.Result{
			kinetic("a", 0.9, map[string]float64{"km": 1}),
			kinetic("b", 0.9, map[string]float64{"km": 1}),
		}
		assert.Equal(t, []string{"b", "a"}, names(s.Rank(rs, []string{"b"})))
	})

	t.Run("name", func(t *testing.T) {
		t.Parallel()
		rs := []model.Result{
			kinetic("zeta", 0.9, map[string]float64{"km": 1}),
			kinetic("alpha", 0.9, map[string]float64{"km": 1}),
		}
		assert.Equal(t, []string{"alpha", "zeta"}, names(s.Rank(rs, nil)))
	})
}

func TestFilter(t *testing.T) {
	t.Parallel()

	s := Default()
	rs := []model.Result{
		kinetic("high", 1.0, map[string]float64{"km": 1}),
		kinetic("low", 0.0, map[string]float64{"km": 1}),
		model.Failed("down", model.CategoryKinetics, model.FailureSourceUnavailable, ""),
	}
	kept := s.Filter(rs, 0.7)
	assert.Equal(t, []string{"high"}, names(kept))

	assert.Len(t, s.Filter(rs, 0), 2)
	assert.Empty(t, s.Filter(rs, 1.01))
}

func TestBest(t *testing.T) {
	t.Parallel()

	s := Default()
	_, ok := s.Best(nil, nil)
	assert.False(t, ok)

	_, ok = s.Best([]model.Result{
		model.Failed("down", model.CategoryKinetics, model.FailureSourceUnavailable, ""),
	}, nil)
	assert.False(t, ok)

	best, ok := s.Best([]model.Result{
		kinetic("a", 0.5, map[string]float64{"km": 1}),
		kinetic("b", 0.95, map[string]float64{"km": 1}),
	}, nil)
	require.True(t, ok)
	assert.Equal(t, "b", best.Source)
}

func TestWithConsistency(t *testing.T) {
	t.Parallel()

	s := Default()

	t.Run("lone result", func(t *testing.T) {
		t.Parallel()
		r := kinetic("a", 1, map[string]float64{"km": 1})
		r.Quality.Consistency = 0.2
		out := s.WithConsistency([]model.Result{r})
		assert.Equal(t, 1.0, out[0].Quality.Consistency)
		assert.Equal(t, 0.2, r.Quality.Consistency, "input must not change")
	})

	t.Run("agreeing peers", func(t *testing.T) {
		t.Parallel()
		out := s.WithConsistency([]model.Result{
			kinetic("a", 1, map[string]float64{"km": 1.00, "kcat": 10}),
			kinetic("b", 1, map[string]float64{"km": 1.05, "kcat": 30}),
		})
		assert.InDelta(t, 0.5, out[0].Quality.Consistency, 1e-9)
		assert.InDelta(t, 0.5, out[1].Quality.Consistency, 1e-9)
	})

	t.Run("no overlap", func(t *testing.T) {
		t.Parallel()
		out := s.WithConsistency([]model.Result{
			kinetic("a", 1, map[string]float64{"km": 1}),
			kinetic("b", 1, map[string]float64{"vmax": 2}),
		})
		assert.Equal(t, NoOverlap, out[0].Quality.Consistency)
	})

	t.Run("failures ignored", func(t *testing.T) {
		t.Parallel()
		failed := model.Failed("down", model.CategoryKinetics, model.FailureSourceUnavailable, "")
		out := s.WithConsistency([]model.Result{
			kinetic("a", 1, map[string]float64{"km": 1}),
			failed,
		})
		assert.Equal(t, 1.0, out[0].Quality.Consistency)
		assert.Equal(t, failed.Quality, out[1].Quality)
	})
}

func TestAgreement(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Agreement(map[string]float64{"x": 100}, map[string]float64{"x": 109}))
	assert.Equal(t, 0.0, Agreement(map[string]float64{"x": 100}, map[string]float64{"x": 120}))
	assert.Equal(t, 1.0, Agreement(map[string]float64{"x": 0}, map[string]float64{"x": 0}))
	assert.Equal(t, NoOverlap, Agreement(nil, map[string]float64{"x": 1}))
}
