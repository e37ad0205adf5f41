// Package scorer turns fetch results into comparable scores and ranks them.
package scorer

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

const (
	// Tolerance is the relative difference under which two numeric facts agree.
	Tolerance = 0.10
	// NoOverlap is the agreement of two results that share no facts.
	NoOverlap = 0.5
	// scoreEpsilon treats scores this close as tied.
	scoreEpsilon = 1e-9
)

// Scorer computes overall scores from quality metrics with a fixed weighting.
type Scorer struct {
	weights model.Weights
}

// New returns a Scorer. The weights must be valid.
func New(w model.Weights) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Default returns a Scorer with the default weights.
func Default() *Scorer {
	return &Scorer{weights: model.DefaultWeights()}
}

// ValidateWeights rejects negative weights and sums away from one.
func ValidateWeights(w model.Weights) error {
	if err := w.Validate(); err != nil {
		return eris.Wrap(err, "scorer: invalid weights")
	}
	return nil
}

// Weights returns the weighting in use.
func (s *Scorer) Weights() model.Weights { return s.weights }

// Score is the overall score of r. Non-success results score zero.
func (s *Scorer) Score(r model.Result) float64 {
	if !r.OK() {
		return 0
	}
	return r.Quality.Clamped().Overall(s.weights)
}

// WithConsistency returns copies of rs with the consistency component set
// from how well each successful result agrees with its successful peers.
// The results must all belong to one category. Non-success results are
// returned unchanged.
func (s *Scorer) WithConsistency(rs []model.Result) []model.Result {
	out := slices.Clone(rs)

	var ok []int
	facts := make(map[int]map[string]float64)
	for i, r := range rs {
		if r.OK() {
			ok = append(ok, i)
			facts[i] = r.Payload.Facts()
		}
	}

	for _, i := range ok {
		if len(ok) == 1 {
			out[i] = rs[i].WithConsistency(1)
			continue
		}
		var sum float64
		for _, j := range ok {
			if i == j {
				continue
			}
			sum += Agreement(facts[i], facts[j])
		}
		out[i] = rs[i].WithConsistency(sum / float64(len(ok)-1))
	}
	return out
}

// Agreement is the share of facts two payloads have in common whose values
// agree within Tolerance. Payloads with nothing in common get NoOverlap.
func Agreement(a, b map[string]float64) float64 {
	var shared, agree int
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			continue
		}
		shared++
		if agrees(va, vb) {
			agree++
		}
	}
	if shared == 0 {
		return NoOverlap
	}
	return float64(agree) / float64(shared)
}

func agrees(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= Tolerance*scale
}

// Rank orders rs from best to worst. The order is a total order on the
// results' content, so the same set of results ranks the same way however
// it arrives. Ties on score are broken by reliability, then by how recently
// the source revised the data, then by position in prefer, then by name.
// The input slice is not modified.
func (s *Scorer) Rank(rs []model.Result, prefer []string) []model.Result {
	out := slices.Clone(rs)
	rank := func(name string) int {
		if i := slices.Index(prefer, name); i >= 0 {
			return i
		}
		return len(prefer)
	}
	slices.SortStableFunc(out, func(a, b model.Result) int {
		if a.OK() != b.OK() {
			if a.OK() {
				return -1
			}
			return 1
		}
		sa, sb := s.Score(a), s.Score(b)
		if math.Abs(sa-sb) > scoreEpsilon {
			if sa > sb {
				return -1
			}
			return 1
		}
		if a.Quality.Reliability != b.Quality.Reliability {
			if a.Quality.Reliability > b.Quality.Reliability {
				return -1
			}
			return 1
		}
		if c := b.Attribution.UpdatedAt.Compare(a.Attribution.UpdatedAt); c != 0 {
			return c
		}
		if ra, rb := rank(a.Source), rank(b.Source); ra != rb {
			return ra - rb
		}
		switch {
		case a.Source < b.Source:
			return -1
		case a.Source > b.Source:
			return 1
		}
		return 0
	})
	return out
}

// Filter keeps the successful results scoring at least minScore.
func (s *Scorer) Filter(rs []model.Result, minScore float64) []model.Result {
	var out []model.Result
	for _, r := range rs {
		if r.OK() && s.Score(r) >= minScore {
			out = append(out, r)
		}
	}
	return out
}

// Best returns the top-ranked successful result.
func (s *Scorer) Best(rs []model.Result, prefer []string) (model.Result, bool) {
	ranked := s.Rank(rs, prefer)
	if len(ranked) == 0 || !ranked[0].OK() {
		return model.Result{}, false
	}
	return ranked[0], true
}
