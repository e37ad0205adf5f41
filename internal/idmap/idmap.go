// Package idmap matches entities named in a source's namespace to entities
// of the host pathway.
package idmap

import (
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Strategy proposes host entities for one foreign reference, best first.
type Strategy interface {
	Name() string
	Candidates(ref model.ForeignRef, hosts []model.Entity) []string
}

// Mapping pairs one foreign id with one host entity.
type Mapping struct {
	ForeignID string `json:"foreign_id"`
	HostID    string `json:"host_id"`
	Strategy  string `json:"strategy"`
}

// Result is the outcome of mapping a batch of foreign references.
type Result struct {
	Mappings []Mapping `json:"mappings"`
	// Unmapped lists foreign ids no strategy could place.
	Unmapped []string `json:"unmapped,omitempty"`
	// ByStrategy counts mappings per strategy name.
	ByStrategy map[string]int `json:"by_strategy"`

	byForeign map[string]string
	byHost    map[string]string
}

// Host returns the host entity mapped to foreignID.
func (r *Result) Host(foreignID string) (string, bool) {
	id, ok := r.byForeign[foreignID]
	return id, ok
}

// Foreign returns the foreign id mapped onto hostID.
func (r *Result) Foreign(hostID string) (string, bool) {
	id, ok := r.byHost[hostID]
	return id, ok
}

// Coverage is the fraction of targets that received a mapping.
func (r *Result) Coverage(targets []model.Entity) float64 {
	var hit int
	for _, e := range targets {
		if _, ok := r.byHost[e.ID]; ok {
			hit++
		}
	}
	return model.Ratio(hit, len(targets))
}

// Mapper runs strategies in order. Each strategy is tried for every
// still-unmapped reference before the next one starts, and a reference
// stops at the first strategy that yields a free host entity. A host
// entity is never assigned to two foreign ids.
type Mapper struct {
	strategies []Strategy
}

// New returns a Mapper with the given strategies. With none it uses
// Default.
func New(strategies ...Strategy) *Mapper {
	if len(strategies) == 0 {
		strategies = Default()
	}
	return &Mapper{strategies: strategies}
}

// Default is exact id, then case-insensitive name, then cross reference.
func Default() []Strategy {
	return []Strategy{ExactID{}, Name{}, XRef{}}
}

// Strategies returns the names of the configured strategies, in order.
func (m *Mapper) Strategies() []string {
	out := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		out[i] = s.Name()
	}
	return out
}

// Map assigns host entities to refs. Repeated foreign ids are mapped once.
func (m *Mapper) Map(refs []model.ForeignRef, hosts []model.Entity) *Result {
	res := &Result{
		ByStrategy: make(map[string]int, len(m.strategies)),
		byForeign:  make(map[string]string),
		byHost:     make(map[string]string),
	}

	var pending []model.ForeignRef
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if ref.ForeignID == "" || seen[ref.ForeignID] {
			continue
		}
		seen[ref.ForeignID] = true
		pending = append(pending, ref)
	}

	for _, s := range m.strategies {
		if len(pending) == 0 {
			break
		}
		var rest []model.ForeignRef
		for _, ref := range pending {
			host := ""
			for _, id := range s.Candidates(ref, hosts) {
				if _, taken := res.byHost[id]; !taken {
					host = id
					break
				}
			}
			if host == "" {
				rest = append(rest, ref)
				continue
			}
			res.byForeign[ref.ForeignID] = host
			res.byHost[host] = ref.ForeignID
			res.ByStrategy[s.Name()]++
			res.Mappings = append(res.Mappings, Mapping{ForeignID: ref.ForeignID, HostID: host, Strategy: s.Name()})
		}
		pending = rest
	}

	for _, ref := range pending {
		res.Unmapped = append(res.Unmapped, ref.ForeignID)
	}
	if len(res.Unmapped) > 0 {
		zap.L().Debug("idmap: unmapped references",
			zap.Int("mapped", len(res.Mappings)),
			zap.Int("unmapped", len(res.Unmapped)),
		)
	}
	return res
}

// ExactID matches a foreign id equal to a host entity id.
type ExactID struct{}

// Name implements Strategy.
func (ExactID) Name() string { return "exact_id" }

// Candidates implements Strategy.
func (ExactID) Candidates(ref model.ForeignRef, hosts []model.Entity) []string {
	for _, h := range hosts {
		if h.ID == ref.ForeignID {
			return []string{h.ID}
		}
	}
	return nil
}

// Name matches display names after Unicode case folding and whitespace
// trimming. Hosts are proposed in pathway order.
type Name struct{}

// Name implements Strategy.
func (Name) Name() string { return "name" }

// Candidates implements Strategy.
func (Name) Candidates(ref model.ForeignRef, hosts []model.Entity) []string {
	fold := cases.Fold()
	want := normalizeName(fold, ref.Name)
	if want == "" {
		return nil
	}
	var out []string
	for _, h := range hosts {
		if normalizeName(fold, h.Name) == want {
			out = append(out, h.ID)
		}
	}
	return out
}

func normalizeName(fold cases.Caser, s string) string {
	return fold.String(strings.Join(strings.Fields(s), " "))
}

// XRef matches on a shared cross reference. A foreign id that equals the
// local part of a host cross reference also matches.
type XRef struct{}

// Name implements Strategy.
func (XRef) Name() string { return "xref" }

// Candidates implements Strategy.
func (XRef) Candidates(ref model.ForeignRef, hosts []model.Entity) []string {
	want := make([]string, 0, len(ref.XRefs))
	for _, x := range ref.XRefs {
		want = append(want, strings.ToLower(strings.TrimSpace(x)))
	}
	foreign := strings.ToLower(ref.ForeignID)

	var out []string
	for _, h := range hosts {
		for _, x := range h.XRefs {
			x = strings.ToLower(strings.TrimSpace(x))
			if slices.Contains(want, x) || localPart(x) == foreign {
				out = append(out, h.ID)
				break
			}
		}
	}
	return out
}

// localPart strips a compact identifier's namespace.
func localPart(curie string) string {
	if i := strings.LastIndex(curie, ":"); i >= 0 {
		return curie[i+1:]
	}
	return curie
}
