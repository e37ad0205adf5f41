package orchestrator

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Policy is the per-category enrichment configuration file.
type Policy struct {
	Defaults   PolicyDefaults                    `yaml:"defaults"`
	Categories map[model.Category]CategoryPolicy `yaml:"categories"`
}

// PolicyDefaults apply to categories without their own setting.
type PolicyDefaults struct {
	MinQuality float64 `yaml:"min_quality"`
}

// CategoryPolicy configures one category.
type CategoryPolicy struct {
	// MinQuality raises the request's quality floor for this category.
	MinQuality float64 `yaml:"min_quality"`
	// MergePolicy replaces the enricher's default when the request has none.
	MergePolicy model.MergePolicy `yaml:"merge_policy,omitempty"`
	// Sources is the preference order used when the request gives none.
	Sources []string `yaml:"sources,omitempty"`
}

// LoadPolicy reads a policy file. The YAML has a top-level "enrichment" key.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: read policy %s", path)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML and fills unset category values from the
// defaults.
func ParsePolicy(data []byte) (*Policy, error) {
	var wrapper struct {
		Enrichment Policy `yaml:"enrichment"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "orchestrator: parse policy")
	}

	p := &wrapper.Enrichment
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for c, cp := range p.Categories {
		if cp.MinQuality == 0 {
			cp.MinQuality = p.Defaults.MinQuality
		}
		p.Categories[c] = cp
	}
	return p, nil
}

// Validate checks categories, floors and merge policies.
func (p *Policy) Validate() error {
	if p.Defaults.MinQuality < 0 || p.Defaults.MinQuality > 1 {
		return eris.Errorf("orchestrator: default min_quality %v outside [0,1]", p.Defaults.MinQuality)
	}
	for c, cp := range p.Categories {
		if !c.Valid() {
			return eris.Errorf("orchestrator: unknown category %q in policy", c)
		}
		if cp.MinQuality < 0 || cp.MinQuality > 1 {
			return eris.Errorf("orchestrator: %s min_quality %v outside [0,1]", c, cp.MinQuality)
		}
		if cp.MergePolicy != "" && !cp.MergePolicy.Valid() {
			return eris.Errorf("orchestrator: %s has unknown merge_policy %q", c, cp.MergePolicy)
		}
	}
	return nil
}

// For returns the policy of c, falling back to the defaults. A nil Policy
// has no effect.
func (p *Policy) For(c model.Category) CategoryPolicy {
	if p == nil {
		return CategoryPolicy{}
	}
	if cp, ok := p.Categories[c]; ok {
		return cp
	}
	return CategoryPolicy{MinQuality: p.Defaults.MinQuality}
}

// Floor is the effective minimum quality for c under req.
func (p *Policy) Floor(req model.EnrichmentRequest, c model.Category) float64 {
	return max(req.MinQuality, p.For(c).MinQuality)
}

// Prefer is the tie-break order for c under req.
func (p *Policy) Prefer(req model.EnrichmentRequest, c model.Category) []string {
	if len(req.PreferredSources) > 0 {
		return req.PreferredSources
	}
	return slices.Clone(p.For(c).Sources)
}

// Merge is the merge policy for c under req; empty means the enricher's
// default.
func (p *Policy) Merge(req model.EnrichmentRequest, c model.Category) model.MergePolicy {
	if mp, ok := req.MergePolicies[c]; ok && mp.Valid() {
		return mp
	}
	return p.For(c).MergePolicy
}
