package layout

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/omicsflow/pathway-enrich/internal/metrics"
	"github.com/omicsflow/pathway-enrich/internal/model"
)

// Tier identifies which fallback produced a layout.
type Tier int

const (
	// TierExisting is the pathway's own layout block, read as-is.
	TierExisting Tier = 1
	// TierRefetch is a layout rebuilt from a source diagram on demand.
	TierRefetch Tier = 2
	// TierAuto is the algorithmic fallback.
	TierAuto Tier = 3
)

// String returns the tier's name.
func (t Tier) String() string {
	switch t {
	case TierExisting:
		return "existing"
	case TierRefetch:
		return "refetch"
	case TierAuto:
		return "auto"
	default:
		return "tier" + strconv.Itoa(int(t))
	}
}

// Refetcher rebuilds a layout from a source diagram without touching the
// pathway. foreignIDs maps source names to their id for the pathway.
type Refetcher interface {
	Refetch(ctx context.Context, p model.Pathway, foreignIDs map[string]string) (*model.LayoutBlock, error)
}

// AutoLayouter computes positions for entities missing from existing.
type AutoLayouter interface {
	AutoLayout(p model.Pathway, existing *model.LayoutBlock) *model.LayoutBlock
}

// Resolution is a resolved layout and where it came from.
type Resolution struct {
	Block *model.LayoutBlock `json:"block"`
	Tier  Tier               `json:"tier"`
	// Reason explains why higher tiers were passed over.
	Reason string `json:"reason,omitempty"`
}

// Resolver reads a pathway's layout with three-tier precedence: the
// existing block, a refetch from a source that has the same pathway, and
// the auto layout. A non-empty higher tier always wins.
type Resolver struct {
	refetch Refetcher
	auto    AutoLayouter
}

// NewResolver creates a Resolver. A nil refetcher skips tier 2; a nil
// auto layouter uses DefaultGrid.
func NewResolver(refetch Refetcher, auto AutoLayouter) *Resolver {
	if auto == nil {
		auto = DefaultGrid()
	}
	return &Resolver{refetch: refetch, auto: auto}
}

// Resolve returns the layout to display. It never modifies the pathway.
func (r *Resolver) Resolve(ctx context.Context, p model.Pathway) (*Resolution, error) {
	existing, _ := p.Layout()
	if !existing.Empty() {
		return r.done(&Resolution{Block: existing.Clone(), Tier: TierExisting}), nil
	}

	reason := "no layout block"
	if xrefs := p.CrossReferences(); r.refetch != nil && len(xrefs) > 0 {
		block, err := r.refetch.Refetch(ctx, p, xrefs)
		switch {
		case ctx.Err() != nil:
			return nil, eris.Wrap(ctx.Err(), "layout: resolve cancelled")
		case err != nil:
			zap.L().Warn("layout: refetch failed, falling back",
				zap.String("pathway", p.ID()),
				zap.Error(err),
			)
			reason = "refetch failed: " + err.Error()
		case block.Empty():
			reason = "refetch returned no positions"
		default:
			return r.done(&Resolution{Block: block, Tier: TierRefetch, Reason: reason}), nil
		}
	} else if r.refetch != nil {
		reason = "no foreign pathway id"
	}

	// existing may be an empty block; the auto layout keeps whatever it has.
	block := r.auto.AutoLayout(p, existing)
	return r.done(&Resolution{Block: block, Tier: TierAuto, Reason: reason}), nil
}

// Materialize resolves the layout and stores it on the pathway, but only
// when the pathway has no layout of its own.
func (r *Resolver) Materialize(ctx context.Context, p model.Pathway) (*Resolution, bool, error) {
	res, err := r.Resolve(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if res.Tier == TierExisting || res.Block.Empty() {
		return res, false, nil
	}
	// Re-check right before writing.
	if cur, ok := p.Layout(); ok && !cur.Empty() {
		return &Resolution{Block: cur.Clone(), Tier: TierExisting}, false, nil
	}
	if err := p.SetLayout(res.Block); err != nil {
		return nil, false, eris.Wrap(err, "layout: store resolved block")
	}
	return res, true, nil
}

func (r *Resolver) done(res *Resolution) *Resolution {
	metrics.LayoutResolutions.WithLabelValues(res.Tier.String()).Inc()
	zap.L().Debug("layout: resolved",
		zap.String("tier", res.Tier.String()),
		zap.Int("boxes", len(res.Block.Boxes)),
	)
	return res
}
