// Package orchestrator runs enrichment requests: it fans out to the source
// adapters, scores and selects a winner per category, applies it through
// the category's enricher, and records what happened.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omicsflow/pathway-enrich/internal/enricher"
	"github.com/omicsflow/pathway-enrich/internal/metrics"
	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/scorer"
	"github.com/omicsflow/pathway-enrich/internal/source"
)

// ErrNoSources is returned when no adapter can attempt any requested
// category.
var ErrNoSources = eris.New("orchestrator: no source can serve any requested category")

// Recorder persists records and their payload snapshots.
type Recorder interface {
	SavePayloadSnapshot(ctx context.Context, ref string, data []byte) error
	SaveEnrichmentRecord(ctx context.Context, rec *model.EnrichmentRecord) error
	LinkRecordToPathway(ctx context.Context, pathwayID, recordID string) error
}

// Orchestrator runs enrichment requests against a fixed set of adapters
// and enrichers.
type Orchestrator struct {
	sources   *source.Registry
	enrichers *enricher.Registry
	scorer    *scorer.Scorer
	recorder  Recorder
	policy    *Policy
	now       func() time.Time
	newID     func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the category policy.
func WithPolicy(p *Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithRecorder sets where records are persisted. Without one, records are
// only linked in the pathway's metadata.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithScorer replaces the default scorer.
func WithScorer(s *scorer.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDs sets the id generator for requests and records.
func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// New creates an Orchestrator.
func New(sources *source.Registry, enrichers *enricher.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources:   sources,
		enrichers: enrichers,
		scorer:    scorer.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scorer returns the scorer in use.
func (o *Orchestrator) Scorer() *scorer.Scorer { return o.scorer }

type job struct {
	adapter  source.Adapter
	category model.Category
	id       string
}

// Run enriches p according to req.
//
// At most one Run may be in flight per pathway; callers must serialize.
// Cancelling ctx while sources are being queried stops issuing new
// queries, returns the context error, and leaves p untouched. Once results
// are collected, categories are applied one at a time; a category whose
// enricher fails or panics is rolled back and does not affect the others.
// If persisting the record fails, the returned Outcome describes the
// changes already applied to p alongside the error.
func (o *Orchestrator) Run(ctx context.Context, p model.Pathway, req model.EnrichmentRequest) (*Outcome, error) {
	start := o.now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "orchestrator: invalid request")
	}
	if req.PathwayID != p.ID() {
		return nil, eris.Errorf("orchestrator: request is for %q but pathway is %q", req.PathwayID, p.ID())
	}
	if req.ID == "" {
		req.ID = o.newID()
	}

	out := &Outcome{RequestID: req.ID, PathwayID: p.ID()}
	foreign := foreignIDs(p, req)

	var jobs []job
	for _, c := range req.UniqueCategories() {
		co := &CategoryOutcome{Category: c}
		co.move(StateRequested)
		out.Categories = append(out.Categories, co)

		for _, a := range o.sources.ForCategory(c) {
			if req.Excludes(a.Name()) {
				continue
			}
			id := req.PathwayID
			if fid, ok := foreign[a.Name()]; ok && fid != "" {
				id = fid
			}
			jobs = append(jobs, job{adapter: a, category: c, id: id})
		}
	}
	if len(jobs) == 0 {
		return nil, ErrNoSources
	}

	results, hosts, err := o.fetchAll(ctx, jobs, source.FetchOptions{Organism: req.Organism})
	if err != nil {
		return nil, err
	}
	out.Stats.Hosts = hosts
	for _, r := range results {
		out.Stats.Fetches++
		switch r.Status {
		case model.StatusSuccess:
			out.Stats.Succeeded++
		case model.StatusNotFound:
			out.Stats.NotFound++
		default:
			out.Stats.Errors++
		}
	}

	recordID := o.newID()
	for _, co := range out.Categories {
		var rs []model.Result
		for _, r := range results {
			if r.Category == co.Category {
				rs = append(rs, r)
			}
		}
		o.resolve(p, req, co, rs, recordID)
	}

	if err := o.record(ctx, p, req, out, recordID, start); err != nil {
		out.Duration = o.now().Sub(start)
		return out, err
	}

	for _, co := range out.Categories {
		metrics.CategoriesTotal.WithLabelValues(string(co.Category), string(co.State)).Inc()
		switch co.State {
		case StateRecorded:
			out.Stats.Applied++
			out.Stats.EntitiesChanged += co.Changes.EntitiesChanged
		case StateEmpty:
			out.Stats.Empty++
		case StateFailed:
			out.Stats.Failed++
		case StateSkipped:
			out.Stats.Skipped++
		}
	}
	out.Duration = o.now().Sub(start)

	zap.L().Info("orchestrator: run complete",
		zap.String("pathway", p.ID()),
		zap.String("request_id", req.ID),
		zap.Int("applied", out.Stats.Applied),
		zap.Int("failed", out.Stats.Failed),
		zap.Int("entities_changed", out.Stats.EntitiesChanged),
	)
	return out, nil
}

// foreignIDs merges the pathway's cross references with the request's
// overrides.
func foreignIDs(p model.Pathway, req model.EnrichmentRequest) map[string]string {
	ids := p.CrossReferences()
	if ids == nil {
		ids = make(map[string]string)
	}
	maps.Copy(ids, req.ForeignIDs)
	return ids
}

// fetchAll runs every job with at most one worker per distinct host. Results
// come back in job order. If ctx ends before every job has finished, no
// results are returned.
func (o *Orchestrator) fetchAll(ctx context.Context, jobs []job, opts source.FetchOptions) ([]model.Result, int, error) {
	hostSet := make(map[string]bool)
	for _, j := range jobs {
		hostSet[j.adapter.Host()] = true
	}

	results := make([]model.Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(len(hostSet))
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = j.adapter.Fetch(ctx, j.id, j.category, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		zap.L().Warn("orchestrator: cancelled during fetch", zap.Error(err))
		return nil, len(hostSet), eris.Wrap(err, "orchestrator: fetch cancelled")
	}
	return results, len(hostSet), nil
}

// resolve drives one category from FETCHING to just before RECORDED.
func (o *Orchestrator) resolve(p model.Pathway, req model.EnrichmentRequest, co *CategoryOutcome, rs []model.Result, recordID string) {
	co.move(StateFetching)
	if len(rs) == 0 {
		co.fail(StateEmpty, model.FailureSourceUnavailable, "no source available for category")
		return
	}

	co.move(StateScoring)
	rs = o.scorer.WithConsistency(rs)
	prefer := o.policy.Prefer(req, co.Category)
	ranked := o.scorer.Rank(rs, prefer)
	for _, r := range ranked {
		co.Candidates = append(co.Candidates, model.CandidateRecord{
			Source:  r.Source,
			Status:  r.Status,
			Score:   o.scorer.Score(r),
			Failure: r.Failure,
			Reason:  r.Reason,
		})
	}

	best, ok := o.scorer.Best(ranked, prefer)
	if !ok {
		co.fail(StateEmpty, emptyKind(ranked), summarize(ranked))
		return
	}

	floor := o.policy.Floor(req, co.Category)
	winner, ok := o.scorer.Best(o.scorer.Filter(ranked, floor), prefer)
	switch {
	case ok:
	case req.AllowPartial:
		winner = best
		co.Warnings = append(co.Warnings, fmt.Sprintf("%s: best score %.2f below minimum %.2f", co.Category, o.scorer.Score(best), floor))
	default:
		co.fail(StateFailed, model.FailureBelowThreshold,
			fmt.Sprintf("best score %.2f from %s below minimum %.2f", o.scorer.Score(best), best.Source, floor))
		return
	}

	score := o.scorer.Score(winner)
	co.winner = winner
	co.Winner = winner.Source
	co.Score = score
	co.Confidence = model.LabelFor(score, floor)
	co.move(StateSelected)

	enr, ok := o.enrichers.For(co.Category)
	if !ok || !enr.CanEnrich(co.Category) {
		co.fail(StateFailed, model.FailureValidation, "no enricher for category")
		return
	}

	v := enr.Validate(p, winner)
	co.Warnings = append(co.Warnings, v.Warnings...)
	if !v.OK {
		kind := v.Kind
		if kind == model.FailureNone {
			kind = model.FailureValidation
		}
		co.fail(StateSkipped, kind, v.Reason)
		zap.L().Warn("orchestrator: category skipped",
			zap.String("category", string(co.Category)),
			zap.String("source", winner.Source),
			zap.String("reason", v.Reason),
		)
		return
	}

	co.move(StateApplying)
	opts := enricher.ApplyOptions{
		Policy:   o.policy.Merge(req, co.Category),
		Score:    score,
		RecordID: recordID,
		Now:      o.now(),
	}
	co.Policy = enricher.PolicyFor(enr, opts)

	changes, err := apply(enr, p, winner, opts)
	if err != nil {
		co.fail(StateFailed, model.FailureApplication, err.Error())
		zap.L().Error("orchestrator: apply failed",
			zap.String("category", string(co.Category)),
			zap.String("source", winner.Source),
			zap.Error(err),
		)
		return
	}
	co.Warnings = append(co.Warnings, changes.Warnings...)
	co.Changes = changes
	if changes.EntitiesChanged == 0 {
		co.fail(StateEmpty, model.FailureNone, "nothing to change")
	}
}

// apply runs one enricher inside a journal and undoes its writes if it
// returns an error or panics.
func apply(enr enricher.Enricher, p model.Pathway, r model.Result, opts enricher.ApplyOptions) (changes *model.ChangeSummary, err error) {
	tx := enricher.Begin(p)
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("orchestrator: enricher panicked: %v", rec)
		}
		if err != nil {
			changes = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				err = eris.Wrapf(rbErr, "rollback after: %v", err)
			}
			return
		}
		tx.Commit()
	}()

	changes, err = enr.Apply(tx, r, opts)
	if err == nil && changes == nil {
		changes = &model.ChangeSummary{}
	}
	return changes, err
}

// emptyKind picks the failure kind of a category where no source succeeded.
func emptyKind(rs []model.Result) model.FailureKind {
	for _, r := range rs {
		if r.Failure != model.FailureNotFound {
			return model.FailureSourceUnavailable
		}
	}
	return model.FailureNotFound
}

func summarize(rs []model.Result) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		reason := r.Reason
		if reason == "" {
			reason = string(r.Failure)
		}
		parts = append(parts, r.Source+": "+reason)
	}
	return strings.Join(parts, "; ")
}

// record assembles, persists and links the run's record when at least one
// category changed the pathway.
func (o *Orchestrator) record(ctx context.Context, p model.Pathway, req model.EnrichmentRequest, out *Outcome, recordID string, start time.Time) error {
	rec := &model.EnrichmentRecord{
		ID:        recordID,
		RequestID: req.ID,
		PathwayID: p.ID(),
		CreatedAt: start,
	}
	snapshots := make(map[string][]byte)

	var pending []*CategoryOutcome
	for _, co := range out.Categories {
		rec.Warnings = append(rec.Warnings, co.Warnings...)
		if co.State != StateApplying {
			rec.Skipped = append(rec.Skipped, model.SkippedCategory{
				Category: co.Category,
				Kind:     co.Failure,
				Reason:   co.Reason,
			})
			continue
		}
		pending = append(pending, co)

		ref, data := snapshot(co.winner)
		if ref != "" {
			snapshots[ref] = data
		}
		var citations []string
		if c := co.winner.Attribution.Citation; c != "" {
			citations = append(citations, c)
		}
		attr := co.winner.Attribution
		if attr.Source == "" {
			attr.Source = co.winner.Source
		}
		rec.Categories = append(rec.Categories, model.CategoryRecord{
			Category:           co.Category,
			WinningSource:      co.Winner,
			QueryParams:        maps.Clone(co.winner.Query),
			PayloadSnapshotRef: ref,
			Score:              co.Score,
			Quality:            co.winner.Quality,
			Confidence:         co.Confidence,
			MergePolicy:        co.Policy,
			EntitiesChanged:    co.Changes.EntitiesChanged,
			ChangedEntities:    co.Changes.ChangedEntities,
			ChangeCounts:       co.Changes.ChangeCounts,
			FieldsTouched:      co.Changes.FieldsTouched,
			Citations:          citations,
			Attribution:        attr,
			Candidates:         co.Candidates,
		})
	}
	if len(pending) == 0 {
		metrics.RecordsTotal.WithLabelValues("none").Inc()
		return nil
	}

	if o.recorder != nil {
		for ref, data := range snapshots {
			if err := o.recorder.SavePayloadSnapshot(ctx, ref, data); err != nil {
				metrics.RecordsTotal.WithLabelValues("error").Inc()
				return eris.Wrapf(err, "orchestrator: save snapshot %s", ref)
			}
		}
		if err := o.recorder.SaveEnrichmentRecord(ctx, rec); err != nil {
			metrics.RecordsTotal.WithLabelValues("error").Inc()
			return eris.Wrap(err, "orchestrator: save record")
		}
		if err := o.recorder.LinkRecordToPathway(ctx, p.ID(), rec.ID); err != nil {
			metrics.RecordsTotal.WithLabelValues("error").Inc()
			return eris.Wrap(err, "orchestrator: link record")
		}
	}
	if err := p.LinkRecord(rec.ID); err != nil {
		metrics.RecordsTotal.WithLabelValues("error").Inc()
		return eris.Wrap(err, "orchestrator: link record in pathway")
	}

	for _, co := range pending {
		co.move(StateRecorded)
		metrics.WinningScore.WithLabelValues(string(co.Category)).Observe(co.Score)
		metrics.EntitiesChanged.WithLabelValues(string(co.Category)).Add(float64(co.Changes.EntitiesChanged))
	}
	metrics.RecordsTotal.WithLabelValues("saved").Inc()
	out.Record = rec
	return nil
}

// snapshot returns the content address and bytes of a result's raw payload.
// Results without raw bytes are snapshotted as their decoded payload.
func snapshot(r model.Result) (string, []byte) {
	data := r.Raw
	if len(data) == 0 && r.Payload != nil {
		var err error
		data, err = json.Marshal(r.Payload)
		if err != nil {
			return "", nil
		}
	}
	if len(data) == 0 {
		return "", nil
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), data
}
