package orchestrator

import (
	"time"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// State is where a category is in its lifecycle.
type State string

const (
	StateRequested State = "REQUESTED"
	StateFetching  State = "FETCHING"
	StateScoring   State = "SCORING"
	StateSelected  State = "SELECTED"
	StateApplying  State = "APPLYING"
	StateRecorded  State = "RECORDED"
	StateEmpty     State = "EMPTY"
	StateFailed    State = "FAILED"
	StateSkipped   State = "SKIPPED"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateRecorded, StateEmpty, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// CategoryOutcome is the result of one requested category.
type CategoryOutcome struct {
	Category   model.Category          `json:"category"`
	State      State                   `json:"state"`
	History    []State                 `json:"history"`
	Winner     string                  `json:"winner,omitempty"`
	Score      float64                 `json:"score,omitempty"`
	Confidence model.ConfidenceLabel   `json:"confidence,omitempty"`
	Policy     model.MergePolicy       `json:"merge_policy,omitempty"`
	Candidates []model.CandidateRecord `json:"candidates,omitempty"`
	Changes    *model.ChangeSummary    `json:"changes,omitempty"`
	Failure    model.FailureKind       `json:"failure,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`

	winner model.Result
}

func (co *CategoryOutcome) move(s State) {
	co.State = s
	co.History = append(co.History, s)
}

func (co *CategoryOutcome) fail(s State, kind model.FailureKind, reason string) {
	co.Failure = kind
	co.Reason = reason
	co.move(s)
}

// Stats aggregates one run.
type Stats struct {
	Fetches         int `json:"fetches"`
	Succeeded       int `json:"succeeded"`
	NotFound        int `json:"not_found"`
	Errors          int `json:"errors"`
	Hosts           int `json:"hosts"`
	Applied         int `json:"applied"`
	Empty           int `json:"empty"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	EntitiesChanged int `json:"entities_changed"`
}

// Outcome is what Run reports.
type Outcome struct {
	RequestID  string                  `json:"request_id"`
	PathwayID  string                  `json:"pathway_id"`
	Categories []*CategoryOutcome      `json:"categories"`
	Stats      Stats                   `json:"stats"`
	Record     *model.EnrichmentRecord `json:"record,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// Category returns the outcome of c.
func (o *Outcome) Category(c model.Category) (*CategoryOutcome, bool) {
	for _, co := range o.Categories {
		if co.Category == c {
			return co, true
		}
	}
	return nil, false
}

// Applied lists the categories whose changes were written.
func (o *Outcome) Applied() []model.Category {
	var out []model.Category
	for _, co := range o.Categories {
		if co.State == StateRecorded {
			out = append(out, co.Category)
		}
	}
	return out
}
