// Package domain holds the records, outcomes and ports of the scrape pipeline
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/upstream/esimdb"
	"github.com/georgenavi/esimdb-scraper/internal/core/version"
)

// Country re-exports the discoverable entity shape
type Country = esimdb.Country

// RawPage re-exports one decoded upstream page
type RawPage = esimdb.Page

// FetchError re-exports the terminal fetch failure
type FetchError = esimdb.FetchError

// RawRecord is one undecoded upstream plan
type RawRecord = json.RawMessage

// Record is the canonical plan shape. Pointer fields are nil when the
// upstream value was missing or ambiguous, never zero
type Record struct {
	ID           string
	Country      string
	Region       string
	Provider     string
	PlanName     string
	PriceUSD     *float64
	DataGB       *float64
	ValidityDays *int
}

// SchemaVersion identifies the output column contract
const SchemaVersion = version.SchemaVersion

// Validated is a Record that passed validation, stamped for one run
type Validated struct {
	Record
	ScrapeDate    string
	SchemaVersion string
}

// Reason names why a record was rejected or a field degraded
type Reason string

const (
	ReasonNotAnObject Reason = "not_an_object"
	ReasonMissingID   Reason = "missing_id"
	ReasonMissingName Reason = "missing_name"
	ReasonContract    Reason = "contract"

	ReasonAbsent      Reason = "absent"
	ReasonUnparseable Reason = "unparseable"
	ReasonUnitMissing Reason = "unit_missing"
	ReasonUnitUnknown Reason = "unit_unknown"
	ReasonNonPositive Reason = "non_positive"
	ReasonNonFinite   Reason = "non_finite"
	ReasonSuspicious  Reason = "suspicious"
)

// Degradation is one field that was set to absent, or kept but flagged
type Degradation struct {
	Field  string
	Reason Reason
	Value  string

	// Kept is true when the value survives and is only flagged
	Kept bool
}

// Rejection drops a whole record
type Rejection struct {
	Reason Reason
	Detail string
}

// Error interface
func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "record rejected: " + string(r.Reason)
	}
	return fmt.Sprintf("record rejected: %s: %s", r.Reason, r.Detail)
}

// Status is the terminal state of one entity in a run
type Status string

const (
	StatusWritten Status = "written"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// WalkState is the pagination state machine position
type WalkState uint8

const (
	StateFetching WalkState = iota + 1
	StateProcessing
	StateDone
	StateFailed
)

// String returns the state name used in logs
func (s WalkState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Batch is everything one entity walk accepted
type Batch struct {
	Country    Country
	Records    []Validated
	Pages      int
	Duplicates int
	Dropped    int
	Degraded   int
}

// Outcome is the per entity result of a run
type Outcome struct {
	Country    string
	Status     Status
	Rows       int
	Path       string
	Pages      int
	Duplicates int
	Dropped    int
	Degraded   int
	Mirrored   string
	MirrorErr  error
	Err        error
	Started    time.Time
	Finished   time.Time
}

// Reason returns the failure text or empty
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RunResult aggregates all outcomes of one run
type RunResult struct {
	RunID      string
	ScrapeDate string
	Outcomes   []Outcome

	Written        int
	Empty          int
	Failed         int
	Plans          int
	Duplicates     int
	Dropped        int
	Degraded       int
	MirrorFailures int

	// NotStarted counts entities never admitted because the run was cancelled
	NotStarted int

	// Interrupted is set when the run context was cancelled
	Interrupted bool
}

// Add folds one outcome into the totals
func (r *RunResult) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusWritten:
		r.Written++
	case StatusEmpty:
		r.Empty++
	case StatusFailed:
		r.Failed++
	}
	r.Plans += o.Rows
	r.Duplicates += o.Duplicates
	r.Dropped += o.Dropped
	r.Degraded += o.Degraded
	if o.MirrorErr != nil {
		r.MirrorFailures++
	}
}

// Sort orders outcomes by country for stable summaries
func (r *RunResult) Sort() {
	sort.Slice(r.Outcomes, func(i, j int) bool { return r.Outcomes[i].Country < r.Outcomes[j].Country })
}

// ByCountry maps entity slug to its outcome
func (r RunResult) ByCountry() map[string]Outcome {
	out := make(map[string]Outcome, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Country] = o
	}
	return out
}

// OK reports whether every entity ended written or empty
func (r RunResult) OK() bool { return r.Failed == 0 && !r.Interrupted }

// EntityRun is one ledger row
type EntityRun struct {
	RunID      string
	ScrapeDate string
	Country    string
	Status     string
	Pages      int
	Plans      int
	Duplicates int
	Dropped    int
	Degraded   int
	Path       string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
