package dashboard

import (
	"time"

	"evaldash/internal/evaluation"
)

// Visibility is the watcher's authoritative state for whether evaluation
// results may be shown.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	ResultsHidden
	ResultsVisible
)

// String implements fmt.Stringer for logs and API payloads.
func (v Visibility) String() string {
	switch v {
	case ResultsHidden:
		return "hidden"
	case ResultsVisible:
		return "visible"
	default:
		return "unknown"
	}
}

// Change describes the outcome of one watcher transition. Consumers must
// discard accumulated results when PeriodChanged is set.
type Change struct {
	Visibility    Visibility
	PeriodID      string
	Changed       bool
	PeriodChanged bool
}

// Watcher tracks the evaluation deadline. It is a plain state machine:
// ApplyDeadline, ApplyTick and FailOpen are its only mutation entry
// points, and the owning session loop calls them from a single
// goroutine.
type Watcher struct {
	now func() time.Time

	visibility Visibility
	periodID   string
	startDate  time.Time
	endDate    time.Time
	hasRecord  bool
}

// NewWatcher creates a watcher in the Unknown state. now is injectable
// for tests and defaults to time.Now.
func NewWatcher(now func() time.Time) *Watcher {
	if now == nil {
		now = time.Now
	}
	return &Watcher{now: now}
}

// ApplyDeadline reduces a pushed deadline document (or its absence) into
// the visibility state. A missing record means nothing is hidden.
func (w *Watcher) ApplyDeadline(d *evaluation.Deadline) Change {
	if d == nil {
		changed := w.visibility != ResultsVisible || w.hasRecord
		periodChanged := w.periodID != ""
		w.visibility = ResultsVisible
		w.periodID = ""
		w.startDate = time.Time{}
		w.endDate = time.Time{}
		w.hasRecord = false
		return Change{Visibility: w.visibility, Changed: changed, PeriodChanged: periodChanged}
	}

	period := d.Period()
	periodChanged := w.periodID != "" && w.periodID != period

	next := ResultsHidden
	if !w.now().Before(d.EndDate) {
		next = ResultsVisible
	}

	changed := next != w.visibility || w.periodID != period
	w.visibility = next
	w.periodID = period
	w.startDate = d.StartDate
	w.endDate = d.EndDate
	w.hasRecord = true
	return Change{Visibility: next, PeriodID: period, Changed: changed, PeriodChanged: periodChanged}
}

// ApplyTick re-derives visibility from the last pushed endDate, catching
// the natural passage of the deadline without an external write. It only
// reports a change when visibility actually flipped.
func (w *Watcher) ApplyTick() Change {
	if !w.hasRecord {
		return Change{Visibility: w.visibility, PeriodID: w.periodID}
	}
	next := ResultsHidden
	if !w.now().Before(w.endDate) {
		next = ResultsVisible
	}
	if next == w.visibility {
		return Change{Visibility: w.visibility, PeriodID: w.periodID}
	}
	w.visibility = next
	return Change{Visibility: next, PeriodID: w.periodID, Changed: true}
}

// FailOpen handles a transport error on the deadline subscription: never
// keep a professor locked out of results over a transient failure.
func (w *Watcher) FailOpen() Change {
	changed := w.visibility != ResultsVisible
	w.visibility = ResultsVisible
	return Change{Visibility: ResultsVisible, PeriodID: w.periodID, Changed: changed}
}

// Visibility returns the current state.
func (w *Watcher) Visibility() Visibility { return w.visibility }

// PeriodID returns the active period identifier, "" when none.
func (w *Watcher) PeriodID() string { return w.periodID }

// PeriodStart returns the active window's start date.
func (w *Watcher) PeriodStart() time.Time { return w.startDate }
