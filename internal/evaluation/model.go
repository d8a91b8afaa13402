package evaluation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Rating-scale answers as written by the submission flow.
const (
	AnswerStronglyAgree    = "Strongly Agree"
	AnswerAgree            = "Agree"
	AnswerUndecided        = "Undecided"
	AnswerDisagree         = "Disagree"
	AnswerStronglyDisagree = "Strongly Disagree"
)

// QuestionTypeText marks free-form questions. Everything else is treated
// as a rating question.
const QuestionTypeText = "text"

// Response is one answered question inside a result document.
type Response struct {
	QuestionText string `json:"questionText"`
	QuestionType string `json:"questionType"`
	Answer       string `json:"answer"`
	Section      string `json:"section,omitempty"`
}

// Result is one student evaluation document. Immutable once written by
// the submission flow; this service only reads them.
//
// CreatedAt and SubmittedAt are deliberately untyped: legacy documents
// carry RFC3339 strings, epoch numbers, numeric strings, or
// {seconds,nanos} objects, and some carry nothing at all.
type Result struct {
	ProfessorEmail     string     `json:"professorEmail"`
	ProfessorID        string     `json:"professorId"`
	ProfessorName      string     `json:"professorName"`
	DepartmentName     string     `json:"departmentName"`
	EvaluationStatus   string     `json:"evaluationStatus"`
	IsComplete         bool       `json:"isComplete"`
	Responses          []Response `json:"responses"`
	EvaluationPeriodID string     `json:"evaluationPeriodId,omitempty"`
	CreatedAt          any        `json:"createdAt,omitempty"`
	SubmittedAt        any        `json:"submittedAt,omitempty"`
}

// IsPositive reports whether a rating answer counts toward the positive
// percentage.
func IsPositive(answer string) bool {
	return answer == AnswerStronglyAgree || answer == AnswerAgree
}

// IsRated reports whether a response participates in percentage math.
// Text questions and the free-form sections are narrative, not rated.
func (r Response) IsRated() bool {
	if r.QuestionType == QuestionTypeText {
		return false
	}
	switch strings.ToLower(r.Section) {
	case "verbal interpretation", "comments":
		return false
	}
	return true
}

// Deadline is the singleton document controlling when submissions are
// open and results are hidden. The [StartDate, EndDate) interval is the
// active evaluation window.
type Deadline struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
	PeriodID  string    `json:"periodId,omitempty"`
}

// Period returns the stable identifier for this evaluation window:
// the stored PeriodID, or one derived from the start date when absent.
func (d Deadline) Period() string {
	if d.PeriodID != "" {
		return d.PeriodID
	}
	return fmt.Sprintf("period_%d", d.StartDate.UnixMilli())
}

// NormalizeTimestamp converts the ragged timestamp shapes found in result
// documents to a time.Time. ok is false when the shape is unrecognized;
// callers exclude such records rather than guess.
func NormalizeTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return fromEpoch(n), true
		}
		return time.Time{}, false
	case float64:
		return fromEpoch(t), true
	case int64:
		return fromEpoch(float64(t)), true
	case int:
		return fromEpoch(float64(t)), true
	case map[string]any:
		// Firestore-style {seconds, nanos}.
		secs, ok := t["seconds"].(float64)
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := t["nanos"].(float64)
		return time.Unix(int64(secs), int64(nanos)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// fromEpoch treats large magnitudes as milliseconds and the rest as
// seconds, matching how the submission clients have written timestamps.
func fromEpoch(n float64) time.Time {
	if math.Abs(n) >= 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// Timestamp returns the result's creation instant, preferring createdAt
// over submittedAt. ok is false when neither field has a usable shape.
func (r Result) Timestamp() (time.Time, bool) {
	if ts, ok := NormalizeTimestamp(r.CreatedAt); ok {
		return ts, true
	}
	return NormalizeTimestamp(r.SubmittedAt)
}

// BelongsToPeriod reports whether the result is part of the active
// evaluation window. A period tag on the record is trusted
// unconditionally. Untagged records compare their timestamp against the
// window start; an untagged record whose timestamp has an unrecognized
// shape is excluded, while one with no timestamp at all is kept.
func (r Result) BelongsToPeriod(periodID string, start time.Time) bool {
	if r.EvaluationPeriodID != "" {
		return r.EvaluationPeriodID == periodID
	}
	ts, ok := r.Timestamp()
	if !ok {
		return r.CreatedAt == nil && r.SubmittedAt == nil
	}
	return !ts.Before(start)
}
