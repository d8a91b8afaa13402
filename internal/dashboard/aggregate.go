package dashboard

import (
	"math"
	"strings"

	"evaldash/internal/evaluation"
)

// Qualitative ratings with their display colors.
const (
	RatingExcellent        = "Excellent"
	RatingVeryGood         = "Very Good"
	RatingGood             = "Good"
	RatingSatisfactory     = "Satisfactory"
	RatingNeedsImprovement = "Needs Improvement"
)

// SectionCatalog is the canonical ordering of evaluation sections.
// Sections found in data but not listed here sort after these.
var SectionCatalog = []string{
	"Instructional Competence",
	"Classroom Management",
	"Research",
	"Student Support & Development",
	"Professionalism & Personal Qualities",
	"verbal interpretation",
}

// RateScale maps a positive percentage to its qualitative rating and
// display color.
func RateScale(percentage int) (string, string) {
	switch {
	case percentage >= 90:
		return RatingExcellent, "#10b981"
	case percentage >= 80:
		return RatingVeryGood, "#3b82f6"
	case percentage >= 70:
		return RatingGood, "#8b5cf6"
	case percentage >= 60:
		return RatingSatisfactory, "#f59e0b"
	default:
		return RatingNeedsImprovement, "#ef4444"
	}
}

// Summary is the overall performance across completed evaluations.
type Summary struct {
	Completed   int    `json:"completedCount"`
	Total       int    `json:"totalResponses"`
	Positive    int    `json:"positiveResponses"`
	Percentage  int    `json:"percentage"`
	Rating      string `json:"rating"`
	RatingColor string `json:"ratingColor"`
}

// Summarize computes completion count and the positive percentage over
// rating responses of completed evaluations. With zero rating responses
// the percentage is 0 and the rating bottoms out.
func Summarize(results []evaluation.Result) Summary {
	var s Summary
	for _, res := range results {
		if !res.IsComplete {
			continue
		}
		s.Completed++
		for _, resp := range res.Responses {
			if !resp.IsRated() {
				continue
			}
			s.Total++
			if evaluation.IsPositive(resp.Answer) {
				s.Positive++
			}
		}
	}
	s.Percentage = percent(s.Positive, s.Total)
	s.Rating, s.RatingColor = RateScale(s.Percentage)
	return s
}

func percent(positive, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(positive) / float64(total)))
}

// QuestionBreakdown aggregates one question across all evaluations.
// Rating questions count answers; text questions collect the literal
// answers instead.
type QuestionBreakdown struct {
	Question    string         `json:"question"`
	Type        string         `json:"questionType"`
	Section     string         `json:"section,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
	TextAnswers []string       `json:"textAnswers,omitempty"`
	Total       int            `json:"total"`
}

// ByQuestion groups responses by question text, preserving first-seen
// order. An empty section filters nothing.
func ByQuestion(results []evaluation.Result, section string) []QuestionBreakdown {
	var order []string
	byText := make(map[string]*QuestionBreakdown)
	for _, res := range results {
		for _, resp := range res.Responses {
			if section != "" && resp.Section != section {
				continue
			}
			q, ok := byText[resp.QuestionText]
			if !ok {
				q = &QuestionBreakdown{
					Question: resp.QuestionText,
					Type:     resp.QuestionType,
					Section:  resp.Section,
				}
				if q.Type == "" {
					q.Type = "rating"
				}
				byText[resp.QuestionText] = q
				order = append(order, resp.QuestionText)
			}
			if resp.QuestionType == evaluation.QuestionTypeText {
				if strings.TrimSpace(resp.Answer) != "" {
					q.TextAnswers = append(q.TextAnswers, resp.Answer)
					q.Total++
				}
				continue
			}
			if q.Counts == nil {
				q.Counts = make(map[string]int)
			}
			q.Counts[resp.Answer]++
			q.Total++
		}
	}

	out := make([]QuestionBreakdown, 0, len(order))
	for _, text := range order {
		out = append(out, *byText[text])
	}
	return out
}

// SectionBreakdown is the positive-percentage summary for one section
// tag.
type SectionBreakdown struct {
	Section     string `json:"section"`
	Total       int    `json:"total"`
	Positive    int    `json:"positive"`
	Percentage  int    `json:"percentage"`
	Rating      string `json:"rating"`
	RatingColor string `json:"ratingColor"`
}

// BySection summarizes every section present in the results, ordered by
// the catalog with unknown sections appended in first-seen order.
func BySection(results []evaluation.Result) []SectionBreakdown {
	totals := make(map[string]*SectionBreakdown)
	var extras []string
	for _, res := range results {
		for _, resp := range res.Responses {
			if resp.Section == "" {
				continue
			}
			sb, ok := totals[resp.Section]
			if !ok {
				sb = &SectionBreakdown{Section: resp.Section}
				totals[resp.Section] = sb
				if !inCatalog(resp.Section) {
					extras = append(extras, resp.Section)
				}
			}
			sb.Total++
			if evaluation.IsPositive(resp.Answer) {
				sb.Positive++
			}
		}
	}

	var out []SectionBreakdown
	appendSection := func(name string) {
		sb := totals[name]
		if sb == nil {
			return
		}
		sb.Percentage = percent(sb.Positive, sb.Total)
		sb.Rating, sb.RatingColor = RateScale(sb.Percentage)
		out = append(out, *sb)
	}
	for _, name := range SectionCatalog {
		appendSection(name)
	}
	for _, name := range extras {
		appendSection(name)
	}
	return out
}

func inCatalog(section string) bool {
	for _, s := range SectionCatalog {
		if s == section {
			return true
		}
	}
	return false
}
