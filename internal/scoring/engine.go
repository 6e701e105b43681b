// Package scoring grades submitted answer sheets against a test paper.
//
// Everything here is pure: no I/O, no shared state. Callers load the paper and the
// percentages of other completed attempts, and persist whatever Grade returns.
package scoring

import (
	"sort"

	"mock-exam-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Policy returns the marks awarded for a question given the selected option.
// selected is nil when the submitted option id does not belong to the question.
type Policy func(q domain.Question, selected *domain.Option) float64

// AllOrNothing awards full marks for the correct option and nothing otherwise.
func AllOrNothing(q domain.Question, selected *domain.Option) float64 {
	if selected != nil && selected.Correct {
		return q.Marks
	}
	return 0
}

// NegativeMarking deducts fraction*marks for a wrong option that exists on the question.
// Unknown options are treated as unanswered.
func NegativeMarking(fraction float64) Policy {
	return func(q domain.Question, selected *domain.Option) float64 {
		if selected == nil {
			return 0
		}
		if selected.Correct {
			return q.Marks
		}
		return -fraction * q.Marks
	}
}

type Option func(*config)

type config struct {
	policy Policy
}

// WithPolicy overrides the default all-or-nothing policy.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		if p != nil {
			c.policy = p
		}
	}
}

// AnswerGrade is the outcome for a single submitted question.
type AnswerGrade struct {
	QuestionID       string
	SelectedOptionID string
	Correct          bool
	Marks            float64
	// Pending marks questions that need a reviewer (short answer, essay).
	Pending bool
}

// Result is the graded submission.
type Result struct {
	Grades        []AnswerGrade
	TotalMarks    float64
	ObtainedMarks float64
	Percentage    float64
	Rank          int
}

// Grade scores sheet against paper and ranks the result among prior, the percentages
// of the other completed attempts on the same paper.
func Grade(paper domain.TestPaper, sheet domain.AnswerSheet, prior []float64, opts ...Option) Result {
	cfg := &config{policy: AllOrNothing}
	for _, o := range opts {
		o(cfg)
	}

	var res Result
	for _, q := range paper.Questions() {
		res.TotalMarks += q.Marks

		optionID, answered := sheet[q.ID]
		if !answered {
			continue
		}
		grade := AnswerGrade{QuestionID: q.ID, SelectedOptionID: optionID}
		if !q.Type.AutoScorable() {
			grade.Pending = true
			res.Grades = append(res.Grades, grade)
			continue
		}

		var selected *domain.Option
		if opt, ok := q.Option(optionID); ok {
			selected = &opt
		}
		grade.Correct = selected != nil && selected.Correct
		grade.Marks = cfg.policy(q, selected)
		res.ObtainedMarks += grade.Marks
		res.Grades = append(res.Grades, grade)
	}

	res.Percentage = Percentage(res.ObtainedMarks, res.TotalMarks)
	res.Rank = Rank(res.Percentage, prior)
	return res
}

// Percentage returns obtained/total*100 rounded to two decimals, or 0 when total is not positive.
func Percentage(obtained, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromFloat(obtained).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(total)).
		Round(2).
		InexactFloat64()
}

// Rank is the 1-based position of p among others sorted descending.
// Ties share the best position: rank = 1 + number of strictly greater percentages.
func Rank(p float64, others []float64) int {
	rank := 1
	for _, o := range others {
		if o > p {
			rank++
		}
	}
	return rank
}

// Ranks applies the same rule as Rank to every element of percentages.
func Ranks(percentages []float64) []int {
	sorted := append([]float64(nil), percentages...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	out := make([]int, len(percentages))
	for i, p := range percentages {
		out[i] = sort.Search(len(sorted), func(j int) bool { return sorted[j] <= p }) + 1
	}
	return out
}
