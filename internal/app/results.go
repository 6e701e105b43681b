package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"mock-exam-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ResultSummary is one completed attempt in the learner's history.
type ResultSummary struct {
	AttemptID     string    `json:"attemptId"`
	TestPaperID   string    `json:"testPaperId"`
	PaperTitle    string    `json:"paperTitle"`
	Subject       string    `json:"subject"`
	ExamName      string    `json:"examName"`
	Category      string    `json:"category"`
	TotalMarks    float64   `json:"totalMarks"`
	ObtainedMarks float64   `json:"obtainedMarks"`
	Percentage    float64   `json:"percentage"`
	Rank          int       `json:"rank"`
	TimeSpent     int       `json:"timeSpent"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// QuestionReview pairs a question (with its answer key) with the learner's graded answer.
type QuestionReview struct {
	Question         domain.Question `json:"question"`
	SelectedOptionID string          `json:"selectedOption,omitempty"`
	Correct          bool            `json:"isCorrect"`
	MarksObtained    float64         `json:"marksObtained"`
	Answered         bool            `json:"answered"`
}

// ResultDetail is the full review of a completed attempt.
type ResultDetail struct {
	ResultSummary
	Questions []QuestionReview `json:"questions"`
}

// SubjectStat aggregates results per subject for the dashboard.
type SubjectStat struct {
	Subject           string  `json:"subject"`
	Tests             int     `json:"tests"`
	AveragePercentage float64 `json:"averagePercentage"`
}

// DashboardStats summarises a learner's performance.
type DashboardStats struct {
	TotalTests        int             `json:"totalTests"`
	AveragePercentage float64         `json:"averageScore"`
	BestPercentage    float64         `json:"bestScore"`
	TotalTimeSpent    int             `json:"totalTimeSpent"`
	Accuracy          float64         `json:"accuracy"`
	Recent            []ResultSummary `json:"recentTests"`
	Subjects          []SubjectStat   `json:"subjectWise"`
}

const recentResults = 5

// ListResults returns the learner's completed attempts, newest first.
func (s *ExamService) ListResults(ctx context.Context, userID string) ([]ResultSummary, error) {
	attempts, err := s.attempts.CompletedByLearner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ResultSummary, 0, len(attempts))
	lookup := s.paperLookup()
	for _, a := range attempts {
		sum, err := lookup(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// GetResult returns the reviewed attempt. Only the owner may read it and only once submitted.
func (s *ExamService) GetResult(ctx context.Context, userID, attemptID string) (ResultDetail, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return ResultDetail{}, err
	}
	if attempt.UserID != userID {
		return ResultDetail{}, domain.ErrNotOwner
	}
	if !attempt.Completed {
		return ResultDetail{}, domain.ErrAttemptInProgress
	}
	paper, err := s.papers.GetPaper(ctx, attempt.TestPaperID)
	if err != nil {
		return ResultDetail{}, err
	}
	summary, err := s.paperLookup()(ctx, attempt)
	if err != nil {
		return ResultDetail{}, err
	}
	answers, err := s.attempts.Answers(ctx, attempt.ID)
	if err != nil {
		return ResultDetail{}, err
	}
	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	questions := paper.Questions()
	reviews := make([]QuestionReview, 0, len(questions))
	for _, q := range questions {
		r := QuestionReview{Question: q}
		if a, ok := byQuestion[q.ID]; ok {
			r.SelectedOptionID = a.SelectedOptionID
			r.Correct = a.Correct
			r.MarksObtained = a.MarksObtained
			r.Answered = true
		}
		reviews = append(reviews, r)
	}
	return ResultDetail{ResultSummary: summary, Questions: reviews}, nil
}

// Dashboard computes the learner's aggregate statistics.
func (s *ExamService) Dashboard(ctx context.Context, userID string) (DashboardStats, error) {
	results, err := s.ListResults(ctx, userID)
	if err != nil {
		return DashboardStats{}, err
	}
	answers, err := s.attempts.AnswersByLearner(ctx, userID)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{TotalTests: len(results), Recent: []ResultSummary{}, Subjects: []SubjectStat{}}
	if len(results) == 0 {
		return stats, nil
	}

	sum := decimal.Zero
	bySubject := make(map[string][]float64)
	for _, r := range results {
		sum = sum.Add(decimal.NewFromFloat(r.Percentage))
		if r.Percentage > stats.BestPercentage {
			stats.BestPercentage = r.Percentage
		}
		stats.TotalTimeSpent += r.TimeSpent
		bySubject[r.Subject] = append(bySubject[r.Subject], r.Percentage)
	}
	stats.AveragePercentage = round2(sum.Div(decimal.NewFromInt(int64(len(results)))))

	correct := 0
	for _, a := range answers {
		if a.Correct {
			correct++
		}
	}
	if len(answers) > 0 {
		stats.Accuracy = round2(decimal.NewFromInt(int64(correct)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(len(answers)))))
	}

	n := recentResults
	if len(results) < n {
		n = len(results)
	}
	stats.Recent = results[:n]

	for subject, ps := range bySubject {
		stats.Subjects = append(stats.Subjects, SubjectStat{Subject: subject, Tests: len(ps), AveragePercentage: average(ps)})
	}
	sort.Slice(stats.Subjects, func(i, j int) bool { return stats.Subjects[i].Subject < stats.Subjects[j].Subject })
	return stats, nil
}

// paperLookup builds summaries, memoising paper and exam reads for one request.
func (s *ExamService) paperLookup() func(context.Context, domain.Attempt) (ResultSummary, error) {
	papers := make(map[string]domain.TestPaper)
	exams := make(map[string]domain.Exam)
	return func(ctx context.Context, a domain.Attempt) (ResultSummary, error) {
		paper, ok := papers[a.TestPaperID]
		if !ok {
			var err error
			paper, err = s.papers.GetPaper(ctx, a.TestPaperID)
			if err != nil {
				return ResultSummary{}, err
			}
			papers[a.TestPaperID] = paper
		}
		exam, ok := exams[paper.ExamID]
		if !ok {
			var err error
			exam, err = s.catalog.GetExam(ctx, paper.ExamID)
			if err != nil && !errors.Is(err, domain.ErrExamNotFound) {
				return ResultSummary{}, err
			}
			exams[paper.ExamID] = exam
		}
		return ResultSummary{
			AttemptID:     a.ID,
			TestPaperID:   paper.ID,
			PaperTitle:    paper.Title,
			Subject:       paper.Subject,
			ExamName:      exam.Name,
			Category:      exam.Category,
			TotalMarks:    deref(a.TotalMarks),
			ObtainedMarks: deref(a.ObtainedMarks),
			Percentage:    deref(a.Percentage),
			Rank:          deref(a.Rank),
			TimeSpent:     deref(a.TimeSpentSeconds),
			SubmittedAt:   deref(a.SubmittedAt),
		}, nil
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return round2(sum.Div(decimal.NewFromInt(int64(len(values)))))
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
