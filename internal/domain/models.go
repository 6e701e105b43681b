package domain

import "time"

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionShortAnswer QuestionType = "short_answer"
	QuestionEssay       QuestionType = "essay"
)

// AutoScorable reports whether answers to this type can be graded without a reviewer.
func (t QuestionType) AutoScorable() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"isCorrect" yaml:"correct"`
}

// Question is a single item of a test paper.
type Question struct {
	ID          string       `json:"id" yaml:"id"`
	Prompt      string       `json:"question" yaml:"prompt"`
	Type        QuestionType `json:"type" yaml:"type"`
	Marks       float64      `json:"marks" yaml:"marks"`
	Difficulty  string       `json:"difficulty,omitempty" yaml:"difficulty"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation"`
	Options     []Option     `json:"options" yaml:"options"`
}

// Option looks up an option by id.
func (q Question) Option(id string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// CorrectOption returns the first option flagged correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return Option{}, false
}

// Section groups questions inside a paper.
type Section struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// TestPaper is a timed, scored collection of sections.
type TestPaper struct {
	ID                   string    `json:"id" yaml:"id"`
	ExamID               string    `json:"examId" yaml:"exam_id"`
	Subject              string    `json:"subject" yaml:"subject"`
	Title                string    `json:"title" yaml:"title"`
	Description          string    `json:"description,omitempty" yaml:"description"`
	DurationMinutes      int       `json:"duration" yaml:"duration"`
	IsActive             bool      `json:"isActive" yaml:"active"`
	ConfiguredTotalMarks float64   `json:"totalMarks" yaml:"total_marks"`
	Sections             []Section `json:"sections" yaml:"sections"`
	CreatedAt            time.Time `json:"createdAt" yaml:"-"`
}

// Questions flattens all sections in paper order.
func (p TestPaper) Questions() []Question {
	var out []Question
	for _, s := range p.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// Question looks up a question by id across sections.
func (p TestPaper) Question(id string) (Question, bool) {
	for _, s := range p.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// Duration returns the time allowed for one attempt.
func (p TestPaper) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Redacted returns a copy safe to serve to learners (no correctness flags, no explanations).
func (p TestPaper) Redacted() TestPaper {
	out := p
	out.Sections = make([]Section, len(p.Sections))
	for i, s := range p.Sections {
		qs := make([]Question, len(s.Questions))
		for j, q := range s.Questions {
			q.Explanation = ""
			opts := make([]Option, len(q.Options))
			for k, o := range q.Options {
				opts[k] = Option{ID: o.ID, Text: o.Text}
			}
			q.Options = opts
			qs[j] = q
		}
		out.Sections[i] = Section{ID: s.ID, Name: s.Name, Questions: qs}
	}
	return out
}

// MarksAvailable sums the marks of every question; it is the percentage denominator.
func (p TestPaper) MarksAvailable() float64 {
	total := 0.0
	for _, q := range p.Questions() {
		total += q.Marks
	}
	return total
}

// Summary returns the listing view. The configured total is shown when set.
func (p TestPaper) Summary() PaperSummary {
	total := p.ConfiguredTotalMarks
	if total <= 0 {
		total = p.MarksAvailable()
	}
	return PaperSummary{
		ID:              p.ID,
		ExamID:          p.ExamID,
		Title:           p.Title,
		Subject:         p.Subject,
		DurationMinutes: p.DurationMinutes,
		TotalMarks:      total,
		CreatedAt:       p.CreatedAt,
	}
}

// PaperSummary is the listing view of a test paper.
type PaperSummary struct {
	ID              string    `json:"id"`
	ExamID          string    `json:"examId"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject"`
	DurationMinutes int       `json:"duration"`
	TotalMarks      float64   `json:"totalMarks"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Exam owns test papers and is the unit learners enroll in.
type Exam struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
	IsActive    bool   `json:"isActive" yaml:"active"`
}

// Category summarises exams sharing a category.
type Category struct {
	Name      string `json:"name"`
	ExamCount int    `json:"examCount"`
}

// Enrollment grants a learner access to an exam's papers.
type Enrollment struct {
	UserID    string    `json:"userId" yaml:"user_id"`
	ExamID    string    `json:"examId" yaml:"exam_id"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

// AnswerSheet maps question id to the selected option id.
type AnswerSheet map[string]string

// Attempt is one learner's single pass through a test paper.
type Attempt struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	TestPaperID      string      `json:"testPaperId"`
	StartedAt        time.Time   `json:"startedAt"`
	SubmittedAt      *time.Time  `json:"submittedAt,omitempty"`
	TimeSpentSeconds *int        `json:"timeSpent,omitempty"`
	Completed        bool        `json:"isCompleted"`
	TotalMarks       *float64    `json:"totalMarks,omitempty"`
	ObtainedMarks    *float64    `json:"obtainedMarks,omitempty"`
	Percentage       *float64    `json:"percentage,omitempty"`
	Rank             *int        `json:"rank,omitempty"`
	Draft            AnswerSheet `json:"draft,omitempty"`
}

// Answer is the graded record of one question of an attempt.
type Answer struct {
	ID               string  `json:"id"`
	AttemptID        string  `json:"attemptId"`
	QuestionID       string  `json:"questionId"`
	SelectedOptionID string  `json:"selectedOption"`
	Correct          bool    `json:"isCorrect"`
	MarksObtained    float64 `json:"marksObtained"`
}

// StandingsEntry is one row of a paper's live standings board.
type StandingsEntry struct {
	AttemptID   string    `json:"attemptId"`
	UserID      string    `json:"userId"`
	Percentage  float64   `json:"percentage"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Standings captures the ordered board for a test paper.
type Standings struct {
	TestPaperID string           `json:"testPaperId"`
	Entries     []StandingsEntry `json:"entries"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// CatalogCounts holds the admin overview totals owned by the catalog.
type CatalogCounts struct {
	Exams      int `json:"totalExams"`
	TestPapers int `json:"totalTestPapers"`
	Questions  int `json:"totalQuestions"`
	Learners   int `json:"totalUsers"`
}
