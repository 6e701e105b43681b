package sqldb

import (
	"encoding/json"
	"time"

	"mock-exam-service/internal/domain"

	"github.com/uptrace/bun"
)

// ExamRow is the exams table. The catalog tables are read by the pgx catalog; bun owns
// their schema so one migration set serves both drivers.
type ExamRow struct {
	bun.BaseModel `bun:"table:exams,alias:e"`

	ID          string `bun:"id,pk"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description,notnull,default:''"`
	Category    string `bun:"category,notnull"`
	IsActive    bool   `bun:"is_active,notnull,default:true"`
}

// PaperRow keeps paper metadata in columns and the sections as one JSON document.
type PaperRow struct {
	bun.BaseModel `bun:"table:test_papers,alias:tp"`

	ID              string          `bun:"id,pk"`
	ExamID          string          `bun:"exam_id,notnull"`
	Subject         string          `bun:"subject,notnull,default:''"`
	Title           string          `bun:"title,notnull"`
	Description     string          `bun:"description,notnull,default:''"`
	DurationMinutes int             `bun:"duration_minutes,notnull"`
	IsActive        bool            `bun:"is_active,notnull,default:true"`
	TotalMarks      float64         `bun:"total_marks,notnull,default:0"`
	Content         json.RawMessage `bun:"content,type:jsonb,notnull"`
	CreatedAt       time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}

type EnrollmentRow struct {
	bun.BaseModel `bun:"table:enrollments,alias:en"`

	UserID    string    `bun:"user_id,pk"`
	ExamID    string    `bun:"exam_id,pk"`
	IsActive  bool      `bun:"is_active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// AttemptRow allows one attempt per learner and paper.
type AttemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID            string            `bun:"id,pk"`
	UserID        string            `bun:"user_id,notnull,unique:attempts_learner_paper"`
	TestPaperID   string            `bun:"test_paper_id,notnull,unique:attempts_learner_paper"`
	StartedAt     time.Time         `bun:"started_at,notnull"`
	SubmittedAt   *time.Time        `bun:"submitted_at"`
	TimeSpent     *int              `bun:"time_spent"`
	IsCompleted   bool              `bun:"is_completed,notnull,default:false"`
	TotalMarks    *float64          `bun:"total_marks"`
	ObtainedMarks *float64          `bun:"obtained_marks"`
	Percentage    *float64          `bun:"percentage"`
	Rank          *int              `bun:"rank"`
	Draft         map[string]string `bun:"draft,type:jsonb"`
}

type AnswerRow struct {
	bun.BaseModel `bun:"table:answers,alias:ans"`

	ID               string  `bun:"id,pk"`
	AttemptID        string  `bun:"attempt_id,notnull,unique:answers_attempt_question"`
	QuestionID       string  `bun:"question_id,notnull,unique:answers_attempt_question"`
	SelectedOptionID string  `bun:"selected_option_id,notnull"`
	IsCorrect        bool    `bun:"is_correct,notnull"`
	MarksObtained    float64 `bun:"marks_obtained,notnull"`
}

// CustomQuizRow keeps the selected subject and topic ids as JSON arrays.
type CustomQuizRow struct {
	bun.BaseModel `bun:"table:custom_quizzes,alias:cq"`

	ID              string    `bun:"id,pk"`
	UserID          string    `bun:"user_id,notnull"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description,notnull,default:''"`
	QuestionCount   int       `bun:"question_count,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	SubjectIDs      []string  `bun:"subject_ids,type:jsonb,notnull"`
	TopicIDs        []string  `bun:"topic_ids,type:jsonb,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

func customQuizFromRow(r CustomQuizRow) domain.CustomQuiz {
	topics := r.TopicIDs
	if topics == nil {
		topics = []string{}
	}
	return domain.CustomQuiz{
		ID:              r.ID,
		UserID:          r.UserID,
		Title:           r.Title,
		Description:     r.Description,
		QuestionCount:   r.QuestionCount,
		DurationMinutes: r.DurationMinutes,
		SubjectIDs:      r.SubjectIDs,
		TopicIDs:        topics,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func attemptFromRow(r AttemptRow) domain.Attempt {
	a := domain.Attempt{
		ID:               r.ID,
		UserID:           r.UserID,
		TestPaperID:      r.TestPaperID,
		StartedAt:        r.StartedAt.UTC(),
		TimeSpentSeconds: r.TimeSpent,
		Completed:        r.IsCompleted,
		TotalMarks:       r.TotalMarks,
		ObtainedMarks:    r.ObtainedMarks,
		Percentage:       r.Percentage,
		Rank:             r.Rank,
		Draft:            domain.AnswerSheet(r.Draft),
	}
	if r.SubmittedAt != nil {
		at := r.SubmittedAt.UTC()
		a.SubmittedAt = &at
	}
	return a
}

func attemptToRow(a domain.Attempt) AttemptRow {
	return AttemptRow{
		ID:            a.ID,
		UserID:        a.UserID,
		TestPaperID:   a.TestPaperID,
		StartedAt:     a.StartedAt,
		SubmittedAt:   a.SubmittedAt,
		TimeSpent:     a.TimeSpentSeconds,
		IsCompleted:   a.Completed,
		TotalMarks:    a.TotalMarks,
		ObtainedMarks: a.ObtainedMarks,
		Percentage:    a.Percentage,
		Rank:          a.Rank,
		Draft:         map[string]string(a.Draft),
	}
}

func answerFromRow(r AnswerRow) domain.Answer {
	return domain.Answer{
		ID:               r.ID,
		AttemptID:        r.AttemptID,
		QuestionID:       r.QuestionID,
		SelectedOptionID: r.SelectedOptionID,
		Correct:          r.IsCorrect,
		MarksObtained:    r.MarksObtained,
	}
}

// draftValue renders a draft for a raw SET clause.
func draftValue(draft map[string]string) string {
	raw, err := json.Marshal(draft)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
