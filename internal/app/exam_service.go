package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/scoring"

	"github.com/google/uuid"
)

// PaperRepository serves test papers (from cache/backing store).
type PaperRepository interface {
	GetPaper(ctx context.Context, paperID string) (domain.TestPaper, error)
	Invalidate(ctx context.Context, paperID string) error
}

// Catalog owns exams, papers and enrollments.
type Catalog interface {
	GetExam(ctx context.Context, examID string) (domain.Exam, error)
	ListExams(ctx context.Context) ([]domain.Exam, error)
	ListPapersByCategory(ctx context.Context, category string) ([]domain.PaperSummary, error)
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	IsEnrolled(ctx context.Context, userID, examID string) (bool, error)
	PutExam(ctx context.Context, exam domain.Exam) error
	PutPaper(ctx context.Context, paper domain.TestPaper) error
	SetPaperActive(ctx context.Context, paperID string, active bool) error
	PutEnrollment(ctx context.Context, enrollment domain.Enrollment) error
	Counts(ctx context.Context) (domain.CatalogCounts, error)
}

// AttemptStore persists attempts and their graded answers.
// Complete must write the attempt aggregates and all answers atomically and fail with
// domain.ErrAttemptCompleted when the attempt is no longer in progress.
type AttemptStore interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	FindByLearner(ctx context.Context, userID, paperID string) (domain.Attempt, error)
	SaveDraft(ctx context.Context, attemptID string, sheet domain.AnswerSheet) error
	Complete(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) error
	Answers(ctx context.Context, attemptID string) ([]domain.Answer, error)
	AnswersByLearner(ctx context.Context, userID string) ([]domain.Answer, error)
	AnswersByPaper(ctx context.Context, paperID string) ([]domain.Answer, error)
	CompletedByPaper(ctx context.Context, paperID string) ([]domain.Attempt, error)
	CompletedByLearner(ctx context.Context, userID string) ([]domain.Attempt, error)
	InProgressBefore(ctx context.Context, cutoff time.Time) ([]domain.Attempt, error)
	PapersWithCompleted(ctx context.Context) ([]string, error)
	UpdateRanks(ctx context.Context, ranks map[string]int) error
	CountAttempts(ctx context.Context) (int, error)
}

// SubmitGuard is a best-effort lock that fails fast on concurrent submissions of one attempt.
// Acquire hands out a token; Release only frees the lock while that token still owns it,
// so a holder whose lock expired cannot free a later holder's lock.
type SubmitGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string)
}

// BoardRepository keeps live standings boards (in-memory, Redis fan-out). Boards are
// reference counted: Acquire and Release bracket one viewer, and a board lives while any
// viewer holds it.
type BoardRepository interface {
	Acquire(ctx context.Context, paperID string) (*Board, error)
	Release(paperID string)
	// Watched reports whether any viewer, on this instance or another, follows the paper.
	Watched(ctx context.Context, paperID string) bool
	// Publish delivers fresh entries to every board of the paper.
	Publish(ctx context.Context, paperID string, entries []domain.StandingsEntry) error
}

// ExamService contains the learner and admin use cases.
type ExamService struct {
	papers   PaperRepository
	catalog  Catalog
	attempts AttemptStore
	boards   BoardRepository
	quizzes  CustomQuizStore

	guard          SubmitGuard
	guardTTL       time.Duration
	scoringOpts    []scoring.Option
	now            func() time.Time
	newID          func() string
	maxRetries     uint64
	retryInterval  time.Duration
	standingsLimit int

	// sweepBlocked holds expired attempts whose auto-submit is refused, to log them once.
	sweepBlocked sync.Map
}

type ServiceOption func(*ExamService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ExamService) { s.now = now }
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *ExamService) { s.newID = gen }
}

// WithScoring passes options to every scoring.Grade call.
func WithScoring(opts ...scoring.Option) ServiceOption {
	return func(s *ExamService) { s.scoringOpts = append(s.scoringOpts, opts...) }
}

// WithSubmitGuard installs a shared submission guard.
func WithSubmitGuard(g SubmitGuard, ttl time.Duration) ServiceOption {
	return func(s *ExamService) {
		s.guard = g
		s.guardTTL = ttl
	}
}

// WithRetry configures how transient persistence failures are retried.
func WithRetry(maxRetries uint64, initialInterval time.Duration) ServiceOption {
	return func(s *ExamService) {
		s.maxRetries = maxRetries
		s.retryInterval = initialInterval
	}
}

// WithCustomQuizStore sets where learners' custom quizzes are kept.
func WithCustomQuizStore(store CustomQuizStore) ServiceOption {
	return func(s *ExamService) { s.quizzes = store }
}

// WithStandingsLimit caps the entries pushed to standings subscribers.
func WithStandingsLimit(n int) ServiceOption {
	return func(s *ExamService) { s.standingsLimit = n }
}

func NewExamService(papers PaperRepository, catalog Catalog, attempts AttemptStore, boards BoardRepository, opts ...ServiceOption) *ExamService {
	s := &ExamService{
		papers:         papers,
		catalog:        catalog,
		attempts:       attempts,
		boards:         boards,
		guard:          newLocalGuard(),
		guardTTL:       30 * time.Second,
		now:            time.Now,
		newID:          uuid.NewString,
		maxRetries:     3,
		retryInterval:  100 * time.Millisecond,
		standingsLimit: 50,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListCategories groups active exams by category.
func (s *ExamService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	exams, err := s.catalog.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range exams {
		if e.IsActive {
			counts[e.Category]++
		}
	}
	out := make([]domain.Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, domain.Category{Name: name, ExamCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListPapers returns the active papers of a category, newest first.
func (s *ExamService) ListPapers(ctx context.Context, category string) ([]domain.PaperSummary, error) {
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return nil, domain.Malformed("category is required")
	}
	return s.catalog.ListPapersByCategory(ctx, category)
}

// PaperForLearner returns the paper without its answer key after running the access gate.
func (s *ExamService) PaperForLearner(ctx context.Context, userID, paperID string) (domain.TestPaper, error) {
	paper, err := s.checkAccess(ctx, userID, paperID)
	if err != nil {
		return domain.TestPaper{}, err
	}
	return paper.Redacted(), nil
}

// StartResult is returned when a learner begins (or resumes) a paper.
type StartResult struct {
	Attempt          domain.Attempt `json:"attempt"`
	RemainingSeconds int            `json:"remainingSeconds"`
}

// Start creates the learner's in-progress attempt, or resumes the existing one.
func (s *ExamService) Start(ctx context.Context, userID, paperID string) (StartResult, error) {
	paper, err := s.checkAccess(ctx, userID, paperID)
	if err != nil {
		return StartResult{}, err
	}

	attempt, err := s.attempts.FindByLearner(ctx, userID, paperID)
	switch {
	case err == nil:
		if attempt.Completed {
			return StartResult{}, domain.ErrAttemptCompleted
		}
	case errors.Is(err, domain.ErrAttemptNotFound):
		attempt, err = s.createAttempt(ctx, userID, paperID)
		if err != nil {
			return StartResult{}, err
		}
	default:
		return StartResult{}, err
	}

	return StartResult{Attempt: attempt, RemainingSeconds: s.remaining(paper, attempt)}, nil
}

// SaveDraft merges answers into the learner's in-progress attempt.
func (s *ExamService) SaveDraft(ctx context.Context, userID, paperID string, sheet domain.AnswerSheet) error {
	if err := validate.Var(sheet, "required,min=1,dive,keys,required,endkeys,required"); err != nil {
		return domain.Malformed("answers: %v", err)
	}
	if _, err := s.checkAccess(ctx, userID, paperID); err != nil {
		return err
	}
	attempt, err := s.attempts.FindByLearner(ctx, userID, paperID)
	if err != nil {
		return err
	}
	if attempt.Completed {
		return domain.ErrAttemptCompleted
	}
	return s.attempts.SaveDraft(ctx, attempt.ID, sheet)
}

// checkAccess is the enrollment/access gate. It runs on every learner-facing operation,
// submission included.
func (s *ExamService) checkAccess(ctx context.Context, userID, paperID string) (domain.TestPaper, error) {
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return domain.TestPaper{}, err
	}
	if !paper.IsActive {
		return domain.TestPaper{}, domain.ErrPaperInactive
	}
	exam, err := s.catalog.GetExam(ctx, paper.ExamID)
	if err != nil {
		return domain.TestPaper{}, fmt.Errorf("owning exam: %w", err)
	}
	if !exam.IsActive {
		return domain.TestPaper{}, domain.ErrPaperInactive
	}
	enrolled, err := s.catalog.IsEnrolled(ctx, userID, exam.ID)
	if err != nil {
		return domain.TestPaper{}, err
	}
	if !enrolled {
		return domain.TestPaper{}, domain.ErrNotEnrolled
	}
	return paper, nil
}

func (s *ExamService) createAttempt(ctx context.Context, userID, paperID string) (domain.Attempt, error) {
	attempt := domain.Attempt{
		ID:          s.newID(),
		UserID:      userID,
		TestPaperID: paperID,
		StartedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	err := s.attempts.Create(ctx, attempt)
	if errors.Is(err, domain.ErrAttemptExists) {
		// Lost a race with a concurrent start; use the winner's attempt.
		return s.attempts.FindByLearner(ctx, userID, paperID)
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

func (s *ExamService) remaining(paper domain.TestPaper, attempt domain.Attempt) int {
	if paper.DurationMinutes <= 0 {
		return 0
	}
	left := attempt.StartedAt.Add(paper.Duration()).Sub(s.now())
	if left < 0 {
		return 0
	}
	return int(left.Seconds())
}
