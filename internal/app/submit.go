package app

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log"
	"net"
	"syscall"
	"time"

	"mock-exam-service/internal/domain"
	"mock-exam-service/internal/scoring"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SubmitRequest is a learner's answer submission. Answers are merged over any saved draft.
type SubmitRequest struct {
	UserID           string             `validate:"required"`
	TestPaperID      string             `validate:"required"`
	AttemptID        string             `validate:"omitempty"`
	Answers          domain.AnswerSheet `validate:"omitempty,dive,keys,required,endkeys,required"`
	TimeSpentSeconds *int               `validate:"omitempty,gte=0"`
}

// SubmitResult is the graded outcome returned to the learner.
type SubmitResult struct {
	AttemptID     string  `json:"attemptId"`
	TotalMarks    float64 `json:"totalMarks"`
	ObtainedMarks float64 `json:"obtainedMarks"`
	Percentage    float64 `json:"percentage"`
	Rank          int     `json:"rank"`
}

// Submit grades and completes the learner's attempt. It is the only path that scores an
// attempt; duration expiry goes through here as well.
func (s *ExamService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if err := validate.Struct(req); err != nil {
		return SubmitResult{}, domain.Malformed("%v", err)
	}

	paper, err := s.checkAccess(ctx, req.UserID, req.TestPaperID)
	if err != nil {
		return SubmitResult{}, err
	}

	attempt, err := s.resolveAttempt(ctx, req)
	if err != nil {
		return SubmitResult{}, err
	}
	if attempt.Completed {
		return SubmitResult{}, domain.ErrAttemptCompleted
	}

	key := "submit:" + attempt.ID
	token, ok, err := s.guard.Acquire(ctx, key, s.guardTTL)
	if err != nil {
		return SubmitResult{}, err
	}
	if !ok {
		return SubmitResult{}, domain.ErrSubmissionInFlight
	}
	defer s.guard.Release(context.WithoutCancel(ctx), key, token)

	sheet := make(domain.AnswerSheet, len(attempt.Draft)+len(req.Answers))
	for q, o := range attempt.Draft {
		sheet[q] = o
	}
	for q, o := range req.Answers {
		sheet[q] = o
	}

	res, err := s.complete(ctx, paper, attempt, sheet, req.TimeSpentSeconds)
	if err != nil {
		return SubmitResult{}, err
	}
	s.publishStandings(ctx, paper.ID)
	return res, nil
}

func (s *ExamService) resolveAttempt(ctx context.Context, req SubmitRequest) (domain.Attempt, error) {
	if req.AttemptID != "" {
		attempt, err := s.attempts.Get(ctx, req.AttemptID)
		if err != nil {
			return domain.Attempt{}, err
		}
		if attempt.UserID != req.UserID {
			return domain.Attempt{}, domain.ErrNotOwner
		}
		if attempt.TestPaperID != req.TestPaperID {
			return domain.Attempt{}, domain.ErrPaperMismatch
		}
		return attempt, nil
	}

	attempt, err := s.attempts.FindByLearner(ctx, req.UserID, req.TestPaperID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return s.createAttempt(ctx, req.UserID, req.TestPaperID)
	}
	return attempt, err
}

func (s *ExamService) complete(ctx context.Context, paper domain.TestPaper, attempt domain.Attempt, sheet domain.AnswerSheet, spent *int) (SubmitResult, error) {
	others, err := s.attempts.CompletedByPaper(ctx, paper.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	prior := make([]float64, 0, len(others))
	for _, o := range others {
		if o.ID != attempt.ID && o.Percentage != nil {
			prior = append(prior, *o.Percentage)
		}
	}

	res := scoring.Grade(paper, sheet, prior, s.scoringOpts...)

	now := s.now().UTC().Truncate(time.Microsecond)
	seconds := int(now.Sub(attempt.StartedAt).Seconds())
	if spent != nil {
		seconds = *spent
	}
	if seconds < 0 {
		seconds = 0
	}
	attempt.Completed = true
	attempt.SubmittedAt = &now
	attempt.TimeSpentSeconds = &seconds
	attempt.TotalMarks = &res.TotalMarks
	attempt.ObtainedMarks = &res.ObtainedMarks
	attempt.Percentage = &res.Percentage
	attempt.Rank = &res.Rank
	attempt.Draft = sheet

	answers := make([]domain.Answer, 0, len(res.Grades))
	for _, g := range res.Grades {
		answers = append(answers, domain.Answer{
			ID:               s.newID(),
			AttemptID:        attempt.ID,
			QuestionID:       g.QuestionID,
			SelectedOptionID: g.SelectedOptionID,
			Correct:          g.Correct,
			MarksObtained:    g.Marks,
		})
	}

	if err := s.persist(ctx, attempt, answers); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		AttemptID:     attempt.ID,
		TotalMarks:    res.TotalMarks,
		ObtainedMarks: res.ObtainedMarks,
		Percentage:    res.Percentage,
		Rank:          res.Rank,
	}, nil
}

// persist retries transient storage failures. Complete is a single transaction, so a retry
// is either a full redo or finds the earlier commit already in place.
func (s *ExamService) persist(ctx context.Context, attempt domain.Attempt, answers []domain.Answer) error {
	tries := 0
	op := func() error {
		tries++
		err := s.attempts.Complete(ctx, attempt, answers)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrAttemptCompleted) && tries > 1 && s.landed(ctx, attempt):
			return nil
		case isTransient(err):
			log.Printf("persist attempt %s: transient error (try %d): %v", attempt.ID, tries, err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx))
}

// landed reports whether a previous, seemingly failed, write actually committed.
func (s *ExamService) landed(ctx context.Context, attempt domain.Attempt) bool {
	stored, err := s.attempts.Get(ctx, attempt.ID)
	if err != nil || !stored.Completed || stored.ObtainedMarks == nil || stored.SubmittedAt == nil {
		return false
	}
	return *stored.ObtainedMarks == *attempt.ObtainedMarks && stored.SubmittedAt.Equal(*attempt.SubmittedAt)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Rerank recomputes ranks of every completed attempt of a paper and stores the ones that changed.
func (s *ExamService) Rerank(ctx context.Context, paperID string) (int, error) {
	completed, err := s.attempts.CompletedByPaper(ctx, paperID)
	if err != nil {
		return 0, err
	}
	percentages := make([]float64, len(completed))
	for i, a := range completed {
		percentages[i] = deref(a.Percentage)
	}
	ranks := scoring.Ranks(percentages)

	changed := make(map[string]int)
	for i, a := range completed {
		if a.Rank == nil || *a.Rank != ranks[i] {
			changed[a.ID] = ranks[i]
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.attempts.UpdateRanks(ctx, changed); err != nil {
		return 0, err
	}
	s.publishStandings(ctx, paperID)
	return len(changed), nil
}

// RerankAll runs Rerank for every paper that has completed attempts.
func (s *ExamService) RerankAll(ctx context.Context) (int, error) {
	papers, err := s.attempts.PapersWithCompleted(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range papers {
		n, err := s.Rerank(ctx, id)
		if err != nil {
			log.Printf("[scheduler] rerank %s: %v", id, err)
			continue
		}
		total += n
	}
	return total, nil
}

// SweepExpired auto-submits in-progress attempts whose paper duration (plus grace) has run out.
func (s *ExamService) SweepExpired(ctx context.Context, grace time.Duration) (int, error) {
	now := s.now()
	pending, err := s.attempts.InProgressBefore(ctx, now.Add(-grace))
	if err != nil {
		return 0, err
	}
	submitted := 0
	for _, a := range pending {
		paper, err := s.papers.GetPaper(ctx, a.TestPaperID)
		if err != nil {
			log.Printf("[scheduler] expiry %s: %v", a.ID, err)
			continue
		}
		if paper.DurationMinutes <= 0 || now.Before(a.StartedAt.Add(paper.Duration()+grace)) {
			continue
		}
		spent := int(paper.Duration().Seconds())
		_, err = s.Submit(ctx, SubmitRequest{
			UserID:           a.UserID,
			TestPaperID:      a.TestPaperID,
			AttemptID:        a.ID,
			TimeSpentSeconds: &spent,
		})
		if err != nil {
			s.noteSweepFailure(a.ID, err)
			continue
		}
		s.sweepBlocked.Delete(a.ID)
		submitted++
	}
	return submitted, nil
}

// noteSweepFailure logs a failed auto-submit. Attempts blocked by the gate or by their
// state (learner unenrolled, paper closed) fail on every tick until an admin acts, so they
// are logged once.
func (s *ExamService) noteSweepFailure(attemptID string, err error) {
	if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrInvalidState) {
		if _, seen := s.sweepBlocked.LoadOrStore(attemptID, struct{}{}); seen {
			return
		}
		log.Printf("[scheduler] auto-submit %s blocked, retrying quietly: %v", attemptID, err)
		return
	}
	log.Printf("[scheduler] auto-submit %s: %s: %v", attemptID, domain.ErrorCategory(err), err)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
