package memory

import (
	"context"
	"sort"
	"sync"

	"mock-exam-service/internal/domain"
)

// Catalog keeps exams, papers and enrollments in memory. It doubles as the PaperLoader
// behind PaperRepository when no database is configured.
type Catalog struct {
	mu          sync.RWMutex
	exams       map[string]domain.Exam
	papers      map[string]domain.TestPaper
	enrollments map[enrollmentKey]domain.Enrollment
}

type enrollmentKey struct {
	userID string
	examID string
}

func NewCatalog() *Catalog {
	return &Catalog{
		exams:       make(map[string]domain.Exam),
		papers:      make(map[string]domain.TestPaper),
		enrollments: make(map[enrollmentKey]domain.Enrollment),
	}
}

func (c *Catalog) LoadPaper(_ context.Context, paperID string) (domain.TestPaper, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if paper, ok := c.papers[paperID]; ok {
		return paper, nil
	}
	return domain.TestPaper{}, domain.ErrPaperNotFound
}

func (c *Catalog) GetExam(_ context.Context, examID string) (domain.Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if exam, ok := c.exams[examID]; ok {
		return exam, nil
	}
	return domain.Exam{}, domain.ErrExamNotFound
}

func (c *Catalog) ListExams(_ context.Context) ([]domain.Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Exam, 0, len(c.exams))
	for _, e := range c.exams {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) ListPapersByCategory(_ context.Context, category string) ([]domain.PaperSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []domain.PaperSummary{}
	for _, p := range c.papers {
		exam, ok := c.exams[p.ExamID]
		if !ok || !exam.IsActive || !p.IsActive || exam.Category != category {
			continue
		}
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListSubjects groups the sections of active papers of active exams into subjects.
func (c *Catalog) ListSubjects(_ context.Context) ([]domain.Subject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.papers))
	for id := range c.papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var sections []domain.SubjectSection
	for _, id := range ids {
		p := c.papers[id]
		exam, ok := c.exams[p.ExamID]
		if !ok || !exam.IsActive || !p.IsActive {
			continue
		}
		for _, s := range p.Sections {
			sections = append(sections, domain.SubjectSection{
				ExamID:      exam.ID,
				ExamName:    exam.Name,
				Category:    exam.Category,
				Subject:     p.Subject,
				SectionID:   s.ID,
				SectionName: s.Name,
			})
		}
	}
	return domain.GroupSubjects(sections), nil
}

func (c *Catalog) IsEnrolled(_ context.Context, userID, examID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.enrollments[enrollmentKey{userID, examID}]
	return ok && e.Active, nil
}

func (c *Catalog) PutExam(_ context.Context, exam domain.Exam) error {
	c.mu.Lock()
	c.exams[exam.ID] = exam
	c.mu.Unlock()
	return nil
}

func (c *Catalog) PutPaper(_ context.Context, paper domain.TestPaper) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.exams[paper.ExamID]; !ok {
		return domain.ErrExamNotFound
	}
	if old, ok := c.papers[paper.ID]; ok && paper.CreatedAt.IsZero() {
		paper.CreatedAt = old.CreatedAt
	}
	c.papers[paper.ID] = paper
	return nil
}

func (c *Catalog) SetPaperActive(_ context.Context, paperID string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	paper, ok := c.papers[paperID]
	if !ok {
		return domain.ErrPaperNotFound
	}
	paper.IsActive = active
	c.papers[paperID] = paper
	return nil
}

func (c *Catalog) PutEnrollment(_ context.Context, enrollment domain.Enrollment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := enrollmentKey{enrollment.UserID, enrollment.ExamID}
	if old, ok := c.enrollments[key]; ok {
		enrollment.CreatedAt = old.CreatedAt
	}
	c.enrollments[key] = enrollment
	return nil
}

func (c *Catalog) Counts(_ context.Context) (domain.CatalogCounts, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := domain.CatalogCounts{Exams: len(c.exams), TestPapers: len(c.papers)}
	for _, p := range c.papers {
		counts.Questions += len(p.Questions())
	}
	learners := make(map[string]struct{})
	for k := range c.enrollments {
		learners[k.userID] = struct{}{}
	}
	counts.Learners = len(learners)
	return counts, nil
}
