package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mock-exam-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Catalog reads and writes exams, papers and enrollments with pgx. Paper sections are
// stored as a JSONB document next to the paper's columns.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

const paperColumns = `id, exam_id, subject, title, description, duration_minutes, is_active, total_marks, created_at`

func (c *Catalog) LoadPaper(ctx context.Context, paperID string) (domain.TestPaper, error) {
	var (
		paper domain.TestPaper
		raw   []byte
	)
	err := c.pool.QueryRow(ctx, `SELECT `+paperColumns+`, content FROM test_papers WHERE id=$1`, paperID).Scan(
		&paper.ID, &paper.ExamID, &paper.Subject, &paper.Title, &paper.Description,
		&paper.DurationMinutes, &paper.IsActive, &paper.ConfiguredTotalMarks, &paper.CreatedAt, &raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TestPaper{}, domain.ErrPaperNotFound
	}
	if err != nil {
		return domain.TestPaper{}, fmt.Errorf("load paper: %w", err)
	}
	if err := json.Unmarshal(raw, &paper.Sections); err != nil {
		return domain.TestPaper{}, fmt.Errorf("unmarshal paper: %w", err)
	}
	paper.CreatedAt = paper.CreatedAt.UTC()
	return paper, nil
}

func (c *Catalog) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	var e domain.Exam
	err := c.pool.QueryRow(ctx, `SELECT id, name, description, category, is_active FROM exams WHERE id=$1`, examID).
		Scan(&e.ID, &e.Name, &e.Description, &e.Category, &e.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.Exam{}, fmt.Errorf("load exam: %w", err)
	}
	return e, nil
}

func (c *Catalog) ListExams(ctx context.Context) ([]domain.Exam, error) {
	rows, err := c.pool.Query(ctx, `SELECT id, name, description, category, is_active FROM exams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var out []domain.Exam
	for rows.Next() {
		var e domain.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Category, &e.IsActive); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListPapersByCategory returns active papers of active exams, newest first. Marks are
// summed from the stored questions unless a display total was configured.
func (c *Catalog) ListPapersByCategory(ctx context.Context, category string) ([]domain.PaperSummary, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT tp.id, tp.exam_id, tp.title, tp.subject, tp.duration_minutes, tp.created_at,
		       CASE WHEN tp.total_marks > 0 THEN tp.total_marks ELSE COALESCE((
		           SELECT SUM((q->>'marks')::float8)
		           FROM jsonb_array_elements(tp.content) s, jsonb_array_elements(s->'questions') q
		       ), 0) END
		FROM test_papers tp
		JOIN exams e ON e.id = tp.exam_id
		WHERE e.category = $1 AND e.is_active AND tp.is_active
		ORDER BY tp.created_at DESC, tp.id`, category)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	out := []domain.PaperSummary{}
	for rows.Next() {
		var p domain.PaperSummary
		if err := rows.Scan(&p.ID, &p.ExamID, &p.Title, &p.Subject, &p.DurationMinutes, &p.CreatedAt, &p.TotalMarks); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListSubjects reads one row per section of every active paper and groups them in Go.
func (c *Catalog) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT e.id, e.name, e.category, tp.subject,
		       COALESCE(s->>'id', ''), COALESCE(s->>'name', '')
		FROM test_papers tp
		JOIN exams e ON e.id = tp.exam_id
		CROSS JOIN LATERAL jsonb_array_elements(tp.content) s
		WHERE e.is_active AND tp.is_active AND tp.subject <> ''
		ORDER BY tp.id`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var sections []domain.SubjectSection
	for rows.Next() {
		var sec domain.SubjectSection
		if err := rows.Scan(&sec.ExamID, &sec.ExamName, &sec.Category, &sec.Subject, &sec.SectionID, &sec.SectionName); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.GroupSubjects(sections), nil
}

func (c *Catalog) IsEnrolled(ctx context.Context, userID, examID string) (bool, error) {
	var active bool
	err := c.pool.QueryRow(ctx, `SELECT is_active FROM enrollments WHERE user_id=$1 AND exam_id=$2`, userID, examID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load enrollment: %w", err)
	}
	return active, nil
}

func (c *Catalog) PutExam(ctx context.Context, exam domain.Exam) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO exams (id, name, description, category, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description,
			category=EXCLUDED.category, is_active=EXCLUDED.is_active`,
		exam.ID, exam.Name, exam.Description, exam.Category, exam.IsActive)
	if err != nil {
		return fmt.Errorf("put exam: %w", err)
	}
	return nil
}

// PutPaper upserts a paper. created_at is kept from the first insert.
func (c *Catalog) PutPaper(ctx context.Context, paper domain.TestPaper) error {
	content, err := json.Marshal(paper.Sections)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	return c.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM exams WHERE id=$1)`, paper.ExamID).Scan(&exists); err != nil {
			return fmt.Errorf("check exam: %w", err)
		}
		if !exists {
			return domain.ErrExamNotFound
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO test_papers (`+paperColumns+`, content)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET exam_id=EXCLUDED.exam_id, subject=EXCLUDED.subject,
				title=EXCLUDED.title, description=EXCLUDED.description,
				duration_minutes=EXCLUDED.duration_minutes, is_active=EXCLUDED.is_active,
				total_marks=EXCLUDED.total_marks, content=EXCLUDED.content`,
			paper.ID, paper.ExamID, paper.Subject, paper.Title, paper.Description,
			paper.DurationMinutes, paper.IsActive, paper.ConfiguredTotalMarks, paper.CreatedAt, content)
		if err != nil {
			return fmt.Errorf("put paper: %w", err)
		}
		return nil
	})
}

func (c *Catalog) SetPaperActive(ctx context.Context, paperID string, active bool) error {
	tag, err := c.pool.Exec(ctx, `UPDATE test_papers SET is_active=$2 WHERE id=$1`, paperID, active)
	if err != nil {
		return fmt.Errorf("set paper active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaperNotFound
	}
	return nil
}

func (c *Catalog) PutEnrollment(ctx context.Context, enrollment domain.Enrollment) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO enrollments (user_id, exam_id, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, exam_id) DO UPDATE SET is_active=EXCLUDED.is_active`,
		enrollment.UserID, enrollment.ExamID, enrollment.Active, enrollment.CreatedAt)
	if err != nil {
		return fmt.Errorf("put enrollment: %w", err)
	}
	return nil
}

func (c *Catalog) Counts(ctx context.Context) (domain.CatalogCounts, error) {
	var counts domain.CatalogCounts
	err := c.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM test_papers),
			(SELECT COUNT(*) FROM test_papers tp, jsonb_array_elements(tp.content) s, jsonb_array_elements(s->'questions') q),
			(SELECT COUNT(DISTINCT user_id) FROM enrollments)`).
		Scan(&counts.Exams, &counts.TestPapers, &counts.Questions, &counts.Learners)
	if err != nil {
		return domain.CatalogCounts{}, fmt.Errorf("count catalog: %w", err)
	}
	return counts, nil
}
