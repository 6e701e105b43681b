// Package seed loads exam catalogs from YAML fixtures.
package seed

import (
	"context"
	"fmt"
	"os"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk catalog layout.
type Fixture struct {
	Exams       []domain.Exam       `yaml:"exams"`
	Papers      []domain.TestPaper  `yaml:"papers"`
	Enrollments []domain.Enrollment `yaml:"enrollments"`
}

func Load(path string) (Fixture, error) {
	var f Fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Apply writes the fixture through the admin operations so every paper is validated.
func Apply(ctx context.Context, svc *app.ExamService, f Fixture) error {
	for _, e := range f.Exams {
		_, err := svc.PutExam(ctx, e.ID, app.ExamInput{
			Name:        e.Name,
			Description: e.Description,
			Category:    e.Category,
			IsActive:    e.IsActive,
		})
		if err != nil {
			return fmt.Errorf("exam %s: %w", e.ID, err)
		}
	}
	for _, p := range f.Papers {
		if _, err := svc.PutPaper(ctx, p); err != nil {
			return fmt.Errorf("paper %s: %w", p.ID, err)
		}
	}
	for _, en := range f.Enrollments {
		var err error
		if en.Active {
			err = svc.Enroll(ctx, en.UserID, en.ExamID)
		} else {
			err = svc.Unenroll(ctx, en.UserID, en.ExamID)
		}
		if err != nil {
			return fmt.Errorf("enrollment %s/%s: %w", en.UserID, en.ExamID, err)
		}
	}
	return nil
}
