package migrations

import (
	"context"

	"mock-exam-service/internal/infra/sqldb"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

var models = []any{
	(*sqldb.ExamRow)(nil),
	(*sqldb.PaperRow)(nil),
	(*sqldb.EnrollmentRow)(nil),
	(*sqldb.AttemptRow)(nil),
	(*sqldb.AnswerRow)(nil),
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, model := range models {
				q := db.NewCreateTable().Model(model).IfNotExists()
				if _, ok := model.(*sqldb.AnswerRow); ok {
					q = q.ForeignKey(`("attempt_id") REFERENCES "attempts" ("id") ON DELETE CASCADE`)
				}
				if _, err := q.Exec(ctx); err != nil {
					return err
				}
			}
			indexes := []struct {
				model   any
				name    string
				columns []string
			}{
				{(*sqldb.PaperRow)(nil), "test_papers_exam_idx", []string{"exam_id"}},
				{(*sqldb.AttemptRow)(nil), "attempts_paper_completed_idx", []string{"test_paper_id", "is_completed"}},
				{(*sqldb.AttemptRow)(nil), "attempts_user_completed_idx", []string{"user_id", "is_completed"}},
			}
			for _, idx := range indexes {
				_, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for i := len(models) - 1; i >= 0; i-- {
				if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Migrate applies pending migrations and reports the group that ran.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}
