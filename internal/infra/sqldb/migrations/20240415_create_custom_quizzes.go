package migrations

import (
	"context"

	"mock-exam-service/internal/infra/sqldb"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.NewCreateTable().Model((*sqldb.CustomQuizRow)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			_, err := db.NewCreateIndex().Model((*sqldb.CustomQuizRow)(nil)).
				Index("custom_quizzes_user_created_idx").
				Column("user_id", "created_at").
				IfNotExists().
				Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.NewDropTable().Model((*sqldb.CustomQuizRow)(nil)).IfExists().Exec(ctx)
			return err
		},
	)
}
