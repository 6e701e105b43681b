package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/config"
	"mock-exam-service/internal/infra/memory"
	pgcatalog "mock-exam-service/internal/infra/postgres"
	infraredis "mock-exam-service/internal/infra/redis"
	"mock-exam-service/internal/infra/sqldb"
	"mock-exam-service/internal/infra/sqldb/migrations"
	"mock-exam-service/internal/scoring"
	"mock-exam-service/internal/seed"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// runtime is the assembled service plus the resources that must be closed with it.
type runtime struct {
	service *app.ExamService
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRuntime wires storage by configuration: Postgres when postgres.url is set, SQLite
// attempts over an in-memory catalog when sqlite.dsn is set, otherwise everything in memory.
// The in-memory catalog is seeded from seed.path.
func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{}
	fail := func(err error) (*runtime, error) {
		rt.Close()
		return nil, err
	}

	var (
		catalog   app.Catalog
		loader    memory.PaperLoader
		attempts  app.AttemptStore
		quizzes   app.CustomQuizStore
		seedLocal bool
	)

	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		rt.closers = append(rt.closers, pool.Close)
		pg := pgcatalog.NewCatalog(pool)
		catalog, loader = pg, pg

		db, err := openMigrated(ctx, sqldb.DriverPostgres, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		attempts = sqldb.NewAttemptStore(db)
		quizzes = sqldb.NewCustomQuizStore(db)
	case cfg.SQLite.DSN != "":
		mem := memory.NewCatalog()
		catalog, loader, seedLocal = mem, mem, true

		db, err := openMigrated(ctx, sqldb.DriverSQLite, cfg.SQLite.DSN)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		attempts = sqldb.NewAttemptStore(db)
		quizzes = sqldb.NewCustomQuizStore(db)
	default:
		log.Printf("no database configured, attempts are kept in memory")
		mem := memory.NewCatalog()
		catalog, loader, seedLocal = mem, mem, true
		attempts = memory.NewAttemptStore()
		quizzes = memory.NewCustomQuizStore()
	}

	paperTTL := config.TTLDuration(cfg.Paper.TTL, 10*time.Minute)
	var (
		papers app.PaperRepository
		boards app.BoardRepository
		opts   = []app.ServiceOption{app.WithCustomQuizStore(quizzes)}
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("ping redis: %w", err))
		}
		papers = infraredis.NewPaperRepository(client, loader, paperTTL)
		redisBoards := infraredis.NewBoardStore(client)
		rt.closers = append(rt.closers, redisBoards.Close)
		boards = redisBoards
		opts = append(opts, app.WithSubmitGuard(infraredis.NewSubmitGuard(client), config.TTLDuration(cfg.Redis.LockTTL, 30*time.Second)))
	} else {
		papers = memory.NewPaperRepository(loader, paperTTL)
		boards = memory.NewBoardStore()
	}
	if cfg.Scoring.NegativeMarking > 0 {
		opts = append(opts, app.WithScoring(scoring.WithPolicy(scoring.NegativeMarking(cfg.Scoring.NegativeMarking))))
	}

	rt.service = app.NewExamService(papers, catalog, attempts, boards, opts...)

	if seedLocal && cfg.Seed.Path != "" {
		fixture, err := seed.Load(cfg.Seed.Path)
		if err != nil {
			return fail(fmt.Errorf("load seed: %w", err))
		}
		if err := seed.Apply(ctx, rt.service, fixture); err != nil {
			return fail(fmt.Errorf("apply seed: %w", err))
		}
		log.Printf("seeded %d exams and %d papers from %s", len(fixture.Exams), len(fixture.Papers), cfg.Seed.Path)
	}
	return rt, nil
}

func openMigrated(ctx context.Context, driver sqldb.Driver, dsn string) (*bun.DB, error) {
	db, err := sqldb.Open(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	group, err := migrations.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	if !group.IsZero() {
		log.Printf("%s migrated to %s", driver, group)
	}
	return db, nil
}
