package cli

import (
	"context"
	"errors"
	"log"

	"mock-exam-service/internal/config"
	"mock-exam-service/internal/seed"

	"github.com/spf13/cobra"
)

// NewSeedCmd loads a YAML fixture of exams, papers and enrollments into the catalog.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load exams, papers and enrollments from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "fixture path (defaults to seed.path)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	file = config.OrDefault(file, cfg.Seed.Path)
	if file == "" {
		return errors.New("no fixture given and seed.path is empty")
	}
	if cfg.Postgres.URL == "" {
		log.Printf("postgres.url is empty: the catalog is in memory and is seeded on every start")
		return nil
	}

	fixture, err := seed.Load(file)
	if err != nil {
		return err
	}
	// The in-memory catalog seeds itself from seed.path, so skip that here.
	cfg.Seed.Path = ""
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := seed.Apply(ctx, rt.service, fixture); err != nil {
		return err
	}
	log.Printf("seeded %d exams, %d papers, %d enrollments", len(fixture.Exams), len(fixture.Papers), len(fixture.Enrollments))
	return nil
}
