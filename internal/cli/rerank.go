package cli

import (
	"context"
	"log"

	"mock-exam-service/internal/config"

	"github.com/spf13/cobra"
)

// NewRerankCmd recomputes stored ranks once, for one paper or for all of them.
func NewRerankCmd(configPath *string) *cobra.Command {
	var paperID string
	cmd := &cobra.Command{
		Use:   "rerank",
		Short: "Recompute stored ranks of completed attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerank(cmd.Context(), *configPath, paperID)
		},
	}
	cmd.Flags().StringVar(&paperID, "paper", "", "test paper id (all papers when empty)")
	return cmd
}

func runRerank(ctx context.Context, configPath, paperID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var changed int
	if paperID != "" {
		changed, err = rt.service.Rerank(ctx, paperID)
	} else {
		changed, err = rt.service.RerankAll(ctx)
	}
	if err != nil {
		return err
	}
	log.Printf("rerank updated %d attempts", changed)
	return nil
}
