package cli

import (
	"errors"
	"fmt"
	"time"

	"mock-exam-service/internal/config"
	transport "mock-exam-service/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewTokenCmd mints a bearer token for local use.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret (or JWT_SECRET) is required")
			}
			if role != transport.RoleStudent && role != transport.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := transport.NewAuthenticator(cfg.Server.JWTSecret).IssueToken(user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject (user id)")
	cmd.Flags().StringVar(&role, "role", transport.RoleStudent, "student or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
