package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mock-exam-service/internal/config"
	"mock-exam-service/internal/scheduler"
	transport "mock-exam-service/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret (or JWT_SECRET) is required")
	}
	finalPort := config.OrDefault(portFlag, config.OrDefault(cfg.Server.Port, "8080"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobs, err := scheduler.New(ctx, rt.service, scheduler.Options{
		Rerank:      cfg.Scheduler.Rerank,
		ExpirySweep: cfg.Scheduler.ExpirySweep,
		Grace:       config.TTLDuration(cfg.Scheduler.Grace, 2*time.Minute),
	})
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	auth := transport.NewAuthenticator(cfg.Server.JWTSecret)
	router := transport.NewRouter(
		transport.NewHandler(rt.service),
		transport.NewWSHandler(rt.service),
		auth,
		transport.RouterConfig{CORSOrigins: cfg.Server.CORSOrigins},
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
