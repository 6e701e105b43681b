package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mock-exam-service/internal/config"
	transport "mock-exam-service/internal/transport/http"
)

func TestBuildRuntimeInMemorySeedsCatalog(t *testing.T) {
	var cfg config.Config
	cfg.Seed.Path = "../../config/seed.yaml"

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()

	papers, err := rt.service.ListPapers(context.Background(), "UPSC")
	if err != nil {
		t.Fatalf("list papers: %v", err)
	}
	if len(papers) != 1 || papers[0].ID != "upsc-paper-1" {
		t.Fatalf("expected seeded upsc paper, got %+v", papers)
	}
}

func TestBuildRuntimeSQLite(t *testing.T) {
	var cfg config.Config
	cfg.SQLite.DSN = "file:" + filepath.Join(t.TempDir(), "exam.db") + "?mode=rwc"
	cfg.Seed.Path = "../../config/seed.yaml"

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.Close()

	if _, err := rt.service.Start(context.Background(), "student", "upsc-paper-1"); err != nil {
		t.Fatalf("start attempt: %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  jwt_secret: s3cret\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewTokenCmd(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "alice", "--role", "admin"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	claims, err := transport.NewAuthenticator("s3cret").Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Sub != "alice" || claims.Role != transport.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenCommandRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  jwt_secret: s3cret\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cmd := NewTokenCmd(&path)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--user", "alice", "--role", "root"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
