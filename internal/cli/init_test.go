package cli

import (
	"context"
	"log/slog"
	"testing"

	"nbbang/internal/config"
)

func TestSetupLoggerUsesConfig(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "error", LogFormat: "json"})
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at error level")
	}
	if logger.Component() != "app" {
		t.Fatalf("component = %q", logger.Component())
	}
}

func TestInitBackendMemory(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendMemory, UserID: "alice", SeedFile: t.TempDir() + "/none.json"}
	logger := SetupLogger(&config.Config{LogLevel: "error", LogFormat: "text"})

	res, err := InitBackend(context.Background(), logger, cfg)
	if err != nil {
		t.Fatalf("InitBackend: %v", err)
	}
	groups, err := res.Services.Groups.ListMyGroups(context.Background())
	if err != nil || len(groups) != 0 {
		t.Fatalf("groups = %v, err = %v", groups, err)
	}

	if _, err := InitBackend(context.Background(), logger, &config.Config{Backend: "nope"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
