package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchyard/internal/board"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
)

const rootEmail = "root@example.com"

// writeConfig writes a sqlite config into a temp dir and returns its path
// and the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "switchyard.db")
	cfgPath := filepath.Join(dir, "switchyard.yaml")
	body := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\n", dbPath)
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dbPath
}

func run(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if in != nil {
		cmd.SetIn(in)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, nil, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

// idAfter returns the first word following prefix in out.
func idAfter(t *testing.T, out, prefix string) string {
	t.Helper()
	i := strings.Index(out, prefix)
	if i < 0 {
		t.Fatalf("output missing %q: %s", prefix, out)
	}
	fields := strings.Fields(out[i+len(prefix):])
	if len(fields) == 0 {
		t.Fatalf("no id after %q: %s", prefix, out)
	}
	return fields[0]
}

func columnsOf(t *testing.T, dbPath, projectID string) []models.Column {
	t.Helper()
	gormDB, err := db.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer closeDB(gormDB)
	cols, err := board.ListColumns(context.Background(), gormDB, projectID)
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	return cols
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("expected output to contain %q, got:\n%s", w, out)
		}
	}
}

func TestCLI_ProjectAndCardFlow(t *testing.T) {
	cfg, dbPath := writeConfig(t)

	out := mustRun(t, "db", "init", "-c", cfg, "--admin-email", rootEmail)
	assertContains(t, out, "Migrated", "Seeded admin "+rootEmail, "initialized successfully")

	out = mustRun(t, "user", "create", "-c", cfg, "--email", "alice@example.com", "--name", "Alice")
	assertContains(t, out, "alice@example.com", "MEMBER")

	out = mustRun(t, "project", "create", "Website", "-c", cfg, "--as", rootEmail)
	projectID := idAfter(t, out, "Created project ")

	out = mustRun(t, "project", "start", projectID, "-c", cfg, "--as", rootEmail)
	assertContains(t, out, "Status:  ACTIVE")
	out = mustRun(t, "project", "pause", projectID, "-c", cfg, "--as", rootEmail)
	assertContains(t, out, "Status:  PAUSED")
	out = mustRun(t, "project", "resume", projectID, "-c", cfg, "--as", rootEmail)
	assertContains(t, out, "Status:  ACTIVE")

	if _, err := run(t, nil, "project", "start", projectID, "-c", cfg, "--as", rootEmail); err == nil {
		t.Error("starting an active project should fail")
	}

	out = mustRun(t, "card", "create", "Fix login", "-c", cfg, "--as", rootEmail, "--project", projectID)
	assertContains(t, out, "(Fix login) at position 0")
	cardID := idAfter(t, out, "Created card ")

	cols := columnsOf(t, dbPath, projectID)
	if len(cols) != 3 {
		t.Fatalf("columns = %d, want 3", len(cols))
	}
	out = mustRun(t, "card", "move", cardID, "-c", cfg, "--as", rootEmail, "--column", cols[1].ID, "--order", "0")
	assertContains(t, out, "Moved card "+cardID, "position 0")

	out = mustRun(t, "card", "timeline", cardID, "-c", cfg)
	assertContains(t, out, "Fix login", "Creation", "To Do", "In Progress", "(current)", "Total:")

	out = mustRun(t, "card", "close", cardID, "-c", cfg, "--as", rootEmail)
	assertContains(t, out, "is now CLOSED")

	out = mustRun(t, "project", "status", projectID, "-c", cfg)
	assertContains(t, out, "Project: Website", "1 total, 0 open, 1 closed (100% complete)")

	out = mustRun(t, "project", "settings", projectID, "-c", cfg, "--as", rootEmail, "--movement-mode", "forward_only")
	assertContains(t, out, "mode=FORWARD_ONLY")

	out = mustRun(t, "project", "list", "-c", cfg)
	assertContains(t, out, projectID, "Website", "ACTIVE", "Page 1 of 1 (1 projects)")

	out = mustRun(t, "doctor", "-c", cfg)
	assertContains(t, out, "[PASS] Config file", "[PASS] Schema", "[PASS] Card order Website", "0 failed")
}

func TestCLI_RequiresActor(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, "db", "init", "-c", cfg)

	_, err := run(t, nil, "project", "create", "Website", "-c", cfg)
	if err == nil || !strings.Contains(err.Error(), "--as is required") {
		t.Fatalf("expected --as error, got %v", err)
	}
	_, err = run(t, nil, "project", "create", "Website", "-c", cfg, "--as", "ghost@example.com")
	if err == nil || !strings.Contains(err.Error(), "ghost@example.com") {
		t.Fatalf("expected unknown actor error, got %v", err)
	}
}

func TestCLI_DoctorWithoutSchema(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := run(t, nil, "doctor", "-c", cfg)
	if err == nil {
		t.Fatal("doctor should fail before migration")
	}
	assertContains(t, out, "[FAIL] Schema", "sy db migrate")
}

func TestCLI_DBReset(t *testing.T) {
	cfg, _ := writeConfig(t)
	mustRun(t, "db", "init", "-c", cfg, "--admin-email", rootEmail)
	mustRun(t, "project", "create", "Website", "-c", cfg, "--as", rootEmail)

	// Scripted input is not a terminal.
	_, err := run(t, strings.NewReader("yes\n"), "db", "reset", "-c", cfg)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected refusal without a terminal, got %v", err)
	}

	orig := isTerminal
	isTerminal = func(io.Reader) bool { return true }
	defer func() { isTerminal = orig }()

	out, err := run(t, strings.NewReader("no\n"), "db", "reset", "-c", cfg)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	assertContains(t, out, "Type \"yes\" to confirm", "Aborted.")
	assertContains(t, mustRun(t, "project", "list", "-c", cfg), "Website")

	out, err = run(t, strings.NewReader("yes\n"), "db", "reset", "-c", cfg)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	assertContains(t, out, "reset successfully")
	assertContains(t, mustRun(t, "project", "list", "-c", cfg), "No projects found.")

	mustRun(t, "db", "reset", "-c", cfg, "--yes")
	assertContains(t, mustRun(t, "db", "migrate", "-c", cfg), "Migrated")
}

func mustLoad(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestCLI_NotifyRequiresPlatform(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := run(t, nil, "notify", "start", "-c", cfg)
	if err == nil || !strings.Contains(err.Error(), "no platform configured") {
		t.Fatalf("expected missing platform error, got %v", err)
	}
}

func TestCreateAdapter(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	for _, platform := range []string{"slack", "discord"} {
		cfg := mustLoad(t, cfgPath)
		cfg.Notify.Platform = platform
		cfg.Notify.Channel = "C1"
		cfg.Notify.Slack.BotToken = "xoxb-test"
		cfg.Notify.Discord.BotToken = "discord-test"
		a, err := createAdapter(cfg, nil)
		if err != nil {
			t.Fatalf("%s: %v", platform, err)
		}
		if a == nil {
			t.Fatalf("%s: nil adapter", platform)
		}
	}

	cfg := mustLoad(t, cfgPath)
	cfg.Notify.Platform = "irc"
	if _, err := createAdapter(cfg, nil); err == nil {
		t.Error("expected unsupported platform error")
	}
}
