package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"natrender/internal/queue"
	"natrender/internal/render"
)

func TestStatusCommandReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
	requireContains(t, out, "shot010")
	requireContains(t, out, "No active or pending renders")
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	_, configPath := newTestConfig(t)
	missing := filepath.Join(t.TempDir(), "missing.sock")

	out, _, err := runCLI(t, []string{"status"}, missing, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Frame renderer")
	requireContains(t, out, "Journal is empty")
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if decoded["running"] != true || decoded["project_name"] != "shot010" {
		t.Fatalf("unexpected status json %v", decoded)
	}
}

func TestSubmitWaitAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"submit", "--wait", "-w", "WriteA", "-w", "WriteB"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "1-8 x2")

	out, _, err = runCLI(t, []string{"history", "list", "--status", "completed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "WriteA")
	requireContains(t, out, "WriteB")

	out, _, err = runCLI(t, []string{"history", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 2 record(s)")
}

func TestSubmitReportsRejectedRange(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"submit", "--wait", "-w", "WriteA", "-r", "10-2"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected rejected render to fail the command")
	}
	requireContains(t, out, "Rejected")
	requireContains(t, err.Error(), "WriteA")
}

func TestSubmitUnknownWriterFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"submit", "-w", "Nope"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected unknown writer to fail")
	}
	requireContains(t, err.Error(), "does not belong to the project")
}

func TestQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "No active or pending renders")

	if _, _, err := runCLI(t, []string{"queue", "cancel", "WriteA"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected cancel without a render to fail")
	}
	if _, _, err := runCLI(t, []string{"queue", "remove", "WriteA"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected remove without a pending render to fail")
	}
}

func TestSettingsCommandUpdatesDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"settings", "--max-parallel", "2", "--queuing=false"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	requireContains(t, out, "Settings updated")
	got := env.daemon.Settings()
	if got.MaxParallel != 2 || got.Queuing {
		t.Fatalf("expected daemon settings to change, got %+v", got)
	}

	out, _, err = runCLI(t, []string{"settings", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings --json: %v", err)
	}
	var decoded render.Settings
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if decoded != got {
		t.Fatalf("expected %+v, got %+v", got, decoded)
	}
}

func TestStopCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")
	if env.daemon.Running() {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestStopCommandWithoutDaemon(t *testing.T) {
	_, configPath := newTestConfig(t)
	missing := filepath.Join(t.TempDir(), "missing.sock")

	out, _, err := runCLI(t, []string{"stop"}, missing, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestHistoryListFallsBackToJournal(t *testing.T) {
	cfg, configPath := newTestConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	info := render.Info{ID: "offline-1", Writer: "WriteA", Range: render.Range{First: 1, Last: 4, Step: 1}, Mode: render.ModeBlocking}
	if err := store.RecordStarted(t.Context(), info); err != nil {
		t.Fatalf("RecordStarted: %v", err)
	}
	if err := store.RecordFinished(t.Context(), info, nil); err != nil {
		t.Fatalf("RecordFinished: %v", err)
	}
	store.Close()

	missing := filepath.Join(t.TempDir(), "missing.sock")
	out, _, err := runCLI(t, []string{"history", "list"}, missing, configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "offline-")
	requireContains(t, out, "Completed")
}

func TestRenderCommandProgressJSON(t *testing.T) {
	cfg, configPath := newTestConfig(t)

	out, _, err := runCLI(t, []string{
		"render", "--background", "--progress-json",
		"--project", cfg.Paths.ProjectFile,
		"--writer", "WriteB", "--range", "1-4", "--step", "2",
	}, "", configPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var updates []render.Progress
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var p render.Progress
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("stdout must only carry progress lines, got %q: %v", scanner.Text(), err)
		}
		updates = append(updates, p)
	}
	if len(updates) != 2 {
		t.Fatalf("expected one progress line per frame (1 and 3), got %+v", updates)
	}
	if last := updates[len(updates)-1]; last.Frame != 3 || last.Percent != 100 {
		t.Fatalf("unexpected final progress %+v", last)
	}
}

func TestRenderCommandPrintsOutcomes(t *testing.T) {
	_, configPath := newTestConfig(t)

	out, _, err := runCLI(t, []string{"render", "WriteA", "-r", "1-3"}, "", configPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "WriteA")
	requireContains(t, out, "Completed")
}

func TestRenderCommandFailsWithoutFrameCommand(t *testing.T) {
	cfg, configPath := newTestConfig(t)
	cfg.Render.FrameCommand = ""
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"render", "WriteA", "-r", "1-1"}, "", configPath)
	if err == nil {
		t.Fatal("expected render without a frame command to fail")
	}
	requireContains(t, out, "Failed")
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "natrender.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected existing config to be refused without --overwrite")
	}

	_, configPath := newTestConfig(t)
	out, _, err = runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, configPath)
	requireContains(t, out, "[render]")
	requireContains(t, out, "natron-frame {output}")
}

func TestLogsCommandTailsDaemonLog(t *testing.T) {
	cfg, configPath := newTestConfig(t)
	logPath := filepath.Join(cfg.Paths.LogDir, "natrender.log")
	content := "INFO render started writer=WriteA\nINFO render started writer=WriteB\nINFO render completed writer=WriteA\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, "", configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Count(out, "\n") != 2 || strings.Contains(out, "started writer=WriteA") {
		t.Fatalf("expected the last two lines, got %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--grep", "WriteA"}, "", configPath)
	if err != nil {
		t.Fatalf("logs --grep: %v", err)
	}
	if strings.Count(out, "\n") != 2 || strings.Contains(out, "WriteB") {
		t.Fatalf("expected only WriteA lines, got %q", out)
	}
}
