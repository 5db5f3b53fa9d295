package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nikivdev/flow/internal/config"
)

func TestDoctorCmd_Help(t *testing.T) {
	out, code := run(t, "doctor", "--help")
	if code != 0 {
		t.Fatalf("doctor --help exit = %d", code)
	}
	if !strings.Contains(out, "diagnostic checks") {
		t.Errorf("expected help to mention 'diagnostic checks', got: %s", out)
	}
	if !strings.Contains(out, "--config") {
		t.Errorf("expected --config flag in help, got: %s", out)
	}
}

func TestNewDoctorCmd(t *testing.T) {
	cmd := newDoctorCmd()
	if cmd.Use != "doctor" {
		t.Errorf("Use = %q, want %q", cmd.Use, "doctor")
	}
	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag == nil {
		t.Fatal("expected --config flag")
	}
	if cfgFlag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", cfgFlag.Shorthand, "c")
	}
}

func TestRunDoctor_Healthy(t *testing.T) {
	dir := t.TempDir()
	flow := filepath.Join(dir, "flow.jsonl")
	writeFlow(t, flow, []string{"plan", "tool", "reply"}, 30)
	root := filepath.Join(dir, "harbor")
	cfgPath := filepath.Join(dir, "flowset.yaml")
	cfg := fmt.Sprintf("flow:\n  path: %s\nseq:\n  path: %s\noutput:\n  root: %s\ncatalog:\n  enabled: true\n",
		flow, filepath.Join(dir, "none.jsonl"), root)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, code := run(t, "build", "-c", cfgPath, "--snapshot", "s1", "--write-latest"); code != 0 {
		t.Fatal("build failed")
	}

	var buf bytes.Buffer
	if err := runDoctor(&buf, cfgPath, time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)); err != nil {
		t.Fatalf("runDoctor: %v\n%s", err, buf.String())
	}
	out := buf.String()
	for _, want := range []string{
		"[PASS] Config file: " + cfgPath,
		"[PASS] Flow signals:",
		"[WARN] Seq memory:",
		"[PASS] Dataset root: " + root,
		"[PASS] Catalog: sqlite, 2/2 tables migrated, 1 runs",
		"[WARN] Notifications: none configured",
		`[PASS] Schedule: "0 * * * *" next run in 51m51s`,
		"[PASS] Latest snapshot: s1",
		"0 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDoctor_BadConfig(t *testing.T) {
	var buf bytes.Buffer
	err := runDoctor(&buf, filepath.Join(t.TempDir(), "missing.yaml"), time.Now())
	if err == nil {
		t.Fatal("expected failure for missing config")
	}
	if !strings.Contains(buf.String(), "[FAIL] Config file:") || !strings.Contains(buf.String(), "0 passed, 1 failed") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	if r := checkInput("Flow signals", filepath.Join(dir, "nope.jsonl")); r.status != "WARN" {
		t.Errorf("missing file status = %s", r.status)
	}
	if r := checkInput("Flow signals", dir); r.status != "FAIL" {
		t.Errorf("directory status = %s", r.status)
	}
	path := filepath.Join(dir, "f.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := checkInput("Flow signals", path); r.status != "PASS" || !strings.Contains(r.detail, "(3 bytes)") {
		t.Errorf("file result = %+v", r)
	}
}

func TestCheckRoot_NotWritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "root")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := checkRoot(file); r.status != "FAIL" {
		t.Errorf("root under a file = %+v", r)
	}
}

func TestCheckCatalog_Disabled(t *testing.T) {
	cfg := config.Default()
	if r := checkCatalog(&cfg); r.status != "WARN" || r.detail != "disabled" {
		t.Errorf("result = %+v", r)
	}
}

func TestCheckNotifiers(t *testing.T) {
	r := checkNotifiers(config.NotifyConfig{On: "always", Slack: config.SlackConfig{WebhookURL: "https://hooks.example/x"}})
	if r.status != "PASS" || r.detail != "slack (on always)" {
		t.Errorf("slack result = %+v", r)
	}
	r = checkNotifiers(config.NotifyConfig{Discord: config.DiscordConfig{BotToken: "tok"}})
	if r.status != "FAIL" {
		t.Errorf("discord without channel = %+v", r)
	}
}

func TestCheckSchedule(t *testing.T) {
	if r := checkSchedule("", time.Now()); r.status != "WARN" {
		t.Errorf("empty = %+v", r)
	}
	if r := checkSchedule("not cron", time.Now()); r.status != "FAIL" {
		t.Errorf("invalid = %+v", r)
	}
}

func TestCheckLatest_NonePublished(t *testing.T) {
	if r := checkLatest(t.TempDir()); r.status != "WARN" || r.detail != "none published" {
		t.Errorf("result = %+v", r)
	}
}
