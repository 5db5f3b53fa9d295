package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Empty_UsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Flow.Last != 20000 {
		t.Errorf("Flow.Last = %d, want 20000", cfg.Flow.Last)
	}
	if cfg.Seq.Last != 50000 {
		t.Errorf("Seq.Last = %d, want 50000", cfg.Seq.Last)
	}
	if cfg.Sampling.Seed != 42 || cfg.Sampling.ValPercent != 10 || cfg.Sampling.TestPercent != 10 {
		t.Errorf("Sampling = %+v", cfg.Sampling)
	}
	if cfg.Sampling.MaxPerEvent != 120 {
		t.Errorf("MaxPerEvent = %d, want 120", cfg.Sampling.MaxPerEvent)
	}
	if cfg.Quality.MinRows != 50 || cfg.Quality.MinUniqueEvents != 3 || cfg.Quality.MaxDominance != 0.90 {
		t.Errorf("Quality = %+v", cfg.Quality)
	}
	if strings.HasPrefix(cfg.Output.Root, "~") {
		t.Errorf("Output.Root = %q, want home expanded", cfg.Output.Root)
	}
	if cfg.Catalog.Driver != "sqlite" {
		t.Errorf("Catalog.Driver = %q, want sqlite", cfg.Catalog.Driver)
	}
	if cfg.Catalog.Path != filepath.Join(cfg.Output.Root, "data", "flowset.db") {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Notify.On != "failure" {
		t.Errorf("Notify.On = %q, want failure", cfg.Notify.On)
	}
	if cfg.Serve.Port != 8080 {
		t.Errorf("Serve.Port = %d, want 8080", cfg.Serve.Port)
	}
}

func TestParse_PartialOverride_KeepsOtherDefaults(t *testing.T) {
	yaml := `
sampling:
  val_percent: 0
quality:
  min_rows: 5
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sampling.ValPercent != 0 {
		t.Errorf("ValPercent = %d, want explicit 0", cfg.Sampling.ValPercent)
	}
	if cfg.Sampling.TestPercent != 10 {
		t.Errorf("TestPercent = %d, want default 10", cfg.Sampling.TestPercent)
	}
	if cfg.Quality.MinRows != 5 {
		t.Errorf("MinRows = %d, want 5", cfg.Quality.MinRows)
	}
	if cfg.Quality.MinUniqueEvents != 3 {
		t.Errorf("MinUniqueEvents = %d, want default 3", cfg.Quality.MinUniqueEvents)
	}
}

func TestLoad_FullFixture(t *testing.T) {
	cfg, err := Load("testdata/valid_full.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Flow.Path != "/var/log/flow/flow_rl_signals.jsonl" || cfg.Flow.Last != 5000 {
		t.Errorf("Flow = %+v", cfg.Flow)
	}
	if cfg.Seq.Path != "/var/log/seq/seq_mem.jsonl" || cfg.Seq.Last != 0 {
		t.Errorf("Seq = %+v", cfg.Seq)
	}
	if len(cfg.Seq.HighSignalPatterns) != 2 || cfg.Seq.HighSignalPatterns[1] != `^actions\.` {
		t.Errorf("HighSignalPatterns = %v", cfg.Seq.HighSignalPatterns)
	}
	if cfg.Output.Root != "/srv/harbor" || cfg.Output.Snapshot != "nightly" || !cfg.Output.WriteLatest {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Sampling.Seed != 7 || cfg.Sampling.ValPercent != 0 || cfg.Sampling.TestPercent != 20 {
		t.Errorf("Sampling = %+v", cfg.Sampling)
	}
	if !cfg.Quality.AllowFail || cfg.Quality.MaxDominance != 0.75 {
		t.Errorf("Quality = %+v", cfg.Quality)
	}
	if !cfg.Catalog.Enabled || cfg.Catalog.Driver != "mysql" {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Catalog.Dolt.Host != "10.0.0.5" || cfg.Catalog.Dolt.Port != 3307 || cfg.Catalog.Dolt.Database != "flowset_prod" {
		t.Errorf("Catalog.Dolt = %+v", cfg.Catalog.Dolt)
	}
	if cfg.Catalog.Dolt.User != "root" {
		t.Errorf("Catalog.Dolt.User = %q, want default root", cfg.Catalog.Dolt.User)
	}
	if cfg.Catalog.Path != "" {
		t.Errorf("Catalog.Path = %q, want empty for mysql", cfg.Catalog.Path)
	}
	if cfg.Notify.On != "always" || cfg.Notify.Discord.ChannelID != "1234" {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Serve.Port != 9090 {
		t.Errorf("Serve.Port = %d", cfg.Serve.Port)
	}
	if cfg.Schedule.Cron != "*/15 * * * *" {
		t.Errorf("Schedule.Cron = %q", cfg.Schedule.Cron)
	}
}

func TestLoad_BadValues_ReportsEveryProblem(t *testing.T) {
	_, err := Load("testdata/bad_values.yaml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "config: validation failed: ") {
		t.Errorf("error = %q", msg)
	}
	for _, want := range []string{
		"flow.path is required",
		"flow.last must be at least 0",
		"catalog.driver must be one of [sqlite mysql]",
		"notify.on must be one of [failure always]",
		"serve.port must be at most 65535",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
	if strings.Count(msg, "; ") != 4 {
		t.Errorf("want 5 joined problems, got: %s", msg)
	}
}

func TestParse_SeqPathRequired(t *testing.T) {
	_, err := Parse([]byte("seq:\n  path: \"\"\n"))
	if err == nil || !strings.Contains(err.Error(), "seq.path is required") {
		t.Errorf("error = %v, want seq.path is required", err)
	}
}

func TestParse_InvalidSnapshotName(t *testing.T) {
	for _, name := range []string{"latest", "a/b", ".."} {
		_, err := Parse([]byte("output:\n  snapshot: \"" + name + "\"\n"))
		if err == nil || !strings.Contains(err.Error(), "output.snapshot: invalid name") {
			t.Errorf("snapshot %q: error = %v", name, err)
		}
	}
}

func TestParse_DiscordTokenWithoutChannel(t *testing.T) {
	_, err := Parse([]byte("notify:\n  discord:\n    bot_token: abc\n"))
	if err == nil || !strings.Contains(err.Error(), "notify.discord.channel_id is required") {
		t.Errorf("error = %v", err)
	}
}

func TestParse_BadCron(t *testing.T) {
	_, err := Parse([]byte("schedule:\n  cron: \"every hour\"\n"))
	if err == nil || !strings.Contains(err.Error(), "schedule.cron: parse") {
		t.Errorf("error = %v", err)
	}
	if _, err := Parse([]byte("schedule:\n  cron: \"@every 30m\"\n")); err != nil {
		t.Errorf("descriptor rejected: %v", err)
	}
}

func TestParse_BadWebhookURL(t *testing.T) {
	_, err := Parse([]byte("notify:\n  slack:\n    webhook_url: not a url\n"))
	if err == nil || !strings.Contains(err.Error(), "notify.slack.webhook_url must be a valid URL") {
		t.Errorf("error = %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_InvalidYAMLFixture(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	if err == nil || !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %v, want config: parse:", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/flowset.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\"): %v", err)
	}
	if cfg.Sampling.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Sampling.Seed)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "flowset.yaml")
	if err := os.WriteFile(path, []byte("sampling:\n  seed: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault(path): %v", err)
	}
	if cfg.Sampling.Seed != 9 {
		t.Errorf("Seed = %d, want 9", cfg.Sampling.Seed)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~/logs/a.jsonl", filepath.Join(home, "logs/a.jsonl")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"rel/~/x", "rel/~/x"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetRoot_MovesDerivedCatalog(t *testing.T) {
	cfg, err := Parse([]byte("output:\n  root: /data/a\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetRoot("/data/b")
	if cfg.Output.Root != "/data/b" || cfg.Catalog.Path != filepath.Join("/data/b", "data", "flowset.db") {
		t.Errorf("root %q catalog %q", cfg.Output.Root, cfg.Catalog.Path)
	}

	cfg, err = Parse([]byte("output:\n  root: /data/a\ncatalog:\n  path: /var/lib/flowset.db\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetRoot("/data/b")
	if cfg.Catalog.Path != "/var/lib/flowset.db" {
		t.Errorf("explicit catalog path moved to %q", cfg.Catalog.Path)
	}
}
