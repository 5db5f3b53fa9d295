package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/db"
	"github.com/nikivdev/flow/internal/models"
	"github.com/nikivdev/flow/internal/notify"
	"github.com/nikivdev/flow/internal/schedule"
	"github.com/nikivdev/flow/internal/snapshot"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check inputs, output root and integrations",
		Long:  "Runs diagnostic checks on the config, input logs, dataset root, catalog, notifiers, schedule and latest snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout(), configPath, time.Now())
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(out io.Writer, configPath string, now time.Time) error {
	fmt.Fprintln(out, "Flowset Doctor")
	fmt.Fprintln(out, "==============")

	cfg, cfgResult := checkConfig(configPath)
	results := []checkResult{cfgResult}
	if cfg != nil {
		results = append(results,
			checkInput("Flow signals", cfg.Flow.Path),
			checkInput("Seq memory", cfg.Seq.Path),
			checkRoot(cfg.Output.Root),
			checkCatalog(cfg),
			checkNotifiers(cfg.Notify),
			checkSchedule(cfg.Schedule.Cron, now),
			checkLatest(cfg.Output.Root),
		)
	}

	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return &exitError{code: 1, msg: fmt.Sprintf("%d check(s) failed", failed)}
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", err.Error()}
	}
	if path == "" {
		return cfg, checkResult{"Config file", "PASS", "built-in defaults"}
	}
	return cfg, checkResult{"Config file", "PASS", path}
}

// checkInput only warns on a missing log; build treats it as empty.
func checkInput(name, path string) checkResult {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return checkResult{name, "WARN", fmt.Sprintf("%s not found (read as empty)", path)}
	case err != nil:
		return checkResult{name, "FAIL", err.Error()}
	case info.IsDir():
		return checkResult{name, "FAIL", fmt.Sprintf("%s is a directory", path)}
	}
	return checkResult{name, "PASS", fmt.Sprintf("%s (%s bytes)", path, formatCount(int(info.Size())))}
}

func checkRoot(root string) checkResult {
	dir := filepath.Join(root, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return checkResult{"Dataset root", "FAIL", err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return checkResult{"Dataset root", "FAIL", fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return checkResult{"Dataset root", "PASS", root}
}

func checkCatalog(cfg *config.Config) checkResult {
	if !cfg.Catalog.Enabled {
		return checkResult{"Catalog", "WARN", "disabled"}
	}
	gdb, err := db.Open(cfg.Catalog)
	if err != nil {
		return checkResult{"Catalog", "FAIL", err.Error()}
	}
	defer closeCatalog(gdb)

	sqlDB, err := gdb.DB()
	if err != nil {
		return checkResult{"Catalog", "FAIL", fmt.Sprintf("get sql.DB: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return checkResult{"Catalog", "FAIL", fmt.Sprintf("ping failed: %v", err)}
	}

	all := db.AllModels()
	migrated := 0
	for _, m := range all {
		if gdb.Migrator().HasTable(m) {
			migrated++
		}
	}
	var runs int64
	if err := gdb.Model(&models.SnapshotRun{}).Count(&runs).Error; err != nil {
		return checkResult{"Catalog", "FAIL", fmt.Sprintf("count runs: %v", err)}
	}
	status := "PASS"
	if migrated < len(all) {
		status = "WARN"
	}
	return checkResult{"Catalog", status, fmt.Sprintf("%s, %d/%d tables migrated, %d runs", cfg.Catalog.Driver, migrated, len(all), runs)}
}

func checkNotifiers(cfg config.NotifyConfig) checkResult {
	if _, err := notify.FromConfig(cfg); err != nil {
		return checkResult{"Notifications", "FAIL", err.Error()}
	}
	var names []string
	if cfg.Slack.WebhookURL != "" {
		names = append(names, "slack")
	}
	if cfg.Discord.BotToken != "" {
		names = append(names, "discord")
	}
	if len(names) == 0 {
		return checkResult{"Notifications", "WARN", "none configured"}
	}
	return checkResult{"Notifications", "PASS", fmt.Sprintf("%s (on %s)", strings.Join(names, ", "), cfg.On)}
}

func checkSchedule(expr string, now time.Time) checkResult {
	if expr == "" {
		return checkResult{"Schedule", "WARN", "no cron expression"}
	}
	wait, err := schedule.Next(expr, now)
	if err != nil {
		return checkResult{"Schedule", "FAIL", err.Error()}
	}
	return checkResult{"Schedule", "PASS", fmt.Sprintf("%q next run in %s", expr, wait.Round(time.Second))}
}

func checkLatest(root string) checkResult {
	l := snapshot.NewLayout(root, snapshot.LatestName)
	m, err := snapshot.ReadManifest(l.ManifestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return checkResult{"Latest snapshot", "WARN", "none published"}
	}
	if err != nil {
		return checkResult{"Latest snapshot", "FAIL", err.Error()}
	}
	r, err := snapshot.ReadReport(l.ReportPath())
	if err != nil {
		return checkResult{"Latest snapshot", "FAIL", err.Error()}
	}
	if !r.OK {
		return checkResult{"Latest snapshot", "WARN", fmt.Sprintf("%s failed the quality gate", m.Snapshot)}
	}
	return checkResult{"Latest snapshot", "PASS", fmt.Sprintf("%s (%s rows)", m.Snapshot, formatCount(m.Counts.DedupedRows))}
}
