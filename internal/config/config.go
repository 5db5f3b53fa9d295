// Package config provides YAML-based configuration loading for flowset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nikivdev/flow/internal/schedule"
	"github.com/nikivdev/flow/internal/snapshot"
	"gopkg.in/yaml.v3"
)

// Config is the top-level flowset configuration, loaded from flowset.yaml.
type Config struct {
	Flow     SourceConfig   `yaml:"flow"`
	Seq      SeqConfig      `yaml:"seq"`
	Output   OutputConfig   `yaml:"output"`
	Sampling SamplingConfig `yaml:"sampling"`
	Quality  QualityConfig  `yaml:"quality"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Notify   NotifyConfig   `yaml:"notify"`
	Serve    ServeConfig    `yaml:"serve"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// SourceConfig locates one producer's log. Last is the number of trailing
// lines considered; 0 reads the whole file.
type SourceConfig struct {
	Path string `yaml:"path" validate:"required"`
	Last int    `yaml:"last" validate:"min=0"`
}

// SeqConfig adds the high-signal allow-list to the seq source. An empty list
// keeps the built-in patterns.
type SeqConfig struct {
	SourceConfig       `yaml:",inline"`
	HighSignalPatterns []string `yaml:"high_signal_patterns"`
}

// OutputConfig controls where snapshots are published.
type OutputConfig struct {
	Root        string `yaml:"root" validate:"required"`
	Snapshot    string `yaml:"snapshot"`
	WriteLatest bool   `yaml:"write_latest"`
}

// SamplingConfig controls capping and splitting. Percentages are clamped at
// build time rather than rejected.
type SamplingConfig struct {
	Seed        int64 `yaml:"seed"`
	ValPercent  int   `yaml:"val_percent"`
	TestPercent int   `yaml:"test_percent"`
	MaxPerEvent int   `yaml:"max_per_event" validate:"min=0"`
}

// QualityConfig holds the gate thresholds.
type QualityConfig struct {
	MinRows         int     `yaml:"min_rows"`
	MinUniqueEvents int     `yaml:"min_unique_events"`
	MaxDominance    float64 `yaml:"max_dominance"`
	AllowFail       bool    `yaml:"allow_fail"`
}

// CatalogConfig configures the database that records snapshot builds.
type CatalogConfig struct {
	Enabled bool       `yaml:"enabled"`
	Driver  string     `yaml:"driver" validate:"oneof=sqlite mysql"`
	Path    string     `yaml:"path"`
	Dolt    DoltConfig `yaml:"dolt"`
}

// DoltConfig holds connection settings for a Dolt or MySQL catalog.
type DoltConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"min=0,max=65535"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
}

// NotifyConfig configures build verdict notifications.
type NotifyConfig struct {
	On      string        `yaml:"on" validate:"oneof=failure always"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
	Channel    string `yaml:"channel"`
}

type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

type ServeConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Flow: SourceConfig{Path: "out/logs/flow_rl_signals.jsonl", Last: 20000},
		Seq: SeqConfig{SourceConfig: SourceConfig{
			Path: "~/repos/ClickHouse/ClickHouse/user_files/seq_mem.jsonl",
			Last: 50000,
		}},
		Output:   OutputConfig{Root: "~/repos/laude-institute/harbor"},
		Sampling: SamplingConfig{Seed: 42, ValPercent: 10, TestPercent: 10, MaxPerEvent: 120},
		Quality:  QualityConfig{MinRows: 50, MinUniqueEvents: 3, MaxDominance: 0.90},
		Catalog:  CatalogConfig{Driver: "sqlite"},
		Notify:   NotifyConfig{On: "failure"},
		Serve:    ServeConfig{Port: 8080},
		Schedule: ScheduleConfig{Cron: "0 * * * *"},
	}
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes over Default and validates the result. Keys
// absent from data keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns the validated defaults when path is
// empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	return Load(path)
}

// applyDefaults fills in derived values.
func (c *Config) applyDefaults() {
	c.Flow.Path = ExpandHome(c.Flow.Path)
	c.Seq.Path = ExpandHome(c.Seq.Path)
	c.Output.Root = ExpandHome(c.Output.Root)
	c.Output.Snapshot = strings.TrimSpace(c.Output.Snapshot)
	c.Notify.On = strings.ToLower(strings.TrimSpace(c.Notify.On))

	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "sqlite"
	}
	if c.Catalog.Driver == "sqlite" && c.Catalog.Path == "" && c.Output.Root != "" {
		c.Catalog.Path = defaultCatalogPath(c.Output.Root)
	}
	c.Catalog.Path = ExpandHome(c.Catalog.Path)
	if c.Catalog.Dolt.Host == "" {
		c.Catalog.Dolt.Host = "127.0.0.1"
	}
	if c.Catalog.Dolt.Port == 0 {
		c.Catalog.Dolt.Port = 3306
	}
	if c.Catalog.Dolt.User == "" {
		c.Catalog.Dolt.User = "root"
	}
	if c.Catalog.Dolt.Database == "" {
		c.Catalog.Dolt.Database = "flowset"
	}
}

func defaultCatalogPath(root string) string {
	return filepath.Join(root, "data", "flowset.db")
}

// SetRoot moves the output root. A sqlite catalog path derived from the old
// root follows it.
func (c *Config) SetRoot(root string) {
	root = ExpandHome(root)
	if c.Catalog.Path == defaultCatalogPath(c.Output.Root) {
		c.Catalog.Path = defaultCatalogPath(root)
	}
	c.Output.Root = root
}

// Validate checks field rules and cross-field consistency. Every problem is
// reported in a single error.
func (c *Config) Validate() error {
	var errs []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldMessage(fe))
		}
	}
	if c.Output.Snapshot != "" {
		if err := snapshot.ValidateName(c.Output.Snapshot); err != nil {
			errs = append(errs, "output.snapshot: "+strings.TrimPrefix(err.Error(), "snapshot: "))
		}
	}
	if c.Schedule.Cron != "" {
		if _, err := schedule.Parse(c.Schedule.Cron); err != nil {
			errs = append(errs, "schedule.cron: "+strings.TrimPrefix(err.Error(), "schedule: "))
		}
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a bot_token")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		return name
	})
	return v
}

// fieldMessage renders a validator error using the yaml path of the field.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest // drop the root type name
	}
	// inlined structs have no yaml name and surface under their Go name
	field = strings.ReplaceAll(field, ".SourceConfig", "")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	}
	return fmt.Sprintf("%s failed %q", field, fe.Tag())
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
