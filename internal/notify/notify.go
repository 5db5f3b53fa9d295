// Package notify posts snapshot build verdicts to chat platforms.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/quality"
)

// Delivery policies.
const (
	OnFailure = "failure"
	OnAlways  = "always"
)

// Verdict is the outcome of one build as seen by a notifier.
type Verdict struct {
	RunID       string
	Snapshot    string
	PreparedDir string
	Report      quality.Report
}

// Notifier delivers a verdict.
type Notifier interface {
	Notify(ctx context.Context, v Verdict) error
}

// Multi fans a verdict out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, v Verdict) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ShouldNotify applies the delivery policy to a verdict.
func ShouldNotify(on string, v Verdict) bool {
	switch strings.ToLower(on) {
	case OnAlways:
		return true
	default:
		return !v.Report.OK
	}
}

// Send notifies n when the policy allows it. It reports whether a
// notification was attempted.
func Send(ctx context.Context, n Notifier, on string, v Verdict) (bool, error) {
	if n == nil || !ShouldNotify(on, v) {
		return false, nil
	}
	return true, n.Notify(ctx, v)
}

// FromConfig builds the notifiers enabled in cfg. It returns nil when none
// are configured.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if cfg.Slack.WebhookURL != "" {
		m = append(m, NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Channel))
	}
	if cfg.Discord.BotToken != "" {
		d, err := NewDiscord(cfg.Discord.BotToken, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	switch len(m) {
	case 0:
		return nil, nil
	case 1:
		return m[0], nil
	}
	return m, nil
}

// Color constants for verdict severity.
const (
	ColorSuccess = "#36a64f"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Field is one key/value pair of a message.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Message is a platform-neutral rendering of a verdict.
type Message struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Format renders v for chat.
func Format(v Verdict) Message {
	r := v.Report
	title := fmt.Sprintf("Snapshot %s passed the quality gate", v.Snapshot)
	color := ColorSuccess
	switch {
	case !r.OK:
		title = fmt.Sprintf("Snapshot %s failed the quality gate", v.Snapshot)
		color = ColorError
	case len(r.Warnings) > 0:
		color = ColorWarning
	}

	var body []string
	for _, e := range r.Errors {
		body = append(body, "error: "+e)
	}
	for _, w := range r.Warnings {
		body = append(body, "warning: "+w)
	}

	fields := []Field{
		{Name: "Rows", Value: fmt.Sprintf("%d", r.Counts.Rows), Short: true},
		{Name: "Train/Val/Test", Value: fmt.Sprintf("%d/%d/%d", r.Counts.TrainRows, r.Counts.ValRows, r.Counts.TestRows), Short: true},
		{Name: "Unique events", Value: fmt.Sprintf("%d", r.Counts.UniqueEvents), Short: true},
		{Name: "Success rate", Value: fmt.Sprintf("%.3f", r.Counts.SuccessRate), Short: true},
	}
	if r.Dominance.EventName != "" {
		fields = append(fields, Field{
			Name:  "Dominant event",
			Value: fmt.Sprintf("%s (%.3f)", r.Dominance.EventName, r.Dominance.Ratio),
		})
	}
	if v.RunID != "" {
		fields = append(fields, Field{Name: "Run", Value: v.RunID})
	}
	if v.PreparedDir != "" {
		fields = append(fields, Field{Name: "Prepared", Value: v.PreparedDir})
	}

	return Message{Title: title, Body: strings.Join(body, "\n"), Color: color, Fields: fields}
}
