package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nikivdev/flow/internal/config"
	"github.com/nikivdev/flow/internal/quality"
	slackapi "github.com/slack-go/slack"
)

func failing() Verdict {
	return Verdict{
		RunID:       "run-1",
		Snapshot:    "nightly",
		PreparedDir: "/harbor/data/flow_runtime_prepared/nightly",
		Report: quality.Report{
			OK:        false,
			Counts:    quality.Counts{Rows: 10, TrainRows: 8, ValRows: 1, TestRows: 1, UniqueEvents: 5, SuccessRate: 0.5},
			Dominance: quality.Dominance{EventName: "cli.run", Ratio: 0.2},
			Errors:    []string{"rows below threshold: 10 < 50"},
			Warnings:  []string{},
		},
	}
}

func passing() Verdict {
	v := failing()
	v.Report.OK = true
	v.Report.Errors = []string{}
	return v
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Notify(context.Context, Verdict) error {
	r.calls++
	return r.err
}

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		on   string
		v    Verdict
		want bool
	}{
		{OnFailure, failing(), true},
		{OnFailure, passing(), false},
		{OnAlways, passing(), true},
		{"ALWAYS", failing(), true},
		{"", passing(), false},
	}
	for _, tt := range tests {
		if got := ShouldNotify(tt.on, tt.v); got != tt.want {
			t.Errorf("ShouldNotify(%q, ok=%v) = %v, want %v", tt.on, tt.v.Report.OK, got, tt.want)
		}
	}
}

func TestSend(t *testing.T) {
	r := &recorder{}
	sent, err := Send(context.Background(), r, OnFailure, passing())
	if sent || err != nil || r.calls != 0 {
		t.Errorf("passing verdict sent=%v err=%v calls=%d", sent, err, r.calls)
	}
	sent, err = Send(context.Background(), r, OnFailure, failing())
	if !sent || err != nil || r.calls != 1 {
		t.Errorf("failing verdict sent=%v err=%v calls=%d", sent, err, r.calls)
	}
	if sent, _ := Send(context.Background(), nil, OnAlways, failing()); sent {
		t.Error("nil notifier should never send")
	}
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	a := &recorder{err: errors.New("a down")}
	b := &recorder{}
	c := &recorder{err: errors.New("c down")}
	err := Multi{a, b, c}.Notify(context.Background(), failing())
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Errorf("calls = %d %d %d", a.calls, b.calls, c.calls)
	}
	if err == nil || !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "c down") {
		t.Errorf("err = %v", err)
	}
}

func TestFormat(t *testing.T) {
	m := Format(failing())
	if m.Color != ColorError || !strings.Contains(m.Title, "failed") {
		t.Errorf("failing message = %+v", m)
	}
	if !strings.Contains(m.Body, "error: rows below threshold: 10 < 50") {
		t.Errorf("body = %q", m.Body)
	}
	names := map[string]string{}
	for _, f := range m.Fields {
		names[f.Name] = f.Value
	}
	if names["Train/Val/Test"] != "8/1/1" || names["Dominant event"] != "cli.run (0.200)" || names["Run"] != "run-1" {
		t.Errorf("fields = %v", names)
	}

	p := Format(passing())
	if p.Color != ColorSuccess || !strings.Contains(p.Title, "passed") {
		t.Errorf("passing message = %+v", p)
	}

	w := passing()
	w.Report.Warnings = []string{"success rate skewed: 0.990"}
	if Format(w).Color != ColorWarning {
		t.Error("warnings should color the message as a warning")
	}
}

func TestSlack_Notify(t *testing.T) {
	var gotURL string
	var got *slackapi.WebhookMessage
	s := NewSlack("https://hooks.example/x", "#datasets")
	s.post = func(_ context.Context, url string, msg *slackapi.WebhookMessage) error {
		gotURL, got = url, msg
		return nil
	}
	if err := s.Notify(context.Background(), failing()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotURL != "https://hooks.example/x" || got.Channel != "#datasets" {
		t.Errorf("posted to %q channel %q", gotURL, got.Channel)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != ColorError {
		t.Errorf("attachments = %+v", got.Attachments)
	}
}

func TestSlack_RetriesRateLimit(t *testing.T) {
	calls := 0
	s := NewSlack("https://hooks.example/x", "")
	s.post = func(context.Context, string, *slackapi.WebhookMessage) error {
		calls++
		if calls < 3 {
			return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
		}
		return nil
	}
	if err := s.Notify(context.Background(), failing()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestSlack_NonRateLimitErrorNotRetried(t *testing.T) {
	calls := 0
	s := NewSlack("https://hooks.example/x", "")
	s.post = func(context.Context, string, *slackapi.WebhookMessage) error {
		calls++
		return errors.New("boom")
	}
	err := s.Notify(context.Background(), failing())
	if err == nil || !strings.HasPrefix(err.Error(), "notify: slack: ") || calls != 1 {
		t.Errorf("err = %v calls = %d", err, calls)
	}
}

type mockSession struct {
	channel string
	embeds  []*discordgo.MessageEmbed
	errs    []error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channel = channelID
	m.embeds = append(m.embeds, embed)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return &discordgo.Message{ID: "m1"}, nil
}

func TestDiscord_Notify(t *testing.T) {
	sess := &mockSession{}
	d := &Discord{sess: sess, channelID: "chan-1", backoff: time.Millisecond}
	if err := d.Notify(context.Background(), failing()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sess.channel != "chan-1" || len(sess.embeds) != 1 {
		t.Fatalf("sent %d embeds to %q", len(sess.embeds), sess.channel)
	}
	e := sess.embeds[0]
	if e.Color != 0xe53935 || !strings.Contains(e.Title, "nightly") {
		t.Errorf("embed = %+v", e)
	}
}

func TestDiscord_RetriesTooManyRequests(t *testing.T) {
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	sess := &mockSession{errs: []error{limited}}
	d := &Discord{sess: sess, channelID: "c", backoff: time.Millisecond}
	if err := d.Notify(context.Background(), passing()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sess.embeds) != 2 {
		t.Errorf("attempts = %d, want 2", len(sess.embeds))
	}
}

func TestNewDiscord_Validation(t *testing.T) {
	if _, err := NewDiscord("", "c"); err == nil {
		t.Error("expected error without token")
	}
	if _, err := NewDiscord("tok", ""); err == nil {
		t.Error("expected error without channel")
	}
	if _, err := NewDiscord("tok", "c"); err != nil {
		t.Errorf("NewDiscord: %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{"#36a64f": 0x36a64f, "E53935": 0xe53935, "": 0}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", in, got, want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	n, err := FromConfig(config.NotifyConfig{})
	if err != nil || n != nil {
		t.Errorf("empty config = %v, %v", n, err)
	}

	n, err = FromConfig(config.NotifyConfig{Slack: config.SlackConfig{WebhookURL: "https://hooks.example/x"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(*Slack); !ok {
		t.Errorf("single slack notifier = %T", n)
	}

	n, err = FromConfig(config.NotifyConfig{
		Slack:   config.SlackConfig{WebhookURL: "https://hooks.example/x"},
		Discord: config.DiscordConfig{BotToken: "tok", ChannelID: "c"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := n.(Multi); !ok || len(m) != 2 {
		t.Errorf("both notifiers = %T", n)
	}
}
