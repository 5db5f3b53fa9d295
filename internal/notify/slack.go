package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts verdicts to an incoming webhook.
type Slack struct {
	url     string
	channel string
	post    webhookPoster
	backoff time.Duration
}

// NewSlack returns a Slack notifier for webhookURL. channel overrides the
// webhook's default channel when set.
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{url: webhookURL, channel: channel, post: slackapi.PostWebhookContext, backoff: time.Second}
}

func (s *Slack) Notify(ctx context.Context, v Verdict) error {
	m := Format(v)
	msg := &slackapi.WebhookMessage{
		Channel:     s.channel,
		Text:        m.Title,
		Attachments: []slackapi.Attachment{toAttachment(m)},
	}
	err := s.retryOnRateLimit(ctx, func() error { return s.post(ctx, s.url, msg) })
	if err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}

func toAttachment(m Message) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    m.Title,
		Text:     m.Body,
		Color:    m.Color,
		Fallback: m.Title,
	}
	for _, f := range m.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors, honoring RetryAfter when Slack provides it.
func (s *Slack) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * s.backoff
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
