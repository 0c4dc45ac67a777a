// Package slack implements the announce Adapter for Slack using the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/stageboard/stageboard/internal/announce"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient is the part of the Web API client the adapter calls.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements announce.Adapter for Slack.
type Adapter struct {
	client    slackClient
	channelID string // default channel for messages without explicit channel
	mu        sync.Mutex
	closed    bool
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string      // xoxb-... Slack bot token
	ChannelID string      // default channel to post to
	Client    slackClient // replaces the Web API client when set
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	a := &Adapter{client: opts.Client, channelID: opts.ChannelID}
	if a.client == nil {
		a.client = slackapi.New(opts.BotToken)
	}
	return a, nil
}

// Name returns "slack".
func (a *Adapter) Name() string { return "slack" }

// Send delivers a message to Slack, rendering events as attachments.
func (a *Adapter) Send(ctx context.Context, msg announce.OutboundMessage) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("slack: adapter closed")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	options := buildMessageOptions(msg)

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close marks the adapter closed. The Web API client holds no connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// buildMessageOptions renders the text as the notification fallback and
// each event as a colored attachment of Block Kit blocks.
func buildMessageOptions(msg announce.OutboundMessage) []slackapi.MsgOption {
	options := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, false)}
	if len(msg.Events) == 0 {
		return options
	}
	attachments := make([]slackapi.Attachment, 0, len(msg.Events))
	for _, evt := range msg.Events {
		attachments = append(attachments, eventToAttachment(evt))
	}
	return append(options, slackapi.MsgOptionAttachments(attachments...))
}

// eventToAttachment keeps the severity color on the attachment sidebar and
// lays the transition out as blocks.
func eventToAttachment(evt announce.FormattedEvent) slackapi.Attachment {
	return slackapi.Attachment{
		Color:    evt.Color,
		Fallback: evt.Title,
		Blocks:   slackapi.Blocks{BlockSet: eventBlocks(evt)},
	}
}

// eventBlocks is a section with the headline and body, the short fields in
// a two-column grid, and one context line per long field.
func eventBlocks(evt announce.FormattedEvent) []slackapi.Block {
	headline := "*" + escape(evt.Title) + "*"
	if evt.Body != "" {
		headline += "\n" + escape(evt.Body)
	}

	var short []*slackapi.TextBlockObject
	var long []slackapi.MixedElement
	for _, f := range evt.Fields {
		text := slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("*%s*\n%s", escape(f.Name), escape(f.Value)), false, false)
		if f.Short {
			short = append(short, text)
			continue
		}
		long = append(long, slackapi.NewTextBlockObject(slackapi.MarkdownType, fmt.Sprintf("%s: %s", escape(f.Name), escape(f.Value)), false, false))
	}

	blocks := []slackapi.Block{
		slackapi.NewSectionBlock(slackapi.NewTextBlockObject(slackapi.MarkdownType, headline, false, false), short, nil),
	}
	if len(long) > 0 {
		blocks = append(blocks, slackapi.NewContextBlock("", long...))
	}
	return blocks
}

// escape quotes the three characters mrkdwn treats as control sequences.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
