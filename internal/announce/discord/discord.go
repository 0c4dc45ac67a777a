// Package discord implements the announce Adapter for Discord using the
// REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stageboard/stageboard/internal/announce"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff between rate-limited retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 30 * time.Second
)

// session is the part of *discordgo.Session the adapter calls.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter implements announce.Adapter for Discord.
type Adapter struct {
	sess        session
	channelID   string
	mu          sync.Mutex
	closed      bool
	baseBackoff time.Duration
	maxBackoff  time.Duration
	now         func() time.Time
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string  // Discord bot token
	ChannelID string  // default channel to post to
	Session   session // replaces the discordgo session when set
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	a := &Adapter{
		sess:        opts.Session,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		now:         time.Now,
	}
	if a.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = dg
	}
	return a, nil
}

// Name returns "discord".
func (a *Adapter) Name() string { return "discord" }

// Send delivers a message to Discord, rendering events as embeds.
func (a *Adapter) Send(ctx context.Context, msg announce.OutboundMessage) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("discord: adapter closed")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}

	data := buildMessageSend(msg, a.now())
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSendComplex(channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close shuts down the session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.sess.Close()
}

// Discord rejects embeds past these sizes.
const (
	maxTitleLen       = 256
	maxDescriptionLen = 4096
	maxFieldValueLen  = 1024
)

// buildMessageSend renders the text as content and each event as an embed.
// Mentions are never parsed, so a project titled "@everyone" pings nobody.
func buildMessageSend(msg announce.OutboundMessage, now time.Time) *discordgo.MessageSend {
	data := &discordgo.MessageSend{
		Content:         msg.Text,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	for _, evt := range msg.Events {
		data.Embeds = append(data.Embeds, eventToEmbed(evt, now))
	}
	return data
}

func eventToEmbed(evt announce.FormattedEvent, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       clip(evt.Title, maxTitleLen),
		Description: clip(evt.Body, maxDescriptionLen),
		Color:       parseHexColor(evt.Color),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Stageboard"},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	for _, f := range evt.Fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   clip(f.Name, maxTitleLen),
			Value:  clip(value, maxFieldValueLen),
			Inline: f.Short,
		})
	}
	return embed
}

// clip cuts s to at most n runes, ending in an ellipsis when cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// parseHexColor converts "#36a64f" or "36a64f" to an int. Anything else is 0.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
