// Package telegram collects liquidation-bot messages and posts study summaries through
// the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/liqstudy/internal/models"
)

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client collects messages from one chat and sends notifications to it.
type Client struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	pollTimeout    int
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot botAPI, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// SetPollTimeout sets the long-poll timeout in seconds used by CollectMessages.
func (c *Client) SetPollTimeout(seconds int) {
	c.pollTimeout = seconds
}

// CollectOptions selects which chat messages CollectMessages keeps.
type CollectOptions struct {
	Start    time.Time
	End      time.Time
	Contains string // case-insensitive; empty keeps every message
	Limit    int    // 0 means unlimited
}

// CollectMessages drains the pending bot updates and returns the messages and channel
// posts of the configured chat whose timestamp lies in [Start, End] and whose text or
// caption contains Contains. Line breaks are flattened to spaces. The result is sorted
// by timestamp then id and is never nil.
func (c *Client) CollectMessages(ctx context.Context, opts CollectOptions) ([]models.RawMessage, error) {
	flatten := strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	needle := strings.ToLower(opts.Contains)

	msgs := []models.RawMessage{}
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = c.pollTimeout
		updates, err := c.bot.GetUpdates(u)
		if err != nil {
			return nil, fmt.Errorf("failed to get updates: %w", err)
		}
		if len(updates) == 0 {
			break
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			msg := update.Message
			if msg == nil {
				msg = update.ChannelPost
			}
			if msg == nil || msg.Chat == nil || msg.Chat.ID != c.chatID {
				continue
			}

			text := msg.Text
			if text == "" {
				text = msg.Caption
			}
			text = strings.TrimSpace(flatten.Replace(text))
			if text == "" {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(text), needle) {
				continue
			}

			ts := msg.Time().UTC()
			if (!opts.Start.IsZero() && ts.Before(opts.Start)) || (!opts.End.IsZero() && ts.After(opts.End)) {
				continue
			}
			msgs = append(msgs, models.RawMessage{ID: int64(msg.MessageID), Timestamp: ts, Text: text})
		}

		if opts.Limit > 0 && len(msgs) >= opts.Limit {
			break
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return msgs[i].ID < msgs[j].ID
	})
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[:opts.Limit]
	}
	return msgs, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a pipeline failure notification.
func (c *Client) SendError(stage string, stageErr error) error {
	text := fmt.Sprintf("⚠️ *Stage %s failed*\n`%s`", escapeMarkdownV2(stage), escapeMarkdownV2(stageErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendSummary sends a digest of the correlation and event-study tables.
func (c *Client) SendSummary(interval models.Interval, corr []models.CorrelationRow, events []models.EventStudyRow) error {
	return c.sendMarkdownV2(formatSummary(interval, corr, events))
}

// formatSummary formats both result tables into a Telegram MarkdownV2 message.
func formatSummary(interval models.Interval, corr []models.CorrelationRow, events []models.EventStudyRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Liquidation study* \\(%s\\)\n\n", escapeMarkdownV2(string(interval)))

	b.WriteString("*Correlation with next return*\n")
	for _, r := range corr {
		fmt.Fprintf(&b, "• %s: pearson %s, spearman %s \\(n\\=%d\\)\n",
			escapeMarkdownV2(r.Predictor),
			escapeMarkdownV2(formatStat(r.Pearson, "%.3f")),
			escapeMarkdownV2(formatStat(r.Spearman, "%.3f")),
			r.N)
	}

	b.WriteString("\n*Event study*\n")
	for _, r := range events {
		emoji := "📈"
		if r.Mean.Valid && r.Mean.Value < 0 {
			emoji = "📉"
		}
		mean := "—"
		if r.Mean.Valid {
			mean = fmt.Sprintf("%.2f%%", r.Mean.Value*100)
		}
		fmt.Fprintf(&b, "%s %s k\\=%d: mean %s, hit %s \\(%d events\\)\n",
			emoji,
			escapeMarkdownV2(r.Label),
			r.Horizon,
			escapeMarkdownV2(mean),
			escapeMarkdownV2(formatStat(r.HitRatePos, "%.2f")),
			r.Events)
	}
	return b.String()
}

func formatStat(s models.Stat, format string) string {
	if !s.Valid {
		return "—"
	}
	return fmt.Sprintf(format, s.Value)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
