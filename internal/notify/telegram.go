package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"marketview/logger"
)

// TelegramOptions configures the Telegram forwarder.
type TelegramOptions struct {
	BotToken      string
	ChatID        string
	MinSeverity   Severity
	RatePerSecond float64
	Burst         int
	QueueSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	Label         string
}

type chattableSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram forwards notifications at or above a severity to a Telegram chat.
// Notify only enqueues; Run delivers in the background, rate limited. When the
// queue is full the notification is dropped.
type Telegram struct {
	bot        chattableSender
	chatID     int64
	min        Severity
	limiter    *rate.Limiter
	queue      chan string
	maxRetries int
	retryDelay time.Duration
	label      string
	log        *logger.Log

	mu      sync.Mutex
	dropped int64
}

// NewTelegram authenticates the bot and returns a forwarder ready for Run.
func NewTelegram(opts TelegramOptions, log *logger.Log) (*Telegram, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(opts.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(opts.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newTelegram(bot, chatID, opts, log), nil
}

func newTelegram(bot chattableSender, chatID int64, opts TelegramOptions, log *logger.Log) *Telegram {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Telegram{
		bot:        bot,
		chatID:     chatID,
		min:        opts.MinSeverity,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		queue:      make(chan string, opts.QueueSize),
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		label:      opts.Label,
		log:        log,
	}
}

func (t *Telegram) Notify(message string, severity Severity, _ time.Duration) {
	if severity < t.min {
		return
	}
	select {
	case t.queue <- formatTelegram(t.label, message, severity):
	default:
		t.mu.Lock()
		t.dropped++
		t.mu.Unlock()
	}
}

// Dropped reports how many notifications were discarded because the queue was full.
func (t *Telegram) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Run delivers queued messages until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	log := t.log.WithComponent("telegram")
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.queue:
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
			if err := t.send(ctx, text); err != nil {
				log.WithError(err).Warn("failed to forward notification")
			}
		}
	}
}

func (t *Telegram) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.retryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

var severityIcons = map[Severity]string{
	Info:    "ℹ️",
	Success: "✅",
	Warning: "⚠️",
	Error:   "❌",
}

func formatTelegram(label, message string, severity Severity) string {
	var b strings.Builder
	b.WriteString(severityIcons[severity])
	b.WriteString(" *")
	b.WriteString(escapeMarkdownV2(strings.ToUpper(severity.String())))
	b.WriteString("*")
	if label != "" {
		b.WriteString(" ")
		b.WriteString(escapeMarkdownV2("[" + label + "]"))
	}
	b.WriteString("\n")
	b.WriteString(escapeMarkdownV2(message))
	return b.String()
}

func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
