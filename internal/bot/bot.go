package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"rda_bot/internal/announce"
	"rda_bot/internal/config"
	"rda_bot/internal/message"
	"rda_bot/internal/model"
	"rda_bot/internal/rda"
	"rda_bot/internal/storage"
	"rda_bot/internal/stream"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// AnnouncementSource returns the announcements currently published.
type AnnouncementSource interface {
	Fetch(ctx context.Context) ([]model.Announcement, error)
}

// StreamStatus exposes the spot stream connection for /status.
type StreamStatus interface {
	State() stream.State
	Sessions() int64
}

// DeliveryError reports a message that Telegram did not accept.
type DeliveryError struct {
	ChatID int64
	// Code is the Telegram error code, or 0 when the request never got an
	// answer.
	Code int
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("send to chat %d: telegram error %d: %v", e.ChatID, e.Code, e.Err)
	}
	return fmt.Sprintf("send to chat %d: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	cfg     *config.Config
	limiter *rate.Limiter
	log     *slog.Logger

	source    AnnouncementSource
	differ    *announce.Differ
	catalogue *rda.Catalogue
	stream    StreamStatus
	started   time.Time
}

// Option configures optional collaborators of a Bot.
type Option func(*Bot)

// WithAnnouncements enables /announcements. The differ should be the one used
// by the scheduler so that records shown on demand are not broadcast again.
func WithAnnouncements(src AnnouncementSource, differ *announce.Differ) Option {
	return func(b *Bot) {
		b.source = src
		b.differ = differ
	}
}

// WithCatalogue validates /add_rda codes against a list of known codes.
func WithCatalogue(c *rda.Catalogue) Option {
	return func(b *Bot) { b.catalogue = c }
}

// WithStreamStatus reports the spot stream state in /status.
func WithStreamStatus(s StreamStatus) Option {
	return func(b *Bot) { b.stream = s }
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := &Bot{
		api:     api,
		store:   store,
		cfg:     cfg,
		limiter: newLimiter(cfg.SendRate),
		log:     log,
		differ:  announce.NewDiffer(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func newLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (b *Bot) RegisterCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commandMenu...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.answerCallback(cb.ID, "Доступ запрещён.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, "⛔ Доступ запрещён.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleButton(ctx, msg)
}

// Send delivers one HTML message, waiting for the send rate limit. A request
// rejected with a retry_after hint is retried once after the hinted delay.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, chatID, text, nil)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	for attempt := 0; ; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return &DeliveryError{ChatID: chatID, Err: err}
		}
		_, err := b.api.Send(msg)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) {
			return &DeliveryError{ChatID: chatID, Err: err}
		}
		if apiErr.RetryAfter > 0 && attempt == 0 {
			b.log.Warn("telegram flood wait", "chat_id", chatID, "retry_after", apiErr.RetryAfter)
			t := time.NewTimer(time.Duration(apiErr.RetryAfter) * time.Second)
			select {
			case <-ctx.Done():
				t.Stop()
				return &DeliveryError{ChatID: chatID, Code: apiErr.Code, Err: ctx.Err()}
			case <-t.C:
			}
			continue
		}
		return &DeliveryError{ChatID: chatID, Code: apiErr.Code, Err: err}
	}
}

// reply sends a direct answer to a user, logging failures.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.replyWithMarkup(ctx, chatID, text, nil)
}

// replyWithMarkup sends text in as many chunks as needed and attaches markup
// to the last one.
func (b *Bot) replyWithMarkup(ctx context.Context, chatID int64, text string, markup any) {
	var chunks []string
	for _, c := range message.Chunk(text, b.cfg.MaxMessageLen) {
		if strings.TrimSpace(c) != "" {
			chunks = append(chunks, c)
		}
	}
	for i, c := range chunks {
		var m any
		if i == len(chunks)-1 {
			m = markup
		}
		if err := b.send(ctx, chatID, c, m); err != nil {
			b.log.Error("send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.handleHelp(ctx, chatID)
	case "sub_ann":
		b.handleSubscription(ctx, chatID, model.KindAnnouncements, true)
	case "unsub_ann":
		b.handleSubscription(ctx, chatID, model.KindAnnouncements, false)
	case "sub_spots":
		b.handleSubscription(ctx, chatID, model.KindSpots, true)
	case "unsub_spots":
		b.handleSubscription(ctx, chatID, model.KindSpots, false)
	case "announcements":
		b.handleAnnouncements(ctx, chatID)
	case "add_rda":
		b.handleAddRDA(ctx, chatID, args)
	case "clear_rda":
		b.handleClearRDA(ctx, chatID)
	case "my_filters":
		b.handleMyFilters(ctx, chatID)
	case "set_mode":
		b.handleSetMode(ctx, chatID, args)
	case "set_band":
		b.handleSetBand(ctx, chatID, args)
	case "set_template":
		b.handleSetTemplate(ctx, chatID, args)
	case "status":
		b.handleStatus(ctx, chatID)
	default:
		b.reply(ctx, chatID, "Неизвестная команда. Список команд: /help")
	}
}

func (b *Bot) handleButton(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(msg.Text) {
	case btnAnnouncements:
		b.handleAnnouncements(ctx, chatID)
	case btnSubSpots:
		b.handleSubscription(ctx, chatID, model.KindSpots, true)
	case btnUnsubSpots:
		b.handleSubscription(ctx, chatID, model.KindSpots, false)
	case btnMyFilters:
		b.handleMyFilters(ctx, chatID)
	}
}
