package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rda_bot/internal/announce"
	"rda_bot/internal/message"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		b.answerCallback(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	b.log.Info("callback",
		"action", cb.Data,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch cb.Data {
	case cbRefresh:
		b.refreshAnnouncements(ctx, cb)
	case cbExpand:
		b.answerCallback(cb.ID, "")
		b.expandAnnouncements(ctx, chatID)
	default:
		b.answerCallback(cb.ID, "")
	}
}

// refreshAnnouncements replaces the announcement message in place. Only the
// first chunk fits into an edited message.
func (b *Bot) refreshAnnouncements(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	records, err := b.currentAnnouncements(ctx)
	if err != nil {
		b.log.Warn("fetch announcements", "chat_id", cb.Message.Chat.ID, "error", err)
		b.answerCallback(cb.ID, "Не удалось обновить")
		return
	}

	text := noAnnouncements
	if len(records) > 0 {
		text = message.Chunk(announce.Format(records, announce.DefaultWrap), b.cfg.MaxMessageLen)[0]
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, announceKeyboard())
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(edit); err != nil {
		// Telegram rejects an edit that leaves the message unchanged.
		b.log.Debug("edit announcements", "chat_id", cb.Message.Chat.ID, "error", err)
	}
	b.answerCallback(cb.ID, "Обновил")
}

func (b *Bot) expandAnnouncements(ctx context.Context, chatID int64) {
	records, err := b.currentAnnouncements(ctx)
	if err != nil {
		b.log.Warn("fetch announcements", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, "⚠ Не удалось получить анонсы, попробуйте позже.")
		return
	}
	if len(records) == 0 {
		b.reply(ctx, chatID, noAnnouncements)
		return
	}
	b.reply(ctx, chatID, announce.Format(records, 0))
}
