package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rda_bot/internal/announce"
	"rda_bot/internal/filter"
	"rda_bot/internal/message"
	"rda_bot/internal/model"
)

const (
	replyStoreError = "⚠ Не удалось сохранить, попробуйте позже."
	noAnnouncements = "Сейчас анонсов нет."
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	sub := model.Subscriber{ChatID: msg.Chat.ID}
	if msg.From != nil {
		sub.FirstName = msg.From.FirstName
		sub.Username = msg.From.UserName
	}
	if err := b.store.UpsertSubscriber(ctx, sub); err != nil {
		b.log.Error("upsert subscriber", "chat_id", sub.ChatID, "error", err)
	}
	b.replyWithMarkup(ctx, sub.ChatID,
		"👋  Бот рассылает анонсы и live-споты RDA.\nСправка — /help", mainKeyboard())
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	b.reply(ctx, chatID, `/announcements — текущие анонсы
/sub_ann /unsub_ann — подписка/отписка от анонсов
/sub_spots /unsub_spots — подписка/отписка от спотов
/add_rda AD-01 … — добавить RDA-фильтр
/clear_rda — убрать все RDA-фильтры
/set_mode DIGI|CW|SSB|ANY — фильтр по моде
/set_band 14 14.35 | OFF — диапазон МГц
/set_template … — ваш шаблон (reset — вернуть стандартный)
/my_filters — текущие фильтры
/status — состояние бота

Поля шаблона: `+html.EscapeString(placeholderList()))
}

func (b *Bot) handleSubscription(ctx context.Context, chatID int64, kind model.SubscriptionKind, on bool) {
	if err := b.store.SetSubscription(ctx, chatID, kind, on); err != nil {
		b.log.Error("set subscription", "chat_id", chatID, "kind", kind, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	b.log.Info("subscription changed", "chat_id", chatID, "kind", kind, "on", on)
	if on {
		b.reply(ctx, chatID, "✅ Ок.")
		return
	}
	b.reply(ctx, chatID, "❌ Больше не присылаю.")
}

// currentAnnouncements fetches the announcement list and marks every record
// as emitted.
func (b *Bot) currentAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	if b.source == nil {
		return nil, nil
	}
	records, err := b.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	all, _ := b.differ.Diff(records)
	return all, nil
}

func (b *Bot) handleAnnouncements(ctx context.Context, chatID int64) {
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
	b.replyWithMarkup(ctx, chatID, announce.Format(records, announce.DefaultWrap), announceKeyboard())
}

func (b *Bot) handleAddRDA(ctx context.Context, chatID int64, args string) {
	codes := ParseRDACodes(args)
	if len(codes) == 0 {
		b.reply(ctx, chatID, "Передайте коды (пример: /add_rda AD-01 BR-10).")
		return
	}

	known, unknown := b.catalogue.Split(codes)
	if len(unknown) > 0 {
		b.reply(ctx, chatID, "⚠ Неизвестные: "+html.EscapeString(strings.Join(unknown, " ")))
	}
	if len(known) == 0 {
		return
	}

	added, err := b.store.AddRDAFilters(ctx, chatID, known)
	if err != nil {
		b.log.Error("add rda filters", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	if len(added) == 0 {
		b.reply(ctx, chatID, "Уже было.")
		return
	}
	b.reply(ctx, chatID, "🎯 Добавлено: "+strings.Join(added, ", "))
}

func (b *Bot) handleClearRDA(ctx context.Context, chatID int64) {
	if err := b.store.ClearRDAFilters(ctx, chatID); err != nil {
		b.log.Error("clear rda filters", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	b.reply(ctx, chatID, "✅ Все RDA-фильтры удалены.")
}

func (b *Bot) handleMyFilters(ctx context.Context, chatID int64) {
	f, err := filter.Load(ctx, b.store, chatID)
	if err != nil {
		b.log.Error("load filter", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, "⚠ Не удалось прочитать фильтры, попробуйте позже.")
		return
	}
	b.reply(ctx, chatID, FormatFilters(f))
}

func (b *Bot) handleSetMode(ctx context.Context, chatID int64, args string) {
	mode, err := filter.ParseMode(args)
	if err != nil {
		b.reply(ctx, chatID, "Укажите DIGI / CW / SSB / ANY")
		return
	}
	if err := b.store.SetMode(ctx, chatID, mode); err != nil {
		b.log.Error("set mode", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	if mode == "" {
		b.reply(ctx, chatID, "Фильтр моды снят.")
		return
	}
	b.reply(ctx, chatID, "Мода → "+mode)
}

func (b *Bot) handleSetBand(ctx context.Context, chatID int64, args string) {
	low, high, err := filter.ParseBand(args)
	if err != nil {
		b.reply(ctx, chatID, "Пример: /set_band 14 14.35")
		return
	}
	if err := b.store.SetBand(ctx, chatID, low, high); err != nil {
		b.log.Error("set band", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	if low == nil {
		b.reply(ctx, chatID, "Фильтр диапазона снят.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Диапазон %s МГц", formatBand(low, high)))
}

func (b *Bot) handleSetTemplate(ctx context.Context, chatID int64, args string) {
	tmpl, reset, err := ParseTemplateArg(args)
	if err != nil {
		b.reply(ctx, chatID, "Поле шаблона пусто. Пример: /set_template {callsign} {freq} {rda}")
		return
	}
	if !reset {
		if err := message.Validate(tmpl); err != nil {
			b.reply(ctx, chatID, "⚠ Шаблон не принят: "+html.EscapeString(err.Error()))
			return
		}
	}
	if err := b.store.SetTemplate(ctx, chatID, tmpl); err != nil {
		b.log.Error("set template", "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, replyStoreError)
		return
	}
	if reset {
		b.reply(ctx, chatID, "Шаблон сброшен на стандартный.")
		return
	}

	preview, _ := message.Render(tmpl, sampleSpot)
	b.reply(ctx, chatID, "Шаблон сохранён. Пример:\n\n"+preview)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	counts, err := b.store.CountSubscribers(ctx)
	if err != nil {
		b.log.Error("count subscribers", "error", err)
		b.reply(ctx, chatID, "⚠ Не удалось получить статистику.")
		return
	}
	b.reply(ctx, chatID, FormatStatus(Status{
		Announcements: counts[model.KindAnnouncements],
		Spots:         counts[model.KindSpots],
		Tracked:       b.differ.Len(),
		Stream:        b.stream,
		Started:       b.started,
		Catalogue:     b.catalogue.Len(),
	}))
}
