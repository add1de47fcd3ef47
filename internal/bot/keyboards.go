package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Reply keyboard labels.
const (
	btnAnnouncements = "📋 Анонсы"
	btnSubSpots      = "✅ Подписаться на споты"
	btnUnsubSpots    = "❌ Отписаться"
	btnMyFilters     = "🎛 Мои фильтры"
)

// Inline callback data.
const (
	cbRefresh = "refresh"
	cbExpand  = "expand"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAnnouncements)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSubSpots),
			tgbotapi.NewKeyboardButton(btnUnsubSpots),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMyFilters)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func announceKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", cbRefresh)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗺️ Все районы списком", cbExpand)),
	)
}

// commandMenu is registered with Telegram at startup.
var commandMenu = []tgbotapi.BotCommand{
	{Command: "announcements", Description: "Текущие анонсы"},
	{Command: "sub_ann", Description: "Подписаться на анонсы"},
	{Command: "unsub_ann", Description: "Отписаться от анонсов"},
	{Command: "sub_spots", Description: "Подписаться на споты"},
	{Command: "unsub_spots", Description: "Отписаться от спотов"},
	{Command: "add_rda", Description: "Добавить фильтр RDA"},
	{Command: "clear_rda", Description: "Очистить RDA-фильтры"},
	{Command: "my_filters", Description: "Мои фильтры"},
	{Command: "set_mode", Description: "Фильтр по моде"},
	{Command: "set_band", Description: "Фильтр по диапазону"},
	{Command: "set_template", Description: "Шаблон спота"},
	{Command: "status", Description: "Состояние бота"},
}
