package telegram

import (
	"context"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type CommandHandler func(ctx context.Context, msg *tgbotapi.Message, lang domain.Language)

// registerCommands registers all bot commands
func (b *Bot) registerCommands() {
	b.commands = map[string]CommandHandler{
		"start":       b.commandStart,
		"help":        b.commandHelp,
		"language":    b.commandLanguage,
		"surah":       b.commandSurah,
		"juz":         b.commandJuz,
		"verse":       b.commandVerse,
		"translation": b.commandTranslation,
		"reciter":     b.commandReciter,
	}

	// Set bot commands for Telegram UI
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Start practising"},
		{Command: "surah", Description: "Choose a surah"},
		{Command: "juz", Description: "Choose a juz"},
		{Command: "verse", Description: "Show the current verse"},
		{Command: "translation", Description: "Choose a translation"},
		{Command: "reciter", Description: "Choose a reciter"},
		{Command: "language", Description: "Change language"},
		{Command: "help", Description: "Show help"},
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.log.Warn("set bot commands", zap.Error(err))
	}
}

func (b *Bot) commandStart(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.session(msg.Chat.ID)
	b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "start.welcome"))
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "surah.select"), b.cards.surahKeyboard(lang, b.service.Surahs(), 0))
}

func (b *Bot) commandHelp(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "help.message"))
}

func (b *Bot) commandLanguage(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "language.select"), b.cards.languageKeyboard())
}

func (b *Bot) commandSurah(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "surah.select"), b.cards.surahKeyboard(lang, b.service.Surahs(), 0))
}

func (b *Bot) commandJuz(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "juz.select"), b.cards.juzKeyboard(lang))
}

func (b *Bot) commandVerse(_ context.Context, msg *tgbotapi.Message, _ domain.Language) {
	b.sendCard(msg.Chat.ID, b.session(msg.Chat.ID).Snapshot())
}

func (b *Bot) commandTranslation(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	st := b.session(msg.Chat.ID).Snapshot()
	keyboard := b.cards.editionKeyboard(lang, "tr", b.service.Editions().Translations, st.Translation.ID, false)
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "translation.select"), keyboard)
}

func (b *Bot) commandReciter(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	st := b.session(msg.Chat.ID).Snapshot()
	keyboard := b.cards.editionKeyboard(lang, "rc", b.service.Editions().Reciters, st.Reciter.ID, false)
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "reciter.select"), keyboard)
}
