package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/logging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	service  *application.Service
	chats    *Chats
	i18n     domain.I18nPort
	cards    cards
	http     *http.Client
	log      *zap.Logger
	commands map[string]CommandHandler
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ domain.BotPort = (*Bot)(nil)

// NewAPI connects to the Bot API and routes its logging through logger.
func NewAPI(token string, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tgbotapi.SetLogger(logging.NewPrintfAdapter(logger.Named("tgbotapi"))); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return api, nil
}

func NewBot(api *tgbotapi.BotAPI, service *application.Service, chats *Chats, i18n domain.I18nPort, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}

	bot := &Bot{
		api:     api,
		service: service,
		chats:   chats,
		i18n:    i18n,
		cards:   cards{i18n: i18n},
		http:    &http.Client{Timeout: downloadTimeout},
		log:     logger.Named("telegram"),
	}

	// Register commands
	bot.registerCommands()

	// Post finished analyses to the chat
	service.OnSession(bot.watchAnalysis)

	return bot
}

func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.log.Info("authorized", zap.String("account", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.api.StopReceivingUpdates()
	b.wg.Wait()
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID := getChatID(update)
	if chatID == 0 {
		return
	}

	lang := b.service.GetUserLanguage(chatKey(chatID))

	// Handle commands
	if update.Message != nil && update.Message.IsCommand() {
		b.handleCommand(ctx, update.Message, lang)
		return
	}

	// Handle voice messages
	if update.Message != nil && update.Message.Voice != nil {
		b.handleVoice(ctx, update.Message, lang)
		return
	}

	// Handle callback queries (button presses)
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery, lang)
		return
	}

	// Handle text messages (verse number input)
	if update.Message != nil && update.Message.Text != "" {
		b.handleText(update.Message, lang)
		return
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	handler, exists := b.commands[msg.Command()]
	if !exists {
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "error.unknown_command"))
		return
	}

	handler(ctx, msg, lang)
}

func (b *Bot) session(chatID int64) *application.Session {
	return b.service.Session(chatKey(chatID))
}

// watchAnalysis sends the verse card to the chat whenever an analysis of
// the chat's session completes.
func (b *Bot) watchAnalysis(userID string, sess *application.Session) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	w := &analysisWatch{}
	sess.OnChange(func(st application.State) {
		if w.finished(st) {
			b.sendCard(chatID, st)
		}
	})
}

// analysisWatch detects the transition out of analyzing with a result.
type analysisWatch struct {
	mu        sync.Mutex
	analyzing bool
}

func (w *analysisWatch) finished(st application.State) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	was := w.analyzing
	w.analyzing = st.IsAnalyzing
	return was && !st.IsAnalyzing && st.Analysis != nil
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, lang domain.Language) {
	msg := callback.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID
	action, arg := parseCallback(callback.Data)

	switch action {
	case "noop":
		b.answerCallback(callback.ID, "")

	case "lang":
		newLang, ok := domain.ParseLanguage(arg)
		if !ok {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.answerCallback(callback.ID, "")
		b.session(chatID)
		b.service.SetUserLanguage(chatKey(chatID), newLang)
		b.sendMessage(chatID, b.i18n.Get(newLang, "language.changed"))
		b.editMessageWithKeyboard(msg, b.i18n.Get(newLang, "surah.select"), b.cards.surahKeyboard(newLang, b.service.Surahs(), 0))

	case "spage":
		page, _ := strconv.Atoi(arg)
		b.answerCallback(callback.ID, "")
		b.editMessageWithKeyboard(msg, b.i18n.Get(lang, "surah.select"), b.cards.surahKeyboard(lang, b.service.Surahs(), page))

	case "surah", "juz":
		n, err := strconv.Atoi(arg)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.answerCallback(callback.ID, "")
		sel := domain.SurahSelection(n)
		if action == "juz" {
			sel = domain.JuzSelection(n)
		}
		b.selectAndShow(ctx, msg, sel, lang)

	case "nav":
		b.answerCallback(callback.ID, "")
		sess := b.session(chatID)
		if arg == "prev" {
			sess.Prev()
		} else {
			sess.Next()
		}
		b.showCard(msg, sess.Snapshot())

	case "rec":
		sess := b.session(chatID)
		var err error
		if arg == "stop" {
			err = sess.StopRecording(ctx)
		} else {
			err = sess.StartRecording(ctx)
		}
		if !b.reportError(callback.ID, lang, err) {
			return
		}
		b.showCard(msg, sess.Snapshot())

	case "ref":
		i, err := strconv.Atoi(arg)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		_, err = b.session(chatID).ToggleReference(ctx, i)
		b.reportError(callback.ID, lang, err)

	case "own":
		_, err := b.session(chatID).ToggleOwn(ctx)
		b.reportError(callback.ID, lang, err)

	case "tpick", "rpick":
		b.answerCallback(callback.ID, "")
		st := b.session(chatID).Snapshot()
		editions := b.service.Editions()
		if action == "tpick" {
			b.editMessageWithKeyboard(msg, b.i18n.Get(lang, "translation.select"),
				b.cards.editionKeyboard(lang, "tr", editions.Translations, st.Translation.ID, st.Verses.Len() > 0))
		} else {
			b.editMessageWithKeyboard(msg, b.i18n.Get(lang, "reciter.select"),
				b.cards.editionKeyboard(lang, "rc", editions.Reciters, st.Reciter.ID, st.Verses.Len() > 0))
		}

	case "tr", "rc":
		sess := b.session(chatID)
		var err error
		if action == "tr" {
			err = sess.SetTranslation(ctx, arg)
		} else {
			err = sess.SetReciter(ctx, arg)
		}
		if !b.reportError(callback.ID, lang, err) {
			return
		}
		st := sess.Snapshot()
		if st.Verses.Len() == 0 {
			key, name := "translation.changed", st.Translation.Name
			if action == "rc" {
				key, name = "reciter.changed", st.Reciter.Name
			}
			b.editMessage(msg, b.i18n.Get(lang, key, name))
			return
		}
		b.showCard(msg, st)

	case "card":
		b.answerCallback(callback.ID, "")
		b.showCard(msg, b.session(chatID).Snapshot())

	default:
		b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
	}
}

// reportError answers the callback, as an alert when err is worth showing.
// It reports whether the action succeeded.
func (b *Bot) reportError(callbackID string, lang domain.Language, err error) bool {
	if err == nil {
		b.answerCallback(callbackID, "")
		return true
	}
	key := application.MessageKey(err)
	if key == "" {
		b.answerCallback(callbackID, "")
		return false
	}
	if key == "error.generic" {
		b.log.Error("callback failed", zap.Error(err))
	}
	b.answerCallbackAlert(callbackID, b.i18n.Get(lang, key))
	return false
}

func (b *Bot) selectAndShow(ctx context.Context, msg *tgbotapi.Message, sel domain.Selection, lang domain.Language) {
	sess := b.session(msg.Chat.ID)
	b.editMessage(msg, b.i18n.Get(lang, "verse.loading"))

	err := sess.Select(ctx, sel)
	switch {
	case err == nil:
		b.showCard(msg, sess.Snapshot())
	case application.MessageKey(err) == "":
		// a newer selection owns the message now
	default:
		b.log.Warn("select failed", zap.Stringer("selection", sel), zap.Error(err))
		text := b.i18n.Get(lang, "verse.load_failed")
		if sel.Scope == domain.ScopeJuz {
			b.editMessageWithKeyboard(msg, text, b.cards.juzKeyboard(lang))
		} else {
			b.editMessageWithKeyboard(msg, text, b.cards.surahKeyboard(lang, b.service.Surahs(), (sel.Number-1)/surahsPerPage))
		}
	}
}

func (b *Bot) handleText(msg *tgbotapi.Message, lang domain.Language) {
	chatID := msg.Chat.ID

	n, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil {
		b.sendMessage(chatID, b.i18n.Get(lang, "help.message"))
		return
	}

	sess := b.session(chatID)
	st := sess.Snapshot()
	if st.Verses.Len() == 0 {
		b.sendMessage(chatID, b.i18n.Get(lang, "verse.empty"))
		return
	}
	if n < 1 || n > st.Verses.Len() {
		b.sendMessage(chatID, b.i18n.Get(lang, "error.invalid_input"))
		return
	}

	sess.Jump(n - 1)
	b.sendCard(chatID, sess.Snapshot())
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	chatID := msg.Chat.ID

	st := b.session(chatID).Snapshot()
	inbox, ok := b.chats.inbox(chatID)
	if !ok || !st.IsRecording {
		b.sendMessage(chatID, b.i18n.Get(lang, "error.unexpected_voice"))
		return
	}

	data, err := b.fetchVoice(ctx, msg.Voice.FileID)
	if err != nil {
		b.log.Error("fetch voice message", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, b.i18n.Get(lang, "error.generic"))
		return
	}

	n, err := inbox.Deliver(data)
	if err != nil {
		key := application.MessageKey(err)
		if key == "error.not_recording" {
			key = "error.unexpected_voice"
		}
		b.sendMessage(chatID, b.i18n.Get(lang, key))
		return
	}

	b.sendMessage(chatID, b.i18n.Get(lang, "record.chunk", n))
}

func (b *Bot) showCard(msg *tgbotapi.Message, st application.State) {
	if st.Verses.Len() == 0 {
		b.editMessage(msg, b.cards.verseCard(st))
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, b.cards.verseCard(st), b.cards.verseKeyboard(st))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		b.log.Debug("edit card", zap.Error(err))
	}
}

func (b *Bot) sendCard(chatID int64, st application.State) {
	msg := tgbotapi.NewMessage(chatID, b.cards.verseCard(st))
	msg.ParseMode = tgbotapi.ModeHTML
	if st.Verses.Len() > 0 {
		msg.ReplyMarkup = b.cards.verseKeyboard(st)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send card", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) editMessage(msg *tgbotapi.Message, text string) {
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Debug("edit message", zap.Error(err))
	}
}

func (b *Bot) editMessageWithKeyboard(msg *tgbotapi.Message, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, text, keyboard)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Debug("edit message", zap.Error(err))
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Debug("answer callback", zap.Error(err))
	}
}

func (b *Bot) answerCallbackAlert(callbackID, text string) {
	callback := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.log.Debug("answer callback", zap.Error(err))
	}
}

func getChatID(update tgbotapi.Update) int64 {
	if update.Message != nil && update.Message.Chat != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
