package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/adapter/i18n"
	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	surahsPerPage = 10
	juzPerRow     = 5
)

// cards formats session state into Telegram messages and keyboards
type cards struct {
	i18n domain.I18nPort
}

// verseCard formats the cursor verse, its facets and the latest analysis as HTML.
func (c cards) verseCard(st application.State) string {
	lang := st.Language

	view, ok := st.View()
	if !ok {
		if st.Loading {
			return c.i18n.Get(lang, "verse.loading")
		}
		return c.i18n.Get(lang, "verse.empty")
	}

	var sb strings.Builder

	if view.Bismillah {
		sb.WriteString(application.Bismillah)
		sb.WriteString("\n\n")
	}

	ref := c.i18n.Get(lang, "verse.reference",
		c.i18n.GetSurahName(lang, view.Ayah.SurahNumber), view.Ayah.SurahNumber, view.Ayah.NumberInSurah)
	sb.WriteString(fmt.Sprintf("<b>%s</b>", html.EscapeString(ref)))
	if view.Ayah.Sajda {
		sb.WriteString(" ۩")
	}
	sb.WriteString("\n")
	sb.WriteString(html.EscapeString(c.i18n.Get(lang, "verse.position", view.Position, view.Total)))
	sb.WriteString("\n\n")

	words := make([]string, len(view.Tokens))
	for i, t := range view.Tokens {
		words[i] = formatToken(t)
	}
	sb.WriteString(strings.Join(words, " "))
	sb.WriteString("\n")

	if view.Judged {
		sb.WriteString(c.legend(lang))
		sb.WriteString("\n")
	}
	if view.Transliteration != "" {
		sb.WriteString(fmt.Sprintf("\n<i>%s</i>\n", html.EscapeString(view.Transliteration)))
	}
	if view.Translation != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(view.Translation))
		sb.WriteString("\n")
	}

	switch {
	case st.IsRecording:
		sb.WriteString("\n🎙 ")
		sb.WriteString(html.EscapeString(c.i18n.Get(lang, "record.recording")))
	case st.IsAnalyzing:
		sb.WriteString("\n⏳ ")
		sb.WriteString(html.EscapeString(c.i18n.Get(lang, "record.analyzing")))
	case view.Analysis != nil:
		sb.WriteString("\n")
		sb.WriteString(c.analysis(lang, view))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func formatToken(t application.Token) string {
	w := html.EscapeString(t.Text)
	switch t.Status {
	case domain.StatusCorrect:
		return "<b>" + w + "</b>"
	case domain.StatusIncorrect:
		return "<u>" + w + "</u>"
	case domain.StatusMissing:
		return "<s>" + w + "</s>"
	default:
		return w
	}
}

func (c cards) legend(lang domain.Language) string {
	return fmt.Sprintf("<b>%s</b> · <u>%s</u> · <s>%s</s>",
		html.EscapeString(c.i18n.Get(lang, "legend.correct")),
		html.EscapeString(c.i18n.Get(lang, "legend.incorrect")),
		html.EscapeString(c.i18n.Get(lang, "legend.missing")),
	)
}

func (c cards) analysis(lang domain.Language, view application.VerseView) string {
	res := view.Analysis
	var sb strings.Builder

	if res.Fallback {
		sb.WriteString("⚠️ ")
		sb.WriteString(html.EscapeString(res.Feedback))
		return sb.String()
	}

	verdict, mark := "analysis.incorrect", "❌"
	if res.IsCorrect {
		verdict, mark = "analysis.correct", "✅"
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", mark, html.EscapeString(c.i18n.Get(lang, verdict))))
	sb.WriteString(html.EscapeString(c.i18n.Get(lang, "analysis.score", res.Score)))
	sb.WriteString("\n")

	if res.Transcription != "" {
		sb.WriteString(html.EscapeString(c.i18n.Get(lang, "analysis.transcription", res.Transcription)))
		sb.WriteString("\n")
	}
	if res.Feedback != "" {
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(res.Feedback))
		sb.WriteString("\n")
	}

	if len(view.Guidance) > 0 {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", html.EscapeString(c.i18n.Get(lang, "analysis.guidance"))))
		for _, g := range view.Guidance {
			sb.WriteString(fmt.Sprintf("• <u>%s</u>: %s\n", html.EscapeString(g.Word), html.EscapeString(g.PronunciationGuide)))
		}
	}

	if len(res.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", html.EscapeString(c.i18n.Get(lang, "analysis.errors"))))
		for _, e := range res.Errors {
			sb.WriteString("• ")
			sb.WriteString(html.EscapeString(e))
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// verseKeyboard builds the controls under a verse card.
func (c cards) verseKeyboard(st application.State) tgbotapi.InlineKeyboardMarkup {
	lang := st.Language
	total := st.Verses.Len()

	var rows [][]tgbotapi.InlineKeyboardButton

	var nav []tgbotapi.InlineKeyboardButton
	if st.Cursor > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ "+c.i18n.Get(lang, "nav.prev"), "nav:prev"))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", st.Cursor+1, total), "noop"))
	if st.Cursor < total-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(c.i18n.Get(lang, "nav.next")+" ➡️", "nav:next"))
	}
	rows = append(rows, nav)

	if st.IsRecording {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏹ "+c.i18n.Get(lang, "record.stop"), "rec:stop"),
		))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎙 "+c.i18n.Get(lang, "record.start"), "rec:start"),
		))
	}

	var play []tgbotapi.InlineKeyboardButton
	if st.Verses.AudioURL(st.Cursor) != "" {
		play = append(play, tgbotapi.NewInlineKeyboardButtonData("🔊 "+c.i18n.Get(lang, "play.reference"), fmt.Sprintf("ref:%d", st.Cursor)))
	}
	if st.CanPlayOwn() {
		play = append(play, tgbotapi.NewInlineKeyboardButtonData("▶️ "+c.i18n.Get(lang, "play.own"), "own"))
	}
	if len(play) > 0 {
		rows = append(rows, play)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🌐 "+st.Translation.Name, "tpick"),
		tgbotapi.NewInlineKeyboardButtonData("🎧 "+st.Reciter.Name, "rpick"),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (c cards) surahKeyboard(lang domain.Language, surahs []domain.Surah, page int) tgbotapi.InlineKeyboardMarkup {
	if len(surahs) == 0 {
		surahs = placeholderSurahs()
	}

	totalPages := (len(surahs) + surahsPerPage - 1) / surahsPerPage

	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}

	start := page * surahsPerPage
	end := min(start+surahsPerPage, len(surahs))

	var rows [][]tgbotapi.InlineKeyboardButton

	// 2 per row
	for i := start; i < end; i += 2 {
		row := []tgbotapi.InlineKeyboardButton{c.surahButton(lang, surahs[i].Number)}
		if i+1 < end {
			row = append(row, c.surahButton(lang, surahs[i+1].Number))
		}
		rows = append(rows, row)
	}

	if totalPages > 1 {
		var navRow []tgbotapi.InlineKeyboardButton
		if page > 0 {
			navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData("⬅️ "+c.i18n.Get(lang, "nav.prev"), fmt.Sprintf("spage:%d", page-1)))
		}
		navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d/%d", page+1, totalPages),
			"noop",
		))
		if page < totalPages-1 {
			navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(c.i18n.Get(lang, "nav.next")+" ➡️", fmt.Sprintf("spage:%d", page+1)))
		}
		rows = append(rows, navRow)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (c cards) surahButton(lang domain.Language, n int) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(
		i18n.FormatSurahButton(c.i18n, lang, n),
		fmt.Sprintf("surah:%d", n),
	)
}

// placeholderSurahs numbers every surah when the chapter list failed to load.
func placeholderSurahs() []domain.Surah {
	surahs := make([]domain.Surah, domain.SurahCount)
	for i := range surahs {
		surahs[i].Number = i + 1
	}
	return surahs
}

func (c cards) juzKeyboard(lang domain.Language) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for n := 1; n <= domain.JuzCount; n++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d", n), fmt.Sprintf("juz:%d", n)))
		if len(row) == juzPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (c cards) languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 English", "lang:en"),
			tgbotapi.NewInlineKeyboardButtonData("🇸🇦 العربية", "lang:ar"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺 Русский", "lang:ru"),
			tgbotapi.NewInlineKeyboardButtonData("🇧🇩 বাংলা", "lang:bn"),
		),
	)
}

// editionKeyboard lists editions one per row, marking the current one.
func (c cards) editionKeyboard(lang domain.Language, prefix string, editions []domain.Edition, current string, hasCard bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range editions {
		label := e.Name
		if e.ID == current {
			label = "✓ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefix+":"+e.ID),
		))
	}
	if hasCard {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ "+c.i18n.Get(lang, "nav.back"), "card"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseCallback splits callback data into its action and argument.
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}
