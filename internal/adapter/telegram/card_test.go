package telegram

import (
	"testing"

	"github.com/escalopa/quran-recite-feedback/internal/adapter/i18n"
	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCards(t *testing.T) cards {
	t.Helper()
	tr, err := i18n.NewI18n("")
	require.NoError(t, err)
	return cards{i18n: tr}
}

func testState() application.State {
	set := &domain.VerseSet{
		Selection: domain.SurahSelection(1),
		Verses: []domain.Ayah{
			{Number: 1, Text: "بِسْمِ اللَّهِ الرَّحْمَٰنِ", NumberInSurah: 1, SurahNumber: 1},
			{Number: 2, Text: "الْحَمْدُ لِلَّهِ رَبِّ", NumberInSurah: 2, SurahNumber: 1},
		},
		Translations:     []string{"In the name of Allah", "All praise <is> due to Allah"},
		Transliterations: []string{"Bismi Allahi", "Alhamdu lillahi"},
		Audio:            []domain.AudioRef{{URL: "https://cdn.test/1.mp3"}, {URL: "https://cdn.test/2.mp3"}},
	}
	return application.State{
		Selection:   set.Selection,
		Verses:      set,
		Translation: domain.Edition{ID: "en.sahih", Name: "English"},
		Reciter:     domain.Edition{ID: "ar.alafasy", Name: "Alafasy"},
		Language:    domain.LangEnglish,
	}
}

func TestCards_VerseCard(t *testing.T) {
	c := newTestCards(t)
	st := testState()

	text := c.verseCard(st)
	assert.Contains(t, text, application.Bismillah)
	assert.Contains(t, text, "<b>Al-Fatiha 1:1</b>")
	assert.Contains(t, text, "Verse 1 of 2")
	assert.Contains(t, text, "<i>Bismi Allahi</i>")
	assert.Contains(t, text, "In the name of Allah")
	assert.NotContains(t, text, "<u>")

	st.Cursor = 1
	text = c.verseCard(st)
	assert.NotContains(t, text, application.Bismillah)
	assert.Contains(t, text, "All praise &lt;is&gt; due to Allah")
}

func TestCards_VerseCardWithAnalysis(t *testing.T) {
	c := newTestCards(t)
	st := testState()
	st.Cursor = 1
	st.Analysis = &domain.AnalysisResult{
		Transcription: "الحمد لله",
		Score:         60,
		Words: []domain.WordJudgment{
			{Word: "الْحَمْدُ", Status: domain.StatusCorrect},
			{Word: "لِلَّهِ", Status: domain.StatusIncorrect, PronunciationGuide: "Heavy lam"},
			{Word: "رَبِّ", Status: domain.StatusMissing},
		},
		Errors: []string{"Skipped a word"},
	}

	text := c.verseCard(st)
	assert.Contains(t, text, "<b>الْحَمْدُ</b> <u>لِلَّهِ</u> <s>رَبِّ</s>")
	assert.Contains(t, text, "<b>correct</b> · <u>incorrect</u> · <s>missing</s>")
	assert.Contains(t, text, "❌ <b>Needs improvement</b>")
	assert.Contains(t, text, "Score: 60/100")
	assert.Contains(t, text, "Heard: الحمد لله")
	assert.Contains(t, text, "• <u>لِلَّهِ</u>: Heavy lam")
	assert.Contains(t, text, "• Skipped a word")
}

func TestCards_VerseCardStates(t *testing.T) {
	c := newTestCards(t)

	assert.Equal(t, "Nothing selected yet. Use /surah or /juz.", c.verseCard(application.State{Language: domain.LangEnglish}))
	assert.Equal(t, "Loading...", c.verseCard(application.State{Language: domain.LangEnglish, Loading: true}))

	st := testState()
	st.IsRecording = true
	assert.Contains(t, c.verseCard(st), "🎙 Recording...")

	st.IsRecording = false
	st.IsAnalyzing = true
	assert.Contains(t, c.verseCard(st), "⏳ Analyzing your recitation...")

	st.IsAnalyzing = false
	st.Analysis = domain.FallbackResult("Sorry")
	text := c.verseCard(st)
	assert.Contains(t, text, "⚠️ Sorry")
	assert.NotContains(t, text, "Score")
}

func buttonData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, *btn.CallbackData)
		}
	}
	return out
}

func TestCards_VerseKeyboard(t *testing.T) {
	c := newTestCards(t)
	st := testState()

	data := buttonData(c.verseKeyboard(st))
	assert.Equal(t, []string{"noop", "nav:next", "rec:start", "ref:0", "tpick", "rpick"}, data)

	st.Cursor = 1
	st.Recording = &domain.AudioPayload{ID: "r", Data: []byte("x")}
	data = buttonData(c.verseKeyboard(st))
	assert.Equal(t, []string{"nav:prev", "noop", "rec:start", "ref:1", "own", "tpick", "rpick"}, data)

	st.IsRecording = true
	data = buttonData(c.verseKeyboard(st))
	assert.Contains(t, data, "rec:stop")
	assert.NotContains(t, data, "own")
}

func TestCards_SurahKeyboard(t *testing.T) {
	c := newTestCards(t)

	kb := c.surahKeyboard(domain.LangEnglish, nil, 0)
	data := buttonData(kb)
	assert.Equal(t, "surah:1", data[0])
	assert.Equal(t, "surah:10", data[9])
	assert.Equal(t, []string{"noop", "spage:1"}, data[10:])
	assert.Equal(t, "1. Al-Fatiha", kb.InlineKeyboard[0][0].Text)
	assert.Len(t, kb.InlineKeyboard[0], 2)

	data = buttonData(c.surahKeyboard(domain.LangEnglish, nil, 99))
	assert.Equal(t, []string{"surah:111", "surah:112", "surah:113", "surah:114", "spage:10", "noop"}, data)
}

func TestCards_JuzAndEditionKeyboards(t *testing.T) {
	c := newTestCards(t)

	kb := c.juzKeyboard(domain.LangEnglish)
	assert.Len(t, kb.InlineKeyboard, 6)
	assert.Equal(t, "juz:30", *kb.InlineKeyboard[5][4].CallbackData)

	editions := domain.DefaultEditions().Reciters
	kb = c.editionKeyboard(domain.LangEnglish, "rc", editions, "ar.abdulsamad", true)
	require.Len(t, kb.InlineKeyboard, len(editions)+1)
	assert.Equal(t, "✓ "+editions[1].Name, kb.InlineKeyboard[1][0].Text)
	assert.Equal(t, "rc:ar.alafasy", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "card", *kb.InlineKeyboard[len(editions)][0].CallbackData)

	assert.Len(t, buttonData(c.languageKeyboard()), len(domain.Languages))
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data, action, arg string
	}{
		{"surah:12", "surah", "12"},
		{"tr:en.sahih", "tr", "en.sahih"},
		{"own", "own", ""},
		{"x:y:z", "x", "y:z"},
	}
	for _, tt := range tests {
		action, arg := parseCallback(tt.data)
		assert.Equal(t, tt.action, action)
		assert.Equal(t, tt.arg, arg)
	}
}
