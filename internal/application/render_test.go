package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVerse_PlainWithoutJudgments(t *testing.T) {
	ayah := domain.Ayah{Text: "a b  c"}

	tokens, guidance := RenderVerse(ayah, nil)
	assert.Equal(t, []Token{{Text: "a"}, {Text: "b"}, {Text: "c"}}, tokens)
	assert.Nil(t, guidance)

	tokens, _ = RenderVerse(ayah, domain.FallbackResult("sorry"))
	assert.Len(t, tokens, 3)
	assert.Equal(t, domain.StatusNone, tokens[0].Status)
}

func TestRenderVerse_PadsShortJudgments(t *testing.T) {
	ayah := domain.Ayah{Text: "a b c d e"}
	result := &domain.AnalysisResult{Words: []domain.WordJudgment{
		{Word: "a", Status: domain.StatusCorrect},
		{Word: "b", Status: domain.StatusIncorrect, PronunciationGuide: "bee"},
		{Word: "", Status: domain.StatusMissing},
	}}

	tokens, guidance := RenderVerse(ayah, result)
	assert.Equal(t, []Token{
		{Text: "a", Status: domain.StatusCorrect},
		{Text: "b", Status: domain.StatusIncorrect},
		{Text: "c", Status: domain.StatusMissing},
		{Text: "d"},
		{Text: "e"},
	}, tokens)

	require.Len(t, guidance, 1)
	assert.Equal(t, "bee", guidance[0].PronunciationGuide)
}

func TestRenderVerse_LongJudgments(t *testing.T) {
	ayah := domain.Ayah{Text: "a b"}
	result := &domain.AnalysisResult{Words: []domain.WordJudgment{
		{Word: "a", Status: domain.StatusCorrect},
		{Word: "x", Status: domain.StatusIncorrect},
		{Word: "b", Status: domain.StatusIncorrect},
	}}

	tokens, guidance := RenderVerse(ayah, result)
	assert.Len(t, tokens, 3)
	require.Len(t, guidance, 2)
	assert.Equal(t, "x", guidance[0].Word)
	assert.Equal(t, "b", guidance[1].Word)
}

func TestState_View(t *testing.T) {
	set := &domain.VerseSet{
		Selection:    domain.SurahSelection(9),
		Verses:       []domain.Ayah{{Number: 1236, Text: "x y"}, {Number: 1237, Text: "z"}},
		Translations: []string{"t1", "t2"},
		Audio:        []domain.AudioRef{{URL: "u1"}, {URL: "u2"}},
	}
	st := State{Verses: set, Cursor: 1}

	view, ok := st.View()
	require.True(t, ok)
	assert.Equal(t, 2, view.Position)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "t2", view.Translation)
	assert.Equal(t, "", view.Transliteration)
	assert.Equal(t, "u2", view.AudioURL)
	assert.False(t, view.Bismillah)
	assert.False(t, view.Judged)

	st.Cursor = 0
	view, _ = st.View()
	assert.False(t, view.Bismillah, "at-tawbah has no bismillah")

	set.Selection = domain.SurahSelection(1)
	view, _ = st.View()
	assert.True(t, view.Bismillah)

	set.Selection = domain.JuzSelection(1)
	view, _ = st.View()
	assert.False(t, view.Bismillah)

	_, ok = State{}.View()
	assert.False(t, ok)
}

func TestMessageKey(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.ErrStale, ""},
		{fmt.Errorf("%w: denied", domain.ErrDeviceUnavailable), "error.device_unavailable"},
		{domain.ErrNoRecording, "error.no_recording"},
		{domain.ErrNoVerse, "error.no_verse"},
		{domain.ErrNoAudio, "error.no_verse"},
		{domain.ErrAlreadyCapturing, "error.already_recording"},
		{domain.ErrNotCapturing, "error.not_recording"},
		{domain.ErrUnknownEdition, "error.unknown_edition"},
		{domain.ErrInvalidSelection, "error.invalid_input"},
		{errors.New("boom"), "error.generic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MessageKey(tt.err), "%v", tt.err)
	}
}
