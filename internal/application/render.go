package application

import (
	"errors"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
)

// Bismillah heads every surah except At-Tawbah.
const Bismillah = "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ"

// Token is one displayed word of a verse. Status is StatusNone for words
// shown as plain text.
type Token struct {
	Text   string
	Status domain.WordStatus
}

// VerseView is everything a surface needs to draw the cursor verse.
type VerseView struct {
	Ayah            domain.Ayah
	Position        int
	Total           int
	Translation     string
	Transliteration string
	AudioURL        string
	// Bismillah is set on the first verse of every surah but At-Tawbah.
	Bismillah bool

	Tokens   []Token
	Judged   bool
	Guidance []domain.WordJudgment
	Analysis *domain.AnalysisResult
}

// RenderVerse lays out ayah's words. With per-word judgments the judgment
// sequence replaces the text word for word; a short sequence is padded with
// the remaining verse words as plain text. Guidance lists the incorrect
// words in order.
func RenderVerse(ayah domain.Ayah, result *domain.AnalysisResult) ([]Token, []domain.WordJudgment) {
	words := ayah.Words()

	if !result.HasJudgments() {
		tokens := make([]Token, len(words))
		for i, w := range words {
			tokens[i] = Token{Text: w}
		}
		return tokens, nil
	}

	tokens := make([]Token, 0, max(len(words), len(result.Words)))
	for i, j := range result.Words {
		text := j.Word
		if text == "" && i < len(words) {
			text = words[i]
		}
		tokens = append(tokens, Token{Text: text, Status: j.Status})
	}
	for i := len(result.Words); i < len(words); i++ {
		tokens = append(tokens, Token{Text: words[i]})
	}

	return tokens, result.Incorrect()
}

// View renders the cursor verse of s.
func (s State) View() (VerseView, bool) {
	ayah, ok := s.Verse()
	if !ok {
		return VerseView{}, false
	}

	tokens, guidance := RenderVerse(ayah, s.Analysis)
	return VerseView{
		Ayah:            ayah,
		Position:        s.Cursor + 1,
		Total:           s.Verses.Len(),
		Translation:     s.Verses.Translation(s.Cursor),
		Transliteration: s.Verses.Transliteration(s.Cursor),
		AudioURL:        s.Verses.AudioURL(s.Cursor),
		Bismillah:       s.Cursor == 0 && s.Verses.Selection.ShowsBismillah(),
		Tokens:          tokens,
		Judged:          s.Analysis.HasJudgments(),
		Guidance:        guidance,
		Analysis:        s.Analysis,
	}, true
}

// MessageKey maps an error to the i18n key of the message shown to the
// user. Superseded requests are not reported.
func MessageKey(err error) string {
	switch {
	case err == nil, errors.Is(err, domain.ErrStale):
		return ""
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "error.device_unavailable"
	case errors.Is(err, domain.ErrNoRecording):
		return "error.no_recording"
	case errors.Is(err, domain.ErrNoVerse), errors.Is(err, domain.ErrNoAudio):
		return "error.no_verse"
	case errors.Is(err, domain.ErrAlreadyCapturing):
		return "error.already_recording"
	case errors.Is(err, domain.ErrNotCapturing):
		return "error.not_recording"
	case errors.Is(err, domain.ErrUnknownEdition):
		return "error.unknown_edition"
	case errors.Is(err, domain.ErrInvalidSelection):
		return "error.invalid_input"
	default:
		return "error.generic"
	}
}
