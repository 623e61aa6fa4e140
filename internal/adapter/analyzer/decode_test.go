package analyzer

import (
	"testing"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult(t *testing.T) {
	t.Parallel()

	text := "```json\n" + `{
		"transcription": "الحمد لله",
		"isCorrect": false,
		"wordAnalysis": [
			{"word": "الحمد", "status": "correct", "feedback": "ok"},
			{"word": "لله", "status": "Incorrect", "feedback": "stretch", "pronunciationGuide": "lam"}
		],
		"errors": ["madd"],
		"score": 72.6,
		"feedback": "good"
	}` + "\n```"

	r, err := decodeResult(text)
	require.NoError(t, err)

	assert.Equal(t, "الحمد لله", r.Transcription)
	assert.False(t, r.IsCorrect)
	assert.Equal(t, 73, r.Score)
	assert.Equal(t, []string{"madd"}, r.Errors)
	require.Len(t, r.Words, 2)
	assert.Equal(t, domain.StatusCorrect, r.Words[0].Status)
	assert.Equal(t, domain.StatusIncorrect, r.Words[1].Status)
	assert.Equal(t, "lam", r.Words[1].PronunciationGuide)
	assert.Empty(t, r.Words[0].PronunciationGuide)
}

func TestDecodeResult_DerivesIsCorrect(t *testing.T) {
	t.Parallel()

	r, err := decodeResult(`{"wordAnalysis":[{"word":"a","status":"correct"},{"word":"b","status":"correct"}],"score":"90"}`)
	require.NoError(t, err)
	assert.True(t, r.IsCorrect)
	assert.Equal(t, 90, r.Score)

	r, err = decodeResult(`{"wordAnalysis":[{"word":"a","status":"missing"}]}`)
	require.NoError(t, err)
	assert.False(t, r.IsCorrect)
	assert.Equal(t, domain.StatusMissing, r.Words[0].Status)

	r, err = decodeResult(`{"score": null}`)
	require.NoError(t, err)
	assert.False(t, r.IsCorrect)
	assert.Zero(t, r.Score)
}

func TestDecodeResult_Malformed(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"the model refused",
		`{"score": "high"}`,
		`{"wordAnalysis": "none"}`,
		`{"transcription": "x"`,
	} {
		_, err := decodeResult(text)
		assert.Error(t, err, text)
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Bengali", languageName(domain.LangBengali))
	assert.Equal(t, "Arabic", languageName(domain.LangArabic))
	assert.Equal(t, "Russian", languageName(domain.LangRussian))
	assert.Equal(t, "English", languageName(""))
}

func TestDecodeResult_MalformedIsTyped(t *testing.T) {
	t.Parallel()

	_, err := decodeResult(`{"score": [1]}`)
	assert.ErrorIs(t, err, domain.ErrMalformedResult)

	_, err = decodeResult("no braces")
	assert.ErrorIs(t, err, domain.ErrMalformedResult)
}
