package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.contents = contents
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.text, genai.RoleModel)},
		},
	}, nil
}

func testRequest() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		Audio: domain.AudioPayload{
			ID:       "01J0000000000000000000000",
			Data:     []byte("OggS-data"),
			MimeType: "audio/ogg",
		},
		VerseText: "قُلْ هُوَ اللَّهُ أَحَدٌ",
		Language:  domain.LangBengali,
	}
}

func TestGemini_Analyze(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: `{"transcription":"qul","isCorrect":true,"score":95,"feedback":"ভালো","wordAnalysis":[{"word":"قُلْ","status":"correct"}]}`}
	g := newGemini(gen, "", nil)

	r, err := g.Analyze(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, DefaultGeminiModel, gen.model)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	assert.True(t, r.IsCorrect)
	assert.Equal(t, 95, r.Score)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "قُلْ هُوَ اللَّهُ أَحَدٌ")
	assert.Contains(t, parts[0].Text, "Bengali")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "audio/ogg", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("OggS-data"), parts[1].InlineData.Data)
}

func TestGemini_Errors(t *testing.T) {
	t.Parallel()

	g := newGemini(&fakeGenerator{err: errors.New("quota exceeded")}, "m", nil)
	_, err := g.Analyze(context.Background(), testRequest())
	assert.ErrorContains(t, err, "quota exceeded")

	g = newGemini(&fakeGenerator{text: "I cannot help with that"}, "m", nil)
	_, err = g.Analyze(context.Background(), testRequest())
	assert.ErrorIs(t, err, errNoJSON)
}
