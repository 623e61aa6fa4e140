package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

const promptTemplate = `You are an expert Quran recitation (Tajweed) analyzer.
I will provide an audio recording of a user reciting a specific verse.
Target Verse: "%s"

Please analyze the audio and compare it to the target verse.
1. Transcribe what the user said.
2. Identify any missing words, mispronounced words, or Tajweed errors.
3. Provide a score from 0-100.
4. Give constructive feedback in %s.

Return the response in JSON format:
{
  "transcription": "...",
  "isCorrect": boolean,
  "wordAnalysis": [
    {
      "word": "word1",
      "status": "correct" | "incorrect" | "missing",
      "feedback": "brief feedback",
      "pronunciationGuide": "Detailed guide in %s on how to pronounce this word correctly, including tongue placement or Tajweed rules if applicable."
    }
  ],
  "errors": ["error1", "error2"],
  "score": number,
  "feedback": "..."
}
Ensure the "wordAnalysis" array contains every word from the target verse in order.`

// generator is the part of the genai client the analyzer uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini judges recitations with a multimodal Gemini model.
type Gemini struct {
	models generator
	model  string
	log    *zap.Logger
}

var _ domain.AnalyzerPort = (*Gemini)(nil)

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, model, logger), nil
}

func newGemini(models generator, model string, logger *zap.Logger) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{
		models: models,
		model:  model,
		log:    logger.Named("gemini"),
	}
}

// Analyze sends the recording and the target verse in one request
func (g *Gemini) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	lang := languageName(req.Language)
	prompt := fmt.Sprintf(promptTemplate, req.VerseText, lang, lang)

	mimeType := req.Audio.MimeType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(req.Audio.Data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	g.log.Debug("analysis response",
		zap.String("recording_id", req.Audio.ID),
		zap.Int("length", len(text)),
	)

	result, err := decodeResult(text)
	if err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	return result, nil
}
