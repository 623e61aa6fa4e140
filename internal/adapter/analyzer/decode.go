package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
)

var errNoJSON = fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedResult)

type resultResponse struct {
	Transcription string         `json:"transcription"`
	IsCorrect     *bool          `json:"isCorrect"`
	WordAnalysis  []wordResponse `json:"wordAnalysis"`
	Errors        []string       `json:"errors"`
	Score         flexScore      `json:"score"`
	Feedback      string         `json:"feedback"`
}

type wordResponse struct {
	Word               string `json:"word"`
	Status             string `json:"status"`
	Feedback           string `json:"feedback"`
	PronunciationGuide string `json:"pronunciationGuide"`
}

// flexScore accepts 87, 87.5 and "87".
type flexScore int

func (s *flexScore) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse score %q: %w", raw, err)
	}
	*s = flexScore(math.Round(f))
	return nil
}

// decodeResult parses the service reply. Models sometimes wrap the object in
// code fences or prose, so only the outermost braces are decoded.
func decodeResult(text string) (*domain.AnalysisResult, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var resp resultResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResult, err)
	}

	result := &domain.AnalysisResult{
		Transcription: strings.TrimSpace(resp.Transcription),
		Score:         int(resp.Score),
		Feedback:      strings.TrimSpace(resp.Feedback),
		Errors:        resp.Errors,
		Words:         make([]domain.WordJudgment, len(resp.WordAnalysis)),
	}

	allCorrect := len(resp.WordAnalysis) > 0
	for i, w := range resp.WordAnalysis {
		status := domain.ParseWordStatus(w.Status)
		if status != domain.StatusCorrect {
			allCorrect = false
		}
		result.Words[i] = domain.WordJudgment{
			Word:               w.Word,
			Status:             status,
			Feedback:           w.Feedback,
			PronunciationGuide: w.PronunciationGuide,
		}
	}

	if resp.IsCorrect != nil {
		result.IsCorrect = *resp.IsCorrect
	} else {
		result.IsCorrect = allCorrect
	}

	return result, nil
}

func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

func languageName(lang domain.Language) string {
	switch lang {
	case domain.LangArabic:
		return "Arabic"
	case domain.LangRussian:
		return "Russian"
	case domain.LangBengali:
		return "Bengali"
	default:
		return "English"
	}
}
