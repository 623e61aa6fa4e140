package domain

import "strings"

// WordStatus is the per-word verdict of the analysis service.
type WordStatus string

const (
	StatusCorrect   WordStatus = "correct"
	StatusIncorrect WordStatus = "incorrect"
	StatusMissing   WordStatus = "missing"

	// StatusNone marks a verse word with no judgment; it is rendered as
	// plain text.
	StatusNone WordStatus = ""
)

// ParseWordStatus coerces a service-provided status. Anything that is not
// recognisably correct or missing counts as incorrect so that it surfaces
// in the guidance list.
func ParseWordStatus(s string) WordStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "correct", "ok", "right":
		return StatusCorrect
	case "missing", "omitted", "deleted", "skipped":
		return StatusMissing
	default:
		return StatusIncorrect
	}
}

// WordJudgment is the verdict for one word of the target verse.
type WordJudgment struct {
	Word               string
	Status             WordStatus
	Feedback           string
	PronunciationGuide string
}

// AnalysisResult is the judgment for exactly one verse.
type AnalysisResult struct {
	Transcription string
	IsCorrect     bool
	Score         int
	Feedback      string
	Words         []WordJudgment
	Errors        []string

	// Fallback is set when the result was produced locally because the
	// analysis service could not be used.
	Fallback bool
}

// FallbackResult builds the result shown when analysis fails.
func FallbackResult(message string) *AnalysisResult {
	return &AnalysisResult{
		IsCorrect: false,
		Score:     0,
		Feedback:  message,
		Fallback:  true,
	}
}

// StatusText holds the default feedback per status, used when the service
// leaves a judgment without feedback.
type StatusText map[WordStatus]string

// Normalize validates and coerces the result in place against the target
// verse text.
func (r *AnalysisResult) Normalize(verseText string, defaults StatusText) {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}

	words := SplitWords(verseText)
	for i := range r.Words {
		w := &r.Words[i]
		w.Word = strings.TrimSpace(w.Word)
		if w.Word == "" && i < len(words) {
			w.Word = words[i]
		}
		if w.Status != StatusCorrect && w.Status != StatusIncorrect && w.Status != StatusMissing {
			w.Status = ParseWordStatus(string(w.Status))
		}
		w.Feedback = strings.TrimSpace(w.Feedback)
		if w.Feedback == "" {
			w.Feedback = defaults[w.Status]
		}
		w.PronunciationGuide = strings.TrimSpace(w.PronunciationGuide)
		if w.PronunciationGuide == "" {
			w.PronunciationGuide = w.Feedback
		}
	}
}

// Incorrect returns the incorrectly recited words in original order.
func (r *AnalysisResult) Incorrect() []WordJudgment {
	if r == nil {
		return nil
	}
	var out []WordJudgment
	for _, w := range r.Words {
		if w.Status == StatusIncorrect {
			out = append(out, w)
		}
	}
	return out
}

// HasJudgments reports whether the result carries per-word judgments.
func (r *AnalysisResult) HasJudgments() bool {
	return r != nil && len(r.Words) > 0
}
