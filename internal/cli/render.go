package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
)

// printer writes session state to a terminal.
type printer struct {
	w    io.Writer
	i18n domain.I18nPort
}

func (p printer) line(lang domain.Language, key string, args ...any) {
	fmt.Fprintln(p.w, p.i18n.Get(lang, key, args...))
}

func (p printer) err(lang domain.Language, err error) {
	if key := application.MessageKey(err); key != "" {
		fmt.Fprintf(p.w, "! %s\n", p.i18n.Get(lang, key))
	}
}

// card prints the cursor verse with its facets and the latest analysis.
// Incorrect words are bracketed and missing words parenthesized.
func (p printer) card(st application.State) {
	lang := st.Language

	view, ok := st.View()
	if !ok {
		if st.Loading {
			p.line(lang, "verse.loading")
			return
		}
		p.line(lang, "verse.empty")
		return
	}

	fmt.Fprintln(p.w)
	if view.Bismillah {
		fmt.Fprintf(p.w, "%s\n\n", application.Bismillah)
	}

	ref := p.i18n.Get(lang, "verse.reference",
		p.i18n.GetSurahName(lang, view.Ayah.SurahNumber), view.Ayah.SurahNumber, view.Ayah.NumberInSurah)
	if view.Ayah.Sajda {
		ref += " ۩"
	}
	fmt.Fprintf(p.w, "%s  (%s)\n\n", ref, p.i18n.Get(lang, "verse.position", view.Position, view.Total))

	words := make([]string, len(view.Tokens))
	for i, t := range view.Tokens {
		words[i] = formatToken(t)
	}
	fmt.Fprintln(p.w, strings.Join(words, " "))

	if view.Judged {
		fmt.Fprintf(p.w, "  %s  [%s]  (%s)\n",
			p.i18n.Get(lang, "legend.correct"),
			p.i18n.Get(lang, "legend.incorrect"),
			p.i18n.Get(lang, "legend.missing"))
	}
	if view.Transliteration != "" {
		fmt.Fprintln(p.w, view.Transliteration)
	}
	if view.Translation != "" {
		fmt.Fprintln(p.w, view.Translation)
	}

	switch {
	case st.IsRecording:
		fmt.Fprintln(p.w)
		p.line(lang, "record.recording")
	case st.IsAnalyzing:
		fmt.Fprintln(p.w)
		p.line(lang, "record.analyzing")
	case view.Analysis != nil:
		fmt.Fprintln(p.w)
		p.analysis(lang, view)
	}
}

// page prints the whole selection as one page. The cursor verse is marked
// with ">" and carries its judged words.
func (p printer) page(st application.State) {
	lang := st.Language
	set := st.Verses
	if set.Len() == 0 {
		p.line(lang, "verse.empty")
		return
	}

	fmt.Fprintln(p.w)
	if set.Selection.ShowsBismillah() {
		fmt.Fprintf(p.w, "%s\n\n", application.Bismillah)
	}

	view, _ := st.View()
	surah := 0
	for i, v := range set.Verses {
		if set.Selection.Scope == domain.ScopeJuz && v.SurahNumber != surah {
			surah = v.SurahNumber
			fmt.Fprintf(p.w, "-- %s --\n", p.i18n.GetSurahName(lang, surah))
		}

		mark, text := " ", v.Text
		if i == st.Cursor {
			mark = ">"
			words := make([]string, len(view.Tokens))
			for j, t := range view.Tokens {
				words[j] = formatToken(t)
			}
			text = strings.Join(words, " ")
		}
		fmt.Fprintf(p.w, "%s %d:%d  %s\n", mark, v.SurahNumber, v.NumberInSurah, text)
		if t := set.Translation(i); t != "" {
			fmt.Fprintf(p.w, "        %s\n", t)
		}
	}
}

func formatToken(t application.Token) string {
	switch t.Status {
	case domain.StatusIncorrect:
		return "[" + t.Text + "]"
	case domain.StatusMissing:
		return "(" + t.Text + ")"
	default:
		return t.Text
	}
}

func (p printer) analysis(lang domain.Language, view application.VerseView) {
	res := view.Analysis
	if res.Fallback {
		fmt.Fprintf(p.w, "! %s\n", res.Feedback)
		return
	}

	verdict := "analysis.incorrect"
	if res.IsCorrect {
		verdict = "analysis.correct"
	}
	fmt.Fprintf(p.w, "%s. %s\n", p.i18n.Get(lang, verdict), p.i18n.Get(lang, "analysis.score", res.Score))
	if res.Transcription != "" {
		p.line(lang, "analysis.transcription", res.Transcription)
	}
	if res.Feedback != "" {
		fmt.Fprintln(p.w, res.Feedback)
	}

	if len(view.Guidance) > 0 {
		fmt.Fprintf(p.w, "\n%s:\n", p.i18n.Get(lang, "analysis.guidance"))
		for _, g := range view.Guidance {
			fmt.Fprintf(p.w, "  - %s: %s\n", g.Word, g.PronunciationGuide)
		}
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(p.w, "\n%s:\n", p.i18n.Get(lang, "analysis.errors"))
		for _, e := range res.Errors {
			fmt.Fprintf(p.w, "  - %s\n", e)
		}
	}
}

func (p printer) editions(title string, editions []domain.Edition, current string) {
	fmt.Fprintln(p.w, title)
	for _, e := range editions {
		mark := " "
		if e.ID == current {
			mark = "*"
		}
		fmt.Fprintf(p.w, " %s %-24s %s\n", mark, e.ID, e.Name)
	}
}
