package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	SurahCount = 114
	JuzCount   = 30

	// SurahAtTawbah is the only surah recited without the bismillah.
	SurahAtTawbah = 9
)

// Surah represents a chapter in the Quran
type Surah struct {
	Number                 int
	Name                   string
	EnglishName            string
	EnglishNameTranslation string
	NumberOfAyahs          int
	RevelationType         string
}

// Ayah represents a verse in the Quran
type Ayah struct {
	Number        int
	Text          string
	NumberInSurah int
	SurahNumber   int
	Juz           int
	Manzil        int
	Page          int
	Ruku          int
	HizbQuarter   int
	Sajda         bool
}

// Words splits the verse text into its words, in order.
func (a Ayah) Words() []string {
	return SplitWords(a.Text)
}

// SplitWords splits recited text on whitespace.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// Scope is the kind of grouping a selection refers to.
type Scope string

const (
	ScopeSurah Scope = "surah"
	ScopeJuz   Scope = "juz"
)

// Selection identifies the chapter or reading-division currently browsed.
type Selection struct {
	Scope  Scope
	Number int
}

func SurahSelection(number int) Selection {
	return Selection{Scope: ScopeSurah, Number: number}
}

func JuzSelection(number int) Selection {
	return Selection{Scope: ScopeJuz, Number: number}
}

// Validate checks that the selection points at an existing surah or juz.
func (s Selection) Validate() error {
	switch s.Scope {
	case ScopeSurah:
		if s.Number < 1 || s.Number > SurahCount {
			return fmt.Errorf("%w: surah %d", ErrInvalidSelection, s.Number)
		}
	case ScopeJuz:
		if s.Number < 1 || s.Number > JuzCount {
			return fmt.Errorf("%w: juz %d", ErrInvalidSelection, s.Number)
		}
	default:
		return fmt.Errorf("%w: scope %q", ErrInvalidSelection, s.Scope)
	}
	return nil
}

// ShowsBismillah reports whether the bismillah header precedes the selection.
func (s Selection) ShowsBismillah() bool {
	return s.Scope == ScopeSurah && s.Number != SurahAtTawbah
}

func (s Selection) String() string {
	return fmt.Sprintf("%s:%d", s.Scope, s.Number)
}

// AudioRef points at the reference recitation of a single verse.
type AudioRef struct {
	URL       string
	Secondary []string
}

// VerseSet holds the four aligned facets of a selection. Index i of every
// slice refers to the same verse; Transliterations may be empty.
type VerseSet struct {
	Selection        Selection
	Verses           []Ayah
	Translations     []string
	Transliterations []string
	Audio            []AudioRef
	Surahs           []int
}

// Len returns the number of verses in the set.
func (v *VerseSet) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Verses)
}

// Translation returns the translation of verse i or an empty string.
func (v *VerseSet) Translation(i int) string {
	if v == nil || i < 0 || i >= len(v.Translations) {
		return ""
	}
	return v.Translations[i]
}

// Transliteration returns the transliteration of verse i or an empty string.
func (v *VerseSet) Transliteration(i int) string {
	if v == nil || i < 0 || i >= len(v.Transliterations) {
		return ""
	}
	return v.Transliterations[i]
}

// AudioURL returns the reference clip URL of verse i or an empty string.
func (v *VerseSet) AudioURL(i int) string {
	if v == nil || i < 0 || i >= len(v.Audio) {
		return ""
	}
	return v.Audio[i].URL
}

// AudioPayload is a finalized user recording.
type AudioPayload struct {
	ID         string
	Data       []byte
	MimeType   string
	Chunks     int
	CapturedAt time.Time
}

// Empty reports whether nothing was captured.
func (p *AudioPayload) Empty() bool {
	return p == nil || len(p.Data) == 0
}

// AudioSource is something an AudioOutput can play: either a remote URL or
// an in-memory payload.
type AudioSource struct {
	URL      string
	Data     []byte
	MimeType string
}

// Language represents supported languages
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
	LangRussian Language = "ru"
	LangBengali Language = "bn"
)

// Languages lists every language a locale file is shipped for.
var Languages = []Language{LangEnglish, LangArabic, LangRussian, LangBengali}

// ParseLanguage returns the language for code or false when unsupported.
func ParseLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range Languages {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}
