package domain

import "fmt"

// Edition is a named rendering of verse content: a translation or a
// reciter's audio track.
type Edition struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Name     string `mapstructure:"name" yaml:"name"`
	Font     string `mapstructure:"font" yaml:"font"`
	Language string `mapstructure:"language" yaml:"language"`
}

// EditionTable is the configured set of selectable editions.
type EditionTable struct {
	Text            string    `mapstructure:"text"`
	Transliteration string    `mapstructure:"transliteration"`
	Translations    []Edition `mapstructure:"translations"`
	Reciters        []Edition `mapstructure:"reciters"`
}

// DefaultEditions returns the table shipped with the application.
func DefaultEditions() EditionTable {
	return EditionTable{
		Text:            "quran-uthmani",
		Transliteration: "en.transliteration",
		Translations: []Edition{
			{ID: "bn.bengali", Name: "বাংলা", Font: "font-bengali", Language: "bn"},
			{ID: "en.sahih", Name: "English", Font: "font-sans", Language: "en"},
			{ID: "ur.jalandhry", Name: "اردو", Font: "font-quran", Language: "ur"},
			{ID: "hi.farooq", Name: "हिन्दी", Font: "font-sans", Language: "hi"},
		},
		Reciters: []Edition{
			{ID: "ar.alafasy", Name: "Mishary Rashid Alafasy"},
			{ID: "ar.abdulsamad", Name: "AbdulBaset AbdulSamad"},
			{ID: "ar.abdurrahmaansudais", Name: "Abdurrahmaan As-Sudais"},
			{ID: "ar.mahermuaiqly", Name: "Maher Al Muaiqly"},
		},
	}
}

// Translation looks up a translation edition by id.
func (t EditionTable) Translation(id string) (Edition, error) {
	return find(t.Translations, id, "translation")
}

// Reciter looks up a reciter edition by id.
func (t EditionTable) Reciter(id string) (Edition, error) {
	return find(t.Reciters, id, "reciter")
}

// DefaultTranslation returns the first configured translation.
func (t EditionTable) DefaultTranslation() Edition {
	if len(t.Translations) == 0 {
		return Edition{}
	}
	return t.Translations[0]
}

// DefaultReciter returns the first configured reciter.
func (t EditionTable) DefaultReciter() Edition {
	if len(t.Reciters) == 0 {
		return Edition{}
	}
	return t.Reciters[0]
}

// Validate checks the table is usable.
func (t EditionTable) Validate() error {
	if t.Text == "" {
		return fmt.Errorf("text edition is required")
	}
	if len(t.Translations) == 0 {
		return fmt.Errorf("at least one translation edition is required")
	}
	if len(t.Reciters) == 0 {
		return fmt.Errorf("at least one reciter edition is required")
	}
	seen := make(map[string]bool)
	for _, e := range append(append([]Edition{}, t.Translations...), t.Reciters...) {
		if e.ID == "" {
			return fmt.Errorf("edition id is required")
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate edition %q", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

func find(editions []Edition, id, kind string) (Edition, error) {
	for _, e := range editions {
		if e.ID == id {
			return e, nil
		}
	}
	return Edition{}, fmt.Errorf("%w: %s %q", ErrUnknownEdition, kind, id)
}
