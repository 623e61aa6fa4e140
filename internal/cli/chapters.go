package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "chapters",
		Aliases: []string{"surahs"},
		Short:   "List every surah",
		Args:    cobra.NoArgs,
		RunE:    runChapters,
	}

	RootCmd.AddCommand(cmd)
}

func runChapters(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	lang, err := language(a)
	if err != nil {
		return err
	}

	surahs, err := a.Content.Surahs(cmd.Context())
	if err != nil {
		return fmt.Errorf("list surahs: %w", err)
	}

	if formatFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), surahs)
	}
	for _, s := range surahs {
		fmt.Fprintf(cmd.OutOrStdout(), "%3d. %-20s %-24s %3d  %s  %s\n",
			s.Number, a.I18n.GetSurahName(lang, s.Number), s.EnglishNameTranslation, s.NumberOfAyahs, s.RevelationType, s.Name)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// verseJSON is the json output shape of one verse.
type verseJSON struct {
	Number          int    `json:"number"`
	Surah           int    `json:"surah"`
	Ayah            int    `json:"ayah"`
	Text            string `json:"text"`
	Transliteration string `json:"transliteration,omitempty"`
	Translation     string `json:"translation"`
	Audio           string `json:"audio,omitempty"`
	Sajda           bool   `json:"sajda,omitempty"`
}

func versesJSON(set *domain.VerseSet) []verseJSON {
	out := make([]verseJSON, set.Len())
	for i, v := range set.Verses {
		out[i] = verseJSON{
			Number:          v.Number,
			Surah:           v.SurahNumber,
			Ayah:            v.NumberInSurah,
			Text:            v.Text,
			Transliteration: set.Transliteration(i),
			Translation:     set.Translation(i),
			Audio:           set.AudioURL(i),
			Sajda:           v.Sajda,
		}
	}
	return out
}
