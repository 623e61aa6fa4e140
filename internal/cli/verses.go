package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	for _, scope := range []domain.Scope{domain.ScopeSurah, domain.ScopeJuz} {
		scope := scope
		cmd := &cobra.Command{
			Use:   string(scope) + " <number>",
			Short: fmt.Sprintf("Print the verses of a %s with translation", scope),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runVerses(cmd, scope, args[0])
			},
		}
		cmd.Flags().StringP("translation", "t", "", "Translation edition (default: first configured)")
		RootCmd.AddCommand(cmd)
	}
}

func parseSelection(scope domain.Scope, arg string) (domain.Selection, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidSelection, arg)
	}
	sel := domain.Selection{Scope: scope, Number: n}
	return sel, sel.Validate()
}

func runVerses(cmd *cobra.Command, scope domain.Scope, arg string) error {
	sel, err := parseSelection(scope, arg)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	lang, err := language(a)
	if err != nil {
		return err
	}

	editions := a.Content.Editions()
	translation, _ := cmd.Flags().GetString("translation")
	if translation == "" {
		translation = editions.DefaultTranslation().ID
	}

	set, err := a.Content.Load(cmd.Context(), sel, translation, editions.DefaultReciter().ID)
	if err != nil {
		return fmt.Errorf("load %s: %w", sel, err)
	}

	if formatFlag == "json" {
		return writeJSON(cmd.OutOrStdout(), versesJSON(set))
	}

	if sel.Scope == domain.ScopeSurah {
		surah, err := a.Content.Surah(cmd.Context(), sel.Number)
		if err != nil {
			a.Log.Warn("surah header unavailable", zap.Int("surah", sel.Number), zap.Error(err))
		} else {
			printHeader(cmd.OutOrStdout(), surah, a.I18n.GetSurahName(lang, surah.Number))
		}
	}
	printVerses(cmd.OutOrStdout(), set)
	return nil
}

func printHeader(w io.Writer, s *domain.Surah, name string) {
	fmt.Fprintf(w, "%d. %s (%s)  %s\n", s.Number, name, s.EnglishNameTranslation, s.Name)
	fmt.Fprintf(w, "%s, %d verses\n\n", s.RevelationType, s.NumberOfAyahs)
}

func printVerses(w io.Writer, set *domain.VerseSet) {
	if set.Selection.ShowsBismillah() {
		fmt.Fprintf(w, "%s\n\n", application.Bismillah)
	}
	for i, v := range set.Verses {
		fmt.Fprintf(w, "%d:%d  %s\n", v.SurahNumber, v.NumberInSurah, v.Text)
		if t := set.Transliteration(i); t != "" {
			fmt.Fprintf(w, "      %s\n", t)
		}
		fmt.Fprintf(w, "      %s\n\n", set.Translation(i))
	}
}
