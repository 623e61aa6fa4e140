package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/application"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/spf13/cobra"
)

const practiceHelp = `Commands:
  n, next            next verse
  p, prev            previous verse
  g, go <k>          jump to verse k of the selection
  r, record          start recording the current verse
  s, stop            stop recording and analyze
  l, listen          play or stop the reciter for the current verse
  m, mine            play or stop your last recording
  t, translation [id] list translations or switch to id
  c, reciter [id]    list reciters or switch to id
  surah <n>          select surah n
  juz <n>            select juz n
  lang <code>        feedback language: en, ar, ru or bn
  show               print the current verse again
  page               print the whole selection, current verse marked
  h, help            this help
  q, quit            leave`

func init() {
	cmd := &cobra.Command{
		Use:   "practice <number>",
		Short: "Practise a surah (or juz with --juz) verse by verse",
		Long: "Start an interactive session on a surah or juz. Listen to the reciter, " +
			"record yourself on the microphone and read the word-by-word feedback.\n\n" + practiceHelp,
		Args: cobra.ExactArgs(1),
		RunE: runPractice,
	}
	cmd.Flags().Bool("juz", false, "Treat the number as a juz instead of a surah")
	cmd.Flags().StringP("translation", "t", "", "Translation edition")
	cmd.Flags().StringP("reciter", "r", "", "Reciter edition")

	RootCmd.AddCommand(cmd)
}

func runPractice(cmd *cobra.Command, args []string) error {
	scope := domain.ScopeSurah
	if juz, _ := cmd.Flags().GetBool("juz"); juz {
		scope = domain.ScopeJuz
	}
	sel, err := parseSelection(scope, args[0])
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

	ctx := cmd.Context()
	sess := a.Service.Session(localUser)
	sess.SetLanguage(lang)

	if id, _ := cmd.Flags().GetString("translation"); id != "" {
		if err := sess.SetTranslation(ctx, id); err != nil {
			return fmt.Errorf("translation %q: %w", id, err)
		}
	}
	if id, _ := cmd.Flags().GetString("reciter"); id != "" {
		if err := sess.SetReciter(ctx, id); err != nil {
			return fmt.Errorf("reciter %q: %w", id, err)
		}
	}

	r := newREPL(sess, a.I18n, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := sess.Select(ctx, sel); err != nil {
		r.out.err(lang, err)
	} else {
		r.show()
	}
	return r.run(ctx)
}

// repl drives one session from line-oriented input.
type repl struct {
	sess *application.Session
	i18n domain.I18nPort
	in   io.Reader
	out  printer
}

func newREPL(sess *application.Session, i18n domain.I18nPort, in io.Reader, out io.Writer) *repl {
	return &repl{
		sess: sess,
		i18n: i18n,
		in:   in,
		out:  printer{w: out, i18n: i18n},
	}
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out.w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out.w)
			return scanner.Err()
		}
		if quit := r.exec(ctx, scanner.Text()); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) show() {
	r.out.card(r.sess.Snapshot())
}

func (r *repl) lang() domain.Language {
	return r.sess.Snapshot().Language
}

// exec runs one command line. It reports whether the session should end.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch name {
	case "q", "quit", "exit":
		return true
	case "h", "help", "?":
		fmt.Fprintln(r.out.w, practiceHelp)
	case "show":
		r.show()
	case "page":
		r.out.page(r.sess.Snapshot())
	case "n", "next":
		if r.sess.Next() {
			r.show()
		}
	case "p", "prev":
		if r.sess.Prev() {
			r.show()
		}
	case "g", "go":
		err = r.jump(args)
	case "r", "record":
		if err = r.sess.StartRecording(ctx); err == nil {
			r.out.line(r.lang(), "record.recording")
		}
	case "s", "stop":
		if err = r.sess.StopRecording(ctx); err == nil {
			r.out.line(r.lang(), "record.analyzing")
			r.sess.Wait()
			r.show()
		}
	case "l", "listen":
		err = r.listen(ctx)
	case "m", "mine":
		var playing bool
		if playing, err = r.sess.ToggleOwn(ctx); err == nil {
			r.playing(playing, "play.own")
		}
	case "t", "translation":
		err = r.translation(ctx, args)
	case "c", "reciter":
		err = r.reciter(ctx, args)
	case "surah", "juz":
		err = r.selectScope(ctx, domain.Scope(name), args)
	case "lang", "language":
		err = r.language(args)
	default:
		r.out.line(r.lang(), "error.unknown_command")
	}

	if err != nil {
		r.out.err(r.lang(), err)
	}
	return false
}

func (r *repl) jump(args []string) error {
	if len(args) != 1 {
		return domain.ErrInvalidSelection
	}
	k, err := strconv.Atoi(args[0])
	if err != nil {
		return domain.ErrInvalidSelection
	}
	st := r.sess.Snapshot()
	if st.Verses.Len() == 0 {
		return domain.ErrNoVerse
	}
	if k < 1 || k > st.Verses.Len() {
		return domain.ErrInvalidSelection
	}
	if r.sess.Jump(k - 1) {
		r.show()
	}
	return nil
}

func (r *repl) listen(ctx context.Context) error {
	st := r.sess.Snapshot()
	playing, err := r.sess.ToggleReference(ctx, st.Cursor)
	if err != nil {
		return err
	}
	r.playing(playing, "play.reference")
	return nil
}

func (r *repl) playing(playing bool, key string) {
	lang := r.lang()
	if playing {
		fmt.Fprintf(r.out.w, "> %s\n", r.i18n.Get(lang, key))
		return
	}
	fmt.Fprintf(r.out.w, "%s\n", r.i18n.Get(lang, "play.stop"))
}

func (r *repl) translation(ctx context.Context, args []string) error {
	st := r.sess.Snapshot()
	if len(args) == 0 {
		r.out.editions(r.i18n.Get(st.Language, "translation.select"), r.editions().Translations, st.Translation.ID)
		return nil
	}
	if err := r.sess.SetTranslation(ctx, args[0]); err != nil {
		return err
	}
	st = r.sess.Snapshot()
	r.out.line(st.Language, "translation.changed", st.Translation.Name)
	r.show()
	return nil
}

func (r *repl) reciter(ctx context.Context, args []string) error {
	st := r.sess.Snapshot()
	if len(args) == 0 {
		r.out.editions(r.i18n.Get(st.Language, "reciter.select"), r.editions().Reciters, st.Reciter.ID)
		return nil
	}
	if err := r.sess.SetReciter(ctx, args[0]); err != nil {
		return err
	}
	r.out.line(st.Language, "reciter.changed", r.sess.Snapshot().Reciter.Name)
	return nil
}

func (r *repl) editions() domain.EditionTable {
	return r.sess.Editions()
}

func (r *repl) selectScope(ctx context.Context, scope domain.Scope, args []string) error {
	if len(args) != 1 {
		return domain.ErrInvalidSelection
	}
	sel, err := parseSelection(scope, args[0])
	if err != nil {
		return err
	}
	if err := r.sess.Select(ctx, sel); err != nil {
		return err
	}
	r.show()
	return nil
}

func (r *repl) language(args []string) error {
	if len(args) != 1 {
		return domain.ErrInvalidSelection
	}
	lang, ok := domain.ParseLanguage(args[0])
	if !ok {
		return domain.ErrInvalidSelection
	}
	r.sess.SetLanguage(lang)
	r.out.line(lang, "language.changed")
	return nil
}
