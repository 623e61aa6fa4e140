package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

type I18n struct {
	translations map[domain.Language]map[string]string
	surahs       map[domain.Language][]string
}

var _ domain.I18nPort = (*I18n)(nil)

type translationFile struct {
	Messages map[string]string `yaml:"messages"`
	Surahs   []string          `yaml:"surahs"`
}

// NewI18n loads locale files from localesDir, or the bundled locales when
// localesDir is empty.
func NewI18n(localesDir string) (*I18n, error) {
	if localesDir == "" {
		sub, err := fs.Sub(embedded, "locales")
		if err != nil {
			return nil, fmt.Errorf("open bundled locales: %w", err)
		}
		return Load(sub)
	}
	return Load(os.DirFS(localesDir))
}

// Load reads <lang>.yaml for every supported language from fsys.
func Load(fsys fs.FS) (*I18n, error) {
	i18n := &I18n{
		translations: make(map[domain.Language]map[string]string),
		surahs:       make(map[domain.Language][]string),
	}

	// Load all translation files
	for _, lang := range domain.Languages {
		if err := i18n.loadTranslations(fsys, lang, string(lang)+".yaml"); err != nil {
			return nil, fmt.Errorf("load %s translations: %w", lang, err)
		}
	}

	return i18n, nil
}

func (i *I18n) loadTranslations(fsys fs.FS, lang domain.Language, filename string) error {
	data, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var tf translationFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}

	i.translations[lang] = tf.Messages
	i.surahs[lang] = tf.Surahs

	return nil
}

// Get retrieves a translated message, falling back to English and then to
// the key itself
func (i *I18n) Get(lang domain.Language, key string, args ...interface{}) string {
	msg, ok := i.translations[lang][key]
	if !ok {
		msg, ok = i.translations[domain.LangEnglish][key]
	}
	if !ok {
		return key
	}

	// Simple formatting support
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	return msg
}

// GetSurahName retrieves the localized name of a Surah
func (i *I18n) GetSurahName(lang domain.Language, surahNumber int) string {
	surahs, ok := i.surahs[lang]
	if !ok || surahNumber < 1 || surahNumber > len(surahs) {
		surahs = i.surahs[domain.LangEnglish]
	}

	if surahNumber < 1 || surahNumber > len(surahs) {
		return fmt.Sprintf("Surah %d", surahNumber)
	}

	return surahs[surahNumber-1]
}

// FormatSurahButton formats a surah button text with number and name
func FormatSurahButton(port domain.I18nPort, lang domain.Language, surahNumber int) string {
	name := port.GetSurahName(lang, surahNumber)
	return fmt.Sprintf("%d. %s", surahNumber, strings.TrimSpace(name))
}
