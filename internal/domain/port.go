package domain

import (
	"context"
	"time"
)

// ContentPort defines the interface for the Quran text/translation/audio API
type ContentPort interface {
	// ListSurahs lists every chapter
	ListSurahs(ctx context.Context) ([]Surah, error)

	// Surah returns a chapter descriptor by number
	Surah(ctx context.Context, number int) (*Surah, error)

	// Verses lists the verses of a selection under an edition. For audio
	// editions the verse text is the clip URL.
	Verses(ctx context.Context, sel Selection, edition string) (*EditionListing, error)
}

// EditionListing is one edition's rendering of a selection.
type EditionListing struct {
	Edition string
	Verses  []Ayah
	Audio   []AudioRef
	Surahs  []int
}

// Texts returns the verse texts in order.
func (l *EditionListing) Texts() []string {
	out := make([]string, len(l.Verses))
	for i, v := range l.Verses {
		out[i] = v.Text
	}
	return out
}

// AnalysisRequest is what the analysis service receives for one recording.
type AnalysisRequest struct {
	Audio     AudioPayload
	VerseText string
	Language  Language
}

// AnalyzerPort defines the interface for the recitation judgment service
type AnalyzerPort interface {
	// Analyze sends exactly one request and parses the structured judgment
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// CaptureDevice is a microphone that can be opened for one session at a time
type CaptureDevice interface {
	// Open acquires the device. It fails with ErrDeviceUnavailable when
	// access is denied or no device exists.
	Open(ctx context.Context) (CaptureStream, error)
}

// CaptureStream is an open capture session
type CaptureStream interface {
	// Chunks delivers captured audio; it is closed once the stream ends.
	Chunks() <-chan []byte

	// MimeType is the container format of the chunks.
	MimeType() string

	// Close releases the device. It is safe to call more than once.
	Close() error
}

// AudioOutput plays audio sources
type AudioOutput interface {
	Play(ctx context.Context, src AudioSource) (Playback, error)
}

// Playback is a started clip
type Playback interface {
	// Done is closed when the clip ended, naturally or through Stop.
	Done() <-chan struct{}

	// Stop halts the clip. It is safe to call more than once.
	Stop() error
}

// CachePort defines the interface for the content response cache
type CachePort interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// I18nPort defines the interface for internationalization
type I18nPort interface {
	// Get retrieves a translated message
	Get(lang Language, key string, args ...interface{}) string

	// GetSurahName retrieves the localized name of a Surah
	GetSurahName(lang Language, surahNumber int) string
}

// BotPort defines the interface for the bot adapter
type BotPort interface {
	// Start starts the bot
	Start(ctx context.Context) error

	// Stop stops the bot
	Stop() error
}
