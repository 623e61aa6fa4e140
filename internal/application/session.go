package application

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.uber.org/zap"
)

// State is a consistent copy of a session's presentation state.
type State struct {
	// Selection is the selection Verses belongs to.
	Selection domain.Selection
	// Pending is the selection being loaded while Loading is set.
	Pending   domain.Selection
	Loading   bool
	LoadError error

	Verses      *domain.VerseSet
	Translation domain.Edition
	Reciter     domain.Edition
	Language    domain.Language
	Cursor      int

	IsRecording bool
	IsAnalyzing bool
	Analysis    *domain.AnalysisResult
	Recording   *domain.AudioPayload

	OwnPlaying         bool
	ReferencePlaying   bool
	ActiveReferenceKey string
}

// Verse returns the verse under the cursor.
func (s State) Verse() (domain.Ayah, bool) {
	if s.Cursor < 0 || s.Cursor >= s.Verses.Len() {
		return domain.Ayah{}, false
	}
	return s.Verses.Verses[s.Cursor], true
}

// CanRecord reports whether a recording can be started.
func (s State) CanRecord() bool {
	return s.Verses.Len() > 0 && !s.IsRecording
}

// CanPlayOwn reports whether there is a recording to play back.
func (s State) CanPlayOwn() bool {
	return s.Recording != nil && !s.IsRecording
}

// ReferenceKey identifies verse i's reference clip on the reference channel.
func (s State) ReferenceKey(i int) string {
	if i < 0 || i >= s.Verses.Len() {
		return ""
	}
	return strconv.Itoa(s.Verses.Verses[i].Number)
}

// SessionConfig holds what a session is built from.
type SessionConfig struct {
	Content      *ContentRepository
	Analysis     *AnalysisClient
	Capture      domain.CaptureDevice
	Output       domain.AudioOutput
	Language     domain.Language
	DrainTimeout time.Duration
	Metrics      *observe.Metrics
	Logger       *zap.Logger
}

// Session is the single owner of one user's presentation state. Every
// transition runs under one lock; listeners receive a snapshot afterwards.
type Session struct {
	content   *ContentRepository
	analysis  *AnalysisClient
	recorder  *Recorder
	reference *Channel
	own       *Channel
	log       *zap.Logger

	// ctx scopes background analyses; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	loadGen     uint64
	editionGen  uint64
	analysisGen uint64
	captureGen  uint64
	starting    bool
	stopping    bool
	listeners   []func(State)
	closed      bool

	// editions the current Verses were fetched with
	loadedTranslation domain.Edition
	loadedReciter     domain.Edition
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lang := cfg.Language
	if lang == "" {
		lang = domain.LangEnglish
	}

	editions := cfg.Content.Editions()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		content:  cfg.Content,
		analysis: cfg.Analysis,
		recorder: NewRecorder(cfg.Capture, cfg.DrainTimeout, cfg.Metrics, logger),
		log:      logger.Named("session"),
		ctx:      ctx,
		cancel:   cancel,
		state: State{
			Translation: editions.DefaultTranslation(),
			Reciter:     editions.DefaultReciter(),
			Language:    lang,
		},
		loadedTranslation: editions.DefaultTranslation(),
		loadedReciter:     editions.DefaultReciter(),
	}
	s.reference = NewChannel("reference", cfg.Output, s.changed, logger)
	s.own = NewChannel("own", cfg.Output, s.changed, logger)
	return s
}

// OnChange registers fn to receive a snapshot after every transition.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := s.state
	st.ActiveReferenceKey, st.ReferencePlaying = s.reference.Active()
	_, st.OwnPlaying = s.own.Active()
	return st
}

// commit releases the lock and notifies listeners. Must be called with
// s.mu held.
func (s *Session) commit() State {
	snap := s.snapshotLocked()
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

func (s *Session) changed() {
	s.mu.Lock()
	s.commit()
}

// Editions returns the selectable translations and reciters.
func (s *Session) Editions() domain.EditionTable {
	return s.content.Editions()
}

// SetLanguage sets the language used for analysis feedback.
func (s *Session) SetLanguage(lang domain.Language) {
	s.mu.Lock()
	s.state.Language = lang
	s.commit()
}

// Select resets the session and loads sel. A load superseded by a later
// Select returns ErrStale; a failed load keeps the previous verses.
func (s *Session) Select(ctx context.Context, sel domain.Selection) error {
	if err := sel.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	release := s.abortCaptureLocked()
	s.reference.Stop()
	s.own.Stop()
	s.discardAnalysisLocked()

	s.loadGen++
	gen := s.loadGen
	s.state.Cursor = 0
	s.state.Analysis = nil
	s.state.Recording = nil
	s.state.Pending = sel
	s.state.Loading = true
	s.state.LoadError = nil
	translation, reciter := s.state.Translation, s.state.Reciter
	s.commit()
	if release {
		s.recorder.Abort()
	}

	set, err := s.content.Load(ctx, sel, translation.ID, reciter.ID)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		return domain.ErrStale
	}
	s.state.Loading = false
	if err != nil {
		s.state.LoadError = err
		if s.state.Verses != nil {
			s.restoreEditionsLocked()
		}
		s.commit()
		s.log.Warn("load failed", zap.Stringer("selection", sel), zap.Error(err))
		return err
	}

	s.editionGen++
	s.state.Selection = sel
	s.state.Verses = set
	s.state.Cursor = 0
	s.loadedTranslation, s.loadedReciter = translation, reciter
	editionsChanged := s.state.Translation.ID != translation.ID || s.state.Reciter.ID != reciter.ID
	s.commit()

	if editionsChanged {
		return s.refresh(ctx)
	}
	return nil
}

// SetTranslation switches the translation edition and refreshes the
// edition-dependent facets. Cursor and recording are kept. If the refresh
// fails the previous edition is restored.
func (s *Session) SetTranslation(ctx context.Context, id string) error {
	edition, err := s.content.Editions().Translation(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Translation.ID == id {
		s.mu.Unlock()
		return nil
	}
	s.state.Translation = edition
	s.commit()

	return s.refresh(ctx)
}

// SetReciter switches the reciter edition. Reference playback stops since
// its clip URL is no longer valid.
func (s *Session) SetReciter(ctx context.Context, id string) error {
	edition, err := s.content.Editions().Reciter(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Reciter.ID == id {
		s.mu.Unlock()
		return nil
	}
	s.state.Reciter = edition
	s.reference.Stop()
	s.commit()

	return s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	set := s.state.Verses
	if set == nil || s.state.Loading {
		// The pending load picks up the new editions.
		s.mu.Unlock()
		return nil
	}
	s.editionGen++
	gen, loadGen := s.editionGen, s.loadGen
	translation, reciter := s.state.Translation, s.state.Reciter
	s.mu.Unlock()

	updated, err := s.content.Refresh(ctx, set, translation.ID, reciter.ID)

	s.mu.Lock()
	if gen != s.editionGen || loadGen != s.loadGen {
		s.mu.Unlock()
		return domain.ErrStale
	}
	if err != nil {
		s.state.LoadError = err
		s.restoreEditionsLocked()
		s.commit()
		s.log.Warn("refresh failed", zap.Error(err))
		return err
	}
	s.state.LoadError = nil
	s.state.Verses = updated
	s.loadedTranslation, s.loadedReciter = translation, reciter
	s.commit()
	return nil
}

// restoreEditionsLocked points the state back at the editions Verses was
// fetched with.
func (s *Session) restoreEditionsLocked() {
	s.state.Translation, s.state.Reciter = s.loadedTranslation, s.loadedReciter
}

// Next moves the cursor forward. It reports false at the last verse.
func (s *Session) Next() bool {
	s.mu.Lock()
	return s.moveLocked(s.state.Cursor + 1)
}

// Prev moves the cursor back. It reports false at the first verse.
func (s *Session) Prev() bool {
	s.mu.Lock()
	return s.moveLocked(s.state.Cursor - 1)
}

// Jump moves the cursor to verse i. Out of range indexes are ignored.
func (s *Session) Jump(i int) bool {
	s.mu.Lock()
	return s.moveLocked(i)
}

// moveLocked must be called with s.mu held; it releases it.
func (s *Session) moveLocked(target int) bool {
	if target < 0 || target >= s.state.Verses.Len() || target == s.state.Cursor {
		s.mu.Unlock()
		return false
	}

	release := s.abortCaptureLocked()
	s.discardAnalysisLocked()
	s.state.Analysis = nil
	s.state.Cursor = target
	s.commit()
	if release {
		s.recorder.Abort()
	}
	return true
}

// StartRecording opens the capture device for the cursor verse. On
// failure the state is left untouched. The device is opened without
// holding the session lock; a navigation or Close meanwhile releases it
// again and ErrStale is returned.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()

	switch {
	case s.closed:
		s.mu.Unlock()
		return domain.ErrSessionClosed
	case s.state.Verses.Len() == 0:
		s.mu.Unlock()
		return domain.ErrNoVerse
	case s.state.IsRecording, s.starting, s.stopping:
		s.mu.Unlock()
		return domain.ErrAlreadyCapturing
	}
	s.starting = true
	gen := s.captureGen
	s.mu.Unlock()

	err := s.recorder.Start(ctx)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if gen != s.captureGen || s.closed {
		s.mu.Unlock()
		s.recorder.Abort()
		return domain.ErrStale
	}

	s.own.Stop()
	s.discardAnalysisLocked()
	s.state.Analysis = nil
	s.state.Recording = nil
	s.state.IsRecording = true
	s.commit()
	return nil
}

// StopRecording finalizes the capture and dispatches analysis in the
// background. Use Wait to block until it completes. The state shows
// analyzing while the device drains.
func (s *Session) StopRecording(ctx context.Context) error {
	s.mu.Lock()

	if !s.state.IsRecording {
		s.mu.Unlock()
		return domain.ErrNotCapturing
	}

	verse, _ := s.state.Verse()
	s.captureGen++
	s.analysisGen++
	gen := s.analysisGen
	lang := s.state.Language

	s.state.IsRecording = false
	s.state.IsAnalyzing = true
	s.stopping = true
	s.commit()

	payload, err := s.recorder.Stop(ctx)

	s.mu.Lock()
	s.stopping = false
	if err != nil {
		if gen == s.analysisGen {
			s.state.IsAnalyzing = false
			s.commit()
		} else {
			s.mu.Unlock()
		}
		return fmt.Errorf("stop recording: %w", err)
	}
	if gen != s.analysisGen || s.closed {
		// The stream is already closed; this only returns the recorder to idle.
		s.recorder.Abort()
		s.mu.Unlock()
		s.log.Debug("discarding recording finalized after navigation", zap.String("recording_id", payload.ID))
		return domain.ErrStale
	}

	s.state.Recording = payload
	s.wg.Add(1)
	go s.runAnalysis(gen, payload, verse.Text, lang)
	s.recorder.Dispatched()

	s.commit()
	return nil
}

func (s *Session) runAnalysis(gen uint64, payload *domain.AudioPayload, verseText string, lang domain.Language) {
	defer s.wg.Done()

	result := s.analysis.Analyze(s.ctx, payload, verseText, lang)

	s.mu.Lock()
	if gen != s.analysisGen {
		s.mu.Unlock()
		s.log.Debug("discarding stale analysis", zap.String("recording_id", payload.ID))
		return
	}
	s.state.IsAnalyzing = false
	s.state.Analysis = result
	s.commit()
}

// ToggleReference toggles verse i's reference clip. Only one reference
// clip plays at a time.
func (s *Session) ToggleReference(ctx context.Context, i int) (bool, error) {
	s.mu.Lock()

	if i < 0 || i >= s.state.Verses.Len() {
		s.mu.Unlock()
		return false, domain.ErrNoVerse
	}
	url := s.state.Verses.AudioURL(i)
	if url == "" {
		s.mu.Unlock()
		return false, domain.ErrNoAudio
	}

	playing, err := s.reference.Toggle(ctx, s.state.ReferenceKey(i), domain.AudioSource{URL: url})
	s.commit()
	return playing, err
}

// ToggleOwn toggles playback of the last recording.
func (s *Session) ToggleOwn(ctx context.Context) (bool, error) {
	s.mu.Lock()

	rec := s.state.Recording
	if rec == nil || s.state.IsRecording {
		s.mu.Unlock()
		return false, domain.ErrNoRecording
	}

	playing, err := s.own.Toggle(ctx, rec.ID, domain.AudioSource{Data: rec.Data, MimeType: rec.MimeType})
	s.commit()
	return playing, err
}

// Wait blocks until dispatched analyses have completed.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close releases the device and both playback channels and waits for
// background analyses.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.abortCaptureLocked()
	s.reference.Stop()
	s.own.Stop()
	s.cancel()
	s.mu.Unlock()

	s.recorder.Abort()
	s.wg.Wait()
}

// abortCaptureLocked ends the capture in the state and supersedes a device
// that is still opening. It reports whether the caller must release the
// device with recorder.Abort after dropping the lock.
func (s *Session) abortCaptureLocked() bool {
	s.captureGen++
	if !s.state.IsRecording {
		return false
	}
	s.log.Debug("abandoning capture")
	s.state.IsRecording = false
	return true
}

// discardAnalysisLocked makes any in-flight analysis stale.
func (s *Session) discardAnalysisLocked() {
	s.analysisGen++
	s.state.IsAnalyzing = false
}
