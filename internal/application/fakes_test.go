package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

const (
	testTranslation = "bn.bengali"
	testReciter     = "ar.alafasy"
)

// fakeContent serves deterministic listings: surah 1 has seven verses,
// everything else five, and every verse text has five words.
type fakeContent struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	short   map[string]int
	gates   map[domain.Selection]chan struct{}
	holds   map[string]chan struct{}
	waiting map[string]int
	surahs  []domain.Surah
	listErr error
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		fail:    make(map[string]error),
		short:   make(map[string]int),
		gates:   make(map[domain.Selection]chan struct{}),
		holds:   make(map[string]chan struct{}),
		waiting: make(map[string]int),
		surahs: []domain.Surah{
			{Number: 1, EnglishName: "Al-Faatiha", NumberOfAyahs: 7},
			{Number: 2, EnglishName: "Al-Baqara", NumberOfAyahs: 286},
		},
	}
}

func (f *fakeContent) setFail(edition string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, edition)
		return
	}
	f.fail[edition] = err
}

// gate blocks every fetch for sel until the returned channel is closed.
func (f *fakeContent) gate(sel domain.Selection) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[sel] = ch
	return ch
}

// hold blocks every fetch of edition until the returned channel is closed.
func (f *fakeContent) hold(edition string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.holds[edition] = ch
	return ch
}

// held reports how many fetches of edition are blocked by hold.
func (f *fakeContent) held(edition string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting[edition]
}

func (f *fakeContent) editionCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeContent) ListSurahs(context.Context) ([]domain.Surah, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.surahs, nil
}

func (f *fakeContent) Surah(_ context.Context, number int) (*domain.Surah, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.surahs {
		if s.Number == number {
			return &s, nil
		}
	}
	return nil, domain.ErrInvalidSelection
}

func (f *fakeContent) Verses(ctx context.Context, sel domain.Selection, edition string) (*domain.EditionListing, error) {
	f.mu.Lock()
	f.calls = append(f.calls, edition)
	err := f.fail[edition]
	n := 5
	if sel == domain.SurahSelection(1) {
		n = 7
	}
	if short, ok := f.short[edition]; ok {
		n = short
	}
	gate := f.gates[sel]
	held := f.holds[edition]
	if held != nil {
		f.waiting[edition]++
	}
	f.mu.Unlock()

	for _, ch := range []chan struct{}{gate, held} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	if err == nil {
		err = f.fail[edition]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	l := &domain.EditionListing{
		Edition: edition,
		Verses:  make([]domain.Ayah, n),
		Audio:   make([]domain.AudioRef, n),
		Surahs:  []int{sel.Number},
	}
	for i := 0; i < n; i++ {
		number := sel.Number*1000 + i + 1
		var text string
		switch {
		case edition == domain.DefaultEditions().Text:
			text = verseText(i)
		case strings.HasPrefix(edition, "ar."):
			text = fmt.Sprintf("https://cdn.test/%s/%d.mp3", edition, number)
			l.Audio[i].URL = text
		default:
			text = fmt.Sprintf("%s %d", edition, i+1)
		}
		l.Verses[i] = domain.Ayah{
			Number:        number,
			Text:          text,
			NumberInSurah: i + 1,
			SurahNumber:   sel.Number,
		}
	}
	return l, nil
}

func verseText(i int) string {
	return fmt.Sprintf("a%[1]d b%[1]d c%[1]d d%[1]d e%[1]d", i+1)
}

type fakeStream struct {
	chunks    chan []byte
	stuck     bool
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 16)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) MimeType() string { return "audio/ogg" }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if !s.stuck {
			close(s.chunks)
		}
	})
	return nil
}

type fakeDevice struct {
	mu      sync.Mutex
	err     error
	stuck   bool
	gate    chan struct{}
	opening atomic.Int32
	streams []*fakeStream
}

func (d *fakeDevice) Open(context.Context) (domain.CaptureStream, error) {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		d.opening.Add(1)
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	s.stuck = d.stuck
	d.streams = append(d.streams, s)
	return s, nil
}

// holdOpen blocks every Open until the returned channel is closed.
func (d *fakeDevice) holdOpen() chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = make(chan struct{})
	return d.gate
}

func (d *fakeDevice) setStuck() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stuck = true
}

func (d *fakeDevice) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// last returns the most recently opened stream.
func (d *fakeDevice) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type fakePlayback struct {
	src  domain.AudioSource
	done chan struct{}
	once sync.Once
	stop atomic.Bool
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Stop() error {
	p.stop.Store(true)
	p.finish()
	return nil
}

// finish ends the clip as if it played to the end.
func (p *fakePlayback) finish() {
	p.once.Do(func() { close(p.done) })
}

type fakeOutput struct {
	mu    sync.Mutex
	err   error
	plays []*fakePlayback
}

func (o *fakeOutput) Play(_ context.Context, src domain.AudioSource) (domain.Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	pb := &fakePlayback{src: src, done: make(chan struct{})}
	o.plays = append(o.plays, pb)
	return pb, nil
}

func (o *fakeOutput) played() []*fakePlayback {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakePlayback(nil), o.plays...)
}

type fakeAnalyzer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	a.calls.Add(1)
	if a.fn == nil {
		return nil, errors.New("no analyzer configured")
	}
	return a.fn(ctx, req)
}

// fakeI18n echoes the language and key.
type fakeI18n struct{}

func (fakeI18n) Get(lang domain.Language, key string, _ ...interface{}) string {
	return string(lang) + ":" + key
}

func (fakeI18n) GetSurahName(_ domain.Language, n int) string {
	return fmt.Sprintf("Surah %d", n)
}

// blockingAnalyzer ignores cancellation until the test ends.
func blockingAnalyzer(t *testing.T) *fakeAnalyzer {
	t.Helper()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return &fakeAnalyzer{fn: func(context.Context, domain.AnalysisRequest) (*domain.AnalysisResult, error) {
		<-release
		return &domain.AnalysisResult{Score: 100}, nil
	}}
}

func allCorrect(req domain.AnalysisRequest, score int) *domain.AnalysisResult {
	words := domain.SplitWords(req.VerseText)
	res := &domain.AnalysisResult{
		Transcription: req.VerseText,
		IsCorrect:     true,
		Score:         score,
		Words:         make([]domain.WordJudgment, len(words)),
	}
	for i, w := range words {
		res.Words[i] = domain.WordJudgment{Word: w, Status: domain.StatusCorrect}
	}
	return res
}

type testSession struct {
	*Session
	content  *fakeContent
	device   *fakeDevice
	output   *fakeOutput
	analyzer *fakeAnalyzer
}

type sessionOption func(*sessionSetup)

type sessionSetup struct {
	analyzer        *fakeAnalyzer
	analysisTimeout time.Duration
	drainTimeout    time.Duration
}

func withAnalyzer(a *fakeAnalyzer) sessionOption {
	return func(s *sessionSetup) { s.analyzer = a }
}

func withAnalysisTimeout(d time.Duration) sessionOption {
	return func(s *sessionSetup) { s.analysisTimeout = d }
}

func withDrainTimeout(d time.Duration) sessionOption {
	return func(s *sessionSetup) { s.drainTimeout = d }
}

func newTestSession(t *testing.T, opts ...sessionOption) *testSession {
	t.Helper()

	setup := sessionSetup{
		analyzer: &fakeAnalyzer{fn: func(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
			return allCorrect(req, 90), nil
		}},
		analysisTimeout: time.Second,
		drainTimeout:    time.Second,
	}
	for _, opt := range opts {
		opt(&setup)
	}

	content := newFakeContent()
	device := &fakeDevice{}
	output := &fakeOutput{}

	sess := NewSession(SessionConfig{
		Content:      NewContentRepository(content, domain.DefaultEditions(), nil, zap.NewNop()),
		Analysis:     NewAnalysisClient(setup.analyzer, fakeI18n{}, setup.analysisTimeout, nil, zap.NewNop()),
		Capture:      device,
		Output:       output,
		Language:     domain.LangEnglish,
		DrainTimeout: setup.drainTimeout,
		Logger:       zap.NewNop(),
	})
	t.Cleanup(sess.Close)

	return &testSession{
		Session:  sess,
		content:  content,
		device:   device,
		output:   output,
		analyzer: setup.analyzer,
	}
}

// record captures chunks for the cursor verse and waits for the analysis.
func (ts *testSession) record(t *testing.T, chunks ...string) {
	t.Helper()
	if err := ts.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	stream := ts.device.last()
	for _, c := range chunks {
		stream.chunks <- []byte(c)
	}
	if err := ts.StopRecording(context.Background()); err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	ts.Wait()
}
