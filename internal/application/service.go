package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"go.uber.org/zap"
)

// Devices builds the capture device and audio output for a user.
type Devices func(userID string) (domain.CaptureDevice, domain.AudioOutput)

const minExpiryInterval = time.Second

// Service manages per-user sessions and the chapter list shared by them
type Service struct {
	content      *ContentRepository
	analysis     *AnalysisClient
	devices      Devices
	defaultLang  domain.Language
	drainTimeout time.Duration
	sessionTTL   time.Duration
	metrics      *observe.Metrics
	log          *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	hooks    []func(userID string, sess *Session)
	surahs   []domain.Surah
}

type sessionEntry struct {
	sess     *Session
	lastUsed time.Time
}

// ServiceConfig holds what a service is built from. A zero SessionTTL keeps
// sessions until EndSession or Close.
type ServiceConfig struct {
	Content         *ContentRepository
	Analysis        *AnalysisClient
	Devices         Devices
	DefaultLanguage domain.Language
	DrainTimeout    time.Duration
	SessionTTL      time.Duration
	Metrics         *observe.Metrics
	Logger          *zap.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = domain.LangEnglish
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		content:      cfg.Content,
		analysis:     cfg.Analysis,
		devices:      cfg.Devices,
		defaultLang:  cfg.DefaultLanguage,
		drainTimeout: cfg.DrainTimeout,
		sessionTTL:   cfg.SessionTTL,
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		now:          time.Now,
		sessions:     make(map[string]*sessionEntry),
	}
}

// LoadSurahs fetches the chapter list once. On failure the list stays empty
// and the error is returned for display; the service remains usable.
func (s *Service) LoadSurahs(ctx context.Context) error {
	surahs, err := s.content.Surahs(ctx)
	if err != nil {
		s.log.Error("load surah list", zap.Error(err))
		return fmt.Errorf("load surah list: %w", err)
	}

	s.mu.Lock()
	s.surahs = surahs
	s.mu.Unlock()

	s.log.Info("surah list loaded", zap.Int("count", len(surahs)))
	return nil
}

// Surahs returns all surahs
func (s *Service) Surahs() []domain.Surah {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surahs
}

// Editions returns the selectable translations and reciters
func (s *Service) Editions() domain.EditionTable {
	return s.content.Editions()
}

// OnSession registers fn to run for every session the service creates,
// before the session is handed out.
func (s *Service) OnSession(fn func(userID string, sess *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Session returns the user's session, creating it on first use
func (s *Service) Session(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[userID]; ok {
		e.lastUsed = s.now()
		return e.sess
	}

	capture, output := s.devices(userID)
	sess := NewSession(SessionConfig{
		Content:      s.content,
		Analysis:     s.analysis,
		Capture:      capture,
		Output:       output,
		Language:     s.defaultLang,
		DrainTimeout: s.drainTimeout,
		Metrics:      s.metrics,
		Logger:       s.log.With(zap.String("user_id", userID)),
	})
	for _, fn := range s.hooks {
		fn(userID, sess)
	}
	s.sessions[userID] = &sessionEntry{sess: sess, lastUsed: s.now()}
	s.metrics.ActiveSessions.Add(context.Background(), 1)
	return sess
}

// GetUserLanguage retrieves the user's preferred language
func (s *Service) GetUserLanguage(userID string) domain.Language {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return s.defaultLang
	}
	return e.sess.Snapshot().Language
}

// SetUserLanguage stores the user's preferred language
func (s *Service) SetUserLanguage(userID string, lang domain.Language) {
	s.Session(userID).SetLanguage(lang)
}

// EndSession closes and forgets the user's session
func (s *Service) EndSession(userID string) {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if ok {
		e.sess.Close()
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// ExpireIdle ends sessions that were not used for the session TTL. It runs
// until ctx is done and returns at once when no TTL is configured.
func (s *Service) ExpireIdle(ctx context.Context) {
	if s.sessionTTL <= 0 {
		return
	}

	ticker := time.NewTicker(max(s.sessionTTL/4, minExpiryInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expireIdle(); n > 0 {
				s.log.Info("idle sessions expired", zap.Int("count", n))
			}
		}
	}
}

func (s *Service) expireIdle() int {
	now := s.now()

	s.mu.Lock()
	var idle []*Session
	for userID, e := range s.sessions {
		if now.Sub(e.lastUsed) >= s.sessionTTL {
			idle = append(idle, e.sess)
			delete(s.sessions, userID)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	return len(idle)
}

// Close closes every session
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.sess.Close()
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}
