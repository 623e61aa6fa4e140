package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, content *fakeContent) (*Service, map[string]*fakeDevice) {
	t.Helper()

	devices := make(map[string]*fakeDevice)
	svc := NewService(ServiceConfig{
		Content:  NewContentRepository(content, domain.DefaultEditions(), nil, nil),
		Analysis: NewAnalysisClient(&fakeAnalyzer{}, fakeI18n{}, time.Second, nil, nil),
		Devices: func(userID string) (domain.CaptureDevice, domain.AudioOutput) {
			d := &fakeDevice{}
			devices[userID] = d
			return d, &fakeOutput{}
		},
		DefaultLanguage: domain.LangBengali,
		Logger:          zap.NewNop(),
	})
	t.Cleanup(svc.Close)
	return svc, devices
}

func TestService_LoadSurahs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeContent())
	require.NoError(t, svc.LoadSurahs(context.Background()))

	surahs := svc.Surahs()
	require.Len(t, surahs, 2)
	assert.Equal(t, "Al-Baqara", surahs[1].EnglishName)
}

func TestService_LoadSurahsFailure(t *testing.T) {
	t.Parallel()

	content := newFakeContent()
	content.listErr = errors.New("timeout")
	svc, _ := newTestService(t, content)

	assert.Error(t, svc.LoadSurahs(context.Background()))
	assert.Empty(t, svc.Surahs())

	// sessions still work without the list
	assert.NoError(t, svc.Session("u1").Select(context.Background(), domain.SurahSelection(1)))
}

func TestService_SessionsPerUser(t *testing.T) {
	t.Parallel()

	svc, devices := newTestService(t, newFakeContent())

	a := svc.Session("a")
	assert.Same(t, a, svc.Session("a"))
	b := svc.Session("b")
	assert.NotSame(t, a, b)
	assert.Len(t, devices, 2)

	assert.Equal(t, domain.LangBengali, svc.GetUserLanguage("a"))
	assert.Equal(t, domain.LangBengali, svc.GetUserLanguage("nobody"))
	svc.SetUserLanguage("a", domain.LangArabic)
	assert.Equal(t, domain.LangArabic, svc.GetUserLanguage("a"))
	assert.Equal(t, domain.LangBengali, svc.GetUserLanguage("b"))

	ctx := context.Background()
	require.NoError(t, a.Select(ctx, domain.SurahSelection(1)))
	require.NoError(t, a.StartRecording(ctx))
	stream := devices["a"].last()

	svc.EndSession("a")
	assert.True(t, stream.closed.Load())
	assert.NotSame(t, a, svc.Session("a"))
	assert.Equal(t, domain.LangBengali, svc.GetUserLanguage("a"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestService_ExpireIdle(t *testing.T) {
	t.Parallel()

	svc, devices := newTestService(t, newFakeContent())
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	svc.sessionTTL = time.Hour

	ctx := context.Background()
	idle := svc.Session("idle")
	require.NoError(t, idle.Select(ctx, domain.SurahSelection(1)))
	require.NoError(t, idle.StartRecording(ctx))
	stream := devices["idle"].last()
	active := svc.Session("active")

	clock.Advance(40 * time.Minute)
	assert.Same(t, active, svc.Session("active"))
	assert.Equal(t, 0, svc.expireIdle())

	clock.Advance(20 * time.Minute)
	assert.Equal(t, 1, svc.expireIdle())
	assert.True(t, stream.closed.Load())
	assert.True(t, errors.Is(idle.StartRecording(ctx), domain.ErrSessionClosed))

	assert.Same(t, active, svc.Session("active"))
	assert.NotSame(t, idle, svc.Session("idle"))
}

func TestService_ExpireIdleLoop(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeContent())

	// no TTL: returns at once
	done := make(chan struct{})
	go func() {
		svc.ExpireIdle(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expiry loop ran without a ttl")
	}

	svc.sessionTTL = time.Millisecond
	first := svc.Session("u1")

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		svc.ExpireIdle(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.sessions) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, errors.Is(first.Select(context.Background(), domain.SurahSelection(1)), domain.ErrSessionClosed))

	cancel()
	<-done
}

func TestService_OnSession(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, newFakeContent())

	var seen []string
	svc.OnSession(func(userID string, sess *Session) {
		require.NotNil(t, sess)
		seen = append(seen, userID)
	})

	svc.Session("a")
	svc.Session("a")
	svc.Session("b")
	svc.EndSession("a")
	svc.Session("a")

	assert.Equal(t, []string{"a", "b", "a"}, seen)
}
