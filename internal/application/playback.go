package application

import (
	"context"
	"sync"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

// Channel is one exclusive playback lane: at most one clip plays on it at
// any time. Sessions use one channel for reference audio and one for the
// user's own recording.
type Channel struct {
	name   string
	output domain.AudioOutput
	onEnd  func()
	log    *zap.Logger

	mu     sync.Mutex
	active *clip
}

type clip struct {
	key string
	pb  domain.Playback
}

// NewChannel creates a channel on output. onEnd, if set, is called after a
// clip ends on its own.
func NewChannel(name string, output domain.AudioOutput, onEnd func(), logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		name:   name,
		output: output,
		onEnd:  onEnd,
		log:    logger.Named("playback").With(zap.String("channel", name)),
	}
}

// Toggle stops the clip if key is already playing. Otherwise it stops
// whatever plays and starts src under key. It reports whether key is
// playing afterwards.
func (c *Channel) Toggle(ctx context.Context, key string, src domain.AudioSource) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.key == key {
		c.stopLocked()
		return false, nil
	}
	c.stopLocked()

	pb, err := c.output.Play(ctx, src)
	if err != nil {
		return false, err
	}

	active := &clip{key: key, pb: pb}
	c.active = active
	go c.watch(active)

	c.log.Debug("clip started", zap.String("key", key))
	return true, nil
}

func (c *Channel) watch(cl *clip) {
	<-cl.pb.Done()

	c.mu.Lock()
	ended := c.active == cl
	if ended {
		c.active = nil
	}
	c.mu.Unlock()

	if ended {
		c.log.Debug("clip ended", zap.String("key", cl.key))
		if c.onEnd != nil {
			c.onEnd()
		}
	}
}

// Stop halts the active clip, if any.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Channel) stopLocked() {
	if c.active == nil {
		return
	}
	if err := c.active.pb.Stop(); err != nil {
		c.log.Warn("stop clip", zap.String("key", c.active.key), zap.Error(err))
	}
	c.active = nil
}

// Active returns the key of the playing clip.
func (c *Channel) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.key, true
}
