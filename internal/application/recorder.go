package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/escalopa/quran-recite-feedback/internal/observe"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const defaultDrainTimeout = 5 * time.Second

// RecorderState is the capture lifecycle state.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderCapturing
	RecorderFinalizing
)

func (s RecorderState) String() string {
	switch s {
	case RecorderIdle:
		return "idle"
	case RecorderCapturing:
		return "capturing"
	case RecorderFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("RecorderState(%d)", int(s))
	}
}

// Recorder owns the capture device for one session. At most one capture is
// active at a time.
type Recorder struct {
	device       domain.CaptureDevice
	drainTimeout time.Duration
	metrics      *observe.Metrics
	log          *zap.Logger

	mu      sync.Mutex
	state   RecorderState
	current *capture
}

// capture accumulates the chunks of one open stream.
type capture struct {
	stream  domain.CaptureStream
	started time.Time
	done    chan struct{}

	mu     sync.Mutex
	chunks [][]byte
	sealed bool
}

func NewRecorder(device domain.CaptureDevice, drainTimeout time.Duration, metrics *observe.Metrics, logger *zap.Logger) *Recorder {
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		device:       device,
		drainTimeout: drainTimeout,
		metrics:      metrics,
		log:          logger.Named("recorder"),
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start opens the device and begins accumulating chunks. A failed open
// leaves the recorder idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecorderCapturing {
		return domain.ErrAlreadyCapturing
	}

	stream, err := r.device.Open(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	c := &capture{
		stream:  stream,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go c.drain()

	r.current = c
	r.state = RecorderCapturing
	r.log.Debug("capture started")
	return nil
}

func (c *capture) drain() {
	defer close(c.done)
	for chunk := range c.stream.Chunks() {
		c.mu.Lock()
		if !c.sealed {
			c.chunks = append(c.chunks, chunk)
		}
		c.mu.Unlock()
	}
}

// seal stops accepting chunks and returns what was accumulated.
func (c *capture) seal() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return c.chunks
}

// Stop releases the device, waits for the remaining chunks and assembles
// them into one payload. The recorder stays in finalizing until
// Dispatched is called.
func (r *Recorder) Stop(ctx context.Context) (*domain.AudioPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderCapturing {
		return nil, domain.ErrNotCapturing
	}

	c := r.current
	r.current = nil
	r.state = RecorderFinalizing

	if err := c.stream.Close(); err != nil {
		r.log.Warn("close capture stream", zap.Error(err))
	}

	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		r.log.Warn("capture stream did not drain in time", zap.Duration("timeout", r.drainTimeout))
	case <-ctx.Done():
	}

	chunks := c.seal()
	payload := &domain.AudioPayload{
		ID:         ulid.Make().String(),
		Data:       bytes.Join(chunks, nil),
		MimeType:   c.stream.MimeType(),
		Chunks:     len(chunks),
		CapturedAt: c.started,
	}

	r.metrics.Recordings.Add(ctx, 1)
	r.log.Debug("capture finalized",
		zap.String("recording_id", payload.ID),
		zap.Int("chunks", payload.Chunks),
		zap.Int("bytes", len(payload.Data)),
	)
	return payload, nil
}

// Dispatched marks the finalized payload as handed to analysis.
func (r *Recorder) Dispatched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecorderFinalizing {
		r.state = RecorderIdle
	}
}

// Abort releases the device and discards any chunks, from any state.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.current; c != nil {
		r.current = nil
		c.seal()
		if err := c.stream.Close(); err != nil {
			r.log.Warn("close capture stream", zap.Error(err))
		}
		r.log.Debug("capture aborted")
	}
	r.state = RecorderIdle
}
