package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/config"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

const (
	mimeOgg       = "audio/ogg"
	readChunkSize = 4096
	chunkBuffer   = 64
)

// Microphone captures the local input device through an ffmpeg subprocess
// that encodes Ogg/Opus to stdout.
type Microphone struct {
	cfg config.CaptureConfig
	log *zap.Logger
}

var _ domain.CaptureDevice = (*Microphone)(nil)

func NewMicrophone(cfg config.CaptureConfig, logger *zap.Logger) *Microphone {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Microphone{cfg: cfg, log: logger.Named("microphone")}
}

func (m *Microphone) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", m.cfg.InputFormat,
		"-i", m.cfg.Device,
		"-ac", "1",
		"-ar", strconv.Itoa(m.cfg.SampleRate),
		"-c:a", "libopus",
		"-f", "ogg",
		"pipe:1",
	}
}

// Open starts ffmpeg. If the process dies within the startup grace window
// the device is reported unavailable.
func (m *Microphone) Open(ctx context.Context) (domain.CaptureStream, error) {
	path, err := exec.LookPath(m.cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	cmd := exec.Command(path, m.args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 1024}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", domain.ErrDeviceUnavailable, err)
	}

	s := &captureStream{
		cmd:         cmd,
		stdin:       stdin,
		chunks:      make(chan []byte, chunkBuffer),
		quit:        make(chan struct{}),
		exited:      make(chan struct{}),
		stopTimeout: m.cfg.StopTimeout,
		log:         m.log,
	}
	go s.run(stdout)

	if m.cfg.StartupGrace > 0 {
		timer := time.NewTimer(m.cfg.StartupGrace)
		defer timer.Stop()

		select {
		case <-s.exited:
			return nil, fmt.Errorf("%w: ffmpeg exited: %v: %s", domain.ErrDeviceUnavailable, s.waitErr, stderr.String())
		case <-ctx.Done():
			s.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	m.log.Debug("capture started", zap.Int("pid", cmd.Process.Pid))
	return s, nil
}

type captureStream struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	chunks      chan []byte
	quit        chan struct{}
	exited      chan struct{}
	waitErr     error
	stopTimeout time.Duration
	log         *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *captureStream) run(stdout io.Reader) {
	defer close(s.exited)

	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.quit:
				// Nobody is draining anymore; keep reading until EOF.
			}
		}
		if err != nil {
			break
		}
	}
	close(s.chunks)
	s.waitErr = s.cmd.Wait()
}

func (s *captureStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *captureStream) MimeType() string {
	return mimeOgg
}

// Close asks ffmpeg to finish the container, then kills it after the stop
// timeout.
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		select {
		case <-s.exited:
			return
		default:
		}

		// ffmpeg finalizes the Ogg stream on "q".
		_, _ = io.WriteString(s.stdin, "q\n")
		_ = s.stdin.Close()

		timer := time.NewTimer(s.stopTimeout)
		defer timer.Stop()

		select {
		case <-s.exited:
		case <-timer.C:
			s.log.Warn("ffmpeg did not stop in time, killing")
			close(s.quit)
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.closeErr = fmt.Errorf("kill ffmpeg: %w", err)
			}
			<-s.exited
			return
		}
		close(s.quit)
	})
	return s.closeErr
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
