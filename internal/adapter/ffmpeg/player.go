package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

// Player plays clips on the local output device with ffplay.
type Player struct {
	path string
	log  *zap.Logger
}

var _ domain.AudioOutput = (*Player)(nil)

func NewPlayer(ffplayPath string, logger *zap.Logger) *Player {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{path: ffplayPath, log: logger.Named("player")}
}

// Play starts the clip. Remote sources are streamed by ffplay itself;
// in-memory payloads are written to a temporary file first.
func (p *Player) Play(ctx context.Context, src domain.AudioSource) (domain.Playback, error) {
	input := src.URL
	var tmpPath string

	if input == "" {
		if len(src.Data) == 0 {
			return nil, fmt.Errorf("empty audio source")
		}
		f, err := os.CreateTemp("", "quran-recite-*"+extension(src.MimeType))
		if err != nil {
			return nil, fmt.Errorf("create temp file: %w", err)
		}
		tmpPath = f.Name()
		if _, err := f.Write(src.Data); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return nil, fmt.Errorf("write temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmpPath)
			return nil, fmt.Errorf("close temp file: %w", err)
		}
		input = tmpPath
	}

	cmd := exec.CommandContext(ctx, p.path,
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		input,
	)
	if err := cmd.Start(); err != nil {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	pb := &playback{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
		p.log.Debug("playback ended", zap.String("input", input), zap.Error(err))
		close(pb.done)
	}()

	return pb, nil
}

type playback struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func (pb *playback) Done() <-chan struct{} {
	return pb.done
}

func (pb *playback) Stop() error {
	pb.once.Do(func() {
		if err := pb.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			pb.err = fmt.Errorf("kill ffplay: %w", err)
			return
		}
		<-pb.done
	})
	return pb.err
}

func extension(mimeType string) string {
	switch mimeType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ""
	}
}
