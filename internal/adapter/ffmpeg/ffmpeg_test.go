package ffmpeg

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/config"
	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "fake")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestMicrophone_Capture(t *testing.T) {
	bin := writeScript(t, `printf 'OggS-head'; read line; printf 'OggS-tail'; exit 0`)
	mic := NewMicrophone(config.CaptureConfig{
		FFmpegPath:   bin,
		StartupGrace: 50 * time.Millisecond,
		StopTimeout:  2 * time.Second,
	}, nil)

	stream, err := mic.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", stream.MimeType())

	done := make(chan []byte)
	go func() {
		var all bytes.Buffer
		for c := range stream.Chunks() {
			all.Write(c)
		}
		done <- all.Bytes()
	}()

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	select {
	case data := <-done:
		assert.Equal(t, "OggS-headOggS-tail", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("chunks channel was not closed")
	}
}

func TestMicrophone_KillsStuckProcess(t *testing.T) {
	bin := writeScript(t, `exec sleep 10`)
	mic := NewMicrophone(config.CaptureConfig{
		FFmpegPath:  bin,
		StopTimeout: 100 * time.Millisecond,
	}, nil)

	stream, err := mic.Open(context.Background())
	require.NoError(t, err)

	start := time.Now()
	assert.NoError(t, stream.Close())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMicrophone_DeviceUnavailable(t *testing.T) {
	mic := NewMicrophone(config.CaptureConfig{FFmpegPath: filepath.Join(t.TempDir(), "missing")}, nil)
	_, err := mic.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	bin := writeScript(t, `echo "Unknown input format: 'pulse'" >&2; exit 1`)
	mic = NewMicrophone(config.CaptureConfig{FFmpegPath: bin, StartupGrace: time.Second}, nil)
	_, err = mic.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
	assert.ErrorContains(t, err, "Unknown input format")
}

func TestPlayer_NaturalEnd(t *testing.T) {
	bin := writeScript(t, `exit 0`)
	p := NewPlayer(bin, nil)

	pb, err := p.Play(context.Background(), domain.AudioSource{URL: "https://cdn.test/1.mp3"})
	require.NoError(t, err)

	select {
	case <-pb.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not end")
	}
	assert.NoError(t, pb.Stop())
}

func TestPlayer_StopAndTempFile(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "input")
	// Records its last argument so the test can check the temp file is gone.
	bin := writeScript(t, `for a; do last="$a"; done; echo "$last" > `+marker+`; exec sleep 10`)
	p := NewPlayer(bin, nil)

	pb, err := p.Play(context.Background(), domain.AudioSource{Data: []byte("OggS"), MimeType: "audio/ogg"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, pb.Stop())
	<-pb.Done()

	raw, err := os.ReadFile(marker)
	require.NoError(t, err)
	tmp := string(bytes.TrimSpace(raw))
	assert.Equal(t, ".ogg", filepath.Ext(tmp))
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestPlayer_Errors(t *testing.T) {
	p := NewPlayer(filepath.Join(t.TempDir(), "missing"), nil)

	_, err := p.Play(context.Background(), domain.AudioSource{})
	assert.Error(t, err)

	_, err = p.Play(context.Background(), domain.AudioSource{URL: "https://cdn.test/1.mp3"})
	assert.Error(t, err)
}
