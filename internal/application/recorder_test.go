package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Lifecycle(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	r := NewRecorder(device, time.Second, nil, nil)
	ctx := context.Background()

	assert.Equal(t, RecorderIdle, r.State())
	require.NoError(t, r.Start(ctx))
	assert.Equal(t, RecorderCapturing, r.State())

	assert.True(t, errors.Is(r.Start(ctx), domain.ErrAlreadyCapturing))

	stream := device.last()
	stream.chunks <- []byte("OggS-1")
	stream.chunks <- []byte("OggS-2")

	payload, err := r.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, RecorderFinalizing, r.State())
	assert.True(t, stream.closed.Load())

	assert.Equal(t, "OggS-1OggS-2", string(payload.Data))
	assert.Equal(t, 2, payload.Chunks)
	assert.Equal(t, "audio/ogg", payload.MimeType)
	assert.NotEmpty(t, payload.ID)
	assert.False(t, payload.CapturedAt.IsZero())

	r.Dispatched()
	assert.Equal(t, RecorderIdle, r.State())
}

func TestRecorder_StopWhenIdle(t *testing.T) {
	t.Parallel()

	r := NewRecorder(&fakeDevice{}, time.Second, nil, nil)
	_, err := r.Stop(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotCapturing))
}

func TestRecorder_DeviceFailure(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{err: errors.New("permission denied")}
	r := NewRecorder(device, time.Second, nil, nil)

	err := r.Start(context.Background())
	assert.True(t, errors.Is(err, domain.ErrDeviceUnavailable))
	assert.Equal(t, RecorderIdle, r.State())

	device.setErr(nil)
	assert.NoError(t, r.Start(context.Background()))
}

func TestRecorder_Abort(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{}
	r := NewRecorder(device, time.Second, nil, nil)
	require.NoError(t, r.Start(context.Background()))

	r.Abort()
	assert.Equal(t, RecorderIdle, r.State())
	assert.True(t, device.last().closed.Load())

	_, err := r.Stop(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotCapturing))

	// a fresh capture starts empty
	require.NoError(t, r.Start(context.Background()))
	payload, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, payload.Empty())
}

func TestRecorder_DrainTimeout(t *testing.T) {
	t.Parallel()

	device := &fakeDevice{stuck: true}
	r := NewRecorder(device, 50*time.Millisecond, nil, nil)
	require.NoError(t, r.Start(context.Background()))

	start := time.Now()
	_, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRecorderState_String(t *testing.T) {
	assert.Equal(t, "idle", RecorderIdle.String())
	assert.Equal(t, "capturing", RecorderCapturing.String())
	assert.Equal(t, "finalizing", RecorderFinalizing.String())
	assert.Equal(t, "RecorderState(7)", RecorderState(7).String())
}
