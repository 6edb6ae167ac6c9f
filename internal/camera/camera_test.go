package camera

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource serves a grey frame limit times, then reports no frames.
type fakeSource struct {
	frame  gocv.Mat
	limit  int
	reads  atomic.Int32
	closed atomic.Bool
}

func newFakeSource(limit int) *fakeSource {
	m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(128, 128, 128, 0))
	return &fakeSource{frame: m, limit: limit}
}

func (f *fakeSource) Read(m *gocv.Mat) bool {
	if int(f.reads.Add(1)) > f.limit && f.limit >= 0 {
		return false
	}
	f.frame.CopyTo(m)
	return true
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return f.frame.Close()
}

func TestStreamEndsWhenSourceRunsDry(t *testing.T) {
	src := newFakeSource(3)
	s := NewStream(src)
	frames := s.Start(context.Background())

	var got []Frame
	for f := range frames {
		got = append(got, f)
	}
	assert.Error(t, s.Wait())
	assert.True(t, src.closed.Load())
	require.NotEmpty(t, got)
	assert.Equal(t, 64, got[0].Image.Bounds().Dx())
	assert.Equal(t, 48, got[0].Image.Bounds().Dy())
}

func TestStreamStop(t *testing.T) {
	src := newFakeSource(-1)
	s := NewStream(src)
	frames := s.Start(context.Background())

	select {
	case f := <-frames:
		assert.Equal(t, 0, f.Seq)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
	}
	s.Stop()
	s.Stop()
	for range frames {
	}
	assert.NoError(t, s.Wait())
	assert.True(t, src.closed.Load())
}

func TestStreamContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(newFakeSource(-1))
	frames := s.Start(ctx)
	<-frames
	cancel()
	for range frames {
	}
	assert.NoError(t, s.Wait())
}

func TestWaitWithoutStart(t *testing.T) {
	src := newFakeSource(1)
	defer src.Close()
	s := NewStream(src)

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotStarted)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked on a stream that was never started")
	}
}

func TestStartTwice(t *testing.T) {
	s := NewStream(newFakeSource(2))
	first := s.Start(context.Background())
	second := s.Start(context.Background())

	_, open := <-second
	assert.False(t, open)
	for range first {
	}
	assert.Error(t, s.Wait())
}
