// Package camera grabs frames from capture devices for live calibration.
package camera

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	// ErrDeviceUnavailable is returned when a capture device cannot be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrNotStarted is returned by Wait on a stream that was never started.
	ErrNotStarted = errors.New("stream not started")
)

// maxReadFailures is how many consecutive empty reads end a stream.
const maxReadFailures = 30

// Source is anything frames can be read from. *gocv.VideoCapture
// satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Open opens capture device id.
func Open(id int) (Source, error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d: %v", id, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d", id)
	}
	return vc, nil
}

// ListDevices tries device indices from 0 and returns those that open,
// stopping at the first index that does not or after limit attempts.
func ListDevices(limit int) []int {
	var ids []int
	for id := 0; id < limit; id++ {
		src, err := Open(id)
		if err != nil {
			break
		}
		src.Close()
		ids = append(ids, id)
	}
	return ids
}

// Frame is one grabbed image. Seq counts successful reads from 0.
type Frame struct {
	Seq   int
	Image image.Image
}

// Stream reads frames from a Source on its own goroutine until stopped.
// Stop is cooperative: the loop checks the flag between reads.
type Stream struct {
	src     Source
	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
	err     error
	log     *logrus.Entry
}

// NewStream wraps src. The stream owns src and closes it when the loop ends.
func NewStream(src Source) *Stream {
	return &Stream{
		src:  src,
		done: make(chan struct{}),
		log:  logrus.WithField("component", "camera"),
	}
}

// Start begins reading and returns the frame channel, which is closed when
// the loop ends. Frames are dropped while the consumer is busy. A stream
// can be started once; later calls return a closed channel.
func (s *Stream) Start(ctx context.Context) <-chan Frame {
	out := make(chan Frame, 1)
	if !s.started.CompareAndSwap(false, true) {
		close(out)
		return out
	}
	go func() {
		defer close(s.done)
		defer close(out)
		defer s.src.Close()
		s.err = s.loop(ctx, out)
	}()
	return out
}

func (s *Stream) loop(ctx context.Context, out chan<- Frame) error {
	m := gocv.NewMat()
	defer m.Close()

	seq, failures := 0, 0
	for !s.stopped.Load() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if !s.src.Read(&m) || m.Empty() {
			failures++
			if failures >= maxReadFailures {
				return errors.Errorf("no frame after %d reads", failures)
			}
			continue
		}
		failures = 0

		img, err := m.ToImage()
		if err != nil {
			s.log.WithError(err).Debug("frame conversion failed")
			continue
		}
		select {
		case out <- Frame{Seq: seq, Image: img}:
		default:
			s.log.WithField("seq", seq).Trace("frame dropped")
		}
		seq++
	}
	return nil
}

// Stop asks the loop to finish after the current read.
func (s *Stream) Stop() {
	s.once.Do(func() { s.stopped.Store(true) })
}

// Wait blocks until the loop has ended and returns its error, if any. It
// returns ErrNotStarted at once if Start was never called.
func (s *Stream) Wait() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	<-s.done
	return s.err
}
