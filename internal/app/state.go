// Package app provides the calibration session: frames, background
// detection, the accumulated dataset, calibration and events.
package app

import (
	goimage "image"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"camera-calibration/internal/calib"
	"camera-calibration/internal/codec"
	"camera-calibration/internal/config"
	"camera-calibration/internal/dataset"
	"camera-calibration/internal/detect"
	"camera-calibration/internal/image"
	"camera-calibration/internal/pattern"
	"camera-calibration/internal/project"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoResult is returned when saving before a calibration has succeeded.
var ErrNoResult = errors.New("no calibration result")

// FrameID identifies a frame within a session. IDs are never reused, so a
// detection finishing after its frame was removed can be recognised.
type FrameID uint64

// Frame is one image added to the session.
type Frame struct {
	ID        FrameID
	Path      string // empty for captured frames
	Image     goimage.Image
	Thumbnail goimage.Image

	// Detection is nil while detection is pending.
	Detection *pattern.Detection
	// Entry is the dataset entry for a successful detection, 0 otherwise.
	Entry dataset.ID
}

// Pending reports whether detection has not finished yet.
func (f Frame) Pending() bool {
	return f.Detection == nil
}

// Detected reports whether the pattern was found.
func (f Frame) Detected() bool {
	return f.Detection != nil && f.Detection.Success
}

// EventType identifies different session events.
type EventType int

const (
	EventFrameAdded EventType = iota
	EventFrameDetected
	EventFrameRemoved
	EventCleared
	EventCalibrated
	EventCalibrationFailed
	EventResultSaved
	EventProjectLoaded
	EventProjectSaved
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// State holds the session. Listeners run on the goroutine that raised the
// event, which for EventFrameDetected is a detection worker.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Modified    bool

	spec       pattern.Spec
	model      calib.Model
	thumbWidth int

	frames []*Frame
	nextID FrameID
	acc    *dataset.Accumulator
	result *calib.Result

	det     *detect.Detector
	solver  *calib.Solver
	sem     chan struct{}
	pending sync.WaitGroup

	listeners map[EventType][]EventListener
	log       *logrus.Entry
}

// NewState creates a session using the pattern, model and worker settings
// from s.
func NewState(s config.Settings) *State {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &State{
		spec:       s.Pattern,
		model:      s.Model,
		thumbWidth: s.ThumbnailWidth,
		acc:        dataset.NewAccumulator(),
		det:        detect.New(detect.DefaultParams()),
		solver:     calib.NewSolver(calib.DefaultOptions()),
		sem:        make(chan struct{}, workers),
		listeners:  make(map[EventType][]EventListener),
		log:        logrus.WithField("component", "app"),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Pattern returns the target used for new detections.
func (s *State) Pattern() pattern.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// SetPattern changes the target for frames added from now on. Frames
// already detected keep their detections.
func (s *State) SetPattern(spec pattern.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.spec = spec
	s.Modified = true
	s.mu.Unlock()
	return nil
}

// Model returns the lens model used by Calibrate.
func (s *State) Model() calib.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel changes the lens model used by Calibrate.
func (s *State) SetModel(m calib.Model) {
	s.mu.Lock()
	s.model = m
	s.Modified = true
	s.mu.Unlock()
}

// LoadImage decodes the file at path and adds it as a frame.
func (s *State) LoadImage(path string) (FrameID, error) {
	f, err := image.Load(path)
	if err != nil {
		return 0, err
	}
	return s.AddImage(f.Image, path), nil
}

// AddImage adds a frame and starts detecting on it in the background. The
// frame appears in Frames immediately as pending.
func (s *State) AddImage(img goimage.Image, path string) FrameID {
	thumb := image.Thumbnail(img, s.thumbWidth)

	s.mu.Lock()
	s.nextID++
	frame := &Frame{ID: s.nextID, Path: path, Image: img, Thumbnail: thumb}
	s.frames = append(s.frames, frame)
	spec := s.spec
	if path != "" {
		s.Modified = true
	}
	s.mu.Unlock()

	s.Emit(EventFrameAdded, *frame)

	s.pending.Add(1)
	go func(id FrameID) {
		defer s.pending.Done()
		s.sem <- struct{}{}
		det := s.det.Detect(img, spec)
		<-s.sem
		s.finish(id, det)
	}(frame.ID)
	return frame.ID
}

// finish records a detection. Results for frames that no longer exist are
// discarded.
func (s *State) finish(id FrameID, det pattern.Detection) {
	s.mu.Lock()
	frame := s.find(id)
	if frame == nil {
		s.mu.Unlock()
		s.log.WithField("frame", id).Debug("discarding detection for removed frame")
		return
	}
	frame.Detection = &det
	if det.Success {
		entry, err := s.acc.Add(det, det.ImageSize)
		if err != nil {
			s.log.WithError(err).WithField("frame", id).Warn("detection not accumulated")
		}
		frame.Entry = entry
	}
	snapshot := *frame
	s.mu.Unlock()

	entry := s.log.WithFields(logrus.Fields{"frame": id, "path": snapshot.Path})
	if det.Success {
		entry.WithField("points", det.Len()).Info("pattern found")
	} else {
		entry.WithError(det.Err).Info("pattern not found")
	}
	s.Emit(EventFrameDetected, snapshot)
}

func (s *State) find(id FrameID) *Frame {
	for _, f := range s.frames {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Wait blocks until every pending detection has finished.
func (s *State) Wait() {
	s.pending.Wait()
}

// Frames returns a snapshot of the session's frames in insertion order.
func (s *State) Frames() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Frame, len(s.frames))
	for i, f := range s.frames {
		out[i] = *f
	}
	return out
}

// Frame returns the frame with the given ID.
func (s *State) Frame(id FrameID) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.find(id); f != nil {
		return *f, true
	}
	return Frame{}, false
}

// Successful returns how many frames contribute to calibration.
func (s *State) Successful() int {
	return s.acc.Len()
}

// RemoveFrame drops a frame and its dataset entry. A pending detection for
// it is discarded when it completes.
func (s *State) RemoveFrame(id FrameID) bool {
	s.mu.Lock()
	idx := -1
	for i, f := range s.frames {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	frame := s.frames[idx]
	s.frames = append(s.frames[:idx:idx], s.frames[idx+1:]...)
	if frame.Entry != 0 {
		s.acc.Remove(frame.Entry)
	}
	s.Modified = true
	s.mu.Unlock()

	s.Emit(EventFrameRemoved, id)
	return true
}

// Clear removes every frame and the last result.
func (s *State) Clear() {
	s.mu.Lock()
	s.frames = nil
	s.acc.Clear()
	s.result = nil
	s.Modified = true
	s.mu.Unlock()

	s.Emit(EventCleared, nil)
}

// Calibrate solves on the frames detected so far. Detections still pending
// are not waited for.
func (s *State) Calibrate() (*calib.Result, error) {
	ds := s.acc.Dataset()
	model := s.Model()

	res, err := s.solver.Calibrate(ds, model)
	if err != nil {
		s.log.WithError(err).WithField("views", ds.Len()).Warn("calibration failed")
		s.Emit(EventCalibrationFailed, err)
		return nil, err
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	s.Emit(EventCalibrated, res)
	return res, nil
}

// Result returns the last successful calibration, or nil.
func (s *State) Result() *calib.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// SaveResult writes the last result; the format follows the extension.
func (s *State) SaveResult(path string) error {
	res := s.Result()
	if res == nil {
		return ErrNoResult
	}
	if err := codec.SaveFile(path, res); err != nil {
		return err
	}
	s.Emit(EventResultSaved, path)
	return nil
}

// Overlay draws the detection of frame id over its image.
func (s *State) Overlay(id FrameID) (goimage.Image, error) {
	f, ok := s.Frame(id)
	if !ok {
		return nil, errors.Errorf("no frame %d", id)
	}
	if f.Pending() {
		return nil, errors.Errorf("frame %d is still being detected", id)
	}
	return detect.DrawOverlay(f.Image, *f.Detection)
}

// LoadProject replaces the session with the project at path. Images that
// fail to load are logged and skipped; their paths are returned.
func (s *State) LoadProject(path string) ([]string, error) {
	proj, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	model, err := proj.CameraModel()
	if err != nil {
		return nil, errors.Wrapf(err, "project %s", path)
	}

	s.Clear()
	s.mu.Lock()
	s.spec = proj.Pattern
	s.model = model
	s.mu.Unlock()

	var skipped []string
	for _, p := range proj.GetImagePaths(path) {
		if _, err := s.LoadImage(p); err != nil {
			s.log.WithError(err).WithField("path", p).Warn("skipping project image")
			skipped = append(skipped, p)
		}
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectLoaded, path)
	return skipped, nil
}

// SaveProject writes the session to path. Captured frames have no file and
// are not listed.
func (s *State) SaveProject(path, resultPath string) error {
	s.mu.RLock()
	proj := project.New(projectName(path), s.spec, s.model)
	for _, f := range s.frames {
		if f.Path != "" {
			proj.AddImage(path, f.Path)
		}
	}
	s.mu.RUnlock()
	if resultPath != "" {
		proj.SetResultPath(path, resultPath)
	}

	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventProjectSaved, path)
	return nil
}

func projectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
