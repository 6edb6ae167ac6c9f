// Package dataset accumulates successful pattern detections into the
// multi-image dataset consumed by the calibration solver.
package dataset

import (
	"sync"

	"camera-calibration/internal/pattern"
	"camera-calibration/pkg/geometry"

	"github.com/pkg/errors"
)

var (
	// ErrUnsuccessful is returned when adding a failed detection.
	ErrUnsuccessful = errors.New("detection was not successful")
	// ErrPointMismatch is returned when a detection's image and object point
	// counts differ or are zero.
	ErrPointMismatch = errors.New("image and object point counts differ")
)

// ID identifies an accumulated entry. IDs are never reused.
type ID uint64

// Entry is one accumulated detection.
type Entry struct {
	ID        ID
	Detection pattern.Detection
	Shape     geometry.SizeInt
}

// Dataset is an ordered snapshot of the accumulator.
type Dataset struct {
	Entries []Entry
}

// Len returns the number of entries.
func (d Dataset) Len() int {
	return len(d.Entries)
}

// Shapes returns every entry's image shape in order.
func (d Dataset) Shapes() []geometry.SizeInt {
	shapes := make([]geometry.SizeInt, len(d.Entries))
	for i, e := range d.Entries {
		shapes[i] = e.Shape
	}
	return shapes
}

// TotalPoints returns the number of correspondences across all entries.
func (d Dataset) TotalPoints() int {
	n := 0
	for _, e := range d.Entries {
		n += e.Detection.Len()
	}
	return n
}

// Accumulator collects detections in the order they are added. All methods
// are safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	nextID  ID
	entries []Entry
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{nextID: 1}
}

// Add appends det. Shapes are not compared here; the solver rejects mixed
// shapes at calibration time.
func (a *Accumulator) Add(det pattern.Detection, shape geometry.SizeInt) (ID, error) {
	if !det.Success {
		if det.Err != nil {
			return 0, errors.Wrapf(ErrUnsuccessful, "%v", det.Err)
		}
		return 0, ErrUnsuccessful
	}
	if len(det.ImagePoints) == 0 || len(det.ImagePoints) != len(det.ObjectPoints) {
		return 0, errors.Wrapf(ErrPointMismatch, "%d image points, %d object points",
			len(det.ImagePoints), len(det.ObjectPoints))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nextID == 0 {
		a.nextID = 1
	}
	id := a.nextID
	a.nextID++
	a.entries = append(a.entries, Entry{ID: id, Detection: det, Shape: shape})
	return id, nil
}

// Remove deletes the entry with the given ID, leaving the order of the
// others unchanged. It reports whether the entry existed.
func (a *Accumulator) Remove(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, e := range a.entries {
		if e.ID == id {
			a.entries = append(a.entries[:i:i], a.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}

// Len returns the number of entries.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Dataset returns a snapshot. Later Add or Remove calls do not affect it.
func (a *Accumulator) Dataset() Dataset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Dataset{Entries: append([]Entry(nil), a.entries...)}
}
