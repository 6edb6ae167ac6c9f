package detect

import (
	"context"
	"image"
	"runtime"
	"sync"

	"camera-calibration/internal/pattern"
)

// Job is one image to run detection on. The pool takes ownership of Image.
type Job struct {
	ID    uint64
	Image image.Image
	Spec  pattern.Spec
}

// Result pairs a job's ID with its detection.
type Result struct {
	ID        uint64
	Detection pattern.Detection
}

// Pool runs detections on a bounded number of workers.
type Pool struct {
	det     *Detector
	workers int
}

// NewPool creates a pool. A non-positive worker count means one per CPU.
func NewPool(det *Detector, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{det: det, workers: workers}
}

// Workers returns the pool's concurrency.
func (p *Pool) Workers() int {
	return p.workers
}

// Run consumes jobs until the channel closes or ctx is done. Results arrive
// in completion order; the returned channel closes once every worker exits.
func (p *Pool) Run(ctx context.Context, jobs <-chan Job) <-chan Result {
	out := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					res := Result{ID: job.ID, Detection: p.det.Detect(job.Image, job.Spec)}
					select {
					case out <- res:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// DetectAll runs detection over images and returns the results indexed like
// the input.
func (p *Pool) DetectAll(ctx context.Context, images []image.Image, spec pattern.Spec) []pattern.Detection {
	jobs := make(chan Job)
	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- Job{ID: uint64(i), Image: img, Spec: spec}:
			case <-ctx.Done():
				return
			}
		}
	}()

	dets := make([]pattern.Detection, len(images))
	for res := range p.Run(ctx, jobs) {
		dets[res.ID] = res.Detection
	}
	return dets
}
