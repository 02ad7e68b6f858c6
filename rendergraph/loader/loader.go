// Package loader models the asset-loading collaborator spec.md §5
// names but leaves untested: a single background worker draining a
// producer/consumer queue of image-load jobs, grounded on the
// teacher's own staging-buffer channel pattern in
// engine/texture/staging.go, generalised to an explicit job/result
// channel pair instead of a fixed worker-count buffer pool.
package loader

import "io"

// Job describes one image load a producer wants performed off the
// recording thread.
type Job struct {
	Name   string
	Open   func() (io.ReadCloser, error)
	Result chan<- Result
}

// Result is delivered on a Job's Result channel once the worker has
// read (or failed to read) the image bytes. A Shutdown drains every
// outstanding Job with an empty Result carrying Err set to
// ErrShutdown, rather than leaving producers blocked forever.
type Result struct {
	Name string
	Data []byte
	Err  error
}

// ErrShutdown is the Err value a Result carries when Shutdown drained
// its Job before the worker could run it.
var ErrShutdown = shutdownErr{}

type shutdownErr struct{}

func (shutdownErr) Error() string { return "loader: worker shut down before job ran" }

// Worker runs one background goroutine that executes Jobs in the
// order they arrive.
type Worker struct {
	jobs chan Job
	done chan struct{}
}

// NewWorker starts a Worker with the given job-queue depth.
func NewWorker(queueDepth int) *Worker {
	w := &Worker{jobs: make(chan Job, queueDepth), done: make(chan struct{})}
	go w.run()
	return w
}

// Submit enqueues job, blocking if the queue is full.
func (w *Worker) Submit(job Job) { w.jobs <- job }

func (w *Worker) run() {
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			select {
			case <-w.done:
				job.Result <- Result{Name: job.Name, Err: ErrShutdown}
				w.drain()
				return
			default:
			}
			job.Result <- runJob(job)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func runJob(job Job) Result {
	rc, err := job.Open()
	if err != nil {
		return Result{Name: job.Name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Result{Name: job.Name, Err: err}
	}
	return Result{Name: job.Name, Data: data}
}

// drain empties the job queue with ErrShutdown results, so producers
// blocked on a Result read are released instead of hanging forever.
func (w *Worker) drain() {
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			job.Result <- Result{Name: job.Name, Err: ErrShutdown}
		default:
			return
		}
	}
}

// Shutdown signals the worker to stop accepting new work and drain
// whatever is already queued, matching spec.md §5's graceful-
// shutdown flag.
func (w *Worker) Shutdown() {
	close(w.done)
	close(w.jobs)
}
