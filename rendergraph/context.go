package rendergraph

import (
	"log"
	"strconv"
	"sync/atomic"

	"github.com/volantgpu/rendergraph/driver"
)

// logger is the package-level sink for non-fatal diagnostics
// (descriptor conflicts, failed presents).
// No structured-logging library appears anywhere in the GPU-domain
// repositories this package was grounded on, so this follows the
// teacher's own use of the standard log package.
var logger = log.Default()

// SetLogger overrides the destination for the context's non-fatal
// diagnostics.
func SetLogger(l *log.Logger) { logger = l }

// destroyer is satisfied by every resourceBase-embedding type.
type destroyer interface {
	Destroy()
}

// Context is the render-graph context: it owns every resource
// request, the transition planner, the content-addressed caches, the
// upload rings, and one or more Queues.
type Context struct {
	gpu    driver.GPU
	queues []*Queue

	currentBatch batchIndex
	recording    atomic.Bool

	graveyard graveyard
	caches    cacheSet
	planner   transitionPlanner

	tracked []destroyer

	sbtSeq atomic.Uint64

	// OnBatchComplete, if set, is invoked at the end of the
	// ExecuteAll call that submitted the batch whose index is
	// passed, with that batch's timer results. ExecuteAll does not
	// wait for the batch's queue timeline values before calling it.
	OnBatchComplete func(batch uint64, timers []TimerResult)
}

// QueueRequest describes one hardware queue to open alongside the
// context, mirroring driver.QueueKind.
type QueueRequest struct {
	Kind driver.QueueKind
}

// New creates a context over gpu, opening one Queue per entry in
// queues (or, if queues is empty, every queue driver.GPU.Queues
// exposes).
func New(gpu driver.GPU, queues ...QueueRequest) (*Context, error) {
	c := &Context{gpu: gpu}
	c.graveyard.init()
	c.caches.init()
	native := gpu.Queues()
	if len(queues) == 0 {
		for _, q := range native {
			c.queues = append(c.queues, newQueue(c, q))
		}
	} else {
		for _, req := range queues {
			for _, q := range native {
				if q.Kind() == req.Kind {
					c.queues = append(c.queues, newQueue(c, q))
					break
				}
			}
		}
	}
	return c, nil
}

// Queues returns every queue opened for this context, in the order
// they were requested.
func (c *Context) Queues() []*Queue { return c.queues }

// Queue returns the first opened queue of the given kind, or nil.
func (c *Context) Queue(k driver.QueueKind) *Queue {
	for _, q := range c.queues {
		if q.kind == k {
			return q
		}
	}
	return nil
}

// track registers a resource so WaitIdle-adjacent bookkeeping (tests
// mostly) can enumerate everything a context created. It does not
// affect lifetime: resources still route through Destroy/graveyard
// independently.
func (c *Context) track(d destroyer) { c.tracked = append(c.tracked, d) }

// WaitIdle blocks until every queue's timeline semaphore reaches its
// last submitted value, then drains every batch graveyard up to and
// including the one that just finished.
func (c *Context) WaitIdle() error {
	for _, q := range c.queues {
		if q.lastSignaled == 0 {
			continue
		}
		if err := q.timeline.Wait(q.lastSignaled); err != nil {
			return err
		}
	}
	c.graveyard.cleanup(c.queues)
	return nil
}

// beginRecording enforces that ExecuteAll is not re-entered while
// already running, standing in for the single-recording-thread
// confinement spec.md §5 describes (a full goroutine-identity check
// is avoided since Go offers no supported way to obtain one; this
// still catches the concurrent-misuse case that matters in practice).
func (c *Context) beginRecording(op string) {
	if !c.recording.CompareAndSwap(false, true) {
		usagef(op, "", "context is already executing a batch")
	}
}

func (c *Context) endRecording() { c.recording.Store(false) }

// nextSBTName returns a unique internal name for a shader binding
// table buffer built on demand by cmdTraceRays.
func (c *Context) nextSBTName() string {
	n := c.sbtSeq.Add(1)
	return "sbt#" + strconv.FormatUint(n, 10)
}
