package rendergraph

import "sync"

// graveyard implements deferred destruction: every resource routed
// through Destroy is buried here under the batch index that was
// current at the time, and cleanup pops every batch whose owning
// queues have all passed the corresponding timeline value.
type graveyard struct {
	mu      sync.Mutex
	batches map[batchIndex][]destroyedObj
}

type destroyedObj struct {
	d interface{ Destroy() }
}

func (g *graveyard) init() {
	g.batches = make(map[batchIndex][]destroyedObj)
}

// bury appends obj to the graveyard for the given batch. Safe to
// call from any goroutine: concurrent callers are serialised by the
// mutex, per spec.md §5's "atomic push into the graveyard" option.
func (g *graveyard) bury(batch batchIndex, obj interface{ Destroy() }) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches[batch] = append(g.batches[batch], destroyedObj{obj})
}

// pending reports whether the graveyard holds anything for batch.
func (g *graveyard) pending(batch batchIndex) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.batches[batch]) > 0
}

// cleanup destroys every object belonging to a batch whose every
// queue's timeline semaphore has reached the value that batch
// signaled, per spec.md §4.9.
func (g *graveyard) cleanup(queues []*Queue) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for batch, objs := range g.batches {
		done := true
		for _, q := range queues {
			signaled, ok := q.batchSignal[batch]
			if !ok {
				continue
			}
			v, err := q.timeline.CompletedValue()
			if err != nil || v < signaled {
				done = false
				break
			}
		}
		if !done {
			continue
		}
		for _, o := range objs {
			o.d.Destroy()
		}
		delete(g.batches, batch)
	}
}
