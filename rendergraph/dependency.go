package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// Dependency is a client-visible hand-off token between queues, per
// spec.md §3: ReleaseDependency marks it released by the issuing
// queue, and AcquireDependency on another queue makes that queue's
// submission in this batch wait on the releasing queue's timeline
// value.
//
// Context.ExecuteAll records and submits queues in Context.Queues()
// order; a releasing queue must therefore appear before any queue
// that acquires the same dependency in that order, so its timeline
// value is already current by the time the acquiring queue submits.
type Dependency struct {
	resourceBase

	releasedBy *Queue
	held       bool
}

// RequestDependency creates a dependency token, initially unheld.
func (c *Context) RequestDependency(name string) *Dependency {
	d := &Dependency{resourceBase: newResourceBase(c, kindDependency, name)}
	c.track(d)
	return d
}

func (d *Dependency) Destroy() {}

func (d *Dependency) release(q *Queue) {
	if d.held {
		usagef("ReleaseDependency", d.name, "dependency already released before being acquired")
	}
	d.releasedBy, d.held = q, true
}

// acquire resolves the wait at submission time, after the releasing
// queue's Submit call (earlier in the same ExecuteAll pass) has
// updated its lastSignaled value.
func (d *Dependency) acquire(q *Queue) {
	if !d.held {
		usagef("AcquireDependency", d.name, "dependency acquired before it was released")
	}
	if d.releasedBy != q {
		q.waits = append(q.waits, driver.SemaphoreWait{Semaphore: d.releasedBy.timeline, Value: d.releasedBy.lastSignaled})
	}
	d.held = false
}
