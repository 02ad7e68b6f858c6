package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// ExecuteAll runs the two-phase batch described by spec.md §4.8:
// every queue is fully prepared, flushed, recorded and submitted in
// turn, strictly in Context.Queues() order, before the next queue's
// commands are even prepared. Dependency.acquire relies on this
// ordering: a queue that released a Dependency updates its
// lastSignaled field during its own submission, which must therefore
// happen before any later queue's acquire reads it (see dependency.go).
//
// A programmer mistake caught mid-batch (usagef) unwinds as a panic
// carrying a *UsageError; ExecuteAll recovers it and returns it as a
// plain error instead of crashing the host, per errors.go's policy.
func (c *Context) ExecuteAll() (err error) {
	c.beginRecording("Context.ExecuteAll")
	defer c.endRecording()
	defer func() {
		if r := recover(); r != nil {
			if ue, ok := r.(*UsageError); ok {
				err = ue
				return
			}
			panic(r)
		}
	}()

	batch := c.currentBatch
	var allTimers []TimerResult

	for _, q := range c.queues {
		if err := c.executeQueue(q, batch); err != nil {
			return err
		}
		if len(q.timerResults) > 0 {
			allTimers = append(allTimers, q.timerResults...)
			q.timerResults = nil
			q.timerIndex = nil
		}
	}

	c.currentBatch++
	c.graveyard.cleanup(c.queues)

	if c.OnBatchComplete != nil {
		c.OnBatchComplete(uint64(batch), allTimers)
	}
	return nil
}

// executeQueue runs the pseudo-execution (prepare) phase over q's
// pending commands, flushes its staging rings so their copies record
// ahead of the commands that read them, then records and submits
// everything as a single native command buffer.
func (c *Context) executeQueue(q *Queue, batch batchIndex) error {
	for _, cmd := range q.pending {
		if err := cmd.prepare(c, q); err != nil {
			return err
		}
	}

	// The immediate-constant ring's copy must record before any
	// already-pending command that reads its device buffer directly
	// (via a descriptor binding), so it is prepended.
	if q.immediate != nil {
		before := len(q.pending)
		q.immediate.flush(q)
		prepended := append([]command(nil), q.pending[before:]...)
		q.pending = q.pending[:before]
		for _, cmd := range prepended {
			if err := cmd.prepare(c, q); err != nil {
				return err
			}
		}
		q.pending = append(prepended, q.pending...)
	}

	// The general upload ring's real copies were already pushed by
	// UploadBuffer/UploadImage ahead of this point; its release only
	// needs to trail them, so it is left appended at the tail.
	if q.uploadRing != nil {
		before := len(q.pending)
		q.uploadRing.flush(q)
		for _, cmd := range q.pending[before:] {
			if err := cmd.prepare(c, q); err != nil {
				return err
			}
		}
	}

	if len(q.pending) == 0 {
		q.waits = nil
		return nil
	}

	cb, err := q.native.NewCmdBuffer()
	if err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}
	for _, cmd := range q.pending {
		cmd.record(c, q, cb)
	}
	if err := cb.End(); err != nil {
		return err
	}

	signaled, err := q.native.Submit([]driver.CmdBuffer{cb}, q.waits)
	if err != nil {
		return err
	}
	q.lastSignaled = signaled
	q.batchSignal[batch] = signaled
	q.waits = nil
	q.pending = nil
	return nil
}
