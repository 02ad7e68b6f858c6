package rendergraph

import (
	"github.com/volantgpu/rendergraph/driver"
	"github.com/volantgpu/rendergraph/internal/bitvec"
)

// descArraySlot is one entry of a DescArray: either empty, or
// pointing at the image/buffer that currently owns it.
type descArraySlot struct {
	occupied bool
}

// ImageDescArray is a bindless array of image/texture descriptors,
// per spec.md §4.7: clients write individual slots, and the whole
// table is rebuilt lazily, at most once per batch, the first time a
// command actually binds it.
type ImageDescArray struct {
	resourceBase

	typ   driver.DescType
	stage driver.Stage

	views []*ImageView // nil where the slot is empty

	// staged tracks which slots changed since the last flush, one bit
	// per index; hasOverwrites records whether any of those writes
	// replaced an already-occupied slot, which per spec.md §4.7 forces
	// the next flush to wait for every submitted batch before
	// rewriting the table out from under work that may still be
	// reading it.
	staged        bitvec.V[uint32]
	hasOverwrites bool

	heap  driver.DescHeap
	table driver.DescTable
}

// RequestImageDescArray creates an image descriptor array with cap
// slots, per spec.md's request_image_descriptor_array.
func (c *Context) RequestImageDescArray(name string, capacity int, typ driver.DescType, stage driver.Stage) *ImageDescArray {
	a := &ImageDescArray{
		resourceBase: newResourceBase(c, kindImageDescArray, name),
		typ:          typ,
		stage:        stage,
		views:        make([]*ImageView, capacity),
	}
	a.staged.Grow((capacity + 31) / 32)
	c.track(a)
	return a
}

// Write assigns view to slot index, replacing and unlinking whatever
// view previously occupied it. Passing a nil view clears the slot.
func (a *ImageDescArray) Write(index int, view *ImageView) {
	if index < 0 || index >= len(a.views) {
		usagef("ImageDescArray.Write", a.name, "slot index out of range")
	}
	if old := a.views[index]; old != nil {
		old.img.removeBackRef(a, index)
		a.hasOverwrites = true
	}
	a.views[index] = view
	if view != nil {
		view.img.addBackRef(a, index)
	}
	a.staged.Set(index)
}

// clearSlot implements descArrayRef: called when the image backing a
// slot is destroyed out from under the array, it nulls the slot
// without touching the image's own back-reference list (already
// being torn down by the caller).
func (a *ImageDescArray) clearSlot(index int) {
	a.views[index] = nil
	a.staged.Set(index)
}

func (a *ImageDescArray) nativeTable() driver.DescTable { return a.table }

// flushIfNeeded rebuilds the native heap/table if any slot changed
// since the last flush, per spec.md §4.7's "at most once per batch"
// rule: repeated binds of an unmodified array within the same batch
// are free. If any of those changes overwrote an occupied slot, the
// context waits for every submitted batch to finish first, so the
// rewrite never races work still bound to the old descriptor.
func (a *ImageDescArray) flushIfNeeded(q *Queue) {
	if a.staged.Rem() == a.staged.Len() && a.table != nil {
		return
	}
	ctx := q.ctx
	if a.hasOverwrites {
		if err := ctx.WaitIdle(); err != nil {
			usagef("ImageDescArray.flushIfNeeded", a.name, "wait idle before overwrite failed")
		}
		a.hasOverwrites = false
	}
	descs := []driver.Descriptor{{Type: a.typ, Stages: a.stage, Nr: 0, Len: len(a.views)}}
	heap, err := ctx.gpu.NewDescHeap(descs)
	if err != nil {
		usagef("ImageDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		usagef("ImageDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	for i, v := range a.views {
		if v == nil {
			continue
		}
		heap.SetImage(0, 0, i, []driver.ImageView{v.native})
		q.stageBindingAccess(EphemeralBinding{Type: a.typ, View: v})
	}
	table, err := ctx.gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		heap.Destroy()
		usagef("ImageDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	if a.heap != nil {
		ctx.graveyard.bury(ctx.currentBatch, a.heap)
		ctx.graveyard.bury(ctx.currentBatch, a.table)
	}
	a.heap, a.table = heap, table
	a.staged.Clear()
}

func (a *ImageDescArray) Destroy() {
	ctx := a.resourceBase.ctx
	for _, v := range a.views {
		if v != nil {
			v.img.removeBackRefsForArray(a)
		}
	}
	a.views = nil
	if a.heap != nil {
		ctx.graveyard.bury(ctx.currentBatch, a.heap)
		ctx.graveyard.bury(ctx.currentBatch, a.table)
	}
}

// BufferDescArray is the buffer-descriptor analogue of
// ImageDescArray, for read/write or constant buffer arrays.
type BufferDescArray struct {
	resourceBase

	typ   driver.DescType
	stage driver.Stage

	bufs  []*Buffer
	offs  []int64
	sizes []int64

	staged        bitvec.V[uint32]
	hasOverwrites bool

	heap  driver.DescHeap
	table driver.DescTable
}

// RequestBufferDescArray creates a buffer descriptor array with cap
// slots.
func (c *Context) RequestBufferDescArray(name string, capacity int, typ driver.DescType, stage driver.Stage) *BufferDescArray {
	a := &BufferDescArray{
		resourceBase: newResourceBase(c, kindBufferDescArray, name),
		typ:          typ,
		stage:        stage,
		bufs:         make([]*Buffer, capacity),
		offs:         make([]int64, capacity),
		sizes:        make([]int64, capacity),
	}
	a.staged.Grow((capacity + 31) / 32)
	c.track(a)
	return a
}

func (a *BufferDescArray) Write(index int, buf *Buffer, off, size int64) {
	if index < 0 || index >= len(a.bufs) {
		usagef("BufferDescArray.Write", a.name, "slot index out of range")
	}
	if old := a.bufs[index]; old != nil {
		old.removeBackRef(a, index)
		a.hasOverwrites = true
	}
	a.bufs[index], a.offs[index], a.sizes[index] = buf, off, size
	if buf != nil {
		buf.addBackRef(a, index)
	}
	a.staged.Set(index)
}

func (a *BufferDescArray) clearSlot(index int) {
	a.bufs[index] = nil
	a.staged.Set(index)
}

func (a *BufferDescArray) nativeTable() driver.DescTable { return a.table }

// flushIfNeeded mirrors ImageDescArray.flushIfNeeded: rebuild at most
// once per batch, waiting the device idle first if any staged write
// overwrote an occupied slot.
func (a *BufferDescArray) flushIfNeeded(q *Queue) {
	if a.staged.Rem() == a.staged.Len() && a.table != nil {
		return
	}
	ctx := q.ctx
	if a.hasOverwrites {
		if err := ctx.WaitIdle(); err != nil {
			usagef("BufferDescArray.flushIfNeeded", a.name, "wait idle before overwrite failed")
		}
		a.hasOverwrites = false
	}
	descs := []driver.Descriptor{{Type: a.typ, Stages: a.stage, Nr: 0, Len: len(a.bufs)}}
	heap, err := ctx.gpu.NewDescHeap(descs)
	if err != nil {
		usagef("BufferDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	if err := heap.New(1); err != nil {
		heap.Destroy()
		usagef("BufferDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	for i, b := range a.bufs {
		if b == nil {
			continue
		}
		if err := b.ensureNative(ctx.gpu); err != nil {
			heap.Destroy()
			usagef("BufferDescArray.flushIfNeeded", a.name, "allocation failed")
		}
		heap.SetBuffer(0, 0, i, []driver.Buffer{b.native}, []int64{a.offs[i]}, []int64{a.sizes[i]})
		q.stageBindingAccess(EphemeralBinding{Type: a.typ, Buf: b})
	}
	table, err := ctx.gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		heap.Destroy()
		usagef("BufferDescArray.flushIfNeeded", a.name, "out of descriptors")
	}
	if a.heap != nil {
		ctx.graveyard.bury(ctx.currentBatch, a.heap)
		ctx.graveyard.bury(ctx.currentBatch, a.table)
	}
	a.heap, a.table = heap, table
	a.staged.Clear()
}

func (a *BufferDescArray) Destroy() {
	ctx := a.resourceBase.ctx
	for _, b := range a.bufs {
		if b != nil {
			b.removeBackRefsForArray(a)
		}
	}
	a.bufs = nil
	if a.heap != nil {
		ctx.graveyard.bury(ctx.currentBatch, a.heap)
		ctx.graveyard.bury(ctx.currentBatch, a.table)
	}
}
