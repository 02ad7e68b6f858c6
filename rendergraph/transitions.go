package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// transitionPlanner decides when a resource's next use needs a
// pipeline barrier or image layout transition, per spec.md §4.1. It
// holds no state of its own: the access history lives on each Image
// and Buffer, and the planner only compares the recorded access
// against the access a command is about to make.
type transitionPlanner struct{}

// stageBuffer records that a command is about to access b with next,
// returning the driver.Barrier to emit first, or nil if the prior
// access already satisfies next (a read following a read needs
// nothing beyond the sync-scope union already recorded).
func (p *transitionPlanner) stageBuffer(b *Buffer, next access) *driver.Barrier {
	cur := b.acc
	if !needsBarrier(cur, next, forceSyncBuffer) {
		b.acc = cur.merge(next)
		return nil
	}
	bar := &driver.Barrier{
		SyncBefore:   cur.sync,
		SyncAfter:    next.sync,
		AccessBefore: cur.mask,
		AccessAfter:  next.mask,
	}
	b.acc = next
	return bar
}

// stageImageWhole records a transition across every subresource of
// img, used for operations (clears, full-image copies) that touch
// the whole image uniformly. It lazily creates and caches a
// full-range view on img to carry in the resulting driver.Transition.
func (p *transitionPlanner) stageImageWhole(gpu driver.GPU, img *Image, next access) (*driver.Transition, error) {
	native, err := img.ensureWholeView(gpu)
	if err != nil {
		return nil, err
	}
	return p.stageImageRange(img, 0, img.layers, 0, img.levels, next, native), nil
}

// stageImageView records a transition across the subresource range a
// view addresses, and returns the driver.Transition to emit first,
// or nil if every addressed subresource already satisfies next. A
// view with no owning Image (a swap chain view) tracks its access
// directly rather than through per-subresource bookkeeping.
func (p *transitionPlanner) stageImageView(v *ImageView, next access) *driver.Transition {
	if v.img == nil {
		cur := *v.swapAccess
		if !needsBarrier(cur, next, forceSyncImage) {
			*v.swapAccess = cur.merge(next)
			return nil
		}
		*v.swapAccess = next
		return &driver.Transition{
			Barrier: driver.Barrier{
				SyncBefore:   cur.sync,
				SyncAfter:    next.sync,
				AccessBefore: cur.mask,
				AccessAfter:  next.mask,
			},
			LayoutBefore: cur.layout,
			LayoutAfter:  next.layout,
			IView:        v.native,
		}
	}
	return p.stageImageRange(v.img, v.layer, v.layers, v.level, v.levels, next, v.native)
}

func (p *transitionPlanner) stageImageRange(img *Image, layer, layers, level, levels int, next access, native driver.ImageView) *driver.Transition {
	changed := false
	var rep access
	for l := layer; l < layer+layers; l++ {
		for m := level; m < level+levels; m++ {
			cur := img.accessAt(l, m)
			if needsBarrier(cur, next, forceSyncImage) {
				changed = true
				rep = cur
				img.setAccessAt(l, m, next)
			} else {
				img.setAccessAt(l, m, cur.merge(next))
			}
		}
	}
	if !changed {
		return nil
	}
	return &driver.Transition{
		Barrier: driver.Barrier{
			SyncBefore:   rep.sync,
			SyncAfter:    next.sync,
			AccessBefore: rep.mask,
			AccessAfter:  next.mask,
		},
		LayoutBefore: rep.layout,
		LayoutAfter:  next.layout,
		IView:        native,
	}
}
