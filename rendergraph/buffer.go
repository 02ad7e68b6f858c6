package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// Buffer models spec.md's buffer entity: a size, a usage mask, an
// owning pool, one access record, and weak back-references from
// descriptor arrays.
type Buffer struct {
	resourceBase

	size    int64
	usage   driver.Usage
	pool    *Pool
	token   Token
	placed  bool // true when backed by a Pool token rather than its own allocation
	visible bool

	native driver.Buffer
	acc    access

	backRefs []bufferBackRefEntry
}

type bufferBackRefEntry struct {
	arr   descArrayRef
	index int
}

// addBackRef records that the slot index of arr now points at b.
func (b *Buffer) addBackRef(arr descArrayRef, index int) {
	b.backRefs = append(b.backRefs, bufferBackRefEntry{arr: arr, index: index})
}

// removeBackRef drops the (arr, index) back-reference via swap-pop.
func (b *Buffer) removeBackRef(arr descArrayRef, index int) {
	for i, br := range b.backRefs {
		if br.arr == arr && br.index == index {
			last := len(b.backRefs) - 1
			b.backRefs[i] = b.backRefs[last]
			b.backRefs = b.backRefs[:last]
			return
		}
	}
}

// removeBackRefsForArray drops every back-reference pointing at arr.
func (b *Buffer) removeBackRefsForArray(arr descArrayRef) {
	kept := b.backRefs[:0]
	for _, br := range b.backRefs {
		if br.arr != arr {
			kept = append(kept, br)
		}
	}
	b.backRefs = kept
}

// RequestBuffer creates a buffer (spec.md's request_buffer). When
// pool is non-nil the buffer is placed at a sub-allocated range of
// it instead of receiving its own dedicated allocation.
func (c *Context) RequestBuffer(name string, size int64, usage driver.Usage, pool *Pool) *Buffer {
	b := &Buffer{
		resourceBase: newResourceBase(c, kindBuffer, name),
		size:         size,
		usage:        usage,
		pool:         pool,
		acc:          initialBufferAccess,
	}
	c.track(b)
	return b
}

// stagingRowPitchAlign is the platform's row-pitch alignment for a
// dedicated staging buffer, matching the 256-byte row alignment
// driver.BufImgCopy requires of a buffer-to-image copy.
const stagingRowPitchAlign = 256

// StagingMetadata carries the row pitch request_staging_buffer
// computed for its caller, plus the fields write_image_data_to_buffer_tight
// needs to repeat that same padding when writing into the buffer.
type StagingMetadata struct {
	RowPitch int64
	Width    int
	Height   int
	Depth    int
	Format   driver.PixelFmt
}

// RequestStagingBuffer creates a dedicated host-visible buffer sized
// to hold size's extent at format, padded to the platform's row-pitch
// alignment, per spec.md §6.1's request_staging_buffer(name, size,
// format) -> (buffer, row_pitch+metadata, total_size).
func (c *Context) RequestStagingBuffer(name string, size driver.Dim3D, format driver.PixelFmt) (*Buffer, StagingMetadata, int64) {
	rowPitch := alignUp(int64(size.Width)*bytesPerTexel(format), stagingRowPitchAlign)
	total := rowPitch * int64(size.Height) * int64(size.Depth)
	b := &Buffer{
		resourceBase: newResourceBase(c, kindBuffer, name),
		size:         total,
		usage:        driver.UShaderRead,
		acc:          initialBufferAccess,
		visible:      true,
	}
	c.track(b)
	meta := StagingMetadata{RowPitch: rowPitch, Width: size.Width, Height: size.Height, Depth: size.Depth, Format: format}
	return b, meta, total
}

func (b *Buffer) ensureNative(gpu driver.GPU) error {
	if b.native != nil {
		return nil
	}
	if b.pool != nil {
		tok, err := b.pool.Allocate(b.size, 256)
		if err != nil {
			return err
		}
		buf, off := b.pool.Buffer(tok)
		b.token, b.placed = tok, true
		b.native = &placedBuffer{Buffer: buf, off: off, size: b.size}
		return nil
	}
	native, err := gpu.NewBuffer(b.size, b.visible, b.usage)
	if err != nil {
		return ErrOutOfDeviceMemory
	}
	b.native = native
	return nil
}

// Size returns the buffer's requested size in bytes.
func (b *Buffer) Size() int64 { return b.size }

// Visible reports whether the buffer is host-mappable.
func (b *Buffer) Visible() bool { return b.visible }

// Map returns the host-visible byte slice backing the buffer,
// lazily creating the native resource if needed.
func (b *Buffer) Map(gpu driver.GPU) ([]byte, error) {
	if err := b.ensureNative(gpu); err != nil {
		return nil, err
	}
	return b.native.Bytes(), nil
}

// Unmap is a no-op placeholder for symmetry with spec.md's
// map_buffer/unmap_buffer pair: the driver contract exposes
// persistently-mapped host-visible buffers, so there is nothing to
// flush here beyond what FlushToDevice/FlushToHost do explicitly.
func (b *Buffer) Unmap() {}

// FlushToDevice is a no-op placeholder for spec.md's
// flush_mapped_buffer_to_device: every host-visible buffer this
// package creates is coherent, so a host write is already visible to
// the device without an explicit flush.
func (b *Buffer) FlushToDevice() {}

// FlushToHost is a no-op placeholder for spec.md's
// flush_mapped_buffer_to_host, mirroring FlushToDevice for the
// opposite direction: device writes land in coherent memory the host
// can read back immediately once the device is done with them.
func (b *Buffer) FlushToHost() {}

// WriteData copies data into the buffer at the given offset. The
// buffer must be host-visible and already allocated; otherwise
// WriteData is a usage error. Device-local buffers are filled
// through Queue.UploadBuffer instead.
func (b *Buffer) WriteData(data []byte, off int64) {
	if !b.visible || b.native == nil {
		usagef("Buffer.WriteData", b.name, "buffer is not host-visible or not yet allocated")
	}
	copy(b.native.Bytes()[off:], data)
}

// WriteImageDataTight copies tightly-packed pixel data into the
// buffer at off, padding each row out to rowPitch as it writes, per
// spec.md §6.1's write_image_data_to_buffer_tight. It is the
// RequestStagingBuffer counterpart to Queue.UploadImage: the caller
// writes into a staging buffer it owns directly instead of going
// through the upload ring.
func (b *Buffer) WriteImageDataTight(off, rowPitch int64, width, height, depth int, format driver.PixelFmt, data []byte) {
	if !b.visible || b.native == nil {
		usagef("Buffer.WriteImageDataTight", b.name, "buffer is not host-visible or not yet allocated")
	}
	dst := b.native.Bytes()
	srcStride := int64(width) * bytesPerTexel(format)
	rows := int64(height) * int64(depth)
	for row := int64(0); row < rows; row++ {
		dstOff := off + row*rowPitch
		srcOff := row * srcStride
		copy(dst[dstOff:dstOff+srcStride], data[srcOff:srcOff+srcStride])
	}
}

// Destroy defers destruction of the buffer (or, if placed in a pool,
// releases its token) and clears every descriptor-array back-
// reference pointing at it.
func (b *Buffer) Destroy() {
	ctx := b.resourceBase.ctx
	for _, br := range b.backRefs {
		br.arr.clearSlot(br.index)
	}
	b.backRefs = nil
	if b.placed {
		b.pool.Free(&b.token)
		b.placed = false
		b.native = nil
		return
	}
	if b.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, b.native)
		b.native = nil
	}
}

// placedBuffer adapts a Pool chunk's backing driver.Buffer plus an
// offset to look like a dedicated driver.Buffer to the rest of this
// package. Destroy is a no-op: the chunk itself is destroyed by the
// owning Pool, not by the placed view.
type placedBuffer struct {
	driver.Buffer
	off  int64
	size int64
}

func (p *placedBuffer) Destroy() {}

func (p *placedBuffer) Bytes() []byte {
	b := p.Buffer.Bytes()
	if b == nil {
		return nil
	}
	return b[p.off : p.off+p.size]
}

func (p *placedBuffer) Cap() int64 { return p.size }
