package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// defaultRingChunk is the default device-local/host-visible chunk
// size for both staging rings, per spec.md §4.5.
const defaultRingChunk = 4 << 20

func alignUp(off, a int64) int64 {
	if a <= 1 {
		return off
	}
	return (off + a - 1) &^ (a - 1)
}

// bytesPerTexel returns the tightly-packed size of one texel of f,
// used to compute the source stride for write_image_data_to_buffer_tight.
func bytesPerTexel(f driver.PixelFmt) int64 {
	switch f {
	case driver.RGBA32f:
		return 16
	case driver.RG32f, driver.RGBA16f, driver.D32fS8ui:
		return 8
	case driver.R32f, driver.D32f, driver.D24unS8ui, driver.RGBA8un, driver.RGBA8n, driver.RGBA8sRGB, driver.BGRA8un, driver.BGRA8sRGB:
		return 4
	case driver.RG16f:
		return 4
	case driver.RG8un, driver.RG8n, driver.D16un:
		return 2
	case driver.R8un, driver.R8n, driver.S8ui:
		return 1
	default:
		return 4
	}
}

// stagingRing is a bump allocator over a host-visible buffer, chunked
// at chunkSize bytes and released to the graveyard once flushed, per
// spec.md §4.5. When withDev is set the ring also owns a matching
// device-local buffer that flush copies the host bytes into (the
// immediate-constant ring, whose CBVs reference the device buffer
// directly); without it the ring only stages bytes for a caller-
// supplied destination (the general upload ring, where UploadBuffer/
// UploadImage copy straight from the host buffer to the real
// destination).
type stagingRing struct {
	ctx       *Context
	chunkSize int64
	withDev   bool
	devUsage  driver.Usage

	host   *Buffer
	dev    *Buffer
	offset int64

	oneShots []ringOneShot
}

// ringOneShot is either a dedicated oversized allocation or a
// ring generation retired mid-batch by a rollover; both just need
// their own host->dev copy (if withDev) and release at flush time.
type ringOneShot struct {
	host *Buffer
	dev  *Buffer
	size int64
}

func newStagingRing(ctx *Context, chunkSize int64, withDev bool, devUsage driver.Usage) *stagingRing {
	if chunkSize <= 0 {
		chunkSize = defaultRingChunk
	}
	return &stagingRing{ctx: ctx, chunkSize: chunkSize, withDev: withDev, devUsage: devUsage}
}

// alloc reserves size bytes aligned to al, returning the host slice
// to write into plus the buffer/offset the bytes will ultimately
// live at once flush runs (on the host ring itself when withDev is
// false).
func (r *stagingRing) alloc(size, al int64) (host []byte, hostBuf *Buffer, hostOff int64, dev *Buffer, devOff int64, err error) {
	if size > r.chunkSize {
		hs := r.ctx.RequestBuffer("upload.oneshot.host", size, driver.UShaderRead, nil)
		hs.visible = true
		if err = hs.ensureNative(r.ctx.gpu); err != nil {
			return
		}
		var ds *Buffer
		if r.withDev {
			ds = r.ctx.RequestBuffer("upload.oneshot.dev", size, r.devUsage|driver.UShaderWrite, nil)
			if err = ds.ensureNative(r.ctx.gpu); err != nil {
				return
			}
		}
		r.oneShots = append(r.oneShots, ringOneShot{host: hs, dev: ds, size: size})
		bytes, merr := hs.Map(r.ctx.gpu)
		if merr != nil {
			err = merr
			return
		}
		return bytes, hs, 0, ds, 0, nil
	}

	off := alignUp(r.offset, al)
	if r.host == nil || off+size > r.chunkSize {
		if r.host != nil && r.offset > 0 {
			// The current generation is full: retire it for flush
			// under its own real offset before starting a fresh one,
			// so none of its writes are lost when the ring rolls over
			// mid-batch.
			r.oneShots = append(r.oneShots, ringOneShot{host: r.host, dev: r.dev, size: r.offset})
		}
		off = 0
		r.host = r.ctx.RequestBuffer("upload.ring.host", r.chunkSize, driver.UShaderRead, nil)
		r.host.visible = true
		if err = r.host.ensureNative(r.ctx.gpu); err != nil {
			return
		}
		if r.withDev {
			r.dev = r.ctx.RequestBuffer("upload.ring.dev", r.chunkSize, r.devUsage|driver.UShaderWrite, nil)
			if err = r.dev.ensureNative(r.ctx.gpu); err != nil {
				return
			}
		}
	}
	bytes, merr := r.host.Map(r.ctx.gpu)
	if merr != nil {
		err = merr
		return
	}
	r.offset = off + size
	return bytes[off : off+size], r.host, off, r.dev, off, nil
}

// flush releases every buffer the ring allocated this batch to the
// graveyard, per spec.md §4.5's "releases both buffers to the
// graveyard" rule. For a withDev ring (the immediate-constant ring)
// this pushes a host->device copy per generation, each carrying its
// own buffers to release once recorded; Context.executeQueue must
// move these copies ahead of whatever already-pending command reads
// the device buffer. For a host-only ring (the general upload ring)
// the real copies were already pushed directly by UploadBuffer/
// UploadImage, so flush only needs to push a trailing release of the
// host buffers — safe to leave at the tail of q.pending, since
// nothing after it can still read them.
func (r *stagingRing) flush(q *Queue) {
	if r.host != nil && r.offset > 0 {
		if r.withDev {
			q.push(&cmdCopyBuffer{from: r.host, to: r.dev, size: r.offset, releaseAfter: []*Buffer{r.host, r.dev}})
		} else {
			q.push(&cmdReleaseBuffers{bufs: []*Buffer{r.host}})
		}
	}
	var trailingRelease []*Buffer
	for _, os := range r.oneShots {
		if r.withDev && os.dev != nil {
			q.push(&cmdCopyBuffer{from: os.host, to: os.dev, size: os.size, releaseAfter: []*Buffer{os.host, os.dev}})
		} else {
			trailingRelease = append(trailingRelease, os.host)
		}
	}
	if len(trailingRelease) > 0 {
		q.push(&cmdReleaseBuffers{bufs: trailingRelease})
	}
	r.host, r.dev, r.offset, r.oneShots = nil, nil, 0, nil
}

// UploadBuffer copies data into dst at dstOff through the general
// upload staging ring, per spec.md §6.1's upload_buffer.
func (q *Queue) UploadBuffer(dst *Buffer, dstOff int64, data []byte) error {
	if q.uploadRing == nil {
		q.uploadRing = newStagingRing(q.ctx, defaultRingChunk, false, 0)
	}
	host, hostBuf, hostOff, _, _, err := q.uploadRing.alloc(int64(len(data)), 16)
	if err != nil {
		return err
	}
	copy(host, data)
	q.CopyBuffer(hostBuf, hostOff, dst, dstOff, int64(len(data)))
	return nil
}

// UploadImage copies tightly-packed pixel data into dst at the given
// subresource and offset, padding each row out to rowPitch as it
// stages it, per spec.md §6.1's write_image_data_to_buffer_tight.
func (q *Queue) UploadImage(dst *Image, layer, level int, off driver.Off3D, size driver.Dim3D, rowPitch int64, data []byte) error {
	if q.uploadRing == nil {
		q.uploadRing = newStagingRing(q.ctx, defaultRingChunk, false, 0)
	}
	srcStride := int64(size.Width) * bytesPerTexel(dst.format)
	rows := int64(size.Height) * int64(size.Depth)
	total := rowPitch * rows
	host, hostBuf, hostOff, _, _, err := q.uploadRing.alloc(total, 512)
	if err != nil {
		return err
	}
	for row := int64(0); row < rows; row++ {
		dstOff := row * rowPitch
		srcOff := row * srcStride
		copy(host[dstOff:dstOff+srcStride], data[srcOff:srcOff+srcStride])
	}
	q.CopyBufferToImage(hostBuf, hostOff, [2]int64{rowPitch / bytesPerTexel(dst.format), int64(size.Height)}, dst, layer, level, off, size)
	return nil
}

// ConstantView addresses a region of the immediate-constant ring's
// device buffer, returned by StageImmediateConstant so callers can
// bind it as a constant-buffer descriptor.
type ConstantView struct {
	Buf *Buffer
	Off int64
}

// StageImmediateConstant reserves size bytes, aligned to align, in
// q's immediate-constant ring and returns a ConstantView addressing
// where they will land on the device once the ring next flushes,
// plus the host-writable slice to fill now, per spec.md §4.5's
// stage_immediate_constant_buffer.
func (q *Queue) StageImmediateConstant(size, align int64) (ConstantView, []byte, error) {
	if q.immediate == nil {
		q.immediate = newStagingRing(q.ctx, defaultRingChunk, true, driver.UShaderConst)
	}
	host, _, _, dev, devOff, err := q.immediate.alloc(size, align)
	if err != nil {
		return ConstantView{}, nil, err
	}
	return ConstantView{Buf: dev, Off: devOff}, host, nil
}

// Uploader is the client-facing constant/asset uploader described by
// spec.md §4.5: it layers a dependency hand-off on top of a plain
// stagingRing so a producer can write data across several calls and
// release everything it staged as one batch-scoped Dependency that
// downstream queues acquire before their first read.
type Uploader struct {
	ring *stagingRing
}

// NewUploader creates an uploader whose ring allocates dedicated
// buffers of chunkSize bytes; it takes no Pool and never allocates
// from one.
func NewUploader(ctx *Context, chunkSize int64) *Uploader {
	return &Uploader{ring: newStagingRing(ctx, chunkSize, true, driver.UShaderConst)}
}

// Stage reserves size bytes (aligned to align) for a constant upload,
// oversized requests falling back to a dedicated one-shot buffer per
// spec.md §4.5, returning the destination view and the host slice to
// fill immediately.
func (u *Uploader) Stage(size, align int64) (ConstantView, []byte, error) {
	host, _, _, dev, devOff, err := u.ring.alloc(size, align)
	if err != nil {
		return ConstantView{}, nil, err
	}
	return ConstantView{Buf: dev, Off: devOff}, host, nil
}

// EndFrame flushes every byte staged since the uploader was created
// (or last EndFrame) onto q and releases dep so that AcquireDependency
// on another queue observes the writes, per spec.md §4.5's explicit
// release_dependency at end_frame.
func (u *Uploader) EndFrame(q *Queue, dep *Dependency) {
	u.ring.flush(q)
	q.ReleaseDependency(dep)
}
