package rendergraph

import "github.com/volantgpu/rendergraph/driver"

// Image models spec.md's image2d/image3d entity: the two kinds share
// every field, differing only in their kind tag and the Dim3D.Depth
// meaning (always 1 for 2D).
type Image struct {
	resourceBase

	dim     driver.Dim3D
	layers  int
	levels  int
	samples int
	format  driver.PixelFmt
	usage   driver.Usage
	pool    *Pool

	native    driver.Image
	access    []access // indexed by slice*levels+mip
	wholeView driver.ImageView

	// backRefs lists every descriptor array slot currently pointing
	// at any view of this image.
	backRefs []imageBackRefEntry
}

type imageBackRefEntry struct {
	arr   descArrayRef
	index int
}

// addBackRef records that the slot index of arr now points at img.
func (img *Image) addBackRef(arr descArrayRef, index int) {
	img.backRefs = append(img.backRefs, imageBackRefEntry{arr: arr, index: index})
}

// removeBackRef drops the (arr, index) back-reference via swap-pop,
// per spec.md §9's stable-index guidance (no fixup is needed on the
// Image side: unlike a DescArray slot, nothing outside this slice
// addresses a backRefs entry by position).
func (img *Image) removeBackRef(arr descArrayRef, index int) {
	for i, br := range img.backRefs {
		if br.arr == arr && br.index == index {
			last := len(img.backRefs) - 1
			img.backRefs[i] = img.backRefs[last]
			img.backRefs = img.backRefs[:last]
			return
		}
	}
}

// removeBackRefsForArray drops every back-reference pointing at arr,
// used when arr itself is being destroyed and every slot it ever
// occupied must be forgotten regardless of index.
func (img *Image) removeBackRefsForArray(arr descArrayRef) {
	kept := img.backRefs[:0]
	for _, br := range img.backRefs {
		if br.arr != arr {
			kept = append(kept, br)
		}
	}
	img.backRefs = kept
}

// RequestImage2D creates a 2D image (spec.md's request_image2d).
// The native driver.Image is created lazily on first use by the
// pseudo-execution phase, not here.
func (c *Context) RequestImage2D(name string, width, height, numMips int, format driver.PixelFmt, usage driver.Usage, pool *Pool) *Image {
	return c.requestImage(name, kindImage2D, driver.Dim3D{Width: width, Height: height, Depth: 1}, 1, numMips, format, usage, pool)
}

// RequestImage3D creates a 3D image (spec.md's request_image3d).
func (c *Context) RequestImage3D(name string, width, height, depth, numMips int, format driver.PixelFmt, usage driver.Usage, pool *Pool) *Image {
	return c.requestImage(name, kindImage3D, driver.Dim3D{Width: width, Height: height, Depth: depth}, 1, numMips, format, usage, pool)
}

func (c *Context) requestImage(name string, k kind, dim driver.Dim3D, layers, levels int, format driver.PixelFmt, usage driver.Usage, pool *Pool) *Image {
	if levels < 1 {
		levels = 1
	}
	img := &Image{
		resourceBase: newResourceBase(c, k, name),
		dim:          dim,
		layers:       layers,
		levels:       levels,
		samples:      1,
		format:       format,
		usage:        usage,
		pool:         pool,
	}
	img.access = make([]access, layers*levels)
	for i := range img.access {
		img.access[i] = initialImageAccess
	}
	c.track(img)
	return img
}

// ensureNative lazily creates the backing driver.Image, per spec.md
// §4.8's "lazily initialises every not-yet-backed image" rule.
func (img *Image) ensureNative(gpu driver.GPU) error {
	if img.native != nil {
		return nil
	}
	native, err := gpu.NewImage(img.format, img.dim, img.layers, img.levels, img.samples, img.usage)
	if err != nil {
		return ErrOutOfDeviceMemory
	}
	img.native = native
	return nil
}

// ensureWholeView lazily creates and caches a view spanning every
// subresource of img, used only to give whole-image barriers a
// driver.ImageView to carry.
func (img *Image) ensureWholeView(gpu driver.GPU) (driver.ImageView, error) {
	if img.wholeView != nil {
		return img.wholeView, nil
	}
	if err := img.ensureNative(gpu); err != nil {
		return nil, err
	}
	typ := driver.IView2D
	if img.kind == kindImage3D {
		typ = driver.IView3D
	}
	v, err := img.native.NewView(typ, 0, img.layers, 0, img.levels)
	if err != nil {
		return nil, err
	}
	img.wholeView = v
	return v, nil
}

func (img *Image) subIndex(slice, mip int) int { return slice*img.levels + mip }

// accessAt returns the recorded access for a subresource.
func (img *Image) accessAt(slice, mip int) access { return img.access[img.subIndex(slice, mip)] }

func (img *Image) setAccessAt(slice, mip int, a access) { img.access[img.subIndex(slice, mip)] = a }

// ImageView is a typed view of an Image, tracked so descriptor
// arrays and cached sets can refer to a specific subresource range.
//
// A view returned by SwapChain.Acquire has no owning img: swap chain
// images are recreated whole every resize and never sub-allocated or
// descriptor-array-bound, so their access state is tracked directly
// on the view via swapAccess instead of through an Image's
// per-subresource table.
type ImageView struct {
	img           *Image
	native        driver.ImageView
	layer, layers int
	level, levels int
	width, height int

	swapAccess *access
}

// NewView creates a view over the given subresource range. The
// native driver.ImageView is created eagerly since driver.Image.NewView
// itself requires the native image to already exist.
func (img *Image) NewView(gpu driver.GPU, typ driver.ViewType, layer, layers, level, levels int) (*ImageView, error) {
	if err := img.ensureNative(gpu); err != nil {
		return nil, err
	}
	native, err := img.native.NewView(typ, layer, layers, level, levels)
	if err != nil {
		return nil, err
	}
	return &ImageView{img: img, native: native, layer: layer, layers: layers, level: level, levels: levels, width: img.dim.Width, height: img.dim.Height}, nil
}

// Destroy defers destruction of the image and, transitively, clears
// every descriptor-array back-reference pointing at it, rewriting
// those slots to a null descriptor as spec.md §4.9 requires.
func (img *Image) Destroy() {
	ctx := img.resourceBase.ctx
	for _, br := range img.backRefs {
		br.arr.clearSlot(br.index)
	}
	img.backRefs = nil
	if img.wholeView != nil {
		ctx.graveyard.bury(ctx.currentBatch, img.wholeView)
		img.wholeView = nil
	}
	if img.native != nil {
		ctx.graveyard.bury(ctx.currentBatch, img.native)
		img.native = nil
	}
}

// descArrayRef (declared in descriptors.go) carries the clearSlot
// method Image.Destroy calls above for back-reference teardown; both
// DescArray variants in descarray.go implement it.
