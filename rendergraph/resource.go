package rendergraph

// kind tags the closed set of resource kinds this package manages,
// replacing the source engine's polymorphic "resource" base +
// runtime get_type() with a plain enumeration: downcasts are by
// kind tag, not by type assertion chains or RTTI.
type kind int

const (
	kindPool kind = iota
	kindImage2D
	kindImage3D
	kindBuffer
	kindSwapChain
	kindImageDescArray
	kindBufferDescArray
	kindBLAS
	kindTLAS
	kindDependency
	kindCachedDescriptorSet
)

func (k kind) String() string {
	switch k {
	case kindPool:
		return "pool"
	case kindImage2D:
		return "image2d"
	case kindImage3D:
		return "image3d"
	case kindBuffer:
		return "buffer"
	case kindSwapChain:
		return "swap_chain"
	case kindImageDescArray:
		return "image_descriptor_array"
	case kindBufferDescArray:
		return "buffer_descriptor_array"
	case kindBLAS:
		return "blas"
	case kindTLAS:
		return "tlas"
	case kindDependency:
		return "dependency"
	case kindCachedDescriptorSet:
		return "cached_descriptor_set"
	default:
		return "unknown"
	}
}

// resourceBase is embedded by every resource type this package
// exposes. It carries the identity and debug name common to all of
// them; Destroy implementations live on the concrete types since
// each buries a different set of native objects.
type resourceBase struct {
	ctx  *Context
	id   resourceID
	kind kind
	name string
}

func newResourceBase(ctx *Context, k kind, name string) resourceBase {
	return resourceBase{ctx: ctx, id: newResourceID(), kind: k, name: name}
}

// ID returns the resource's unique identifier, stable for its
// lifetime and never reused.
func (r *resourceBase) ID() resourceID { return r.id }

// Name returns the debug name the resource was requested with.
func (r *resourceBase) Name() string { return r.name }
