package rendergraph

import "errors"

// Sentinel errors returned from fallible request operations.
// Usage errors (programmer mistakes) are not among these: they
// surface as a panic carrying a *UsageError, per the context's
// error-handling policy (see Context.ExecuteAll).
var (
	ErrOutOfDeviceMemory   = errors.New("rendergraph: out of device memory")
	ErrOutOfDescriptors    = errors.New("rendergraph: descriptor pool exhausted")
	ErrInvalidShader       = errors.New("rendergraph: invalid or missing shader code")
	ErrSwapchainLost       = errors.New("rendergraph: swap chain surface lost")
	ErrTooManyWindows      = errors.New("rendergraph: too many swap chains requested")
	ErrUnreleasedDependency = errors.New("rendergraph: dependency acquired before release")
)

// UsageError reports a programmer error: a violation of the
// context's recording rules (double-present, pass commands outside
// a pass, double-free of a pool token, and similar). The context
// panics with a *UsageError rather than returning one, matching the
// "logs and aborts" policy; callers that must not crash can recover
// at a call boundary (Context.ExecuteAll does this internally and
// returns the UsageError instead of propagating the panic).
type UsageError struct {
	Op       string // operation that detected the violation
	Resource string // debug name of the offending resource, if any
	Msg      string
}

func (e *UsageError) Error() string {
	if e.Resource == "" {
		return "rendergraph: " + e.Op + ": " + e.Msg
	}
	return "rendergraph: " + e.Op + " (" + e.Resource + "): " + e.Msg
}

func usagef(op, resource, msg string) {
	panic(&UsageError{Op: op, Resource: resource, Msg: msg})
}
