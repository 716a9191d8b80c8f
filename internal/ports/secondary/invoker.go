package secondary

import "context"

// BackendInvoker abstracts the external backend primitive: execute program
// P with arguments A, return text or fail. Implementations must be safe to
// call twice with the same logical payload (fallback may re-invoke) and
// must return rather than hang when the context deadline expires; the
// invoker does not guarantee the subprocess is reaped on timeout.
type BackendInvoker interface {
	// Invoke runs the backend with the payload and returns its output.
	Invoke(ctx context.Context, backend BackendSpec, payload string) (string, error)

	// Available reports whether the backend's binary can be executed at
	// all (used by diagnostics, not by the orchestration path).
	Available(backend BackendSpec) error
}

// BackendSpec identifies an external backend process to run.
type BackendSpec struct {
	Name    string
	Command string
	Args    []string
}
