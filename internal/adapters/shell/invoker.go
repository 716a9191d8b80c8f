// Package shell provides the default BackendInvoker: it runs the
// backend's configured binary as a subprocess with the payload on stdin.
//
// The orchestration layer treats this as an opaque primitive - "execute
// program P with arguments A, return text or fail". On context expiry the
// invocation returns an error without waiting for the process to be
// reaped; process cleanup is the operating system's problem, the breaker
// only needs to stop waiting.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/example/warden/internal/ports/secondary"
)

// Invoker implements secondary.BackendInvoker with os/exec.
type Invoker struct{}

// NewInvoker creates a new subprocess invoker.
func NewInvoker() *Invoker {
	return &Invoker{}
}

// Invoke runs the backend binary with the payload on stdin and returns
// combined stdout. Safe to call twice with the same payload.
func (i *Invoker) Invoke(ctx context.Context, backend secondary.BackendSpec, payload string) (string, error) {
	cmd := exec.CommandContext(ctx, backend.Command, backend.Args...)
	cmd.Stdin = strings.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("backend %s timed out: %w", backend.Name, ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("backend %s failed: %w: %s", backend.Name, err, detail)
		}
		return "", fmt.Errorf("backend %s failed: %w", backend.Name, err)
	}

	return stdout.String(), nil
}

// Available reports whether the backend's binary is executable at all.
// Used by diagnostics, never by the orchestration path.
func (i *Invoker) Available(backend secondary.BackendSpec) error {
	_, err := exec.LookPath(backend.Command)
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("backend %s: command %q not found in PATH", backend.Name, backend.Command)
	}
	return err
}

// Ensure Invoker implements the interface
var _ secondary.BackendInvoker = (*Invoker)(nil)
