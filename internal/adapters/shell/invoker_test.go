package shell

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/warden/internal/ports/secondary"
)

func TestInvoke_PayloadOnStdin(t *testing.T) {
	inv := NewInvoker()

	out, err := inv.Invoke(context.Background(), secondary.BackendSpec{
		Name:    "echoer",
		Command: "cat",
	}, "hello backend")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "hello backend" {
		t.Errorf("output = %q, want the payload echoed back", out)
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	inv := NewInvoker()

	_, err := inv.Invoke(context.Background(), secondary.BackendSpec{
		Name:    "broken",
		Command: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 3"},
	}, "")
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want it to carry stderr", err)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	inv := NewInvoker()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := inv.Invoke(ctx, secondary.BackendSpec{
		Name:    "sleeper",
		Command: "sleep",
		Args:    []string{"10"},
	}, "")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want a timeout message", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Invoke did not return promptly on context expiry")
	}
}

func TestAvailable(t *testing.T) {
	inv := NewInvoker()

	if err := inv.Available(secondary.BackendSpec{Name: "echoer", Command: "cat"}); err != nil {
		t.Errorf("Available(cat): %v", err)
	}
	if err := inv.Available(secondary.BackendSpec{Name: "ghost", Command: "warden-no-such-binary"}); err == nil {
		t.Error("expected an error for a missing binary")
	}
}
