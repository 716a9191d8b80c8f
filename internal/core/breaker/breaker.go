// Package breaker implements the per-backend circuit breaker registry.
//
// Each named backend gets one finite state machine:
//
//   - Closed: normal operation, calls allowed. Failures accumulate.
//   - Open: after FailureThreshold consecutive failures, calls are refused
//     until the reset timeout elapses.
//   - HalfOpen: exactly one probe call is granted to test recovery.
//
// All in-memory transitions run synchronously under one mutex; persistence
// is an asynchronous best-effort write-through so that a slow or broken
// store never blocks a call decision.
package breaker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// State is the breaker state for one backend.
type State int

const (
	// StateClosed allows calls through.
	StateClosed State = iota
	// StateOpen refuses calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single recovery probe.
	StateHalfOpen
)

// String returns the persisted wire form of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// parseState parses a persisted state string, defaulting to closed for
// anything unrecognized (a corrupt row must not brick a backend).
func parseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "half_open":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Settings tunes the registry per deployment.
type Settings struct {
	// FailureThreshold is the number of consecutive failures before a
	// circuit opens.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before granting a
	// recovery probe.
	ResetTimeout time.Duration
}

// DefaultSettings returns the stock tuning: 5 failures, 60s reset.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// backendState is the registry's in-memory record for one backend.
// Mutated only under Registry.mu.
type backendState struct {
	state           State
	failureCount    int
	lastFailureTime time.Time
	probeInFlight   bool
}

// Registry tracks breaker state for every backend name it has seen.
// Backends are created lazily on first reference, starting closed. The
// registry is safe for concurrent use; transitions for the same backend
// are serialized by the mutex, different backends are independent.
type Registry struct {
	settings Settings
	store    secondary.HealthStore

	mu       sync.Mutex
	backends map[string]*backendState

	persistWG sync.WaitGroup

	// now is a test seam; production registries use time.Now.
	now func() time.Time
}

// NewRegistry constructs a registry and loads previously persisted state
// so backend health survives process restarts. A load failure is surfaced
// rather than silently starting with zero knowledge of a known-bad backend.
func NewRegistry(ctx context.Context, store secondary.HealthStore, settings Settings) (*Registry, error) {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = DefaultSettings().FailureThreshold
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = DefaultSettings().ResetTimeout
	}

	r := &Registry{
		settings: settings,
		store:    store,
		backends: make(map[string]*backendState),
		now:      time.Now,
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load breaker state: %w", err)
	}
	for _, rec := range records {
		st := &backendState{
			state:        parseState(rec.State),
			failureCount: rec.FailureCount,
		}
		if rec.LastFailureTime > 0 {
			st.lastFailureTime = time.UnixMilli(rec.LastFailureTime)
		}
		r.backends[rec.Backend] = st
	}

	return r, nil
}

// IsAvailable reports whether the backend may be called right now.
//
// This is a MUTATING READ: the first check after an open circuit's reset
// timeout elapses transitions it to half-open and grants exactly one
// probe as a side effect. While that probe is unresolved, further checks
// return false (strict single-probe).
func (r *Registry) IsAvailable(backend string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.get(backend)
	switch st.state {
	case StateClosed:
		return true

	case StateOpen:
		if r.now().Sub(st.lastFailureTime) >= r.settings.ResetTimeout {
			st.state = StateHalfOpen
			st.probeInFlight = true
			r.persist(backend, st)
			return true
		}
		return false

	case StateHalfOpen:
		// A half-open state loaded from storage at startup has no probe
		// outstanding, so the first check after a restart grants one.
		if !st.probeInFlight {
			st.probeInFlight = true
			return true
		}
		return false
	}

	return false
}

// OnSuccess records a successful call to the backend.
func (r *Registry) OnSuccess(backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.get(backend)
	switch st.state {
	case StateClosed:
		if st.failureCount != 0 {
			st.failureCount = 0
			r.persist(backend, st)
		}
	case StateHalfOpen:
		st.state = StateClosed
		st.failureCount = 0
		st.probeInFlight = false
		r.persist(backend, st)
	case StateOpen:
		// A success report while open means the caller bypassed the
		// availability check; the circuit stays open until probed.
	}
}

// OnFailure records a failed call to the backend.
func (r *Registry) OnFailure(backend string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.get(backend)
	st.failureCount++
	st.lastFailureTime = r.now()

	switch st.state {
	case StateClosed:
		if st.failureCount >= r.settings.FailureThreshold {
			st.state = StateOpen
		}
	case StateHalfOpen:
		st.state = StateOpen
		st.probeInFlight = false
	}

	r.persist(backend, st)
}

// Snapshot returns a point-in-time copy of every backend's state for
// dashboards and debugging. It must not be used to drive call decisions;
// IsAvailable is the only authority on availability.
func (r *Registry) Snapshot() map[string]primary.BackendHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]primary.BackendHealth, len(r.backends))
	for name, st := range r.backends {
		out[name] = primary.BackendHealth{
			State:           st.state.String(),
			FailureCount:    st.failureCount,
			LastFailureTime: st.lastFailureTime,
			Available:       st.state == StateClosed,
		}
	}
	return out
}

// Reset clears all breaker state to closed/0 in memory and in the store.
// Test and ops escape hatch.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	r.backends = make(map[string]*backendState)
	r.mu.Unlock()

	if err := r.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted breaker state: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight asynchronous persists and then flushes the
// current state of every backend synchronously. Call before process exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.persistWG.Wait()

	r.mu.Lock()
	records := make([]*secondary.HealthRecord, 0, len(r.backends))
	for name, st := range r.backends {
		records = append(records, r.record(name, st))
	}
	r.mu.Unlock()

	var firstErr error
	for _, rec := range records {
		if err := r.store.Upsert(ctx, rec); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush breaker state for %s: %w", rec.Backend, err)
		}
	}
	return firstErr
}

// get returns the state for a backend, creating it closed/0 on first
// reference. Callers must hold r.mu.
func (r *Registry) get(backend string) *backendState {
	st, ok := r.backends[backend]
	if !ok {
		st = &backendState{state: StateClosed}
		r.backends[backend] = st
	}
	return st
}

// record converts in-memory state to its persisted form. Callers must
// hold r.mu.
func (r *Registry) record(backend string, st *backendState) *secondary.HealthRecord {
	rec := &secondary.HealthRecord{
		Backend:      backend,
		State:        st.state.String(),
		FailureCount: st.failureCount,
	}
	if !st.lastFailureTime.IsZero() {
		rec.LastFailureTime = st.lastFailureTime.UnixMilli()
	}
	return rec
}

// persist fires an asynchronous best-effort write-through for one backend.
// A failed write is logged but never blocks or fails the in-memory
// transition: health tracking is best-effort durable, not transactional.
// Callers must hold r.mu.
func (r *Registry) persist(backend string, st *backendState) {
	rec := r.record(backend, st)
	r.persistWG.Add(1)
	go func() {
		defer r.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.Upsert(ctx, rec); err != nil {
			log.Printf("warden: failed to persist breaker state for %s: %v", backend, err)
		}
	}()
}
