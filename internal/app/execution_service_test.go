package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/autonomy"
	"github.com/example/warden/internal/core/breaker"
	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// mockInvoker scripts per-backend results and records every invocation.
type mockInvoker struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string

	// blockUntilCancel makes Invoke wait for context expiry instead of
	// returning a scripted result.
	blockUntilCancel bool
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (m *mockInvoker) Invoke(ctx context.Context, spec secondary.BackendSpec, payload string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, spec.Name)
	m.mu.Unlock()

	if m.blockUntilCancel {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := m.errs[spec.Name]; err != nil {
		return "", err
	}
	return m.outputs[spec.Name], nil
}

func (m *mockInvoker) Available(spec secondary.BackendSpec) error {
	return nil
}

func (m *mockInvoker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockAuditLog keeps entries in memory and mirrors the real adapter's
// contract of assigning IDs on append.
type mockAuditLog struct {
	mu        sync.Mutex
	entries   []*secondary.AuditRecord
	outcomes  map[string][2]string
	appendErr error
	nextID    int
}

func newMockAuditLog() *mockAuditLog {
	return &mockAuditLog{outcomes: make(map[string][2]string)}
}

func (m *mockAuditLog) Append(ctx context.Context, record *secondary.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.nextID++
	record.ID = fmt.Sprintf("audit-%d", m.nextID)
	cp := *record
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockAuditLog) SetOutcome(ctx context.Context, id, outcome, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[id] = [2]string{outcome, errMsg}
	return nil
}

func (m *mockAuditLog) List(ctx context.Context, limit int) ([]*secondary.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*secondary.AuditRecord(nil), m.entries...), nil
}

func (m *mockAuditLog) last(t *testing.T) *secondary.AuditRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return m.entries[len(m.entries)-1]
}

// mockMetricsSink records invocation metrics in memory.
type mockMetricsSink struct {
	mu      sync.Mutex
	records []struct {
		backend string
		outcome string
	}
}

func (m *mockMetricsSink) Record(ctx context.Context, backend, outcome string, durationMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, struct {
		backend string
		outcome string
	}{backend, outcome})
	return nil
}

func (m *mockMetricsSink) Summary(ctx context.Context) ([]*secondary.BackendMetrics, error) {
	return nil, nil
}

// nopHealthStore satisfies the registry without persistence.
type nopHealthStore struct{}

func (nopHealthStore) Upsert(ctx context.Context, record *secondary.HealthRecord) error { return nil }
func (nopHealthStore) GetByBackend(ctx context.Context, backend string) (*secondary.HealthRecord, error) {
	return nil, nil
}
func (nopHealthStore) LoadAll(ctx context.Context) ([]*secondary.HealthRecord, error) {
	return nil, nil
}
func (nopHealthStore) DeleteAll(ctx context.Context) error { return nil }

var (
	_ secondary.BackendInvoker = (*mockInvoker)(nil)
	_ secondary.AuditLog       = (*mockAuditLog)(nil)
	_ secondary.MetricsSink    = (*mockMetricsSink)(nil)
	_ secondary.HealthStore    = nopHealthStore{}
)

type fixture struct {
	cfg      *config.Config
	registry *breaker.Registry
	invoker  *mockInvoker
	audit    *mockAuditLog
	metrics  *mockMetricsSink
	service  *ExecutionServiceImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Version: "1",
		Backends: []config.Backend{
			{Name: "claude", Command: "claude", Args: []string{"-p"}},
			{Name: "codex", Command: "codex", Args: []string{"exec"}},
		},
		FailureThreshold: 3,
		DefaultLevel:     "medium",
	}
	registry, err := breaker.NewRegistry(context.Background(), nopHealthStore{}, breaker.Settings{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	f := &fixture{
		cfg:      cfg,
		registry: registry,
		invoker:  newMockInvoker(),
		audit:    newMockAuditLog(),
		metrics:  &mockMetricsSink{},
	}
	f.service = NewExecutionService(cfg, registry, f.invoker, f.audit, f.metrics)
	return f
}

// tripBreaker opens the circuit for a backend by recording threshold failures.
func (f *fixture) tripBreaker(backend string) {
	for i := 0; i < 3; i++ {
		f.registry.OnFailure(backend)
	}
}

func TestExecute_Success(t *testing.T) {
	f := newFixture(t)
	f.invoker.outputs["claude"] = "the answer"

	ctx := ctxutil.WithCaller(context.Background(), "orchestrator")
	result, err := f.service.Execute(ctx, primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "read_only",
		Payload:          "summarize the repo",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.Output != "the answer" || result.BackendUsed != "claude" {
		t.Errorf("result = %+v", result)
	}

	entry := f.audit.last(t)
	if entry.Decision != "allowed" || entry.Caller != "orchestrator" {
		t.Errorf("audit entry = %+v", entry)
	}
	if got := f.audit.outcomes[entry.ID]; got[0] != "success" {
		t.Errorf("audit outcome = %v, want success", got)
	}
	if len(f.metrics.records) != 1 || f.metrics.records[0].outcome != "success" {
		t.Errorf("metrics = %+v", f.metrics.records)
	}
}

func TestExecute_PermissionDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "git_push",
		AutonomyLevel:    "read_only",
		Payload:          "push it",
	})

	var perr *autonomy.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *autonomy.PermissionError", err)
	}
	if f.invoker.callCount() != 0 {
		t.Error("a denied operation must never reach a backend")
	}

	entry := f.audit.last(t)
	if entry.Decision != "denied" || entry.Outcome != "denied" {
		t.Errorf("audit entry = %+v", entry)
	}

	// Denial leaves circuit state untouched.
	if got := f.registry.Snapshot()["claude"].FailureCount; got != 0 {
		t.Errorf("failure count after denial = %d, want 0", got)
	}
}

func TestExecute_AutoResolution(t *testing.T) {
	f := newFixture(t)
	f.invoker.outputs["claude"] = "ok"

	// review resolves to low, which cannot push.
	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "git_push",
		AutonomyLevel:    "auto",
		WorkflowName:     "review",
		Payload:          "push",
	})
	var perr *autonomy.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("auto in a review workflow must deny git_push, got %v", err)
	}
	if perr.Level != autonomy.LevelLow {
		t.Errorf("resolved level = %s, want low", perr.Level)
	}

	// release resolves to high, which can.
	result, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "git_push",
		AutonomyLevel:    "auto",
		WorkflowName:     "release",
		Payload:          "push",
	})
	if err != nil {
		t.Fatalf("auto in a release workflow must allow git_push: %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if f.audit.last(t).AutonomyLevel != "high" {
		t.Errorf("audit recorded level %s, want the resolved high", f.audit.last(t).AutonomyLevel)
	}
}

func TestExecute_EmptyLevelUsesConfigDefault(t *testing.T) {
	f := newFixture(t) // default_level medium

	// command_exec needs high; the medium default must deny it.
	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "command_exec",
		Payload:          "rm -rf /",
	})
	var perr *autonomy.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *autonomy.PermissionError", err)
	}
	if perr.Level != autonomy.LevelMedium {
		t.Errorf("defaulted level = %s, want medium", perr.Level)
	}
}

func TestExecute_FallbackOnInvocationFailure(t *testing.T) {
	f := newFixture(t)
	f.invoker.errs["claude"] = errors.New("exit status 1")
	f.invoker.outputs["codex"] = "rescued"

	result, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		FallbackBackend:  "codex",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.BackendUsed != "codex" || result.Output != "rescued" {
		t.Errorf("result = %+v, want rescued via codex", result)
	}

	snap := f.registry.Snapshot()
	if got := snap["claude"].FailureCount; got != 1 {
		t.Errorf("claude failure count = %d, want 1", got)
	}
	if got := snap["codex"].FailureCount; got != 0 {
		t.Errorf("codex failure count = %d, want 0", got)
	}
	if got := f.audit.outcomes[f.audit.last(t).ID]; got[0] != "success" {
		t.Errorf("audit outcome = %v, want success after a rescued fallback", got)
	}
}

func TestExecute_NoFallbackFails(t *testing.T) {
	f := newFixture(t)
	f.invoker.errs["claude"] = errors.New("exit status 1")

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})

	var ierr *InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("err = %v, want *InvocationError", err)
	}
	if ierr.Backend != "claude" {
		t.Errorf("failed backend = %s, want claude", ierr.Backend)
	}
	if got := f.audit.outcomes[f.audit.last(t).ID]; got[0] != "failed" {
		t.Errorf("audit outcome = %v, want failed", got)
	}
}

func TestExecute_BothBackendsFail(t *testing.T) {
	f := newFixture(t)
	f.invoker.errs["claude"] = errors.New("claude broke")
	f.invoker.errs["codex"] = errors.New("codex broke")

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		FallbackBackend:  "codex",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})

	var ferr *FallbackError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FallbackError", err)
	}
	if ferr.Preferred != "claude" || ferr.Fallback != "codex" {
		t.Errorf("FallbackError = %+v", ferr)
	}
	if f.invoker.callCount() != 2 {
		t.Errorf("invocations = %d, want 2 (exactly one fallback hop)", f.invoker.callCount())
	}

	snap := f.registry.Snapshot()
	if snap["claude"].FailureCount != 1 || snap["codex"].FailureCount != 1 {
		t.Errorf("failure counts = %d/%d, want 1/1", snap["claude"].FailureCount, snap["codex"].FailureCount)
	}
}

func TestExecute_OpenCircuitSkipsToFallback(t *testing.T) {
	f := newFixture(t)
	f.tripBreaker("claude")
	f.invoker.outputs["codex"] = "ok"

	result, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		FallbackBackend:  "codex",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.BackendUsed != "codex" {
		t.Errorf("BackendUsed = %s, want codex", result.BackendUsed)
	}
	if calls := f.invoker.calls; len(calls) != 1 || calls[0] != "codex" {
		t.Errorf("calls = %v, want just codex (open circuit must not be invoked)", calls)
	}
}

func TestExecute_OpenCircuitNoFallback(t *testing.T) {
	f := newFixture(t)
	f.tripBreaker("claude")

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})

	var uerr *UnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnavailableError", err)
	}
	if f.invoker.callCount() != 0 {
		t.Error("nothing may be invoked when the only circuit is open")
	}
	if got := f.audit.outcomes[f.audit.last(t).ID]; got[0] != "unavailable" {
		t.Errorf("audit outcome = %v, want unavailable", got)
	}
}

func TestExecute_BothCircuitsOpen(t *testing.T) {
	f := newFixture(t)
	f.tripBreaker("claude")
	f.tripBreaker("codex")

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		FallbackBackend:  "codex",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})

	var uerr *UnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnavailableError", err)
	}
	if len(uerr.Backends) != 2 {
		t.Errorf("unavailable backends = %v, want both", uerr.Backends)
	}
	if f.invoker.callCount() != 0 {
		t.Error("nothing may be invoked when both circuits are open")
	}
}

func TestExecute_UnknownBackend(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "ghost",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
	}); err == nil {
		t.Error("expected an error for an unknown backend")
	}

	if _, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		FallbackBackend:  "ghost",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
	}); err == nil {
		t.Error("expected an error for an unknown fallback backend")
	}
}

func TestExecute_UnknownOperationKind(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "teleport",
		AutonomyLevel:    "high",
	}); err == nil {
		t.Error("expected an error for an unknown operation kind")
	}
	if f.invoker.callCount() != 0 {
		t.Error("an unparseable request must not reach a backend")
	}
}

func TestExecute_StrictAuditFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.cfg.StrictAudit = true
	f.audit.appendErr = errors.New("database locked")
	f.invoker.outputs["claude"] = "should never be seen"

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})

	if !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("err = %v, want ErrAuditUnavailable", err)
	}
	if f.invoker.callCount() != 0 {
		t.Error("strict audit must block the invocation when the append fails")
	}
}

func TestExecute_BestEffortAuditProceeds(t *testing.T) {
	f := newFixture(t)
	f.audit.appendErr = errors.New("database locked")
	f.invoker.outputs["claude"] = "fine"

	result, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
	})
	if err != nil {
		t.Fatalf("a failed audit append must not block execution by default: %v", err)
	}
	if result.Output != "fine" {
		t.Errorf("result = %+v", result)
	}
	if len(f.audit.outcomes) != 0 {
		t.Error("no outcome update should be attempted without an audit entry")
	}
}

func TestExecute_TimeoutCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	f.invoker.blockUntilCancel = true

	_, err := f.service.Execute(context.Background(), primary.ExecuteRequest{
		PreferredBackend: "claude",
		OperationKind:    "file_read",
		AutonomyLevel:    "low",
		Payload:          "read",
		Timeout:          20 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected a timeout failure")
	}

	if got := f.registry.Snapshot()["claude"].FailureCount; got != 1 {
		t.Errorf("failure count after timeout = %d, want 1", got)
	}
	if len(f.metrics.records) != 1 || f.metrics.records[0].outcome != "failure" {
		t.Errorf("metrics = %+v, want one failure record", f.metrics.records)
	}
}
