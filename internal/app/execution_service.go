// Package app contains the application layer: the execution orchestrator
// and the admin introspection service.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/autonomy"
	"github.com/example/warden/internal/core/breaker"
	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// Audit outcome values.
const (
	outcomeSuccess     = "success"
	outcomeFailed      = "failed"
	outcomeDenied      = "denied"
	outcomeUnavailable = "unavailable"
)

// ExecutionServiceImpl implements the ExecutionService interface: the
// retry/fallback driver tying the autonomy gate, the breaker registry,
// and the backend invoker together for one logical call.
type ExecutionServiceImpl struct {
	cfg      *config.Config
	registry *breaker.Registry
	invoker  secondary.BackendInvoker
	audit    secondary.AuditLog
	metrics  secondary.MetricsSink
}

// NewExecutionService creates a new ExecutionService with injected dependencies.
func NewExecutionService(
	cfg *config.Config,
	registry *breaker.Registry,
	invoker secondary.BackendInvoker,
	audit secondary.AuditLog,
	metrics secondary.MetricsSink,
) *ExecutionServiceImpl {
	return &ExecutionServiceImpl{
		cfg:      cfg,
		registry: registry,
		invoker:  invoker,
		audit:    audit,
		metrics:  metrics,
	}
}

// Execute runs one logical call:
//
//  1. Resolve the autonomy level and assert the permission matrix. A
//     denial aborts before any backend or circuit state is touched.
//  2. Append the audit entry (fail-closed under strict audit).
//  3. Check availability of the preferred backend; if its circuit is
//     open, skip straight to the fallback or fail.
//  4. Invoke, record success/failure into the registry, and fall back at
//     most once.
func (s *ExecutionServiceImpl) Execute(ctx context.Context, req primary.ExecuteRequest) (*primary.ExecuteResult, error) {
	preferred := s.cfg.Backend(req.PreferredBackend)
	if preferred == nil {
		return nil, fmt.Errorf("unknown backend: %s", req.PreferredBackend)
	}
	var fallback *config.Backend
	if req.FallbackBackend != "" {
		if fallback = s.cfg.Backend(req.FallbackBackend); fallback == nil {
			return nil, fmt.Errorf("unknown fallback backend: %s", req.FallbackBackend)
		}
	}

	kind, err := autonomy.ParseKind(req.OperationKind)
	if err != nil {
		return nil, err
	}

	rawLevel := req.AutonomyLevel
	if rawLevel == "" {
		rawLevel = s.cfg.DefaultLevel
	}
	level, err := autonomy.Resolve(rawLevel, req.WorkflowName)
	if err != nil {
		return nil, err
	}

	entry := &secondary.AuditRecord{
		Caller:        ctxutil.CallerFromContext(ctx),
		Workflow:      req.WorkflowName,
		OperationKind: string(kind),
		AutonomyLevel: level.String(),
		Backend:       preferred.Name,
		Fallback:      req.FallbackBackend,
		Decision:      "allowed",
	}

	if err := autonomy.AssertPermission(level, kind, "workflow "+req.WorkflowName); err != nil {
		entry.Decision = "denied"
		entry.Outcome = outcomeDenied
		entry.Error = err.Error()
		s.appendAudit(ctx, entry)
		return nil, err
	}

	if err := s.audit.Append(ctx, entry); err != nil {
		if s.cfg.StrictAudit {
			// Fail closed: without a confirmed audit entry the operation
			// may not proceed.
			return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
		}
		log.Printf("warden: failed to append audit entry: %v", err)
		entry.ID = "" // outcome update has nothing to target
	}

	result, execErr := s.run(ctx, req, preferred, fallback)

	if entry.ID != "" {
		outcome := outcomeSuccess
		errMsg := ""
		if execErr != nil {
			outcome = classify(execErr)
			errMsg = execErr.Error()
		}
		if err := s.audit.SetOutcome(ctx, entry.ID, outcome, errMsg); err != nil {
			log.Printf("warden: failed to record audit outcome: %v", err)
		}
	}

	return result, execErr
}

// run performs the availability check, invocation, and single fallback hop.
func (s *ExecutionServiceImpl) run(ctx context.Context, req primary.ExecuteRequest, preferred, fallback *config.Backend) (*primary.ExecuteResult, error) {
	var preferredErr error

	if s.registry.IsAvailable(preferred.Name) {
		result, err := s.invoke(ctx, req, preferred)
		if err == nil {
			s.registry.OnSuccess(preferred.Name)
			return result, nil
		}
		s.registry.OnFailure(preferred.Name)
		preferredErr = err
	} else if fallback == nil {
		return nil, &UnavailableError{Backends: []string{preferred.Name}}
	} else {
		preferredErr = &UnavailableError{Backends: []string{preferred.Name}}
	}

	if fallback == nil {
		return nil, &InvocationError{Backend: preferred.Name, Err: preferredErr}
	}

	if !s.registry.IsAvailable(fallback.Name) {
		if _, open := preferredErr.(*UnavailableError); open {
			// Neither backend was invoked; this is pure unavailability.
			return nil, &UnavailableError{Backends: []string{preferred.Name, fallback.Name}}
		}
		return nil, &FallbackError{
			Preferred:    preferred.Name,
			Fallback:     fallback.Name,
			PreferredErr: preferredErr,
			FallbackErr:  &UnavailableError{Backends: []string{fallback.Name}},
		}
	}

	result, err := s.invoke(ctx, req, fallback)
	if err == nil {
		s.registry.OnSuccess(fallback.Name)
		return result, nil
	}
	s.registry.OnFailure(fallback.Name)

	return nil, &FallbackError{
		Preferred:    preferred.Name,
		Fallback:     fallback.Name,
		PreferredErr: preferredErr,
		FallbackErr:  err,
	}
}

// invoke calls the external backend primitive with the caller timeout and
// records the invocation metric. Context expiry counts as a failure even
// though the subprocess may still be running.
func (s *ExecutionServiceImpl) invoke(ctx context.Context, req primary.ExecuteRequest, backend *config.Backend) (*primary.ExecuteResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		ms := backend.Timeout
		if ms <= 0 {
			ms = config.DefaultTimeoutMs
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spec := secondary.BackendSpec{
		Name:    backend.Name,
		Command: backend.Command,
		Args:    backend.Args,
	}

	start := time.Now()
	output, err := s.invoker.Invoke(invokeCtx, spec, req.Payload)
	elapsed := time.Since(start)

	outcome := outcomeSuccess
	if err != nil {
		outcome = "failure"
	}
	if merr := s.metrics.Record(ctx, backend.Name, outcome, elapsed.Milliseconds()); merr != nil {
		log.Printf("warden: failed to record invocation metric for %s: %v", backend.Name, merr)
	}

	if err != nil {
		return nil, err
	}
	return &primary.ExecuteResult{
		Success:     true,
		Output:      output,
		BackendUsed: backend.Name,
		Duration:    elapsed,
	}, nil
}

// appendAudit writes an entry best-effort (used for denials, which abort
// regardless of audit health).
func (s *ExecutionServiceImpl) appendAudit(ctx context.Context, entry *secondary.AuditRecord) {
	if err := s.audit.Append(ctx, entry); err != nil {
		log.Printf("warden: failed to append audit entry: %v", err)
	}
}

// classify maps an execution error to its audit outcome.
func classify(err error) string {
	switch err.(type) {
	case *UnavailableError:
		return outcomeUnavailable
	default:
		return outcomeFailed
	}
}

// Ensure ExecutionServiceImpl implements the interface
var _ primary.ExecutionService = (*ExecutionServiceImpl)(nil)
