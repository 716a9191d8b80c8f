// Package autonomy contains the pure permission-matrix evaluator that gates
// every orchestrated operation. It has no dependencies on storage or the
// circuit breaker so it can be reasoned about and tested in isolation.
package autonomy

import "fmt"

// Level is a caller-declared ceiling on how impactful an operation is
// allowed to be. Levels form a total order; a level permits every
// operation whose required level is at or below it.
type Level int

const (
	// LevelReadOnly permits inspection only.
	LevelReadOnly Level = iota
	// LevelLow permits local, easily reversible changes.
	LevelLow
	// LevelMedium permits changes that touch shared state.
	LevelMedium
	// LevelHigh permits outward-facing or hard-to-reverse operations.
	LevelHigh
)

// Auto is the symbolic level callers pass to defer the choice to the
// workflow minimum table. It is resolved by Resolve exactly once per
// operation and never reaches CheckPermission or AssertPermission.
const Auto = "auto"

// String returns the canonical wire form of the level.
func (l Level) String() string {
	switch l {
	case LevelReadOnly:
		return "read_only"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseLevel parses a concrete level string. The symbolic value "auto" is
// rejected here; only Resolve understands it.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "read_only", "readonly":
		return LevelReadOnly, nil
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	default:
		return 0, fmt.Errorf("unknown autonomy level: %q", s)
	}
}

// Levels returns all concrete levels in ascending order.
func Levels() []Level {
	return []Level{LevelReadOnly, LevelLow, LevelMedium, LevelHigh}
}

// OperationKind classifies the side effect a call may perform. Each kind
// maps to exactly one required level in the static permission matrix.
type OperationKind string

const (
	OpFileRead          OperationKind = "file_read"
	OpFileWrite         OperationKind = "file_write"
	OpGitRead           OperationKind = "git_read"
	OpGitCommit         OperationKind = "git_commit"
	OpGitPush           OperationKind = "git_push"
	OpGitBranch         OperationKind = "git_branch"
	OpDependencyInstall OperationKind = "dependency_install"
	OpCommandExec       OperationKind = "command_exec"
	OpNetworkCall       OperationKind = "network_call"
	OpSelfInvoke        OperationKind = "self_invoke"
)

// requiredLevels is the static permission matrix. Fixed configuration
// data, not runtime state.
var requiredLevels = map[OperationKind]Level{
	OpFileRead:          LevelReadOnly,
	OpGitRead:           LevelReadOnly,
	OpFileWrite:         LevelLow,
	OpGitBranch:         LevelLow,
	OpGitCommit:         LevelMedium,
	OpNetworkCall:       LevelMedium,
	OpSelfInvoke:        LevelMedium,
	OpGitPush:           LevelHigh,
	OpDependencyInstall: LevelHigh,
	OpCommandExec:       LevelHigh,
}

// workflowMinimums maps workflow names to the minimum level the symbolic
// "auto" value resolves to. Unknown workflows default to LevelMedium.
var workflowMinimums = map[string]Level{
	"review":    LevelLow,
	"bughunt":   LevelMedium,
	"implement": LevelMedium,
	"release":   LevelHigh,
}

// Kinds returns every operation kind in the matrix.
func Kinds() []OperationKind {
	return []OperationKind{
		OpFileRead, OpFileWrite, OpGitRead, OpGitCommit, OpGitPush,
		OpGitBranch, OpDependencyInstall, OpCommandExec, OpNetworkCall,
		OpSelfInvoke,
	}
}

// ParseKind parses an operation kind string.
func ParseKind(s string) (OperationKind, error) {
	kind := OperationKind(s)
	if _, ok := requiredLevels[kind]; !ok {
		return "", fmt.Errorf("unknown operation kind: %q", s)
	}
	return kind, nil
}

// RequiredLevel returns the level the matrix demands for kind.
func RequiredLevel(kind OperationKind) (Level, error) {
	required, ok := requiredLevels[kind]
	if !ok {
		return 0, fmt.Errorf("unknown operation kind: %q", kind)
	}
	return required, nil
}

// CheckPermission reports whether level permits kind, together with the
// level the matrix requires. Allowed iff level >= required in the total
// order READ_ONLY < LOW < MEDIUM < HIGH.
func CheckPermission(level Level, kind OperationKind) (bool, Level, error) {
	required, err := RequiredLevel(kind)
	if err != nil {
		return false, 0, err
	}
	return level >= required, required, nil
}

// AssertPermission is CheckPermission for call sites that should abort on
// denial: it returns a *PermissionError carrying the required level and
// the context string instead of a boolean.
func AssertPermission(level Level, kind OperationKind, context string) error {
	allowed, required, err := CheckPermission(level, kind)
	if err != nil {
		return err
	}
	if !allowed {
		return &PermissionError{
			Kind:     kind,
			Level:    level,
			Required: required,
			Context:  context,
		}
	}
	return nil
}

// Resolve turns a caller-supplied level string into a concrete Level.
// The symbolic value "auto" resolves via the workflow minimum table;
// anything else must parse as a concrete level. This is the only place
// "auto" is legal, and it runs exactly once per workflow invocation.
func Resolve(raw, workflow string) (Level, error) {
	if raw != Auto {
		return ParseLevel(raw)
	}
	if min, ok := workflowMinimums[workflow]; ok {
		return min, nil
	}
	return LevelMedium, nil
}
