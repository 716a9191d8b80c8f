package autonomy

import (
	"errors"
	"testing"
)

// TestPermissionMatrix_Exhaustive checks every (level, kind) pair: allowed
// iff the level's ordinal is >= the required level's ordinal.
func TestPermissionMatrix_Exhaustive(t *testing.T) {
	for _, kind := range Kinds() {
		required, err := RequiredLevel(kind)
		if err != nil {
			t.Fatalf("RequiredLevel(%s): %v", kind, err)
		}
		for _, level := range Levels() {
			allowed, gotRequired, err := CheckPermission(level, kind)
			if err != nil {
				t.Fatalf("CheckPermission(%s, %s): %v", level, kind, err)
			}
			if gotRequired != required {
				t.Errorf("CheckPermission(%s, %s) reported required %s, want %s", level, kind, gotRequired, required)
			}
			want := level >= required
			if allowed != want {
				t.Errorf("CheckPermission(%s, %s) = %v, want %v", level, kind, allowed, want)
			}
		}
	}
}

func TestRequiredLevels_Matrix(t *testing.T) {
	cases := map[OperationKind]Level{
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
	if len(cases) != len(Kinds()) {
		t.Fatalf("matrix test covers %d kinds, Kinds() has %d", len(cases), len(Kinds()))
	}
	for kind, want := range cases {
		got, err := RequiredLevel(kind)
		if err != nil {
			t.Fatalf("RequiredLevel(%s): %v", kind, err)
		}
		if got != want {
			t.Errorf("RequiredLevel(%s) = %s, want %s", kind, got, want)
		}
	}
}

func TestCheckPermission_UnknownKind(t *testing.T) {
	_, _, err := CheckPermission(LevelHigh, OperationKind("teleport"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAssertPermission_Denied(t *testing.T) {
	err := AssertPermission(LevelReadOnly, OpGitPush, "workflow release")
	if err == nil {
		t.Fatal("expected denial")
	}

	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PermissionError, got %T", err)
	}
	if perr.Required != LevelHigh {
		t.Errorf("required = %s, want high", perr.Required)
	}
	if perr.Level != LevelReadOnly {
		t.Errorf("level = %s, want read_only", perr.Level)
	}
	if perr.Context != "workflow release" {
		t.Errorf("context = %q", perr.Context)
	}
}

func TestAssertPermission_Allowed(t *testing.T) {
	if err := AssertPermission(LevelHigh, OpGitPush, ""); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := AssertPermission(LevelLow, OpFileRead, ""); err != nil {
		t.Fatalf("higher level must permit lower-level kind: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"read_only": LevelReadOnly,
		"readonly":  LevelReadOnly,
		"low":       LevelLow,
		"medium":    LevelMedium,
		"high":      LevelHigh,
	}
	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", s, got, want)
		}
	}

	if _, err := ParseLevel("auto"); err == nil {
		t.Error("ParseLevel must reject the symbolic auto value")
	}
	if _, err := ParseLevel("maximum"); err == nil {
		t.Error("ParseLevel must reject unknown levels")
	}
}

func TestResolve_Concrete(t *testing.T) {
	level, err := Resolve("high", "review")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// A concrete level passes through untouched regardless of workflow.
	if level != LevelHigh {
		t.Errorf("Resolve(high, review) = %s, want high", level)
	}
}

func TestResolve_Auto(t *testing.T) {
	cases := map[string]Level{
		"review":    LevelLow,
		"bughunt":   LevelMedium,
		"implement": LevelMedium,
		"release":   LevelHigh,
		"unheard":   LevelMedium, // unknown workflows default to medium
	}
	for workflow, want := range cases {
		got, err := Resolve(Auto, workflow)
		if err != nil {
			t.Fatalf("Resolve(auto, %q): %v", workflow, err)
		}
		if got != want {
			t.Errorf("Resolve(auto, %q) = %s, want %s", workflow, got, want)
		}
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range Levels() {
		parsed, err := ParseLevel(level.String())
		if err != nil {
			t.Fatalf("ParseLevel(%s.String()): %v", level, err)
		}
		if parsed != level {
			t.Errorf("round trip of %s gave %s", level, parsed)
		}
	}
}
