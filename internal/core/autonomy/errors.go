package autonomy

import "fmt"

// PermissionError is the structured denial raised by AssertPermission.
// Permission denials are fatal to the call and never retried.
type PermissionError struct {
	Kind     OperationKind
	Level    Level
	Required Level
	Context  string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("operation %s requires autonomy level %s, but caller declared %s",
		e.Kind, e.Required, e.Level)
	if e.Context != "" {
		msg += fmt.Sprintf(" (%s)", e.Context)
	}
	return msg
}
