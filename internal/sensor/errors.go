package sensor

import "fmt"

// CalibrationError reports a decoded value outside the plausible domain range.
// Communication failures are reported separately as bus.CommError.
type CalibrationError struct {
	Register byte
	Value    int
	Reason   string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("implausible reading %d from register 0x%02X: %s", e.Value, e.Register, e.Reason)
}

// PowerManagementError wraps a failed sleep/wake register write. The recorded
// power state is left unchanged when it occurs.
type PowerManagementError struct {
	Op  string // "sleep" or "wake"
	Err error
}

func (e *PowerManagementError) Error() string {
	return fmt.Sprintf("%s command failed: %v", e.Op, e.Err)
}

func (e *PowerManagementError) Unwrap() error { return e.Err }
