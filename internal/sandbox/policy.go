package sandbox

import "time"

// NoOutputPlaceholder replaces empty output.
const NoOutputPlaceholder = "Code executed successfully (no output)"

// Policy defines resource limits for sandbox execution.
type Policy struct {
	Timeout        time.Duration // Maximum wall time per execution
	MaxOutputBytes int           // Captured output cap, zero for unlimited
	TempDir        string        // Parent of per-run temp dirs, empty for os.TempDir
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        10 * time.Second,
		MaxOutputBytes: 1 << 20,
	}
}
