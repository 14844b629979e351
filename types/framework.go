package types

import "fmt"

// TestFramework identifies a supported test framework.
type TestFramework string

const (
	FrameworkPytest  TestFramework = "pytest"
	FrameworkJest    TestFramework = "jest"
	FrameworkVitest  TestFramework = "vitest"
	FrameworkCargo   TestFramework = "cargo"
	FrameworkMocha   TestFramework = "mocha"
	FrameworkUnknown TestFramework = "unknown"
)

// KnownFrameworks lists every framework the engine can execute, in a stable
// order used for deterministic detection output.
var KnownFrameworks = []TestFramework{
	FrameworkPytest,
	FrameworkJest,
	FrameworkVitest,
	FrameworkCargo,
	FrameworkMocha,
}

func (f TestFramework) String() string {
	return string(f)
}

// IsValid reports whether f is one of the runnable frameworks.
func (f TestFramework) IsValid() bool {
	for _, known := range KnownFrameworks {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFramework converts a user-supplied framework name into a TestFramework.
// An empty string resolves to FrameworkUnknown so callers can treat "not
// specified" uniformly.
func ParseFramework(s string) (TestFramework, error) {
	if s == "" {
		return FrameworkUnknown, nil
	}
	f := TestFramework(s)
	if !f.IsValid() {
		return FrameworkUnknown, fmt.Errorf("unsupported test framework %q", s)
	}
	return f, nil
}

// Detection confidence levels. A config file is near-certain evidence; a
// manifest dependency is a strong hint that still loses to an explicit config.
const (
	ConfidenceConfigFile = 90
	ConfidenceManifest   = 70
)

// DetectedFramework is the detector's verdict for one candidate framework.
// Immutable once produced.
type DetectedFramework struct {
	Framework  TestFramework `json:"framework"`
	Confidence int           `json:"confidence"`
	ConfigPath string        `json:"config_path,omitempty"`
}
