package types

// TestStatus is the canonical status vocabulary every framework-native status
// is mapped onto.
type TestStatus string

const (
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
	TestStatusSkipped TestStatus = "skipped"
	TestStatusError   TestStatus = "error"
	TestStatusXFail   TestStatus = "xfail"
	TestStatusXPass   TestStatus = "xpass"
)

// IsFailure reports whether the status counts against the pass rate.
// An expected failure (xfail) is a passing outcome; an unexpected pass
// (xpass) is not.
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFailed || s == TestStatusError || s == TestStatusXPass
}
