// Package runner executes framework test suites as subprocesses and
// normalizes their output into the unified result model. Each supported
// framework contributes a Strategy that knows how to build its command line
// and parse its output; the Coordinator fans runs out over multiple projects
// with bounded concurrency.
package runner
