package runner

import (
	"log/slog"
	"sync"
	"time"
)

// ProgressIndicator receives coarse progress updates during a multi-project
// run.
type ProgressIndicator interface {
	Start(totalProjects int)
	Advance(projectPath string, ok bool)
	Finish()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing.
// It is the coordinator's default when no indicator is configured.
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) Start(totalProjects int)             {}
func (n *noOpProgressIndicator) Advance(projectPath string, ok bool) {}
func (n *noOpProgressIndicator) Finish()                             {}

// logProgressIndicator reports per-project completion through the logger.
// Long continuous runs use this to show liveness without a terminal UI.
type logProgressIndicator struct {
	log *slog.Logger

	mu        sync.Mutex
	total     int
	completed int
	failed    int
	started   time.Time
}

// NewLogProgressIndicator creates a progress indicator that logs each
// completed project.
func NewLogProgressIndicator(log *slog.Logger) ProgressIndicator {
	return &logProgressIndicator{log: log}
}

func (p *logProgressIndicator) Start(totalProjects int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = totalProjects
	p.completed = 0
	p.failed = 0
	p.started = time.Now()
}

func (p *logProgressIndicator) Advance(projectPath string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	if !ok {
		p.failed++
	}
	p.log.Info("Project complete",
		"project", projectPath,
		"ok", ok,
		"progress", p.completed,
		"total", p.total)
}

func (p *logProgressIndicator) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info("All projects complete",
		"total", p.total,
		"failed", p.failed,
		"elapsed", time.Since(p.started))
}
