package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker keeps a running count for work with a known size, such
// as chart rendering or row parsing. The server stages report through the
// StatusBroadcaster instead; this type serves the standalone CLI tools,
// which have no WebSocket hub to talk to.
type ProgressTracker struct {
	mu      sync.Mutex
	stage   string
	total   int
	current int
	message string
	started time.Time
}

// NewProgressTracker starts tracking total units of work for a stage.
func NewProgressTracker(stage string, total int) *ProgressTracker {
	return &ProgressTracker{
		stage:   stage,
		total:   total,
		started: time.Now(),
	}
}

// Set moves the counter to an absolute position.
func (p *ProgressTracker) Set(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.message = message
}

// Add advances the counter by n completed units.
func (p *ProgressTracker) Add(n int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	p.message = message
}

// Snapshot returns the counter state and completion percentage.
func (p *ProgressTracker) Snapshot() (current, total int, percent float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100
	}
	return p.current, p.total, percent, p.message
}

// Done reports whether the counter has reached the total.
func (p *ProgressTracker) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total > 0 && p.current >= p.total
}

// Elapsed returns the time since tracking started.
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.started)
}

// ETA extrapolates the remaining time from the rate so far. It returns
// zero until at least one unit has completed.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current <= 0 || p.total <= 0 || p.current >= p.total {
		return 0
	}

	elapsed := time.Since(p.started)
	perUnit := elapsed / time.Duration(p.current)
	return perUnit * time.Duration(p.total-p.current)
}

// String formats the counter for terminal output, with an ETA once one
// is available.
func (p *ProgressTracker) String() string {
	current, total, percent, _ := p.Snapshot()
	if eta := p.ETA(); eta > 0 {
		return fmt.Sprintf("%s %d/%d (%.0f%%, ~%s left)", p.stage, current, total, percent, eta.Round(time.Second))
	}
	return fmt.Sprintf("%s %d/%d (%.0f%%)", p.stage, current, total, percent)
}
