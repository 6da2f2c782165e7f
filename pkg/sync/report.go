package sync

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Status classifies the fate of one enumerated file.
type Status string

const (
	StatusOK      Status = "OK"      // transferred and verified, or zero-size after a clean put
	StatusSkipped Status = "SKIPPED" // remote copy already identical
	StatusFailed  Status = "FAILED"  // stat, repair, transfer or verification failed
)

// Outcome is the classification of one file together with the reason it
// landed there.
type Outcome struct {
	RelPath string
	Status  Status
	Reason  string
	Size    int64
}

// Report accumulates outcomes in processing order and carries the
// session-level facts the final summary prints. One status slice per
// classification keeps the three sets disjoint by construction.
type Report struct {
	OK      []Outcome
	Skipped []Outcome
	Failed  []Outcome

	TotalDirs int
	BytesSent int64
	Started   time.Time
	LogPath   string
}

func NewReport(logPath string) *Report {
	return &Report{
		Started: time.Now(),
		LogPath: logPath,
	}
}

// Add files o under its status.
func (r *Report) Add(o Outcome) {
	switch o.Status {
	case StatusOK:
		r.OK = append(r.OK, o)
		r.BytesSent += o.Size
	case StatusSkipped:
		r.Skipped = append(r.Skipped, o)
	case StatusFailed:
		r.Failed = append(r.Failed, o)
	}
}

// TotalFiles is the number of files classified so far.
func (r *Report) TotalFiles() int {
	return len(r.OK) + len(r.Skipped) + len(r.Failed)
}

// Elapsed is the wall time since the report was created.
func (r *Report) Elapsed() time.Duration {
	return time.Since(r.Started)
}

// Log writes the end-of-run summary line through the structured logger.
func (r *Report) Log() {
	slog.Info("session complete",
		"files", r.TotalFiles(),
		"dirs", r.TotalDirs,
		"ok", len(r.OK),
		"skipped", len(r.Skipped),
		"failed", len(r.Failed),
		"sent", humanize.IBytes(uint64(r.BytesSent)),
		"elapsed", r.Elapsed().Round(time.Millisecond),
		"log", r.LogPath,
	)
}
