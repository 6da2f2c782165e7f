package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportAdd(t *testing.T) {
	r := NewReport("/tmp/run.log")

	r.Add(Outcome{RelPath: "a.txt", Status: StatusOK, Size: 100})
	r.Add(Outcome{RelPath: "b.txt", Status: StatusSkipped, Size: 50})
	r.Add(Outcome{RelPath: "c.txt", Status: StatusFailed, Reason: "transfer: timeout"})
	r.Add(Outcome{RelPath: "d.txt", Status: StatusOK, Size: 25})

	assert.Equal(t, 4, r.TotalFiles())
	assert.Equal(t, []string{"a.txt", "d.txt"}, relPaths(r.OK))
	assert.Equal(t, []string{"b.txt"}, relPaths(r.Skipped))
	assert.Equal(t, []string{"c.txt"}, relPaths(r.Failed))

	// Skipped bytes are not sent bytes.
	assert.Equal(t, int64(125), r.BytesSent)
}

func TestReportEmpty(t *testing.T) {
	r := NewReport("")

	assert.Equal(t, 0, r.TotalFiles())
	assert.Equal(t, int64(0), r.BytesSent)
	assert.GreaterOrEqual(t, r.Elapsed().Nanoseconds(), int64(0))
}

func relPaths(outcomes []Outcome) []string {
	paths := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		paths = append(paths, o.RelPath)
	}
	return paths
}
