package progress

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestReporter throttles on file count only: the time interval is long
// enough, and counted from now, that it never falls due within a test.
func newTestReporter(buf *bytes.Buffer) *Reporter {
	return &Reporter{
		out:        buf,
		everyFiles: 2,
		everyTime:  time.Hour,
		lastEmit:   time.Now(),
	}
}

func TestFileDoneEmitsAtThreshold(t *testing.T) {
	var buf bytes.Buffer
	r := newTestReporter(&buf)
	r.SetTotal(10)

	r.FileDone("a.cpp", false)
	require.Empty(t, buf.String())

	r.FileDone("b.cpp", true)
	require.Contains(t, buf.String(), "b.cpp")
	require.Contains(t, buf.String(), "1 cache hits")
}

func TestSnapshotIgnoresThrottle(t *testing.T) {
	var buf bytes.Buffer
	r := newTestReporter(&buf)
	r.SetTotal(5)
	r.FileDone("a.cpp", false)

	snap := r.Snapshot()
	require.Equal(t, 5, snap.TotalFiles)
	require.Equal(t, 1, snap.ProcessedFiles)
}

func TestFinishAlwaysEmits(t *testing.T) {
	var buf bytes.Buffer
	r := newTestReporter(&buf)
	r.Finish()
	require.Contains(t, buf.String(), "indexing complete")
}

var _ io.Writer = (*bytes.Buffer)(nil)
