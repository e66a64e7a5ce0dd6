// Package progress reports indexing progress at a rate appropriate to the
// consumer: frequently for an interactive terminal, sparsely for a piped
// log consumer (spec §5).
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one progress sample.
type Snapshot struct {
	TotalFiles     int
	ProcessedFiles int
	CacheHits      int
	Failed         int
	CurrentFile    string
	Elapsed        time.Duration
}

// Reporter accumulates file-processed counters and emits a throttled
// textual report. The file counters are atomic; a mutex guards the emit
// bookkeeping (call count, last-emit time, current file) and is taken on
// every FileDone and FileFailed call.
type Reporter struct {
	out io.Writer

	total     atomic.Int64
	processed atomic.Int64
	cacheHits atomic.Int64
	failed    atomic.Int64
	start     time.Time

	mu          sync.Mutex
	currentFile string
	lastEmit    time.Time
	emitCount   int

	everyFiles int
	everyTime  time.Duration
}

// New returns a Reporter writing to w, throttled to an interactive cadence
// (every 5 files or 2s) when w is a terminal, or a sparser cadence (every
// 50 files or 5s) otherwise — matching how a human watching a live
// terminal versus a log aggregator wants updates.
func New(w *os.File) *Reporter {
	everyFiles, everyTime := 50, 5*time.Second
	if isTerminal(w) {
		everyFiles, everyTime = 5, 2*time.Second
	}
	return &Reporter{
		out:        w,
		start:      time.Now(),
		everyFiles: everyFiles,
		everyTime:  everyTime,
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// SetTotal records the total file count once scanning completes.
func (r *Reporter) SetTotal(total int) {
	r.total.Store(int64(total))
}

// FileDone records one processed file (cache hit or freshly parsed) and
// emits a report if the throttle interval has elapsed.
func (r *Reporter) FileDone(path string, cacheHit bool) {
	r.processed.Add(1)
	if cacheHit {
		r.cacheHits.Add(1)
	}
	r.maybeEmit(path)
}

// FileFailed records a file that could not be parsed.
func (r *Reporter) FileFailed(path string) {
	r.failed.Add(1)
	r.maybeEmit(path)
}

func (r *Reporter) maybeEmit(currentFile string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.emitCount++
	due := r.emitCount%r.everyFiles == 0 || time.Since(r.lastEmit) >= r.everyTime
	if !due {
		return
	}
	r.currentFile = currentFile
	r.lastEmit = time.Now()

	snap := r.snapshotLocked()
	fmt.Fprintf(r.out, "indexed %d/%d files (%d cache hits, %d failed) - %s\n",
		snap.ProcessedFiles, snap.TotalFiles, snap.CacheHits, snap.Failed, snap.CurrentFile)
}

func (r *Reporter) snapshotLocked() Snapshot {
	return Snapshot{
		TotalFiles:     int(r.total.Load()),
		ProcessedFiles: int(r.processed.Load()),
		CacheHits:      int(r.cacheHits.Load()),
		Failed:         int(r.failed.Load()),
		CurrentFile:    r.currentFile,
		Elapsed:        time.Since(r.start),
	}
}

// Snapshot returns the current progress, unconditionally, ignoring the
// throttle.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Finish emits a final unthrottled report.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshotLocked()
	fmt.Fprintf(r.out, "indexing complete: %d/%d files (%d cache hits, %d failed) in %s\n",
		snap.ProcessedFiles, snap.TotalFiles, snap.CacheHits, snap.Failed, snap.Elapsed.Round(time.Millisecond))
}
