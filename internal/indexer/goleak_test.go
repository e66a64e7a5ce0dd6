package indexer

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures the bounded parse worker pool (errgroup.SetLimit) and
// the refresh/index goroutines never leak, since this package is the one
// place in the indexer where goroutines fan out per file.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
