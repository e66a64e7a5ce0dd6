package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/parser"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// fakeBackend returns one class record per file, named after the file's
// base name, so tests can assert on indexer merge behavior without a real
// C++ front-end.
type fakeBackend struct {
	calls int
}

func (b *fakeBackend) Parse(ctx context.Context, path string, args []string) (*parser.Result, error) {
	b.calls++
	name := filepath.Base(path)
	return &parser.Result{
		Records: []types.SymbolRecord{
			{Name: name, Kind: types.KindClass, File: path, Line: 1, USR: "c:@S@" + name, IsProject: true},
		},
	}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestIndexer(t *testing.T, root string, backend parser.Backend) *Indexer {
	t.Helper()
	cfg := config.Default(root)
	ix, err := New(cfg, backend, t.TempDir(), nil)
	require.NoError(t, err)
	return ix
}

func TestIndexProjectParsesDiscoveredFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.cpp"), "class A {};")
	writeFile(t, filepath.Join(root, "b.cpp"), "class B {};")

	backend := &fakeBackend{}
	ix := newTestIndexer(t, root, backend)

	count, err := ix.IndexProject(context.Background(), false, false, nil)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 2, backend.calls)

	snap := ix.Snapshot()
	require.Contains(t, snap.ByClassName, "a.cpp")
	require.Contains(t, snap.ByClassName, "b.cpp")
}

func TestIndexProjectSecondCallUsesPerFileCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.cpp"), "class A {};")

	backend := &fakeBackend{}
	cfg := config.Default(root)
	cacheDir := t.TempDir()
	ix, err := New(cfg, backend, cacheDir, nil)
	require.NoError(t, err)

	_, err = ix.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)

	// Fresh indexer instance sharing the same cache directory, forced
	// past the aggregate cache, must still skip re-parsing via the
	// per-file cache since the content hash has not changed.
	ix2, err := New(cfg, backend, cacheDir, nil)
	require.NoError(t, err)
	_, err = ix2.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)
}

func TestIndexProjectUsesAggregateCacheWithoutForce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.cpp"), "class A {};")

	backend := &fakeBackend{}
	cfg := config.Default(root)
	cacheDir := t.TempDir()
	ix, err := New(cfg, backend, cacheDir, nil)
	require.NoError(t, err)
	_, err = ix.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)

	ix2, err := New(cfg, backend, cacheDir, nil)
	require.NoError(t, err)
	count, err := ix2.IndexProject(context.Background(), false, false, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, backend.calls) // aggregate cache hit, backend not invoked again
}

func TestRefreshDetectsChangedAndRemovedFiles(t *testing.T) {
	root := t.TempDir()
	aPath := filepath.Join(root, "a.cpp")
	bPath := filepath.Join(root, "b.cpp")
	writeFile(t, aPath, "class A {};")
	writeFile(t, bPath, "class B {};")

	backend := &fakeBackend{}
	ix := newTestIndexer(t, root, backend)
	_, err := ix.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)
	require.Equal(t, 2, backend.calls)

	// No changes: refresh should be a no-op.
	changed, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, changed)
	require.Equal(t, 2, backend.calls)

	// Modify a.cpp's content so its hash changes, and delete b.cpp.
	writeFile(t, aPath, "class A { int x; };")
	require.NoError(t, os.Remove(bPath))

	changed, err = ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, changed) // 1 changed + 1 removed
	require.Equal(t, 3, backend.calls)

	snap := ix.Snapshot()
	require.NotContains(t, snap.ByClassName, "b.cpp")
}

// callGraphBackend simulates a caller/callee pair: callee.cpp always
// declares "callee", and caller.cpp declares "caller" with a call edge to
// it only while its source contains the marker comment, so tests can flip
// the edge on and off by rewriting the file.
type callGraphBackend struct{}

const calleeUSR = "c:@F@callee"
const callerUSR = "c:@F@caller"

func (callGraphBackend) Parse(ctx context.Context, path string, args []string) (*parser.Result, error) {
	switch filepath.Base(path) {
	case "callee.cpp":
		return &parser.Result{
			Records: []types.SymbolRecord{
				{Name: "callee", Kind: types.KindFunction, File: path, Line: 1, USR: calleeUSR, IsProject: true},
			},
		}, nil
	case "caller.cpp":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		result := &parser.Result{
			Records: []types.SymbolRecord{
				{Name: "caller", Kind: types.KindFunction, File: path, Line: 1, USR: callerUSR, IsProject: true},
			},
		}
		if strings.Contains(string(content), "CALLS_CALLEE") {
			result.Calls = []parser.CallEdge{{Caller: callerUSR, Callee: calleeUSR}}
		}
		return result, nil
	default:
		return &parser.Result{}, nil
	}
}

func TestRefreshRemovesStaleCallGraphEdgeWhenCallIsDropped(t *testing.T) {
	root := t.TempDir()
	calleePath := filepath.Join(root, "callee.cpp")
	callerPath := filepath.Join(root, "caller.cpp")
	writeFile(t, calleePath, "void callee() {}")
	writeFile(t, callerPath, "void caller() { /* CALLS_CALLEE */ callee(); }")

	ix := newTestIndexer(t, root, callGraphBackend{})
	_, err := ix.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)

	graph := ix.Snapshot().Graph
	require.Equal(t, []string{calleeUSR}, graph.FindCallees(callerUSR))
	require.Equal(t, []string{callerUSR}, graph.FindCallers(calleeUSR))

	// Drop the call and refresh; the stale edge must not survive.
	writeFile(t, callerPath, "void caller() {}")
	changed, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, changed)

	graph = ix.Snapshot().Graph
	require.Empty(t, graph.FindCallees(callerUSR))
	require.Empty(t, graph.FindCallers(calleeUSR))
}

func TestIndexFileForceRemovesStaleCallGraphEdge(t *testing.T) {
	root := t.TempDir()
	calleePath := filepath.Join(root, "callee.cpp")
	callerPath := filepath.Join(root, "caller.cpp")
	writeFile(t, calleePath, "void callee() {}")
	writeFile(t, callerPath, "void caller() { /* CALLS_CALLEE */ callee(); }")

	ix := newTestIndexer(t, root, callGraphBackend{})
	_, err := ix.IndexProject(context.Background(), true, false, nil)
	require.NoError(t, err)
	require.Equal(t, []string{calleeUSR}, ix.Snapshot().Graph.FindCallees(callerUSR))

	writeFile(t, callerPath, "void caller() {}")
	_, err = ix.IndexFile(context.Background(), callerPath, true)
	require.NoError(t, err)

	require.Empty(t, ix.Snapshot().Graph.FindCallees(callerUSR))
	require.Empty(t, ix.Snapshot().Graph.FindCallers(calleeUSR))
}

func TestIndexFileForceBypassesCache(t *testing.T) {
	root := t.TempDir()
	aPath := filepath.Join(root, "a.cpp")
	writeFile(t, aPath, "class A {};")

	backend := &fakeBackend{}
	ix := newTestIndexer(t, root, backend)

	cached, err := ix.IndexFile(context.Background(), aPath, false)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 1, backend.calls)

	cached, err = ix.IndexFile(context.Background(), aPath, false)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, 1, backend.calls)

	cached, err = ix.IndexFile(context.Background(), aPath, true)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, 2, backend.calls)
}
