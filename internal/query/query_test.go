package query

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/indexer"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/parser"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// stubBackend returns a fixed class/method/call graph shape so query
// operations can be exercised without a real C++ front-end: Base is a
// class, Derived inherits from Base, and Derived::run() calls Base::base().
type stubBackend struct{}

func (stubBackend) Parse(ctx context.Context, path string, args []string) (*parser.Result, error) {
	switch filepath.Base(path) {
	case "base.h":
		return &parser.Result{Records: []types.SymbolRecord{
			{Name: "Base", Kind: types.KindClass, File: path, Line: 1, USR: "c:@S@Base", IsProject: true},
			{Name: "base", Kind: types.KindMethod, File: path, Line: 2, ParentClass: "Base", USR: "c:@S@Base@F@base", IsProject: true},
		}}, nil
	case "derived.h":
		return &parser.Result{
			Records: []types.SymbolRecord{
				{Name: "Derived", Kind: types.KindClass, File: path, Line: 1, USR: "c:@S@Derived", BaseClasses: []string{"Base"}, IsProject: true},
				{Name: "run", Kind: types.KindMethod, File: path, Line: 2, ParentClass: "Derived", USR: "c:@S@Derived@F@run", IsProject: true},
			},
			Calls: []parser.CallEdge{{Caller: "c:@S@Derived@F@run", Callee: "c:@S@Base@F@base"}},
		}, nil
	}
	return &parser.Result{}, nil
}

func newTestFacade(t *testing.T) (*Facade, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "base.h"), []byte("class Base { void base(); };"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "derived.h"), []byte("class Derived : public Base { void run(); };"), 0o644))

	cacheDir := t.TempDir()
	f := New(func(cfg *config.Config, _ string) (*indexer.Indexer, error) {
		return indexer.New(cfg, stubBackend{}, cacheDir, slog.Default())
	})
	return f, root
}

func TestSetProjectDirectoryIndexesOnLoad(t *testing.T) {
	f, root := newTestFacade(t)
	result, err := f.SetProjectDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 2, result.IndexedFileCount)
}

func TestOperationsBeforeProjectSetReturnUninitialized(t *testing.T) {
	f := New(nil)
	_, err := f.SearchClasses(".*", true)
	require.Error(t, err)
	ce, ok := cxierrors.AsCxiError(err)
	require.True(t, ok)
	require.Equal(t, cxierrors.KindUninitialized, ce.Kind)
}

func TestGetServerStatusBeforeInitReportsUninitialized(t *testing.T) {
	f := New(nil)
	status := f.GetServerStatus()
	require.False(t, status.Initialized)
}

func TestSearchAndHierarchyAfterIndexing(t *testing.T) {
	f, root := newTestFacade(t)
	_, err := f.SetProjectDirectory(context.Background(), root)
	require.NoError(t, err)

	classes, err := f.SearchClasses("Derived", true)
	require.NoError(t, err)
	require.Len(t, classes, 1)

	h, err := f.GetClassHierarchy("Derived")
	require.NoError(t, err)
	require.Equal(t, []string{"Base"}, h.BaseClasses)

	derived, err := f.GetDerivedClasses("Base", true)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	require.Equal(t, "Derived", derived[0].Name)
}

func TestFindCalleesFollowsCallGraph(t *testing.T) {
	f, root := newTestFacade(t)
	_, err := f.SetProjectDirectory(context.Background(), root)
	require.NoError(t, err)

	callees, err := f.FindCallees("run", "Derived")
	require.NoError(t, err)
	require.Len(t, callees, 1)
	require.Equal(t, "base", callees[0].Name)

	callers, err := f.FindCallers("base", "Base")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, "run", callers[0].Name)
}

func TestGetCallPathFindsDirectPath(t *testing.T) {
	f, root := newTestFacade(t)
	_, err := f.SetProjectDirectory(context.Background(), root)
	require.NoError(t, err)

	paths, err := f.GetCallPath("run", "base", 5)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, CallPath{"Derived::run", "Base::base"}, paths[0])
}

func TestRefreshProjectReportsNoChanges(t *testing.T) {
	f, root := newTestFacade(t)
	_, err := f.SetProjectDirectory(context.Background(), root)
	require.NoError(t, err)

	changed, err := f.RefreshProject(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, changed)
}
