// Package query implements the QueryFacade: the thin, transport-agnostic
// adapter over the indexer, search, hierarchy, and call-graph engines
// (spec §4.10). Every operation validates its arguments and returns a
// structured error rather than panicking, since the transport layer has
// no way to recover a caller's session from an unhandled panic.
package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/callgraph"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/hashstore"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/hierarchy"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/indexer"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/progress"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/search"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// IndexerFactory builds an Indexer for a given project configuration and
// cache directory; it is supplied by the caller (cmd/cxi, the MCP
// transport) so this package stays decoupled from how the backend or the
// cache root path is chosen.
type IndexerFactory func(cfg *config.Config, cacheDir string) (*indexer.Indexer, error)

// Facade is the QueryFacade. It is uninitialized (no project set) until
// SetProjectDirectory succeeds; every other operation returns
// Uninitialized until then.
type Facade struct {
	newIndexer IndexerFactory
	reporter   *progress.Reporter

	cfg      *config.Config
	ix       *indexer.Indexer
}

// New returns a Facade that builds indexers via newIndexer.
func New(newIndexer IndexerFactory) *Facade {
	return &Facade{newIndexer: newIndexer}
}

func (f *Facade) requireProject(op string) error {
	if f.ix == nil {
		return cxierrors.Uninitialized(op)
	}
	return nil
}

// SetProjectDirectoryResult is the result of SetProjectDirectory.
type SetProjectDirectoryResult struct {
	IndexedFileCount int `json:"indexed_file_count"`
}

// SetProjectDirectory loads configuration for path, builds a fresh
// Indexer, and performs an initial index. Calling it again repoints the
// facade at a different project, discarding the previous indexer.
func (f *Facade) SetProjectDirectory(ctx context.Context, path string) (*SetProjectDirectoryResult, error) {
	if path == "" {
		return nil, cxierrors.InvalidArgument("set_project_directory", "path is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cxierrors.InvalidArgument("set_project_directory", err.Error())
	}

	cacheDir, err := cacheDirFor(cfg.Project.Root, cfg.Project.Name)
	if err != nil {
		return nil, cxierrors.Internal("set_project_directory", err)
	}

	ix, err := f.newIndexer(cfg, cacheDir)
	if err != nil {
		return nil, err
	}

	count, err := ix.IndexProject(ctx, false, cfg.Index.IncludeDependencies, f.reporter)
	if err != nil {
		return nil, err
	}

	f.cfg = cfg
	f.ix = ix
	return &SetProjectDirectoryResult{IndexedFileCount: count}, nil
}

// SetIncludeDependencies overrides the loaded config's dependency-indexing
// flag ahead of a ReindexProject call, for callers (the CLI's
// --include-dependencies flag) that want to override the project's config
// file for a single invocation.
func (f *Facade) SetIncludeDependencies(include bool) error {
	if err := f.requireProject("set_include_dependencies"); err != nil {
		return err
	}
	f.cfg.Index.IncludeDependencies = include
	return nil
}

// ReindexProject re-runs IndexProject against the already-configured
// project, optionally ignoring the aggregate cache; files whose content
// hash is unchanged are still served from the per-file cache. It is
// exposed for callers (the CLI's index --force) that need a full rescan
// distinct from set_project_directory's cache-aware initial index and
// refresh_project's changed-files-only pass.
func (f *Facade) ReindexProject(ctx context.Context, force bool) (int, error) {
	if err := f.requireProject("reindex_project"); err != nil {
		return 0, err
	}
	return f.ix.IndexProject(ctx, force, f.cfg.Index.IncludeDependencies, f.reporter)
}

// SearchClasses implements the search_classes operation.
func (f *Facade) SearchClasses(pattern string, projectOnly bool) ([]search.ClassResult, error) {
	if err := f.requireProject("search_classes"); err != nil {
		return nil, err
	}
	return f.searchEngine().SearchClasses(pattern, projectOnly)
}

// SearchFunctions implements the search_functions operation.
func (f *Facade) SearchFunctions(pattern string, projectOnly bool, className string) ([]search.FunctionResult, error) {
	if err := f.requireProject("search_functions"); err != nil {
		return nil, err
	}
	return f.searchEngine().SearchFunctions(pattern, projectOnly, className)
}

// SearchSymbols implements the search_symbols operation.
func (f *Facade) SearchSymbols(pattern string, projectOnly bool, kinds []string) (*search.SymbolResults, error) {
	if err := f.requireProject("search_symbols"); err != nil {
		return nil, err
	}
	return f.searchEngine().SearchSymbols(pattern, projectOnly, kinds)
}

// GetClassInfo implements the get_class_info operation.
func (f *Facade) GetClassInfo(className string) (*search.ClassInfo, error) {
	if err := f.requireProject("get_class_info"); err != nil {
		return nil, err
	}
	if className == "" {
		return nil, cxierrors.InvalidArgument("get_class_info", "class_name is required")
	}
	return f.searchEngine().GetClassInfo(className)
}

// GetFunctionSignature implements the get_function_signature operation.
func (f *Facade) GetFunctionSignature(functionName, className string) ([]string, error) {
	if err := f.requireProject("get_function_signature"); err != nil {
		return nil, err
	}
	if functionName == "" {
		return nil, cxierrors.InvalidArgument("get_function_signature", "function_name is required")
	}
	return f.searchEngine().GetFunctionSignature(functionName, className), nil
}

// FindInFile implements the find_in_file operation: symbols declared in
// filePath whose name matches pattern.
func (f *Facade) FindInFile(filePath, pattern string) ([]types.SymbolRecord, error) {
	if err := f.requireProject("find_in_file"); err != nil {
		return nil, err
	}
	if filePath == "" {
		return nil, cxierrors.InvalidArgument("find_in_file", "file_path is required")
	}
	regex, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, cxierrors.InvalidArgument("find_in_file", "invalid pattern: "+err.Error())
	}

	var out []types.SymbolRecord
	for _, r := range f.searchEngine().FindInFile(filePath) {
		if regex.MatchString(r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetDerivedClasses implements the get_derived_classes operation.
func (f *Facade) GetDerivedClasses(className string, projectOnly bool) ([]hierarchy.DerivedClass, error) {
	if err := f.requireProject("get_derived_classes"); err != nil {
		return nil, err
	}
	if className == "" {
		return nil, cxierrors.InvalidArgument("get_derived_classes", "class_name is required")
	}
	return f.hierarchyEngine().DerivedClasses(className, projectOnly), nil
}

// GetClassHierarchy implements the get_class_hierarchy operation.
func (f *Facade) GetClassHierarchy(className string) (*hierarchy.Hierarchy, error) {
	if err := f.requireProject("get_class_hierarchy"); err != nil {
		return nil, err
	}
	if className == "" {
		return nil, cxierrors.InvalidArgument("get_class_hierarchy", "class_name is required")
	}
	h := f.hierarchyEngine().ClassHierarchy(className)
	if !h.Found {
		return nil, cxierrors.NotFound("get_class_hierarchy", className)
	}
	return &h, nil
}

// CallSite is one entry in the find_callers/find_callees results: the
// resolved record of a caller or callee.
type CallSite = types.SymbolRecord

// FindCallers implements the find_callers operation: every recorded
// caller of the function(s) named functionName (optionally scoped to
// className).
func (f *Facade) FindCallers(functionName, className string) ([]CallSite, error) {
	return f.callSites(functionName, className, (*callgraph.Graph).FindCallers)
}

// FindCallees implements the find_callees operation.
func (f *Facade) FindCallees(functionName, className string) ([]CallSite, error) {
	return f.callSites(functionName, className, (*callgraph.Graph).FindCallees)
}

func (f *Facade) callSites(functionName, className string, lookup func(*callgraph.Graph, string) []string) ([]CallSite, error) {
	if err := f.requireProject("find_callers_or_callees"); err != nil {
		return nil, err
	}
	if functionName == "" {
		return nil, cxierrors.InvalidArgument("find_callers_or_callees", "function_name is required")
	}

	usrs := f.resolveExactFunctionUSRs(functionName, className)
	graph := f.graph()
	seen := make(map[string]bool)
	var out []CallSite
	for _, usr := range usrs {
		for _, related := range lookup(graph, usr) {
			if seen[related] {
				continue
			}
			seen[related] = true
			if rec, ok := f.ix.RecordByUSR(related); ok {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

// CallPath is one path of function names from GetCallPath.
type CallPath []string

// GetCallPath implements the get_call_path operation: every simple call
// path from fromFunction to toFunction, rendered as qualified names
// ("Class::method" or a bare function name).
func (f *Facade) GetCallPath(fromFunction, toFunction string, maxDepth int) ([]CallPath, error) {
	if err := f.requireProject("get_call_path"); err != nil {
		return nil, err
	}
	if fromFunction == "" || toFunction == "" {
		return nil, cxierrors.InvalidArgument("get_call_path", "from_function and to_function are required")
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}

	fromUSRs := f.resolveExactFunctionUSRs(fromFunction, "")
	toUSRs := f.resolveExactFunctionUSRs(toFunction, "")
	if len(fromUSRs) == 0 || len(toUSRs) == 0 {
		return nil, nil
	}

	toSet := make(map[string]bool, len(toUSRs))
	for _, u := range toUSRs {
		toSet[u] = true
	}

	var out []CallPath
	for _, from := range fromUSRs {
		for to := range toSet {
			for _, usrPath := range f.graph().CallPaths(from, to, maxDepth) {
				out = append(out, f.renderNamePath(usrPath))
			}
		}
	}
	return out, nil
}

func (f *Facade) renderNamePath(usrPath []string) CallPath {
	names := make(CallPath, 0, len(usrPath))
	for _, usr := range usrPath {
		rec, ok := f.ix.RecordByUSR(usr)
		if !ok {
			continue
		}
		if rec.ParentClass != "" {
			names = append(names, rec.ParentClass+"::"+rec.Name)
		} else {
			names = append(names, rec.Name)
		}
	}
	return names
}

// resolveExactFunctionUSRs finds every USR of a function/method named
// exactly functionName (optionally scoped to className), mirroring the
// anchored-regex exact-name lookup the reference analyzer performs before
// walking the call graph.
func (f *Facade) resolveExactFunctionUSRs(functionName, className string) []string {
	var usrs []string
	for _, r := range f.ix.Snapshot().ByFuncName[functionName] {
		if className != "" && r.ParentClass != className {
			continue
		}
		if r.USR != "" {
			usrs = append(usrs, r.USR)
		}
	}
	return usrs
}

// RefreshProject implements the refresh_project operation.
func (f *Facade) RefreshProject(ctx context.Context) (int, error) {
	if err := f.requireProject("refresh_project"); err != nil {
		return 0, err
	}
	return f.ix.Refresh(ctx)
}

// ServerStatus is the result of get_server_status.
type ServerStatus struct {
	Initialized    bool                  `json:"initialized"`
	ParsedFiles    int                   `json:"parsed_files"`
	ClassCount     int                   `json:"class_count"`
	FunctionCount  int                   `json:"function_count"`
	SymbolCount    int                   `json:"symbol_count"`
	CallGraphEdges int                   `json:"call_graph_edges"`
	ProjectFiles   int                   `json:"project_files"`
	CallGraphStats callgraph.Statistics  `json:"call_graph_stats,omitempty"`
}

// GetServerStatus implements the get_server_status operation. It is the
// one operation callable even before set_project_directory, returning
// Initialized:false rather than an Uninitialized error, since a status
// probe is how a caller discovers initialization state in the first
// place.
func (f *Facade) GetServerStatus() ServerStatus {
	if f.ix == nil {
		return ServerStatus{Initialized: false}
	}
	stats := f.ix.Stats()
	snap := f.ix.Snapshot()

	projectFiles := 0
	for _, records := range snap.ByFile {
		for _, r := range records {
			if r.IsProject {
				projectFiles++
				break
			}
		}
	}

	cgStats := snap.Graph.Statistics()
	return ServerStatus{
		Initialized:    true,
		ParsedFiles:    stats.IndexedFiles,
		ClassCount:     stats.ClassCount,
		FunctionCount:  stats.FunctionCount,
		SymbolCount:    stats.ClassCount + stats.FunctionCount,
		CallGraphEdges: cgStats.TotalUniqueCalls,
		ProjectFiles:   projectFiles,
		CallGraphStats: cgStats,
	}
}

func (f *Facade) searchEngine() *search.Engine {
	snap := f.ix.Snapshot()
	return search.New(search.Indexes{
		ByClassName:    snap.ByClassName,
		ByFunctionName: snap.ByFuncName,
		ByFile:         snap.ByFile,
	})
}

func (f *Facade) hierarchyEngine() *hierarchy.Engine {
	snap := f.ix.Snapshot()
	return hierarchy.New(hierarchy.Indexes{ByClassName: snap.ByClassName})
}

func (f *Facade) graph() *callgraph.Graph {
	return f.ix.Snapshot().Graph
}

func cacheDirFor(root, name string) (string, error) {
	home, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	hash := hashstore.PathKey(root)
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return filepath.Join(home, "cxi", ".mcp_cache", fmt.Sprintf("%s_%s", name, hash)), nil
}
