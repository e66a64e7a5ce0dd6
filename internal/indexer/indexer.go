// Package indexer orchestrates the full index lifecycle: scanning,
// parallel parsing, per-file and aggregate caching, and incremental
// refresh (spec §4.6, Indexer). It is the single place that mutates the
// symbol indexes and call graph; each worker goroutine parses (or loads
// from cache) one file and then merges that file's records itself, under
// the indexer's write lock.
package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/callgraph"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/filecache"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/globalcache"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/hashstore"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/parser"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/progress"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/scanner"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// Indexer owns the project's indexed state: the symbol tables, the call
// graph, and the caches backing incremental reindexing.
type Indexer struct {
	cfg      *config.Config
	scanner  *scanner.FileScanner
	backend  parser.Backend
	fileCache *filecache.Store
	globalCache *globalcache.Store
	log      *slog.Logger

	mu          sync.RWMutex
	byClassName map[string][]types.SymbolRecord
	byFuncName  map[string][]types.SymbolRecord
	byFile      map[string][]types.SymbolRecord
	byUSR       map[string]types.SymbolRecord
	fileHashes  map[string]string
	graph       *callgraph.Graph
	indexedAt   time.Time
}

// New constructs an Indexer. cacheDir is the root of this project's
// on-disk cache (query.Facade resolves it once as
// <user cache dir>/cxi/.mcp_cache/<name>_<hash>); backend performs the
// actual C++ parse.
func New(cfg *config.Config, backend parser.Backend, cacheDir string, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fc, err := filecache.Open(filepath.Join(cacheDir, "files"))
	if err != nil {
		return nil, err
	}
	gc, err := globalcache.Open(cacheDir)
	if err != nil {
		return nil, err
	}

	return &Indexer{
		cfg:         cfg,
		scanner:     scanner.New(cfg),
		backend:     backend,
		fileCache:   fc,
		globalCache: gc,
		log:         logger,
		byClassName: make(map[string][]types.SymbolRecord),
		byFuncName:  make(map[string][]types.SymbolRecord),
		byFile:      make(map[string][]types.SymbolRecord),
		byUSR:       make(map[string]types.SymbolRecord),
		fileHashes:  make(map[string]string),
		graph:       callgraph.New(),
	}, nil
}

// RecordByUSR returns the record for usr, if indexed.
func (ix *Indexer) RecordByUSR(usr string) (types.SymbolRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	r, ok := ix.byUSR[usr]
	return r, ok
}

// Snapshot is a read-only view handed to the search/hierarchy engines.
type Snapshot struct {
	ByClassName map[string][]types.SymbolRecord
	ByFuncName  map[string][]types.SymbolRecord
	ByFile      map[string][]types.SymbolRecord
	Graph       *callgraph.Graph
}

// Snapshot returns the indexer's current state. The returned maps are
// shallow copies of the top-level map (not of the record slices), safe for
// a caller to range over while the indexer continues mutating in the
// background — the indexer always replaces a file's slice wholesale
// rather than mutating it in place, so a reader never observes a
// half-written slice.
func (ix *Indexer) Snapshot() Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Snapshot{
		ByClassName: copyRecordMap(ix.byClassName),
		ByFuncName:  copyRecordMap(ix.byFuncName),
		ByFile:      copyRecordMap(ix.byFile),
		Graph:       ix.graph,
	}
}

func copyRecordMap(m map[string][]types.SymbolRecord) map[string][]types.SymbolRecord {
	out := make(map[string][]types.SymbolRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Stats summarizes the indexer's current state for get_server_status.
type Stats struct {
	IndexedFiles int
	ClassCount   int
	FunctionCount int
	IndexedAt    time.Time
}

// Stats returns a snapshot of the indexer's size.
func (ix *Indexer) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		IndexedFiles:  len(ix.fileHashes),
		ClassCount:    len(ix.byClassName),
		FunctionCount: len(ix.byFuncName),
		IndexedAt:     ix.indexedAt,
	}
}

// IndexProject performs a full (or cache-accelerated) index of the
// project. When force is false and an aggregate cache exists with the
// current version and includeDependencies setting, it is loaded directly
// and no files are parsed at all; the aggregate cache records no exclude
// or dependency directories, so changing those does not invalidate it.
// Otherwise every discovered file is parsed, using the per-file cache to
// skip files whose content hash has not changed.
func (ix *Indexer) IndexProject(ctx context.Context, force, includeDependencies bool, reporter *progress.Reporter) (int, error) {
	ix.cfg.Index.IncludeDependencies = includeDependencies

	if !force {
		if artifact, ok := ix.globalCache.Load(ix.cfg.Index.IncludeDependencies); ok {
			ix.loadArtifact(artifact)
			ix.log.Info("loaded cached index", "files", len(artifact.FileHashes))
			return len(artifact.FileHashes), nil
		}
	}

	files, err := ix.scanner.Scan()
	if err != nil {
		return 0, err
	}
	if reporter != nil {
		reporter.SetTotal(len(files))
	}
	ix.log.Info("indexing project", "files", len(files), "force", force)

	indexed, err := ix.indexFiles(ctx, files, false, reporter)
	if err != nil {
		return indexed, err
	}

	if err := ix.saveArtifact(); err != nil {
		ix.log.Warn("failed to save aggregate cache", "error", err)
	}
	ix.mu.Lock()
	ix.indexedAt = time.Now()
	ix.mu.Unlock()

	if reporter != nil {
		reporter.Finish()
	}
	return indexed, nil
}

// Refresh re-scans the project and reindexes any file whose content hash
// has changed or which is newly present, removing entries for files that
// have disappeared. It returns the number of files that changed.
func (ix *Indexer) Refresh(ctx context.Context) (int, error) {
	files, err := ix.scanner.Scan()
	if err != nil {
		return 0, err
	}

	current := make(map[string]bool, len(files))
	var changed []string
	for _, f := range files {
		current[f] = true
		hash := hashstore.SumFile(f)
		ix.mu.RLock()
		prev, known := ix.fileHashes[f]
		ix.mu.RUnlock()
		if !known || prev != hash.Stable {
			changed = append(changed, f)
		}
	}

	ix.mu.Lock()
	var removed []string
	for f := range ix.fileHashes {
		if !current[f] {
			removed = append(removed, f)
		}
	}
	ix.mu.Unlock()
	for _, f := range removed {
		ix.removeFile(f)
	}

	if len(changed) == 0 && len(removed) == 0 {
		return 0, nil
	}

	if _, err := ix.indexFiles(ctx, changed, true, nil); err != nil {
		return len(changed) + len(removed), err
	}
	if err := ix.saveArtifact(); err != nil {
		ix.log.Warn("failed to save aggregate cache after refresh", "error", err)
	}
	return len(changed) + len(removed), nil
}

// IndexFile indexes exactly one file, optionally bypassing the per-file
// cache. It reports whether the result came from cache.
func (ix *Indexer) IndexFile(ctx context.Context, path string, force bool) (wasCached bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, cxierrors.InvalidArgument("IndexFile", err.Error())
	}
	return ix.indexOne(ctx, abs, force)
}

func (ix *Indexer) indexFiles(ctx context.Context, files []string, force bool, reporter *progress.Reporter) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.ResolvedParallelism())

	var indexed int
	var mu sync.Mutex

	for _, f := range files {
		f := f
		g.Go(func() error {
			cached, err := ix.indexOne(gctx, f, force)
			if err != nil {
				ix.log.Warn("failed to parse file", "path", f, "error", err)
				if reporter != nil {
					reporter.FileFailed(f)
				}
				return nil // one file's parse failure never aborts the run
			}
			mu.Lock()
			indexed++
			mu.Unlock()
			if reporter != nil {
				reporter.FileDone(f, cached)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// indexOne parses (or loads from cache) exactly one file and merges its
// records into the shared index. It is the unit of work handed to the
// worker pool; the merge step it performs at the end takes the indexer's
// single write lock, so concurrent workers never interleave partial
// updates to the same file's entry.
func (ix *Indexer) indexOne(ctx context.Context, path string, force bool) (wasCached bool, err error) {
	digest := hashstore.SumFile(path)
	if digest.IsEmpty() {
		return false, cxierrors.IOFailure("indexOne", path, os.ErrNotExist)
	}

	if !force {
		if cached, ok := ix.fileCache.Load(path, digest.Stable); ok {
			ix.merge(path, digest.Stable, cached)
			return true, nil
		}
	}

	args := parser.BuildCompileArgs(ix.cfg)
	result, err := ix.backend.Parse(ctx, path, args)
	if err != nil {
		return false, cxierrors.ParseFailure(path, err)
	}

	records := result.Records
	callerCalls := make(map[string][]string)
	for _, edge := range result.Calls {
		callerCalls[edge.Caller] = append(callerCalls[edge.Caller], edge.Callee)
	}
	for i := range records {
		if calls, ok := callerCalls[records[i].USR]; ok {
			records[i].Calls = calls
		}
	}

	if err := ix.fileCache.Store(path, digest.Stable, records, float64(time.Now().Unix())); err != nil {
		ix.log.Warn("failed to persist per-file cache", "path", path, "error", err)
	}

	ix.merge(path, digest.Stable, records)
	return false, nil
}

// merge replaces path's contribution to the shared indexes and call graph
// with records. Together with removeFile and loadArtifact it is the only
// code that rewrites byClassName/byFuncName/byFile/graph, and each of the
// three holds ix.mu while rewriting the maps.
func (ix *Indexer) merge(path, hash string, records []types.SymbolRecord) {
	ix.mu.Lock()

	var old []types.SymbolRecord
	if o, ok := ix.byFile[path]; ok {
		old = o
		for _, r := range old {
			if r.Kind.IsType() {
				dropFileRecords(ix.byClassName, r.Name, path)
			} else {
				dropFileRecords(ix.byFuncName, r.Name, path)
			}
			if r.USR != "" {
				delete(ix.byUSR, r.USR)
			}
		}
	}

	ix.byFile[path] = records
	ix.fileHashes[path] = hash
	for _, r := range records {
		if r.Kind.IsType() {
			ix.byClassName[r.Name] = append(ix.byClassName[r.Name], r)
		} else {
			ix.byFuncName[r.Name] = append(ix.byFuncName[r.Name], r)
		}
		if r.USR != "" {
			ix.byUSR[r.USR] = r
		}
	}
	ix.mu.Unlock()

	// Drop the file's previous call-graph contribution before adding the
	// fresh edges below, same as removeFile, so a reparse never leaves
	// stale caller->callee edges for a call the new version dropped.
	for _, r := range old {
		if r.USR != "" {
			ix.graph.RemoveSymbol(r.USR)
		}
	}
	for _, r := range records {
		for _, callee := range r.Calls {
			ix.graph.AddCall(r.USR, callee)
		}
	}
}

// dropFileRecords removes path's records from m[name], deleting the key
// once no records remain.
func dropFileRecords(m map[string][]types.SymbolRecord, name, path string) {
	if rest := removeByFile(m[name], path); rest != nil {
		m[name] = rest
	} else {
		delete(m, name)
	}
}

func removeByFile(records []types.SymbolRecord, path string) []types.SymbolRecord {
	out := make([]types.SymbolRecord, 0, len(records))
	for _, r := range records {
		if r.File != path {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// removeFile deletes a file's contribution to every index entirely,
// including its call-graph edges, used when refresh finds the file gone.
func (ix *Indexer) removeFile(path string) {
	ix.mu.Lock()
	var records []types.SymbolRecord
	if old, ok := ix.byFile[path]; ok {
		records = old
		for _, r := range old {
			if r.Kind.IsType() {
				dropFileRecords(ix.byClassName, r.Name, path)
			} else {
				dropFileRecords(ix.byFuncName, r.Name, path)
			}
			if r.USR != "" {
				delete(ix.byUSR, r.USR)
			}
		}
	}
	delete(ix.byFile, path)
	delete(ix.fileHashes, path)
	ix.mu.Unlock()

	for _, r := range records {
		if r.USR != "" {
			ix.graph.RemoveSymbol(r.USR)
		}
	}
	_ = ix.fileCache.Evict(path)
}

func (ix *Indexer) loadArtifact(artifact *globalcache.Artifact) {
	ix.mu.Lock()
	ix.byClassName = copyRecordMap(artifact.ClassIndex)
	ix.byFuncName = copyRecordMap(artifact.FunctionIndex)
	ix.byFile = make(map[string][]types.SymbolRecord)
	ix.byUSR = make(map[string]types.SymbolRecord)
	ix.fileHashes = make(map[string]string, len(artifact.FileHashes))
	for path, hash := range artifact.FileHashes {
		ix.fileHashes[path] = hash
	}
	for _, records := range ix.byClassName {
		for _, r := range records {
			ix.byFile[r.File] = append(ix.byFile[r.File], r)
			if r.USR != "" {
				ix.byUSR[r.USR] = r
			}
		}
	}
	for _, records := range ix.byFuncName {
		for _, r := range records {
			ix.byFile[r.File] = append(ix.byFile[r.File], r)
			if r.USR != "" {
				ix.byUSR[r.USR] = r
			}
		}
	}
	ix.indexedAt = time.Now()
	ix.mu.Unlock()

	ix.graph.Rebuild(globalcache.CallEdges(artifact))
}

func (ix *Indexer) saveArtifact() error {
	ix.mu.RLock()
	classIndex := copyRecordMap(ix.byClassName)
	functionIndex := copyRecordMap(ix.byFuncName)
	fileHashes := make(map[string]string, len(ix.fileHashes))
	for path, hash := range ix.fileHashes {
		fileHashes[path] = hash
	}
	fileCount := len(ix.fileHashes)
	ix.mu.RUnlock()

	return ix.globalCache.Save(&globalcache.Artifact{
		IncludeDependencies: ix.cfg.Index.IncludeDependencies,
		ClassIndex:          classIndex,
		FunctionIndex:       functionIndex,
		FileHashes:          fileHashes,
		IndexedFileCount:    fileCount,
		Timestamp:           float64(time.Now().Unix()),
	})
}
