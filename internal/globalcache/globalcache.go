// Package globalcache persists the aggregate index artifact: every
// SymbolRecord across the project, keyed the way spec §6 fixes for the
// on-disk shape, plus the version/dependency-flag check needed to know
// whether that artifact is still valid (spec §4.6, GlobalCache).
package globalcache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// Version is the on-disk schema version. A cache written by a different
// version is rejected outright rather than partially trusted.
const Version = "2.0"

// Artifact is the serializable shape of the aggregate cache file. Its field
// names are part of the external contract (spec §6): this is the shape a
// reimplementation in another language must be able to read back, so the
// keys below are fixed and must not be renamed for internal convenience.
type Artifact struct {
	Version             string                           `json:"version"`
	IncludeDependencies bool                             `json:"include_dependencies"`
	ClassIndex          map[string][]types.SymbolRecord   `json:"class_index"`
	FunctionIndex       map[string][]types.SymbolRecord   `json:"function_index"`
	FileHashes          map[string]string                 `json:"file_hashes"`
	IndexedFileCount    int                                `json:"indexed_file_count"`
	Timestamp           float64                            `json:"timestamp"`
}

// Store manages the single cache_info.json artifact under a cache
// directory.
type Store struct {
	path string
}

// Open returns a Store for the cache_info.json file under dir, creating
// dir if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cxierrors.IOFailure("globalcache.Open", dir, err)
	}
	return &Store{path: filepath.Join(dir, "cache_info.json")}, nil
}

// Load reads the artifact and validates it against the current
// dependency-inclusion setting. Any mismatch — missing file, wrong
// version, decode failure, or a flipped include_dependencies — is reported
// as a cache miss (nil, false), never a hard error: the caller's response
// is always "rebuild from scratch," so there is nothing a caller could do
// differently for a corrupt cache versus an absent one.
func (s *Store) Load(includeDependencies bool) (*Artifact, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false
	}
	if a.Version != Version {
		return nil, false
	}
	if a.IncludeDependencies != includeDependencies {
		return nil, false
	}
	return &a, true
}

// Save writes the artifact atomically (temp file + rename), replacing any
// existing cache_info.json.
func (s *Store) Save(a *Artifact) error {
	a.Version = Version
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return cxierrors.Internal("globalcache.Save", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cxierrors.IOFailure("globalcache.Save", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return cxierrors.IOFailure("globalcache.Save", s.path, err)
	}
	return nil
}

// ByUSR indexes an artifact's records by USR, for rebuilding search and
// call-graph indexes after a load.
func ByUSR(a *Artifact) map[string][]types.SymbolRecord {
	out := make(map[string][]types.SymbolRecord)
	for _, rec := range allRecords(a) {
		if rec.USR == "" {
			continue
		}
		out[rec.USR] = append(out[rec.USR], rec)
	}
	return out
}

// CallEdges extracts caller->callees adjacency from an artifact's records,
// for rebuilding a callgraph.Graph after a load.
func CallEdges(a *Artifact) map[string][]string {
	out := make(map[string][]string)
	for _, rec := range allRecords(a) {
		if rec.USR == "" || len(rec.Calls) == 0 {
			continue
		}
		out[rec.USR] = append(out[rec.USR], rec.Calls...)
	}
	return out
}

func allRecords(a *Artifact) []types.SymbolRecord {
	var out []types.SymbolRecord
	for _, records := range a.ClassIndex {
		out = append(out, records...)
	}
	for _, records := range a.FunctionIndex {
		out = append(out, records...)
	}
	return out
}
