// Package filecache persists per-file parse results keyed by content hash,
// so a file whose content has not changed since the last index run never
// needs to be re-parsed (spec §4.5, FileCache).
package filecache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// entry is the on-disk shape of one cached file's parse result.
type entry struct {
	FilePath  string              `json:"file_path"`
	FileHash  string              `json:"file_hash"`
	Timestamp float64             `json:"timestamp"`
	Symbols   []types.SymbolRecord `json:"symbols"`
}

// Store is a directory of per-file JSON cache entries, one per source
// file, named by the hash of that file's path so lookups never depend on
// filesystem path-length limits or on the path's characters being
// filename-safe.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating dir if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cxierrors.IOFailure("filecache.Open", dir, err)
	}
	return &Store{dir: dir}, nil
}

// pathFor returns the cache file location for a given source path, named
// by an md5 digest of the path itself (not its content) so the same
// source file always maps to the same cache entry regardless of its
// current content hash.
func (s *Store) pathFor(sourcePath string) string {
	sum := md5.Sum([]byte(sourcePath))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Load returns the cached records for sourcePath if a cache entry exists
// and its recorded hash matches currentHash. A miss (no entry, unreadable
// entry, or hash mismatch) returns (nil, false) rather than an error —
// a cache miss is an ordinary event the indexer resolves by reparsing.
func (s *Store) Load(sourcePath, currentHash string) ([]types.SymbolRecord, bool) {
	data, err := os.ReadFile(s.pathFor(sourcePath))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	if e.FileHash != currentHash {
		return nil, false
	}
	return e.Symbols, true
}

// Store writes the parse result for sourcePath under the given content
// hash, replacing any previous entry. Writes go through a temp file plus
// rename so a crash mid-write never leaves a truncated cache entry behind
// to be misread as valid on the next load.
func (s *Store) Store(sourcePath, fileHash string, records []types.SymbolRecord, timestamp float64) error {
	e := entry{
		FilePath:  sourcePath,
		FileHash:  fileHash,
		Timestamp: timestamp,
		Symbols:   records,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return cxierrors.Internal("filecache.Store", err)
	}

	dest := s.pathFor(sourcePath)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cxierrors.IOFailure("filecache.Store", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return cxierrors.IOFailure("filecache.Store", dest, err)
	}
	return nil
}

// Evict removes any cache entry for sourcePath. Used when a file is
// deleted from the project so refresh does not keep resurrecting stale
// symbols for it.
func (s *Store) Evict(sourcePath string) error {
	err := os.Remove(s.pathFor(sourcePath))
	if err != nil && !os.IsNotExist(err) {
		return cxierrors.IOFailure("filecache.Evict", sourcePath, err)
	}
	return nil
}
