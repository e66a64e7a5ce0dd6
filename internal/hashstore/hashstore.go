// Package hashstore computes content hashes used to decide whether a file
// needs reparsing. The function is immaterial to correctness so long as
// equal bytes produce equal hashes and collisions are astronomically
// unlikely. Sum computes both a fast 64-bit digest (xxhash) and a stable
// 128-bit digest (truncated SHA-256), the pairing the teacher's
// FileContentStore uses; change detection compares only the stable digest.
package hashstore

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Empty is the hash of an unreadable file. It never equals any live file's
// hash, so files that fail to read are always reparsed.
const Empty = ""

// Digest holds both the fast 64-bit hash and the stable digest that the
// on-disk caches store as a file's hash and compare on load.
type Digest struct {
	Fast   uint64
	Stable string
}

// IsEmpty reports whether d is the zero digest produced by a failed read.
func (d Digest) IsEmpty() bool {
	return d.Stable == Empty
}

// Sum hashes the given bytes.
func Sum(content []byte) Digest {
	sum := sha256.Sum256(content)
	return Digest{
		Fast:   xxhash.Sum64(content),
		Stable: hex.EncodeToString(sum[:16]),
	}
}

// SumFile reads path and hashes its contents. A read failure yields the
// empty digest rather than an error, matching the spec's requirement that
// unreadable files always compare unequal to any stored hash.
func SumFile(path string) Digest {
	content, err := os.ReadFile(path)
	if err != nil {
		return Digest{}
	}
	return Sum(content)
}

// PathKey returns a filesystem-safe cache key derived from an arbitrary
// string (a file path or project root), used to name the per-project cache
// subdirectory. Per-file cache entries are named by filecache itself.
func PathKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
