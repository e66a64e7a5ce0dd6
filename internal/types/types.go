// Package types defines the data model shared across the indexer:
// SymbolRecord, FileEntry, and the small value types used to key them.
package types

import "time"

// SymbolKind discriminates the declarations the parser can emit.
type SymbolKind string

const (
	KindClass    SymbolKind = "class"
	KindStruct   SymbolKind = "struct"
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
)

// IsType reports whether the kind is a class/struct (as opposed to a
// function/method).
func (k SymbolKind) IsType() bool {
	return k == KindClass || k == KindStruct
}

// IsCallable reports whether the kind can own call edges.
func (k SymbolKind) IsCallable() bool {
	return k == KindFunction || k == KindMethod
}

// SymbolRecord is the canonical record of one declared C++ entity. Within a
// single file's record set, (USR, File, Line) uniquely identifies a record.
type SymbolRecord struct {
	Name   string     `json:"name"`
	Kind   SymbolKind `json:"kind"`
	File   string     `json:"file"`
	Line   int        `json:"line"`
	Column int        `json:"column"`

	// Signature is the textual type of the declarator as reported by the
	// front-end; empty for classes/structs.
	Signature string `json:"signature,omitempty"`

	// ParentClass is the enclosing class name for methods, empty otherwise.
	ParentClass string `json:"parent_class,omitempty"`

	// BaseClasses holds qualified base type names; only populated for
	// classes/structs.
	BaseClasses []string `json:"base_classes,omitempty"`

	// USR is the front-end's Unified Symbol Resolution string. Empty for
	// anonymous constructs; such records are indexed by name only.
	USR string `json:"usr,omitempty"`

	// IsProject is true when the defining file lies under the project root
	// and outside any configured dependency directory.
	IsProject bool `json:"is_project"`

	// Calls/CalledBy hold USRs; populated only for function/method kinds.
	Calls    []string `json:"calls,omitempty"`
	CalledBy []string `json:"called_by,omitempty"`

	Access    string `json:"access,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// Key identifies a record within a single file's record set.
type Key struct {
	USR  string
	File string
	Line int
}

// RecordKey returns the (usr, file, line) identity of r.
func RecordKey(r SymbolRecord) Key {
	return Key{USR: r.USR, File: r.File, Line: r.Line}
}

// FileEntry is the per-file persistent artifact: a content hash, the
// records extracted from the file, and when it was parsed.
type FileEntry struct {
	Path        string         `json:"file_path"`
	ContentHash string         `json:"file_hash"`
	ParsedAt    time.Time      `json:"timestamp"`
	Records     []SymbolRecord `json:"symbols"`
}

// CppExtensions lists the extensions FileScanner considers source files.
var CppExtensions = map[string]bool{
	".cpp": true, ".cc": true, ".cxx": true, ".c++": true,
	".h": true, ".hpp": true, ".hxx": true, ".h++": true,
}
