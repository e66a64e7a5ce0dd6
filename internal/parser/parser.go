// Package parser drives a C++ front-end over one file at a time and emits
// SymbolRecords and call edges (spec §4.3). The front-end itself is an
// external collaborator reached through the Backend interface; this
// package owns compile-argument assembly and the AST walk, not the
// front-end's discovery or installation.
package parser

import (
	"context"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// Result is what a Backend returns for one file: the complete list of
// SymbolRecords for declarations whose primary location lies in that file,
// plus the call edges (caller USR -> callee USR) discovered while walking
// function bodies.
type Result struct {
	Records []types.SymbolRecord
	Calls   []CallEdge
}

// CallEdge is one caller->callee relationship discovered inside a function
// body.
type CallEdge struct {
	Caller string
	Callee string
}

// Backend is the capability the core Parser consumes: given a path and a
// compile-argument set, return either a walkable result or a failure.
// Failure is reserved for cases where the front-end returns no translation
// unit at all (spec §4.3); partial parses (missing headers, etc.) still
// succeed with whatever was extracted.
type Backend interface {
	Parse(ctx context.Context, path string, args []string) (*Result, error)
}
