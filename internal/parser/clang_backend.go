package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	clang "github.com/go-clang/clang-v14/clang"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// ClangBackend drives libclang over one file per call. A single clang.Index
// is shared across calls — the front-end library handle is process-wide
// and stateless with respect to our indexes (spec §9); translation units
// themselves are opaque resources owned by the calling worker for the
// duration of one parse and released immediately after (spec §5).
type ClangBackend struct {
	mu  sync.Mutex
	idx clang.Index

	// IsProjectFile classifies a file path as project vs. dependency; it is
	// the scanner's IsProjectFile, injected so this package stays decoupled
	// from the scanner's config.
	IsProjectFile func(path string) bool
}

// NewClangBackend creates a backend with a fresh libclang index.
// excludeDeclarationsFromPCH=0, displayDiagnostics=0 (diagnostics surface
// as partial-parse results, not noisy stderr output, matching the original
// analyzer's choice to stay quiet per file).
func NewClangBackend(isProjectFile func(string) bool) *ClangBackend {
	return &ClangBackend{
		idx:           clang.NewIndex(0, 0),
		IsProjectFile: isProjectFile,
	}
}

// Close disposes the underlying libclang index.
func (b *ClangBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idx.Dispose()
}

// Parse implements Backend. A single clang.Index is not safe for
// concurrent TranslationUnit creation across threads in all libclang
// builds, so parses, including the AST walk, are serialized on b.mu. The
// Indexer's worker pool shares one ClangBackend, so only hashing, cache
// lookups and merges run in parallel across its workers.
func (b *ClangBackend) Parse(ctx context.Context, path string, args []string) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var tu clang.TranslationUnit
	errCode := b.idx.ParseTranslationUnit2(
		path,
		args,
		nil,
		uint32(clang.TranslationUnit_DetailedPreprocessingRecord|clang.TranslationUnit_KeepGoing),
		&tu,
	)
	if clang.ErrorCode(errCode) != clang.Error_Success {
		return nil, fmt.Errorf("clang: no translation unit for %s (%v)", path, clang.ErrorCode(errCode))
	}
	defer tu.Dispose()

	w := &walker{filePath: path, isProjectFile: b.IsProjectFile}
	w.walk(tu.TranslationUnitCursor(), "", "")

	return &Result{Records: w.records, Calls: w.calls}, nil
}

// walker threads the AST-walk state (current enclosing class, current
// enclosing function USR) explicitly through recursive calls, mirroring
// the reference analyzer's _process_cursor rather than relying on
// libclang's automatic recurse/continue visitor protocol, since the
// per-node state needed here does not fit that protocol.
type walker struct {
	filePath      string
	isProjectFile func(string) bool
	records       []types.SymbolRecord
	calls         []CallEdge
}

func (w *walker) walk(cursor clang.Cursor, parentClass, parentFuncUSR string) {
	file, line, column, _ := cursor.Location().FileLocation()
	if !file.IsNull() && file.Name() != w.filePath {
		return
	}

	switch cursor.Kind() {
	case clang.Cursor_ClassDecl, clang.Cursor_StructDecl:
		name := cursor.Spelling()
		if name == "" {
			break
		}
		kind := types.KindClass
		if cursor.Kind() == clang.Cursor_StructDecl {
			kind = types.KindStruct
		}
		w.emit(types.SymbolRecord{
			Name:        name,
			Kind:        kind,
			File:        w.filePath,
			Line:        int(line),
			Column:      int(column),
			BaseClasses: w.baseClasses(cursor),
			USR:         cursor.USR(),
			IsProject:   w.isProject(),
		})
		for _, child := range children(cursor) {
			w.walk(child, name, "")
		}
		return

	case clang.Cursor_FunctionDecl, clang.Cursor_CXXMethod:
		name := cursor.Spelling()
		if name == "" {
			break
		}
		kind := types.KindFunction
		parent := ""
		if cursor.Kind() == clang.Cursor_CXXMethod {
			kind = types.KindMethod
			parent = parentClass
		}
		usr := cursor.USR()
		w.emit(types.SymbolRecord{
			Name:        name,
			Kind:        kind,
			File:        w.filePath,
			Line:        int(line),
			Column:      int(column),
			Signature:   cursor.Type().Spelling(),
			ParentClass: parent,
			USR:         usr,
			IsProject:   w.isProject(),
		})
		for _, child := range children(cursor) {
			w.walk(child, parentClass, usr)
		}
		return

	case clang.Cursor_CallExpr:
		if parentFuncUSR != "" {
			ref := cursor.Referenced()
			if !ref.IsNull() {
				if refUSR := ref.USR(); refUSR != "" {
					w.calls = append(w.calls, CallEdge{Caller: parentFuncUSR, Callee: refUSR})
				}
			}
		}
	}

	for _, child := range children(cursor) {
		w.walk(child, parentClass, parentFuncUSR)
	}
}

func (w *walker) baseClasses(cursor clang.Cursor) []string {
	var bases []string
	for _, child := range children(cursor) {
		if child.Kind() != clang.Cursor_CXXBaseSpecifier {
			continue
		}
		name := child.Type().Spelling()
		name = strings.TrimPrefix(name, "class ")
		name = strings.TrimPrefix(name, "struct ")
		bases = append(bases, name)
	}
	return bases
}

func (w *walker) isProject() bool {
	if w.isProjectFile == nil {
		return true
	}
	return w.isProjectFile(w.filePath)
}

func (w *walker) emit(r types.SymbolRecord) {
	w.records = append(w.records, r)
}

// children collects cursor's direct children via libclang's visitor
// protocol, so that callers can recurse manually with state the protocol
// itself does not carry.
func children(cursor clang.Cursor) []clang.Cursor {
	var kids []clang.Cursor
	cursor.Visit(func(c, _ clang.Cursor) clang.ChildVisitResult {
		kids = append(kids, c)
		return clang.ChildVisit_Continue
	})
	return kids
}
