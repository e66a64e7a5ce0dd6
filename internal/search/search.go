// Package search answers name-pattern lookups over an indexed project:
// classes, functions, arbitrary symbols, file contents, and per-class and
// per-function detail views (spec §4.7, SearchEngine).
package search

import (
	"regexp"
	"sort"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/cxierrors"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// Indexes is the read side of the indexer's symbol tables, grouped the way
// the query operations need them. The indexer owns construction and
// incremental maintenance; Engine only reads.
type Indexes struct {
	ByClassName    map[string][]types.SymbolRecord
	ByFunctionName map[string][]types.SymbolRecord
	ByFile         map[string][]types.SymbolRecord
}

// Engine answers search queries over a fixed snapshot of Indexes. Callers
// that mutate the underlying index concurrently must construct a new
// Engine (or otherwise synchronize), since Engine itself does no locking.
type Engine struct {
	idx Indexes
}

// New returns an Engine over the given indexes.
func New(idx Indexes) *Engine {
	return &Engine{idx: idx}
}

// ClassResult is one match from SearchClasses.
type ClassResult struct {
	Name        string   `json:"name"`
	Kind        types.SymbolKind `json:"kind"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	IsProject   bool     `json:"is_project"`
	BaseClasses []string `json:"base_classes,omitempty"`
}

// FunctionResult is one match from SearchFunctions.
type FunctionResult struct {
	Name        string           `json:"name"`
	Kind        types.SymbolKind `json:"kind"`
	File        string           `json:"file"`
	Line        int              `json:"line"`
	Signature   string           `json:"signature,omitempty"`
	IsProject   bool             `json:"is_project"`
	ParentClass string           `json:"parent_class,omitempty"`
}

// SearchClasses returns every class/struct whose name matches pattern
// (case-insensitive regex), optionally restricted to project files.
// An invalid pattern is an InvalidArgument, not a panic or a silent empty
// result.
func (e *Engine) SearchClasses(pattern string, projectOnly bool) ([]ClassResult, error) {
	regex, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var out []ClassResult
	for name, records := range e.idx.ByClassName {
		if !regex.MatchString(name) {
			continue
		}
		for _, r := range records {
			if projectOnly && !r.IsProject {
				continue
			}
			out = append(out, ClassResult{
				Name: r.Name, Kind: r.Kind, File: r.File, Line: r.Line,
				IsProject: r.IsProject, BaseClasses: r.BaseClasses,
			})
		}
	}
	sortClassResults(out)
	return out, nil
}

// SearchFunctions returns every function/method whose name matches
// pattern, optionally restricted to project files and/or a specific
// enclosing class.
func (e *Engine) SearchFunctions(pattern string, projectOnly bool, className string) ([]FunctionResult, error) {
	regex, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	var out []FunctionResult
	for name, records := range e.idx.ByFunctionName {
		if !regex.MatchString(name) {
			continue
		}
		for _, r := range records {
			if projectOnly && !r.IsProject {
				continue
			}
			if className != "" && r.ParentClass != className {
				continue
			}
			out = append(out, FunctionResult{
				Name: r.Name, Kind: r.Kind, File: r.File, Line: r.Line,
				Signature: r.Signature, IsProject: r.IsProject, ParentClass: r.ParentClass,
			})
		}
	}
	sortFunctionResults(out)
	return out, nil
}

// SymbolResults bundles the class and function hits from SearchSymbols.
type SymbolResults struct {
	Classes   []ClassResult    `json:"classes"`
	Functions []FunctionResult `json:"functions"`
}

// SearchSymbols searches across both classes and functions, optionally
// restricted to a set of symbol kinds ("class", "struct", "function",
// "method"). An empty kinds list searches everything.
func (e *Engine) SearchSymbols(pattern string, projectOnly bool, kinds []string) (*SymbolResults, error) {
	wantClasses := len(kinds) == 0 || containsAny(kinds, "class", "struct")
	wantFunctions := len(kinds) == 0 || containsAny(kinds, "function", "method")

	res := &SymbolResults{}
	if wantClasses {
		classes, err := e.SearchClasses(pattern, projectOnly)
		if err != nil {
			return nil, err
		}
		res.Classes = classes
	}
	if wantFunctions {
		functions, err := e.SearchFunctions(pattern, projectOnly, "")
		if err != nil {
			return nil, err
		}
		res.Functions = functions
	}
	return res, nil
}

// FindInFile returns every record whose File equals path exactly.
func (e *Engine) FindInFile(path string) []types.SymbolRecord {
	return e.idx.ByFile[path]
}

// MethodInfo is one method entry in a ClassInfo.
type MethodInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
	Access    string `json:"access,omitempty"`
	Line      int    `json:"line"`
}

// ClassInfo is the detailed view returned by GetClassInfo.
type ClassInfo struct {
	Name        string       `json:"name"`
	Kind        types.SymbolKind `json:"kind"`
	File        string       `json:"file"`
	Line        int          `json:"line"`
	BaseClasses []string     `json:"base_classes,omitempty"`
	Methods     []MethodInfo `json:"methods"`
	IsProject   bool         `json:"is_project"`
}

// GetClassInfo returns a detailed view of className: its declaration plus
// every method across the function index whose ParentClass matches. When
// a class has more than one declaration (forward-declared in one file,
// defined in another), the first indexed occurrence is used as the
// canonical declaration site.
func (e *Engine) GetClassInfo(className string) (*ClassInfo, error) {
	records := e.idx.ByClassName[className]
	if len(records) == 0 {
		return nil, cxierrors.NotFound("GetClassInfo", className)
	}
	primary := records[0]

	var methods []MethodInfo
	for _, records := range e.idx.ByFunctionName {
		for _, r := range records {
			if r.ParentClass == className {
				methods = append(methods, MethodInfo{
					Name: r.Name, Signature: r.Signature, Access: r.Access, Line: r.Line,
				})
			}
		}
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Line < methods[j].Line })

	return &ClassInfo{
		Name: primary.Name, Kind: primary.Kind, File: primary.File, Line: primary.Line,
		BaseClasses: primary.BaseClasses, Methods: methods, IsProject: primary.IsProject,
	}, nil
}

// GetFunctionSignature returns every rendered "Name(args)" or
// "Class::Name(args)" signature matching functionName, optionally
// restricted to a single enclosing class.
func (e *Engine) GetFunctionSignature(functionName, className string) []string {
	var out []string
	for _, r := range e.idx.ByFunctionName[functionName] {
		if className != "" && r.ParentClass != className {
			continue
		}
		if r.ParentClass != "" {
			out = append(out, r.ParentClass+"::"+r.Name+r.Signature)
		} else {
			out = append(out, r.Name+r.Signature)
		}
	}
	return out
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	regex, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, cxierrors.InvalidArgument("search", "invalid pattern: "+err.Error())
	}
	return regex, nil
}

func containsAny(haystack []string, needles ...string) bool {
	set := make(map[string]bool, len(needles))
	for _, n := range needles {
		set[n] = true
	}
	for _, h := range haystack {
		if set[h] {
			return true
		}
	}
	return false
}

func sortClassResults(results []ClassResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Line < results[j].Line
	})
}

func sortFunctionResults(results []FunctionResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Line < results[j].Line
	})
}
