// Package hierarchy answers inheritance-tree queries: direct derived
// classes, and the full recursive base/derived hierarchy for a class
// (spec §4.8, HierarchyEngine).
package hierarchy

import (
	"sort"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// Indexes is the read side of the class index, by name.
type Indexes struct {
	ByClassName map[string][]types.SymbolRecord
}

// Engine answers hierarchy queries over a fixed snapshot of Indexes.
type Engine struct {
	idx Indexes
}

// New returns an Engine over the given indexes.
func New(idx Indexes) *Engine {
	return &Engine{idx: idx}
}

// DerivedClass is one entry in DerivedClasses' result.
type DerivedClass struct {
	Name        string           `json:"name"`
	Kind        types.SymbolKind `json:"kind"`
	File        string           `json:"file"`
	Line        int              `json:"line"`
	Column      int              `json:"column"`
	IsProject   bool             `json:"is_project"`
	BaseClasses []string         `json:"base_classes"`
}

// DerivedClasses returns every class whose BaseClasses list contains
// className, optionally restricted to project files.
func (e *Engine) DerivedClasses(className string, projectOnly bool) []DerivedClass {
	var out []DerivedClass
	for _, records := range e.idx.ByClassName {
		for _, r := range records {
			if projectOnly && !r.IsProject {
				continue
			}
			if containsString(r.BaseClasses, className) {
				out = append(out, DerivedClass{
					Name: r.Name, Kind: r.Kind, File: r.File, Line: r.Line, Column: r.Column,
					IsProject: r.IsProject, BaseClasses: r.BaseClasses,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BaseNode is one node of a recursive base-class hierarchy tree. When
// CircularReference is true, BaseClasses is always empty — the node marks
// where a cycle closed rather than descending into it again.
type BaseNode struct {
	Name              string     `json:"name"`
	BaseClasses       []BaseNode `json:"base_classes,omitempty"`
	CircularReference bool       `json:"circular_reference,omitempty"`
}

// DerivedNode is one node of a recursive derived-class hierarchy tree.
type DerivedNode struct {
	Name              string        `json:"name"`
	DerivedClasses    []DerivedNode `json:"derived_classes,omitempty"`
	CircularReference bool          `json:"circular_reference,omitempty"`
}

// Hierarchy is the complete result of ClassHierarchy.
type Hierarchy struct {
	ClassName      string        `json:"class_name"`
	BaseClasses    []string      `json:"base_classes"`
	DerivedClasses []DerivedClass `json:"derived_classes"`
	BaseHierarchy  BaseNode      `json:"base_hierarchy"`
	DerivedHierarchy DerivedNode `json:"derived_hierarchy"`
	Found          bool          `json:"found"`
}

// ClassHierarchy returns the full ancestor/descendant picture for
// className: its direct base and derived classes, plus fully recursive
// trees in both directions. Cycles (a class that is its own transitive
// base, however indirectly — only reachable through malformed or
// template-generated sources) are broken by a per-branch visited set, so
// a cycle terminates that branch with a circular_reference marker instead
// of recursing forever.
func (e *Engine) ClassHierarchy(className string) Hierarchy {
	records := e.idx.ByClassName[className]
	if len(records) == 0 {
		return Hierarchy{ClassName: className, Found: false}
	}

	var baseClasses []string
	for _, r := range records {
		baseClasses = appendUnique(baseClasses, r.BaseClasses...)
	}

	return Hierarchy{
		ClassName:        className,
		Found:            true,
		BaseClasses:      baseClasses,
		DerivedClasses:   e.DerivedClasses(className, true),
		BaseHierarchy:    e.baseHierarchy(className, map[string]bool{}),
		DerivedHierarchy: e.derivedHierarchy(className, map[string]bool{}),
	}
}

func (e *Engine) baseHierarchy(className string, visited map[string]bool) BaseNode {
	if visited[className] {
		return BaseNode{Name: className, CircularReference: true}
	}
	visited = cloneAndAdd(visited, className)

	var bases []string
	for _, r := range e.idx.ByClassName[className] {
		bases = appendUnique(bases, r.BaseClasses...)
	}
	sort.Strings(bases)

	children := make([]BaseNode, 0, len(bases))
	for _, base := range bases {
		children = append(children, e.baseHierarchy(base, visited))
	}
	return BaseNode{Name: className, BaseClasses: children}
}

func (e *Engine) derivedHierarchy(className string, visited map[string]bool) DerivedNode {
	if visited[className] {
		return DerivedNode{Name: className, CircularReference: true}
	}
	visited = cloneAndAdd(visited, className)

	derived := e.DerivedClasses(className, false)
	children := make([]DerivedNode, 0, len(derived))
	for _, d := range derived {
		children = append(children, e.derivedHierarchy(d.Name, visited))
	}
	return DerivedNode{Name: className, DerivedClasses: children}
}

func cloneAndAdd(set map[string]bool, value string) map[string]bool {
	out := make(map[string]bool, len(set)+1)
	for k := range set {
		out[k] = true
	}
	out[value] = true
	return out
}

func containsString(list []string, value string) bool {
	for _, s := range list {
		if s == value {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !containsString(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
