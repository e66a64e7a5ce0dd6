package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

func sampleIndexes() Indexes {
	return Indexes{ByClassName: map[string][]types.SymbolRecord{
		"Base":   {{Name: "Base", Kind: types.KindClass, IsProject: true}},
		"Mid":    {{Name: "Mid", Kind: types.KindClass, IsProject: true, BaseClasses: []string{"Base"}}},
		"Leaf":   {{Name: "Leaf", Kind: types.KindClass, IsProject: true, BaseClasses: []string{"Mid"}}},
		"Vendor": {{Name: "Vendor", Kind: types.KindClass, IsProject: false, BaseClasses: []string{"Base"}}},
	}}
}

func TestDerivedClassesDirectOnly(t *testing.T) {
	e := New(sampleIndexes())
	derived := e.DerivedClasses("Base", true)
	require.Len(t, derived, 1)
	require.Equal(t, "Mid", derived[0].Name)
}

func TestDerivedClassesIncludesDependenciesWhenNotProjectOnly(t *testing.T) {
	e := New(sampleIndexes())
	derived := e.DerivedClasses("Base", false)
	require.Len(t, derived, 2)
}

func TestClassHierarchyUnknownClass(t *testing.T) {
	e := New(sampleIndexes())
	h := e.ClassHierarchy("Nope")
	require.False(t, h.Found)
}

func TestClassHierarchyRecursesBothDirections(t *testing.T) {
	e := New(sampleIndexes())
	h := e.ClassHierarchy("Mid")
	require.True(t, h.Found)
	require.Equal(t, []string{"Base"}, h.BaseClasses)

	require.Equal(t, "Mid", h.BaseHierarchy.Name)
	require.Len(t, h.BaseHierarchy.BaseClasses, 1)
	require.Equal(t, "Base", h.BaseHierarchy.BaseClasses[0].Name)

	require.Equal(t, "Mid", h.DerivedHierarchy.Name)
	require.Len(t, h.DerivedHierarchy.DerivedClasses, 1)
	require.Equal(t, "Leaf", h.DerivedHierarchy.DerivedClasses[0].Name)
}

func TestClassHierarchyBreaksCycles(t *testing.T) {
	idx := Indexes{ByClassName: map[string][]types.SymbolRecord{
		"A": {{Name: "A", BaseClasses: []string{"B"}}},
		"B": {{Name: "B", BaseClasses: []string{"A"}}},
	}}
	e := New(idx)
	h := e.ClassHierarchy("A")
	require.True(t, h.Found)

	node := h.BaseHierarchy
	require.Equal(t, "A", node.Name)
	require.Len(t, node.BaseClasses, 1)
	require.Equal(t, "B", node.BaseClasses[0].Name)
	require.Len(t, node.BaseClasses[0].BaseClasses, 1)
	require.True(t, node.BaseClasses[0].BaseClasses[0].CircularReference)
}
