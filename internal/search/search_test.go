package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

func sampleIndexes() Indexes {
	widget := types.SymbolRecord{Name: "Widget", Kind: types.KindClass, File: "widget.h", Line: 1, IsProject: true, BaseClasses: []string{"Base"}}
	vendored := types.SymbolRecord{Name: "VendoredWidget", Kind: types.KindClass, File: "vendor/w.h", Line: 1, IsProject: false}
	draw := types.SymbolRecord{Name: "Draw", Kind: types.KindMethod, File: "widget.h", Line: 5, ParentClass: "Widget", Signature: "(int)", IsProject: true}
	free := types.SymbolRecord{Name: "FreeDraw", Kind: types.KindFunction, File: "draw.cpp", Line: 9, Signature: "()", IsProject: true}

	return Indexes{
		ByClassName:    map[string][]types.SymbolRecord{"Widget": {widget}, "VendoredWidget": {vendored}},
		ByFunctionName: map[string][]types.SymbolRecord{"Draw": {draw}, "FreeDraw": {free}},
		ByFile:         map[string][]types.SymbolRecord{"widget.h": {widget, draw}},
	}
}

func TestSearchClassesProjectOnly(t *testing.T) {
	e := New(sampleIndexes())
	results, err := e.SearchClasses("widget", true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Widget", results[0].Name)
}

func TestSearchClassesIncludesDependenciesWhenRequested(t *testing.T) {
	e := New(sampleIndexes())
	results, err := e.SearchClasses("widget", false)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchClassesInvalidPattern(t *testing.T) {
	e := New(sampleIndexes())
	_, err := e.SearchClasses("(unterminated", true)
	require.Error(t, err)
}

func TestSearchFunctionsFilteredByClass(t *testing.T) {
	e := New(sampleIndexes())
	results, err := e.SearchFunctions("draw", true, "Widget")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Draw", results[0].Name)

	none, err := e.SearchFunctions("draw", true, "NoSuchClass")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSearchSymbolsRestrictsByKind(t *testing.T) {
	e := New(sampleIndexes())
	res, err := e.SearchSymbols("draw", true, []string{"function", "method"})
	require.NoError(t, err)
	require.Empty(t, res.Classes)
	require.NotEmpty(t, res.Functions)
}

func TestFindInFile(t *testing.T) {
	e := New(sampleIndexes())
	require.Len(t, e.FindInFile("widget.h"), 2)
	require.Empty(t, e.FindInFile("missing.h"))
}

func TestGetClassInfoAggregatesMethods(t *testing.T) {
	e := New(sampleIndexes())
	info, err := e.GetClassInfo("Widget")
	require.NoError(t, err)
	require.Equal(t, []string{"Base"}, info.BaseClasses)
	require.Len(t, info.Methods, 1)
	require.Equal(t, "Draw", info.Methods[0].Name)
}

func TestGetClassInfoNotFound(t *testing.T) {
	e := New(sampleIndexes())
	_, err := e.GetClassInfo("Nope")
	require.Error(t, err)
}

func TestGetFunctionSignatureQualifiesMethodName(t *testing.T) {
	e := New(sampleIndexes())
	sigs := e.GetFunctionSignature("Draw", "")
	require.Equal(t, []string{"Widget::Draw(int)"}, sigs)

	free := e.GetFunctionSignature("FreeDraw", "")
	require.Equal(t, []string{"FreeDraw()"}, free)
}
