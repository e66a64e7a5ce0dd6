package globalcache

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

func sampleArtifact() *Artifact {
	return &Artifact{
		IncludeDependencies: false,
		ClassIndex: map[string][]types.SymbolRecord{
			"Foo": {{Name: "Foo", Kind: types.KindClass, File: "a.cpp", USR: "c:@S@Foo"}},
		},
		FunctionIndex: map[string][]types.SymbolRecord{
			"bar": {{Name: "bar", Kind: types.KindFunction, File: "a.cpp", USR: "c:@F@bar"}},
		},
		FileHashes:       map[string]string{"a.cpp": "h1"},
		IndexedFileCount: 1,
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleArtifact()))

	loaded, ok := store.Load(false)
	require.True(t, ok)
	require.Equal(t, 1, loaded.IndexedFileCount)
	require.Equal(t, "h1", loaded.FileHashes["a.cpp"])
	require.Contains(t, loaded.ClassIndex, "Foo")
	require.Contains(t, loaded.FunctionIndex, "bar")
}

func TestLoadRejectsDependencyFlagMismatch(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleArtifact()))

	_, ok := store.Load(true)
	require.False(t, ok)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleArtifact()))

	// Save always stamps the current Version, so simulate a cache left by
	// an older release by rewriting the file with a stale one.
	data, err := os.ReadFile(store.path)
	require.NoError(t, err)
	var a Artifact
	require.NoError(t, json.Unmarshal(data, &a))
	a.Version = "0.1"
	stale, err := json.Marshal(&a)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.path, stale, 0o644))

	_, ok := store.Load(false)
	require.False(t, ok)
}

func TestLoadMissesWhenAbsent(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Load(false)
	require.False(t, ok)
}

func TestByUSRSkipsRecordsWithoutUSR(t *testing.T) {
	a := &Artifact{
		FunctionIndex: map[string][]types.SymbolRecord{
			"Foo": {{Name: "Foo", USR: "u1"}, {Name: "anon"}},
		},
	}
	index := ByUSR(a)
	require.Len(t, index, 1)
	require.Contains(t, index, "u1")
}

func TestCallEdgesAggregatesAcrossFiles(t *testing.T) {
	a := &Artifact{
		FunctionIndex: map[string][]types.SymbolRecord{
			"caller_a": {{USR: "caller", Calls: []string{"x", "y"}}},
			"caller_b": {{USR: "caller", Calls: []string{"z"}}},
		},
	}
	edges := CallEdges(a)
	require.ElementsMatch(t, []string{"x", "y", "z"}, edges["caller"])
}
