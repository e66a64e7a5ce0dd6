package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanExcludesFirstLevelOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.cpp"), "void f(){}")
	writeFile(t, filepath.Join(root, "build", "gen.cpp"), "void g(){}")
	// a nested directory named "build" that is NOT a direct child should
	// not be pruned.
	writeFile(t, filepath.Join(root, "src", "build", "h.cpp"), "void h(){}")

	cfg := config.Default(root)
	cfg.Index.ExcludeDirs = []string{"build"}

	fs := New(cfg)
	files, err := fs.Scan()
	require.NoError(t, err)

	rels := relativize(t, root, files)
	require.Contains(t, rels, "a.cpp")
	require.NotContains(t, rels, filepath.Join("build", "gen.cpp"))
	require.Contains(t, rels, filepath.Join("src", "build", "h.cpp"))
}

func TestScanDependencyExclusionAnyDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.cpp"), "void f(){}")
	writeFile(t, filepath.Join(root, "third_party", "lib.h"), "class Lib {};")
	writeFile(t, filepath.Join(root, "src", "third_party", "nested.h"), "class N {};")

	cfg := config.Default(root)
	cfg.Index.DependencyDirs = []string{"third_party"}
	cfg.Index.IncludeDependencies = false

	fs := New(cfg)
	files, err := fs.Scan()
	require.NoError(t, err)

	rels := relativize(t, root, files)
	require.Contains(t, rels, "a.cpp")
	require.NotContains(t, rels, filepath.Join("third_party", "lib.h"))
	require.NotContains(t, rels, filepath.Join("src", "third_party", "nested.h"))
}

func TestScanIncludesDependenciesWhenConfigured(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "third_party", "lib.h"), "class Lib {};")

	cfg := config.Default(root)
	cfg.Index.DependencyDirs = []string{"third_party"}
	cfg.Index.IncludeDependencies = true

	fs := New(cfg)
	files, err := fs.Scan()
	require.NoError(t, err)
	require.Contains(t, relativize(t, root, files), filepath.Join("third_party", "lib.h"))
}

func TestIsProjectFile(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Index.DependencyDirs = []string{"vendor"}
	fs := New(cfg)

	require.True(t, fs.IsProjectFile(filepath.Join(root, "a.cpp")))
	require.False(t, fs.IsProjectFile(filepath.Join(root, "vendor", "lib.h")))
	require.False(t, fs.IsProjectFile(filepath.Join(t.TempDir(), "outside.cpp")))
}

func relativize(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, rel)
	}
	return out
}
