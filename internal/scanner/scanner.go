// Package scanner discovers C++ source files under a project root,
// distinguishing project files from dependency files and pruning excluded
// directories (spec §4.1).
package scanner

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// FileScanner enumerates candidate source files under a project root.
type FileScanner struct {
	cfg *config.Config

	excludeDirs    map[string]bool
	dependencyDirs map[string]bool
}

// New constructs a FileScanner from the given configuration.
func New(cfg *config.Config) *FileScanner {
	fs := &FileScanner{
		cfg:            cfg,
		excludeDirs:    toSet(cfg.Index.ExcludeDirs),
		dependencyDirs: toSet(cfg.Index.DependencyDirs),
	}
	return fs
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// Scan walks cfg.Project.Root and returns the set of source paths the
// indexer should parse. Traversal prunes any directory whose name matches
// an exclude_dirs entry when it is a direct child of the project root;
// deeper matches of the same name are not pruned. I/O errors for
// individual entries are logged and skipped, never fatal.
func (fs *FileScanner) Scan() ([]string, error) {
	root, err := filepath.Abs(fs.cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	var out []string
	visited := make(map[string]bool)

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			log.Printf("scanner: skipping unresolvable path %s: %v", dir, err)
			return nil
		}
		if visited[real] {
			return nil // symlink cycle
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("scanner: cannot read directory %s: %v", dir, err)
			return nil
		}

		for _, entry := range entries {
			name := entry.Name()
			path := filepath.Join(dir, name)

			if entry.IsDir() {
				if depth == 0 && fs.excludeDirs[name] {
					continue
				}
				if err := walk(path, depth+1); err != nil {
					return err
				}
				continue
			}

			if !types.CppExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}
			if !fs.cfg.Index.IncludeDependencies && fs.hasDependencySegment(root, path) {
				continue
			}
			if fs.excludedByPattern(root, path) {
				continue
			}
			if info, err := entry.Info(); err == nil {
				if info.Size() > fs.cfg.MaxFileSizeBytes() {
					log.Printf("scanner: skipping %s, exceeds max file size", path)
					continue
				}
			}

			out = append(out, path)
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// hasDependencySegment reports whether path, relative to root, contains a
// path segment listed in dependency_dirs, at any depth.
func (fs *FileScanner) hasDependencySegment(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if fs.dependencyDirs[part] {
			return true
		}
	}
	return false
}

func (fs *FileScanner) excludedByPattern(root, path string) bool {
	if len(fs.cfg.Index.ExcludePatterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range fs.cfg.Index.ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// IsProjectFile reports whether path is under the project root and
// contains no segment listed in dependency_dirs (spec §4.1, GLOSSARY).
func (fs *FileScanner) IsProjectFile(path string) bool {
	root, err := filepath.Abs(fs.cfg.Project.Root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if fs.dependencyDirs[part] {
			return false
		}
	}
	return true
}
