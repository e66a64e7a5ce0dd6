// Package config loads and validates the single configuration document
// (spec §6): project layout, exclude/dependency directories, exclude
// glob patterns, and resource limits. Defaults mirror the exclusions the
// Python original shipped (version-control metadata, build scratch
// directories, editor scratch, package-manager install trees).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Project describes the indexed codebase.
type Project struct {
	Root string
	Name string
}

// Index controls source discovery and the project/dependency split (spec
// §3), plus resource limits.
type Index struct {
	ExcludeDirs         []string // first-level directory names pruned at the project root
	DependencyDirs      []string // directory names matched at any depth
	ExcludePatterns     []string // doublestar glob patterns, matched against the root-relative path
	IncludeDependencies bool
	MaxFileSizeMB       int64
	RespectGitignore    bool
	WatchMode           bool
	WatchDebounceMs     int
}

// Performance controls the parse worker pool (spec §5).
type Performance struct {
	Parallelism int // 0 = auto-detect: min(16, 2*runtime.NumCPU())
}

// Parser carries the extra compile arguments appended to the per-file
// compile-argument set the Parser assembles (spec §4.3: "the core only
// requires that some argument set be supplied").
type Parser struct {
	Standard     string   // e.g. "c++17"
	Defines      []string // "-D..." flags, without the leading "-D"
	IncludeDirs  []string // additional "-I..." roots, beyond project_root, project_root/src and project_root/include
	ExtraArgs    []string // passed through verbatim
}

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Parser      Parser
}

// MaxFileSizeBytes returns the configured maximum file size in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Index.MaxFileSizeMB * 1024 * 1024
}

// ResolvedParallelism returns the effective worker-pool size per spec §5:
// min(16, 2*NumCPU), unless explicitly overridden.
func (c *Config) ResolvedParallelism() int {
	if c.Performance.Parallelism > 0 {
		return c.Performance.Parallelism
	}
	n := 2 * runtime.NumCPU()
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// defaultExcludeDirs mirrors cpp_analyzer_config.py's built-in defaults.
func defaultExcludeDirs() []string {
	return []string{
		".git", ".svn", ".hg",
		"build", "cmake-build-debug", "cmake-build-release",
		"node_modules", ".vs", ".vscode", "CMakeFiles",
	}
}

func defaultDependencyDirs() []string {
	return []string{"third_party", "vendor", "external", "vcpkg_installed", "deps"}
}

// Default returns a Config with the built-in defaults, rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: root, Name: filepath.Base(root)},
		Index: Index{
			ExcludeDirs:         defaultExcludeDirs(),
			DependencyDirs:      defaultDependencyDirs(),
			IncludeDependencies: false,
			MaxFileSizeMB:       10,
			RespectGitignore:    true,
			WatchMode:           false,
			WatchDebounceMs:     300,
		},
		Performance: Performance{Parallelism: 0},
		Parser: Parser{
			Standard: "c++17",
			Defines:  nil,
		},
	}
}

// Load reads the KDL document at projectRoot/.cxi.kdl, if present, layering
// it over Default(projectRoot). Load applies no command-line overrides; the
// CLI's --include-dependencies flag reaches the indexer later through
// query.Facade.SetIncludeDependencies.
func Load(projectRoot string) (*Config, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root %q: %w", projectRoot, err)
	}

	cfg := Default(absRoot)

	kdlPath := filepath.Join(absRoot, ".cxi.kdl")
	if _, err := os.Stat(kdlPath); err == nil {
		if err := applyKDL(cfg, kdlPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", kdlPath, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's internal consistency.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project root must not be empty")
	}
	if c.Index.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max_file_size_mb must be positive, got %d", c.Index.MaxFileSizeMB)
	}
	if c.Performance.Parallelism < 0 {
		return fmt.Errorf("parallelism must be >= 0, got %d", c.Performance.Parallelism)
	}
	if c.Index.WatchDebounceMs < 0 {
		return fmt.Errorf("watch_debounce_ms must be >= 0, got %d", c.Index.WatchDebounceMs)
	}
	return nil
}
