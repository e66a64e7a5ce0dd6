package parser

import (
	"path/filepath"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
)

// BuildCompileArgs synthesizes a default compile-argument set from the
// project root's include directories and the config's parser section.
// Package-manager include-path discovery (vcpkg, conan, etc.) is the
// external heuristic layer the spec places outside the core (§4.3); a
// caller that wants it appends its own -I flags via cfg.Parser.IncludeDirs
// or ExtraArgs before this set reaches the Backend.
func BuildCompileArgs(cfg *config.Config) []string {
	standard := cfg.Parser.Standard
	if standard == "" {
		standard = "c++17"
	}

	args := []string{
		"-std=" + standard,
		"-I" + cfg.Project.Root,
		"-I" + filepath.Join(cfg.Project.Root, "src"),
		"-I" + filepath.Join(cfg.Project.Root, "include"),
	}

	for _, inc := range cfg.Parser.IncludeDirs {
		args = append(args, "-I"+inc)
	}
	for _, def := range cfg.Parser.Defines {
		args = append(args, "-D"+def)
	}
	args = append(args, cfg.Parser.ExtraArgs...)

	// Headers lack a reliable extension-based language hint; force C++ so
	// .h files parse with the same grammar as .cpp.
	args = append(args, "-x", "c++")

	return args
}
