package config

import (
	"fmt"
	"os"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL parses the .cxi.kdl document at path and overrides cfg's fields
// in place, the way the teacher's parseKDL layers a .lci.kdl over defaults.
func applyKDL(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return fmt.Errorf("parse kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "exclude_dirs":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Index.ExcludeDirs = v
					}
				case "dependency_dirs":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Index.DependencyDirs = v
					}
				case "exclude_patterns":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Index.ExcludePatterns = v
					}
				case "include_dependencies":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.IncludeDependencies = b
					}
				case "max_file_size_mb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSizeMB = int64(v)
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "parallelism" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Parallelism = v
					}
				}
			}
		case "parser":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "standard":
					if s, ok := firstStringArg(cn); ok {
						cfg.Parser.Standard = s
					}
				case "defines":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Parser.Defines = v
					}
				case "include_dirs":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Parser.IncludeDirs = v
					}
				case "extra_args":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Parser.ExtraArgs = v
					}
				}
			}
		}
	}

	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs reads a node's string values either from its inline
// arguments (exclude_dirs "build" "out") or from block-form children
// (exclude_dirs { "build"; "out" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
