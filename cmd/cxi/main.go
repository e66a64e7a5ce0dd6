package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/config"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/indexer"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/parser"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/query"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/scanner"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/transport"
	"github.com/kandrwmrtn/cplusplus-mcp/internal/watch"
)

const version = "0.1.0"

// newIndexerFactory builds the production IndexerFactory: a real
// libclang-backed parser, scoped to the project scanner's project/vendor
// classification.
func newIndexerFactory(logger *slog.Logger) query.IndexerFactory {
	return func(cfg *config.Config, cacheDir string) (*indexer.Indexer, error) {
		fs := scanner.New(cfg)
		backend := parser.NewClangBackend(fs.IsProjectFile)
		return indexer.New(cfg, backend, cacheDir, logger)
	}
}

func main() {
	app := &cli.App{
		Name:                   "cxi",
		Usage:                  "C++ codebase indexer for LLM tool-use sessions",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory",
				Value:   ".",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Build (or rebuild) the index for the project",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Ignore the aggregate index cache and re-scan every file (unchanged files still reuse their per-file cache)"},
					&cli.BoolFlag{Name: "include-dependencies", Usage: "Also index files under dependency directories"},
				},
				Action: indexCommand,
			},
			{
				Name:   "refresh",
				Usage:  "Re-scan and re-index only files changed or removed since the last index",
				Action: refreshCommand,
			},
			{
				Name:  "search",
				Usage: "Search classes, functions, or both",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: "symbols", Usage: "classes, functions, or symbols"},
					&cli.BoolFlag{Name: "project-only", Usage: "Exclude dependency/vendored results"},
					&cli.StringFlag{Name: "class", Usage: "Restrict search_functions to a class's methods"},
				},
				ArgsUsage: "<pattern>",
				Action:    searchCommand,
			},
			{
				Name:  "serve",
				Usage: "Start the MCP server over stdio",
				Action: serveCommand,
			},
			{
				Name:   "status",
				Usage:  "Show indexing status",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Aliases: []string{"j"}}},
				Action: statusCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadFacade(c *cli.Context, logger *slog.Logger) (*query.Facade, string, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, "", err
	}
	f := query.New(newIndexerFactory(logger))
	return f, root, nil
}

func indexCommand(c *cli.Context) error {
	logger := stderrLogger()
	f, root, err := loadFacade(c, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := f.SetProjectDirectory(ctx, root)
	if err != nil {
		return err
	}
	count := result.IndexedFileCount
	if c.Bool("include-dependencies") {
		if err := f.SetIncludeDependencies(true); err != nil {
			return err
		}
	}
	if c.Bool("force") || c.Bool("include-dependencies") {
		count, err = f.ReindexProject(ctx, c.Bool("force"))
		if err != nil {
			return err
		}
	}
	fmt.Printf("indexed %d files\n", count)
	return nil
}

func refreshCommand(c *cli.Context) error {
	logger := stderrLogger()
	f, root, err := loadFacade(c, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := f.SetProjectDirectory(ctx, root); err != nil {
		return err
	}
	changed, err := f.RefreshProject(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d files changed\n", changed)
	return nil
}

func searchCommand(c *cli.Context) error {
	pattern := c.Args().First()
	if pattern == "" {
		return fmt.Errorf("search requires a pattern argument")
	}

	logger := stderrLogger()
	f, root, err := loadFacade(c, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if _, err := f.SetProjectDirectory(ctx, root); err != nil {
		return err
	}

	projectOnly := c.Bool("project-only")
	var result interface{}
	switch c.String("kind") {
	case "classes":
		result, err = f.SearchClasses(pattern, projectOnly)
	case "functions":
		result, err = f.SearchFunctions(pattern, projectOnly, c.String("class"))
	default:
		result, err = f.SearchSymbols(pattern, projectOnly, nil)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func serveCommand(c *cli.Context) error {
	// Keep stdout reserved for MCP frames; diagnostics go to stderr, same
	// shape as the teacher's MCP-mode logger split.
	logger := stderrLogger()
	f, root, err := loadFacade(c, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := f.SetProjectDirectory(ctx, root); err != nil {
		return err
	}

	startWatchIfEnabled(ctx, f, root, logger)

	server := transport.NewServer(f, "cxi-mcp-server", version)
	return server.Run(ctx)
}

func statusCommand(c *cli.Context) error {
	logger := stderrLogger()
	f, root, err := loadFacade(c, logger)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if _, err := f.SetProjectDirectory(ctx, root); err != nil {
		return err
	}

	status := f.GetServerStatus()
	if c.Bool("json") {
		return printJSON(status)
	}
	fmt.Printf("files=%d classes=%d functions=%d call_graph_edges=%d\n",
		status.ParsedFiles, status.ClassCount, status.FunctionCount, status.CallGraphEdges)
	return nil
}

// startWatchIfEnabled wires an optional fsnotify watcher that triggers
// RefreshProject on filesystem changes, disabled unless the loaded config
// turned watch_mode on.
func startWatchIfEnabled(ctx context.Context, f *query.Facade, root string, logger *slog.Logger) {
	cfg, err := config.Load(root)
	if err != nil || !cfg.Index.WatchMode {
		return
	}
	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w, err := watch.New(root, debounce, f.RefreshProject, logger)
	if err != nil {
		logger.Warn("watch mode disabled: could not start filesystem watcher", "error", err)
		return
	}
	go func() {
		defer w.Close()
		w.Run(ctx)
	}()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func stderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
