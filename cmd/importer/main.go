// Command importer ingests HTML exports from the local filesystem, either once
// from glob patterns or continuously from a watched directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"htmlvault/internal/bootstrap"
	"htmlvault/internal/config"
	"htmlvault/internal/logger"
	"htmlvault/internal/service"
	"htmlvault/internal/watcher"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "importer",
		Short:         "Import HTML chat exports into htmlvault",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				os.Setenv("CONFIG_FILE", configPath)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	cmd.AddCommand(importCmd(), watchCmd())
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <glob>...",
		Short: "Import every HTML file matching the patterns (** is supported)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expand(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no HTML files match %v", args)
			}

			return withApp(cmd.Context(), func(ctx context.Context, _ *config.AppConfig, app *bootstrap.App, log *zap.Logger) error {
				failed := 0
				for _, f := range files {
					doc, err := app.Service.Import(ctx, f)
					if err != nil {
						failed++
						log.Error("import failed", zap.String("path", f), zap.Error(err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d media\n", doc.ID, f, len(doc.Media))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed", failed, len(files))
				}
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	var (
		pattern string
		initial bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import HTML files as they appear under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve dir: %w", err)
			}

			return withApp(cmd.Context(), func(ctx context.Context, cfg *config.AppConfig, app *bootstrap.App, log *zap.Logger) error {
				w, err := watcher.New(watcher.Config{
					Dir:      dir,
					Pattern:  pattern,
					Debounce: cfg.WatchDebounce(),
					Initial:  initial,
				}, func(ctx context.Context, path string) error {
					_, err := app.Service.Import(ctx, path)
					return err
				}, log)
				if err != nil {
					return err
				}
				return w.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", watcher.DefaultPattern, "doublestar pattern relative to dir")
	cmd.Flags().BoolVar(&initial, "initial", false, "import matching files already present")
	return cmd
}

// withApp builds the shared dependencies, runs fn until it returns or a
// signal arrives, and releases everything afterwards.
func withApp(parent context.Context, fn func(context.Context, *config.AppConfig, *bootstrap.App, *zap.Logger) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.Location())
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := bootstrap.New(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, cfg, app, log)
}

// expand resolves glob patterns to a sorted, de-duplicated list of HTML files.
func expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if !service.IsHTML(m) {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[abs]; ok {
				continue
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}
