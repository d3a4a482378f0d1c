package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ftmemo/internal"
	"github.com/starford/ftmemo/internal/apperr"
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/mcpserver"
	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/resolve"
	"github.com/starford/ftmemo/internal/store"
	pkgconfig "github.com/starford/ftmemo/pkg/config"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("FTMEMO_CONFIG_FILE"),
	}
}

// loadConfig reads the config file when it exists and falls back to defaults
// otherwise, so the tool works with no configuration at all.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid default config: %w", err)
		}
	}
	return cfg, nil
}

// openService builds a memo.Service for the one-shot maintenance commands.
// The returned close function releases the history database when one is open.
func openService(cfg *internal.Config) (*memo.Service, history.Recorder, func(), error) {
	st, err := store.New(cfg.Memo.StorePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init store: %w", err)
	}

	var rec history.Recorder
	closeFn := func() {}
	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init history: %w", err)
		}
		rec = db
		closeFn = func() { _ = db.Close() }
	}

	opts := []memo.ServiceOption{memo.WithEnabled(cfg.Memo.Enabled)}
	if rec != nil {
		opts = append(opts, memo.WithRecorder(rec))
	}
	svc, err := memo.New(st, opts...)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return svc, rec, closeFn, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func listAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, _, closeFn, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	items := svc.List()
	if len(items) == 0 {
		fmt.Println("no stored mappings")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%-12s %s\n", it.Filetype, it.Path)
	}
	return nil
}

func clearAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: ftmemo clear <path>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, _, closeFn, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	// Canonicalize while the file exists; entries for already deleted
	// files are keyed by their last canonical path.
	key := resolve.Path(path)
	if key == "" {
		key = path
	}
	if err := svc.ClearPath(key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("no mapping stored for %s", path)
		}
		return err
	}
	fmt.Printf("cleared mapping for %s\n", key)
	return nil
}

func cleanupAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, _, closeFn, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	removed, err := svc.Cleanup()
	if err != nil {
		return err
	}
	fmt.Printf("removed %d stale mapping(s)\n", removed)
	return nil
}

func mcpAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, rec, closeFn, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return mcpserver.New(svc, rec).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:  "ftmemo",
		Usage: "Remembers manually chosen filetypes per file and reapplies them on open",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the daemon that editor plugins talk to",
				Flags:  []cli.Flag{configFlag()},
				Action: serveAction,
			},
			{
				Name:   "list",
				Usage:  "Show all stored filetype mappings",
				Flags:  []cli.Flag{configFlag()},
				Action: listAction,
			},
			{
				Name:      "clear",
				Usage:     "Remove the stored mapping for a path",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{configFlag()},
				Action:    clearAction,
			},
			{
				Name:   "cleanup",
				Usage:  "Remove mappings whose files no longer exist",
				Flags:  []cli.Flag{configFlag()},
				Action: cleanupAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve ftmemo tools over MCP stdio",
				Flags:  []cli.Flag{configFlag()},
				Action: mcpAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
