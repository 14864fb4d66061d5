// Package main is the entry point for the askdocs CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/memrook/askdocs/internal/config"
	"github.com/memrook/askdocs/internal/core"
	"github.com/memrook/askdocs/internal/events"

	// Compiled-in modules register themselves via init().
	_ "github.com/memrook/askdocs/internal/gateway"
	_ "github.com/memrook/askdocs/internal/ingest"
	_ "github.com/memrook/askdocs/internal/maintenance"
	_ "github.com/memrook/askdocs/internal/session"
	_ "github.com/memrook/askdocs/internal/tracing"
	_ "github.com/memrook/askdocs/modules/analytics/sqlite"
	_ "github.com/memrook/askdocs/modules/channel/telegram"
	_ "github.com/memrook/askdocs/modules/provider/yandex"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "askdocs",
		Short:         "Telegram bot answering questions over your document corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd(), mcpCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("askdocs %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			app, _, _, err := buildApp(cfgPath, nil)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			app, _, ids, err := buildApp(args[0], nil)
			if err != nil {
				return err
			}
			defer app.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// buildApp loads the configuration and provisions all configured modules,
// minus any in skip. A .env file next to the working directory is loaded
// first so ${VAR} expansion in the config can see it.
func buildApp(cfgPath string, skip []string) (*core.App, *core.AppContext, []string, error) {
	_ = godotenv.Load()

	if cfgPath == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, nil, nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	appCtx := core.NewAppContext(logger, defaultDataDir())
	if err := appCtx.RegisterService("events.bus", events.NewBus()); err != nil {
		return nil, nil, nil, err
	}
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	ids := config.Resolve(cfg)
	if len(skip) > 0 {
		ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
			return slices.Contains(skip, id)
		})
	}

	app := core.NewApp(appCtx)
	if err := app.LoadModules(ids); err != nil {
		return nil, nil, nil, err
	}
	return app, appCtx, ids, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/askdocs/askdocs.yaml → ./askdocs.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "askdocs", "askdocs.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "askdocs", "askdocs.yaml"))
	}

	candidates = append(candidates, "askdocs.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v), run \"askdocs init\" to create one", candidates)
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "askdocs")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "askdocs", "data")
}
