package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeusData/depclosure/internal/config"
	"github.com/DeusData/depclosure/internal/deps"
	"github.com/DeusData/depclosure/internal/store"
	"github.com/DeusData/depclosure/internal/tools"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	flagConfigDir string
	flagDBPath    string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "depclosure",
	Short:         "Resolve transitive file dependencies of script and stylesheet sources",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigDir, "config", ".", "directory holding "+config.FileName)
	pf.StringVar(&flagDBPath, "db", "", "stamp database path (default ~/.cache/depclosure/stamps.db)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	tools.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: the loaded config and a resolver
// built from it.
type env struct {
	cfg      *config.Config
	resolver *deps.Resolver
}

// setup loads the config, installs the slog handler and builds the resolver.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return nil, err
	}

	level := cfg.EffectiveLogLevel()
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	c, err := cfg.Cache()
	if err != nil {
		return nil, err
	}
	slog.Debug("config.loaded", "dir", flagConfigDir, "extensions", reg.Extensions(), "cache_size", cfg.CacheSize)

	return &env{
		cfg:      cfg,
		resolver: deps.New(deps.WithRegistry(reg), deps.WithCache(c)),
	}, nil
}

// openStore opens the stamp database named by --db, or the default one.
func openStore() (*store.Store, error) {
	path := flagDBPath
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := store.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("open stamp store: %w", err)
	}
	slog.Debug("store.open", "path", s.Path())
	return s, nil
}
