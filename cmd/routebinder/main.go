package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"routebinder/internal/binder"
	"routebinder/internal/hub"
	"routebinder/internal/logging"
	"routebinder/internal/storage"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "routebinder",
	Short: "Route binder for snow route trucks",
	Long: `routebinder keeps one truck's route on this device: the stops, the
dispatch inbox and the progress through them. Bind a truck key once, then
arrive, check off work and complete stops in order. Progress is saved
locally after every step and resumed on the next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if viper.GetBool("verbose") {
			level = "debug"
		}
		l, err := logging.New(level, true)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROUTEBINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	rootCmd.PersistentFlags().String("hub", "http://localhost:8080", "hub base URL")
	rootCmd.PersistentFlags().String("data-dir", filepath.Join(home, ".routebinder"), "directory for the local route store")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging to stderr")
	_ = viper.BindPFlag("hub", rootCmd.PersistentFlags().Lookup("hub"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(bindCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(freshCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(stopsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(arriveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(undoCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(prevCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(materialCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(locateCmd())
	rootCmd.AddCommand(weatherCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(dismissCmd())
	rootCmd.AddCommand(exportCmd())
}

// session is one command's view of the device: the binder over the local
// store plus the hub client it talks through
type session struct {
	binder *binder.Binder
	hub    *hub.Client
	store  *storage.Persistence
}

// withSession opens the local store and, when hydrate is set, restores the
// bound truck's route before running fn
func withSession(ctx context.Context, hydrate bool, fn func(ctx context.Context, s *session) error) error {
	dir := viper.GetString("data-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	kv, err := storage.OpenSQLite(filepath.Join(dir, "routebinder.db"))
	if err != nil {
		return err
	}
	defer kv.Close()

	store := storage.NewPersistence(kv, logger)
	client := hub.New(viper.GetString("hub"), hub.WithLogger(logger))
	s := &session{
		binder: binder.New(client, store, binder.WithLogger(logger)),
		hub:    client,
		store:  store,
	}

	if hydrate {
		if err := s.binder.Hydrate(ctx); err != nil {
			if errors.Is(err, binder.ErrNeedsKey) {
				return errors.New("no truck key bound on this device, run: routebinder bind <key>")
			}
			return fmt.Errorf("could not load route: %w", err)
		}
	}
	return fn(ctx, s)
}

// stopArg returns the stop id named in args, or the active stop's
func stopArg(b *binder.Binder, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	active, ok := b.ActiveStop()
	if !ok {
		return "", errors.New("route has no stops")
	}
	return active.ID, nil
}
