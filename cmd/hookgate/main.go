package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/farhan/hookgate/internal/api"
	"github.com/farhan/hookgate/internal/botloop"
	"github.com/farhan/hookgate/internal/config"
	"github.com/farhan/hookgate/internal/discord"
	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/ledger"
	"github.com/farhan/hookgate/internal/notify"
	"github.com/farhan/hookgate/internal/signing"
	"github.com/farhan/hookgate/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hookgate",
		Short: "HookGate — webhook ingestion bridge for the assistant bot",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(ledgerCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HookGate server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			verifier, err := signing.NewVerifier(cfg.Signing.PublicKey, log)
			if err != nil {
				return fmt.Errorf("failed to setup signature verifier: %w", err)
			}

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			welcomed := ledger.NewStore(cfg.Ledger.Path, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			loop := botloop.New(log)
			loop.Start(ctx)

			var messenger notify.Messenger
			if cfg.Bot.Token != "" {
				messenger = discord.NewClient(cfg.Bot.Token, cfg.Bot.APIBase, cfg.Bot.APITimeout, log)
			} else {
				log.Warn().Msg("no bot token configured: welcome DMs will be skipped")
			}

			dispatcher := notify.NewDispatcher(loop, messenger, welcomed, cfg.Bot.SettleDelay, cfg.Bot.WelcomeMessage, log)

			router := event.NewRouter(log)
			router.Register(event.TypeAuthorized, dispatcher.HandleAuthorized)
			router.Register(event.TypeDeauthorized, dispatcher.HandleDeauthorized)

			server := api.NewServer(cfg.Server, verifier, router, store, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Bool("signature_verification", !verifier.InsecureMode()).
				Bool("bot_configured", messenger != nil).
				Msg("HookGate is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			// After the server drains no new dispatches can arrive; close the
			// loop and let any in-flight welcome finish.
			loop.Close()

			log.Info().Msg("HookGate stopped")
			return nil
		},
	}
}

func ledgerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the welcome ledger",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List welcomed users",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledgerFromConfig(*configPath)
			if err != nil {
				return err
			}

			records := store.All()
			if len(records) == 0 {
				fmt.Println("No welcomed users.")
				return nil
			}

			keys := make([]string, 0, len(records))
			for k := range records {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Printf("  %s  welcomed at %s\n", k, records[k].WelcomedAtISO)
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <channel:id>",
		Short: "Clear a user's welcome record so the next authorization welcomes them again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: hookgate ledger clear <channel:id>")
			}

			channelType, externalID, ok := strings.Cut(args[0], ":")
			if !ok {
				return fmt.Errorf("key must look like discord:123456789")
			}

			store, err := ledgerFromConfig(*configPath)
			if err != nil {
				return err
			}

			if !store.Clear(channelType, externalID) {
				return fmt.Errorf("failed to clear %s", args[0])
			}
			fmt.Printf("cleared %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show webhook event stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)
			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			stats, err := store.GetStats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("HookGate v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite event log")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func ledgerFromConfig(configPath string) (*ledger.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return ledger.NewStore(cfg.Ledger.Path, setupLogger(cfg.Logging)), nil
}
