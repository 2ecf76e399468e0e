// Command stockwatch is a client for the stock watchlist service. With no
// subcommand it starts the terminal UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/api"
	"github.com/luckfunc/stockwatch/internal/config"
	"github.com/luckfunc/stockwatch/internal/logger"
	"github.com/luckfunc/stockwatch/internal/services"
	"github.com/luckfunc/stockwatch/internal/session"
	"github.com/luckfunc/stockwatch/internal/ui"
)

var (
	// Global flags
	configPath string
	serverURL  string
	verbose    bool
	ephemeral  bool

	// Built in PersistentPreRunE
	cfg        *config.Config
	log        *zap.Logger
	store      *session.Store
	closeStore func() error
	svc        *services.Services
)

// skipSession marks commands that never touch the session or the gateway.
const skipSession = "skip-session"

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "Keep a watchlist of stocks in sync with the watchlist service",
	Long: `stockwatch logs in to the watchlist service, searches its catalog,
resolves prices and keeps your watchlist in sync.

Run without a subcommand to start the terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	RunE: runUI,
}

func setup(cmd *cobra.Command) error {
	// .env is optional
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if ephemeral {
		cfg.Session.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The terminal UI owns the screen, so its logs go to a file.
	log, err = logger.New(cfg.Logging, verbose, cmd == rootCmd)
	if err != nil {
		return err
	}
	if cmd.Annotations[skipSession] != "" {
		return nil
	}

	store, closeStore, err = session.Open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	client, err := api.NewClient(cfg.Server.BaseURL, api.WithLogger(log))
	if err != nil {
		return err
	}
	svc = services.New(client, store, log)
	return nil
}

func teardown() {
	if closeStore != nil {
		if err := closeStore(); err != nil && log != nil {
			log.Warn("close session store", zap.Error(err))
		}
		closeStore = nil
	}
	if log != nil {
		_ = log.Sync()
	}
}

func prices() services.PriceFormatter {
	return services.NewPriceFormatter(cfg.Display.Locale)
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := tea.NewProgram(ui.New(ctx, svc, prices()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func init() {
	// Assigned here rather than in the literal: setup refers to rootCmd.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.stockwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "watchlist service base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the session in memory only")

	rootCmd.AddCommand(
		registerCmd,
		loginCmd,
		logoutCmd,
		whoamiCmd,
		watchlistCmd,
		searchCmd,
		priceCmd,
		addCmd,
		removeCmd,
		exportCmd,
		stubServerCmd,
		wechatCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRun is skipped when RunE fails.
	teardown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
