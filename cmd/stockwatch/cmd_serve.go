package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/bot"
	"github.com/luckfunc/stockwatch/internal/handlers"
	"github.com/luckfunc/stockwatch/internal/services"
	"github.com/luckfunc/stockwatch/internal/stubserver"
)

var (
	stubAddr           string
	stubRequireSession bool
)

var stubServerCmd = &cobra.Command{
	Use:         "stub-server",
	Short:       "Run a local in-memory watchlist service",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := newStubHTTPServer(stubAddr, stubRequireSession)
		fmt.Fprintf(cmd.OutOrStdout(), "Stub server listening on %s\n", stubAddr)
		return serve(cmd.Context(), srv)
	},
}

func newStubHTTPServer(addr string, requireSession bool) *http.Server {
	opts := []stubserver.Option{stubserver.WithLogger(log)}
	if requireSession {
		opts = append(opts, stubserver.WithRequireSession())
	}
	return &http.Server{
		Addr:              addr,
		Handler:           stubserver.New(opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down stub server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var wechatCmd = &cobra.Command{
	Use:   "wechat",
	Short: "Answer watchlist commands in WeChat groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap := services.Snapshot{
			Width:   cfg.Export.Width,
			Timeout: cfg.Export.TimeoutDuration(),
			Prices:  prices(),
		}
		h := handlers.New(svc, prices(), snap, cfg.Bot.Prefix, log)
		log.Info("starting chat bot", zap.String("prefix", cfg.Bot.Prefix))
		return bot.Run(cmd.Context(), cfg.Bot.HotReloadFile, h, log)
	},
}

func init() {
	stubServerCmd.Flags().StringVar(&stubAddr, "addr", ":10789", "listen address")
	stubServerCmd.Flags().BoolVar(&stubRequireSession, "require-session", false, "reject watchlist changes without the session cookie")
}
