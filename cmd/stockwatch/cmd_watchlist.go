package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luckfunc/stockwatch/internal/services"
)

var watchlistCmd = &cobra.Command{
	Use:     "watchlist",
	Aliases: []string{"ls"},
	Short:   "Print the watchlist with current prices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := svc.Watchlist.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load the watchlist: %s", services.ErrorText(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), services.FormatTable(rows, prices()))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search TEXT...",
	Short: "Search the catalog by symbol or company name",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		rows, err := svc.Search.Search(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("search failed: %s", services.ErrorText(err))
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No stocks found for %q\n", strings.TrimSpace(text))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), services.FormatTable(rows, prices()))
		return nil
	},
}

var priceCmd = &cobra.Command{
	Use:   "price SYMBOL",
	Short: "Resolve the current price of one stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stock, err := svc.Search.ResolvePrice(cmd.Context(), normalizeSymbol(args[0]))
		if err != nil {
			return fmt.Errorf("failed to fetch the price: %s", services.ErrorText(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), services.FormatStock(stock, prices()))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add SYMBOL",
	Short: "Add a stock to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := normalizeSymbol(args[0])
		added, err := svc.Search.Add(cmd.Context(), symbol)
		if err != nil {
			return mutationError("add stocks to", "failed to add the stock", err)
		}
		if added {
			fmt.Fprintln(cmd.OutOrStdout(), services.AddedMessage(symbol))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), services.AlreadyWatchedMessage(symbol))
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove SYMBOL",
	Aliases: []string{"delete", "rm"},
	Short:   "Delete a stock from the watchlist",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := normalizeSymbol(args[0])
		removed, _, err := svc.Watchlist.RemoveMany(cmd.Context(), []string{symbol})
		if err != nil {
			return mutationError("delete stocks from", "failed to delete the stock", err)
		}
		if len(removed) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not on your watchlist.\n", symbol)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), services.RemovedMessage(symbol))
		return nil
	},
}

var (
	exportOut  string
	exportHTML bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a snapshot of the watchlist as PNG or HTML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, ok := svc.Auth.Current(ctx); !ok {
			return mutationError("export", "export failed", services.ErrNotLoggedIn)
		}
		rows, err := svc.Watchlist.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load the watchlist: %s", services.ErrorText(err))
		}

		snap := services.Snapshot{
			Width:   cfg.Export.Width,
			Timeout: cfg.Export.TimeoutDuration(),
			Prices:  prices(),
		}
		now := time.Now()
		var data []byte
		if exportHTML {
			html, err := snap.HTML("Watchlist", rows, now)
			if err != nil {
				return fmt.Errorf("render html: %w", err)
			}
			data = []byte(html)
		} else {
			data, err = snap.PNG(ctx, "Watchlist", rows, now)
			if err != nil {
				return fmt.Errorf("render png: %w", err)
			}
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d stocks to %s\n", len(rows), exportOut)
		return nil
	},
}

// mutationError phrases a failed watchlist change the way the UI dialogs do.
func mutationError(action, title string, err error) error {
	if errors.Is(err, services.ErrNotLoggedIn) {
		return fmt.Errorf("not logged in: you must be logged in to %s your watchlist", action)
	}
	return fmt.Errorf("%s: %s", title, services.ErrorText(err))
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "watchlist.png", "output file")
	exportCmd.Flags().BoolVar(&exportHTML, "html", false, "write the HTML page instead of a PNG")
}
