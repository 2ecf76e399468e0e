package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/session"
)

// Watchlist keeps the server watchlist and the session copy in step. Every
// mutation goes to the server first; the session and the caller's rows change
// only after the server acknowledges.
type Watchlist struct {
	gw    Gateway
	store *session.Store
	log   *zap.Logger

	// mu serialises mutations issued through this process so that two
	// acknowledged changes cannot interleave their session writes.
	mu sync.Mutex
}

func NewWatchlist(gw Gateway, store *session.Store, log *zap.Logger) *Watchlist {
	return &Watchlist{gw: gw, store: store, log: orNop(log)}
}

// Load returns the watchlist rows with prices, in session order. No session
// means an empty table and no network traffic.
func (w *Watchlist) Load(ctx context.Context) ([]models.Stock, error) {
	user, ok := w.store.Load(ctx)
	if !ok || len(user.StockWatchlist) == 0 {
		return []models.Stock{}, nil
	}
	stocks, err := w.gw.StockDetails(ctx, user.StockWatchlist)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	if stocks == nil {
		stocks = []models.Stock{}
	}
	w.log.Debug("watchlist loaded",
		zap.Int("symbols", len(user.StockWatchlist)),
		zap.Int("rows", len(stocks)))
	return stocks, nil
}

// Add puts symbol on the watchlist. It reports whether the session gained
// the symbol; false means it was already there locally and the server call
// was still made.
func (w *Watchlist) Add(ctx context.Context, symbol string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	user, ok := w.store.Load(ctx)
	if !ok {
		return false, ErrNotLoggedIn
	}
	if err := w.gw.AddToWatchlist(ctx, user.ID, symbol); err != nil {
		return false, fmt.Errorf("add %s: %w", symbol, err)
	}
	added := user.Watch(symbol)
	if added {
		if err := w.store.Save(ctx, user); err != nil {
			return false, fmt.Errorf("%w: %w", ErrLocalWrite, err)
		}
	}
	w.log.Info("added to watchlist", zap.String("symbol", symbol), zap.Bool("new", added))
	return added, nil
}

// Remove takes symbol off the watchlist and returns rows without it. On any
// server failure the returned error is non-nil and rows come back untouched.
// When the server acknowledged but the session write failed the filtered rows
// are returned alongside an ErrLocalWrite error, since they match the server.
func (w *Watchlist) Remove(ctx context.Context, rows []models.Stock, symbol string) ([]models.Stock, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	user, ok := w.store.Load(ctx)
	if !ok {
		return rows, ErrNotLoggedIn
	}
	if err := w.gw.RemoveFromWatchlist(ctx, user.ID, symbol); err != nil {
		return rows, fmt.Errorf("remove %s: %w", symbol, err)
	}
	kept := Without(rows, symbol)
	if user.Unwatch(symbol) {
		if err := w.store.Save(ctx, user); err != nil {
			return kept, fmt.Errorf("%w: %w", ErrLocalWrite, err)
		}
	}
	w.log.Info("removed from watchlist", zap.String("symbol", symbol))
	return kept, nil
}

// AddMany adds each symbol in turn. It stops at the first failure and
// returns what was done up to that point.
func (w *Watchlist) AddMany(ctx context.Context, symbols []string) (added, existed []string, err error) {
	for _, symbol := range symbols {
		ok, err := w.Add(ctx, symbol)
		if err != nil {
			return added, existed, err
		}
		if ok {
			added = append(added, symbol)
		} else {
			existed = append(existed, symbol)
		}
	}
	return added, existed, nil
}

// RemoveMany removes each symbol in turn, sorting them into removed and
// missed by whether the session held them beforehand.
func (w *Watchlist) RemoveMany(ctx context.Context, symbols []string) (removed, missed []string, err error) {
	user, ok := w.store.Load(ctx)
	if !ok {
		return nil, nil, ErrNotLoggedIn
	}
	for _, symbol := range symbols {
		held := user.Watches(symbol)
		if _, err := w.Remove(ctx, nil, symbol); err != nil {
			return removed, missed, err
		}
		if held {
			removed = append(removed, symbol)
		} else {
			missed = append(missed, symbol)
		}
	}
	return removed, missed, nil
}

// Without returns a copy of rows minus every row for symbol.
func Without(rows []models.Stock, symbol string) []models.Stock {
	kept := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		if row.Symbol != symbol {
			kept = append(kept, row)
		}
	}
	return kept
}

// ParseSymbols splits free text on spaces and commas, upper-cases each
// symbol and drops duplicates.
func ParseSymbols(args string) []string {
	if args == "" {
		return nil
	}
	args = strings.ReplaceAll(args, "，", " ")
	args = strings.ReplaceAll(args, ",", " ")
	var symbols []string
	for _, field := range strings.Fields(args) {
		symbols = append(symbols, strings.ToUpper(field))
	}
	return uniqStrings(symbols)
}

func uniqStrings(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, val := range values {
		if seen[val] {
			continue
		}
		seen[val] = true
		out = append(out, val)
	}
	return out
}
