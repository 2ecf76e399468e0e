package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/models"
)

// Search backs the search view: free-text lookup, on-demand price
// resolution, and adding a result to the watchlist.
type Search struct {
	gw        Gateway
	watchlist *Watchlist
	log       *zap.Logger
}

func NewSearch(gw Gateway, watchlist *Watchlist, log *zap.Logger) *Search {
	return &Search{gw: gw, watchlist: watchlist, log: orNop(log)}
}

// Search queries the catalog. Blank text is rejected without a request.
// Results carry no prices.
func (s *Search) Search(ctx context.Context, text string) ([]models.Stock, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	stocks, err := s.gw.SearchStocks(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	if stocks == nil {
		stocks = []models.Stock{}
	}
	s.log.Debug("search done", zap.String("text", text), zap.Int("results", len(stocks)))
	return stocks, nil
}

// ResolvePrice fetches the current detail for one symbol.
func (s *Search) ResolvePrice(ctx context.Context, symbol string) (models.Stock, error) {
	stock, err := s.gw.StockDetail(ctx, symbol)
	if err != nil {
		return models.Stock{}, fmt.Errorf("price %s: %w", symbol, err)
	}
	return *stock, nil
}

// Add puts symbol on the watchlist; see Watchlist.Add.
func (s *Search) Add(ctx context.Context, symbol string) (bool, error) {
	return s.watchlist.Add(ctx, symbol)
}

// WithPrice returns a copy of rows where every row matching stock.Symbol
// carries stock's price. Other rows are untouched.
func WithPrice(rows []models.Stock, stock models.Stock) []models.Stock {
	out := make([]models.Stock, len(rows))
	copy(out, rows)
	for i := range out {
		if out[i].Symbol == stock.Symbol {
			out[i].CurrentPrice = stock.CurrentPrice
		}
	}
	return out
}
