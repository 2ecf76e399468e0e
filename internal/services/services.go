// Package services holds the view logic shared by every front end: login and
// registration, the watchlist table and search. Watchlist changes always go
// to the server first and touch the session only once the server has
// acknowledged them.
package services

import (
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/session"
)

// Services bundles the views over one gateway and session store.
type Services struct {
	Auth      *Auth
	Watchlist *Watchlist
	Search    *Search
}

// New wires the views together. A nil logger is replaced with a no-op one.
func New(gw Gateway, store *session.Store, log *zap.Logger) *Services {
	log = orNop(log).Named("services")
	watchlist := NewWatchlist(gw, store, log)
	return &Services{
		Auth:      NewAuth(gw, store, log),
		Watchlist: watchlist,
		Search:    NewSearch(gw, watchlist, log),
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
