package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
)

// Results of service calls. Each call runs as a tea.Cmd off the UI
// goroutine and reports back with one of these.
type (
	watchlistLoadedMsg struct {
		rows []models.Stock
		err  error
	}
	removedMsg struct {
		symbol string
		rows   []models.Stock
		err    error
	}
	searchDoneMsg struct {
		text string
		rows []models.Stock
		err  error
	}
	priceResolvedMsg struct {
		stock models.Stock
		err   error
	}
	addedMsg struct {
		symbol string
		added  bool
		err    error
	}
	loggedInMsg struct {
		user *models.User
		err  error
	}
	registeredMsg struct {
		username string
		err      error
	}
	loggedOutMsg struct {
		err error
	}
)

func loadWatchlistCmd(ctx context.Context, svc *services.Services) tea.Cmd {
	return func() tea.Msg {
		rows, err := svc.Watchlist.Load(ctx)
		return watchlistLoadedMsg{rows: rows, err: err}
	}
}

func removeCmd(ctx context.Context, svc *services.Services, rows []models.Stock, symbol string) tea.Cmd {
	return func() tea.Msg {
		kept, err := svc.Watchlist.Remove(ctx, rows, symbol)
		return removedMsg{symbol: symbol, rows: kept, err: err}
	}
}

func searchCmd(ctx context.Context, svc *services.Services, text string) tea.Cmd {
	return func() tea.Msg {
		rows, err := svc.Search.Search(ctx, text)
		return searchDoneMsg{text: text, rows: rows, err: err}
	}
}

func priceCmd(ctx context.Context, svc *services.Services, symbol string) tea.Cmd {
	return func() tea.Msg {
		stock, err := svc.Search.ResolvePrice(ctx, symbol)
		return priceResolvedMsg{stock: stock, err: err}
	}
}

func addCmd(ctx context.Context, svc *services.Services, symbol string) tea.Cmd {
	return func() tea.Msg {
		added, err := svc.Search.Add(ctx, symbol)
		return addedMsg{symbol: symbol, added: added, err: err}
	}
}

func loginCmd(ctx context.Context, svc *services.Services, creds models.Credentials) tea.Cmd {
	return func() tea.Msg {
		user, err := svc.Auth.Login(ctx, creds)
		return loggedInMsg{user: user, err: err}
	}
}

func registerCmd(ctx context.Context, svc *services.Services, creds models.Credentials) tea.Cmd {
	return func() tea.Msg {
		_, err := svc.Auth.Register(ctx, creds)
		return registeredMsg{username: creds.Username, err: err}
	}
}

func logoutCmd(ctx context.Context, svc *services.Services) tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: svc.Auth.Logout(ctx)}
	}
}
