package services

import (
	"context"
	"errors"

	"github.com/luckfunc/stockwatch/internal/api"
	"github.com/luckfunc/stockwatch/internal/models"
)

var (
	// ErrNotLoggedIn short-circuits a watchlist mutation when there is no session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrEmptyQuery rejects blank searches before they reach the server.
	ErrEmptyQuery = errors.New("search text is empty")
	// ErrMissingField rejects credentials with a blank field.
	ErrMissingField = errors.New("missing field")
	// ErrLocalWrite reports that the server accepted a change but the
	// session could not be updated to match.
	ErrLocalWrite = errors.New("session not updated")
)

// Gateway is the slice of the API client the services need.
type Gateway interface {
	Register(ctx context.Context, creds models.Credentials) (*models.User, error)
	Login(ctx context.Context, creds models.Credentials) (*models.User, error)
	SearchStocks(ctx context.Context, text string) ([]models.Stock, error)
	StockDetails(ctx context.Context, symbols []string) ([]models.Stock, error)
	StockDetail(ctx context.Context, symbol string) (*models.Stock, error)
	AddToWatchlist(ctx context.Context, userID models.UserID, symbol string) error
	RemoveFromWatchlist(ctx context.Context, userID models.UserID, symbol string) error
}

var _ Gateway = (*api.Client)(nil)

// ErrorText turns an error into the message shown in a dialog.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return "You must be logged in to change your watchlist."
	case errors.Is(err, ErrEmptyQuery):
		return "Enter a symbol or company name to search."
	case errors.Is(err, api.ErrTransport):
		return "Cannot reach the server. Check your connection and try again."
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// LoginErrorText is ErrorText for a failed login. Any rejection reads as bad
// credentials so the server's wording never leaks which field was wrong.
func LoginErrorText(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "Please enter your username and password."
	case errors.Is(err, ErrLocalWrite):
		return err.Error()
	case errors.Is(err, api.ErrTransport):
		return ErrorText(err)
	}
	return "Invalid username or password"
}
