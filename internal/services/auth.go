package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/session"
)

// Auth drives login, registration and logout.
type Auth struct {
	gw    Gateway
	store *session.Store
	log   *zap.Logger
}

func NewAuth(gw Gateway, store *session.Store, log *zap.Logger) *Auth {
	return &Auth{gw: gw, store: store, log: orNop(log)}
}

func checkCredentials(creds models.Credentials) error {
	if field := creds.Missing(); field != "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

// Login authenticates and writes the returned record over any prior session.
func (a *Auth) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := checkCredentials(creds); err != nil {
		return nil, err
	}
	user, err := a.gw.Login(ctx, creds)
	if err != nil {
		a.log.Debug("login failed", zap.String("username", creds.Username), zap.Error(err))
		return nil, fmt.Errorf("login: %w", err)
	}
	if user.StockWatchlist == nil {
		user.StockWatchlist = []string{}
	}
	if err := a.store.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalWrite, err)
	}
	a.log.Info("logged in", zap.String("user_id", user.ID.String()), zap.Int("watchlist", len(user.StockWatchlist)))
	return user, nil
}

// Register creates an account. No session is established; the caller moves
// on to login.
func (a *Auth) Register(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := checkCredentials(creds); err != nil {
		return nil, err
	}
	user, err := a.gw.Register(ctx, creds)
	if err != nil {
		a.log.Debug("register failed", zap.String("username", creds.Username), zap.Error(err))
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Logout forgets the session.
func (a *Auth) Logout(ctx context.Context) error {
	return a.store.Clear(ctx)
}

// Current returns the session user, if any.
func (a *Auth) Current(ctx context.Context) (*models.User, bool) {
	return a.store.Load(ctx)
}
