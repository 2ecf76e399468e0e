// Package session persists the logged-in user record. The store is a single
// slot: last write wins, there is no versioning, and anything that cannot be
// read back as a user counts as "no session".
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/models"
)

// Store reads and writes the session user through a Storage.
type Store struct {
	storage Storage
	log     *zap.Logger
}

// New wraps storage. A nil logger is replaced with a no-op one.
func New(storage Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{storage: storage, log: log.Named("session")}
}

// Load returns the stored user. Absent, unreadable and malformed records all
// report false without an error.
func (s *Store) Load(ctx context.Context) (*models.User, bool) {
	data, err := s.storage.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Debug("session unreadable", zap.Error(err))
		}
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.log.Debug("session malformed", zap.Error(err))
		return nil, false
	}
	if user.ID == "" {
		s.log.Debug("session has no user id")
		return nil, false
	}
	if user.StockWatchlist == nil {
		user.StockWatchlist = []string{}
	}
	return &user, true
}

// Save replaces the stored user.
func (s *Store) Save(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.Write(ctx, data); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the stored user.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
