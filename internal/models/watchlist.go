package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UserID is the server-assigned user identifier. The server may send it as
// a JSON number or a string; it is kept verbatim and written back as a string.
type UserID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string {
	return string(id)
}

// User is the session record: identity plus watchlist membership.
type User struct {
	ID             UserID   `json:"id"`
	Username       string   `json:"username"`
	StockWatchlist []string `json:"stockWatchlist"`
}

// Watches reports whether symbol is on the watchlist.
func (u *User) Watches(symbol string) bool {
	for _, s := range u.StockWatchlist {
		if s == symbol {
			return true
		}
	}
	return false
}

// Watch appends symbol unless it is already present.
func (u *User) Watch(symbol string) bool {
	if u.Watches(symbol) {
		return false
	}
	u.StockWatchlist = append(u.StockWatchlist, symbol)
	return true
}

// Unwatch drops every occurrence of symbol.
func (u *User) Unwatch(symbol string) bool {
	kept := make([]string, 0, len(u.StockWatchlist))
	removed := false
	for _, s := range u.StockWatchlist {
		if s == symbol {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	u.StockWatchlist = kept
	return removed
}

// Clone returns a deep copy so callers can stage edits.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.StockWatchlist = append([]string(nil), u.StockWatchlist...)
	return &c
}

// Credentials are the login/register form values.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Missing names the first blank field, or "" when both are present.
func (c Credentials) Missing() string {
	if strings.TrimSpace(c.Username) == "" {
		return "username"
	}
	if strings.TrimSpace(c.Password) == "" {
		return "password"
	}
	return ""
}
