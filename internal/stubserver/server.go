// Package stubserver is an in-memory stand-in for the watchlist service. It
// speaks the same HTTP contract as the real server and is used for local
// development (`stockwatch stub-server`) and for end-to-end tests.
package stubserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/luckfunc/stockwatch/internal/models"
)

// SessionCookie is set on login.
const SessionCookie = "sw_session"

// Route names, usable with Fail.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpSearch   = "search"
	OpDetails  = "details"
	OpDetail   = "detail"
	OpAdd      = "add"
	OpRemove   = "remove"
)

type account struct {
	id        int
	username  string
	hash      []byte
	watchlist []string
}

func (a *account) record() models.User {
	return models.User{
		ID:             models.UserID(strconv.Itoa(a.id)),
		Username:       a.username,
		StockWatchlist: append([]string{}, a.watchlist...),
	}
}

// Server holds users, sessions and the stock catalog.
type Server struct {
	mu       sync.Mutex
	users    map[string]*account // by username
	byID     map[string]*account
	sessions map[string]string // cookie value -> user id
	catalog  map[string]models.Stock
	faults   map[string]int
	nextID   int

	requireSession bool
	log            *zap.Logger
	router         *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog replaces the default catalog.
func WithCatalog(stocks []models.Stock) Option {
	return func(s *Server) {
		s.catalog = make(map[string]models.Stock, len(stocks))
		for _, st := range stocks {
			s.catalog[st.Symbol] = st
		}
	}
}

// WithRequireSession makes watchlist mutations demand the login cookie.
func WithRequireSession() Option {
	return func(s *Server) { s.requireSession = true }
}

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// DefaultCatalog is a handful of well-known tickers.
func DefaultCatalog() []models.Stock {
	entry := func(sym, name, price string) models.Stock {
		return models.Stock{Symbol: sym, CompanyName: name, CurrentPrice: models.PriceOf(decimal.RequireFromString(price))}
	}
	return []models.Stock{
		entry("AAPL", "Apple Inc.", "150"),
		entry("MSFT", "Microsoft Corporation", "300"),
		entry("GOOGL", "Alphabet Inc.", "135.20"),
		entry("AMZN", "Amazon.com Inc.", "128.91"),
		entry("TSLA", "Tesla Inc.", "242.68"),
		entry("NVDA", "NVIDIA Corporation", "455.72"),
		entry("META", "Meta Platforms Inc.", "301.27"),
	}
}

// New builds a stub server.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[string]*account),
		byID:     make(map[string]*account),
		sessions: make(map[string]string),
		faults:   make(map[string]int),
		nextID:   1,
		log:      zap.NewNop(),
	}
	WithCatalog(DefaultCatalog())(s)
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.injectFaults)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/user/register", s.handleRegister).Methods(http.MethodPost).Name(OpRegister)
	r.HandleFunc("/api/user/login", s.handleLogin).Methods(http.MethodPost).Name(OpLogin)
	r.HandleFunc("/api/user/add-to-watchlist/{userId}", s.handleAdd).Methods(http.MethodPost).Name(OpAdd)
	r.HandleFunc("/api/user/delete-from-watchlist/{userId}", s.handleRemove).Methods(http.MethodPost).Name(OpRemove)
	r.HandleFunc("/api/stocks/search/{text}", s.handleSearch).Methods(http.MethodGet).Name(OpSearch)
	r.HandleFunc("/api/stocks/details", s.handleDetails).Methods(http.MethodPost).Name(OpDetails)
	r.HandleFunc("/api/stocks/{symbol}", s.handleDetail).Methods(http.MethodGet).Name(OpDetail)
	return r
}

// Fail makes every request to route op answer with status until Heal.
func (s *Server) Fail(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = status
}

// Heal clears a fault set by Fail.
func (s *Server) Heal(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
}

// Watchlist returns the server-side watchlist of a user.
func (s *Server) Watchlist(userID models.UserID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[userID.String()]
	if !ok {
		return nil
	}
	return append([]string{}, acct.watchlist...)
}

// Seed creates an account directly, bypassing the HTTP API.
func (s *Server) Seed(username, password string, watchlist ...string) (models.UserID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.createLocked(username, hash)
	acct.watchlist = append(acct.watchlist, watchlist...)
	return models.UserID(strconv.Itoa(acct.id)), nil
}

func (s *Server) createLocked(username string, hash []byte) *account {
	acct := &account{id: s.nextID, username: username, hash: hash, watchlist: []string{}}
	s.nextID++
	s.users[username] = acct
	s.byID[strconv.Itoa(acct.id)] = acct
	return acct
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("stub request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get("X-Request-ID")))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			s.mu.Lock()
			status, ok := s.faults[route.GetName()]
			s.mu.Unlock()
			if ok {
				writeError(w, status, "injected failure")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if field := creds.Missing(); field != "" {
		writeError(w, http.StatusBadRequest, field+" required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[creds.Username]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	rec := s.createLocked(creds.Username, hash).record()
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[creds.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = strconv.Itoa(acct.id)
	rec := acct.record()
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	text := strings.ToLower(strings.TrimSpace(mux.Vars(r)["text"]))

	s.mu.Lock()
	var out []models.Stock
	for _, st := range s.catalog {
		if strings.Contains(strings.ToLower(st.Symbol), text) ||
			strings.Contains(strings.ToLower(st.CompanyName), text) {
			out = append(out, models.Stock{Symbol: st.Symbol, CompanyName: st.CompanyName})
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	writeJSON(w, http.StatusOK, toWireList(out))
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if err := json.NewDecoder(r.Body).Decode(&symbols); err != nil {
		writeError(w, http.StatusBadRequest, "expected a list of symbols")
		return
	}
	s.mu.Lock()
	out := make([]models.Stock, 0, len(symbols))
	for _, sym := range symbols {
		if st, ok := s.catalog[sym]; ok {
			out = append(out, st)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, toWireList(out))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.mu.Lock()
	st, ok := s.catalog[symbol]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, toWire(st))
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateWatchlist(w, r, func(acct *account, symbol string) {
		for _, existing := range acct.watchlist {
			if existing == symbol {
				return
			}
		}
		acct.watchlist = append(acct.watchlist, symbol)
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateWatchlist(w, r, func(acct *account, symbol string) {
		kept := acct.watchlist[:0]
		for _, existing := range acct.watchlist {
			if existing != symbol {
				kept = append(kept, existing)
			}
		}
		acct.watchlist = kept
	})
}

func (s *Server) mutateWatchlist(w http.ResponseWriter, r *http.Request, apply func(*account, string)) {
	userID := mux.Vars(r)["userId"]
	var body struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[userID]
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if s.requireSession && !s.hasSessionLocked(r, userID) {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}
	if _, known := s.catalog[body.Symbol]; !known {
		writeError(w, http.StatusNotFound, "unknown symbol "+body.Symbol)
		return
	}
	apply(acct, body.Symbol)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) hasSessionLocked(r *http.Request, userID string) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	return s.sessions[c.Value] == userID
}

// wireStock is a catalog entry as the real service sends it: the price is a
// bare JSON number and is left out when unknown.
type wireStock struct {
	Symbol       string       `json:"symbol"`
	CompanyName  string       `json:"companyName"`
	CurrentPrice *json.Number `json:"currentPrice,omitempty"`
}

func toWire(st models.Stock) wireStock {
	w := wireStock{Symbol: st.Symbol, CompanyName: st.CompanyName}
	if st.CurrentPrice.Valid {
		n := json.Number(st.CurrentPrice.Decimal.String())
		w.CurrentPrice = &n
	}
	return w
}

func toWireList(stocks []models.Stock) []wireStock {
	out := make([]wireStock, 0, len(stocks))
	for _, st := range stocks {
		out = append(out, toWire(st))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
