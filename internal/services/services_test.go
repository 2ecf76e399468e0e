package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockwatch/internal/api"
	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/session"
	"github.com/luckfunc/stockwatch/internal/stubserver"
)

// countingGateway records how often each endpoint was called.
type countingGateway struct {
	Gateway
	mu    sync.Mutex
	calls map[string]int
}

func (g *countingGateway) hit(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
}

func (g *countingGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *countingGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *countingGateway) Register(ctx context.Context, creds models.Credentials) (*models.User, error) {
	g.hit("Register")
	return g.Gateway.Register(ctx, creds)
}

func (g *countingGateway) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	g.hit("Login")
	return g.Gateway.Login(ctx, creds)
}

func (g *countingGateway) SearchStocks(ctx context.Context, text string) ([]models.Stock, error) {
	g.hit("SearchStocks")
	return g.Gateway.SearchStocks(ctx, text)
}

func (g *countingGateway) StockDetails(ctx context.Context, symbols []string) ([]models.Stock, error) {
	g.hit("StockDetails")
	return g.Gateway.StockDetails(ctx, symbols)
}

func (g *countingGateway) StockDetail(ctx context.Context, symbol string) (*models.Stock, error) {
	g.hit("StockDetail")
	return g.Gateway.StockDetail(ctx, symbol)
}

func (g *countingGateway) AddToWatchlist(ctx context.Context, userID models.UserID, symbol string) error {
	g.hit("AddToWatchlist")
	return g.Gateway.AddToWatchlist(ctx, userID, symbol)
}

func (g *countingGateway) RemoveFromWatchlist(ctx context.Context, userID models.UserID, symbol string) error {
	g.hit("RemoveFromWatchlist")
	return g.Gateway.RemoveFromWatchlist(ctx, userID, symbol)
}

// flakyStorage fails writes on demand.
type flakyStorage struct {
	*session.MemoryStorage
	failWrites bool
}

func (f *flakyStorage) Write(ctx context.Context, data []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Write(ctx, data)
}

type fixture struct {
	stub    *stubserver.Server
	gw      *countingGateway
	storage *flakyStorage
	store   *session.Store
	svc     *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stub := stubserver.New()
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)

	gw := &countingGateway{Gateway: client, calls: make(map[string]int)}
	storage := &flakyStorage{MemoryStorage: session.NewMemoryStorage()}
	store := session.New(storage, nil)
	return &fixture{
		stub:    stub,
		gw:      gw,
		storage: storage,
		store:   store,
		svc:     New(gw, store, nil),
	}
}

// login seeds an account holding watchlist and logs it in.
func (f *fixture) login(t *testing.T, watchlist ...string) *models.User {
	t.Helper()
	_, err := f.stub.Seed("ann", "pw", watchlist...)
	require.NoError(t, err)
	user, err := f.svc.Auth.Login(context.Background(), models.Credentials{Username: "ann", Password: "pw"})
	require.NoError(t, err)
	return user
}

func (f *fixture) sessionSymbols(t *testing.T) []string {
	t.Helper()
	user, ok := f.store.Load(context.Background())
	require.True(t, ok, "expected a session")
	return user.StockWatchlist
}

func TestLoginThenLoad_ReturnsServerSymbols(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.login(t, "AAPL", "MSFT", "TSLA")

	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)

	want := f.stub.Watchlist(user.ID)
	if diff := cmp.Diff(want, models.Symbols(rows)); diff != "" {
		t.Errorf("rows mismatch (-server +rows):\n%s", diff)
	}
	if diff := cmp.Diff(want, f.sessionSymbols(t)); diff != "" {
		t.Errorf("session mismatch (-server +session):\n%s", diff)
	}
	assert.Equal(t, 1, f.gw.count("StockDetails"), "one batched details call")
}

func TestLoad_WithoutSessionMakesNoRequest(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.Watchlist.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
	assert.Zero(t, f.gw.total())
}

func TestLoad_EmptyWatchlistMakesNoRequest(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rows, err := f.svc.Watchlist.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, f.gw.count("StockDetails"))
}

func TestLoad_PropagatesServerError(t *testing.T) {
	f := newFixture(t)
	f.login(t, "AAPL")
	f.stub.Fail(stubserver.OpDetails, http.StatusInternalServerError)

	_, err := f.svc.Watchlist.Load(context.Background())
	assert.ErrorIs(t, err, api.ErrRejected)
}

func TestTwoRowScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t, "AAPL", "MSFT")

	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "Apple Inc.", rows[0].CompanyName)
	assert.True(t, rows[0].CurrentPrice.Decimal.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "MSFT", rows[1].Symbol)
	assert.Equal(t, "Microsoft Corporation", rows[1].CompanyName)
	assert.True(t, rows[1].CurrentPrice.Decimal.Equal(decimal.NewFromInt(300)))

	table := FormatTable(rows, NewPriceFormatter("en-US"))
	assert.Equal(t, 3, len(strings.Split(table, "\n")), "header plus two rows")
	assert.Contains(t, table, "Apple Inc.")
	assert.Contains(t, table, "150.00")
	assert.Contains(t, table, "300.00")
}

func TestRemove_AbsentSymbolLeavesTableUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t, "AAPL", "MSFT")

	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)

	got, err := f.svc.Watchlist.Remove(ctx, rows, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, rows, got)
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.sessionSymbols(t))
}

func TestAddThenRemove_RestoresWatchlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.login(t, "MSFT")
	before := f.sessionSymbols(t)

	added, err := f.svc.Search.Add(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"MSFT", "AAPL"}, f.sessionSymbols(t))
	assert.Equal(t, []string{"MSFT", "AAPL"}, f.stub.Watchlist(user.ID))

	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)
	rows, err = f.svc.Watchlist.Remove(ctx, rows, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT"}, models.Symbols(rows))
	assert.Equal(t, before, f.sessionSymbols(t))
	assert.Equal(t, before, f.stub.Watchlist(user.ID))
}

func TestRemove_ServerFailureLeavesTableAndSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.login(t, "AAPL", "MSFT")

	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)

	f.stub.Fail(stubserver.OpRemove, http.StatusInternalServerError)
	got, err := f.svc.Watchlist.Remove(ctx, rows, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrRejected)
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))

	assert.Equal(t, rows, got)
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.sessionSymbols(t))
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.stub.Watchlist(user.ID))
	assert.Equal(t, 1, f.gw.count("RemoveFromWatchlist"), "no retry")
}

func TestAdd_ServerFailureLeavesSession(t *testing.T) {
	f := newFixture(t)
	f.login(t, "MSFT")
	f.stub.Fail(stubserver.OpAdd, http.StatusServiceUnavailable)

	added, err := f.svc.Search.Add(context.Background(), "AAPL")
	assert.ErrorIs(t, err, api.ErrRejected)
	assert.False(t, added)
	assert.Equal(t, []string{"MSFT"}, f.sessionSymbols(t))
}

func TestAdd_AlreadyPresentKeepsSessionASet(t *testing.T) {
	f := newFixture(t)
	f.login(t, "AAPL")

	added, err := f.svc.Search.Add(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"AAPL"}, f.sessionSymbols(t))
	assert.Equal(t, 1, f.gw.count("AddToWatchlist"))
}

func TestMutations_RequireSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rows := []models.Stock{{Symbol: "AAPL"}}

	_, err := f.svc.Search.Add(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	got, err := f.svc.Watchlist.Remove(ctx, rows, "AAPL")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, rows, got)

	_, _, err = f.svc.Watchlist.RemoveMany(ctx, []string{"AAPL"})
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	assert.Zero(t, f.gw.total())
}

func TestRemove_LocalWriteFailureAfterAck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.login(t, "AAPL", "MSFT")
	rows, err := f.svc.Watchlist.Load(ctx)
	require.NoError(t, err)

	f.storage.failWrites = true
	got, err := f.svc.Watchlist.Remove(ctx, rows, "AAPL")
	assert.ErrorIs(t, err, ErrLocalWrite)
	assert.Equal(t, []string{"MSFT"}, models.Symbols(got), "rows follow the server")
	assert.Equal(t, []string{"MSFT"}, f.stub.Watchlist(user.ID))
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.sessionSymbols(t))
}

func TestAdd_LocalWriteFailureAfterAck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.login(t, "AAPL")

	f.storage.failWrites = true
	added, err := f.svc.Watchlist.Add(ctx, "MSFT")
	assert.ErrorIs(t, err, ErrLocalWrite)
	assert.False(t, added)
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.stub.Watchlist(user.ID))
	assert.Equal(t, []string{"AAPL"}, f.sessionSymbols(t))
}

func TestAddManyRemoveMany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.login(t, "AAPL")

	added, existed, err := f.svc.Watchlist.AddMany(ctx, []string{"AAPL", "MSFT", "TSLA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "TSLA"}, added)
	assert.Equal(t, []string{"AAPL"}, existed)

	removed, missed, err := f.svc.Watchlist.RemoveMany(ctx, []string{"TSLA", "NVDA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA"}, removed)
	assert.Equal(t, []string{"NVDA"}, missed)
	assert.Equal(t, []string{"AAPL", "MSFT"}, f.sessionSymbols(t))

	added, _, err = f.svc.Watchlist.AddMany(ctx, []string{"META", "NOPE", "NVDA"})
	assert.Error(t, err)
	assert.Equal(t, []string{"META"}, added, "stops at the first failure")
}

func TestSearch_BlankNeverReachesEndpoint(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", " ", "\t\n  "} {
		_, err := f.svc.Search.Search(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyQuery, "%q", text)
	}
	assert.Zero(t, f.gw.count("SearchStocks"))
}

func TestSearch_ResolvePriceUpdatesOneRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rows, err := f.svc.Search.Search(ctx, "  corporation ")
	require.NoError(t, err)
	require.Equal(t, []string{"MSFT", "NVDA"}, models.Symbols(rows))
	for _, row := range rows {
		assert.False(t, row.HasPrice())
	}

	stock, err := f.svc.Search.ResolvePrice(ctx, "MSFT")
	require.NoError(t, err)
	priced := WithPrice(rows, stock)

	assert.True(t, priced[0].CurrentPrice.Decimal.Equal(decimal.NewFromInt(300)))
	assert.False(t, priced[1].HasPrice())
	assert.False(t, rows[0].HasPrice(), "input rows are not modified")

	_, err = f.svc.Search.ResolvePrice(ctx, "NOPE")
	assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestSearch_NoResults(t *testing.T) {
	f := newFixture(t)
	rows, err := f.svc.Search.Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.stub.Seed("ann", "pw", "AAPL")
	require.NoError(t, err)
	_, err = f.stub.Seed("bob", "pw")
	require.NoError(t, err)

	_, err = f.svc.Auth.Login(ctx, models.Credentials{Username: "ann"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Zero(t, f.gw.count("Login"))

	_, err = f.svc.Auth.Login(ctx, models.Credentials{Username: "ann", Password: "wrong"})
	assert.ErrorIs(t, err, api.ErrRejected)
	assert.Equal(t, "invalid username or password", ErrorText(err))
	_, ok := f.svc.Auth.Current(ctx)
	assert.False(t, ok)

	_, err = f.svc.Auth.Login(ctx, models.Credentials{Username: "ann", Password: "pw"})
	require.NoError(t, err)
	bob, err := f.svc.Auth.Login(ctx, models.Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	current, ok := f.svc.Auth.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, bob.ID, current.ID)
	assert.Equal(t, []string{}, current.StockWatchlist, "no merge with the previous session")

	require.NoError(t, f.svc.Auth.Logout(ctx))
	_, ok = f.svc.Auth.Current(ctx)
	assert.False(t, ok)
}

func TestAuth_RegisterDoesNotLogIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creds := models.Credentials{Username: "new", Password: "pw"}

	user, err := f.svc.Auth.Register(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, "new", user.Username)
	_, ok := f.svc.Auth.Current(ctx)
	assert.False(t, ok)

	_, err = f.svc.Auth.Register(ctx, creds)
	assert.Equal(t, http.StatusConflict, api.StatusCode(err))

	_, err = f.svc.Auth.Register(ctx, models.Credentials{Password: "pw"})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestWithout(t *testing.T) {
	rows := []models.Stock{{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "AAPL"}}
	assert.Equal(t, []string{"MSFT"}, models.Symbols(Without(rows, "AAPL")))
	assert.Len(t, rows, 3)
	assert.Empty(t, Without(nil, "AAPL"))
}

func TestParseSymbols(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"aapl", []string{"AAPL"}},
		{"aapl, msft  tsla", []string{"AAPL", "MSFT", "TSLA"}},
		{"AAPL，aapl", []string{"AAPL"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSymbols(tt.in), tt.in)
	}
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "", ErrorText(nil))
	assert.Contains(t, ErrorText(ErrNotLoggedIn), "logged in")
	assert.Contains(t, ErrorText(ErrEmptyQuery), "search")
	assert.Equal(t, "boom", ErrorText(errors.New("boom")))
	wrapped := &api.Error{Op: "search", Err: api.ErrTransport, Message: "dial tcp"}
	assert.Contains(t, ErrorText(wrapped), "Cannot reach the server")

	assert.Equal(t, "Invalid username or password", LoginErrorText(&api.Error{Op: "login", StatusCode: 401, Message: "nope", Err: api.ErrRejected}))
	assert.Contains(t, LoginErrorText(fmt.Errorf("%w: password", ErrMissingField)), "username and password")
	assert.Contains(t, LoginErrorText(wrapped), "Cannot reach the server")
}
