package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockwatch/internal/api"
	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
	"github.com/luckfunc/stockwatch/internal/session"
	"github.com/luckfunc/stockwatch/internal/stubserver"
)

// flakyStorage fails writes once failWrites is set.
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

type harness struct {
	stub    *stubserver.Server
	storage *flakyStorage
	store   *session.Store
	svc     *services.Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stub := stubserver.New()
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)
	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)
	storage := &flakyStorage{MemoryStorage: session.NewMemoryStorage()}
	store := session.New(storage, nil)
	return &harness{stub: stub, storage: storage, store: store, svc: services.New(client, store, nil)}
}

// loggedIn seeds an account holding watchlist, logs it in and starts the UI.
func (h *harness) loggedIn(t *testing.T, watchlist ...string) Model {
	t.Helper()
	_, err := h.stub.Seed("ann", "pw", watchlist...)
	require.NoError(t, err)
	_, err = h.svc.Auth.Login(context.Background(), models.Credentials{Username: "ann", Password: "pw"})
	require.NoError(t, err)
	m := h.model()
	return drive(m, m.Init())
}

func (h *harness) model() Model {
	return New(context.Background(), h.svc, services.NewPriceFormatter("en-US"))
}

// drive runs cmd and feeds every resulting message back into the model,
// skipping spinner animation ticks.
func drive(m Model, cmd tea.Cmd) Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, tea.QuitMsg:
		default:
			next, nextCmd := m.Update(msg)
			m = next.(Model)
			queue = append(queue, nextCmd)
		}
	}
	return m
}

func press(m Model, key tea.KeyMsg) Model {
	next, cmd := m.Update(key)
	return drive(next.(Model), cmd)
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m = press(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

var (
	keyEnter  = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab    = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc    = tea.KeyMsg{Type: tea.KeyEsc}
	keySlash  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}}
	keyS      = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}
	keyLogout = tea.KeyMsg{Type: tea.KeyCtrlL}
)

func TestNew_WithoutSessionShowsLogin(t *testing.T) {
	h := newHarness(t)
	m := h.model()
	assert.Equal(t, pageLogin, m.page)
	assert.Nil(t, m.Init())
	assert.Contains(t, m.View(), "Login")
}

func TestLoginLoadsWatchlist(t *testing.T) {
	h := newHarness(t)
	_, err := h.stub.Seed("ann", "pw", "AAPL", "MSFT")
	require.NoError(t, err)

	m := h.model()
	m = typeText(m, "ann")
	m = press(m, keyTab)
	m = typeText(m, "pw")
	m = press(m, keyEnter)

	require.Nil(t, m.dialog)
	assert.Equal(t, pageWatchlist, m.page)
	assert.Equal(t, []string{"AAPL", "MSFT"}, models.Symbols(m.rows))
	view := m.View()
	assert.Contains(t, view, "Login successful!")
	assert.Contains(t, view, "Apple Inc.")
	assert.Contains(t, view, "Microsoft Corporation")
	assert.Contains(t, view, "300.00")
}

func TestLoginFailureShowsDialog(t *testing.T) {
	h := newHarness(t)
	m := h.model()
	m = typeText(m, "ghost")
	m = press(m, keyTab)
	m = typeText(m, "nope")
	m = press(m, keyEnter)

	require.NotNil(t, m.dialog)
	assert.Equal(t, pageLogin, m.page)
	assert.Contains(t, m.View(), "Invalid username or password")

	m = press(m, keyEnter)
	assert.Nil(t, m.dialog)
}

func TestRegisterReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	m := h.model()
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Equal(t, pageRegister, m.page)

	m = typeText(m, "newbie")
	m = press(m, keyTab)
	m = typeText(m, "secret")
	m = press(m, keyEnter)

	assert.Equal(t, pageLogin, m.page)
	assert.Equal(t, "newbie", m.username.Value())
	assert.Contains(t, m.View(), "Registration successful!")
	_, ok := h.store.Load(context.Background())
	assert.False(t, ok, "registration does not log in")
}

func TestRemoveConfirmed(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t, "AAPL", "MSFT")
	require.Len(t, m.rows, 2)

	m = press(m, keyEnter)
	require.NotNil(t, m.dialog)
	assert.Contains(t, m.View(), "Do you want to delete AAPL from your watchlist?")

	m = press(m, keyEnter)
	assert.Equal(t, []string{"MSFT"}, models.Symbols(m.rows))
	assert.Contains(t, m.View(), "AAPL deleted from your watchlist!")

	user, ok := h.store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, []string{"MSFT"}, user.StockWatchlist)
}

func TestRemoveCancelled(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t, "AAPL")

	m = press(m, keyEnter)
	m = press(m, keyEsc)
	assert.Nil(t, m.dialog)
	assert.Equal(t, []string{"AAPL"}, models.Symbols(m.rows))
}

func TestRemoveFailureKeepsRows(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t, "AAPL", "MSFT")
	h.stub.Fail(stubserver.OpRemove, http.StatusInternalServerError)

	m = press(m, keyEnter)
	m = press(m, keyEnter)

	require.NotNil(t, m.dialog)
	assert.Equal(t, dialogError, m.dialog.kind)
	assert.Equal(t, "Failed to delete the stock", m.dialog.title)
	assert.Equal(t, []string{"AAPL", "MSFT"}, models.Symbols(m.rows))
}

func TestBlankSearchIsIgnored(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t)

	m = press(m, keySlash)
	require.True(t, m.searching)
	m = typeText(m, "   ")

	next, cmd := m.Update(keyEnter)
	assert.Nil(t, cmd)
	assert.True(t, next.(Model).searching)
	assert.Equal(t, pageWatchlist, next.(Model).page)
}

func TestSearchShowPriceAndAdd(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t)

	m = press(m, keySlash)
	m = typeText(m, "corporation")
	m = press(m, keyEnter)

	require.Equal(t, pageSearch, m.page)
	assert.Equal(t, []string{"MSFT", "NVDA"}, models.Symbols(m.results))
	assert.Contains(t, m.View(), ShowPriceLabel)

	m = press(m, keyS)
	assert.True(t, m.results[0].HasPrice())
	assert.False(t, m.results[1].HasPrice())
	assert.Contains(t, m.View(), "300.00")

	m = press(m, keyEnter)
	require.NotNil(t, m.dialog)
	assert.Contains(t, m.View(), "Do you want to add MSFT to your watchlist?")
	m = press(m, keyEnter)
	assert.Contains(t, m.View(), "MSFT added to your watchlist!")

	m = press(m, keyEnter)
	m = press(m, keyEsc)
	assert.Equal(t, pageWatchlist, m.page)
	assert.Equal(t, []string{"MSFT"}, models.Symbols(m.rows))
}

func TestAddSavedOnServerOnly(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t)
	user, ok := h.store.Load(context.Background())
	require.True(t, ok)

	m = press(m, keySlash)
	m = typeText(m, "corporation")
	m = press(m, keyEnter)
	require.Equal(t, pageSearch, m.page)

	h.storage.failWrites = true
	m = press(m, keyEnter)
	m = press(m, keyEnter)

	require.NotNil(t, m.dialog)
	assert.Equal(t, dialogError, m.dialog.kind)
	assert.Equal(t, "Watchlist not saved locally", m.dialog.title)
	assert.Equal(t, []string{"MSFT"}, h.stub.Watchlist(user.ID))
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	m := h.loggedIn(t, "AAPL")

	m = press(m, keyLogout)
	assert.Equal(t, pageLogin, m.page)
	assert.Nil(t, m.user)
	assert.Empty(t, m.rows)
	_, ok := h.store.Load(context.Background())
	assert.False(t, ok)
}

func TestKeysIgnoredWhileLoading(t *testing.T) {
	h := newHarness(t)
	m := h.model()
	m.loading = "Logging in"

	next, cmd := m.Update(keyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, "Logging in", next.(Model).loading)
}

func TestCtrlCQuits(t *testing.T) {
	h := newHarness(t)
	_, cmd := h.model().Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
