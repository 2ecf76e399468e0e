// Package ui is the terminal front end: login and register forms, the
// watchlist table with a search box, and the search results page.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
)

type page int

const (
	pageLogin page = iota
	pageRegister
	pageWatchlist
	pageSearch
)

// ShowPriceLabel fills the price cell of a search result until it is resolved.
const ShowPriceLabel = "Show (s)"

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	svc    *services.Services
	prices services.PriceFormatter
	styles Styles

	page page
	user *models.User

	username  textinput.Model
	password  textinput.Model
	formFocus int

	search    textinput.Model
	searching bool

	watchTable  table.Model
	resultTable table.Model
	rows        []models.Stock
	results     []models.Stock
	lastQuery   string

	spinner spinner.Model
	loading string
	dialog  *dialog
	notice  string

	width, height int
}

// New builds the UI. With a stored session it opens on the watchlist,
// otherwise on the login form.
func New(ctx context.Context, svc *services.Services, prices services.PriceFormatter) Model {
	m := Model{
		ctx:      ctx,
		svc:      svc,
		prices:   prices,
		styles:   NewStyles(),
		username: newInput("username", false),
		password: newInput("password", true),
		search:   newInput("Search stocks by symbol or company name", false),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		page:     pageLogin,
	}
	m.spinner.Style = m.styles.Spinner
	m.search.Width = 48
	m.watchTable = newTable([]table.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Company Name", Width: 32},
		{Title: "Current Price", Width: 16},
	})
	m.resultTable = newTable([]table.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Company Name", Width: 32},
		{Title: "Current Price", Width: 16},
	})

	if user, ok := svc.Auth.Current(ctx); ok {
		m.user = user
		m.page = pageWatchlist
		m.loading = "Loading watchlist"
	} else {
		m.username.Focus()
	}
	return m
}

func newInput(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 64
	ti.Width = 32
	ti.Cursor.SetMode(cursor.CursorStatic)
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func newTable(cols []table.Column) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Border).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Background(Info).
		Bold(false)
	t.SetStyles(s)
	return t
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.page == pageWatchlist {
		return tea.Batch(m.spinner.Tick, loadWatchlistCmd(m.ctx, m.svc))
	}
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - 14
		if h < 5 {
			h = 5
		}
		m.watchTable.SetHeight(h)
		m.resultTable.SetHeight(h)
		return m, nil

	case spinner.TickMsg:
		if m.loading == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case watchlistLoadedMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Failed to load the watchlist", services.ErrorText(msg.err))
			return m, nil
		}
		m.rows = msg.rows
		m.syncWatchTable()
		return m, nil

	case removedMsg:
		m.loading = ""
		switch {
		case msg.err == nil:
			m.rows = msg.rows
			m.syncWatchTable()
			m.dialog = successDialog(services.RemovedMessage(msg.symbol))
		case errors.Is(msg.err, services.ErrNotLoggedIn):
			m.dialog = errorDialog("Not Logged In", "You must be logged in to remove stocks from your watchlist.")
		case errors.Is(msg.err, services.ErrLocalWrite):
			m.rows = msg.rows
			m.syncWatchTable()
			m.dialog = errorDialog("Watchlist not saved locally", msg.err.Error())
		default:
			m.dialog = errorDialog("Failed to delete the stock", services.ErrorText(msg.err))
		}
		return m, nil

	case searchDoneMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Search failed", services.ErrorText(msg.err))
			return m, nil
		}
		m.lastQuery = msg.text
		m.results = msg.rows
		m.syncResultTable()
		m.resultTable.SetCursor(0)
		m.page = pageSearch
		return m, nil

	case priceResolvedMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Failed to fetch the price", services.ErrorText(msg.err))
			return m, nil
		}
		m.results = services.WithPrice(m.results, msg.stock)
		m.syncResultTable()
		return m, nil

	case addedMsg:
		m.loading = ""
		switch {
		case msg.err == nil && msg.added:
			m.dialog = successDialog(services.AddedMessage(msg.symbol))
		case msg.err == nil:
			m.dialog = successDialog(services.AlreadyWatchedMessage(msg.symbol))
		case errors.Is(msg.err, services.ErrNotLoggedIn):
			m.dialog = errorDialog("Not Logged In", "You must be logged in to add stocks to your watchlist.")
		case errors.Is(msg.err, services.ErrLocalWrite):
			// The server holds the symbol; only the session lags.
			m.dialog = errorDialog("Watchlist not saved locally", msg.err.Error())
		default:
			m.dialog = errorDialog("Failed to add the stock", services.ErrorText(msg.err))
		}
		return m, nil

	case loggedInMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Login failed", services.LoginErrorText(msg.err))
			return m, nil
		}
		m.user = msg.user
		m.resetForm()
		m.notice = "Login successful!"
		m.page = pageWatchlist
		m.loading = "Loading watchlist"
		return m, tea.Batch(m.spinner.Tick, loadWatchlistCmd(m.ctx, m.svc))

	case registeredMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Registration failed!", services.ErrorText(msg.err))
			return m, nil
		}
		m.resetForm()
		m.username.SetValue(msg.username)
		m.formFocus = 1
		m.focusForm()
		m.notice = "Registration successful!"
		m.page = pageLogin
		return m, nil

	case loggedOutMsg:
		m.loading = ""
		if msg.err != nil {
			m.dialog = errorDialog("Logout failed", msg.err.Error())
			return m, nil
		}
		m.user = nil
		m.rows, m.results = nil, nil
		m.syncWatchTable()
		m.syncResultTable()
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.resetForm()
		m.notice = "Logged out."
		m.page = pageLogin
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.dialog != nil {
		closed, cmd := m.dialog.handleKey(msg)
		if closed {
			m.dialog = nil
		}
		if cmd != nil {
			m.loading = "Working"
			return m, tea.Batch(m.spinner.Tick, cmd)
		}
		return m, nil
	}
	if m.loading != "" {
		return m, nil
	}
	m.notice = ""
	switch m.page {
	case pageLogin, pageRegister:
		return m.updateForm(msg)
	case pageWatchlist, pageSearch:
		if m.searching {
			return m.updateSearchBox(msg)
		}
		if m.page == pageWatchlist {
			return m.updateWatchlist(msg)
		}
		return m.updateResults(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.formFocus = 1 - m.formFocus
		m.focusForm()
		return m, nil
	case "ctrl+r":
		if m.page == pageLogin {
			m.resetForm()
			m.page = pageRegister
		}
		return m, nil
	case "esc":
		if m.page == pageRegister {
			m.resetForm()
			m.page = pageLogin
		}
		return m, nil
	case "enter":
		creds := models.Credentials{Username: m.username.Value(), Password: m.password.Value()}
		if m.page == pageRegister {
			m.loading = "Registering"
			return m, tea.Batch(m.spinner.Tick, registerCmd(m.ctx, m.svc, creds))
		}
		m.loading = "Logging in"
		return m, tea.Batch(m.spinner.Tick, loginCmd(m.ctx, m.svc, creds))
	}

	var cmd tea.Cmd
	if m.formFocus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateSearchBox(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.search.Value())
		if text == "" {
			// The search button is disabled while the box is blank.
			return m, nil
		}
		m.searching = false
		m.search.Blur()
		m.loading = "Searching"
		return m, tea.Batch(m.spinner.Tick, searchCmd(m.ctx, m.svc, text))
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateWatchlist(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "ctrl+l":
		m.loading = "Logging out"
		return m, tea.Batch(m.spinner.Tick, logoutCmd(m.ctx, m.svc))
	case "r":
		m.loading = "Loading watchlist"
		return m, tea.Batch(m.spinner.Tick, loadWatchlistCmd(m.ctx, m.svc))
	case "enter", "d", "delete":
		stock, ok := selected(m.rows, m.watchTable.Cursor())
		if !ok {
			return m, nil
		}
		rows := append([]models.Stock(nil), m.rows...)
		m.dialog = confirmDialog("Delete from Watchlist",
			fmt.Sprintf("Do you want to delete %s from your watchlist?", stock.Symbol),
			removeCmd(m.ctx, m.svc, rows, stock.Symbol))
		return m, nil
	}
	var cmd tea.Cmd
	m.watchTable, cmd = m.watchTable.Update(msg)
	return m, cmd
}

func (m Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "esc":
		m.page = pageWatchlist
		m.loading = "Loading watchlist"
		return m, tea.Batch(m.spinner.Tick, loadWatchlistCmd(m.ctx, m.svc))
	case "ctrl+l":
		m.loading = "Logging out"
		return m, tea.Batch(m.spinner.Tick, logoutCmd(m.ctx, m.svc))
	case "s":
		stock, ok := selected(m.results, m.resultTable.Cursor())
		if !ok || stock.HasPrice() {
			return m, nil
		}
		m.loading = "Fetching price"
		return m, tea.Batch(m.spinner.Tick, priceCmd(m.ctx, m.svc, stock.Symbol))
	case "enter":
		stock, ok := selected(m.results, m.resultTable.Cursor())
		if !ok {
			return m, nil
		}
		m.dialog = confirmDialog("Add to Watchlist",
			fmt.Sprintf("Do you want to add %s to your watchlist?", stock.Symbol),
			addCmd(m.ctx, m.svc, stock.Symbol))
		return m, nil
	}
	var cmd tea.Cmd
	m.resultTable, cmd = m.resultTable.Update(msg)
	return m, cmd
}

func selected(rows []models.Stock, idx int) (models.Stock, bool) {
	if idx < 0 || idx >= len(rows) {
		return models.Stock{}, false
	}
	return rows[idx], true
}

func (m *Model) focusForm() {
	if m.formFocus == 0 {
		m.username.Focus()
		m.password.Blur()
		return
	}
	m.username.Blur()
	m.password.Focus()
}

func (m *Model) resetForm() {
	m.username.SetValue("")
	m.password.SetValue("")
	m.formFocus = 0
	m.focusForm()
}

func (m *Model) syncWatchTable() {
	rows := make([]table.Row, 0, len(m.rows))
	for _, s := range m.rows {
		rows = append(rows, table.Row{s.Symbol, s.CompanyName, m.prices.Format(s.CurrentPrice)})
	}
	if m.watchTable.Cursor() >= len(rows) {
		m.watchTable.SetCursor(len(rows) - 1)
	}
	m.watchTable.SetRows(rows)
}

func (m *Model) syncResultTable() {
	rows := make([]table.Row, 0, len(m.results))
	for _, s := range m.results {
		price := ShowPriceLabel
		if s.HasPrice() {
			price = m.prices.Format(s.CurrentPrice)
		}
		rows = append(rows, table.Row{s.Symbol, s.CompanyName, price})
	}
	if m.resultTable.Cursor() >= len(rows) {
		m.resultTable.SetCursor(len(rows) - 1)
	}
	m.resultTable.SetRows(rows)
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	header := "Stock Watchlist"
	if m.user != nil {
		header += "  ·  " + m.user.Username
	}
	sb.WriteString(m.styles.Header.Render(header))
	sb.WriteString("\n\n")

	switch m.page {
	case pageLogin:
		sb.WriteString(m.formView("Login"))
	case pageRegister:
		sb.WriteString(m.formView("Register"))
	case pageWatchlist:
		sb.WriteString(m.searchBoxView())
		sb.WriteString("\n\n")
		if len(m.rows) == 0 && m.loading == "" {
			sb.WriteString(m.styles.Muted.Render("Your watchlist is empty. Press / to search for stocks."))
		} else {
			sb.WriteString(m.watchTable.View())
		}
	case pageSearch:
		sb.WriteString(m.searchBoxView())
		sb.WriteString("\n\n")
		sb.WriteString(m.styles.Title.Render(fmt.Sprintf("Results for %q", m.lastQuery)))
		sb.WriteString("\n")
		if len(m.results) == 0 {
			sb.WriteString(m.styles.Muted.Render("No stocks found."))
		} else {
			sb.WriteString(m.resultTable.View())
		}
	}

	if m.loading != "" {
		sb.WriteString("\n\n")
		sb.WriteString(m.spinner.View() + " " + m.loading + "...")
	}
	if m.notice != "" {
		sb.WriteString("\n\n")
		sb.WriteString(m.styles.Success.Render(m.notice))
	}
	if m.dialog != nil {
		sb.WriteString("\n")
		sb.WriteString(m.dialog.view(m.styles))
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Help.Render(m.helpText()))
	return sb.String()
}

func (m Model) formView(title string) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(title))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Label.Render("Username") + m.username.View())
	sb.WriteString("\n")
	sb.WriteString(m.styles.Label.Render("Password") + m.password.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Button.Render(title))
	return sb.String()
}

func (m Model) searchBoxView() string {
	button := m.styles.Button.Render("Search")
	if strings.TrimSpace(m.search.Value()) == "" {
		button = m.styles.Disabled.Render("Search")
	}
	box := m.search.View()
	if m.searching {
		box = m.styles.Focused.Render("> ") + box
	} else {
		box = "  " + box
	}
	return box + "  " + button
}

func (m Model) helpText() string {
	switch {
	case m.dialog != nil:
		return ""
	case m.page == pageLogin:
		return "tab: switch field • enter: login • ctrl+r: register • ctrl+c: quit"
	case m.page == pageRegister:
		return "tab: switch field • enter: register • esc: back to login • ctrl+c: quit"
	case m.searching:
		return "enter: search • esc: cancel"
	case m.page == pageWatchlist:
		return "/: search • enter: delete • r: refresh • ctrl+l: logout • ctrl+c: quit"
	default:
		return "s: show price • enter: add • /: search • esc: back • ctrl+l: logout • ctrl+c: quit"
	}
}
