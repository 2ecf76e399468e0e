package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/luckfunc/stockwatch/internal/models"
)

type watchlistRowView struct {
	Symbol string
	Name   string
	Price  string
	Class  string
}

type watchlistView struct {
	Title     string
	Timestamp string
	Rows      []watchlistRowView
}

// Snapshot renders a watchlist table to HTML and, through headless Chrome,
// to PNG.
type Snapshot struct {
	Width   int
	Timeout time.Duration
	Prices  PriceFormatter
}

var watchlistPage = template.Must(template.New("watchlist").Parse(watchlistHTMLTemplate))

// HTML renders rows under title.
func (s Snapshot) HTML(title string, rows []models.Stock, at time.Time) (string, error) {
	view := watchlistView{
		Title:     title,
		Timestamp: at.Format("2006-01-02 15:04:05"),
		Rows:      s.buildRowViews(rows),
	}
	var builder strings.Builder
	if err := watchlistPage.Execute(&builder, view); err != nil {
		return "", err
	}
	return builder.String(), nil
}

// PNG renders rows to an image. It needs a Chrome binary on the host.
func (s Snapshot) PNG(ctx context.Context, title string, rows []models.Stock, at time.Time) ([]byte, error) {
	html, err := s.HTML(title, rows, at)
	if err != nil {
		return nil, err
	}
	width := s.Width
	if width <= 0 {
		width = defaultSnapshotWidth
	}

	browser, cancel := chromedp.NewContext(ctx)
	defer cancel()
	if s.Timeout > 0 {
		browser, cancel = context.WithTimeout(browser, s.Timeout)
		defer cancel()
	}
	var shot []byte
	if err := chromedp.Run(browser, screenshot(html, width, snapshotLayout.height(len(rows)), &shot)); err != nil {
		return nil, fmt.Errorf("render snapshot: %w", err)
	}
	return shot, nil
}

const defaultSnapshotWidth = 1280

// pageLayout sizes the viewport: fixed chrome (padding, title, table header,
// footer) plus one band per row. An empty table still shows one row.
type pageLayout struct {
	chrome int64
	row    int64
}

var snapshotLayout = pageLayout{chrome: 80 + 42 + 44 + 28 + 2*18, row: 48}

func (l pageLayout) height(rows int) int64 {
	return l.chrome + int64(max(rows, 1))*l.row
}

// screenshot loads html from a data URL and captures the whole page once the
// footer is visible.
func screenshot(html string, width int, height int64, out *[]byte) chromedp.Tasks {
	page := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
	return chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), height),
		chromedp.Navigate(page),
		chromedp.WaitVisible("div.footer", chromedp.ByQuery),
		chromedp.FullScreenshot(out, 100),
	}
}

func (s Snapshot) buildRowViews(stocks []models.Stock) []watchlistRowView {
	out := make([]watchlistRowView, 0, len(stocks))
	for _, stock := range stocks {
		class := "num"
		if !stock.HasPrice() {
			class = "num pending"
		}
		out = append(out, watchlistRowView{
			Symbol: stock.Symbol,
			Name:   stock.CompanyName,
			Price:  s.Prices.Format(stock.CurrentPrice),
			Class:  class,
		})
	}
	return out
}

const watchlistHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <style>
    :root {
      --bg: #ffffff;
      --text: #1f1f1f;
      --muted: #6f6f6f;
      --line: #f0f0f0;
      --header: #f7f7f7;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      background: var(--bg);
      font-family: "Inter", "Helvetica Neue", Arial, sans-serif;
      color: var(--text);
    }
    .container { width: 1200px; padding: 32px 40px 36px 40px; }
    .title { font-size: 30px; font-weight: 600; margin-bottom: 18px; }
    .table { width: 100%; border-collapse: collapse; font-size: 18px; }
    .table thead th {
      background: var(--header);
      color: var(--muted);
      font-weight: 500;
      padding: 12px;
      text-align: left;
      border-bottom: 1px solid var(--line);
    }
    .table tbody td { padding: 14px 12px; border-bottom: 1px solid var(--line); }
    .table tbody tr:nth-child(even) td { background: #fbfbfb; }
    .num { text-align: right; font-variant-numeric: tabular-nums; }
    .pending { color: var(--muted); }
    .footer { margin-top: 12px; font-size: 14px; color: var(--muted); }
  </style>
</head>
<body>
  <div class="container">
    <div class="title">{{.Title}}</div>
    <table class="table">
      <thead>
        <tr>
          <th style="width: 160px;">Symbol</th>
          <th>Company Name</th>
          <th class="num" style="width: 200px;">Current Price</th>
        </tr>
      </thead>
      <tbody>
        {{if .Rows}}
          {{range .Rows}}
            <tr>
              <td>{{.Symbol}}</td>
              <td>{{.Name}}</td>
              <td class="{{.Class}}">{{.Price}}</td>
            </tr>
          {{end}}
        {{else}}
          <tr>
            <td colspan="3" style="color: var(--muted);">No stocks to show.</td>
          </tr>
        {{end}}
      </tbody>
    </table>
    <div class="footer">Updated {{.Timestamp}}</div>
  </div>
</body>
</html>`
