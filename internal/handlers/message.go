package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eatmoreapple/openwechat"
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
)

// Renderer turns watchlist rows into an image.
type Renderer interface {
	PNG(ctx context.Context, title string, rows []models.Stock, at time.Time) ([]byte, error)
}

// Reply is what a command answers with. Image, when set, is tried first and
// Text is the fallback.
type Reply struct {
	Text  string
	Image []byte
}

// Handler answers watchlist commands posted in group chats.
type Handler struct {
	svc      *services.Services
	prices   services.PriceFormatter
	renderer Renderer
	prefix   string
	log      *zap.Logger
	now      func() time.Time
}

func New(svc *services.Services, prices services.PriceFormatter, renderer Renderer, prefix string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		prices:   prices,
		renderer: renderer,
		prefix:   strings.ToLower(prefix),
		log:      log.Named("handlers"),
		now:      time.Now,
	}
}

// GroupMessages returns the openwechat message callback. Gateway calls made
// while answering run under ctx and stop when it is cancelled.
func (h *Handler) GroupMessages(ctx context.Context) openwechat.MessageHandler {
	return func(msg *openwechat.Message) {
		if !msg.IsSendByGroup() || !msg.IsText() {
			return
		}
		h.answer(ctx, msg, msg.Content)
	}
}

func (h *Handler) answer(ctx context.Context, r replier, content string) {
	reply, ok := h.Dispatch(ctx, content)
	if !ok {
		return
	}
	if err := send(r, reply); err != nil {
		h.log.Warn("reply failed", zap.Error(err))
	}
}

type replier interface {
	ReplyText(content string) (*openwechat.SentMessage, error)
	ReplyImage(file io.Reader) (*openwechat.SentMessage, error)
}

func send(r replier, reply Reply) error {
	if len(reply.Image) > 0 {
		if _, err := r.ReplyImage(bytes.NewReader(reply.Image)); err == nil {
			return nil
		}
	}
	_, err := r.ReplyText(reply.Text)
	return err
}

// Dispatch parses content and runs the command. It reports false when
// content is not addressed to the bot.
func (h *Handler) Dispatch(ctx context.Context, content string) (Reply, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || strings.ToLower(fields[0]) != h.prefix {
		return Reply{}, false
	}
	if len(fields) == 1 {
		return Reply{Text: h.help()}, true
	}
	args := strings.TrimSpace(strings.Join(fields[2:], " "))

	switch strings.ToLower(fields[1]) {
	case "list":
		return h.list(ctx), true
	case "search":
		return h.search(ctx, args), true
	case "price":
		return h.price(ctx, args), true
	case "add":
		return h.add(ctx, args), true
	case "remove", "delete":
		return h.remove(ctx, args), true
	case "snapshot":
		return h.snapshot(ctx), true
	default:
		return Reply{Text: h.help()}, true
	}
}

func (h *Handler) loadRows(ctx context.Context) ([]models.Stock, string, bool) {
	if _, ok := h.svc.Auth.Current(ctx); !ok {
		return nil, "Not logged in. Run `stockwatch login` on the bot host first.", false
	}
	rows, err := h.svc.Watchlist.Load(ctx)
	if err != nil {
		return nil, "Failed to load the watchlist: " + services.ErrorText(err), false
	}
	return rows, "", true
}

func (h *Handler) list(ctx context.Context) Reply {
	rows, msg, ok := h.loadRows(ctx)
	if !ok {
		return Reply{Text: msg}
	}
	return Reply{Text: fmt.Sprintf("Watchlist (%d)\n%s", len(rows), services.FormatTable(rows, h.prices))}
}

func (h *Handler) search(ctx context.Context, text string) Reply {
	rows, err := h.svc.Search.Search(ctx, text)
	if err != nil {
		return Reply{Text: "Search failed: " + services.ErrorText(err)}
	}
	if len(rows) == 0 {
		return Reply{Text: fmt.Sprintf("No stocks found for %q", text)}
	}
	return Reply{Text: services.FormatTable(rows, h.prices)}
}

func (h *Handler) price(ctx context.Context, args string) Reply {
	symbols := services.ParseSymbols(args)
	if len(symbols) == 0 {
		return Reply{Text: fmt.Sprintf("Usage: %s price AAPL", h.prefix)}
	}
	stock, err := h.svc.Search.ResolvePrice(ctx, symbols[0])
	if err != nil {
		return Reply{Text: "Failed to fetch the price: " + services.ErrorText(err)}
	}
	return Reply{Text: services.FormatStock(stock, h.prices)}
}

func (h *Handler) add(ctx context.Context, args string) Reply {
	symbols := services.ParseSymbols(args)
	if len(symbols) == 0 {
		return Reply{Text: fmt.Sprintf("Usage: %s add AAPL / %s add AAPL MSFT", h.prefix, h.prefix)}
	}
	added, existed, err := h.svc.Watchlist.AddMany(ctx, symbols)
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "Added: "+strings.Join(added, ", "))
	}
	if len(existed) > 0 {
		parts = append(parts, "Already on the watchlist: "+strings.Join(existed, ", "))
	}
	if err != nil {
		parts = append(parts, "Failed to add the stock: "+services.ErrorText(err))
	}
	return Reply{Text: strings.Join(parts, "\n")}
}

func (h *Handler) remove(ctx context.Context, args string) Reply {
	symbols := services.ParseSymbols(args)
	if len(symbols) == 0 {
		return Reply{Text: fmt.Sprintf("Usage: %s remove AAPL / %s remove AAPL MSFT", h.prefix, h.prefix)}
	}
	removed, missed, err := h.svc.Watchlist.RemoveMany(ctx, symbols)
	var parts []string
	if len(removed) > 0 {
		parts = append(parts, "Deleted: "+strings.Join(removed, ", "))
	}
	if len(missed) > 0 {
		parts = append(parts, "Not on the watchlist: "+strings.Join(missed, ", "))
	}
	if err != nil {
		parts = append(parts, "Failed to delete the stock: "+services.ErrorText(err))
	}
	return Reply{Text: strings.Join(parts, "\n")}
}

func (h *Handler) snapshot(ctx context.Context) Reply {
	rows, msg, ok := h.loadRows(ctx)
	if !ok {
		return Reply{Text: msg}
	}
	now := h.now()
	text := fmt.Sprintf("Watchlist\n%s\nUpdated %s", services.FormatTable(rows, h.prices), now.Format("15:04:05"))
	if h.renderer == nil {
		return Reply{Text: text}
	}
	image, err := h.renderer.PNG(ctx, "Watchlist", rows, now)
	if err != nil {
		h.log.Warn("snapshot render failed", zap.Error(err))
		return Reply{Text: fmt.Sprintf("Snapshot failed: %v\n%s", err, text)}
	}
	return Reply{Image: image, Text: text}
}

func (h *Handler) help() string {
	p := h.prefix
	return "Watchlist commands:\n" +
		"1) List: " + p + " list\n" +
		"2) Search: " + p + " search apple\n" +
		"3) Price: " + p + " price AAPL\n" +
		"4) Add: " + p + " add AAPL MSFT\n" +
		"5) Remove: " + p + " remove AAPL\n" +
		"6) Snapshot: " + p + " snapshot\n" +
		"7) Help: " + p + " help"
}
