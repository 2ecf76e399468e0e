package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eatmoreapple/openwechat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckfunc/stockwatch/internal/api"
	"github.com/luckfunc/stockwatch/internal/models"
	"github.com/luckfunc/stockwatch/internal/services"
	"github.com/luckfunc/stockwatch/internal/session"
	"github.com/luckfunc/stockwatch/internal/stubserver"
)

type fakeRenderer struct {
	rows []models.Stock
	err  error
}

func (f *fakeRenderer) PNG(ctx context.Context, title string, rows []models.Stock, at time.Time) ([]byte, error) {
	f.rows = rows
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png"), nil
}

type fakeReplier struct {
	texts    []string
	images   int
	imageErr error
}

func (f *fakeReplier) ReplyText(content string) (*openwechat.SentMessage, error) {
	f.texts = append(f.texts, content)
	return nil, nil
}

func (f *fakeReplier) ReplyImage(file io.Reader) (*openwechat.SentMessage, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	f.images++
	return nil, nil
}

func newHandler(t *testing.T, renderer Renderer) (*Handler, *stubserver.Server, *services.Services) {
	t.Helper()
	stub := stubserver.New()
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)
	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)
	svc := services.New(client, session.New(session.NewMemoryStorage(), nil), nil)
	h := New(svc, services.NewPriceFormatter("en-US"), renderer, "watch", nil)
	h.now = func() time.Time { return time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC) }
	return h, stub, svc
}

func login(t *testing.T, stub *stubserver.Server, svc *services.Services, watchlist ...string) models.UserID {
	t.Helper()
	id, err := stub.Seed("ann", "pw", watchlist...)
	require.NoError(t, err)
	_, err = svc.Auth.Login(context.Background(), models.Credentials{Username: "ann", Password: "pw"})
	require.NoError(t, err)
	return id
}

func TestDispatch_IgnoresOtherMessages(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	for _, content := range []string{"", "hello", "watchlist", "please watch list"} {
		_, ok := h.Dispatch(context.Background(), content)
		assert.False(t, ok, content)
	}
}

func TestDispatch_Help(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	for _, content := range []string{"watch", "WATCH help", "watch what"} {
		reply, ok := h.Dispatch(context.Background(), content)
		require.True(t, ok)
		assert.Contains(t, reply.Text, "watch add AAPL MSFT")
	}
}

func TestDispatch_ListRequiresSession(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	reply, _ := h.Dispatch(context.Background(), "watch list")
	assert.Contains(t, reply.Text, "Not logged in")
}

func TestDispatch_List(t *testing.T) {
	h, stub, svc := newHandler(t, nil)
	login(t, stub, svc, "AAPL", "MSFT")

	reply, _ := h.Dispatch(context.Background(), "watch list")
	assert.True(t, strings.HasPrefix(reply.Text, "Watchlist (2)"))
	assert.Contains(t, reply.Text, "Apple Inc.")
	assert.Contains(t, reply.Text, "300.00")
}

func TestDispatch_SearchAndPrice(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	ctx := context.Background()

	reply, _ := h.Dispatch(ctx, "watch search")
	assert.Contains(t, reply.Text, "Search failed")

	reply, _ = h.Dispatch(ctx, "watch search apple")
	assert.Contains(t, reply.Text, "AAPL")
	assert.Contains(t, reply.Text, services.NoPrice)

	reply, _ = h.Dispatch(ctx, "watch search zzzz")
	assert.Contains(t, reply.Text, "No stocks found")

	reply, _ = h.Dispatch(ctx, "watch price aapl")
	assert.Equal(t, "Apple Inc. (AAPL)\nCurrent price: 150.00", reply.Text)

	reply, _ = h.Dispatch(ctx, "watch price NOPE")
	assert.Contains(t, reply.Text, "Failed to fetch the price")
}

func TestDispatch_AddRemove(t *testing.T) {
	h, stub, svc := newHandler(t, nil)
	id := login(t, stub, svc, "AAPL")
	ctx := context.Background()

	reply, _ := h.Dispatch(ctx, "watch add aapl, msft")
	assert.Equal(t, "Added: MSFT\nAlready on the watchlist: AAPL", reply.Text)
	assert.Equal(t, []string{"AAPL", "MSFT"}, stub.Watchlist(id))

	reply, _ = h.Dispatch(ctx, "watch remove MSFT TSLA")
	assert.Equal(t, "Deleted: MSFT\nNot on the watchlist: TSLA", reply.Text)
	assert.Equal(t, []string{"AAPL"}, stub.Watchlist(id))

	stub.Fail(stubserver.OpRemove, http.StatusInternalServerError)
	reply, _ = h.Dispatch(ctx, "watch delete AAPL")
	assert.Contains(t, reply.Text, "Failed to delete the stock")
	assert.Equal(t, []string{"AAPL"}, stub.Watchlist(id))

	reply, _ = h.Dispatch(ctx, "watch add")
	assert.Contains(t, reply.Text, "Usage")
}

func TestDispatch_AddWithoutSession(t *testing.T) {
	h, _, _ := newHandler(t, nil)
	reply, _ := h.Dispatch(context.Background(), "watch add AAPL")
	assert.Contains(t, reply.Text, services.ErrorText(services.ErrNotLoggedIn))
}

func TestDispatch_Snapshot(t *testing.T) {
	renderer := &fakeRenderer{}
	h, stub, svc := newHandler(t, renderer)
	login(t, stub, svc, "AAPL")

	reply, _ := h.Dispatch(context.Background(), "watch snapshot")
	assert.Equal(t, []byte("png"), reply.Image)
	assert.Contains(t, reply.Text, "Updated 15:04:05")
	assert.Equal(t, []string{"AAPL"}, models.Symbols(renderer.rows))

	renderer.err = errors.New("no chrome")
	reply, _ = h.Dispatch(context.Background(), "watch snapshot")
	assert.Nil(t, reply.Image)
	assert.True(t, strings.HasPrefix(reply.Text, "Snapshot failed: no chrome"))
	assert.Contains(t, reply.Text, "Apple Inc.")
}

func TestSend_FallsBackToText(t *testing.T) {
	r := &fakeReplier{}
	require.NoError(t, send(r, Reply{Image: []byte("png"), Text: "table"}))
	assert.Equal(t, 1, r.images)
	assert.Empty(t, r.texts)

	r = &fakeReplier{imageErr: errors.New("upload failed")}
	require.NoError(t, send(r, Reply{Image: []byte("png"), Text: "table"}))
	assert.Equal(t, []string{"table"}, r.texts)

	r = &fakeReplier{}
	require.NoError(t, send(r, Reply{Text: "hi"}))
	assert.Equal(t, []string{"hi"}, r.texts)
}

func TestAnswer_UsesCallerContext(t *testing.T) {
	h, stub, svc := newHandler(t, nil)
	login(t, stub, svc, "AAPL")

	r := &fakeReplier{}
	h.answer(context.Background(), r, "watch list")
	require.Len(t, r.texts, 1)
	assert.Contains(t, r.texts[0], "Apple Inc.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = &fakeReplier{}
	h.answer(ctx, r, "watch list")
	require.Len(t, r.texts, 1)
	assert.Contains(t, r.texts[0], "Cannot reach the server")

	r = &fakeReplier{}
	h.answer(ctx, r, "hello")
	assert.Empty(t, r.texts)
}
