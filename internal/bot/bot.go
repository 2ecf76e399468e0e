package bot

import (
	"context"
	"fmt"

	"github.com/eatmoreapple/openwechat"
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/handlers"
)

// Run logs the bot in, reusing the hot-reload file when it holds a live
// login, and serves group messages until ctx is done or the bot exits.
func Run(ctx context.Context, hotReloadFile string, handler *handlers.Handler, log *zap.Logger) error {
	bot := openwechat.DefaultBot(openwechat.Desktop)

	// Register QR code callback
	bot.UUIDCallback = openwechat.PrintlnQrcodeUrl

	reloadStorage := openwechat.NewFileHotReloadStorage(hotReloadFile)
	defer reloadStorage.Close()

	if err := bot.HotLogin(reloadStorage, openwechat.NewRetryLoginOption()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	self, err := bot.GetCurrentUser()
	if err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	log.Info("bot logged in", zap.String("nickname", self.NickName))

	bot.MessageHandler = handler.GroupMessages(ctx)

	done := make(chan struct{})
	defer close(done)
	go exitOnCancel(ctx, done, bot.Exit)

	// Block until exit
	return bot.Block()
}

// exitOnCancel calls exit when ctx ends first. It returns once done is
// closed, so a bot that stops by itself leaves nothing behind.
func exitOnCancel(ctx context.Context, done <-chan struct{}, exit func()) {
	select {
	case <-ctx.Done():
		exit()
	case <-done:
	}
}
