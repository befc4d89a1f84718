package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/hanziwordle/hanziwordle/pkg/config"
)

// HelpText answers /start and /help.
const HelpText = "Search Chinese words by length, pinyin and characters. ? matches anything.\n\n" +
	SearchUsage + "\n  e.g. /s 3 ni3 hao3 ?\n  e.g. /s 4 ? ? ? 人\n\n" +
	FuzzyUsage + "\n  e.g. /f ma $ 2"

// Searcher is implemented by Service.
type Searcher interface {
	Search(ctx context.Context, tokens []string) string
	Fuzzy(ctx context.Context, tokens []string) string
}

// Bot connects a Searcher to Telegram.
type Bot struct {
	tb     *tele.Bot
	svc    Searcher
	logger *zap.Logger
	// timeout bounds the store work of a single command.
	timeout time.Duration
}

// New creates the Telegram client and registers the command handlers.
// offline skips the getMe round trip; it is meant for tests.
func New(cfg config.TelegramConfig, svc Searcher, logger *zap.Logger, offline bool) (*Bot, error) {
	if cfg.Token == "" && !offline {
		return nil, errors.New("telegram token is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{svc: svc, logger: logger.Named("telegram"), timeout: 30 * time.Second}

	tb, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		Offline: offline,
		OnError: b.onError,
	})
	if err != nil {
		return nil, err
	}
	b.tb = tb
	b.register()
	return b, nil
}

func (b *Bot) register() {
	b.tb.Handle("/start", b.handleHelp)
	b.tb.Handle("/help", b.handleHelp)
	b.tb.Handle("/search", b.handleSearch)
	b.tb.Handle("/s", b.handleSearch)
	b.tb.Handle("/fuzzy", b.handleFuzzy)
	b.tb.Handle("/f", b.handleFuzzy)
}

func (b *Bot) onError(err error, c tele.Context) {
	fields := []zap.Field{zap.Error(err)}
	if c != nil && c.Sender() != nil {
		fields = append(fields, zap.Int64("user", c.Sender().ID))
	}
	b.logger.Error("handler failed", fields...)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(HelpText)
}

func (b *Bot) handleSearch(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return c.Reply(b.svc.Search(ctx, c.Args()))
}

func (b *Bot) handleFuzzy(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return c.Reply(b.svc.Fuzzy(ctx, c.Args()))
}

// Run polls Telegram until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.tb.Stop()
	}()
	b.logger.Info("polling for updates", zap.String("bot", b.tb.Me.Username))
	b.tb.Start()
}
