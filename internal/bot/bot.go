// Package bot is the conversational transport. It dispatches Telegram
// updates, renders entitlement decisions into screens and keyboards, and
// carries no entitlement logic of its own.
package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/instatrack/instatrack/internal/entitlement"
	"github.com/instatrack/instatrack/internal/models"
	"github.com/instatrack/instatrack/pkg/logger"
)

type Bot struct {
	logger *logger.Logger
	bot    *bot.Bot

	repo        models.Repository
	entitlement *entitlement.Service
	provider    models.StatsProvider
	// paywallURL is the gateway checkout page tariff buttons link to.
	paywallURL string

	// pendingInput tracks users who were asked to type an account name.
	mu           sync.Mutex
	pendingInput map[int64]bool
}

func New(
	token string,
	repo models.Repository,
	entitlement *entitlement.Service,
	provider models.StatsProvider,
	paywallURL string,
	logger *logger.Logger,
) (*Bot, error) {
	b := &Bot{
		logger:       logger,
		repo:         repo,
		entitlement:  entitlement,
		provider:     provider,
		paywallURL:   paywallURL,
		pendingInput: make(map[int64]bool),
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
	}
	tg, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	b.bot = tg

	tg.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.handleStart)
	tg.RegisterHandler(bot.HandlerTypeCallbackQueryData, "menu:", bot.MatchTypePrefix, b.handleMenu)
	tg.RegisterHandler(bot.HandlerTypeCallbackQueryData, "track:", bot.MatchTypePrefix, b.handleTracking)

	return b, nil
}

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting Telegram bot")
	b.bot.Start(ctx)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup tgModels.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}
	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		b.logger.Error("Failed to send message: ", err)
	}
}

func (b *Bot) answer(ctx context.Context, query *tgModels.CallbackQuery) {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	})
	if err != nil {
		b.logger.Error("Failed to answer callback query: ", err)
	}
}

func (b *Bot) setPendingInput(userID int64, pending bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pending {
		b.pendingInput[userID] = true
	} else {
		delete(b.pendingInput, userID)
	}
}

func (b *Bot) hasPendingInput(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingInput[userID]
}

// callbackParts splits "track:claim:username" style callback data.
func callbackParts(data string) []string {
	return strings.Split(data, ":")
}
