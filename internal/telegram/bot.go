// Package telegram is the chat front end: it turns Bot API updates into
// prompts, quality selections and runs, and delivers results back.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/datallboy/goytbot/internal/app"
	"github.com/datallboy/goytbot/internal/delivery"
	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/config"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/quality"
	"github.com/datallboy/goytbot/internal/rendezvous"
)

// sender is the part of *tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Runner executes downloads for a conversation.
type Runner interface {
	RunSingle(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error)
	RunPlaylist(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error)
	CancelConversation(key string) bool
	Busy(key string) bool
}

type Bot struct {
	api *tgbotapi.BotAPI
	out sender

	cfg           config.TelegramConfig
	promptTimeout time.Duration

	access  app.AccessList
	quality *quality.Coordinator
	runner  Runner

	// replies pairs "send me the URL" prompts with the next text message
	replies *rendezvous.Table[string, string]

	defaultImage string
	fetchImage   func(ctx context.Context, url string) ([]byte, error)

	wg  sync.WaitGroup
	log *logger.Logger
}

// New connects to the Bot API with the configured token.
func New(a *app.Context, runner Runner) (*Bot, error) {
	log := a.Logger.With("telegram")
	if err := tgbotapi.SetLogger(log); err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(a.Config.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login failed: %w", err)
	}
	api.Debug = a.Config.Telegram.Debug

	b := newBot(api, a, runner)
	b.api = api
	b.log.Info("authorized as @%s", api.Self.UserName)
	return b, nil
}

func newBot(out sender, a *app.Context, runner Runner) *Bot {
	return &Bot{
		out:           out,
		cfg:           a.Config.Telegram,
		promptTimeout: a.Config.Prompt.Timeout,
		access:        a.Access,
		quality:       a.Quality,
		runner:        runner,
		replies:       rendezvous.New[string, string](),
		defaultImage:  config.DefaultStartImage,
		fetchImage:    fetchImage,
		log:           a.Logger.With("telegram"),
	}
}

// Run long-polls for updates until ctx is cancelled. Every update is
// handled on its own goroutine so a handler waiting for a reply does not
// block the reply itself.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic handling update %d: %v", update.UpdateID, r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if !msg.IsCommand() {
		b.handleText(msg)
		return
	}

	b.log.Debug("command /%s from %d in chat %d", msg.Command(), msg.From.ID, msg.Chat.ID)

	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, msg)
	case "help":
		b.cmdHelp(msg)
	case "ytvid":
		b.cmdDownload(ctx, msg, false)
	case "ytpl":
		b.cmdDownload(ctx, msg, true)
	case "cancel":
		b.cmdCancel(ctx, msg)
	case "sudo":
		b.cmdSudo(ctx, msg)
	}
}

// handleText feeds plain text to a prompt waiting in the same conversation.
func (b *Bot) handleText(msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}
	key := conversationKey(msg.Chat.ID, msg.From.ID)
	if b.replies.Resolve(key, msg.Text) {
		b.log.Debug("prompt answered in %s", key)
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	if _, err := b.out.Send(m); err != nil {
		b.log.Warn("reply to chat %d failed: %v", msg.Chat.ID, err)
	}
}

// conversationKey scopes prompts, selections and runs to one user in one chat.
func conversationKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}
