package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/rendezvous"
)

const (
	startCaption = "HELLO 👋\nI am your private YT downloader bot.\nSend /help to see commands."

	helpText = `Available commands:
/start - Start & info
/help - This help
/ytvid - Download single YouTube video (interactive)
/ytpl  - Download playlist (interactive)
/cancel - Stop the running download
Note: Bot is private. Only owner / sudo users can use heavy commands.`

	unauthorizedText = "🚫 You are not authorized to use this bot."
	busyText         = "A download is already running here. Send /cancel to stop it."
)

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	markup := startKeyboard(b.cfg.OwnerUsername)

	for _, img := range b.startImages() {
		err := b.sendStartPhoto(ctx, msg.Chat.ID, img, markup)
		if err == nil {
			return
		}
		b.log.Warn("start image %s failed: %v", img, err)
	}

	m := tgbotapi.NewMessage(msg.Chat.ID, startCaption)
	m.ReplyMarkup = markup
	if _, err := b.out.Send(m); err != nil {
		b.log.Warn("start reply failed: %v", err)
	}
}

// startImages is the configured image followed by the built-in one.
func (b *Bot) startImages() []string {
	var imgs []string
	if b.cfg.StartImage != "" {
		imgs = append(imgs, b.cfg.StartImage)
	}
	if b.defaultImage != "" && b.defaultImage != b.cfg.StartImage {
		imgs = append(imgs, b.defaultImage)
	}
	return imgs
}

// sendStartPhoto lets Telegram fetch a remote image first and uploads the
// bytes itself when Telegram refuses the URL.
func (b *Bot) sendStartPhoto(ctx context.Context, chatID int64, img string, markup tgbotapi.InlineKeyboardMarkup) error {
	send := func(file tgbotapi.RequestFileData) error {
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = startCaption
		photo.ReplyMarkup = markup
		_, err := b.out.Send(photo)
		return err
	}

	file := photoFile(img)
	err := send(file)
	if err == nil {
		return nil
	}
	if _, remote := file.(tgbotapi.FileURL); !remote || b.fetchImage == nil {
		return err
	}

	data, fetchErr := b.fetchImage(ctx, img)
	if fetchErr != nil {
		return errors.Join(err, fmt.Errorf("fetch: %w", fetchErr))
	}
	return send(tgbotapi.FileBytes{Name: "start.jpg", Bytes: data})
}

const maxStartImageBytes = 10 << 20

func fetchImage(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image host returned status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxStartImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxStartImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxStartImageBytes)
	}
	return data, nil
}

// photoFile uploads local images and lets Telegram fetch anything else.
func photoFile(img string) tgbotapi.RequestFileData {
	if st, err := os.Stat(img); err == nil && !st.IsDir() {
		return tgbotapi.FilePath(img)
	}
	return tgbotapi.FileURL(img)
}

func (b *Bot) cmdHelp(msg *tgbotapi.Message) {
	b.reply(msg, helpText)
}

// authorize refuses users who are neither the owner nor on the sudo list.
func (b *Bot) authorize(ctx context.Context, msg *tgbotapi.Message) error {
	if b.access.Allowed(ctx, msg.From.ID) {
		return nil
	}
	b.log.Info("/%s from %d in chat %d: %v", msg.Command(), msg.From.ID, msg.Chat.ID, domain.ErrNotAuthorized)
	b.reply(msg, unauthorizedText)
	return domain.ErrNotAuthorized
}

func (b *Bot) cmdDownload(ctx context.Context, msg *tgbotapi.Message, playlist bool) {
	if b.authorize(ctx, msg) != nil {
		return
	}

	key := conversationKey(msg.Chat.ID, msg.From.ID)
	if b.runner.Busy(key) {
		b.reply(msg, busyText)
		return
	}

	url := strings.TrimSpace(msg.CommandArguments())
	if url == "" {
		prompt := "Send the YouTube video URL now (or paste)."
		if playlist {
			prompt = "Send the YouTube playlist URL now."
		}
		var err error
		url, err = b.askText(ctx, key, msg, prompt)
		if err != nil {
			b.promptFailed(msg, key, err)
			return
		}
	}

	if !looksLikeURL(url) {
		b.reply(msg, "That does not look like a link. Start again with /ytvid or /ytpl.")
		return
	}

	height, err := b.quality.Ask(ctx, key, func(ladder []int) error {
		question := "Which quality?"
		if playlist {
			question = "Which quality for videos?"
		}
		m := tgbotapi.NewMessage(msg.Chat.ID, question)
		m.ReplyToMessageID = msg.MessageID
		m.ReplyMarkup = qualityKeyboard(ladder)
		_, err := b.out.Send(m)
		return err
	})
	if err != nil {
		b.promptFailed(msg, key, err)
		return
	}

	sink := newChatSink(b.out, msg.Chat.ID, msg.MessageID, b.log)
	if playlist {
		_, err = b.runner.RunPlaylist(ctx, key, url, height, sink)
	} else {
		_, err = b.runner.RunSingle(ctx, key, url, height, sink)
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionBusy):
		b.reply(msg, busyText)
	default:
		// The runner has already told the chat what went wrong
		b.log.Info("request in %s ended with: %v", key, err)
	}
}

// promptFailed reports a prompt that ended without an answer. /cancel has
// already replied for cancelled prompts.
func (b *Bot) promptFailed(msg *tgbotapi.Message, key string, err error) {
	if errors.Is(err, domain.ErrRequestCancelled) {
		b.log.Debug("prompt in %s cancelled", key)
		return
	}
	b.reply(msg, "Timeout or error: "+err.Error())
}

// askText sends prompt and waits for the next text message from the same
// user in the same chat.
func (b *Bot) askText(ctx context.Context, key string, msg *tgbotapi.Message, prompt string) (string, error) {
	ticket := b.replies.Begin(key)

	m := tgbotapi.NewMessage(msg.Chat.ID, prompt)
	m.ReplyToMessageID = msg.MessageID
	m.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	if _, err := b.out.Send(m); err != nil {
		ticket.Cancel()
		return "", err
	}

	text, err := ticket.Wait(ctx, b.promptTimeout)
	switch {
	case errors.Is(err, rendezvous.ErrTimeout):
		return "", fmt.Errorf("%w within %s", domain.ErrNoInput, b.promptTimeout)
	case errors.Is(err, rendezvous.ErrSuperseded):
		return "", domain.ErrSelectionSuperseded
	case errors.Is(err, rendezvous.ErrCancelled):
		return "", domain.ErrRequestCancelled
	case err != nil:
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// cmdCancel drops an open URL prompt or quality selection and stops the
// running batch for this user in this chat.
func (b *Bot) cmdCancel(ctx context.Context, msg *tgbotapi.Message) {
	if b.authorize(ctx, msg) != nil {
		return
	}
	key := conversationKey(msg.Chat.ID, msg.From.ID)

	prompt := b.replies.Cancel(key)
	selection := b.quality.Cancel(key)

	switch {
	case b.runner.CancelConversation(key):
		b.reply(msg, "Cancelling. The current video stops and the rest are skipped.")
	case prompt || selection:
		b.reply(msg, "Cancelled.")
	default:
		b.reply(msg, "Nothing to cancel.")
	}
}

func (b *Bot) cmdSudo(ctx context.Context, msg *tgbotapi.Message) {
	// Only the owner may manage the list; others get no answer
	if msg.From.ID != b.cfg.OwnerID {
		return
	}

	cmd, problem := parseSudo(msg.CommandArguments())
	if problem != "" {
		b.reply(msg, problem)
		return
	}

	switch cmd.action {
	case "add":
		added, err := b.access.Add(ctx, cmd.userID)
		switch {
		case err != nil:
			b.log.Error("sudo add %d: %v", cmd.userID, err)
			b.reply(msg, "Could not update the list: "+err.Error())
		case added:
			b.reply(msg, fmt.Sprintf("Added %d to sudo users.", cmd.userID))
		default:
			b.reply(msg, "Already present.")
		}
	case "remove":
		removed, err := b.access.Remove(ctx, cmd.userID)
		switch {
		case err != nil:
			b.log.Error("sudo remove %d: %v", cmd.userID, err)
			b.reply(msg, "Could not update the list: "+err.Error())
		case removed:
			b.reply(msg, fmt.Sprintf("Removed %d from sudo users.", cmd.userID))
		default:
			b.reply(msg, "Cannot remove.")
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Every callback must be answered or the client keeps its spinner
	notice := ""
	defer func() {
		if _, err := b.out.Request(tgbotapi.NewCallback(cq.ID, notice)); err != nil {
			b.log.Warn("answer callback %s: %v", cq.ID, err)
		}
	}()

	if cq.From == nil || cq.Message == nil {
		return
	}

	if cq.Data == helpCallback {
		m := tgbotapi.NewMessage(cq.Message.Chat.ID, helpText)
		if _, err := b.out.Send(m); err != nil {
			b.log.Warn("help reply failed: %v", err)
		}
		return
	}

	height, ok := parseQualityCallback(cq.Data)
	if !ok {
		return
	}

	key := conversationKey(cq.Message.Chat.ID, cq.From.ID)
	if !b.quality.Select(domain.QualityChoice{Key: key, Height: height}) {
		notice = "This choice has expired."
		return
	}

	notice = fmt.Sprintf("%dp selected", height)
	edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, fmt.Sprintf("Quality: up to %dp", height))
	if _, err := b.out.Send(edit); err != nil {
		b.log.Debug("edit quality prompt: %v", err)
	}
}
