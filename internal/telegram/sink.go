package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/datallboy/goytbot/internal/infra/logger"
)

// chatSink delivers one request's output into the chat it came from.
type chatSink struct {
	out     sender
	chatID  int64
	replyTo int
	log     *logger.Logger

	mu       sync.Mutex
	statusID int
}

func newChatSink(out sender, chatID int64, replyTo int, log *logger.Logger) *chatSink {
	return &chatSink{out: out, chatID: chatID, replyTo: replyTo, log: log}
}

// Status posts the status line the first time and edits it afterwards.
func (s *chatSink) Status(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statusID != 0 {
		edit := tgbotapi.NewEditMessageText(s.chatID, s.statusID, text)
		if _, err := s.out.Send(edit); err != nil {
			s.log.Debug("edit status in %d: %v", s.chatID, err)
		}
		return
	}

	m, err := s.send(text)
	if err != nil {
		s.log.Warn("status in %d: %v", s.chatID, err)
		return
	}
	s.statusID = m.MessageID
}

func (s *chatSink) Progress(_ context.Context, index, total int) func() {
	text := "Downloading... This may take a while."
	if total > 1 {
		text = fmt.Sprintf("[%d/%d] Downloading...", index, total)
	}

	m, err := s.send(text)
	if err != nil {
		s.log.Warn("progress in %d: %v", s.chatID, err)
		return func() {}
	}
	return func() {
		if _, err := s.out.Request(tgbotapi.NewDeleteMessage(s.chatID, m.MessageID)); err != nil {
			s.log.Debug("delete progress message: %v", err)
		}
	}
}

func (s *chatSink) Notify(_ context.Context, text string) {
	if _, err := s.send(text); err != nil {
		s.log.Warn("notify in %d: %v", s.chatID, err)
	}
}

func (s *chatSink) SendVideo(_ context.Context, path, caption string) error {
	v := tgbotapi.NewVideo(s.chatID, tgbotapi.FilePath(path))
	v.Caption = caption
	v.SupportsStreaming = true
	v.ReplyToMessageID = s.replyTo
	_, err := s.out.Send(v)
	return err
}

func (s *chatSink) SendDocument(_ context.Context, path, caption string) error {
	d := tgbotapi.NewDocument(s.chatID, tgbotapi.FilePath(path))
	d.Caption = caption
	d.ReplyToMessageID = s.replyTo
	_, err := s.out.Send(d)
	return err
}

func (s *chatSink) send(text string) (tgbotapi.Message, error) {
	m := tgbotapi.NewMessage(s.chatID, text)
	m.ReplyToMessageID = s.replyTo
	return s.out.Send(m)
}
