package telegram

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/datallboy/goytbot/internal/access"
	"github.com/datallboy/goytbot/internal/app"
	"github.com/datallboy/goytbot/internal/delivery"
	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/config"
	"github.com/datallboy/goytbot/internal/infra/logger"
)

const (
	ownerID = int64(1)
	chatID  = int64(100)
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int

	// rejectPhotos fails that many photo sends before accepting any
	rejectPhotos int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.PhotoConfig); ok && f.rejectPhotos > 0 {
		f.rejectPhotos--
		return tgbotapi.Message{}, errors.New("Bad Request: wrong file identifier/HTTP URL specified")
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type runCall struct {
	key, url string
	height   int
	playlist bool
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	cancels int
}

func (r *fakeRunner) RunSingle(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error) {
	r.record(runCall{key, url, height, false})
	return &domain.BatchRun{}, nil
}

func (r *fakeRunner) RunPlaylist(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error) {
	r.record(runCall{key, url, height, true})
	return &domain.BatchRun{}, nil
}

func (r *fakeRunner) record(c runCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *fakeRunner) CancelConversation(string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	return false
}
func (r *fakeRunner) Busy(string) bool               { return false }

func newTestBot(t *testing.T) (*Bot, *fakeSender, *fakeRunner) {
	t.Helper()
	cfg := &config.Config{
		Telegram: config.TelegramConfig{OwnerID: ownerID},
		Quality:  config.QualityConfig{Ladder: []int{360, 720}, Timeout: 2 * time.Second},
		Prompt:   config.PromptConfig{Timeout: 2 * time.Second},
	}
	a := app.NewContext(cfg, logger.Nop())
	a.Access = access.New(ownerID, access.NewMemoryBackend(), logger.Nop())

	out := &fakeSender{}
	runner := &fakeRunner{}
	return newBot(out, a, runner), out, runner
}

func command(from int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func text(from int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 11,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      body,
	}}
}

func click(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 12, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnauthorizedDownload(t *testing.T) {
	b, out, runner := newTestBot(t)
	b.handleUpdate(context.Background(), command(99, "/ytvid https://youtu.be/x"))

	if got := out.texts(); len(got) != 1 || got[0] != unauthorizedText {
		t.Fatalf("texts = %v", got)
	}
	if len(runner.calls) != 0 {
		t.Fatal("runner must not be called")
	}
	if err := b.authorize(context.Background(), command(99, "/cancel").Message); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("authorize = %v", err)
	}
}

func TestDownloadWithPromptedURLAndQuality(t *testing.T) {
	b, out, runner := newTestBot(t)
	ctx := context.Background()
	key := conversationKey(chatID, ownerID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.handleUpdate(ctx, command(ownerID, "/ytpl"))
	}()

	waitFor(t, func() bool { return b.replies.Pending(key) })
	b.handleUpdate(ctx, text(ownerID, "  https://www.youtube.com/playlist?list=PL1 "))

	waitFor(t, func() bool { return b.quality.Awaiting(key) })
	b.handleUpdate(ctx, click(ownerID, "q:720"))

	<-done

	if len(runner.calls) != 1 {
		t.Fatalf("calls = %+v", runner.calls)
	}
	want := runCall{key: key, url: "https://www.youtube.com/playlist?list=PL1", height: 720, playlist: true}
	if runner.calls[0] != want {
		t.Fatalf("call = %+v, want %+v", runner.calls[0], want)
	}

	texts := out.texts()
	if !slices.Contains(texts, "Send the YouTube playlist URL now.") || !slices.Contains(texts, "Which quality for videos?") {
		t.Fatalf("texts = %v", texts)
	}
	if len(out.requests) != 1 {
		t.Fatalf("callback must be answered once, got %d", len(out.requests))
	}
}

func TestStaleClickIsAnswered(t *testing.T) {
	b, out, _ := newTestBot(t)
	b.handleUpdate(context.Background(), click(ownerID, "q:720"))

	if len(out.requests) != 1 {
		t.Fatalf("requests = %d", len(out.requests))
	}
	cb, ok := out.requests[0].(tgbotapi.CallbackConfig)
	if !ok || cb.Text != "This choice has expired." {
		t.Fatalf("answer = %+v", out.requests[0])
	}
}

func TestPromptTimeout(t *testing.T) {
	b, out, runner := newTestBot(t)
	b.promptTimeout = 20 * time.Millisecond

	b.handleUpdate(context.Background(), command(ownerID, "/ytvid"))

	texts := out.texts()
	if len(texts) != 2 || !strings.HasPrefix(texts[1], "Timeout or error: ") {
		t.Fatalf("texts = %v", texts)
	}
	if len(runner.calls) != 0 {
		t.Fatal("runner must not be called")
	}
}

func TestSudo(t *testing.T) {
	b, out, _ := newTestBot(t)
	ctx := context.Background()

	steps := []struct {
		from int64
		text string
		want string
	}{
		{ownerID, "/sudo add 42", "Added 42 to sudo users."},
		{ownerID, "/sudo add 42", "Already present."},
		{ownerID, "/sudo remove 42", "Removed 42 from sudo users."},
		{ownerID, "/sudo remove 1", "Cannot remove."},
		{ownerID, "/sudo add x", "User id must be integer."},
		{ownerID, "/sudo drop 5", "Unknown action. use add/remove."},
		{ownerID, "/sudo", "Usage: /sudo add <user_id>  OR  /sudo remove <user_id>"},
	}
	for _, s := range steps {
		before := len(out.texts())
		b.handleUpdate(ctx, command(s.from, s.text))
		got := out.texts()
		if len(got) != before+1 || got[len(got)-1] != s.want {
			t.Fatalf("%q: texts = %v, want last %q", s.text, got, s.want)
		}
	}

	before := len(out.texts())
	b.handleUpdate(ctx, command(7, "/sudo add 7"))
	if len(out.texts()) != before {
		t.Fatal("non-owner sudo must be ignored")
	}
	if b.access.Allowed(ctx, 7) {
		t.Fatal("non-owner must not grant access")
	}
}

func TestParseQualityCallback(t *testing.T) {
	tests := []struct {
		data string
		want int
		ok   bool
	}{
		{"q:720", 720, true},
		{"q:0", 0, false},
		{"q:abc", 0, false},
		{"help", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseQualityCallback(tt.data)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("parseQualityCallback(%q) = %d, %v", tt.data, got, ok)
		}
	}
}

func TestQualityKeyboardRows(t *testing.T) {
	kb := qualityKeyboard([]int{144, 240, 360, 480, 720, 1080, 1440})
	if len(kb.InlineKeyboard) != 3 || len(kb.InlineKeyboard[2]) != 1 {
		t.Fatalf("rows = %+v", kb.InlineKeyboard)
	}
	btn := kb.InlineKeyboard[1][1]
	if btn.Text != "720p" || btn.CallbackData == nil || *btn.CallbackData != "q:720" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestLooksLikeURL(t *testing.T) {
	for s, want := range map[string]bool{
		"https://youtu.be/x":      true,
		"http://example.com/a?b=": true,
		"youtu.be/x":              false,
		"ftp://host/file":         false,
		"hello":                   false,
	} {
		if got := looksLikeURL(s); got != want {
			t.Fatalf("looksLikeURL(%q) = %v", s, got)
		}
	}
}

func TestSinkStatusEditsInPlace(t *testing.T) {
	out := &fakeSender{}
	s := newChatSink(out, chatID, 10, logger.Nop())
	ctx := context.Background()

	s.Status(ctx, "Fetching playlist...")
	s.Status(ctx, "Found 2 videos.")
	done := s.Progress(ctx, 1, 2)
	done()

	if len(out.sent) != 3 {
		t.Fatalf("sent = %d", len(out.sent))
	}
	if _, ok := out.sent[1].(tgbotapi.EditMessageTextConfig); !ok {
		t.Fatalf("second status should be an edit, got %T", out.sent[1])
	}
	if m, ok := out.sent[2].(tgbotapi.MessageConfig); !ok || m.Text != "[1/2] Downloading..." {
		t.Fatalf("progress = %+v", out.sent[2])
	}
	if _, ok := out.requests[0].(tgbotapi.DeleteMessageConfig); !ok {
		t.Fatalf("progress must be deleted, got %T", out.requests[0])
	}
}

func TestStartFallsBackToDefaultImage(t *testing.T) {
	b, out, _ := newTestBot(t)
	b.cfg.StartImage = "https://example.com/custom.jpg"
	b.fetchImage = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	out.rejectPhotos = 1

	b.handleUpdate(context.Background(), command(99, "/start"))

	photos := out.photos()
	if len(photos) != 2 {
		t.Fatalf("photo sends = %d", len(photos))
	}
	if got := photos[1].File; got != tgbotapi.FileURL(config.DefaultStartImage) {
		t.Fatalf("second photo = %v, want the default image", got)
	}
	if photos[1].Caption != startCaption {
		t.Fatalf("caption = %q", photos[1].Caption)
	}
	if len(out.texts()) != 0 {
		t.Fatalf("no text fallback expected, got %v", out.texts())
	}
}

func TestStartUploadsFetchedImage(t *testing.T) {
	b, out, _ := newTestBot(t)
	b.cfg.StartImage = "https://example.com/custom.jpg"
	var fetched []string
	b.fetchImage = func(_ context.Context, url string) ([]byte, error) {
		fetched = append(fetched, url)
		return []byte("jpeg"), nil
	}
	out.rejectPhotos = 1

	b.handleUpdate(context.Background(), command(99, "/start"))

	photos := out.photos()
	if len(photos) != 2 {
		t.Fatalf("photo sends = %d", len(photos))
	}
	fb, ok := photos[1].File.(tgbotapi.FileBytes)
	if !ok || string(fb.Bytes) != "jpeg" {
		t.Fatalf("second photo = %#v, want uploaded bytes", photos[1].File)
	}
	if !slices.Equal(fetched, []string{"https://example.com/custom.jpg"}) {
		t.Fatalf("fetched = %v", fetched)
	}
}

func TestStartFallsBackToText(t *testing.T) {
	b, out, _ := newTestBot(t)
	b.cfg.StartImage = "https://example.com/custom.jpg"
	b.fetchImage = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	out.rejectPhotos = 10

	b.handleUpdate(context.Background(), command(99, "/start"))

	if n := len(out.photos()); n != 2 {
		t.Fatalf("photo attempts = %d, want configured and default", n)
	}
	if got := out.texts(); len(got) != 1 || got[0] != startCaption {
		t.Fatalf("texts = %v", got)
	}
}

func TestCancelDropsQualitySelection(t *testing.T) {
	b, out, runner := newTestBot(t)
	ctx := context.Background()
	key := conversationKey(chatID, ownerID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.handleUpdate(ctx, command(ownerID, "/ytvid https://youtu.be/x"))
	}()

	waitFor(t, func() bool { return b.quality.Awaiting(key) })
	b.handleUpdate(ctx, command(ownerID, "/cancel"))
	<-done

	if b.quality.Awaiting(key) {
		t.Fatal("selection still pending after /cancel")
	}
	if len(runner.calls) != 0 {
		t.Fatalf("runner called after /cancel: %+v", runner.calls)
	}
	texts := out.texts()
	if !slices.Contains(texts, "Cancelled.") {
		t.Fatalf("texts = %v", texts)
	}
	for _, s := range texts {
		if strings.HasPrefix(s, "Timeout or error") || s == "Nothing to cancel." {
			t.Fatalf("unexpected reply %q in %v", s, texts)
		}
	}
}

func TestCancelDropsURLPrompt(t *testing.T) {
	b, out, runner := newTestBot(t)
	ctx := context.Background()
	key := conversationKey(chatID, ownerID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.handleUpdate(ctx, command(ownerID, "/ytvid"))
	}()

	waitFor(t, func() bool { return b.replies.Pending(key) })
	b.handleUpdate(ctx, command(ownerID, "/cancel"))
	<-done

	texts := out.texts()
	if texts[len(texts)-1] != "Cancelled." {
		t.Fatalf("texts = %v", texts)
	}
	for _, s := range texts {
		if strings.Contains(s, domain.ErrSelectionSuperseded.Error()) {
			t.Fatalf("cancel reported as superseded: %v", texts)
		}
	}
	if runner.cancels != 1 || len(runner.calls) != 0 {
		t.Fatalf("runner = %+v", runner)
	}
}

func TestCancelWithNothingPending(t *testing.T) {
	b, out, _ := newTestBot(t)
	b.handleUpdate(context.Background(), command(ownerID, "/cancel"))

	if got := out.texts(); len(got) != 1 || got[0] != "Nothing to cancel." {
		t.Fatalf("texts = %v", got)
	}
}
