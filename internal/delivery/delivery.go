package delivery

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/datallboy/goytbot/internal/domain"
)

// Sink is where one conversation's results and status text go.
// Status and progress updates are best effort; only file sends report errors.
type Sink interface {
	// Status replaces the run-level status line.
	Status(ctx context.Context, text string)

	// Progress announces item index of total and returns a func that
	// clears the announcement once the item is done.
	Progress(ctx context.Context, index, total int) (done func())

	// Notify sends a standalone message.
	Notify(ctx context.Context, text string)

	SendVideo(ctx context.Context, path, caption string) error
	SendDocument(ctx context.Context, path, caption string) error
}

// KindFor picks the payload type: anything above ceiling goes out as a
// plain document.
func KindFor(size, ceiling int64) domain.DeliveryKind {
	if size > ceiling {
		return domain.DeliveredDocument
	}
	return domain.DeliveredVideo
}

// Send dispatches path to sink as kind.
func Send(ctx context.Context, sink Sink, kind domain.DeliveryKind, path, caption string) error {
	switch kind {
	case domain.DeliveredDocument:
		return sink.SendDocument(ctx, path, caption)
	default:
		return sink.SendVideo(ctx, path, caption)
	}
}

// Caption labels a delivered file. Single downloads say "Downloaded:",
// batch items carry their position.
func Caption(index, total int, path string) string {
	name := filepath.Base(path)
	if total <= 1 {
		return "Downloaded: " + name
	}
	return fmt.Sprintf("%d/%d %s", index, total, name)
}
