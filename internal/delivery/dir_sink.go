package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/datallboy/goytbot/internal/domain"
)

// Delivered records one file a DirSink accepted.
type Delivered struct {
	Path    string
	Kind    domain.DeliveryKind
	Caption string
}

// DirSink delivers into a local directory and prints status lines to Out.
// It backs the fetch command.
type DirSink struct {
	OutDir string
	Out    io.Writer

	mu        sync.Mutex
	delivered []Delivered
}

func NewDirSink(outDir string, out io.Writer) (*DirSink, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if out == nil {
		out = io.Discard
	}
	return &DirSink{OutDir: outDir, Out: out}, nil
}

func (s *DirSink) Status(_ context.Context, text string) {
	fmt.Fprintln(s.Out, text)
}

func (s *DirSink) Progress(_ context.Context, index, total int) func() {
	if total > 1 {
		fmt.Fprintf(s.Out, "[%d/%d] Downloading...\n", index, total)
	} else {
		fmt.Fprintln(s.Out, "Downloading... This may take a while.")
	}
	return func() {}
}

func (s *DirSink) Notify(_ context.Context, text string) {
	fmt.Fprintln(s.Out, text)
}

func (s *DirSink) SendVideo(ctx context.Context, path, caption string) error {
	return s.place(ctx, path, caption, domain.DeliveredVideo)
}

func (s *DirSink) SendDocument(ctx context.Context, path, caption string) error {
	return s.place(ctx, path, caption, domain.DeliveredDocument)
}

func (s *DirSink) place(ctx context.Context, path, caption string, kind domain.DeliveryKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dest := uniquePath(filepath.Join(s.OutDir, sanitizeFileName(filepath.Base(path))))
	if err := moveFile(path, dest); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(path), err)
	}

	s.delivered = append(s.delivered, Delivered{Path: dest, Kind: kind, Caption: caption})
	fmt.Fprintf(s.Out, "%s -> %s (%s)\n", caption, dest, kind)
	return nil
}

// Delivered returns what has been placed so far.
func (s *DirSink) Delivered() []Delivered {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivered, len(s.delivered))
	copy(out, s.delivered)
	return out
}
