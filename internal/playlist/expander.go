package playlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/ytdlp"
)

// WatchURL is the canonical single-video address for a listed id.
const WatchURL = "https://www.youtube.com/watch?v=%s"

// Lister returns a flat listing of a source without downloading it.
type Lister interface {
	FlatPlaylist(ctx context.Context, url string) (*ytdlp.Info, error)
}

type Expander struct {
	lister Lister
	log    *logger.Logger
}

func New(lister Lister, log *logger.Logger) *Expander {
	return &Expander{lister: lister, log: log.With("playlist")}
}

// Expand turns a playlist URL into one URL per entry. A source that is not
// a playlist comes back unchanged as a single-element list.
func (e *Expander) Expand(ctx context.Context, url string) ([]string, error) {
	info, err := e.lister.FlatPlaylist(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", url, err)
	}

	urls := ItemURLs(info, url)
	e.log.Debug("expanded %s into %d item(s)", url, len(urls))
	return urls, nil
}

// ItemURLs maps a listing to per-item URLs in listing order. Entries with
// neither an id nor a url are skipped.
func ItemURLs(info *ytdlp.Info, source string) []string {
	if info == nil || (info.Type != "playlist" && len(info.Entries) == 0) {
		return []string{source}
	}

	urls := make([]string, 0, len(info.Entries))
	for _, entry := range info.Entries {
		switch {
		case entry.ID != "":
			urls = append(urls, fmt.Sprintf(WatchURL, entry.ID))
		case strings.HasPrefix(entry.URL, "http"):
			urls = append(urls, entry.URL)
		}
	}
	return urls
}

// IsExpansion reports whether urls came from a real listing rather than the
// single-item passthrough.
func IsExpansion(source string, urls []string) bool {
	return !(len(urls) == 1 && urls[0] == source)
}
