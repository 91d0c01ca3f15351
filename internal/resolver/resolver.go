package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/ytdlp"
)

// Downloader is the part of the yt-dlp client the resolver drives.
type Downloader interface {
	Download(ctx context.Context, opts ytdlp.DownloadOptions) (*ytdlp.Info, error)
}

type Resolver struct {
	dl  Downloader
	log *logger.Logger
}

func New(dl Downloader, log *logger.Logger) *Resolver {
	return &Resolver{dl: dl, log: log.With("resolver")}
}

// Resolve downloads req.SourceURL into req.WorkDir using the first strategy
// that works and returns the located file.
func (r *Resolver) Resolve(ctx context.Context, req domain.DownloadRequest) (*domain.ResolvedMedia, error) {
	if req.WorkDir == "" {
		return nil, errors.New("resolve: work directory is required")
	}
	if err := os.MkdirAll(req.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("resolve: create work dir: %w", err)
	}

	chain := Strategies(req.TargetHeight)

	attempt := func(ctx context.Context, s Strategy) (*ytdlp.Info, error) {
		// Whatever a previous attempt left behind would confuse file lookup
		if err := clearDir(req.WorkDir); err != nil {
			return nil, err
		}
		r.log.Debug("trying %s (%s) for %s", s.Name, s.Format, req.SourceURL)
		return r.dl.Download(ctx, ytdlp.DownloadOptions{
			URL:       req.SourceURL,
			Format:    s.Format,
			OutputDir: req.WorkDir,
			MergeMP4:  s.Merge,
		})
	}
	onFail := func(s Strategy, err error) {
		r.log.Warn("%s (%s) failed for %s: %v", s.Name, s.Format, req.SourceURL, err)
	}

	strategy, info, err := FirstSuccess(ctx, chain, attempt, onFail)
	if err != nil {
		_ = clearDir(req.WorkDir)
		var all *AllStrategiesFailedError
		if errors.As(err, &all) {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoSuitableFormat, err)
		}
		return nil, err
	}

	if info == nil {
		info = &ytdlp.Info{}
	}

	path, err := locate(req.WorkDir, info)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	media := &domain.ResolvedMedia{
		Path:   path,
		Title:  info.Title,
		Ext:    strings.TrimPrefix(filepath.Ext(path), "."),
		Size:   st.Size(),
		Format: strategy.Format,
	}
	if info.Duration > 0 {
		media.Duration = info.Duration
	}
	if media.Title == "" {
		media.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	r.log.Info("resolved %s via %s: %s (%d bytes)", req.SourceURL, strategy.Name, filepath.Base(path), media.Size)
	return media, nil
}

// locate finds the downloaded file: the path the tool reported, then the
// title-derived name, then the newest file in dir.
func locate(dir string, info *ytdlp.Info) (string, error) {
	for _, p := range info.ReportedPaths() {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if isRegular(p) {
			return p, nil
		}
	}

	if info.Title != "" && info.Ext != "" {
		p := filepath.Join(dir, info.Title+"."+info.Ext)
		if isRegular(p) {
			return p, nil
		}
	}

	if p := newestFile(dir); p != "" {
		return p, nil
	}

	return "", fmt.Errorf("%w in %s", domain.ErrOutputNotFound, dir)
}

func newestFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var best string
	var bestMod time.Time
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || fi.ModTime().After(bestMod) {
			best = filepath.Join(dir, e.Name())
			bestMod = fi.ModTime()
		}
	}
	return best
}

func isPartial(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".part", ".ytdl", ".temp", ".tmp":
		return true
	}
	return strings.Contains(name, ".part-Frag")
}

func isRegular(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// clearDir empties dir without removing it.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear work dir: %w", err)
		}
	}
	return nil
}
