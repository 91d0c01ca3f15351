package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/datallboy/goytbot/internal/app"
	"github.com/datallboy/goytbot/internal/delivery"
	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
	"github.com/datallboy/goytbot/internal/playlist"
	"github.com/datallboy/goytbot/internal/transcode"
	"github.com/segmentio/ksuid"
	"golang.org/x/time/rate"
)

type Options struct {
	CeilingBytes int64
	TargetBytes  int64
	AudioKbps    int

	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration

	// ItemPause is the minimum spacing between the starts of two items.
	ItemPause time.Duration
}

// OptionsFromContext derives runner options from configuration.
func OptionsFromContext(a *app.Context) Options {
	cfg := a.Config
	return Options{
		CeilingBytes:     cfg.Delivery.CeilingBytes(),
		TargetBytes:      cfg.Delivery.TargetBytes(),
		AudioKbps:        cfg.Transcode.AudioKbps,
		DownloadTimeout:  cfg.Download.Timeout,
		TranscodeTimeout: cfg.Transcode.Timeout,
		ItemPause:        cfg.Batch.ItemPause,
	}
}

// Runner drives runs through resolve, shrink and deliver, one item at a time.
type Runner struct {
	mu     sync.RWMutex
	active map[string]*activeRun

	resolver app.Resolver
	shrinker app.Shrinker
	expander app.Expander
	store    app.Store
	ws       *platform.Workspace
	gate     *SessionGate
	opts     Options
	log      *logger.Logger
}

type activeRun struct {
	run    *domain.BatchRun
	cancel context.CancelFunc
}

func NewRunner(a *app.Context, opts Options) *Runner {
	return &Runner{
		active:   make(map[string]*activeRun),
		resolver: a.Resolver,
		shrinker: a.Shrinker,
		expander: a.Expander,
		store:    a.Store,
		ws:       a.Workspace,
		gate:     NewSessionGate(),
		opts:     opts,
		log:      a.Logger.With("engine"),
	}
}

// RunSingle fetches one video for conversation key.
func (r *Runner) RunSingle(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error) {
	release, err := r.gate.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	run := newRun(key, url, height)
	run.Items = []*domain.BatchItem{newItem(run.ID, 1, 1, url)}
	r.saveRun(ctx, run)

	r.Run(ctx, run, sink)

	if item := run.Items[0]; item.Status == domain.ItemFailed {
		return run, &domain.ItemError{Index: 1, URL: url, Err: errors.New(item.Error)}
	}
	return run, nil
}

// RunPlaylist expands url and fetches every entry in order. Only a failed
// expansion is returned as an error; item failures are recorded on the run.
func (r *Runner) RunPlaylist(ctx context.Context, key, url string, height int, sink delivery.Sink) (*domain.BatchRun, error) {
	release, err := r.gate.Acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	run := newRun(key, url, height)
	sink.Status(ctx, "Fetching playlist...")

	urls, err := r.expander.Expand(ctx, url)
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now()
		r.saveRun(ctx, run)
		sink.Status(ctx, "Playlist failed: "+err.Error())
		return run, err
	}

	run.Playlist = playlist.IsExpansion(url, urls)
	for i, u := range urls {
		run.Items = append(run.Items, newItem(run.ID, i+1, len(urls), u))
	}
	r.saveRun(ctx, run)

	sink.Status(ctx, fmt.Sprintf("Found %d videos. Starting download one by one (this will take time).", len(urls)))

	r.Run(ctx, run, sink)

	ok, failed := run.Counts()
	switch run.Status {
	case domain.RunCancelled:
		sink.Status(ctx, fmt.Sprintf("Playlist cancelled after %d of %d videos.", ok+failed, len(urls)))
	default:
		sink.Status(ctx, fmt.Sprintf("Playlist processing finished. %d delivered, %d failed.", ok, failed))
	}
	return run, nil
}

// Run processes run.Items sequentially. A failing item is recorded and the
// loop moves on; cancellation marks the remaining items failed.
func (r *Runner) Run(ctx context.Context, run *domain.BatchRun, sink delivery.Sink) []*domain.BatchItem {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.track(run, cancel)
	defer r.untrack(run.ID)

	var limiter *rate.Limiter
	if r.opts.ItemPause > 0 {
		limiter = rate.NewLimiter(rate.Every(r.opts.ItemPause), 1)
	}

	total := len(run.Items)
	for _, item := range run.Items {
		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				break
			}
		}
		if isCancelled(runCtx) {
			break
		}

		item.Status = domain.ItemRunning
		done := sink.Progress(runCtx, item.Index, total)

		err := r.processItem(runCtx, run, item, sink)
		done()

		if err != nil {
			reason := err.Error()
			if errors.Is(err, context.Canceled) {
				reason = "Cancelled by user"
			}
			item.Fail(reason)
			r.log.Warn("run %s item %d/%d failed: %v", run.ID, item.Index, total, err)
			if run.Playlist {
				sink.Notify(ctx, fmt.Sprintf("Failed for video %s: %v", item.SourceURL, err))
			} else {
				sink.Notify(ctx, "Download failed: "+err.Error())
			}
		}
		r.saveItem(ctx, item)
	}

	r.finalizeRun(ctx, run, isCancelled(runCtx))
	return run.Items
}

func (r *Runner) processItem(ctx context.Context, run *domain.BatchRun, item *domain.BatchItem, sink delivery.Sink) error {
	dir, err := r.ws.ItemDir()
	if err != nil {
		return err
	}
	defer func() {
		if err := r.ws.Release(dir); err != nil {
			r.log.Warn("cleanup %s: %v", dir, err)
		}
	}()

	dctx, cancel := withTimeout(ctx, r.opts.DownloadTimeout)
	media, err := r.resolver.Resolve(dctx, domain.DownloadRequest{
		SourceURL:    item.SourceURL,
		TargetHeight: run.TargetHeight,
		WorkDir:      dir,
	})
	cancel()
	if err != nil {
		return err
	}

	path, size, transcoded := media.Path, media.Size, false
	if size > r.opts.CeilingBytes {
		path, size, transcoded = r.shrink(ctx, media)
	}

	kind := delivery.KindFor(size, r.opts.CeilingBytes)
	total := item.Total
	if !run.Playlist {
		total = 1
	}
	caption := delivery.Caption(item.Index, total, media.Path)

	if err := delivery.Send(ctx, sink, kind, path, caption); err != nil {
		return fmt.Errorf("deliver %s: %w", filepath.Base(path), err)
	}

	item.Succeed(media.Title, size, kind, transcoded)
	r.log.Info("run %s item %d delivered as %s (%d bytes)", run.ID, item.Index, kind, size)
	return nil
}

// shrink tries to bring media under the ceiling. On failure the original
// is returned untouched so it can still go out as a document.
func (r *Runner) shrink(ctx context.Context, media *domain.ResolvedMedia) (string, int64, bool) {
	tctx, cancel := withTimeout(ctx, r.opts.TranscodeTimeout)
	defer cancel()

	if media.HasDuration() {
		r.log.Debug("shrinking %s: %d bytes, %.0fs", filepath.Base(media.Path), media.Size, media.Duration)
	} else {
		r.log.Debug("shrinking %s: %d bytes, duration unknown", filepath.Base(media.Path), media.Size)
	}

	res, err := r.shrinker.Shrink(tctx, media.Path, transcode.OutputPath(media.Path), r.opts.TargetBytes, r.opts.AudioKbps)
	if err != nil {
		r.log.Warn("shrink %s failed, delivering original: %v", filepath.Base(media.Path), err)
		return media.Path, media.Size, false
	}
	r.log.Info("shrank %s from %d to %d bytes (%s)", filepath.Base(media.Path), media.Size, res.Size, res.Mode)
	return res.Path, res.Size, true
}

// ActiveRun is a snapshot of a run in flight.
type ActiveRun struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	SourceURL       string    `json:"source_url"`
	Items           int       `json:"items"`
	StartedAt       time.Time `json:"started_at"`
}

// ActiveRuns lists the runs currently in flight.
func (r *Runner) ActiveRuns() []ActiveRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]ActiveRun, 0, len(r.active))
	for _, a := range r.active {
		runs = append(runs, ActiveRun{
			ID:              a.run.ID,
			ConversationKey: a.run.ConversationKey,
			SourceURL:       a.run.SourceURL,
			Items:           len(a.run.Items),
			StartedAt:       a.run.CreatedAt,
		})
	}
	return runs
}

// CancelConversation stops the run owned by key, if any.
func (r *Runner) CancelConversation(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.active {
		if a.run.ConversationKey == key {
			a.cancel()
			return true
		}
	}
	return false
}

// Busy reports whether key already has a run in flight.
func (r *Runner) Busy(key string) bool {
	return r.gate.Busy(key)
}

func (r *Runner) track(run *domain.BatchRun, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[run.ID] = &activeRun{run: run, cancel: cancel}
}

func (r *Runner) untrack(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

func (r *Runner) finalizeRun(ctx context.Context, run *domain.BatchRun, cancelled bool) {
	if cancelled {
		run.Status = domain.RunCancelled
		for _, item := range run.Items {
			if !item.Done() {
				item.Fail("Cancelled by user")
				r.saveItem(ctx, item)
			}
		}
	} else {
		run.Status = domain.RunCompleted
	}
	run.FinishedAt = time.Now()
	r.saveRun(ctx, run)
}

func (r *Runner) saveRun(ctx context.Context, run *domain.BatchRun) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		r.log.Error("failed to save run %s: %v", run.ID, err)
	}
}

func (r *Runner) saveItem(ctx context.Context, item *domain.BatchItem) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveItem(context.WithoutCancel(ctx), item); err != nil {
		r.log.Error("failed to save item %s/%d: %v", item.RunID, item.Index, err)
	}
}

func newRun(key, url string, height int) *domain.BatchRun {
	return &domain.BatchRun{
		ID:              ksuid.New().String(),
		ConversationKey: key,
		SourceURL:       url,
		TargetHeight:    height,
		Status:          domain.RunRunning,
		CreatedAt:       time.Now(),
	}
}

func newItem(runID string, index, total int, url string) *domain.BatchItem {
	return &domain.BatchItem{
		RunID:     runID,
		Index:     index,
		Total:     total,
		SourceURL: url,
		Status:    domain.ItemPending,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// isCancelled is a small utility to check context state
func isCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
