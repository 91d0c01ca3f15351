package app

import (
	"context"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/config"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
	"github.com/datallboy/goytbot/internal/quality"
	"github.com/datallboy/goytbot/internal/transcode"
)

// Resolver downloads one item using the first format strategy that works.
type Resolver interface {
	Resolve(ctx context.Context, req domain.DownloadRequest) (*domain.ResolvedMedia, error)
}

// Shrinker re-encodes a file towards a byte budget.
type Shrinker interface {
	Shrink(ctx context.Context, src, dst string, targetBytes int64, audioKbps int) (*transcode.Result, error)
}

// Expander turns a source URL into per-item URLs.
type Expander interface {
	Expand(ctx context.Context, url string) ([]string, error)
}

// Store persists run history.
type Store interface {
	SaveRun(ctx context.Context, run *domain.BatchRun) error
	SaveItem(ctx context.Context, item *domain.BatchItem) error
	GetRun(ctx context.Context, id string) (*domain.BatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.BatchRun, error)
	Close() error
}

// AccessList decides who may use the download commands.
type AccessList interface {
	Allowed(ctx context.Context, userID int64) bool
	Add(ctx context.Context, userID int64) (bool, error)
	Remove(ctx context.Context, userID int64) (bool, error)
	Members(ctx context.Context) ([]int64, error)
}

// Context holds the shared services every entry point (bot, CLI, web) wires
// together once at startup.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Workspace *platform.Workspace
	Store     Store
	Access    AccessList
	Quality   *quality.Coordinator

	Resolver Resolver
	Shrinker Shrinker
	Expander Expander
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:  cfg,
		Logger:  log,
		Quality: quality.New(cfg.Quality.Ladder, cfg.Quality.Timeout),
	}
}

// Close releases what the context owns.
func (c *Context) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("closing store: %v", err)
		}
	}
	if c.Workspace != nil {
		if err := c.Workspace.Close(); err != nil {
			c.Logger.Warn("removing workspace %s: %v", c.Workspace.Root, err)
		}
	}
}
