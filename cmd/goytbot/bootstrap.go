package main

import (
	"context"
	"fmt"

	"github.com/datallboy/goytbot/internal/access"
	"github.com/datallboy/goytbot/internal/app"
	"github.com/datallboy/goytbot/internal/infra/config"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
	"github.com/datallboy/goytbot/internal/playlist"
	"github.com/datallboy/goytbot/internal/resolver"
	"github.com/datallboy/goytbot/internal/store"
	"github.com/datallboy/goytbot/internal/transcode"
	"github.com/datallboy/goytbot/internal/ytdlp"
)

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return log, nil
}

// buildPipeline wires everything a run needs: store, workspace and the
// resolve/shrink/expand stages. The caller owns a.Close.
func buildPipeline(cfg *config.Config, log *logger.Logger) (*app.Context, *store.PersistentStore, error) {
	if err := platform.ValidateDependencies(cfg.Download.Binary, cfg.Transcode.FFmpeg, cfg.Transcode.FFprobe); err != nil {
		return nil, nil, err
	}

	a := app.NewContext(cfg, log)

	st, err := store.NewPersistentStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	a.Store = st
	log.Info("run history in %s store", st.Driver())

	ws, err := platform.NewWorkspace(cfg.Download.WorkDir)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	a.Workspace = ws
	log.Debug("workspace %s", ws.Root)

	ytdl, err := ytdlp.New(cfg.Download.Binary, cfg.Download.CookiesFile, log)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	tc, err := transcode.New(transcode.Options{
		FFmpeg:      cfg.Transcode.FFmpeg,
		FFprobe:     cfg.Transcode.FFprobe,
		Preset:      cfg.Transcode.Preset,
		FallbackCRF: cfg.Transcode.FallbackCRF,
	}, log)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	a.Resolver = resolver.New(ytdl, log)
	a.Shrinker = tc
	a.Expander = playlist.New(ytdl, log)
	return a, st, nil
}

// buildAccess picks the member backend: a shared redis set when configured,
// otherwise the run-history database. The owner and configured sudo users
// are seeded on every start.
func buildAccess(ctx context.Context, a *app.Context, st access.MemberStore) (*access.List, func(), error) {
	cfg := a.Config
	closer := func() {}

	var backend access.Backend = access.NewStoreBackend(st)
	if cfg.Access.RedisAddr != "" {
		rb := access.NewRedisBackend(cfg.Access.RedisAddr, cfg.Access.RedisKey)
		if err := rb.Ping(ctx); err != nil {
			rb.Close()
			return nil, closer, err
		}
		backend = rb
		closer = func() { rb.Close() }
		a.Logger.Info("access list in redis set %s", cfg.Access.RedisKey)
	}

	list := access.New(cfg.Telegram.OwnerID, backend, a.Logger)
	if err := list.Seed(ctx, cfg.Telegram.SudoUsers); err != nil {
		closer()
		return nil, func() {}, fmt.Errorf("seed access list: %w", err)
	}
	return list, closer, nil
}
