package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datallboy/goytbot/internal/api"
	"github.com/datallboy/goytbot/internal/engine"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/telegram"
	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var noBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot and the web service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !noBot {
				if err := cfg.ValidateBot(); err != nil {
					return err
				}
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			// Cancelled on Ctrl+C or SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, st, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			list, closeAccess, err := buildAccess(ctx, a, st)
			if err != nil {
				return err
			}
			defer closeAccess()
			a.Access = list

			runner := engine.NewRunner(a, engine.OptionsFromContext(a))

			e := echo.New()
			api.RegisterRoutes(e, a, runner)
			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
			}

			webErr := make(chan error, 1)
			go func() {
				log.Info("web service listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					webErr <- err
				}
			}()

			botDone := make(chan error, 1)
			if noBot {
				close(botDone)
			} else {
				bot, err := telegram.New(a, runner)
				if err != nil {
					shutdown(srv, log)
					return err
				}
				go func() {
					botDone <- bot.Run(ctx)
				}()
			}

			var runErr error
			select {
			case <-ctx.Done():
				log.Info("shutting down")
			case runErr = <-webErr:
				log.Error("web service stopped: %v", runErr)
			}

			// Stop the bot and let in-flight handlers settle before the
			// store and workspace are closed
			stop()
			if err := <-botDone; err != nil && runErr == nil {
				runErr = err
			}
			shutdown(srv, log)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&noBot, "no-bot", false, "serve only the web endpoints")
	return cmd
}

func shutdown(srv *http.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("web shutdown: %v", err)
	}
}
