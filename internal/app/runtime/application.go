// Package runtime runs the composed application behind an HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/R3E-Network/rental_settlement/internal/app"
	"github.com/R3E-Network/rental_settlement/internal/config"
	"github.com/R3E-Network/rental_settlement/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Application wires configuration, services and the HTTP server.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
}

// NewApplication loads configuration and builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationFromConfig(cfg, logger.New(cfg.Logging), app.Options{})
}

// NewApplicationFromConfig builds the application from an explicit configuration.
func NewApplicationFromConfig(cfg *config.Config, log *logger.Logger, opts app.Options) (*Application, error) {
	application, err := app.New(cfg, log, opts)
	if err != nil {
		return nil, err
	}
	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           application.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Settlement requests wait on the ledger, whose timeout defaults to 30s.
			WriteTimeout: cfg.Ledger.Timeout + 30*time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}, nil
}

// Run starts the services and serves HTTP until ctx is cancelled or the
// listener fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.app.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", ln.Addr())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	return errors.Join(serveErr, a.Shutdown(context.WithoutCancel(ctx)))
}

// Shutdown stops accepting requests, waits for in-flight ones, then stops the
// services so queued notification events are handed over.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
