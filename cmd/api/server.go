package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// serve runs listen until ctx is cancelled, then drains the server. It
// returns only after Shutdown has finished, so callers may release what the
// handlers use (database, event bus) as soon as it returns.
func serve(ctx context.Context, server *http.Server, listen func() error, timeout time.Duration, logger *logrus.Logger) error {
	drained := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		drained <- server.Shutdown(shutdownCtx)
	}()

	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-drained; err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
