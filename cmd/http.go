package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/httpapi"
)

var httpAddr string

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Run the HTTP API with a server-sent progress feed",
	RunE:  runHTTP,
}

func init() {
	httpCmd.Flags().StringVar(&httpAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(httpCmd)
}

func runHTTP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := loadApp(ctx, cfgFile, os.Stderr)
	if err != nil {
		return err
	}
	addr := app.Config.HTTP.Addr
	if httpAddr != "" {
		addr = httpAddr
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.Setup(app.Coordinator, app.Converter, app.Log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	app.Log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Conversions first: their SSE listeners end when the feed closes.
	if err := app.Close(shutdownCtx); err != nil {
		app.Log.Warn().Err(err).Msg("conversions did not stop in time")
	}
	return srv.Shutdown(shutdownCtx)
}
