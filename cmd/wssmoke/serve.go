package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wssmoke/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the echo, ping and demo WebSocket endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		srv := server.New(server.Options{
			Addr:           cfg.ListenAddr(),
			PingInterval:   cfg.Server.PingInterval,
			WriteTimeout:   cfg.Server.WriteTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown", "error", err)
			}
		}()

		logger.Info("boot_env", "port", cfg.Port, "ping_interval", cfg.Server.PingInterval)
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
