package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshlink-dev/signaling-server/internal/config"
	"github.com/meshlink-dev/signaling-server/internal/server"
	"github.com/meshlink-dev/signaling-server/internal/signaling"
	"github.com/meshlink-dev/signaling-server/internal/websocket"
)

func main() {
	var (
		configPath string
		port       int
	)

	root := &cobra.Command{
		Use:   "signaling-server",
		Short: "WebRTC signaling relay with a built-in WebSocket transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, port)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ./config.json)")
	root.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, fromFile, err := config.Load(configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}
	if !fromFile {
		logger.Info("no config file found, using default configuration")
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}

	// Core wiring: transport server accepts sockets, hub wraps each in a
	// client and routes its messages.
	hub := signaling.NewHub(logger)
	ws := websocket.NewServer(logger)
	ws.OnConnection(func(conn *websocket.Conn) {
		hub.AddConnection(conn)
	})

	router := server.NewRouter(cfg, hub, ws, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	protocol := "http"
	useTLS := false
	if cfg.Server.HTTPS.Enabled {
		if _, err := os.Stat(cfg.Server.HTTPS.CertFile); err != nil {
			logger.Error("failed to load TLS certificates, falling back to HTTP", "error", err)
		} else {
			protocol = "https"
			useTLS = true
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("signaling server listening",
			"addr", cfg.Server.Addr(),
			"protocol", protocol,
			"lan_url", fmt.Sprintf("%s://%s:%d", protocol, server.LocalIPAddress(), cfg.Server.Port))
		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS(cfg.Server.HTTPS.CertFile, cfg.Server.HTTPS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return err
	}

	// Teardown order: rooms and clients first, then tracked transport
	// connections, and only then the listening socket.
	hub.Close()
	ws.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	return nil
}
