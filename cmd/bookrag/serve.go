package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/server"
)

var (
	servePort        int
	serveHost        string
	serveEnableIndex bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API used by the chatbot widget on the book site.

Endpoints:
  POST /embed    - Embed a query
  POST /search   - Search the book
  POST /index    - Index a path under BOOK_DIR (only with --enable-index)
  GET  /stats    - Collection statistics
  GET  /health   - Health check (?deep=1 also checks Qdrant)
  GET  /metrics  - Prometheus metrics

Examples:
  bookrag serve
  bookrag serve --port 8080
  bookrag serve --host 0.0.0.0`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: $PORT or 8000)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: $HOST or 127.0.0.1)")
	serveCmd.Flags().BoolVar(&serveEnableIndex, "enable-index", false, "Expose POST /index (default: $INDEX_API_ENABLED)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.svc.Close()

	cfg := server.Config{
		Host:        a.cfg.Host,
		Port:        a.cfg.Port,
		EnableIndex: a.cfg.IndexAPIEnabled || serveEnableIndex,
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	srv := server.New(a.svc, cfg)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	fmt.Printf("bookrag listening on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	return g.Wait()
}
