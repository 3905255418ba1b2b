package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/entityscan/internal/config"
	"github.com/dshills/entityscan/internal/mcp"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Expose analyze_file, analyze_text and scan_directory as MCP tools over
stdin/stdout. Logs go to stderr. With --metrics-addr, Prometheus metrics are
served over HTTP at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := map[string]string{"metrics-addr": config.KeyMetricsAddr}
			for name, key := range analysisFlagKeys {
				keys[name] = key
			}
			if err := a.bindFlags(cmd, keys); err != nil {
				return err
			}

			rt, err := a.setup(cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			srv, err := mcp.NewServer(rt.engine, rt.analyzerOptions())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if addr := rt.cfg.Metrics.Addr; addr != "" {
				stop, err := serveMetrics(ctx, addr, rt)
				if err != nil {
					return err
				}
				defer stop()
			}

			rt.logger.Info("serving", zap.String("version", Version))
			return srv.Serve(ctx)
		},
	}

	addAnalysisFlags(cmd.Flags())
	cmd.Flags().String("metrics-addr", "", "listen address for /metrics, e.g. :9090")
	return cmd
}

// serveMetrics starts the metrics listener and returns a function that shuts
// it down
func serveMetrics(ctx context.Context, addr string, rt *session) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	rt.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}, nil
}
