package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/witanlabs/gridcmd/server"
	"github.com/witanlabs/gridcmd/session"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	serveToken   string
	serveIdleTTL time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over HTTP and a websocket playground",
	Long: `Run the gridcmd server.

Routes:
  GET    /healthz                  liveness, no auth
  POST   /v0/sessions              new session (empty, or multipart "file" upload)
  GET    /v0/sessions/{id}         session info and cells
  POST   /v0/sessions/{id}/exec    run one JSON command, returns the reward report
  GET    /v0/sessions/{id}/file    download the sheet as .xlsx
  DELETE /v0/sessions/{id}         end the session
  GET    /v0/ws[?session={id}]     websocket playground, one command per message

Behavior:
  - Every session has its own sheet; nothing is shared between sessions.
  - Sessions idle for longer than --idle-ttl are dropped.
  - With a token (--token or config server.token), /v0 requires
    "Authorization: Bearer <token>" or ?token=<token>.
  - SIGINT/SIGTERM shut the server down gracefully.

Examples:
  gridcmd serve
  gridcmd serve --addr 127.0.0.1:9000 --token s3cret`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config server.addr, else :8080)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token required on /v0 routes (default: config server.token)")
	serveCmd.Flags().DurationVar(&serveIdleTTL, "idle-ttl", 30*time.Minute, "Drop sessions idle for longer than this (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		addr = ":8080"
	}
	token := serveToken
	if token == "" {
		token = cfg.Server.Token
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, ln, token)
}

// serve runs the server on ln until ctx is done, then shuts it down.
func serve(ctx context.Context, ln net.Listener, token string) error {
	reg := session.NewRegistry(logger)
	srv := server.New(reg,
		server.WithLogger(logger),
		server.WithToken(token),
		server.WithWorkbookOptions(workbookOptions()),
	)
	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.Bool("auth", token != ""))
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if serveIdleTTL > 0 {
		g.Go(func() error {
			return srv.ExpireIdle(ctx, serveIdleTTL, min(serveIdleTTL, time.Minute))
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down", zap.Int("sessions", reg.Len()))
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
