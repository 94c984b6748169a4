// Command server serves math and echo methods over HTTP (/rpc) and
// WebSocket (/ws), and lists them at /methods.
//
// Sealing and bearer token verification are enabled by the same TYPEDRPC_*
// settings the client reads: SEAL_KEYS, and OIDC_ISSUER with CLIENT_ID as the
// expected audience.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mnehpets/typedrpc/auth"
	"github.com/mnehpets/typedrpc/config"
	"github.com/mnehpets/typedrpc/endpoint"
	"github.com/mnehpets/typedrpc/jsonrpc"
	"github.com/mnehpets/typedrpc/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type MathMethods struct{}

type BinaryParams struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (m *MathMethods) Add(ctx context.Context, p BinaryParams) (int, error) {
	return p.A + p.B, nil
}

func (m *MathMethods) Sub(ctx context.Context, p BinaryParams) (int, error) {
	return p.A - p.B, nil
}

func (m *MathMethods) Divide(ctx context.Context, p BinaryParams) (int, error) {
	if p.B == 0 {
		return 0, &jsonrpc.Error{Code: -32000, Message: "division by zero"}
	}
	return p.A / p.B, nil
}

type EchoParams struct {
	Text   string `json:"text"`
	Repeat int    `json:"repeat,omitempty"`
}

var Echo = jsonrpc.Define[EchoParams, string]("echo")

func echo(ctx context.Context, p EchoParams) (string, error) {
	if p.Repeat < 0 {
		return "", jsonrpc.NewError(jsonrpc.CodeInvalidParams, "repeat must not be negative")
	}
	if p.Repeat == 0 {
		return p.Text, nil
	}
	return strings.Repeat(p.Text, p.Repeat), nil
}

var (
	addr        string
	corsOrigins []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve example JSON-RPC methods",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	rootCmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allow browser calls from these origins")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var headerOpts []endpoint.HeadersOption
	if len(corsOrigins) > 0 {
		headerOpts = append(headerOpts, endpoint.WithCORS(&endpoint.CORSConfig{AllowedOrigins: corsOrigins, MaxAge: 600}))
	}
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithProcessors(endpoint.NewAPIHeaders(headerOpts...)),
	}
	if cfg.SealKeys != "" {
		sealer, err := cfg.Sealer()
		if err != nil {
			return err
		}
		opts = append(opts, server.WithSealer(sealer))
	}
	if cfg.OIDCIssuer != "" {
		v, err := auth.NewBearerVerifier(ctx, cfg.OIDCIssuer, cfg.ClientID)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithProcessors(v))
	}

	s := server.New(opts...)
	s.Register("math", &MathMethods{})
	server.Handle(s, Echo, echo)

	mux := http.NewServeMux()
	mux.Handle("/rpc", s.Handler())
	mux.Handle("/ws", s.WebSocketHandler())
	mux.Handle("/methods", endpoint.Handler(func(w http.ResponseWriter, r *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return &endpoint.JSONRenderer{Value: s.Methods()}, nil
	}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", addr), zap.Strings("methods", s.Methods()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
