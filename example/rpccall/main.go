// Command rpccall sends JSON-RPC calls described on the command line or in a
// file and prints the normalized replies.
//
// Settings come from .env files and TYPEDRPC_* environment variables; see
// package config.
//
//	rpccall call math.Add '{"a":1,"b":2}' --id 7
//	rpccall batch requests.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mnehpets/typedrpc/config"
	"github.com/mnehpets/typedrpc/jsonrpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

var (
	envFiles []string
	rpcURL   string
	id       int64
)

// batchEntry is one request in a batch file.
type batchEntry struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rawResponse = jsonrpc.Response[json.RawMessage, json.RawMessage]

func main() {
	rootCmd := &cobra.Command{
		Use:           "rpccall",
		Short:         "Send JSON-RPC calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "read settings from these .env files (default: .env if present)")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "url", "", "endpoint URL, overrides TYPEDRPC_URL")

	callCmd := &cobra.Command{
		Use:   "call METHOD [PARAMS_JSON]",
		Short: "Call one method",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCall,
	}
	callCmd.Flags().Int64Var(&id, "id", 1, "request id")

	batchCmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Send a batch read from a JSON file (an array of {id, method, params})",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(callCmd, batchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connect loads settings and opens the transport.
func connect(ctx context.Context) (*jsonrpc.Client, func(), error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if rpcURL != "" {
		cfg.URL = rpcURL
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	t, err := config.NewTransport(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := t.Close(); err != nil {
			logger.Warn("close transport", zap.Error(err))
		}
		logger.Sync()
	}
	return jsonrpc.NewClient(t), cleanup, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	var params *json.RawMessage
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return errors.New("params are not valid JSON")
		}
		if p := json.RawMessage(args[1]); !isNull(p) {
			params = &p
		}
	}

	c, cleanup, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	m := jsonrpc.DefineWithError[json.RawMessage, json.RawMessage, json.RawMessage](args[0])
	resp, err := jsonrpc.Call(cmd.Context(), c, id, m, params)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func runBatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	requests := batchRequests(entries)

	c, cleanup, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	replies, err := c.CallBatch(cmd.Context(), requests)
	if err != nil {
		return err
	}
	out := make([]*rawResponse, 0, len(replies))
	for i, r := range replies {
		resp, err := jsonrpc.Normalize[json.RawMessage, json.RawMessage](r)
		if err != nil {
			return fmt.Errorf("reply %d: %w", i, err)
		}
		out = append(out, resp)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// batchRequests builds the envelopes for a batch file. Missing and null
// params are both omitted.
func batchRequests(entries []batchEntry) []jsonrpc.Request {
	requests := make([]jsonrpc.Request, 0, len(entries))
	for _, e := range entries {
		var params any
		if !isNull(e.Params) {
			params = e.Params
		}
		requests = append(requests, jsonrpc.NewRequest(e.ID, e.Method, params))
	}
	return requests
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
