package transport

import (
	"context"
	"time"

	"github.com/mnehpets/typedrpc/jsonrpc"
	"go.uber.org/zap"
)

// Logged wraps next so that every batch is logged: methods and latency at
// debug level, transport failures at warn level. Replies and errors are
// returned unchanged.
func Logged(next jsonrpc.Transport, logger *zap.Logger) jsonrpc.Transport {
	if logger == nil {
		return next
	}
	return jsonrpc.TransportFunc(func(ctx context.Context, requests []jsonrpc.Request) ([]jsonrpc.Reply, error) {
		start := time.Now()
		replies, err := next.Call(ctx, requests)

		methods := make([]string, 0, len(requests))
		for _, r := range requests {
			methods = append(methods, r.Method)
		}
		fields := []zap.Field{
			zap.Strings("methods", methods),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc call failed", append(fields, zap.Error(err))...)
			return replies, err
		}

		errorReplies := 0
		for _, r := range replies {
			if jsonrpc.IsErrorReply(r) {
				errorReplies++
			}
		}
		logger.Debug("rpc call",
			append(fields, zap.Int("replies", len(replies)), zap.Int("error_replies", errorReplies))...)
		return replies, nil
	})
}
