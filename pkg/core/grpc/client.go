package grpc

import (
	"context"
	"time"

	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ClientConfig holds gRPC client configuration
type ClientConfig struct {
	Target         string
	Timeout        time.Duration
	MaxRecvMsgSize int

	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration

	// Block makes Dial wait up to Timeout for the connection to be ready
	Block bool
}

// DefaultClientConfig returns a default client configuration
func DefaultClientConfig(target string) ClientConfig {
	return ClientConfig{
		Target:            target,
		Timeout:           10 * time.Second,
		MaxRecvMsgSize:    4 << 20,
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
	}
}

// Dial creates a client connection. The connection is plaintext; request ids
// are propagated on unary and streaming calls.
func Dial(cfg ClientConfig, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(
			ClientRequestIDInterceptor(),
			ClientLoggingInterceptor(),
		),
		grpc.WithChainStreamInterceptor(
			ClientStreamRequestIDInterceptor(),
			ClientStreamLoggingInterceptor(),
		),
	}

	conn, err := grpc.NewClient(cfg.Target, append(dialOpts, opts...)...)
	if err != nil {
		return nil, mdwerrors.Wrap(err, "failed to dial "+cfg.Target).
			WithCode(mdwerrors.CodeConnectFailed).
			WithOperation("grpc.Dial")
	}

	if cfg.Block {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := WaitForReady(ctx, conn); err != nil {
			conn.Close()
			return nil, mdwerrors.Wrap(err, "failed to connect to "+cfg.Target).
				WithCode(mdwerrors.CodeConnectFailed).
				WithOperation("grpc.Dial")
		}
	}

	return conn, nil
}

// WaitForReady blocks until the connection is ready or ctx expires
func WaitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}
