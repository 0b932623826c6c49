package in

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"time"

	"readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"

	hclog "github.com/hashicorp/go-hclog"
)

const relayService = "Reader"

// RelayServer accepts scroll telemetry from external viewers over a unix
// socket and routes it to the mounted view for the document.
type RelayServer struct {
	usecase readerin.Usecase
	logger  hclog.Logger
}

type RelayClient struct{}

func NewRelayServer(usecase readerin.Usecase, logger hclog.Logger) *RelayServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RelayServer{usecase: usecase, logger: logger.Named("relay")}
}

func NewRelayClient() *RelayClient {
	return &RelayClient{}
}

type PostScrollReq struct {
	DocumentID string
	Message    dto.TelemetryMessage
}

type PostScrollResp struct {
	Delivered bool
}

type relayHandler struct {
	usecase readerin.Usecase
	logger  hclog.Logger
}

func (h *relayHandler) PostScroll(req PostScrollReq, resp *PostScrollResp) error {
	result, err := h.usecase.RelayTelemetry(context.Background(), dto.TelemetryEnvelope{DocumentID: req.DocumentID, Message: req.Message})
	if err != nil {
		h.logger.Debug("relay rejected", "document", req.DocumentID, "error", err)
		return err
	}
	resp.Delivered = result.Delivered
	return nil
}

// Serve blocks until ctx is cancelled. A stale socket file is replaced.
func (s *RelayServer) Serve(ctx context.Context, socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create relay dir: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale relay socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen relay socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod relay socket: %w", err)
	}
	defer ln.Close()

	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName(relayService, &relayHandler{usecase: s.usecase, logger: s.logger}); err != nil {
		return fmt.Errorf("register relay handler: %w", err)
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	s.logger.Info("relay listening", "socket", socketPath)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go rpcSrv.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

func (c *RelayClient) PostScroll(ctx context.Context, socketPath string, envelope dto.TelemetryEnvelope) (dto.RelayResult, error) {
	client, err := dialRelay(ctx, socketPath)
	if err != nil {
		return dto.RelayResult{}, err
	}
	defer client.Close()
	resp := PostScrollResp{}
	if err := client.Call(relayService+".PostScroll", PostScrollReq{DocumentID: envelope.DocumentID, Message: envelope.Message}, &resp); err != nil {
		return dto.RelayResult{}, err
	}
	return dto.RelayResult{Delivered: resp.Delivered}, nil
}

func dialRelay(ctx context.Context, socketPath string) (*rpc.Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial relay socket: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	return rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn)), nil
}
