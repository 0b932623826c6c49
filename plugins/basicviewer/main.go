package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"readingroom/internal/modules/reader/adapter/out/viewerrpc"
	"readingroom/internal/platform/id"

	"github.com/hashicorp/go-plugin"
)

const (
	// commandEnv overrides the launcher; "none" opens nothing.
	commandEnv = "READINGROOM_VIEWER_COMMAND"
	// telemetryEnv names a file whose last line is the newest scroll message.
	telemetryEnv = "READINGROOM_VIEWER_TELEMETRY"
)

type viewer struct {
	documentID string
	cmd        *exec.Cmd
}

type server struct {
	mu      sync.Mutex
	viewers map[string]*viewer
}

func (s *server) GetMetadata(_ context.Context, _ *viewerrpc.Empty) (*viewerrpc.Metadata, error) {
	return &viewerrpc.Metadata{
		Name:      "basicviewer",
		Version:   "1.0.0",
		Telemetry: os.Getenv(telemetryEnv) != "",
	}, nil
}

func (s *server) Open(_ context.Context, in *viewerrpc.OpenRequest) (*viewerrpc.OpenResponse, error) {
	if strings.TrimSpace(in.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}
	cmd, err := launcher(in.URL)
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("launch viewer: %w", err)
		}
		go func() { _ = cmd.Wait() }()
	}
	viewerID := id.UUID{}.New()
	s.mu.Lock()
	s.viewers[viewerID] = &viewer{documentID: in.DocumentID, cmd: cmd}
	s.mu.Unlock()
	return &viewerrpc.OpenResponse{ViewerID: viewerID}, nil
}

func (s *server) Telemetry(_ context.Context, in *viewerrpc.TelemetryRequest) (*viewerrpc.TelemetryResponse, error) {
	s.mu.Lock()
	_, ok := s.viewers[in.ViewerID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown viewer: %s", in.ViewerID)
	}
	path := os.Getenv(telemetryEnv)
	if path == "" {
		return &viewerrpc.TelemetryResponse{}, nil
	}
	msg, found, err := lastMessage(path)
	if err != nil {
		return nil, err
	}
	return &viewerrpc.TelemetryResponse{Has: found, Message: msg}, nil
}

func (s *server) Close(_ context.Context, in *viewerrpc.CloseRequest) (*viewerrpc.Empty, error) {
	s.mu.Lock()
	delete(s.viewers, in.ViewerID)
	s.mu.Unlock()
	return &viewerrpc.Empty{}, nil
}

func launcher(target string) (*exec.Cmd, error) {
	if custom := strings.TrimSpace(os.Getenv(commandEnv)); custom != "" {
		if custom == "none" {
			return nil, nil
		}
		fields := strings.Fields(custom)
		return exec.Command(fields[0], append(fields[1:], target)...), nil
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux":
		return exec.Command("xdg-open", target), nil
	default:
		return nil, fmt.Errorf("basic viewer is not supported on %s", runtime.GOOS)
	}
}

func lastMessage(path string) (viewerrpc.ScrollMessage, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return viewerrpc.ScrollMessage{}, false, nil
		}
		return viewerrpc.ScrollMessage{}, false, fmt.Errorf("read telemetry: %w", err)
	}
	var last []byte
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if len(last) == 0 {
		return viewerrpc.ScrollMessage{}, false, nil
	}
	msg := viewerrpc.ScrollMessage{}
	if err := json.Unmarshal(last, &msg); err != nil {
		return viewerrpc.ScrollMessage{}, false, fmt.Errorf("decode telemetry: %w", err)
	}
	return msg, true, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: viewerrpc.HandshakeConfig,
		Plugins:         viewerrpc.PluginMap(&server{viewers: map[string]*viewer{}}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
