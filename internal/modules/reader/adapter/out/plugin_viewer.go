package out

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"readingroom/internal/modules/reader/adapter/out/viewerrpc"
	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 2 * time.Second
)

// ViewerMetadata describes a viewer plugin binary.
type ViewerMetadata struct {
	Name      string
	Version   string
	Telemetry bool
}

// PluginViewer hosts an out-of-process basic viewer. Each Open starts its own
// plugin process, killed when the session is closed.
type PluginViewer struct {
	binary string
	logger hclog.Logger
}

func NewPluginViewer(binary string, logger hclog.Logger) *PluginViewer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &PluginViewer{binary: binary, logger: logger.Named("viewer")}
}

// Check starts the plugin and returns its metadata.
func (v *PluginViewer) Check(ctx context.Context) (ViewerMetadata, error) {
	client, closeFn, err := v.connect()
	if err != nil {
		return ViewerMetadata{}, err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return ViewerMetadata{}, fmt.Errorf("get metadata: %w", err)
	}
	return ViewerMetadata{Name: meta.Name, Version: meta.Version, Telemetry: meta.Telemetry}, nil
}

func (v *PluginViewer) Open(ctx context.Context, documentID, url string) (readerout.ViewerSession, error) {
	client, closeFn, err := v.connect()
	if err != nil {
		return nil, err
	}
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	opened, err := client.Open(callCtx, &viewerrpc.OpenRequest{DocumentID: documentID, URL: url})
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("open viewer: %w", err)
	}
	v.logger.Info("viewer opened", "document", documentID, "viewer_id", opened.ViewerID)
	return &pluginViewerSession{client: client, viewerID: opened.ViewerID, kill: closeFn, logger: v.logger}, nil
}

func (v *PluginViewer) connect() (viewerrpc.ViewerClient, func(), error) {
	if v.binary == "" {
		return nil, nil, fmt.Errorf("viewer plugin binary is not configured")
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  viewerrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          viewerrpc.PluginMap(nil),
		Cmd:              exec.Command(v.binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           v.logger.Named("plugin"),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start viewer plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(viewerrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense viewer plugin: %w", err)
	}
	typed, ok := raw.(viewerrpc.ViewerClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("viewer rpc client type mismatch")
	}
	return typed, closeFn, nil
}

type pluginViewerSession struct {
	client   viewerrpc.ViewerClient
	viewerID string
	logger   hclog.Logger

	once sync.Once
	kill func()
}

func (s *pluginViewerSession) Telemetry(ctx context.Context) (domain.TelemetryMessage, bool, error) {
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	resp, err := s.client.Telemetry(callCtx, &viewerrpc.TelemetryRequest{ViewerID: s.viewerID})
	if err != nil {
		return domain.TelemetryMessage{}, false, fmt.Errorf("viewer telemetry: %w", err)
	}
	if !resp.Has {
		return domain.TelemetryMessage{}, false, nil
	}
	return domain.TelemetryMessage{
		Type:         resp.Message.Type,
		ScrollTop:    resp.Message.ScrollTop,
		ScrollHeight: resp.Message.ScrollHeight,
		ClientHeight: resp.Message.ClientHeight,
		Progress:     resp.Message.Progress,
	}, true, nil
}

func (s *pluginViewerSession) Close() error {
	var err error
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultCallTimeout)
		defer cancel()
		if closeErr := s.client.Close(ctx, &viewerrpc.CloseRequest{ViewerID: s.viewerID}); closeErr != nil {
			err = fmt.Errorf("close viewer: %w", closeErr)
		}
		s.kill()
		s.logger.Debug("viewer closed", "viewer_id", s.viewerID)
	})
	return err
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
