package viewerrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "viewer"
	serviceName       = "readingroom.viewer.v1.Viewer"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodOpen        = "/" + serviceName + "/Open"
	methodTelemetry   = "/" + serviceName + "/Telemetry"
	methodClose       = "/" + serviceName + "/Close"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "READINGROOM_VIEWER",
	MagicCookieValue: "readingroom",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Telemetry reports whether the viewer emits scroll messages at all.
	Telemetry bool `json:"telemetry"`
}

type OpenRequest struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
}

type OpenResponse struct {
	ViewerID string `json:"viewer_id"`
}

type TelemetryRequest struct {
	ViewerID string `json:"viewer_id"`
}

// ScrollMessage mirrors the scroll telemetry posted by a viewer frame.
type ScrollMessage struct {
	Type         string   `json:"type"`
	ScrollTop    float64  `json:"scrollTop"`
	ScrollHeight float64  `json:"scrollHeight"`
	ClientHeight float64  `json:"clientHeight"`
	Progress     *float64 `json:"progress,omitempty"`
}

type TelemetryResponse struct {
	Has     bool          `json:"has"`
	Message ScrollMessage `json:"message"`
}

type CloseRequest struct {
	ViewerID string `json:"viewer_id"`
}

type ViewerServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	Open(ctx context.Context, in *OpenRequest) (*OpenResponse, error)
	Telemetry(ctx context.Context, in *TelemetryRequest) (*TelemetryResponse, error)
	Close(ctx context.Context, in *CloseRequest) (*Empty, error)
}

type ViewerClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	Open(ctx context.Context, in *OpenRequest) (*OpenResponse, error)
	Telemetry(ctx context.Context, in *TelemetryRequest) (*TelemetryResponse, error)
	Close(ctx context.Context, in *CloseRequest) error
}

type viewerClient struct {
	conn *grpc.ClientConn
}

func NewViewerClient(conn *grpc.ClientConn) ViewerClient {
	return &viewerClient{conn: conn}
}

func (c *viewerClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *viewerClient) Open(ctx context.Context, in *OpenRequest) (*OpenResponse, error) {
	out := &OpenResponse{}
	if err := c.conn.Invoke(ctx, methodOpen, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *viewerClient) Telemetry(ctx context.Context, in *TelemetryRequest) (*TelemetryResponse, error) {
	out := &TelemetryResponse{}
	if err := c.conn.Invoke(ctx, methodTelemetry, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *viewerClient) Close(ctx context.Context, in *CloseRequest) error {
	return c.conn.Invoke(ctx, methodClose, in, &Empty{}, grpc.CallContentSubtype(jsonCodecName))
}

// unary builds a grpc.MethodDesc for a JSON request/response pair.
func unary[Req any, Resp any](name string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterViewerServer(server grpc.ServiceRegistrar, impl ViewerServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ViewerServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("GetMetadata", impl.GetMetadata),
			unary("Open", impl.Open),
			unary("Telemetry", impl.Telemetry),
			unary("Close", impl.Close),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "viewer-rpc-v1",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl ViewerServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterViewerServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewViewerClient(conn), nil
}

func PluginMap(impl ViewerServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
