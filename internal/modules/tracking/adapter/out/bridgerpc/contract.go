// Package bridgerpc is the gRPC contract between arrivalwatch and an
// out-of-process location bridge served through hashicorp/go-plugin.
package bridgerpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey = "location"

	serviceName             = "arrivalwatch.bridge.v1.LocationBridge"
	jsonCodecName           = "json"
	methodGetMetadata       = "/" + serviceName + "/GetMetadata"
	methodRequestPermission = "/" + serviceName + "/RequestPermission"
	methodCurrentFix        = "/" + serviceName + "/CurrentFix"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ARRIVALWATCH_BRIDGE",
	MagicCookieValue: "arrivalwatch",
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
	Source  string `json:"source"`
}

type PermissionRequest struct {
	Scope string `json:"scope"`
}

type PermissionResponse struct {
	Status string `json:"status"`
}

type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedMPS  float64 `json:"speed_mps"`
	AccuracyM float64 `json:"accuracy_m"`
	// UnixMillis is the fix time in milliseconds since the epoch.
	UnixMillis int64 `json:"unix_millis"`
}

type LocationBridgeServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	RequestPermission(ctx context.Context, in *PermissionRequest) (*PermissionResponse, error)
	CurrentFix(ctx context.Context, in *Empty) (*Fix, error)
}

type LocationBridgeClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	RequestPermission(ctx context.Context, in *PermissionRequest) (*PermissionResponse, error)
	CurrentFix(ctx context.Context) (*Fix, error)
}

type locationBridgeClient struct {
	conn *grpc.ClientConn
}

func NewLocationBridgeClient(conn *grpc.ClientConn) LocationBridgeClient {
	return &locationBridgeClient{conn: conn}
}

func (c *locationBridgeClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *locationBridgeClient) RequestPermission(ctx context.Context, in *PermissionRequest) (*PermissionResponse, error) {
	out := &PermissionResponse{}
	if err := c.conn.Invoke(ctx, methodRequestPermission, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *locationBridgeClient) CurrentFix(ctx context.Context) (*Fix, error) {
	out := &Fix{}
	if err := c.conn.Invoke(ctx, methodCurrentFix, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// unary builds a method handler decoding into a fresh Req.
func unary[Req any, Resp any](method string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*Req)
			if !ok {
				return nil, fmt.Errorf("invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterLocationBridgeServer(server grpc.ServiceRegistrar, impl LocationBridgeServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*LocationBridgeServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetMetadata", Handler: unary(methodGetMetadata, impl.GetMetadata)},
			{MethodName: "RequestPermission", Handler: unary(methodRequestPermission, impl.RequestPermission)},
			{MethodName: "CurrentFix", Handler: unary(methodCurrentFix, impl.CurrentFix)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "bridge-rpc-v1",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl LocationBridgeServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterLocationBridgeServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewLocationBridgeClient(conn), nil
}

func PluginMap(impl LocationBridgeServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
