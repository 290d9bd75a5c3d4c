package out

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"arrivalwatch/internal/modules/tracking/adapter/out/bridgerpc"
	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/logging"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

type BridgeMetadata struct {
	Name    string
	Version string
	Source  string
}

// BridgeSource reads fixes from a location bridge plugin binary. The plugin
// process lives until Close.
type BridgeSource struct {
	client   *plugin.Client
	rpc      bridgerpc.LocationBridgeClient
	metadata BridgeMetadata
}

// OpenBridgeSource launches binary with env appended to the current
// environment and performs the plugin handshake.
func OpenBridgeSource(ctx context.Context, binary string, env []string, logger hclog.Logger) (*BridgeSource, error) {
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), env...)
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  bridgerpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          bridgerpc.PluginMap(nil),
		Cmd:              cmd,
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           logging.OrNull(logger).Named("bridge"),
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start bridge client: %w", err)
	}
	raw, err := rpcClient.Dispense(bridgerpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense bridge: %w", err)
	}
	typed, ok := raw.(bridgerpc.LocationBridgeClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("bridge rpc client type mismatch")
	}

	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	meta, err := typed.GetMetadata(callCtx)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("get bridge metadata: %w", err)
	}
	return &BridgeSource{
		client:   client,
		rpc:      typed,
		metadata: BridgeMetadata{Name: meta.Name, Version: meta.Version, Source: meta.Source},
	}, nil
}

func (s *BridgeSource) Metadata() BridgeMetadata {
	return s.metadata
}

func (s *BridgeSource) Permission(ctx context.Context, scope string) (domain.Permission, error) {
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	resp, err := s.rpc.RequestPermission(callCtx, &bridgerpc.PermissionRequest{Scope: scope})
	if err != nil {
		return domain.PermissionUndetermined, fmt.Errorf("request %s permission: %w", scope, err)
	}
	switch permission := domain.Permission(resp.Status); permission {
	case domain.PermissionGranted, domain.PermissionDenied, domain.PermissionUndetermined:
		return permission, nil
	default:
		return domain.PermissionUndetermined, fmt.Errorf("bridge returned unknown permission %q", resp.Status)
	}
}

func (s *BridgeSource) Fix(ctx context.Context) (domain.LocationSample, error) {
	callCtx, cancel := callContext(ctx, defaultCallTimeout)
	defer cancel()
	fix, err := s.rpc.CurrentFix(callCtx)
	if err != nil {
		return domain.LocationSample{}, fmt.Errorf("current fix: %w", err)
	}
	return domain.LocationSample{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		SpeedMPS:  fix.SpeedMPS,
		AccuracyM: fix.AccuracyM,
		Timestamp: time.UnixMilli(fix.UnixMillis).UTC(),
	}, nil
}

func (s *BridgeSource) Close() error {
	s.client.Kill()
	return nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
