// Command replaybridge is a location bridge plugin serving fixes from a
// recorded CSV track, or from a synthesized approach when no track is set.
//
// Environment:
//
//	ARRIVALWATCH_BRIDGE_TRACK       path to a track CSV
//	ARRIVALWATCH_BRIDGE_TARGET      "lat,lon" approached by the synthesized track
//	ARRIVALWATCH_BRIDGE_SPEEDUP     replay speed factor, default 1
//	ARRIVALWATCH_BRIDGE_BACKGROUND  "denied" to refuse background permission
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-plugin"

	"arrivalwatch/internal/modules/tracking/adapter/out/bridgerpc"
	"arrivalwatch/internal/platform/geo"
	"arrivalwatch/internal/platform/track"
)

const (
	envTrack      = "ARRIVALWATCH_BRIDGE_TRACK"
	envTarget     = "ARRIVALWATCH_BRIDGE_TARGET"
	envSpeedup    = "ARRIVALWATCH_BRIDGE_SPEEDUP"
	envBackground = "ARRIVALWATCH_BRIDGE_BACKGROUND"

	synthesizedStartM = 3000
	synthesizedSpeed  = 8.0
)

type server struct {
	replay     *track.Replay
	source     string
	background string
}

func (s *server) GetMetadata(_ context.Context, _ *bridgerpc.Empty) (*bridgerpc.Metadata, error) {
	return &bridgerpc.Metadata{Name: "replaybridge", Version: "1.0.0", Source: s.source}, nil
}

func (s *server) RequestPermission(_ context.Context, in *bridgerpc.PermissionRequest) (*bridgerpc.PermissionResponse, error) {
	switch in.Scope {
	case "foreground":
		return &bridgerpc.PermissionResponse{Status: "granted"}, nil
	case "background":
		return &bridgerpc.PermissionResponse{Status: s.background}, nil
	default:
		return nil, fmt.Errorf("unknown permission scope: %s", in.Scope)
	}
}

func (s *server) CurrentFix(_ context.Context, _ *bridgerpc.Empty) (*bridgerpc.Fix, error) {
	p := s.replay.At(time.Now())
	return &bridgerpc.Fix{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		SpeedMPS:   p.SpeedMPS,
		AccuracyM:  p.AccuracyM,
		UnixMillis: p.Timestamp.UnixMilli(),
	}, nil
}

func newServer() (*server, error) {
	factor := 1.0
	if raw := strings.TrimSpace(os.Getenv(envSpeedup)); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid %s: %q", envSpeedup, raw)
		}
		factor = parsed
	}

	var (
		points []track.Point
		source string
	)
	if path := strings.TrimSpace(os.Getenv(envTrack)); path != "" {
		loaded, err := track.Load(path)
		if err != nil {
			return nil, err
		}
		points, source = loaded, path
	} else {
		lat, lon, err := parseTarget(os.Getenv(envTarget))
		if err != nil {
			return nil, err
		}
		startLat, startLon := geo.Offset(lat, lon, synthesizedStartM, 0)
		points = track.Synthesize(startLat, startLon, lat, lon, synthesizedSpeed, 5*time.Second, time.Now())
		source = "synthesized"
	}
	replay, err := track.NewReplay(points, time.Now(), factor)
	if err != nil {
		return nil, err
	}
	background := "granted"
	if strings.EqualFold(os.Getenv(envBackground), "denied") {
		background = "denied"
	}
	return &server{replay: replay, source: source, background: background}, nil
}

func parseTarget(raw string) (float64, float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 52.5200, 13.4050, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid %s: %q", envTarget, raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s latitude: %w", envTarget, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s longitude: %w", envTarget, err)
	}
	return lat, lon, nil
}

func main() {
	impl, err := newServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: bridgerpc.HandshakeConfig,
		Plugins:         bridgerpc.PluginMap(impl),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
