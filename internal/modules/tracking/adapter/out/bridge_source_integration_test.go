package out_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	trackingadapter "arrivalwatch/internal/modules/tracking/adapter/out"
	"arrivalwatch/internal/modules/tracking/domain"
	"arrivalwatch/internal/platform/geo"
)

func TestBridgeSourceIntegrationReplayBridge(t *testing.T) {
	binPath := buildReplayBridge(t)
	trackPath := filepath.Join(t.TempDir(), "commute.csv")
	csv := "timestamp,latitude,longitude,speed_mps,accuracy_m\n" +
		"2026-03-02T07:30:00Z,52.5300,13.4050,4.0,6\n" +
		"2026-03-02T07:40:00Z,52.5200,13.4050,4.0,6\n"
	if err := os.WriteFile(trackPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	source, err := trackingadapter.OpenBridgeSource(ctx, binPath, []string{
		"ARRIVALWATCH_BRIDGE_TRACK=" + trackPath,
		"ARRIVALWATCH_BRIDGE_BACKGROUND=denied",
	}, nil)
	if err != nil {
		t.Fatalf("open bridge: %v", err)
	}
	defer source.Close()

	if meta := source.Metadata(); meta.Name != "replaybridge" || meta.Source != trackPath {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	fg, err := source.Permission(ctx, trackingadapter.ScopeForeground)
	if err != nil || fg != domain.PermissionGranted {
		t.Fatalf("foreground permission = %v, %v", fg, err)
	}
	bg, err := source.Permission(ctx, trackingadapter.ScopeBackground)
	if err != nil || bg != domain.PermissionDenied {
		t.Fatalf("background permission = %v, %v", bg, err)
	}

	fix, err := source.Fix(ctx)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if d := geo.DistanceM(fix.Latitude, fix.Longitude, 52.53, 13.405); d > 50 {
		t.Fatalf("expected fix near track start, got %.1f m away", d)
	}
	if fix.AccuracyM != 6 {
		t.Fatalf("unexpected accuracy: %v", fix.AccuracyM)
	}
}

func buildReplayBridge(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "replaybridge")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/replaybridge")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build replay bridge: %v\n%s", err, string(out))
	}
	return binPath
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
