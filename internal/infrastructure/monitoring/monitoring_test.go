package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"camrelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RelayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.StreamStarted()
	c.StreamStarted()
	c.StreamEnded("idle")
	c.SpawnFailed()
	c.ViewerAttached()
	c.ViewerAttached()
	c.ViewerDetached()
	c.ViewerDropped()
	c.BytesRelayed(1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transcoderSpawns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.spawnFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamEnds.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.viewersConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.viewersDropped))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.bytesRelayed))
}

func TestPrometheusCollector_Diagnostics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ObserveDiagnostics(domain.DiagnosticsSuccess, 300*time.Millisecond)
	c.ObserveDiagnostics(domain.DiagnosticsFailure, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.diagnosticsRuns.WithLabelValues(string(domain.DiagnosticsSuccess))))
	count, err := testutil.GatherAndCount(reg, "camrelay_diagnostics_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddRepositoryCheck(func(ctx context.Context) error { return nil }, time.Second)
	h.AddFFmpegCheckWith("ffmpeg", func(string) (string, error) { return "/usr/bin/ffmpeg", nil }, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Checks["ffmpeg"])
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }, time.Second)
	status = h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Checks["redis"])
	assert.Equal(t, StatusHealthy, status.Checks["repository"])
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 20*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Contains(t, status.Checks["slow"], "deadline")
}

func TestFFmpegCheck_Missing(t *testing.T) {
	h := NewHealthChecker()
	h.AddFFmpegCheckWith("/nope/ffmpeg", func(string) (string, error) { return "", errors.New("not found") }, time.Second)
	assert.False(t, h.IsReady(context.Background()))
}
