package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoop(t *testing.T) {
	c, err := NewService(DefaultConfig())
	require.NoError(t, err)

	_, ok := c.(*noopCollector)
	assert.True(t, ok)
	assert.NoError(t, c.Record(context.Background(), Observation{Entity: "a"}))
	assert.NoError(t, c.Flush(context.Background(), time.Now()))
	assert.NoError(t, c.Close())
}

func TestEnabledRequiresTextfile(t *testing.T) {
	_, err := NewService(Config{Enabled: true})
	assert.True(t, errors.HasCode(err, errors.ErrInitMetrics))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestRecordAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "followerctl.prom")
	c, err := NewService(Config{Enabled: true, TextfilePath: path})
	require.NoError(t, err)
	s := c.(*service)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, Observation{Entity: "bilibili_a", Count: 130, Delta: 30}))
	require.NoError(t, c.Record(ctx, Observation{Entity: "xiaoyuzhou_b", Count: 0, Delta: -50, ZeroCount: true}))
	require.NoError(t, c.Record(ctx, Observation{Entity: "broken", Failed: true}))

	assert.Equal(t, 130.0, testutil.ToFloat64(s.followers.WithLabelValues("bilibili_a")))
	assert.Equal(t, 30.0, testutil.ToFloat64(s.delta.WithLabelValues("bilibili_a")))
	assert.Equal(t, -50.0, testutil.ToFloat64(s.delta.WithLabelValues("xiaoyuzhou_b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.zeroSamples.WithLabelValues("xiaoyuzhou_b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.updateErrors.WithLabelValues("broken")))

	at := time.Unix(1773480600, 0)
	require.NoError(t, c.Flush(ctx, at))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(s.lastRun))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `followerctl_followers{entity="bilibili_a"} 130`)
	assert.Contains(t, string(data), `followerctl_followers_delta{entity="xiaoyuzhou_b"} -50`)
	assert.Contains(t, string(data), "followerctl_last_run_timestamp_seconds")
}

func TestRecordCancelled(t *testing.T) {
	c, err := NewService(Config{Enabled: true, TextfilePath: filepath.Join(t.TempDir(), "m.prom")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.HasCode(c.Record(ctx, Observation{Entity: "a"}), errors.ErrTimeout))
}
