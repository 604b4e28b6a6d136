package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"LiveCounter/pkg/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, script string) (*Supervisor, *scriptRenderer) {
	r := newScriptRenderer(t, script)
	return NewSupervisor(r, 100*time.Millisecond, 2*time.Second, 2*time.Second), r
}

func TestLaunchAndGracefulStop(t *testing.T) {
	sup, r := newTestSupervisor(t, scriptHealthy)
	h, err := sup.Launch(context.Background(), 12, render.Assets{})
	require.NoError(t, err)
	assert.True(t, sup.IsAlive(h))
	assert.Equal(t, 12, h.Value())
	assert.Equal(t, []int{h.PID()}, r.pids(t))

	stats, err := sup.Stats(h)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.CPUPercent, 0.0)

	forced := sup.Stop(h, time.Second)
	assert.False(t, forced)
	assert.False(t, sup.IsAlive(h))
	assert.True(t, h.Exited())
	r.requireNoneAlive(t)

	// stopping twice is a no-op
	assert.False(t, sup.Stop(h, time.Second))
	assert.False(t, sup.Stop(nil, time.Second))
}

func TestLaunchFailureCapturesOutput(t *testing.T) {
	sup, r := newTestSupervisor(t, scriptCrash)
	_, err := sup.Launch(context.Background(), 1, render.Assets{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "code 3")
	r.requireNoneAlive(t)
}

func TestLaunchMissingBinary(t *testing.T) {
	sup := NewSupervisor(staticRenderer{argv: []string{"/nonexistent/ffmpeg"}}, 100*time.Millisecond, time.Second, time.Second)
	_, err := sup.Launch(context.Background(), 1, render.Assets{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
}

func TestStopUnresponsiveProcess(t *testing.T) {
	sup, r := newTestSupervisor(t, scriptUnresponsive)
	h, err := sup.Launch(context.Background(), 1, render.Assets{})
	require.NoError(t, err)

	start := time.Now()
	forced := sup.Stop(h, 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, forced)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond+2*time.Second)
	assert.False(t, sup.IsAlive(h))
	r.requireNoneAlive(t)
}

func TestLaunchCancelledDuringGrace(t *testing.T) {
	r := newScriptRenderer(t, scriptHealthy)
	sup := NewSupervisor(r, 5*time.Second, 2*time.Second, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := sup.Launch(ctx, 1, render.Assets{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
	assert.Less(t, time.Since(start), 3*time.Second)
	r.requireNoneAlive(t)
}

func TestProbe(t *testing.T) {
	sup := NewSupervisor(staticRenderer{probe: []string{"sh", "-c", "echo pushed; exit 0"}}, 0, time.Second, 2*time.Second)
	res, err := sup.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)

	sup = NewSupervisor(staticRenderer{probe: []string{"sh", "-c", "echo 'connection refused' >&2; exit 1"}}, 0, time.Second, 2*time.Second)
	res, err = sup.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Output, "connection refused")
}

func TestProbeTimeout(t *testing.T) {
	sup := NewSupervisor(staticRenderer{probe: []string{"sleep", "10"}}, 0, time.Second, 200*time.Millisecond)
	start := time.Now()
	_, err := sup.Probe(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLaunchFailed))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)
	b.Write([]byte("hello "))
	b.Write([]byte("world"))
	assert.Equal(t, "lo world", b.String())

	b.Write([]byte(strings.Repeat("x", 20) + "12345678"))
	assert.Equal(t, "12345678", b.String())
}

type staticRenderer struct {
	argv  []string
	probe []string
}

func (s staticRenderer) StreamCommand(int, render.Assets) []string { return s.argv }
func (s staticRenderer) ProbeCommand() []string                    { return s.probe }
