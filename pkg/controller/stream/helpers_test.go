package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"LiveCounter/pkg/render"
	"LiveCounter/pkg/source"

	"github.com/stretchr/testify/require"
)

const (
	scriptHealthy      = "exec sleep 30"
	scriptUnresponsive = "trap '' TERM; exec sleep 30"
	scriptCrash        = "echo boom >&2; exit 3"
)

// scriptRenderer runs a shell script in place of ffmpeg. Every launched
// process appends its pid to pidFile, so tests can check none survive.
type scriptRenderer struct {
	pidFile string
	script  atomic.Value // string
	probe   []string
}

func newScriptRenderer(t *testing.T, script string) *scriptRenderer {
	r := &scriptRenderer{
		pidFile: filepath.Join(t.TempDir(), "pids"),
		probe:   []string{"sh", "-c", "exit 0"},
	}
	r.script.Store(script)
	return r
}

func (r *scriptRenderer) setScript(script string) {
	r.script.Store(script)
}

func (r *scriptRenderer) StreamCommand(value int, assets render.Assets) []string {
	return []string{"sh", "-c", fmt.Sprintf("echo $$ >> %s; %s", r.pidFile, r.script.Load().(string))}
}

func (r *scriptRenderer) ProbeCommand() []string {
	return r.probe
}

func (r *scriptRenderer) pids(t *testing.T) []int {
	data, err := os.ReadFile(r.pidFile)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	return pids
}

func (r *scriptRenderer) alive(t *testing.T) []int {
	var alive []int
	for _, pid := range r.pids(t) {
		if syscall.Kill(pid, 0) == nil {
			alive = append(alive, pid)
		}
	}
	return alive
}

// requireNoneAlive waits until every launched process has been reaped.
func (r *scriptRenderer) requireNoneAlive(t *testing.T) {
	require.Eventually(t, func() bool {
		return len(r.alive(t)) == 0
	}, 5*time.Second, 20*time.Millisecond, "render processes still alive: %v", r.alive(t))
}

// counter is a controllable metric source.
type counter struct {
	value atomic.Int64
	fail  atomic.Bool
	calls atomic.Int64
}

func newCounter(v int) *counter {
	c := &counter{}
	c.value.Store(int64(v))
	return c
}

func (c *counter) FetchMetric(ctx context.Context) (int, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return 0, fmt.Errorf("quota exceeded")
	}
	return int(c.value.Load()), nil
}

var _ source.MetricSource = (*counter)(nil)

type testRig struct {
	ctrl     *Controller
	renderer *scriptRenderer
	src      *counter
	cache    *MetricCache
	sup      *Supervisor
}

func testOptions() Options {
	return Options{
		StopTimeout:  500 * time.Millisecond,
		Cadence:      50 * time.Millisecond,
		MaxAge:       50 * time.Millisecond,
		LoopExitWait: 3 * time.Second,
	}
}

func newTestRig(t *testing.T, script string, opts Options) *testRig {
	rig := &testRig{
		renderer: newScriptRenderer(t, script),
		src:      newCounter(42),
	}
	rig.cache = NewMetricCache(rig.src, 20*time.Millisecond, time.Second, time.Second)
	rig.sup = NewSupervisor(rig.renderer, 100*time.Millisecond, 2*time.Second, 2*time.Second)
	flags := ConfigFlags{
		HasStreamKey:  true,
		StreamKeyHint: "abcd...",
		RTMPURL:       "rtmp://localhost/live",
		Cadence:       opts.Cadence,
		StopTimeout:   opts.StopTimeout,
	}
	rig.ctrl = NewController(rig.cache, rig.sup, nil, flags, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rig.ctrl.Shutdown(ctx)
		rig.cache.Stop()
		rig.renderer.requireNoneAlive(t)
	})
	return rig
}
