package stream

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"LiveCounter/pkg/render"

	"github.com/pingcap-incubator/tinykv/log"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	outputTailSize = 4096
	// bounds how long Wait keeps copying output after the process is gone
	pipeWaitDelay = time.Second
)

// Renderer builds the argv of the render/stream process.
type Renderer interface {
	StreamCommand(value int, assets render.Assets) []string
	ProbeCommand() []string
}

// ProcessHandle is a running render/stream process. It is released by Stop
// or when the process exits, after which IsAlive reports false.
type ProcessHandle struct {
	pid       int
	value     int
	startedAt time.Time
	cmd       *exec.Cmd
	output    *tailBuffer

	done     chan struct{}
	exitErr  error
	released atomic.Bool
	stopOnce sync.Mutex
}

func (h *ProcessHandle) PID() int             { return h.pid }
func (h *ProcessHandle) Value() int           { return h.value }
func (h *ProcessHandle) StartedAt() time.Time { return h.startedAt }

// Exited reports whether the process has terminated.
func (h *ProcessHandle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Output returns the tail of the process diagnostic output.
func (h *ProcessHandle) Output() string {
	return h.output.String()
}

// ProcessStats is a load sample of the render process.
type ProcessStats struct {
	CPUPercent float64
	RSSBytes   uint64
}

// ProbeResult is the outcome of a connectivity test.
type ProbeResult struct {
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
}

// Supervisor owns the lifecycle of the render/stream process. It does not
// enforce single ownership; the Controller does.
type Supervisor struct {
	renderer     Renderer
	graceWait    time.Duration
	killTimeout  time.Duration
	probeTimeout time.Duration
}

func NewSupervisor(renderer Renderer, graceWait, killTimeout, probeTimeout time.Duration) *Supervisor {
	return &Supervisor{
		renderer:     renderer,
		graceWait:    graceWait,
		killTimeout:  killTimeout,
		probeTimeout: probeTimeout,
	}
}

// Launch starts the render process for value and checks it survives the
// grace period. If it exits early the captured output is returned in a
// LaunchFailed error. Cancelling ctx during the grace wait stops the process.
func (s *Supervisor) Launch(ctx context.Context, value int, assets render.Assets) (*ProcessHandle, error) {
	argv := s.renderer.StreamCommand(value, assets)
	if len(argv) == 0 {
		return nil, newError(KindLaunchFailed, "empty render command")
	}
	out := newTailBuffer(outputTailSize)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = pipeWaitDelay
	if err := cmd.Start(); err != nil {
		return nil, wrapError(KindLaunchFailed, err, "failed to start render process")
	}

	h := &ProcessHandle{
		pid:       cmd.Process.Pid,
		value:     value,
		startedAt: time.Now(),
		cmd:       cmd,
		output:    out,
		done:      make(chan struct{}),
	}
	go func() {
		h.exitErr = cmd.Wait()
		close(h.done)
	}()
	log.Infof("[supervisor] render process started pid=%d value=%s", h.pid, render.OverlayText(value))

	timer := time.NewTimer(s.graceWait)
	defer timer.Stop()
	select {
	case <-h.done:
		h.released.Store(true)
		code := exitCode(h.exitErr)
		log.Errorf("[supervisor] render process pid=%d exited during grace period, code=%d\n%s", h.pid, code, h.Output())
		return nil, newError(KindLaunchFailed, "render process exited with code %d: %s", code, lastLines(h.Output(), 500))
	case <-ctx.Done():
		s.Stop(h, s.killTimeout)
		return nil, wrapError(KindLaunchFailed, ctx.Err(), "launch cancelled")
	case <-timer.C:
	}
	return h, nil
}

// Stop terminates the process gracefully, escalating to a kill after
// timeout. It is idempotent and returns whether the kill path was taken.
func (s *Supervisor) Stop(h *ProcessHandle, timeout time.Duration) bool {
	if h == nil {
		return false
	}
	h.stopOnce.Lock()
	defer h.stopOnce.Unlock()
	defer h.released.Store(true)
	if h.Exited() {
		return false
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warnf("[supervisor] SIGTERM pid=%d: %v", h.pid, err)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		log.Infof("[supervisor] render process pid=%d stopped gracefully", h.pid)
		return false
	case <-timer.C:
	}

	log.Warnf("[supervisor] render process pid=%d unresponsive after %s, killing", h.pid, timeout)
	if err := h.cmd.Process.Kill(); err != nil {
		log.Warnf("[supervisor] kill pid=%d: %v", h.pid, err)
	}
	select {
	case <-h.done:
		log.Infof("[supervisor] render process pid=%d killed", h.pid)
	case <-time.After(s.killTimeout):
		log.Errorf("[supervisor] render process pid=%d did not confirm exit after kill", h.pid)
	}
	return true
}

// IsAlive is a non-blocking liveness probe.
func (s *Supervisor) IsAlive(h *ProcessHandle) bool {
	if h == nil || h.released.Load() {
		return false
	}
	return !h.Exited()
}

// Stats samples CPU and memory of a live process.
func (s *Supervisor) Stats(h *ProcessHandle) (ProcessStats, error) {
	if !s.IsAlive(h) {
		return ProcessStats{}, errors.New("process not running")
	}
	p, err := process.NewProcess(int32(h.pid))
	if err != nil {
		return ProcessStats{}, errors.Wrapf(err, "inspect pid %d", h.pid)
	}
	var stats ProcessStats
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	return stats, nil
}

// Probe runs a short-lived connectivity test against the configured
// endpoint. It never touches a session handle.
func (s *Supervisor) Probe(ctx context.Context) (ProbeResult, error) {
	argv := s.renderer.ProbeCommand()
	if len(argv) == 0 {
		return ProbeResult{}, newError(KindLaunchFailed, "empty probe command")
	}
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	out := newTailBuffer(outputTailSize)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = pipeWaitDelay
	start := time.Now()
	err := cmd.Run()
	res := ProbeResult{
		ExitCode: exitCode(err),
		Output:   lastLines(out.String(), 500),
		Duration: time.Since(start),
	}
	if ctx.Err() == context.DeadlineExceeded {
		return res, newError(KindLaunchFailed, "connectivity test timed out after %s", s.probeTimeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, wrapError(KindLaunchFailed, err, "failed to run connectivity test")
		}
		return res, nil
	}
	res.Success = true
	return res, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func lastLines(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

// tailBuffer keeps the last size bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	size int
	buf  bytes.Buffer
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if len(p) > t.size {
		p = p[len(p)-t.size:]
	}
	if over := t.buf.Len() + len(p) - t.size; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
