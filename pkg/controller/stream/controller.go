package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"LiveCounter/pkg/render"

	"github.com/pingcap-incubator/tinykv/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Options are the timing knobs of the controller.
type Options struct {
	// StopTimeout is the graceful stop wait before the process is killed.
	StopTimeout time.Duration
	// Cadence is the overlay refresh interval.
	Cadence time.Duration
	// MaxAge bounds how old a cached metric may be before a refetch.
	MaxAge time.Duration
	// LoopExitWait bounds how long Stop waits for the refresh loop to exit.
	LoopExitWait time.Duration
	// RestartUnchanged restarts the process on every tick even if the
	// metric did not change.
	RestartUnchanged bool
}

// ConfigFlags is the non-sensitive view of the stream configuration.
type ConfigFlags struct {
	HasStreamKey          bool
	StreamKeyHint         string
	RTMPURL               string
	RTMPBackupURL         string
	HasSourceCredentials  bool
	PollInterval          time.Duration
	Cadence               time.Duration
	StopTimeout           time.Duration
	GraceWait             time.Duration
	RestartUnchangedValue bool
}

// AssetFinder returns the media assets for the next launch.
type AssetFinder func() render.Assets

// SessionInfo describes a started or stopped session.
type SessionInfo struct {
	ID     string
	PID    int
	Value  int
	Forced bool
}

// Status is a point-in-time view of the controller.
type Status struct {
	State        State
	SessionID    string
	StartedAt    time.Time
	Alive        bool
	PID          int
	Value        int
	Restarts     int64
	Config       ConfigFlags
	Cache        CacheStats
	CacheRunning bool
	Process      *ProcessStats
	HostCPU      float64
	HostMem      float64
}

// Controller is the start/stop/status state machine of the stream. Start
// and Stop are serialized; a call made while another is in flight fails
// with Busy. The session handle is owned under mu by either the stop path or
// the refresh loop, never both.
type Controller struct {
	cache      *MetricCache
	supervisor *Supervisor
	assets     AssetFinder
	flags      ConfigFlags
	opts       Options

	transition sync.Mutex
	mu         sync.Mutex
	session    *session

	state     atomic.Int32
	live      atomic.Pointer[ProcessHandle]
	current   atomic.Pointer[session]
	observers []func(State)

	// test hook, called by the refresh loop between stop-old and launch-new
	beforeRelaunch func()
}

func NewController(cache *MetricCache, supervisor *Supervisor, assets AssetFinder, flags ConfigFlags, opts Options) *Controller {
	if assets == nil {
		assets = func() render.Assets { return render.Assets{} }
	}
	return &Controller{
		cache:      cache,
		supervisor: supervisor,
		assets:     assets,
		flags:      flags,
		opts:       opts,
	}
}

// OnStateChange registers fn to be called after every state transition.
// Must be called before the controller is used.
func (c *Controller) OnStateChange(fn func(State)) {
	c.observers = append(c.observers, fn)
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	for _, fn := range c.observers {
		fn(s)
	}
}

// State returns the current FSM state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Start launches the render process with the current metric and starts the
// background refresh.
func (c *Controller) Start(ctx context.Context) (SessionInfo, error) {
	if !c.transition.TryLock() {
		return SessionInfo{}, ErrBusy
	}
	defer c.transition.Unlock()

	if c.State() != StateIdle {
		return SessionInfo{}, ErrAlreadyActive
	}
	if !c.flags.HasStreamKey {
		return SessionInfo{}, newError(KindConfigMissing, "stream key is not configured")
	}
	c.setState(StateLaunching)

	value, ok := c.cache.Get(ctx)
	if !ok {
		log.Warnf("[stream] no metric available yet, starting with placeholder")
		value = render.UnknownValue
	}
	sess := newSession()
	h, err := c.supervisor.Launch(ctx, value, c.assets())
	if err != nil {
		sess.cancel()
		c.setState(StateIdle)
		log.Errorf("[stream] start failed: %v", err)
		return SessionInfo{}, err
	}

	c.mu.Lock()
	sess.handle = h
	sess.lastValue = value
	c.session = sess
	c.mu.Unlock()
	c.live.Store(h)
	c.current.Store(sess)

	c.cache.Start()
	go c.refreshLoop(sess)
	c.setState(StateStreaming)
	log.Infof("[stream] session %s streaming, pid=%d", sess.id, h.PID())
	return SessionInfo{ID: sess.id, PID: h.PID(), Value: value}, nil
}

// Stop ends the session. It returns within StopTimeout plus the kill bound
// even if the process ignores the termination signal.
func (c *Controller) Stop(ctx context.Context) (SessionInfo, error) {
	if !c.transition.TryLock() {
		return SessionInfo{}, ErrBusy
	}
	defer c.transition.Unlock()
	return c.stopLocked()
}

// Shutdown waits for any in-flight transition and stops the session if one
// is active.
func (c *Controller) Shutdown(ctx context.Context) error {
	locked := make(chan struct{})
	go func() {
		c.transition.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		// release the lock once the pending transition lets us have it
		go func() {
			<-locked
			c.transition.Unlock()
		}()
		return ctx.Err()
	}
	defer c.transition.Unlock()
	if c.State() == StateIdle {
		return nil
	}
	_, err := c.stopLocked()
	return err
}

func (c *Controller) stopLocked() (SessionInfo, error) {
	if c.State() == StateIdle {
		return SessionInfo{}, ErrNotActive
	}
	c.setState(StateStopping)
	sess := c.session
	sess.requestStop()
	log.Infof("[stream] stopping session %s", sess.id)

	c.mu.Lock()
	h := sess.handle
	sess.handle = nil
	c.live.Store(nil)
	forced := c.supervisor.Stop(h, c.opts.StopTimeout)
	c.mu.Unlock()

	select {
	case <-sess.loopDone:
	case <-time.After(c.opts.LoopExitWait):
		log.Warnf("[stream] refresh loop of session %s did not exit within %s", sess.id, c.opts.LoopExitWait)
	}
	c.cache.Stop()

	c.session = nil
	c.current.Store(nil)
	c.setState(StateIdle)

	info := SessionInfo{ID: sess.id, Forced: forced}
	if h != nil {
		info.PID = h.PID()
		info.Value = h.Value()
	}
	log.Infof("[stream] session %s stopped (forced=%v)", sess.id, forced)
	return info, nil
}

// Status never blocks on an in-flight transition or restart.
func (c *Controller) Status() Status {
	st := Status{
		State:        c.State(),
		Config:       c.flags,
		Cache:        c.cache.Stats(),
		CacheRunning: c.cache.Running(),
		Value:        render.UnknownValue,
	}
	if sess := c.current.Load(); sess != nil {
		st.SessionID = sess.id
		st.StartedAt = sess.startedAt
		st.Restarts = sess.restarts.Load()
	}
	if h := c.live.Load(); h != nil {
		st.Alive = c.supervisor.IsAlive(h)
		st.PID = h.PID()
		st.Value = h.Value()
		if ps, err := c.supervisor.Stats(h); err == nil {
			st.Process = &ps
		}
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		st.HostCPU = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.HostMem = vm.UsedPercent
	}
	return st
}

// Config returns the non-sensitive configuration view.
func (c *Controller) Config() ConfigFlags {
	return c.flags
}

// CurrentMetric returns the cached metric, refetching it when older than
// MaxAge.
func (c *Controller) CurrentMetric(ctx context.Context) (Reading, error) {
	return c.cache.Lookup(ctx, c.opts.MaxAge)
}

// TestConnectivity runs a short push to the configured endpoint. It is
// independent of the active session.
func (c *Controller) TestConnectivity(ctx context.Context) (ProbeResult, error) {
	if !c.flags.HasStreamKey {
		return ProbeResult{}, newError(KindConfigMissing, "stream key is not configured")
	}
	log.Infof("[stream] running connectivity test")
	res, err := c.supervisor.Probe(ctx)
	if err != nil {
		log.Errorf("[stream] connectivity test failed: %v", err)
		return res, err
	}
	if !res.Success {
		log.Warnf("[stream] connectivity test exited with code %d\n%s", res.ExitCode, res.Output)
	}
	return res, nil
}
