package stream

import (
	"time"

	"LiveCounter/pkg/render"

	"github.com/pingcap-incubator/tinykv/log"
)

// refreshLoop re-renders the overlay on every cadence tick until the
// session is stopped. A failed relaunch is retried on the next tick.
func (c *Controller) refreshLoop(sess *session) {
	defer close(sess.loopDone)
	ticker := time.NewTicker(c.opts.Cadence)
	defer ticker.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			log.Infof("[stream] refresh loop of session %s exited", sess.id)
			return
		case <-ticker.C:
		}
		if sess.stopRequested() {
			return
		}
		c.refreshOnce(sess)
	}
}

// refreshOnce applies the current metric to the session: stop the old
// process, then launch a new one, both under the session mutex so a
// concurrent Stop either runs before (and the loop sees the flag) or after
// (and takes the new handle).
func (c *Controller) refreshOnce(sess *session) {
	value := render.UnknownValue
	reading, err := c.cache.Lookup(sess.ctx, c.opts.MaxAge)
	if err == nil {
		value = reading.Value
	} else if sess.stopRequested() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sess.stopRequested() {
		return
	}
	alive := c.supervisor.IsAlive(sess.handle)
	if alive && value == sess.lastValue && !c.opts.RestartUnchanged {
		return
	}
	if !alive && sess.handle != nil {
		log.Warnf("[stream] render process pid=%d is gone, relaunching\n%s", sess.handle.PID(), sess.handle.Output())
	}

	if sess.handle != nil {
		c.supervisor.Stop(sess.handle, c.opts.StopTimeout)
		sess.handle = nil
		c.live.Store(nil)
	}
	if c.beforeRelaunch != nil {
		c.beforeRelaunch()
	}
	if sess.stopRequested() {
		return
	}

	h, err := c.supervisor.Launch(sess.ctx, value, c.assets())
	if err != nil {
		log.Errorf("[stream] overlay relaunch failed, retrying in %s: %v", c.opts.Cadence, err)
		return
	}
	sess.handle = h
	sess.lastValue = value
	sess.restarts.Add(1)
	c.live.Store(h)
	log.Infof("[stream] overlay updated to %s, pid=%d", render.OverlayText(value), h.PID())
}
