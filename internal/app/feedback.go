package app

import "time"

// Transient feedback message lifetimes. At most one success and one error
// message exist at a time; a new message replaces the old one and restarts
// its dismissal timer.
const (
	successTTL = 3 * time.Second
	errorTTL   = 5 * time.Second
)

// setSuccessLocked installs a success message and schedules its dismissal.
// Caller holds c.mu.
func (c *Controller) setSuccessLocked(msg string) {
	c.successGen++
	gen := c.successGen
	c.state.Success = msg
	time.AfterFunc(c.successTTL, func() {
		c.mu.Lock()
		if c.closed || gen != c.successGen {
			c.mu.Unlock()
			return
		}
		c.state.Success = ""
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
	})
}

// setErrorLocked installs an error message and schedules its dismissal.
// Caller holds c.mu.
func (c *Controller) setErrorLocked(msg string) {
	c.errorGen++
	gen := c.errorGen
	c.state.Error = msg
	time.AfterFunc(c.errorTTL, func() {
		c.mu.Lock()
		if c.closed || gen != c.errorGen {
			c.mu.Unlock()
			return
		}
		c.state.Error = ""
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.publish(snap)
	})
}
