// Copyright (c) 2022 The eredis Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"sync/atomic"
	"time"

	"github.com/gencer/eredis/core/pkg/logging"
	"github.com/gencer/eredis/core/pkg/redis"
	"github.com/gencer/eredis/core/pkg/utils"
)

// runLoop is the writer engine. It is the only goroutine that touches the
// host table after Run. Event sources: the 1s reconnect ticker, the drain
// trigger and async connection events.
func (c *Client) runLoop(started chan<- struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.setFlag(flagInRun)
	if started != nil {
		// Thread mode, release the thread creator.
		close(started)
	}

	// The first connect sweep runs immediately, not after one period.
	stop := c.connectTick()

	for !stop {
		select {
		case <-ticker.C:
			stop = c.connectTick()

		case <-c.trigger:
			c.drain()

		case ev := <-c.events:
			c.handleAsyncEvent(ev)
		}
	}

	c.clearFlag(flagInRun)
}

// connectTick runs once per second. It advances every host's state machine
// and drives the two-phase shutdown. Returns true when the loop must exit.
func (c *Client) connectTick() bool {
	if c.isFlag(flagShutdown) {
		if c.hostsConnected.Load() > 0 {
			for _, h := range c.hosts {
				if h.Status() == HostConnected && h.async != nil {
					h.async.Disconnect()
				}
			}
			return false
		}
		return true
	}

	for _, h := range c.hosts {
		switch h.Status() {
		case HostConnected:

		case HostFailed:
			if h.failures < hostFailedRetryAfter {
				h.failures++
			} else if h.async == nil {
				h.connect()
			}

		case HostDisconnected:
			if h.async == nil {
				h.connect()
			}
		}
	}

	if !c.isFlag(flagReady) {
		// Ready needs every host either connected or with a recorded
		// connection failure.
		nb := 0
		for _, h := range c.hosts {
			if h.Status() == HostConnected || h.failures > 0 {
				nb++
			}
		}
		if nb == len(c.hosts) {
			c.setFlag(flagReady)
			logging.Infof("[writer] ready, %d/%d hosts connected", c.hostsConnected.Load(), len(c.hosts))
			c.scheduleDrain()
		}
	}
	return false
}

// handleAsyncEvent dispatches connection callbacks on the loop goroutine.
func (c *Client) handleAsyncEvent(ev redis.AsyncEvent) {
	h, ok := ev.Conn.Data.(*host)
	if !ok || h.async != ev.Conn {
		// Terminal event of a connection that was already replaced.
		return
	}

	switch ev.Type {
	case redis.AsyncConnected:
		h.onConnected()
		if c.isFlag(flagReady) {
			c.scheduleDrain()
		}
	case redis.AsyncConnectFailed:
		h.onConnectFailed(ev.Err)
	case redis.AsyncDisconnected:
		h.onDisconnected(ev.Err)
	}
}

// Trigger wakes the writer loop for a queue drain. Callable from any
// goroutine; at most one wakeup is pending per drain cycle.
func (c *Client) Trigger() {
	if c.isFlag(flagReady) && !c.isFlag(flagShutdown) &&
		atomic.CompareAndSwapInt32(&c.triggerPending, 0, 1) {
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	}
}

// scheduleDrain is the loop-internal variant of Trigger: it bypasses the
// Ready gate so the first drain right after the ready sweep goes through.
func (c *Client) scheduleDrain() {
	atomic.StoreInt32(&c.triggerPending, 1)
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// drain pops queued commands and fans each one out to every connected
// host. When no host takes a command it is unshifted back (up to
// queueMaxUnshift entries) and the drain stops.
func (c *Client) drain() {
	atomic.StoreInt32(&c.triggerPending, 0)

	for {
		cmd, ok := c.wqueue.shift()
		if !ok {
			return
		}

		nb := 0
		for _, h := range c.hosts {
			if h.Status() != HostConnected || h.async == nil {
				continue
			}
			if err := h.async.Command(cmd); err != nil {
				continue
			}
			GlobalStats.FanoutCommands.WithLabelValues(h.addr()).Inc()
			nb++
		}

		if nb == 0 {
			if c.wqueue.len() < queueMaxUnshift {
				// No host took it, keep it and stop the drain.
				c.wqueue.unshift(cmd)
				return
			}
			GlobalStats.CommandsDropped.WithLabelValues().Inc()
			logging.Warnf("[writer] queue full with all hosts down, dropping command: %s",
				utils.FormatRedisRESPMessages(cmd))
		}
	}
}

// statsLoop publishes advisory gauges once per second, outside the writer
// loop.
func (c *Client) statsLoop(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			GlobalStats.HostsConnected.WithLabelValues().Set(float64(c.hostsConnected.Load()))
			GlobalStats.QueueDepth.WithLabelValues().Set(float64(c.wqueue.len()))

			c.readerLock.Lock()
			inUse := c.readerAlloc - c.rqueue.count
			c.readerLock.Unlock()
			GlobalStats.ReadersInUse.WithLabelValues().Set(float64(inUse))
		}
	}
}

// QueueLen reports the number of commands waiting for fan-out.
func (c *Client) QueueLen() int {
	return c.wqueue.len()
}

// HostsConnected reports the advisory count of connected hosts.
func (c *Client) HostsConnected() int {
	return int(c.hostsConnected.Load())
}

// Hosts returns a snapshot of the host table for admin surfaces.
func (c *Client) Hosts() []HostView {
	views := make([]HostView, 0, len(c.hosts))
	for i, h := range c.hosts {
		key := h.addr()
		if v, ok := c.statusMap.Get(key); ok {
			hv := v.(*HostView)
			views = append(views, *hv)
			continue
		}
		views = append(views, HostView{
			Target:  h.target,
			Port:    h.port,
			Status:  h.Status().String(),
			Primary: i == 0,
		})
	}
	return views
}

// publishHostView refreshes the lock-free snapshot read by Hosts.
func (c *Client) publishHostView(h *host) {
	c.statusMap.Set(h.addr(), &HostView{
		Target:   h.target,
		Port:     h.port,
		Status:   h.Status().String(),
		Failures: h.failures,
		Primary:  len(c.hosts) > 0 && c.hosts[0] == h,
	})
}
