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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
	"github.com/gencer/eredis/core/pkg/logging"
	"github.com/gencer/eredis/core/pkg/redis"
)

const (
	flagInRun uint32 = 1 << iota
	flagInThr
	flagReady
	flagShutdown
)

const (
	defaultTimeout     = 5 * time.Second
	defaultReaderMax   = 10
	defaultReaderRetry = 1
)

// dialer is the seam used by reader tests to stub out the sync transport.
type dialer interface {
	Dial(target string, port int, options ...redis.DialOption) (redis.Conn, error)
}

type redisDialer struct{}

func (redisDialer) Dial(target string, port int, options ...redis.DialOption) (redis.Conn, error) {
	return redis.Dial(target, port, options...)
}

// Client is one fan-out mirror instance: a host table, a write queue
// drained by a single writer loop, and a pool of synchronous readers.
type Client struct {
	hosts          []*host
	hostsConnected atomic.Int32

	syncTimeout time.Duration
	readerMax   int
	readerRetry int

	flags uint32

	// reader pool
	readerLock  sync.Mutex
	readerCond  *sync.Cond
	rqueue      readerList
	readerAlloc int
	dial        dialer

	wqueue wqueue

	// writer loop plumbing
	trigger        chan struct{}
	triggerPending int32
	events         chan redis.AsyncEvent
	done           chan struct{}

	startMu sync.Mutex
	lifeMu  sync.Mutex

	statusMap hashmap.HashMap
}

// New builds a fan-out client. Hosts are added afterwards with AddHost or
// LoadHostFile, before Run or Start.
func New(opts ...Option) *Client {
	c := &Client{
		syncTimeout: defaultTimeout,
		readerMax:   defaultReaderMax,
		readerRetry: defaultReaderRetry,
		dial:        redisDialer{},
		trigger:     make(chan struct{}, 1),
	}
	c.readerCond = sync.NewCond(&c.readerLock)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) isFlag(f uint32) bool {
	return atomic.LoadUint32(&c.flags)&f != 0
}

func (c *Client) setFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&c.flags)
		if atomic.CompareAndSwapUint32(&c.flags, old, old|f) {
			return
		}
	}
}

func (c *Client) clearFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&c.flags)
		if atomic.CompareAndSwapUint32(&c.flags, old, old&^f) {
			return
		}
	}
}

// trySetFlag sets f and reports whether it was previously clear.
func (c *Client) trySetFlag(f uint32) bool {
	for {
		old := atomic.LoadUint32(&c.flags)
		if old&f != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&c.flags, old, old|f) {
			return true
		}
	}
}

// SetTimeout sets the connect and I/O timeout of all sync connections.
func (c *Client) SetTimeout(d time.Duration) {
	c.syncTimeout = d
}

// SetReaderMax bounds the number of concurrently outstanding readers.
func (c *Client) SetReaderMax(n int) {
	c.readerMax = n
}

// SetReaderRetry sets the transport retry budget of one Exec.
func (c *Client) SetReaderRetry(n int) {
	c.readerRetry = n
}

// AddHost appends a host to the table. The first added host is the primary
// used by readers whenever reachable. A port of 0 makes target a unix
// socket path. The table is frozen once the writer loop runs.
func (c *Client) AddHost(target string, port int) error {
	if c.isFlag(flagInRun) {
		return gerrors.ErrClientRunning
	}
	h := &host{
		c:      c,
		target: target,
		port:   port,
	}
	c.hosts = append(c.hosts, h)
	logging.Debugf("[client] adding host: %s (%d)", target, port)
	return nil
}

// Write enqueues one serialized command for fan-out to every connected
// host. The client takes ownership of cmd. Writes never fail: under
// sustained total outage the oldest unshifted entries are dropped.
func (c *Client) Write(cmd []byte) {
	c.wqueue.append(cmd)
	GlobalStats.CommandsQueued.WithLabelValues().Inc()
	c.Trigger()
}

// Run runs the writer loop on the calling goroutine until Shutdown.
func (c *Client) Run() error {
	return c.run(nil)
}

// Start runs the writer loop in a dedicated goroutine and returns once the
// loop reports in-run.
func (c *Client) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.isFlag(flagInThr) || c.isFlag(flagInRun) {
		return nil
	}

	c.setFlag(flagInThr)
	started := make(chan struct{})
	go func() {
		if err := c.run(started); err != nil {
			logging.Errorf("[client] writer loop: %s", err)
		}
		c.clearFlag(flagInThr)
	}()
	<-started
	return nil
}

func (c *Client) run(started chan<- struct{}) error {
	if !c.trySetFlag(flagInRun) {
		if started != nil {
			close(started)
		}
		return gerrors.ErrClientRunning
	}

	c.lifeMu.Lock()
	if c.events == nil {
		c.events = make(chan redis.AsyncEvent, 4*len(c.hosts)+16)
	}
	c.done = make(chan struct{})
	c.lifeMu.Unlock()

	go c.statsLoop(c.done)

	c.runLoop(started)

	close(c.done)
	return nil
}

// Shutdown requests a graceful stop of the writer loop: connected hosts
// get a clean disconnect on the next timer tick, then the loop exits.
func (c *Client) Shutdown() {
	c.setFlag(flagShutdown)
}

// Close shuts the client down and releases every resource. All readers
// must have been released.
func (c *Client) Close() {
	c.setFlag(flagShutdown)

	c.lifeMu.Lock()
	done := c.done
	c.lifeMu.Unlock()
	if done != nil {
		// Wait for the loop to process the two-phase shutdown.
		<-done
	}

	// Defensive: tear down whatever connect attempts were in flight when
	// the loop exited.
	for _, h := range c.hosts {
		if h.async != nil {
			h.async.Disconnect()
			h.async = nil
		}
	}
	c.hosts = nil

	// Clear the reader pool.
	for {
		r := c.rqueue.shift()
		if r == nil {
			break
		}
		if !r.free {
			logging.Errorf("[client] close: reader not in free state")
			continue
		}
		r.dropConn()
	}

	// Clear the write queue.
	for {
		if _, ok := c.wqueue.shift(); !ok {
			break
		}
	}
}
