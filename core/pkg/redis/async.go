// Copyright (c) 2022 The eredis Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package redis

import (
	"bufio"
	"net"
	"sync"
	"time"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
	"github.com/gencer/eredis/core/pkg/socket"
)

type AsyncEventType int

const (
	// AsyncConnected the dial completed and the connection is usable.
	AsyncConnected AsyncEventType = iota
	// AsyncConnectFailed the dial failed, the connection is dead.
	AsyncConnectFailed
	// AsyncDisconnected an established connection went away.
	AsyncDisconnected
)

// AsyncEvent is delivered to the owner's event channel. Every AsyncConn
// produces exactly one terminal event: AsyncConnectFailed or
// AsyncDisconnected.
type AsyncEvent struct {
	Conn *AsyncConn
	Type AsyncEventType
	Err  error
}

const (
	asyncDialing = iota
	asyncConnected
	asyncClosed
)

// AsyncConn is a fire-and-forget connection. Commands are buffered by the
// connection itself and written by a dedicated goroutine; replies are read
// and discarded. All state changes are reported through the owner's event
// channel, never via callbacks on the caller's goroutine.
type AsyncConn struct {
	// Data is an opaque back-reference slot for the owner.
	Data interface{}

	target string
	port   int

	events chan<- AsyncEvent

	mu      sync.Mutex
	wake    *sync.Cond
	queue   [][]byte
	state   int
	closing bool

	conn net.Conn
	once sync.Once
}

// AsyncDial starts a background connect to target. The result is reported on
// events as AsyncConnected or AsyncConnectFailed, or as AsyncDisconnected when
// Disconnect was called before the dial completed.
func AsyncDial(target string, port int, connectTimeout time.Duration, events chan<- AsyncEvent) *AsyncConn {
	ac := &AsyncConn{
		target: target,
		port:   port,
		events: events,
		state:  asyncDialing,
	}
	ac.wake = sync.NewCond(&ac.mu)
	go ac.dial(connectTimeout)
	return ac
}

func (ac *AsyncConn) dial(connectTimeout time.Duration) {
	d := net.Dialer{Timeout: connectTimeout}
	c, err := d.Dial(NetworkAddr(ac.target, ac.port))
	if err != nil {
		ac.mu.Lock()
		ac.state = asyncClosed
		ac.mu.Unlock()
		ac.once.Do(func() {
			ac.events <- AsyncEvent{Conn: ac, Type: AsyncConnectFailed, Err: err}
		})
		return
	}

	if ac.port > 0 {
		// Keepalive failures are not fatal for an established connection.
		_ = socket.EnableKeepAlive(c)
	}

	ac.mu.Lock()
	if ac.closing {
		ac.state = asyncClosed
		ac.mu.Unlock()
		c.Close()
		ac.once.Do(func() {
			ac.events <- AsyncEvent{Conn: ac, Type: AsyncDisconnected}
		})
		return
	}
	ac.conn = c
	ac.state = asyncConnected
	ac.mu.Unlock()

	ac.events <- AsyncEvent{Conn: ac, Type: AsyncConnected}

	go ac.writeLoop()
	go ac.drainLoop()
}

// Command queues a serialized request frame. Submission succeeds as soon as
// the frame is buffered; delivery is best effort.
func (ac *AsyncConn) Command(raw []byte) error {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.state == asyncClosed || ac.closing {
		return gerrors.ErrConnClosed
	}
	ac.queue = append(ac.queue, raw)
	ac.wake.Signal()
	return nil
}

// Disconnect requests a graceful teardown: buffered frames are flushed, then
// the connection is closed and AsyncDisconnected is delivered. While the dial
// is still in progress, the connection is closed as soon as it completes and
// frames queued until then are not written.
func (ac *AsyncConn) Disconnect() {
	ac.mu.Lock()
	if ac.state == asyncClosed || ac.closing {
		ac.mu.Unlock()
		return
	}
	ac.closing = true
	ac.wake.Signal()
	ac.mu.Unlock()
}

func (ac *AsyncConn) writeLoop() {
	bw := bufio.NewWriterSize(ac.conn, defaultBufSize)
	for {
		ac.mu.Lock()
		for len(ac.queue) == 0 && !ac.closing && ac.state == asyncConnected {
			ac.wake.Wait()
		}
		if ac.state == asyncClosed {
			ac.mu.Unlock()
			return
		}
		batch := ac.queue
		ac.queue = nil
		closing := ac.closing
		ac.mu.Unlock()

		for _, frame := range batch {
			if _, err := bw.Write(frame); err != nil {
				ac.teardown(err)
				return
			}
		}
		if err := bw.Flush(); err != nil {
			ac.teardown(err)
			return
		}
		if closing {
			ac.teardown(nil)
			return
		}
	}
}

func (ac *AsyncConn) drainLoop() {
	br := bufio.NewReaderSize(ac.conn, 2*defaultBufSize)
	for {
		if _, err := readReply(br); err != nil {
			ac.teardown(err)
			return
		}
	}
}

func (ac *AsyncConn) teardown(err error) {
	ac.once.Do(func() {
		ac.mu.Lock()
		ac.state = asyncClosed
		ac.wake.Broadcast()
		ac.mu.Unlock()
		ac.conn.Close()
		ac.events <- AsyncEvent{Conn: ac, Type: AsyncDisconnected, Err: err}
	})
}
