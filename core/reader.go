// Copyright (c) 2022 The eredis Authors
// Copyright (c) 2011 Twitter, Inc.
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
	"github.com/pkg/errors"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
	"github.com/gencer/eredis/core/pkg/logging"
	"github.com/gencer/eredis/core/pkg/redis"
)

// Reader is a synchronous single-host connection with failover. A reader is
// either idle in the pool or exclusively owned by the caller that acquired
// it; it is never shared.
type Reader struct {
	next, prev *Reader

	c    *Client
	conn redis.Conn
	host *host

	retry int
	free  bool
}

// readerList is the idle reader FIFO.
//
// front -> x -> x -> back
type readerList struct {
	front, back *Reader
	count       int
}

func (l *readerList) pushBack(r *Reader) {
	r.prev = l.back
	r.next = nil
	if l.count == 0 {
		l.front = r
	} else {
		l.back.next = r
	}
	l.back = r
	l.count++
}

func (l *readerList) shift() *Reader {
	if l.count == 0 {
		return nil
	}
	r := l.front
	l.front = r.next
	if l.front == nil {
		l.back = nil
	} else {
		l.front.prev = nil
	}
	l.count--
	r.next, r.prev = nil, nil
	return r
}

// Reader acquires a reader, blocking while reader-max readers are
// outstanding. Release it when done.
func (c *Client) Reader() *Reader {
	c.readerLock.Lock()
	for {
		if r := c.rqueue.shift(); r != nil {
			r.free = false
			c.readerLock.Unlock()
			return r
		}
		if c.readerAlloc < c.readerMax {
			c.readerAlloc++
			c.readerLock.Unlock()
			return &Reader{c: c}
		}
		c.readerCond.Wait()
	}
}

// Release puts the reader back into the pool and wakes one waiter. The
// connection is kept for reuse.
func (r *Reader) Release() {
	c := r.c
	c.readerLock.Lock()
	r.free = true
	r.retry = 0
	c.rqueue.pushBack(r)
	c.readerLock.Unlock()
	c.readerCond.Signal()
}

// dropConn tears down the reader's current connection.
func (r *Reader) dropConn() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.host = nil
}

// selectHost connects the reader following the read policy: the primary
// whenever it is not failed, otherwise the first reachable secondary.
func (r *Reader) selectHost() error {
	c := r.c
	// The table is scanned in order, which prefers the primary at index 0;
	// failed hosts are cooling down and skipped.
	for _, h := range c.hosts {
		if h.Status() == HostFailed {
			continue
		}
		conn, err := c.dial.Dial(h.target, h.port,
			redis.DialConnectTimeout(c.syncTimeout),
			redis.DialReadTimeout(c.syncTimeout),
			redis.DialWriteTimeout(c.syncTimeout),
		)
		if err != nil {
			logging.Debugf("[reader] connect %s failed: %s", h.addr(), err)
			continue
		}
		r.conn = conn
		r.host = h
		return nil
	}
	return gerrors.ErrAllHostsUnavailable
}

// Exec pipelines cmds on one host and returns one reply per command, in
// order. A Redis error reply is a valid reply carried in the result slice.
// On transport failure the reader fails over and replays the commands that
// have not been answered yet, up to the retry budget.
func (r *Reader) Exec(cmds ...[]byte) ([]interface{}, error) {
	if len(cmds) == 0 {
		return nil, nil
	}

	c := r.c
	replies := make([]interface{}, 0, len(cmds))
	replied := 0
	r.retry = 0

	// A recovered primary reclaims reader traffic on the next exec.
	if r.conn != nil && r.host != nil && len(c.hosts) > 0 &&
		r.host != c.hosts[0] && c.hosts[0].Status() != HostFailed {
		r.dropConn()
	}

	for {
		if r.conn == nil {
			if err := r.selectHost(); err != nil {
				return nil, err
			}
		}

		err := r.exchange(cmds, &replies, &replied)
		if err == nil {
			return replies, nil
		}

		logging.Debugf("[reader] exec on %s failed after %d replies: %s", r.host.addr(), replied, err)
		r.dropConn()
		r.retry++
		GlobalStats.ReaderRetries.WithLabelValues().Inc()
		if r.retry > c.readerRetry {
			return nil, errors.Wrapf(gerrors.ErrRetryExhausted, "last transport error: %s", err)
		}
	}
}

// exchange writes the unanswered commands and reads their replies.
// replied advances only on fully parsed replies, which makes the replay
// point precise.
func (r *Reader) exchange(cmds [][]byte, replies *[]interface{}, replied *int) error {
	for _, cmd := range cmds[*replied:] {
		if err := r.conn.SendBytes(cmd); err != nil {
			return err
		}
	}
	if err := r.conn.Flush(); err != nil {
		return err
	}
	for *replied < len(cmds) {
		reply, err := r.conn.Receive()
		if err != nil {
			return err
		}
		*replies = append(*replies, reply)
		*replied++
	}
	return nil
}
