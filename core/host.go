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
	"fmt"
	"sync/atomic"

	"github.com/gencer/eredis/core/pkg/logging"
	"github.com/gencer/eredis/core/pkg/redis"
)

type HostStatus int32

const (
	HostDisconnected HostStatus = iota
	HostConnected
	HostFailed
)

func (s HostStatus) String() string {
	switch s {
	case HostDisconnected:
		return "disconnected"
	case HostConnected:
		return "connected"
	case HostFailed:
		return "failed"
	}
	return "unknown"
}

const (
	// Retry to connect a disconnected host every second, 10 times.
	hostDisconnectedRetries = 10
	// Retry to connect a failed host every 20 seconds.
	hostFailedRetryAfter = 20
)

// host is one entry of the host table. status is read lock-free by readers
// as an advisory value; everything else is owned by the writer loop after
// Run, and by the caller before it.
type host struct {
	c      *Client
	target string
	port   int

	status atomic.Int32
	// Connect failure counter:
	// HostDisconnected + more than hostDisconnectedRetries failures -> HostFailed
	// HostFailed       + hostFailedRetryAfter ticks       -> retry
	failures int

	// async connection handle, owned by the writer loop. Non-nil iff the
	// host is connected or a connect attempt is in flight.
	async *redis.AsyncConn
}

func (h *host) Status() HostStatus {
	return HostStatus(h.status.Load())
}

func (h *host) setStatus(s HostStatus) {
	h.status.Store(int32(s))
}

func (h *host) addr() string {
	if h.port > 0 {
		return fmt.Sprintf("%s:%d", h.target, h.port)
	}
	return h.target
}

// connect kicks off an async connect attempt. The outcome arrives on the
// loop's event channel.
func (h *host) connect() {
	ac := redis.AsyncDial(h.target, h.port, h.c.syncTimeout, h.c.events)
	ac.Data = h
	h.async = ac
}

// onConnected runs on the writer loop.
func (h *host) onConnected() {
	logging.Debugf("[writer] connected %s", h.addr())
	h.failures = 0
	h.setStatus(HostConnected)
	h.c.hostsConnected.Add(1)
	h.c.publishHostView(h)
	GlobalStats.HostState.WithLabelValues(h.addr()).Set(float64(HostConnected))
}

// onConnectFailed runs on the writer loop.
func (h *host) onConnectFailed(err error) {
	logging.Debugf("[writer] connect %s failed: %s", h.addr(), err)
	GlobalStats.ConnectErrors.WithLabelValues(h.addr()).Inc()

	switch h.Status() {
	case HostFailed:
		h.failures %= hostFailedRetryAfter
		h.failures++

	case HostDisconnected:
		h.failures++
		if h.failures > hostDisconnectedRetries {
			h.failures = 0
			h.setStatus(HostFailed)
			logging.Warnf("[writer] host %s marked failed, retrying every %ds", h.addr(), hostFailedRetryAfter)
		}
	}

	h.async = nil
	h.c.publishHostView(h)
	GlobalStats.HostState.WithLabelValues(h.addr()).Set(float64(h.Status()))
}

// onDisconnected runs on the writer loop.
func (h *host) onDisconnected(err error) {
	if err != nil {
		logging.Warnf("[writer] disconnected %s: %s", h.addr(), err)
	} else {
		logging.Debugf("[writer] disconnected %s", h.addr())
	}

	if h.Status() != HostConnected {
		logging.Errorf("[writer] strange behavior: disconnect of %s while not connected", h.addr())
	} else {
		h.c.hostsConnected.Add(-1)
	}

	h.failures = 0
	h.setStatus(HostDisconnected)
	h.async = nil
	h.c.publishHostView(h)
	GlobalStats.HostDisconnects.WithLabelValues(h.addr()).Inc()
	GlobalStats.HostState.WithLabelValues(h.addr()).Set(float64(HostDisconnected))
}

// HostView is a point-in-time snapshot of one host, published by the writer
// loop into the client's lock-free status map for web handlers.
type HostView struct {
	Target   string `json:"target"`
	Port     int    `json:"port"`
	Status   string `json:"status"`
	Failures int    `json:"failures"`
	Primary  bool   `json:"primary"`
}
