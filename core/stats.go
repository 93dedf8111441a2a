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
	"github.com/prometheus/client_golang/prometheus"
)

var GlobalStats MirrorStats

type MirrorStats struct {
	HostsConnected  *prometheus.GaugeVec
	HostState       *prometheus.GaugeVec
	ConnectErrors   *prometheus.CounterVec
	HostDisconnects *prometheus.CounterVec

	CommandsQueued  *prometheus.CounterVec
	FanoutCommands  *prometheus.CounterVec
	CommandsDropped *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec

	ReadersInUse  *prometheus.GaugeVec
	ReaderRetries *prometheus.CounterVec
}

func init() {
	GlobalStats = NewMirrorStats("eredis")
}

func NewMirrorStats(namespace string) MirrorStats {
	stats := MirrorStats{
		HostsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hosts_connected",
			Help:      "number of hosts currently connected to the writer",
		}, nil),
		HostState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_state",
			Help:      "host state, 0 disconnected, 1 connected, 2 failed",
		}, []string{"addr"}),
		ConnectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_errors",
			Help:      "async connect attempts that failed",
		}, []string{"addr"}),
		HostDisconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_disconnects",
			Help:      "established writer connections that went away",
		}, []string{"addr"}),
		CommandsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_queued",
			Help:      "commands accepted into the write queue",
		}, nil),
		FanoutCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_commands",
			Help:      "commands submitted to a host connection",
		}, []string{"addr"}),
		CommandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dropped",
			Help:      "commands dropped because every host was down and the queue was full",
		}, nil),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "commands waiting for fan-out",
		}, nil),
		ReadersInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readers_in_use",
			Help:      "readers currently outstanding",
		}, nil),
		ReaderRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reader_retries",
			Help:      "reader transport failures during Exec, including the one that exhausts the retry budget",
		}, nil),
	}
	prometheus.MustRegister(
		stats.HostsConnected, stats.HostState, stats.ConnectErrors,
		stats.HostDisconnects, stats.CommandsQueued, stats.FanoutCommands,
		stats.CommandsDropped, stats.QueueDepth, stats.ReadersInUse,
		stats.ReaderRetries,
	)
	return stats
}
