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

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gencer/eredis/core"
)

var (
	Tag       = "unknown"
	CommitSHA = "unknown"
)

type hostsRes struct {
	HostsConnected int             `json:"hosts_connected"`
	Hosts          []core.HostView `json:"hosts"`
}

type queueRes struct {
	QueueDepth int `json:"queue_depth"`
}

func HandleHosts(client *core.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, hostsRes{
			HostsConnected: client.HostsConnected(),
			Hosts:          client.Hosts(),
		})
	}
}

func HandleQueue(client *core.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, queueRes{QueueDepth: client.QueueLen()})
	}
}

func HandleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Tag, "commit": CommitSHA})
}
