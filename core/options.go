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
	"time"
)

// Option is a function that will set up the client.
type Option func(c *Client)

// WithTimeout sets the connect and I/O timeout used by sync reader
// connections and async connect attempts. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.syncTimeout = d
	}
}

// WithReaderMax sets the maximum number of concurrently outstanding
// readers. Default is 10.
func WithReaderMax(n int) Option {
	return func(c *Client) {
		c.readerMax = n
	}
}

// WithReaderRetry sets how many transport failures one Exec may absorb
// before giving up. Default is 1.
func WithReaderRetry(n int) Option {
	return func(c *Client) {
		c.readerRetry = n
	}
}
