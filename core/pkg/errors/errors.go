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

package errors

import "errors"

var (
	// ErrClientShutdown reports a client that is shutting down. No client
	// operation returns it: Write and Reader keep working after Shutdown.
	ErrClientShutdown = errors.New("client is going to be shutdown")
	// ErrClientRunning occurs when mutating the host table after Run/Start.
	ErrClientRunning = errors.New("client is running, host table is frozen")
	// ErrNoHosts reports an empty host table. Run and Start do not return
	// it: a client with no hosts runs and becomes ready at once.
	ErrNoHosts = errors.New("no host configured")
	// ErrAllHostsUnavailable occurs when every host is failed or refuses the
	// connection during reader host selection.
	ErrAllHostsUnavailable = errors.New("all hosts unavailable")
	// ErrRetryExhausted occurs when a reader runs out of transport retries.
	ErrRetryExhausted = errors.New("reader retry budget exhausted")
	// ErrHostFileTooLarge occurs when the host file exceeds 16KiB.
	ErrHostFileTooLarge = errors.New("host file larger than 16KiB")
	// ErrConnClosed occurs when submitting a command to an async connection
	// that is already torn down.
	ErrConnClosed = errors.New("connection closed")
)
