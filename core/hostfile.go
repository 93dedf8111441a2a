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
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
)

// hostFileMaxSize caps the host file. Anything larger is suspicious.
const hostFileMaxSize = 16384

// HostEntry is one parsed host file line.
type HostEntry struct {
	Target string
	Port   int
}

// ParseHostFile reads a host list: one target per line, `host:port` or a
// unix socket path, `#` comments and surrounding whitespace allowed.
func ParseHostFile(file string) ([]HostEntry, error) {
	st, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", file)
	}
	if st.Size() > hostFileMaxSize {
		return nil, gerrors.ErrHostFileTooLarge
	}

	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}

	var entries []HostEntry
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		target, port := line, 0
		if i := strings.LastIndexByte(line, ':'); i >= 0 {
			target = line[:i]
			port, _ = strconv.Atoi(line[i+1:])
		}
		entries = append(entries, HostEntry{Target: target, Port: port})
	}
	return entries, nil
}

// LoadHostFile adds every host listed in file to the table and returns how
// many were added.
func (c *Client) LoadHostFile(file string) (int, error) {
	entries, err := ParseHostFile(file)
	if err != nil {
		return -1, err
	}
	for _, e := range entries {
		if err := c.AddHost(e.Target, e.Port); err != nil {
			return -1, err
		}
	}
	return len(entries), nil
}
