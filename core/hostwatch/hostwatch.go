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

package hostwatch

import (
	"fmt"
	"path/filepath"

	"github.com/cornelk/hashmap"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/gencer/eredis/core"
	"github.com/gencer/eredis/core/pkg/logging"
)

// Watcher follows a host file on disk. The host table is frozen once the
// writer loop runs, so edits cannot be applied live; the watcher logs what
// changed and that a restart is needed to pick it up.
type Watcher struct {
	dir  string
	file string

	known hashmap.HashMap
}

// Watch parses the host file once to seed the known set and then follows
// the file for edits.
func Watch(file string) (*Watcher, error) {
	w := &Watcher{
		dir:  filepath.Dir(file),
		file: file,
	}
	entries, err := core.ParseHostFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to seed host watcher from %s", file)
	}
	for _, e := range entries {
		w.known.Set(key(e), e)
	}
	if err := w.watch(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watcher) watch() error {
	watch, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Errorf("err=%s", err)
		return err
	}
	err = watch.Add(w.dir)
	if err != nil {
		logging.Errorf("err=%s", err)
		return err
	}
	go func() {
		for {
			select {
			case ev := <-watch.Events:
				if ev.Name == w.file {
					switch {
					case ev.Op&fsnotify.Write == fsnotify.Write:
						fallthrough
					case ev.Op&fsnotify.Rename == fsnotify.Rename:
						if err := w.reload(); err != nil {
							logging.Errorf("reload host file err: %s", err)
						}
					}
				}
			case err := <-watch.Errors:
				logging.Errorf("err=%s", err)
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) reload() error {
	entries, err := core.ParseHostFile(w.file)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		k := key(e)
		seen[k] = struct{}{}
		if _, ok := w.known.Get(k); !ok {
			w.known.Set(k, e)
			logging.Warnf("[hostwatch] host %s added to %s, restart required to use it", k, w.file)
		}
	}
	for kv := range w.known.Iter() {
		k := kv.Key.(string)
		if _, ok := seen[k]; !ok {
			w.known.Del(k)
			logging.Warnf("[hostwatch] host %s removed from %s, restart required to drop it", k, w.file)
		}
	}
	return nil
}

func key(e core.HostEntry) string {
	if e.Port > 0 {
		return fmt.Sprintf("%s:%d", e.Target, e.Port)
	}
	return e.Target
}
