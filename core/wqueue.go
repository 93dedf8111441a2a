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

import "sync"

// queueMaxUnshift bounds the queue only on the unshift-on-failure path.
// Entries beyond the cap are dropped when no host can take them.
const queueMaxUnshift = 10000

type wqueueEntry struct {
	next, prev *wqueueEntry
	cmd        []byte
}

// wqueue is the fan-out command queue. Producers append from any goroutine,
// the writer loop shifts, and under total outage unshifts the head back.
//
// front -> x -> x -> back
type wqueue struct {
	mu          sync.Mutex
	front, back *wqueueEntry
	count       int
}

func (q *wqueue) append(cmd []byte) {
	ent := &wqueueEntry{cmd: cmd}
	q.mu.Lock()
	ent.prev = q.back
	if q.count == 0 {
		q.front = ent
	} else {
		q.back.next = ent
	}
	q.back = ent
	q.count++
	q.mu.Unlock()
}

func (q *wqueue) shift() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil, false
	}
	ent := q.front
	q.front = ent.next
	if q.front == nil {
		q.back = nil
	} else {
		q.front.prev = nil
	}
	q.count--
	ent.next, ent.prev = nil, nil
	return ent.cmd, true
}

func (q *wqueue) unshift(cmd []byte) {
	ent := &wqueueEntry{cmd: cmd}
	q.mu.Lock()
	ent.next = q.front
	if q.count == 0 {
		q.back = ent
	} else {
		q.front.prev = ent
	}
	q.front = ent
	q.count++
	q.mu.Unlock()
}

func (q *wqueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
