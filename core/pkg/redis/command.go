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
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// FormatCommand serializes a command and its arguments into a RESP request
// frame. The returned slice is owned by the caller.
func FormatCommand(cmd string, args ...interface{}) []byte {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	appendLen(bb, '*', 1+len(args))
	appendBulkString(bb, cmd)
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			appendBulkString(bb, arg)
		case []byte:
			appendBulkBytes(bb, arg)
		case int:
			appendBulkString(bb, strconv.FormatInt(int64(arg), 10))
		case int64:
			appendBulkString(bb, strconv.FormatInt(arg, 10))
		case float64:
			appendBulkString(bb, strconv.FormatFloat(arg, 'g', -1, 64))
		case bool:
			if arg {
				appendBulkString(bb, "1")
			} else {
				appendBulkString(bb, "0")
			}
		case nil:
			appendBulkString(bb, "")
		default:
			appendBulkString(bb, fmt.Sprint(arg))
		}
	}

	out := make([]byte, bb.Len())
	copy(out, bb.B)
	return out
}

// FormatInline splits a redis-cli style inline command and serializes it.
// Quoting is not supported, arguments are whitespace separated.
func FormatInline(line string) []byte {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, len(fields)-1)
	for i, f := range fields[1:] {
		args[i] = f
	}
	return FormatCommand(fields[0], args...)
}

func appendLen(bb *bytebufferpool.ByteBuffer, prefix byte, n int) {
	bb.B = append(bb.B, prefix)
	bb.B = strconv.AppendInt(bb.B, int64(n), 10)
	bb.B = append(bb.B, '\r', '\n')
}

func appendBulkString(bb *bytebufferpool.ByteBuffer, s string) {
	appendLen(bb, '$', len(s))
	bb.B = append(bb.B, s...)
	bb.B = append(bb.B, '\r', '\n')
}

func appendBulkBytes(bb *bytebufferpool.ByteBuffer, p []byte) {
	appendLen(bb, '$', len(p))
	bb.B = append(bb.B, p...)
	bb.B = append(bb.B, '\r', '\n')
}
