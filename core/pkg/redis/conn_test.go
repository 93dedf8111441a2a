package redis

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyServer accepts one connection, writes canned replies and discards
// whatever the client sends.
func replyServer(t *testing.T, replies string) (addr string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte(replies))
		_, _ = io.Copy(io.Discard, c)
	}()

	tcp := ln.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

func TestDoSimpleString(t *testing.T) {
	target, port := replyServer(t, "+PONG\r\n")
	c, err := Dial(target, port)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Do("PING")
	assert.NoError(t, err)
	assert.Equal(t, "PONG", reply)
}

func TestPipelineSendReceive(t *testing.T) {
	target, port := replyServer(t, "+OK\r\n$5\r\nhello\r\n:12\r\n")
	c, err := Dial(target, port)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendBytes(FormatCommand("SET", "k", "hello")))
	require.NoError(t, c.SendBytes(FormatCommand("GET", "k")))
	require.NoError(t, c.SendBytes(FormatCommand("STRLEN", "k")))
	require.NoError(t, c.Flush())

	reply, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, "OK", reply)

	reply, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), reply)

	reply, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, int64(12), reply)
}

// An error reply is a valid reply on the pipelined path, not a transport
// failure.
func TestReceiveErrorReplyInBand(t *testing.T) {
	target, port := replyServer(t, "-ERR unknown command\r\n")
	c, err := Dial(target, port)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendBytes(FormatCommand("NOPE")))
	require.NoError(t, c.Flush())

	reply, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, Error("ERR unknown command"), reply)
}

func TestReceiveArraysAndNil(t *testing.T) {
	target, port := replyServer(t, "*2\r\n$1\r\na\r\n:-3\r\n$-1\r\n")
	c, err := Dial(target, port)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendBytes(FormatCommand("MGET", "a", "b")))
	require.NoError(t, c.Flush())

	reply, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{[]byte("a"), int64(-3)}, reply)

	reply, err = c.Receive()
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestReceiveTimeout(t *testing.T) {
	target, port := replyServer(t, "")
	c, err := Dial(target, port, DialReadTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendBytes(FormatCommand("GET", "k")))
	require.NoError(t, c.Flush())

	_, err = c.Receive()
	assert.Error(t, err)
}

func TestDialConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial("127.0.0.1", port, DialConnectTimeout(200*time.Millisecond))
	assert.Error(t, err)
}
