package redis

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer accepts one connection and records everything it receives.
type captureServer struct {
	ln net.Listener

	mu     sync.Mutex
	conn   net.Conn
	buf    bytes.Buffer
	closed bool
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &captureServer{ln: ln}
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = c
		s.mu.Unlock()
		buf := make([]byte, 4096)
		for {
			n, err := c.Read(buf)
			s.mu.Lock()
			s.buf.Write(buf[:n])
			if err != nil {
				s.closed = err == io.EOF
				s.mu.Unlock()
				c.Close()
				return
			}
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *captureServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *captureServer) received() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *captureServer) dropConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *captureServer) sawEof() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAsyncConnectAndCommand(t *testing.T) {
	srv := newCaptureServer(t)
	events := make(chan AsyncEvent, 8)

	ac := AsyncDial("127.0.0.1", srv.port(), time.Second, events)
	ev := <-events
	require.Equal(t, AsyncConnected, ev.Type)
	require.Same(t, ac, ev.Conn)

	require.NoError(t, ac.Command(FormatCommand("SET", "k", "1")))
	require.NoError(t, ac.Command(FormatCommand("SET", "k", "2")))

	want := string(FormatCommand("SET", "k", "1")) + string(FormatCommand("SET", "k", "2"))
	waitFor(t, func() bool { return srv.received() == want }, "commands not delivered")

	ac.Disconnect()
	ev = <-events
	assert.Equal(t, AsyncDisconnected, ev.Type)
	waitFor(t, srv.sawEof, "server never saw the close")

	assert.Error(t, ac.Command(FormatCommand("PING")))
}

func TestAsyncDisconnectFlushesQueued(t *testing.T) {
	srv := newCaptureServer(t)
	events := make(chan AsyncEvent, 8)

	ac := AsyncDial("127.0.0.1", srv.port(), time.Second, events)
	ev := <-events
	require.Equal(t, AsyncConnected, ev.Type)

	cmd := FormatCommand("LPUSH", "q", "payload")
	require.NoError(t, ac.Command(cmd))
	ac.Disconnect()

	ev = <-events
	require.Equal(t, AsyncDisconnected, ev.Type)
	waitFor(t, func() bool { return srv.received() == string(cmd) }, "queued command lost on disconnect")
}

func TestAsyncConnectFailed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	events := make(chan AsyncEvent, 8)
	AsyncDial("127.0.0.1", port, 500*time.Millisecond, events)

	ev := <-events
	assert.Equal(t, AsyncConnectFailed, ev.Type)
	assert.Error(t, ev.Err)
}

func TestAsyncServerDrop(t *testing.T) {
	srv := newCaptureServer(t)
	events := make(chan AsyncEvent, 8)

	ac := AsyncDial("127.0.0.1", srv.port(), time.Second, events)
	ev := <-events
	require.Equal(t, AsyncConnected, ev.Type)

	srv.dropConn()

	ev = <-events
	assert.Equal(t, AsyncDisconnected, ev.Type)
	assert.Error(t, ac.Command(FormatCommand("PING")))
}
