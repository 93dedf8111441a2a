package core

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
	"github.com/gencer/eredis/core/pkg/redis"
)

// mirrorServer accepts connections and records every byte it receives,
// standing in for a redis node on the fan-out path.
type mirrorServer struct {
	ln net.Listener

	mu      sync.Mutex
	buf     bytes.Buffer
	eofSeen bool
}

func newMirrorServer(t *testing.T) *mirrorServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &mirrorServer{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.acceptLoop()
	return s
}

func listenMirrorServer(t *testing.T, addr string) *mirrorServer {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	s := &mirrorServer{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.acceptLoop()
	return s
}

func (s *mirrorServer) acceptLoop() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := c.Read(buf)
				s.mu.Lock()
				s.buf.Write(buf[:n])
				if err != nil {
					if err == io.EOF {
						s.eofSeen = true
					}
					s.mu.Unlock()
					c.Close()
					return
				}
				s.mu.Unlock()
			}
		}()
	}
}

func (s *mirrorServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *mirrorServer) received() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *mirrorServer) sawEof() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eofSeen
}

func TestStartHandshake(t *testing.T) {
	c := New()
	require.NoError(t, c.Start())
	assert.True(t, c.isFlag(flagInRun), "Start returns only after the loop is in-run")
	assert.True(t, c.isFlag(flagInThr))

	// Second start is a no-op.
	require.NoError(t, c.Start())

	// With no hosts the first sweep makes the loop ready at once.
	require.Eventually(t, func() bool { return c.isFlag(flagReady) }, 3*time.Second, 10*time.Millisecond)

	start := time.Now()
	c.Shutdown()
	c.Close()
	assert.Less(t, time.Since(start), 2*time.Second, "empty shutdown completes within two ticks")
	assert.False(t, c.isFlag(flagInRun))
}

func TestRunBlockingRejectsSecondRun(t *testing.T) {
	c := New()
	ret := make(chan error, 1)
	go func() { ret <- c.Run() }()

	require.Eventually(t, func() bool { return c.isFlag(flagInRun) }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Run(), gerrors.ErrClientRunning)

	c.Shutdown()
	select {
	case err := <-ret:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("blocking run did not return after shutdown")
	}
	c.Close()
}

// Every written command reaches every connected host exactly once, in
// order, and shutdown disconnects cleanly.
func TestFanOutAndGracefulShutdown(t *testing.T) {
	s1 := newMirrorServer(t)
	s2 := newMirrorServer(t)

	c := New()
	require.NoError(t, c.AddHost("127.0.0.1", s1.port()))
	require.NoError(t, c.AddHost("127.0.0.1", s2.port()))
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return c.HostsConnected() == 2 },
		5*time.Second, 20*time.Millisecond)

	var want bytes.Buffer
	for _, kv := range [][2]string{{"k1", "v1"}, {"k2", "v2"}, {"k3", "v3"}} {
		cmd := redis.FormatCommand("SET", kv[0], kv[1])
		want.Write(cmd)
		c.Write(cmd)
	}

	require.Eventually(t, func() bool {
		return s1.received() == want.String() && s2.received() == want.String()
	}, 5*time.Second, 20*time.Millisecond, "fan-out must reach both hosts in order")
	assert.Equal(t, 0, c.QueueLen())

	c.Shutdown()
	c.Close()
	require.Eventually(t, func() bool { return s1.sawEof() && s2.sawEof() },
		3*time.Second, 20*time.Millisecond, "shutdown must disconnect both hosts")
}

// With every host down the queue holds the backlog in order and delivers
// it once a host comes back.
func TestBackpressureAndRecovery(t *testing.T) {
	// Reserve a port with nothing listening on it yet.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := New()
	require.NoError(t, c.AddHost("127.0.0.1", port))
	require.NoError(t, c.Start())

	// Ready needs the first connect failure to be recorded.
	require.Eventually(t, func() bool { return c.isFlag(flagReady) },
		5*time.Second, 20*time.Millisecond)

	var want bytes.Buffer
	for i := 0; i < 5; i++ {
		cmd := redis.FormatCommand("RPUSH", "backlog", i)
		want.Write(cmd)
		c.Write(cmd)
	}

	// Nothing can take the commands, the queue keeps all of them.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 5, c.QueueLen())

	srv := listenMirrorServer(t, addr)
	require.Eventually(t, func() bool { return srv.received() == want.String() },
		10*time.Second, 20*time.Millisecond, "backlog must be delivered in order after recovery")
	assert.Equal(t, 0, c.QueueLen())

	c.Shutdown()
	c.Close()
}

func TestWriteTracksQueue(t *testing.T) {
	c := New()
	c.Write(redis.FormatCommand("PING"))
	c.Write(redis.FormatCommand("PING"))
	assert.Equal(t, 2, c.QueueLen())

	// Close clears whatever was never delivered.
	c.Close()
	assert.Equal(t, 0, c.QueueLen())
}
