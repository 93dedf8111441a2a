package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gencer/eredis/core/pkg/errors"
)

func writeHostFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "hosts.conf")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestParseHostFile(t *testing.T) {
	file := writeHostFile(t, `
# mirror pool
127.0.0.1:6379
  10.0.0.2:6380

   # spare over unix socket
/var/run/redis.sock
backup.example.com:7000
`)
	entries, err := ParseHostFile(file)
	require.NoError(t, err)
	require.Equal(t, 4, len(entries))

	assert.Equal(t, HostEntry{Target: "127.0.0.1", Port: 6379}, entries[0])
	assert.Equal(t, HostEntry{Target: "10.0.0.2", Port: 6380}, entries[1])
	assert.Equal(t, HostEntry{Target: "/var/run/redis.sock", Port: 0}, entries[2])
	assert.Equal(t, HostEntry{Target: "backup.example.com", Port: 7000}, entries[3])
}

func TestParseHostFileTooLarge(t *testing.T) {
	file := writeHostFile(t, strings.Repeat("# filler line\n", 2000))
	_, err := ParseHostFile(file)
	assert.ErrorIs(t, err, gerrors.ErrHostFileTooLarge)
}

func TestParseHostFileMissing(t *testing.T) {
	_, err := ParseHostFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadHostFile(t *testing.T) {
	file := writeHostFile(t, "127.0.0.1:6379\n127.0.0.1:6380\n")
	c := New()
	n, err := c.LoadHostFile(file)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	views := c.Hosts()
	require.Equal(t, 2, len(views))
	assert.True(t, views[0].Primary)
	assert.False(t, views[1].Primary)
	assert.Equal(t, 6379, views[0].Port)
}

func TestAddHostAfterRunRejected(t *testing.T) {
	c := New()
	c.setFlag(flagInRun)
	err := c.AddHost("127.0.0.1", 6379)
	assert.ErrorIs(t, err, gerrors.ErrClientRunning)
}
