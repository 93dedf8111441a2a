package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCommand(t *testing.T) {
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", string(FormatCommand("PING")))
	assert.Equal(t,
		"*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n",
		string(FormatCommand("SET", "k", "v")))
	assert.Equal(t,
		"*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$2\r\n42\r\n",
		string(FormatCommand("SET", "k", 42)))
	assert.Equal(t,
		"*3\r\n$6\r\nEXPIRE\r\n$1\r\nk\r\n$2\r\n-1\r\n",
		string(FormatCommand("EXPIRE", "k", int64(-1))))
	assert.Equal(t,
		"*2\r\n$3\r\nGET\r\n$3\r\nbin\r\n",
		string(FormatCommand("GET", []byte("bin"))))
}

func TestFormatInline(t *testing.T) {
	assert.Equal(t,
		"*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n",
		string(FormatInline("  SET k v ")))
	assert.Nil(t, FormatInline("   "))
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", string(FormatInline("PING")))
}
