package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWqueueFifo(t *testing.T) {
	q := new(wqueue)
	_, ok := q.shift()
	assert.False(t, ok)

	q.append([]byte("a"))
	q.append([]byte("b"))
	q.append([]byte("c"))
	assert.Equal(t, 3, q.len())

	cmd, ok := q.shift()
	assert.True(t, ok)
	assert.Equal(t, "a", string(cmd))

	cmd, ok = q.shift()
	assert.True(t, ok)
	assert.Equal(t, "b", string(cmd))

	cmd, ok = q.shift()
	assert.True(t, ok)
	assert.Equal(t, "c", string(cmd))

	_, ok = q.shift()
	assert.False(t, ok)
	assert.Equal(t, 0, q.len())
}

func TestWqueueUnshift(t *testing.T) {
	q := new(wqueue)
	q.append([]byte("b"))
	q.unshift([]byte("a"))
	assert.Equal(t, 2, q.len())

	cmd, _ := q.shift()
	assert.Equal(t, "a", string(cmd))
	cmd, _ = q.shift()
	assert.Equal(t, "b", string(cmd))
}

func TestWqueueUnshiftEmpty(t *testing.T) {
	q := new(wqueue)
	q.unshift([]byte("x"))
	assert.Equal(t, 1, q.len())

	cmd, ok := q.shift()
	assert.True(t, ok)
	assert.Equal(t, "x", string(cmd))
	assert.Equal(t, 0, q.len())

	// Tail stays usable after the head churn.
	q.append([]byte("y"))
	cmd, _ = q.shift()
	assert.Equal(t, "y", string(cmd))
}
