package proxy

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailStderrInvokesOnExitWhenStreamCloses(t *testing.T) {
	c := &StdioChildClient{}
	c.connected = true
	c.client = nil // the client value itself is irrelevant to this path

	var gotErr error
	exited := make(chan struct{})
	c.SetOnExit(func(err error) {
		gotErr = err
		close(exited)
	})

	r, w := io.Pipe()
	go c.tailStderr(r)

	_, _ = io.WriteString(w, "child log line\n")
	require.NoError(t, w.Close())

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onExit to fire once the stderr stream closed")
	}

	assert.NoError(t, gotErr)
	assert.False(t, c.connected, "handleExit must mark the client disconnected")

	lines := c.Stderr()
	require.Len(t, lines, 1)
	assert.True(t, strings.Contains(lines[0], "child log line"))
}

func TestHandleExitIsNoOpWhenAlreadyDisconnected(t *testing.T) {
	c := &StdioChildClient{}
	c.connected = false

	called := false
	c.SetOnExit(func(error) { called = true })

	c.handleExit(nil)

	assert.False(t, called, "handleExit must not fire for a client that was never connected")
}
