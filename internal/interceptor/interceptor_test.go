package interceptor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(t *testing.T, script string) Config {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return Config{Path: path, Args: []string{"-c", script}, StopTimeout: time.Second}
}

func TestManagerLifecycle(t *testing.T) {
	m := CreateManager(shell(t, "echo started; sleep 30"))
	assert.False(t, m.Running())
	require.NoError(t, m.Stop())

	require.NoError(t, m.Start())
	assert.True(t, m.Running())
	first := m.cmd.Process.Pid
	require.NoError(t, m.Start(), "second start keeps the running process")
	assert.Equal(t, first, m.cmd.Process.Pid)

	require.NoError(t, m.Restart())
	assert.True(t, m.Running())
	assert.NotEqual(t, first, m.cmd.Process.Pid)

	require.NoError(t, m.Stop())
	assert.False(t, m.Running())
}

func TestManagerKillsStubbornProcess(t *testing.T) {
	cfg := shell(t, "trap '' TERM; sleep 30")
	cfg.StopTimeout = 100 * time.Millisecond
	m := CreateManager(cfg)
	require.NoError(t, m.Start())
	// give the shell time to install the trap
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, m.Stop())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, m.Running())
}

func TestManagerProcessExit(t *testing.T) {
	m := CreateManager(shell(t, "exit 3"))
	require.NoError(t, m.Start())
	first := m.cmd.Process.Pid
	assert.Eventually(t, func() bool { return !m.Running() }, 2*time.Second, 10*time.Millisecond)

	// an exited interceptor is launched again
	require.NoError(t, m.Start())
	assert.NotEqual(t, first, m.cmd.Process.Pid)
	assert.Eventually(t, func() bool { return !m.Running() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Stop())
}

func TestManagerNotConfigured(t *testing.T) {
	assert.ErrorIs(t, CreateManager(Config{}).Start(), ErrNotConfigured)
}
