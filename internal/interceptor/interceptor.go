// Package interceptor manages the packet interceptor subprocess that starts
// the validators and relays their traffic through the harness.
package interceptor

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultStopTimeout = 10 * time.Second

var ErrNotConfigured = errors.New("interceptor command not configured")

// Process is the lifecycle of the interceptor as seen by the harness
type Process interface {
	Start() error
	Restart() error
	Stop() error
}

// Config describes how the interceptor is launched
type Config struct {
	Path        string
	Args        []string
	Dir         string
	StopTimeout time.Duration
}

// Manager runs at most one interceptor process at a time. Its output is
// forwarded to the debug log.
type Manager struct {
	mutex sync.Mutex
	cfg   Config
	cmd   *exec.Cmd
	done  chan struct{}
}

// CreateManager creates a manager for cfg
func CreateManager(cfg Config) *Manager {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Manager{cfg: cfg}
}

// Start launches the interceptor unless one is running
func (m *Manager) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cmd != nil {
		select {
		case <-m.done:
			m.cmd, m.done = nil, nil
		default:
			return nil
		}
	}
	if m.cfg.Path == "" {
		return ErrNotConfigured
	}

	cmd := exec.Command(m.cfg.Path, m.cfg.Args...)
	cmd.Dir = m.cfg.Dir
	// own process group so that validators spawned by the interceptor are signalled too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	log.Infof("[Interceptor] Starting %s", m.cfg.Path)
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	var output sync.WaitGroup
	output.Go(func() { forward(stdout, "stdout") })
	output.Go(func() { forward(stderr, "stderr") })
	go func() {
		output.Wait()
		err := cmd.Wait()
		log.Infof("[Interceptor] Process %d exited: %v", cmd.Process.Pid, err)
		close(done)
	}()

	m.cmd = cmd
	m.done = done
	return nil
}

func forward(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debugf("[Interceptor] %s: %s", stream, scanner.Text())
	}
}

// Stop terminates the running interceptor. The process is killed if it
// does not exit within the stop timeout.
func (m *Manager) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cmd == nil {
		return nil
	}
	cmd, done := m.cmd, m.done
	m.cmd, m.done = nil, nil

	log.Infof("[Interceptor] Stopping process %d", cmd.Process.Pid)
	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		select {
		case <-done:
			return nil
		default:
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-time.After(m.cfg.StopTimeout):
		log.Warnf("[Interceptor] Process %d did not stop, killing it", cmd.Process.Pid)
		if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
			return err
		}
		<-done
		return nil
	}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Restart stops the running interceptor, if any, and starts a new one
func (m *Manager) Restart() error {
	if err := m.Stop(); err != nil {
		return err
	}
	return m.Start()
}

// Running reports whether an interceptor process is alive
func (m *Manager) Running() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.cmd == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}
