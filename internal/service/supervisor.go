package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codelens/codelens/internal/retry"
)

// Status is the lifecycle state of the supervised inference process.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarting   Status = "starting"
	StatusReady      Status = "ready"
	StatusIndexing   Status = "indexing"
	StatusFailed     Status = "failed"
)

// Common errors
var (
	ErrStartFailed = errors.New("embedding service failed to start")
	ErrNotRunning  = errors.New("embedding service is not running")
)

// Handle is the observable runtime state of the service. Other components
// read it through Supervisor.Handle and the event channel; only the
// Supervisor mutates it.
type Handle struct {
	Status   Status
	Addr     string // host:port once the process has been spawned
	PID      int
	Degraded bool // Ready was assumed despite failing health checks
}

// Event is emitted on every status transition.
type Event struct {
	Status   Status
	Addr     string
	Degraded bool
	Err      error
}

// Config controls how the inference process is prepared and supervised.
type Config struct {
	Python       string // base interpreter used to create the runtime env
	Script       string // inference server entry point
	EnvDir       string // isolated runtime environment location; empty skips preparation
	Requirements string // dependency manifest installed when the import probe fails

	// ProbeImports are the modules whose importability proves the runtime
	// environment is usable without reinstalling dependencies.
	ProbeImports []string

	// Env is extra process environment, used to inject credentials. They
	// never appear in the argument list.
	Env []string

	HealthInterval time.Duration // delay between health probes
	HealthAttempts int           // bounded probe count
	StartTimeout   time.Duration // hard ceiling on the whole startup
}

// DefaultConfig returns the production supervision parameters: 30 health
// probes at 2s intervals under a 60s startup ceiling.
func DefaultConfig() Config {
	return Config{
		Python:         "python3",
		ProbeImports:   []string{"fastapi", "uvicorn"},
		HealthInterval: 2 * time.Second,
		HealthAttempts: 30,
		StartTimeout:   60 * time.Second,
	}
}

// Supervisor owns the lifecycle of the local embedding inference process:
// environment preparation, startup, health polling, restart, shutdown. All
// other components observe it through Handle and Subscribe only.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	httpc  *http.Client
	group  singleflight.Group

	// spawn is the process launcher; tests replace it to avoid spawning a
	// real interpreter.
	spawn func(port int, env []string) (*exec.Cmd, error)

	mu     sync.Mutex
	handle Handle
	cmd    *exec.Cmd
	subs   []chan Event
}

// New creates a Supervisor in the NotStarted state.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		logger: slog.Default().With("component", "service"),
		httpc:  &http.Client{Timeout: 5 * time.Second},
		handle: Handle{Status: StatusNotStarted},
	}
	s.spawn = s.spawnPython
	return s
}

// Handle returns a copy of the current service state.
func (s *Supervisor) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Subscribe returns a channel receiving status transitions. Slow consumers
// miss events rather than blocking the supervisor.
func (s *Supervisor) Subscribe() <-chan Event {
	ch := make(chan Event, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Start brings the service to Ready and returns its address. It is
// idempotent: concurrent callers await the same in-flight startup instead
// of spawning duplicate processes, and a call on a Ready service returns
// immediately.
func (s *Supervisor) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.handle.Status == StatusReady || s.handle.Status == StatusIndexing {
		addr := s.handle.Addr
		s.mu.Unlock()
		return addr, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("start", func() (interface{}, error) {
		return s.startOnce(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Supervisor) startOnce(ctx context.Context) (string, error) {
	// Re-check under the flight: a caller that raced past the fast path
	// after a previous flight completed must not spawn a second process.
	s.mu.Lock()
	if s.handle.Status == StatusReady || s.handle.Status == StatusIndexing {
		addr := s.handle.Addr
		s.mu.Unlock()
		return addr, nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StartTimeout)
	defer cancel()

	s.transition(Handle{Status: StatusStarting}, nil)

	port, err := freePort()
	if err != nil {
		s.transition(Handle{Status: StatusFailed}, err)
		return "", fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	if err := s.ensureEnv(ctx); err != nil {
		s.transition(Handle{Status: StatusFailed}, err)
		return "", fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	cmd, err := s.spawn(port, s.cfg.Env)
	if err != nil {
		s.transition(Handle{Status: StatusFailed}, err)
		return "", fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.mu.Lock()
	s.cmd = cmd
	s.handle.Addr = addr
	if cmd != nil && cmd.Process != nil {
		s.handle.PID = cmd.Process.Pid
	}
	s.mu.Unlock()

	if cmd != nil {
		go s.watch(cmd)
	}

	healthy := s.awaitHealthy(ctx, addr)
	if healthy {
		s.transition(Handle{Status: StatusReady, Addr: addr, PID: s.pid()}, nil)
		return addr, nil
	}

	// Health checks exhausted. If the process is still alive, assume the
	// health endpoint is misconfigured and optimistically mark Ready in
	// degraded mode rather than failing a possibly working service.
	if s.processAlive() {
		s.logger.Warn("health checks failing but process alive, assuming ready (degraded)",
			"addr", addr, "attempts", s.cfg.HealthAttempts)
		s.transition(Handle{Status: StatusReady, Addr: addr, PID: s.pid(), Degraded: true}, nil)
		return addr, nil
	}

	err = fmt.Errorf("%w: process exited before becoming healthy", ErrStartFailed)
	s.transition(Handle{Status: StatusFailed}, err)
	return "", err
}

// awaitHealthy polls GET /healthz on a fixed interval up to the bounded
// attempt count.
func (s *Supervisor) awaitHealthy(ctx context.Context, addr string) bool {
	cfg := retry.Fixed(s.cfg.HealthAttempts, s.cfg.HealthInterval)
	_, err := retry.Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, s.probe(ctx, addr)
	})
	return err == nil
}

func (s *Supervisor) probe(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// watch reaps the process and records an unexpected exit. A deliberate
// Stop clears s.cmd first, so watch only reacts to crashes.
func (s *Supervisor) watch(cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	expected := s.cmd != cmd
	s.mu.Unlock()
	if expected {
		return
	}

	s.logger.Warn("embedding service exited unexpectedly", "error", err)
	s.mu.Lock()
	s.cmd = nil
	s.mu.Unlock()
	s.transition(Handle{Status: StatusFailed}, fmt.Errorf("service exited: %v", err))
}

// Stop terminates the process gracefully where the platform allows it and
// always clears the handle's address and status, even when termination
// itself fails. Restart after Stop is caller-initiated via Start.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()

	var err error
	if cmd != nil && cmd.Process != nil {
		err = terminate(cmd)
	}

	s.transition(Handle{Status: StatusNotStarted}, nil)
	return err
}

// SetIndexing flips the Ready/Indexing pair while a batch run is in
// flight. It is a no-op in any other state.
func (s *Supervisor) SetIndexing(on bool) {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	switch {
	case on && h.Status == StatusReady:
		h.Status = StatusIndexing
		s.transition(h, nil)
	case !on && h.Status == StatusIndexing:
		h.Status = StatusReady
		s.transition(h, nil)
	}
}

// transition updates the handle and fans the event out to subscribers.
func (s *Supervisor) transition(h Handle, err error) {
	s.mu.Lock()
	if h.Addr == "" && (h.Status == StatusStarting || h.Status == StatusReady || h.Status == StatusIndexing) {
		h.Addr = s.handle.Addr
	}
	s.handle = h
	subs := append([]chan Event(nil), s.subs...)
	s.mu.Unlock()

	ev := Event{Status: h.Status, Addr: h.Addr, Degraded: h.Degraded, Err: err}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Supervisor) pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.PID
}

// processAlive reports whether the spawned process is still running. The
// watch goroutine clears s.cmd the moment the process is reaped, so a
// non-nil cmd means alive.
func (s *Supervisor) processAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// spawnPython launches the inference server inside the prepared runtime
// environment. The port and credentials travel via environment variables,
// never the argument list.
func (s *Supervisor) spawnPython(port int, env []string) (*exec.Cmd, error) {
	if s.cfg.Script == "" {
		return nil, errors.New("no inference script configured")
	}
	cmd := exec.Command(s.venvPython(), s.cfg.Script)
	cmd.Env = append(os.Environ(), env...)
	cmd.Env = append(cmd.Env, fmt.Sprintf("EMBEDDING_PORT=%d", port))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn inference process: %w", err)
	}
	return cmd, nil
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port, nil
}
