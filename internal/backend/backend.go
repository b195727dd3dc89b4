package backend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/devicepool"
)

// Status is the lifecycle state of a backend instance. The only
// transitions are Starting->Ready, Starting->Failed and *->Stopped on
// manager-initiated shutdown; nothing leaves Stopped.
type Status int

const (
	StatusStarting Status = iota
	StatusReady
	StatusFailed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Instance is one running model-serving process bound to a device and
// port. It is owned by the Manager that created it and must not be shared
// for mutation.
type Instance struct {
	ModelName string
	ModelPath string
	Device    devicepool.Token
	Port      int

	cmd     *exec.Cmd
	done    chan struct{} // closed once the process has exited
	waitErr error         // valid after done is closed

	mu     sync.Mutex
	status Status
}

func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

func (i *Instance) setStatus(s Status) {
	i.mu.Lock()
	i.status = s
	i.mu.Unlock()
}

// BaseURL is the root URL of the instance's OpenAI-compatible API.
func (i *Instance) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", i.Port)
}

// Manager launches and tears down backend serving processes. Stopping is
// the caller's obligation on every exit path; the manager itself never
// touches the device lease.
type Manager struct {
	command      []string
	healthPath   string
	readyTimeout time.Duration
	pollInterval time.Duration
	stopTimeout  time.Duration

	logger *zap.Logger
	httpc  *http.Client
}

func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		command:      cfg.Serving.Command,
		healthPath:   cfg.Serving.HealthPath,
		readyTimeout: cfg.Serving.ReadyTimeout,
		pollInterval: cfg.Serving.PollInterval,
		stopTimeout:  cfg.Serving.StopTimeout,
		logger:       logger,
		httpc:        &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches a serving process for the model on the given device and
// port and waits until its health endpoint responds. On any failure the
// returned instance is in the Failed state with its process already reaped;
// releasing the device lease remains the caller's job.
func (m *Manager) Start(ctx context.Context, modelName, modelPath string, device devicepool.Token, port int) (*Instance, error) {
	if len(m.command) == 0 {
		return nil, fmt.Errorf("backend: serving command not configured")
	}

	argv := make([]string, 0, len(m.command)+6)
	argv = append(argv, m.command...)
	argv = append(argv,
		"--model", modelPath,
		"--served-model-name", modelName,
		"--port", strconv.Itoa(port),
	)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES="+strconv.Itoa(int(device)))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	inst := &Instance{
		ModelName: modelName,
		ModelPath: modelPath,
		Device:    device,
		Port:      port,
		cmd:       cmd,
		done:      make(chan struct{}),
		status:    StatusStarting,
	}

	m.logger.Info("Starting backend",
		zap.String("model", modelName),
		zap.Int("device", int(device)),
		zap.Int("port", port),
	)

	if err := cmd.Start(); err != nil {
		close(inst.done)
		inst.setStatus(StatusFailed)
		return inst, fmt.Errorf("launch backend for %s: %w", modelName, err)
	}

	go func() {
		inst.waitErr = cmd.Wait()
		close(inst.done)
	}()

	if err := m.waitReady(ctx, inst); err != nil {
		inst.setStatus(StatusFailed)
		// Reap the half-started process so a readiness failure never
		// leaks it past this call.
		m.terminate(inst)
		return inst, fmt.Errorf("backend for %s not ready: %w", modelName, err)
	}

	inst.setStatus(StatusReady)
	m.logger.Info("Backend ready", zap.String("model", modelName), zap.Int("port", port))
	return inst, nil
}

func (m *Manager) waitReady(ctx context.Context, inst *Instance) error {
	url := inst.BaseURL() + m.healthPath
	deadline := time.Now().Add(m.readyTimeout)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-inst.done:
			return fmt.Errorf("process exited before becoming ready: %v", inst.waitErr)
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("no healthy response within %s", m.readyTimeout)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := m.httpc.Do(req)
			if err != nil {
				continue // not listening yet
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Stop terminates the instance's process and blocks until it has exited,
// force-killing after the configured timeout. It is safe to call on Failed
// instances and on instances whose process never launched; calling it is
// required on every exit path of the session that started the instance.
func (m *Manager) Stop(inst *Instance) error {
	if inst == nil {
		return nil
	}
	if inst.Status() == StatusStopped {
		return nil
	}

	err := m.terminate(inst)
	inst.setStatus(StatusStopped)

	m.logger.Info("Backend stopped",
		zap.String("model", inst.ModelName),
		zap.Int("device", int(inst.Device)),
	)
	return err
}

func (m *Manager) terminate(inst *Instance) error {
	select {
	case <-inst.done:
		return nil // already exited (or never launched)
	default:
	}

	if err := inst.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process may have exited between the check and the signal.
		<-inst.done
		return nil
	}

	select {
	case <-inst.done:
		return nil
	case <-time.After(m.stopTimeout):
	}

	m.logger.Warn("Backend ignored SIGTERM, killing",
		zap.String("model", inst.ModelName),
		zap.Int("port", inst.Port),
	)
	if err := inst.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill backend for %s: %w", inst.ModelName, err)
	}
	<-inst.done
	return nil
}
