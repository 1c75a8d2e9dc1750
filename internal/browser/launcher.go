// Package browser starts a Chromium instance with remote debugging for the
// browser chart backend.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"
)

// Config holds browser launch configuration.
type Config struct {
	CDPAddress string
	CDPPort    int
	// StartURL is opened as an app window (no tabs or omnibox).
	StartURL   string
	ProfileDir string
	Headless   bool
	WindowSize string
	// ReadyTimeout bounds the wait for the DevTools endpoint.
	ReadyTimeout time.Duration
}

// Launcher manages the lifecycle of a browser process.
type Launcher struct {
	cfg   Config
	cmd   *exec.Cmd
	wsURL string
}

// NewLauncher creates a new browser launcher with the given config.
func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowSize == "" {
		cfg.WindowSize = "1280,900"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	return &Launcher{cfg: cfg}
}

var browserCandidates = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

func detectBrowser() (string, error) {
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %v)", browserCandidates)
}

func (l *Launcher) addr() string {
	return net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort))
}

// args builds the Chromium command line.
func (l *Launcher) args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.cfg.CDPPort),
		"--remote-debugging-address=" + l.cfg.CDPAddress,
		"--user-data-dir=" + l.cfg.ProfileDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-dev-shm-usage",
		"--disable-breakpad",
		"--window-size=" + l.cfg.WindowSize,
	}
	if l.cfg.Headless {
		args = append(args, "--headless=new", "--hide-scrollbars")
	}
	if l.cfg.StartURL != "" {
		args = append(args, "--app="+l.cfg.StartURL)
	}
	return args
}

// Launch starts the browser unless something already answers on the CDP
// port, then waits until the DevTools endpoint is ready.
func (l *Launcher) Launch(ctx context.Context) error {
	if ws, err := probe(ctx, l.addr()); err == nil {
		slog.Info("browser already running, skipping launch", "addr", l.addr())
		l.wsURL = ws
		return nil
	}

	browserPath, err := detectBrowser()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	l.cmd = exec.Command(browserPath, l.args()...)
	l.cmd.Stdout = os.Stdout
	l.cmd.Stderr = os.Stderr
	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	slog.Info("browser process started", "path", browserPath, "pid", l.cmd.Process.Pid, "headless", l.cfg.Headless)

	ws, err := l.waitReady(ctx)
	if err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	l.wsURL = ws
	slog.Info("CDP endpoint ready", "addr", l.addr())
	return nil
}

// WebSocketURL returns the browser-level DevTools websocket, once ready.
func (l *Launcher) WebSocketURL() string { return l.wsURL }

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool { return l.cmd != nil && l.cmd.Process != nil }

func (l *Launcher) waitReady(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("DevTools not ready at %s: %w", l.addr(), ctx.Err())
		case <-ticker.C:
			if ws, err := probe(ctx, l.addr()); err == nil {
				return ws, nil
			}
		}
	}
}

// probe asks /json/version for the browser websocket URL.
func probe(ctx context.Context, addr string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("json/version: status %d", resp.StatusCode)
	}
	var v struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("json/version: %w", err)
	}
	return v.WebSocketDebuggerURL, nil
}

// Stop terminates the browser process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if !l.Running() {
		return
	}
	pid := l.cmd.Process.Pid
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("browser stopped", "pid", pid)
	case <-time.After(5 * time.Second):
		slog.Warn("browser did not exit, sending SIGKILL", "pid", pid)
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.cmd = nil
}
