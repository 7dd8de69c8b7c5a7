package player

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
)

const (
	socketPollInterval = 100 * time.Millisecond
	terminationTimeout = 3 * time.Second
	killTimeout        = 2 * time.Second
)

// Supervisor owns the mpv process lifecycle: launch with the IPC socket
// enabled, wait for the socket to appear, and terminate gracefully
// (SIGTERM then SIGKILL) on stop or restart.
type Supervisor struct {
	cfg config.PlayerConfig

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewSupervisor creates a supervisor for the configured player binary
func NewSupervisor(cfg config.PlayerConfig) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Start launches the player process and waits for its IPC socket to appear.
// Any previously running process is stopped first.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(); err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Error stopping previous player process")
	}

	// A stale socket from a crashed process prevents the new one from
	// binding.
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale player socket: %w", err)
	}

	args := []string{
		"--idle=yes",
		"--fullscreen",
		"--no-osc",
		"--no-osd-bar",
		"--no-input-default-bindings",
		"--input-conf=/dev/null",
		"--force-window=yes",
		"--no-terminal",
		"--keep-open=yes",
		"--no-audio",
		"--image-display-duration=inf",
		"--hr-seek=yes",
		"--cache=yes",
		"--demuxer-max-bytes=150M",
		"--demuxer-readahead-secs=20",
		"--video-sync=display-resample",
		fmt.Sprintf("--video-rotate=%d", s.cfg.Rotation),
		fmt.Sprintf("--input-ipc-server=%s", s.cfg.SocketPath),
	}

	cmd := exec.Command(s.cfg.Binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	go capturePlayerOutput(cmd.Process.Pid, stdout, "stdout")
	go capturePlayerOutput(cmd.Process.Pid, stderr, "stderr")

	// Wait for the IPC socket before declaring the player up
	deadline := time.Now().Add(s.cfg.StartTimeout)
	for {
		if _, err := os.Stat(s.cfg.SocketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return ErrSocketTimeout
		}
		time.Sleep(socketPollInterval)
	}

	s.cmd = cmd

	logger.Log.Info().
		Int("pid", cmd.Process.Pid).
		Str("socket", s.cfg.SocketPath).
		Int("rotation", s.cfg.Rotation).
		Msg("Player process started")

	return nil
}

// Stop terminates the player process and removes its socket
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Running reports whether a player process is currently managed
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Restart stops and relaunches the player process
func (s *Supervisor) Restart() error {
	logger.Log.Info().Msg("Restarting player process")
	return s.Start()
}

// stopLocked terminates the managed process (must hold lock)
func (s *Supervisor) stopLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	pid := s.cmd.Process.Pid
	err := terminateProcess(s.cmd)
	s.cmd = nil

	if rmErr := os.Remove(s.cfg.SocketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.Log.Warn().
			Err(rmErr).
			Str("socket", s.cfg.SocketPath).
			Msg("Failed to remove player socket")
	}

	if err != nil {
		return fmt.Errorf("failed to terminate player process %d: %w", pid, err)
	}

	logger.Log.Info().
		Int("pid", pid).
		Msg("Player process stopped")
	return nil
}

// terminateProcess terminates a process gracefully (SIGTERM) then forcefully
// (SIGKILL) if it does not exit in time
func terminateProcess(cmd *exec.Cmd) error {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			// Already exited; still needs to be reaped
			_ = cmd.Wait()
			return nil
		}
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	exitChan := make(chan error, 1)
	go func() {
		exitChan <- cmd.Wait()
	}()

	select {
	case <-exitChan:
		return nil
	case <-time.After(terminationTimeout):
		logger.Log.Warn().
			Int("pid", cmd.Process.Pid).
			Dur("timeout", terminationTimeout).
			Msg("Player did not exit gracefully, sending SIGKILL")

		if err := cmd.Process.Kill(); err != nil {
			if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
				return nil
			}
			return fmt.Errorf("failed to kill process: %w", err)
		}

		select {
		case <-exitChan:
			return nil
		case <-time.After(killTimeout):
			return fmt.Errorf("process %d did not die after SIGKILL", cmd.Process.Pid)
		}
	}
}

// capturePlayerOutput logs output from the player process at debug level
func capturePlayerOutput(pid int, reader io.Reader, streamName string) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		logger.Log.Debug().
			Int("player_pid", pid).
			Str("stream", streamName).
			Str("output", scanner.Text()).
			Msg("Player output")
	}
	if err := scanner.Err(); err != nil {
		logger.Log.Warn().
			Err(err).
			Int("player_pid", pid).
			Str("stream", streamName).
			Msg("Error reading player output")
	}
}
