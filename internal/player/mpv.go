package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lumenplay/agent/internal/logger"
)

const (
	defaultCommandTimeout = 2 * time.Second
	dialTimeout           = time.Second
)

// MpvClient controls an mpv process over its JSON IPC protocol: one JSON
// object per line on a unix socket, with a monotonically increasing
// request_id correlating responses to commands. mpv also emits unsolicited
// event lines on the same socket, which are skipped while waiting for a
// response.
type MpvClient struct {
	socketPath string

	mu        sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	requestID int64
}

// mpvRequest is the wire format of an IPC command
type mpvRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

// mpvResponse is the wire format of an IPC response or event
type mpvResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

// NewMpvClient creates a client for the mpv IPC socket at socketPath.
// The connection is established lazily on first command.
func NewMpvClient(socketPath string) *MpvClient {
	return &MpvClient{socketPath: socketPath}
}

// Close closes the IPC connection if one is open
func (c *MpvClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropConnLocked()
}

// Load replaces the current media with the file at path and starts playback.
// mpv idles paused after startup, so playback is explicitly resumed.
func (c *MpvClient) Load(ctx context.Context, path string) error {
	if _, err := c.command(ctx, "loadfile", path, "replace"); err != nil {
		return err
	}
	return c.SetPaused(ctx, false)
}

// Seek jumps to an absolute position in seconds
func (c *MpvClient) Seek(ctx context.Context, seconds float64) error {
	_, err := c.command(ctx, "seek", fmt.Sprintf("%.3f", seconds), "absolute")
	return err
}

// SetSpeed sets the playback speed multiplier
func (c *MpvClient) SetSpeed(ctx context.Context, speed float64) error {
	_, err := c.command(ctx, "set_property", "speed", speed)
	return err
}

// SetPaused pauses or resumes playback
func (c *MpvClient) SetPaused(ctx context.Context, paused bool) error {
	_, err := c.command(ctx, "set_property", "pause", paused)
	return err
}

// Position returns the current playback position in seconds
func (c *MpvClient) Position(ctx context.Context) (float64, error) {
	return c.floatProperty(ctx, "playback-time")
}

// Duration returns the duration of the loaded file in seconds
func (c *MpvClient) Duration(ctx context.Context) (float64, error) {
	return c.floatProperty(ctx, "duration")
}

// EOFReached reports whether playback has reached the end of the file
func (c *MpvClient) EOFReached(ctx context.Context) (bool, error) {
	data, err := c.command(ctx, "get_property", "eof-reached")
	if err != nil {
		return false, err
	}
	var eof bool
	if err := json.Unmarshal(data, &eof); err != nil {
		return false, fmt.Errorf("failed to decode eof-reached: %w", err)
	}
	return eof, nil
}

// floatProperty fetches a numeric mpv property
func (c *MpvClient) floatProperty(ctx context.Context, name string) (float64, error) {
	data, err := c.command(ctx, "get_property", name)
	if err != nil {
		return 0, err
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return 0, fmt.Errorf("failed to decode property %s: %w", name, err)
	}
	return value, nil
}

// command sends a single IPC command and waits for its correlated response.
// The connection is dropped and re-established on any transport error so a
// wedged socket never poisons subsequent commands.
func (c *MpvClient) command(ctx context.Context, args ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	c.requestID++
	req := mpvRequest{Command: args, RequestID: c.requestID}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mpv request: %w", err)
	}
	payload = append(payload, '\n')

	deadline := time.Now().Add(defaultCommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		_ = c.dropConnLocked()
		return nil, fmt.Errorf("failed to set socket deadline: %w", err)
	}

	if _, err := c.conn.Write(payload); err != nil {
		_ = c.dropConnLocked()
		return nil, fmt.Errorf("failed to write mpv command: %w", err)
	}

	// Read lines until the response matching our request id arrives,
	// skipping interleaved event notifications.
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			_ = c.dropConnLocked()
			return nil, fmt.Errorf("failed to read mpv response: %w", err)
		}

		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logger.Log.Debug().
				Str("line", strings.TrimSpace(string(line))).
				Msg("Skipping unparseable mpv IPC line")
			continue
		}

		if resp.Event != "" || resp.RequestID != req.RequestID {
			continue
		}

		if resp.Error != "success" {
			if strings.Contains(strings.ToLower(resp.Error), "unavailable") {
				return nil, ErrPropertyUnavailable
			}
			return nil, fmt.Errorf("mpv command failed: %s", resp.Error)
		}
		return resp.Data, nil
	}
}

// connectLocked establishes the IPC connection if needed (must hold lock)
func (c *MpvClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to mpv socket %s: %w", c.socketPath, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// dropConnLocked closes and clears the IPC connection (must hold lock)
func (c *MpvClient) dropConnLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
