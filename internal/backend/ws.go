package backend

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenplay/agent/internal/config"
	"github.com/lumenplay/agent/internal/logger"
)

const (
	wsReconnectBaseDelay = time.Second
	wsReconnectMaxDelay  = 60 * time.Second
	wsPongTimeout        = 60 * time.Second
	wsPingInterval       = 25 * time.Second
	wsWriteTimeout       = 10 * time.Second
)

// CommandType identifies a pushed backend command
type CommandType string

const (
	// CommandContentUpdate tells the device to pull fresh content now
	CommandContentUpdate CommandType = "content_update"
	// CommandRefreshInfo tells the device to re-fetch its device info
	CommandRefreshInfo CommandType = "refresh_info"
	// CommandRestartPlayer tells the device to restart its player process
	CommandRestartPlayer CommandType = "restart_player"
)

// Command is one message pushed by the backend over the websocket
type Command struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Listener maintains a websocket connection to the backend and surfaces
// pushed commands on a channel. The connection is retried with exponential
// backoff; the poll loop covers any commands missed while disconnected.
type Listener struct {
	url      string
	token    string
	commands chan Command

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewListener creates a websocket listener for the given device. The token
// is read the same way the REST client reads it; an empty websocket URL
// disables the listener.
func NewListener(cfg config.BackendConfig, token string) *Listener {
	return &Listener{
		url:      cfg.WebsocketURL,
		token:    token,
		commands: make(chan Command, 8),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Commands returns the channel of pushed backend commands
func (l *Listener) Commands() <-chan Command {
	return l.commands
}

// Start begins the connect-and-read loop. With no websocket URL configured
// the listener is a no-op and the device relies on polling alone.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return
	}
	l.started = true

	if l.url == "" {
		logger.Log.Info().Msg("No websocket URL configured, push channel disabled")
		close(l.done)
		return
	}

	go l.run()
	logger.Log.Info().
		Str("url", l.url).
		Msg("Backend push listener started")
}

// Stop tears down the websocket connection loop
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	close(l.stopChan)
	<-l.done
}

// run reconnects forever with exponential backoff, resetting the delay
// after each successful session
func (l *Listener) run() {
	defer close(l.done)

	delay := wsReconnectBaseDelay
	for {
		select {
		case <-l.stopChan:
			return
		default:
		}

		if l.session() {
			delay = wsReconnectBaseDelay
		}

		select {
		case <-l.stopChan:
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > wsReconnectMaxDelay {
			delay = wsReconnectMaxDelay
		}
	}
}

// session dials the backend and reads commands until the connection drops.
// Returns true if the session lasted long enough to count as healthy.
func (l *Listener) session() bool {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(l.url, header)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("url", l.url).
			Msg("Websocket connect failed")
		return false
	}
	defer conn.Close()

	logger.Log.Info().Msg("Websocket connected")
	connectedAt := time.Now()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				readErr <- err
				return
			}
			if cmd.Type == "" {
				continue
			}
			select {
			case l.commands <- cmd:
			default:
				logger.Log.Warn().
					Str("type", string(cmd.Type)).
					Msg("Dropping backend command, channel full")
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-l.stopChan:
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout),
			)
			return true
		case err := <-readErr:
			logger.Log.Warn().
				Err(err).
				Msg("Websocket read failed, reconnecting")
			return time.Since(connectedAt) > wsPingInterval
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				logger.Log.Warn().
					Err(err).
					Msg("Websocket ping failed, reconnecting")
				return time.Since(connectedAt) > wsPingInterval
			}
		}
	}
}
