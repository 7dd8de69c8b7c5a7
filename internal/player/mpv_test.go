package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMpvServer speaks just enough of the mpv IPC protocol for the client
// tests: line-delimited JSON with request_id echo, plus interleaved event
// lines to exercise response correlation.
type fakeMpvServer struct {
	listener net.Listener
	props    map[string]interface{}
}

func newFakeMpvServer(t *testing.T) (*fakeMpvServer, string) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "mpv.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	srv := &fakeMpvServer{
		listener: listener,
		props: map[string]interface{}{
			"playback-time": 12.345,
			"duration":      60.0,
			"eof-reached":   false,
		},
	}
	go srv.serve()
	t.Cleanup(func() { _ = listener.Close() })

	return srv, socketPath
}

func (s *fakeMpvServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeMpvServer) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req struct {
			Command   []interface{} `json:"command"`
			RequestID int64         `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || len(req.Command) == 0 {
			continue
		}

		// Interleave an event line before every response; the client must
		// skip these while waiting for its request_id
		fmt.Fprintf(conn, `{"event":"property-change","name":"time-pos"}`+"\n")

		name, _ := req.Command[0].(string)
		switch name {
		case "get_property":
			prop, _ := req.Command[1].(string)
			value, ok := s.props[prop]
			if !ok {
				fmt.Fprintf(conn, `{"error":"property unavailable","request_id":%d}`+"\n", req.RequestID)
				continue
			}
			data, _ := json.Marshal(value)
			fmt.Fprintf(conn, `{"error":"success","data":%s,"request_id":%d}`+"\n", data, req.RequestID)
		default:
			fmt.Fprintf(conn, `{"error":"success","request_id":%d}`+"\n", req.RequestID)
		}
	}
}

func TestMpvClientPosition(t *testing.T) {
	_, socketPath := newFakeMpvServer(t)
	client := NewMpvClient(socketPath)
	defer client.Close()

	pos, err := client.Position(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.345, pos, 1e-9)
}

func TestMpvClientDuration(t *testing.T) {
	_, socketPath := newFakeMpvServer(t)
	client := NewMpvClient(socketPath)
	defer client.Close()

	dur, err := client.Duration(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 60.0, dur, 1e-9)
}

func TestMpvClientUnavailableProperty(t *testing.T) {
	srv, socketPath := newFakeMpvServer(t)
	delete(srv.props, "playback-time")

	client := NewMpvClient(socketPath)
	defer client.Close()

	_, err := client.Position(context.Background())
	assert.ErrorIs(t, err, ErrPropertyUnavailable)
}

func TestMpvClientCommandsSucceed(t *testing.T) {
	_, socketPath := newFakeMpvServer(t)
	client := NewMpvClient(socketPath)
	defer client.Close()

	ctx := context.Background()
	assert.NoError(t, client.Load(ctx, "/media/loop.mp4"))
	assert.NoError(t, client.Seek(ctx, 12.5))
	assert.NoError(t, client.SetSpeed(ctx, 0.97))
	assert.NoError(t, client.SetPaused(ctx, false))

	eof, err := client.EOFReached(ctx)
	require.NoError(t, err)
	assert.False(t, eof)
}

func TestMpvClientSequentialRequestIDs(t *testing.T) {
	// Several commands over one connection must each correlate with their
	// own response despite the interleaved events
	_, socketPath := newFakeMpvServer(t)
	client := NewMpvClient(socketPath)
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		pos, err := client.Position(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 12.345, pos, 1e-9)
	}
}

func TestMpvClientConnectFailure(t *testing.T) {
	client := NewMpvClient(filepath.Join(t.TempDir(), "absent.sock"))
	defer client.Close()

	_, err := client.Position(context.Background())
	assert.Error(t, err)
}
