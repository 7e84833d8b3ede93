package telemetry

import (
	"time"

	"github.com/gorilla/websocket"
)

// Stream is a client-side subscription to one telemetry topic. The monitor
// uses it against asterd's WebSocket endpoints.
type Stream struct {
	conn *websocket.Conn
}

// Dial connects to a telemetry WebSocket URL (ws://host/ws/<topic>).
func Dial(url string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

// Read blocks for the next message and decodes it into v.
func (s *Stream) Read(v any) error {
	return s.conn.ReadJSON(v)
}

// Close sends a close frame and tears down the connection.
func (s *Stream) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
