package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed message over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// ReadMessage reads one raw frame with a deadline. Raw bytes so the caller
// can peek at the envelope before binding the full message.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	_, data, err := conn.ReadMessage()
	return data, err
}

// DecodeInto binds a raw frame to a message structure.
func DecodeInto(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
