package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport handle of one peer. *websocket.Conn satisfies it; the relay never deals
// with how the connection was accepted or whether it is encrypted.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// frame is one outbound message with its framing preserved.
type frame struct {
	messageType int
	data        []byte
}

func frameTypeName(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "other"
	}
}
