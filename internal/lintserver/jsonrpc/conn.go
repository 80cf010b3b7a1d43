package jsonrpc

import "io"

// ReaderWriter is a byte-stream connection carrying Content-Length framed
// messages (stdio or a socket).
type ReaderWriter interface {
	io.Reader
	io.Writer
	io.Closer
}

// MessageReaderWriter is a connection with its own message boundaries
// (e.g. one WebSocket frame per JSON-RPC message).
type MessageReaderWriter interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
}
