package jsonrpc

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_WRITE_TIMEOUT = 10 * time.Second
)

// WebsocketServer upgrades incoming HTTP connections and runs one JSON-RPC
// session per WebSocket connection, each message being one frame.
type WebsocketServer struct {
	Addr      string //example: localhost:8305
	RpcServer *Server
	Logger    zerolog.Logger

	//Optional TLS material, plain ws:// when empty.
	CertFile string
	KeyFile  string
}

func (s *WebsocketServer) Listen() error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.Logger.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		s.Logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("new websocket connection")
		go s.RpcServer.MsgConnComeIn(&websocketMessageConn{conn: conn})
	})

	httpServer := &http.Server{Addr: s.Addr, Handler: handler}

	if s.CertFile != "" {
		return httpServer.ListenAndServeTLS(s.CertFile, s.KeyFile)
	}
	return httpServer.ListenAndServe()
}

type websocketMessageConn struct {
	conn *websocket.Conn
}

func (c *websocketMessageConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *websocketMessageConn) WriteMessage(msg []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(DEFAULT_WRITE_TIMEOUT))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *websocketMessageConn) Close() error {
	return c.conn.Close()
}
