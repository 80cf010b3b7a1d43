package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

var ErrSessionClosed = errors.New("jsonrpc session is closed")

type executor struct {
	id     interface{}
	cancel context.CancelFunc
}

type Session struct {
	id     int
	server *Server
	logger zerolog.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Only one connection is non-nil.
	conn    ReaderWriter
	bufRead *bufio.Reader
	msgConn MessageReaderWriter

	executors    map[interface{}]*executor
	executorLock sync.Mutex

	pendingRequests    map[string]chan ResponseMessage
	pendingRequestLock sync.Mutex

	writeLock sync.Mutex

	closed       bool
	shuttingDown bool
	stateLock    sync.Mutex

	closedCallback   func(*Session)
	shutdownCallback func(*Session)
}

func newSessionWithConn(id int, server *Server, conn ReaderWriter) *Session {
	s := newSession(id, server)
	s.conn = conn
	s.bufRead = bufio.NewReader(conn)
	return s
}

func newSessionWithMessageConn(id int, server *Server, conn MessageReaderWriter) *Session {
	s := newSession(id, server)
	s.msgConn = conn
	return s
}

func newSession(id int, server *Server) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:              id,
		server:          server,
		logger:          server.logger.With().Int("session", id).Logger(),
		ctx:             ctx,
		cancelCtx:       cancel,
		executors:       make(map[interface{}]*executor),
		pendingRequests: make(map[string]chan ResponseMessage),
	}
}

// GetSession returns the session a handler is being invoked for.
func GetSession(ctx context.Context) *Session {
	val := ctx.Value(sessionKey)
	if isNil(val) {
		return nil
	}
	return val.(*Session)
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

func (s *Session) Closed() bool {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.closed
}

func (s *Session) IsShuttingDown() bool {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.shuttingDown
}

func (s *Session) SetShuttingDown() {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	s.shuttingDown = true
}

func (s *Session) SetClosedCallbackFn(fn func(*Session)) {
	s.closedCallback = fn
}

func (s *Session) SetShutdownCallbackFn(fn func(*Session)) {
	s.shutdownCallback = fn
}

func (s *Session) Start() {
	for {
		if s.Closed() {
			return
		}
		s.handle()
	}
}

func (s *Session) Close() {
	s.stateLock.Lock()
	if s.closed {
		s.stateLock.Unlock()
		return
	}
	s.closed = true
	s.stateLock.Unlock()

	if s.conn != nil {
		s.conn.Close()
	} else if s.msgConn != nil {
		s.msgConn.Close()
	}

	s.executorLock.Lock()
	for _, exec := range s.executors {
		exec.cancel()
	}
	s.executorLock.Unlock()

	s.cancelCtx()
	s.server.removeSession(s.id)

	if s.shutdownCallback != nil {
		s.shutdownCallback(s)
	}
	if s.closedCallback != nil {
		s.closedCallback(s)
	}
}

func (s *Session) handle() {
	msg, err := s.readMessage()
	if err != nil {
		s.handleReadError(err)
		return
	}

	//Response to a server-initiated request.
	if msg.Method == "" && !isNil(msg.ID) {
		s.dispatchResponse(msg)
		return
	}

	if err := s.handleRequest(msg); err != nil {
		respErr := s.writeResponse(msg.ID, nil, err)
		if respErr != nil {
			s.handleReadError(respErr)
		}
	}
}

func (s *Session) readMessage() (incomingMessage, error) {
	var contentBytes []byte

	if s.msgConn != nil {
		msg, err := s.msgConn.ReadMessage()
		if err != nil {
			return incomingMessage{}, err
		}
		contentBytes = msg
	} else {
		contentLength := -1

		for {
			line, err := s.bufRead.ReadString('\n')
			if err != nil {
				return incomingMessage{}, err
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}

			name, value, ok := strings.Cut(line, ":")
			if !ok {
				return incomingMessage{}, ParseError
			}
			if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
				contentLength, err = strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					e := ParseError
					e.Data = err.Error()
					return incomingMessage{}, e
				}
			}
		}

		if contentLength < 0 {
			return incomingMessage{}, ParseError
		}

		content := make([]byte, contentLength)
		if _, err := io.ReadFull(s.bufRead, content); err != nil {
			return incomingMessage{}, err
		}
		contentBytes = content
	}

	msg := incomingMessage{}
	if err := json.Unmarshal(contentBytes, &msg); err != nil {
		e := ParseError
		e.Data = err.Error()
		return incomingMessage{}, e
	}
	return msg, nil
}

func (s *Session) handleRequest(msg incomingMessage) error {
	mtdInfo, ok := s.server.methods[msg.Method]
	if !ok {
		if isNil(msg.ID) {
			//Unknown notifications are ignored.
			s.logger.Debug().Str("method", msg.Method).Msg("ignore unknown notification")
			return nil
		}
		return MethodNotFound
	}

	reqArgs := mtdInfo.NewRequest()
	if len(msg.Params) != 0 {
		if err := json.Unmarshal(msg.Params, reqArgs); err != nil {
			e := InvalidParams
			e.Data = err.Error()
			return e
		}
	}

	s.execute(mtdInfo, msg, reqArgs)
	return nil
}

func (s *Session) execute(mtdInfo MethodInfo, msg incomingMessage, args interface{}) {
	ctx, cancel := context.WithCancel(s.ctx)
	ctx = context.WithValue(ctx, sessionKey, s)

	exec := &executor{id: msg.ID, cancel: cancel}
	if !isNil(msg.ID) {
		s.registerExecutor(exec)
	}

	go func() {
		defer s.removeExecutor(exec)
		defer func() {
			if e := recover(); e != nil {
				s.logger.Error().Interface("panic", e).Str("method", msg.Method).Msg("handler panic")
				if !isNil(msg.ID) {
					s.writeResponse(msg.ID, nil, InternalError)
				}
			}
		}()

		resp, err := mtdInfo.Handler(ctx, args)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if isNil(resp) && isNil(err) && isNil(msg.ID) {
			return
		}
		if writeErr := s.writeResponse(msg.ID, resp, err); writeErr != nil {
			s.handleReadError(writeErr)
		}
	}()
}

func (s *Session) registerExecutor(exec *executor) {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	s.executors[exec.id] = exec
}

func (s *Session) removeExecutor(exec *executor) {
	s.executorLock.Lock()
	defer s.executorLock.Unlock()
	delete(s.executors, exec.id)
}

// CancelJob cancels the handler executing the request with the given id.
func (s *Session) CancelJob(id interface{}) {
	s.executorLock.Lock()
	exec, ok := s.executors[id]
	if ok {
		delete(s.executors, id)
	}
	s.executorLock.Unlock()

	if ok {
		exec.cancel()
	}
}

func (s *Session) dispatchResponse(msg incomingMessage) {
	key := fmt.Sprint(msg.ID)

	s.pendingRequestLock.Lock()
	ch, ok := s.pendingRequests[key]
	if ok {
		delete(s.pendingRequests, key)
	}
	s.pendingRequestLock.Unlock()

	if !ok {
		s.logger.Debug().Str("id", key).Msg("response with no pending request")
		return
	}

	ch <- ResponseMessage{
		BaseMessage: msg.BaseMessage,
		ID:          msg.ID,
		Error:       msg.Error,
		RawRes:      msg.Result,
	}
}

// Notify sends a notification to the client.
func (s *Session) Notify(notif NotificationMessage) error {
	notif.Jsonrpc = JSONRPC_VERSION

	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

// SendRequest sends a server-initiated request and waits for the client's
// response or the context's cancellation.
func (s *Session) SendRequest(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := uuid.New().String()

	req := RequestMessage{
		BaseMessage: BaseMessage{Jsonrpc: JSONRPC_VERSION},
		ID:          id,
		Method:      method,
		Params:      params,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	respChan := make(chan ResponseMessage, 1)
	s.pendingRequestLock.Lock()
	s.pendingRequests[id] = respChan
	s.pendingRequestLock.Unlock()

	removePending := func() {
		s.pendingRequestLock.Lock()
		delete(s.pendingRequests, id)
		s.pendingRequestLock.Unlock()
	}

	if err := s.writeRaw(data); err != nil {
		removePending()
		return nil, err
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, *resp.Error
		}
		return resp.RawRes, nil
	case <-ctx.Done():
		removePending()
		return nil, ctx.Err()
	case <-s.ctx.Done():
		removePending()
		return nil, ErrSessionClosed
	}
}

func (s *Session) writeResponse(id interface{}, result interface{}, err error) error {
	resp := ResponseMessage{
		BaseMessage: BaseMessage{Jsonrpc: JSONRPC_VERSION},
		ID:          id,
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		var respErr ResponseError
		if errors.As(err, &respErr) {
			resp.Error = &respErr
		} else {
			respErr = InternalError
			respErr.Data = err.Error()
			resp.Error = &respErr
		}
	} else {
		resp.Result = result
	}

	data, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return marshalErr
	}
	return s.writeRaw(data)
}

func (s *Session) writeRaw(data []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.Closed() {
		return ErrSessionClosed
	}

	if s.msgConn != nil {
		return s.msgConn.WriteMessage(data)
	}

	if _, err := fmt.Fprintf(s.conn, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}

	written := 0
	for written != len(data) {
		n, err := s.conn.Write(data[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

func (s *Session) handleReadError(err error) {
	if errors.Is(err, io.EOF) || websocket.IsUnexpectedCloseError(err) {
		s.logger.Debug().Msg("connection closed by peer")
		s.Close()
		return
	}

	var respErr ResponseError
	if errors.As(err, &respErr) {
		//Report protocol-level errors to the client, then keep reading.
		if writeErr := s.writeResponse(nil, nil, respErr); writeErr != nil {
			s.Close()
		}
		return
	}

	if s.Closed() {
		return
	}
	s.logger.Error().Err(err).Msg("session error")
	s.Close()
}

func isNil(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return true
	}
	return false
}
