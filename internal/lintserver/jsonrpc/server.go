package jsonrpc

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type MethodInfo struct {
	Name       string
	NewRequest func() interface{}
	Handler    func(ctx context.Context, req interface{}) (interface{}, error)
}

// SessionCreationCallbackFn is called before starting each new session.
type SessionCreationCallbackFn func(*Session) error

type Server struct {
	sessions    map[int]*Session
	nextId      int
	methods     map[string]MethodInfo
	sessionLock sync.Mutex
	onSession   SessionCreationCallbackFn
	logger      zerolog.Logger
}

func NewServer(logger zerolog.Logger, onSession SessionCreationCallbackFn) *Server {
	if onSession == nil {
		onSession = func(s *Session) error { return nil }
	}

	s := &Server{
		sessions:  make(map[int]*Session),
		methods:   make(map[string]MethodInfo),
		onSession: onSession,
		logger:    logger,
	}

	s.RegisterMethod(cancelRequestMethod())
	return s
}

func (s *Server) RegisterMethod(m MethodInfo) {
	s.methods[m.Name] = m
}

// ConnComeIn runs a session over a byte-stream connection, blocking until
// the session ends.
func (s *Server) ConnComeIn(conn ReaderWriter) {
	session := s.newSession(conn)
	if err := s.onSession(session); err != nil {
		s.logger.Error().Err(err).Msg("session setup failed")
		session.Close()
		return
	}
	session.Start()
}

// MsgConnComeIn runs a session over a message connection, blocking until
// the session ends.
func (s *Server) MsgConnComeIn(conn MessageReaderWriter) {
	session := s.newMessageSession(conn)
	if err := s.onSession(session); err != nil {
		s.logger.Error().Err(err).Msg("session setup failed")
		session.Close()
		return
	}
	session.Start()
}

func (s *Server) newSession(conn ReaderWriter) *Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	id := s.nextId
	s.nextId++

	session := newSessionWithConn(id, s, conn)
	s.sessions[id] = session
	return session
}

func (s *Server) newMessageSession(conn MessageReaderWriter) *Session {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()

	id := s.nextId
	s.nextId++

	session := newSessionWithMessageConn(id, s, conn)
	s.sessions[id] = session
	return session
}

func (s *Server) removeSession(id int) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	delete(s.sessions, id)
}

func cancelRequestMethod() MethodInfo {
	return MethodInfo{
		Name: "$/cancelRequest",
		NewRequest: func() interface{} {
			return &CancelParams{}
		},
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			params := req.(*CancelParams)
			session := GetSession(ctx)
			if session != nil {
				session.CancelJob(params.ID)
			}
			return nil, nil
		},
	}
}
