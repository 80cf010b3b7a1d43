// Package lintserver exposes protobuf lint findings as LSP diagnostics over
// a JSON-RPC connection (stdio or WebSocket).
package lintserver

import (
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/jsonrpc"
	"github.com/tomschdev/proto-lindt-ext/internal/utils"
	"github.com/tomschdev/proto-lindt-ext/internal/validation"
)

type ServerConfiguration struct {
	//Exactly one transport must be set.
	InternalStdio       *InternalStdio
	Websocket           *WebsocketServerConfiguration
	MessageReaderWriter jsonrpc.MessageReaderWriter

	Linter   validation.LinterRunner
	Enricher validation.SuggestionEnricher //optional

	DefaultSettings      validation.DocumentSettings
	ConfigurationSection string //defaults to DEFAULT_CONFIG_SECTION
	ClearOnLinterFailure bool
	DebounceDuration     time.Duration

	ServerVersion string

	Logger zerolog.Logger

	OnSession jsonrpc.SessionCreationCallbackFn //optional
}

type InternalStdio struct {
	StdioInput  io.Reader
	StdioOutput io.Writer
}

type WebsocketServerConfiguration struct {
	Addr                  string //examples: localhost:8305, :8305
	Certificate           string
	CertificatePrivateKey string
}

// StartLSPServer runs the server on the configured transport, blocking until
// the transport fails or the (stdio) session ends.
func StartLSPServer(serverConfig ServerConfiguration) (finalErr error) {
	defer func() {
		if e := recover(); e != nil {
			finalErr = utils.ConvertPanicValueToError(e)
			serverConfig.Logger.Error().Err(finalErr).Msg("LSP server panic")
		}
	}()

	if serverConfig.Linter == nil {
		return errors.New("invalid LSP server configuration: no linter runner")
	}

	transportCount := 0
	if serverConfig.InternalStdio != nil {
		transportCount++
	}
	if serverConfig.Websocket != nil {
		transportCount++
	}
	if serverConfig.MessageReaderWriter != nil {
		transportCount++
	}
	if transportCount != 1 {
		return errors.New("invalid LSP server configuration: exactly one transport must be set")
	}

	rpcServer := jsonrpc.NewServer(serverConfig.Logger, func(session *jsonrpc.Session) error {
		session.SetClosedCallbackFn(removeSessionData)

		if serverConfig.OnSession != nil {
			return serverConfig.OnSession(session)
		}
		return nil
	})

	registerMethodHandlers(rpcServer, serverConfig)

	switch {
	case serverConfig.InternalStdio != nil:
		serverConfig.Logger.Info().Msg("LSP server configured, listen on stdio")
		rpcServer.ConnComeIn(&stdioReaderWriter{
			in:  serverConfig.InternalStdio.StdioInput,
			out: serverConfig.InternalStdio.StdioOutput,
		})
		return nil
	case serverConfig.Websocket != nil:
		serverConfig.Logger.Info().Str("addr", serverConfig.Websocket.Addr).Msg("LSP server configured, listen on websocket")
		wsServer := &jsonrpc.WebsocketServer{
			Addr:      serverConfig.Websocket.Addr,
			RpcServer: rpcServer,
			Logger:    serverConfig.Logger,
			CertFile:  serverConfig.Websocket.Certificate,
			KeyFile:   serverConfig.Websocket.CertificatePrivateKey,
		}
		return wsServer.Listen()
	default:
		rpcServer.MsgConnComeIn(serverConfig.MessageReaderWriter)
		return nil
	}
}
