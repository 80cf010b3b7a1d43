package lintserver

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/jsonrpc"
	"github.com/tomschdev/proto-lindt-ext/internal/utils"
	"github.com/tomschdev/proto-lindt-ext/internal/validation"
)

const (
	SERVER_NAME = "proto-lindt"

	//Configuration section requested from the client for each document.
	DEFAULT_CONFIG_SECTION = "protoLindt"
)

var (
	True  = true
	False = false
)

// method builds a MethodInfo from a typed handler. A nil result with a nil
// error is treated as a notification handler by the JSON-RPC layer.
func method[P any](name string, handler func(ctx context.Context, session *jsonrpc.Session, params *P) (interface{}, error)) jsonrpc.MethodInfo {
	return jsonrpc.MethodInfo{
		Name: name,
		NewRequest: func() interface{} {
			return new(P)
		},
		Handler: func(ctx context.Context, req interface{}) (interface{}, error) {
			return handler(ctx, jsonrpc.GetSession(ctx), req.(*P))
		},
	}
}

func registerMethodHandlers(server *jsonrpc.Server, serverConfig ServerConfiguration) {

	//Session initialization and shutdown

	server.RegisterMethod(method("initialize", func(ctx context.Context, session *jsonrpc.Session, params *defines.InitializeParams) (interface{}, error) {
		return handleInitialize(session, params, serverConfig)
	}))

	server.RegisterMethod(method("initialized", func(ctx context.Context, session *jsonrpc.Session, params *defines.InitializedParams) (interface{}, error) {
		return nil, nil
	}))

	server.RegisterMethod(method("shutdown", func(ctx context.Context, session *jsonrpc.Session, params *defines.NoParams) (interface{}, error) {
		session.SetShuttingDown()
		return json.RawMessage("null"), nil
	}))

	server.RegisterMethod(method("exit", func(ctx context.Context, session *jsonrpc.Session, params *defines.NoParams) (interface{}, error) {
		session.Close()
		return nil, nil
	}))

	//Document synchronization

	server.RegisterMethod(method("textDocument/didOpen", handleDidOpenDocument))

	server.RegisterMethod(method("textDocument/didChange", handleDidChangeDocument))

	server.RegisterMethod(method("textDocument/didSave", handleDidSaveDocument))

	server.RegisterMethod(method("textDocument/didClose", handleDidCloseDocument))

	//Configuration

	server.RegisterMethod(method("workspace/didChangeConfiguration", func(ctx context.Context, session *jsonrpc.Session, params *defines.DidChangeConfigurationParams) (interface{}, error) {
		if orchestrator := getOrchestrator(session); orchestrator != nil {
			orchestrator.AcknowledgeConfigurationChange()
		}
		return nil, nil
	}))
}

func handleInitialize(session *jsonrpc.Session, params *defines.InitializeParams, serverConfig ServerConfiguration) (*defines.InitializeResult, error) {
	capabilities := defines.ServerCapabilities{
		TextDocumentSync: &defines.TextDocumentSyncOptions{
			OpenClose: &True,
			Change:    defines.TextDocumentSyncKindFull,
			Save:      &defines.SaveOptions{IncludeText: &True},
		},
	}

	sessionData := getLockedSessionData(session)
	sessionData.clientCapabilities = params.Capabilities
	sessionData.serverCapabilities = capabilities

	var fetchSettings validation.SettingsFetchFn
	if sessionData.supportsWorkspaceConfiguration() {
		fetchSettings = newSettingsFetchFn(session, serverConfig)
	}

	previousOrchestrator := sessionData.orchestrator
	sessionData.orchestrator = validation.NewOrchestrator(validation.OrchestratorConfig{
		Linter:               &notifyingLinter{inner: serverConfig.Linter, session: session},
		Enricher:             serverConfig.Enricher,
		Publisher:            &sessionPublisher{session: session},
		Settings:             validation.NewSettingsCache(serverConfig.DefaultSettings, fetchSettings),
		SupportsRelatedInfo:  sessionData.supportsRelatedInformation(),
		ClearOnLinterFailure: serverConfig.ClearOnLinterFailure,
		DebounceDuration:     serverConfig.DebounceDuration,
		Logger:               session.Logger(),
	})
	sessionData.lock.Unlock()

	//A repeated initialize replaces the orchestrator, the previous one and
	//its in-flight passes are stopped.
	if previousOrchestrator != nil {
		previousOrchestrator.Close()
	}

	version := serverConfig.ServerVersion
	return &defines.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &defines.ServerInfo{
			Name:    SERVER_NAME,
			Version: &version,
		},
	}, nil
}

func handleDidOpenDocument(ctx context.Context, session *jsonrpc.Session, params *defines.DidOpenTextDocumentParams) (interface{}, error) {
	docURI := normalizeURI(params.TextDocument.Uri)

	fpath, err := getProtoFilePath(docURI)
	if err != nil {
		//Documents of other kinds are not validated.
		logger := session.Logger()
		logger.Debug().Str("uri", string(docURI)).Msg("ignore opened document")
		return nil, nil
	}

	registrationId := uuid.New()

	sessionData := getLockedSessionData(session)
	orchestrator := sessionData.orchestrator
	sessionData.openDocumentTexts[fpath] = params.TextDocument.Text

	//Dynamic registration is only allowed for clients that advertise it.
	_, alreadyRegistered := sessionData.didSaveCapabilityRegistrationIds[docURI]
	shouldRegister := sessionData.supportsDidSaveDynamicRegistration() && !alreadyRegistered
	if shouldRegister {
		sessionData.didSaveCapabilityRegistrationIds[docURI] = registrationId
	}
	sessionData.lock.Unlock()

	if shouldRegister {
		//Ask the client to include the full text in didSave notifications
		//for this document.
		go func() {
			defer utils.Recover()
			session.SendRequest(session.Context(), "client/registerCapability", utils.Must(json.Marshal(defines.RegistrationParams{
				Registrations: []defines.Registration{
					{
						Id:     registrationId.String(),
						Method: "textDocument/didSave",
						RegisterOptions: defines.TextDocumentSaveRegistrationOptions{
							TextDocumentRegistrationOptions: defines.TextDocumentRegistrationOptions{
								DocumentSelector: params.TextDocument,
							},
							SaveOptions: defines.SaveOptions{
								IncludeText: &True,
							},
						},
					},
				},
			})))
		}()
	}

	if orchestrator != nil {
		orchestrator.TriggerValidation(docURI, fpath, params.TextDocument.Text, true)
	}
	return nil, nil
}

func handleDidChangeDocument(ctx context.Context, session *jsonrpc.Session, params *defines.DidChangeTextDocumentParams) (interface{}, error) {
	docURI := normalizeURI(params.TextDocument.Uri)

	fpath, err := getProtoFilePath(docURI)
	if err != nil {
		return nil, nil
	}
	if len(params.ContentChanges) == 0 {
		return nil, nil
	}

	//Full synchronization: the last change carries the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	sessionData := getLockedSessionData(session)
	orchestrator := sessionData.orchestrator
	sessionData.openDocumentTexts[fpath] = text
	sessionData.lock.Unlock()

	if orchestrator != nil {
		orchestrator.TriggerValidation(docURI, fpath, text, false)
	}
	return nil, nil
}

func handleDidSaveDocument(ctx context.Context, session *jsonrpc.Session, params *defines.DidSaveTextDocumentParams) (interface{}, error) {
	docURI := normalizeURI(params.TextDocument.Uri)

	fpath, err := getProtoFilePath(docURI)
	if err != nil {
		return nil, nil
	}

	sessionData := getLockedSessionData(session)
	orchestrator := sessionData.orchestrator
	if params.Text != nil {
		sessionData.openDocumentTexts[fpath] = *params.Text
	}
	text := sessionData.openDocumentTexts[fpath]
	sessionData.lock.Unlock()

	if orchestrator != nil {
		orchestrator.TriggerValidation(docURI, fpath, text, true)
	}
	return nil, nil
}

func handleDidCloseDocument(ctx context.Context, session *jsonrpc.Session, params *defines.DidCloseTextDocumentParams) (interface{}, error) {
	docURI := normalizeURI(params.TextDocument.Uri)

	fpath, err := getProtoFilePath(docURI)
	if err != nil {
		return nil, nil
	}

	sessionData := getLockedSessionData(session)
	orchestrator := sessionData.orchestrator
	delete(sessionData.openDocumentTexts, fpath)
	registrationId, registered := sessionData.didSaveCapabilityRegistrationIds[docURI]
	delete(sessionData.didSaveCapabilityRegistrationIds, docURI)
	sessionData.lock.Unlock()

	if registered {
		go func() {
			defer utils.Recover()
			session.SendRequest(session.Context(), "client/unregisterCapability", utils.Must(json.Marshal(defines.UnregistrationParams{
				Unregistrations: []defines.Unregistration{
					{
						Id:     registrationId.String(),
						Method: "textDocument/didSave",
					},
				},
			})))
		}()
	}

	if orchestrator != nil {
		orchestrator.CloseDocument(docURI)
	}
	return nil, nil
}

func getOrchestrator(session *jsonrpc.Session) *validation.Orchestrator {
	sessionData := getSessionData(session)
	sessionData.lock.RLock()
	defer sessionData.lock.RUnlock()
	return sessionData.orchestrator
}

// notifyingLinter surfaces a missing linter binary to the user once per
// session, through window/showMessage. Other failures stay log-only.
type notifyingLinter struct {
	inner    validation.LinterRunner
	session  *jsonrpc.Session
	notified sync.Once
}

func (l *notifyingLinter) Run(ctx context.Context, absFilePath string) (string, error) {
	report, err := l.inner.Run(ctx, absFilePath)

	if err != nil && errors.Is(err, exec.ErrNotFound) {
		l.notified.Do(func() {
			params := utils.Must(json.Marshal(defines.ShowMessageParams{
				Type:    defines.MessageTypeWarning,
				Message: "api-linter executable not found: install it and make sure it is in PATH",
			}))
			l.session.Notify(jsonrpc.NotificationMessage{
				Method: "window/showMessage",
				Params: params,
			})
		})
	}
	return report, err
}

// sessionPublisher sends textDocument/publishDiagnostics notifications over
// one session.
type sessionPublisher struct {
	session *jsonrpc.Session
}

func (p *sessionPublisher) PublishDiagnostics(docURI defines.DocumentUri, diagnostics []defines.Diagnostic) error {
	params, err := json.Marshal(defines.PublishDiagnosticsParams{
		Uri:         docURI,
		Diagnostics: diagnostics,
	})
	if err != nil {
		return err
	}

	return p.session.Notify(jsonrpc.NotificationMessage{
		Method: "textDocument/publishDiagnostics",
		Params: params,
	})
}

// newSettingsFetchFn builds a fetcher that retrieves a document's effective
// configuration from the client with a workspace/configuration request.
func newSettingsFetchFn(session *jsonrpc.Session, serverConfig ServerConfiguration) validation.SettingsFetchFn {
	section := serverConfig.ConfigurationSection
	if section == "" {
		section = DEFAULT_CONFIG_SECTION
	}

	return func(ctx context.Context, documentKey string) (validation.DocumentSettings, error) {
		scopeUri := defines.DocumentUri(documentKey)

		params, err := json.Marshal(defines.ConfigurationParams{
			Items: []defines.ConfigurationItem{
				{ScopeUri: &scopeUri, Section: &section},
			},
		})
		if err != nil {
			return validation.DocumentSettings{}, err
		}

		rawResult, err := session.SendRequest(ctx, "workspace/configuration", params)
		if err != nil {
			return validation.DocumentSettings{}, err
		}

		//The client answers with one entry per requested item.
		var entries []json.RawMessage
		if err := json.Unmarshal(rawResult, &entries); err != nil {
			return validation.DocumentSettings{}, err
		}

		settings := serverConfig.DefaultSettings
		if len(entries) != 0 && string(entries[0]) != "null" {
			if err := json.Unmarshal(entries[0], &settings); err != nil {
				return validation.DocumentSettings{}, err
			}
		}
		return settings, nil
	}
}
