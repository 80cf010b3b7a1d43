package lintserver

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/defines"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver/jsonrpc"
	"github.com/tomschdev/proto-lindt-ext/internal/validation"
)

var (
	sessionToAdditionalData     = make(map[*jsonrpc.Session]*additionalSessionData)
	sessionToAdditionalDataLock sync.Mutex
)

type additionalSessionData struct {
	lock sync.RWMutex

	clientCapabilities defines.ClientCapabilities
	serverCapabilities defines.ServerCapabilities

	didSaveCapabilityRegistrationIds map[defines.DocumentUri]uuid.UUID

	//Editor-side content of open documents, keyed by absolute path.
	//Needed because the linter reads the file from disk while suggestion
	//requests need the possibly unsaved text.
	openDocumentTexts map[string]string

	orchestrator *validation.Orchestrator //created during initialization
}

func (d *additionalSessionData) supportsRelatedInformation() bool {
	textDocument := d.clientCapabilities.TextDocument
	if textDocument == nil || textDocument.PublishDiagnostics == nil {
		return false
	}
	support := textDocument.PublishDiagnostics.RelatedInformation
	return support != nil && *support
}

func (d *additionalSessionData) supportsWorkspaceConfiguration() bool {
	workspace := d.clientCapabilities.Workspace
	if workspace == nil || workspace.Configuration == nil {
		return false
	}
	return *workspace.Configuration
}

func (d *additionalSessionData) supportsDidSaveDynamicRegistration() bool {
	textDocument := d.clientCapabilities.TextDocument
	if textDocument == nil || textDocument.Synchronization == nil {
		return false
	}
	syncCapabilities := textDocument.Synchronization
	return syncCapabilities.DidSave != nil && *syncCapabilities.DidSave &&
		syncCapabilities.DynamicRegistration != nil && *syncCapabilities.DynamicRegistration
}

func getLockedSessionData(session *jsonrpc.Session) *additionalSessionData {
	sessionData := getSessionData(session)
	sessionData.lock.Lock()
	return sessionData
}

func getSessionData(session *jsonrpc.Session) *additionalSessionData {
	sessionToAdditionalDataLock.Lock()
	sessionData := sessionToAdditionalData[session]
	if sessionData == nil {
		sessionData = &additionalSessionData{
			didSaveCapabilityRegistrationIds: make(map[defines.DocumentUri]uuid.UUID, 0),
			openDocumentTexts:                make(map[string]string, 0),
		}
		sessionToAdditionalData[session] = sessionData
	}

	sessionToAdditionalDataLock.Unlock()
	return sessionData
}

func removeSessionData(session *jsonrpc.Session) {
	sessionToAdditionalDataLock.Lock()
	sessionData := sessionToAdditionalData[session]
	delete(sessionToAdditionalData, session)
	sessionToAdditionalDataLock.Unlock()

	if sessionData == nil {
		return
	}

	sessionData.lock.Lock()
	orchestrator := sessionData.orchestrator
	sessionData.orchestrator = nil
	sessionData.lock.Unlock()

	if orchestrator != nil {
		orchestrator.Close()
	}
}
