// Package defines contains the subset of the Language Server Protocol
// types this server exchanges with its client.
package defines

import "github.com/goccy/go-json"

type DocumentUri string

type URI string

type Position struct {
	// Zero-based line.
	Line uint `json:"line"`

	// Zero-based character offset.
	Character uint `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	Uri   DocumentUri `json:"uri"`
	Range Range       `json:"range"`
}

type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// DiagnosticRelatedInformation points to a code location that caused or is
// related to a diagnostic.
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

type CodeDescription struct {
	// An URI to open with more information about the diagnostic.
	Href URI `json:"href"`
}

type Diagnostic struct {
	// The range at which the message applies.
	Range Range `json:"range"`

	// If omitted it is up to the client to interpret the severity.
	Severity *DiagnosticSeverity `json:"severity,omitempty"`

	Code interface{} `json:"code,omitempty"`

	CodeDescription *CodeDescription `json:"codeDescription,omitempty"`

	// Human-readable source of the diagnostic, e.g. 'api-linter'.
	Source *string `json:"source,omitempty"`

	Message string `json:"message"`

	RelatedInformation *[]DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
}

type PublishDiagnosticsParams struct {
	Uri DocumentUri `json:"uri"`

	// Optional version of the document the diagnostics are published for.
	Version *int `json:"version,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics"`
}

//---------------------------------------------------------
// Text document synchronization
//---------------------------------------------------------

type TextDocumentIdentifier struct {
	Uri DocumentUri `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

type TextDocumentItem struct {
	Uri        DocumentUri `json:"uri"`
	LanguageId string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	// Range of the change, nil for full-document changes.
	Range *Range `json:"range,omitempty"`

	RangeLength *uint `json:"rangeLength,omitempty"`

	Text string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SaveOptions struct {
	IncludeText *bool `json:"includeText,omitempty"`
}

//---------------------------------------------------------
// Initialization & capabilities
//---------------------------------------------------------

type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone        TextDocumentSyncKind = 0
	TextDocumentSyncKindFull        TextDocumentSyncKind = 1
	TextDocumentSyncKindIncremental TextDocumentSyncKind = 2
)

type PublishDiagnosticsClientCapabilities struct {
	RelatedInformation *bool `json:"relatedInformation,omitempty"`
	VersionSupport     *bool `json:"versionSupport,omitempty"`
}

type TextDocumentSyncClientCapabilities struct {
	DynamicRegistration *bool `json:"dynamicRegistration,omitempty"`
	DidSave             *bool `json:"didSave,omitempty"`
}

type TextDocumentClientCapabilities struct {
	Synchronization    *TextDocumentSyncClientCapabilities   `json:"synchronization,omitempty"`
	PublishDiagnostics *PublishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
}

type DidChangeConfigurationClientCapabilities struct {
	DynamicRegistration *bool `json:"dynamicRegistration,omitempty"`
}

type WorkspaceClientCapabilities struct {
	Configuration          *bool                                     `json:"configuration,omitempty"`
	DidChangeConfiguration *DidChangeConfigurationClientCapabilities `json:"didChangeConfiguration,omitempty"`
}

type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type InitializeParams struct {
	ProcessId    *int               `json:"processId,omitempty"`
	RootUri      *DocumentUri       `json:"rootUri,omitempty"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

type TextDocumentSyncOptions struct {
	OpenClose *bool                `json:"openClose,omitempty"`
	Change    TextDocumentSyncKind `json:"change,omitempty"`
	Save      *SaveOptions         `json:"save,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync *TextDocumentSyncOptions `json:"textDocumentSync,omitempty"`
}

type ServerInfo struct {
	Name    string  `json:"name"`
	Version *string `json:"version,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type InitializeError struct {
	Retry bool `json:"retry"`
}

type InitializedParams struct{}

type NoParams struct{}

//---------------------------------------------------------
// Configuration
//---------------------------------------------------------

type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type ConfigurationItem struct {
	ScopeUri *DocumentUri `json:"scopeUri,omitempty"`
	Section  *string      `json:"section,omitempty"`
}

type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

//---------------------------------------------------------
// Dynamic capability registration
//---------------------------------------------------------

type Registration struct {
	Id              string      `json:"id"`
	Method          string      `json:"method"`
	RegisterOptions interface{} `json:"registerOptions,omitempty"`
}

type RegistrationParams struct {
	Registrations []Registration `json:"registrations"`
}

type Unregistration struct {
	Id     string `json:"id"`
	Method string `json:"method"`
}

type UnregistrationParams struct {
	Unregistrations []Unregistration `json:"unregisterations"`
}

type TextDocumentRegistrationOptions struct {
	DocumentSelector interface{} `json:"documentSelector,omitempty"`
}

type TextDocumentSaveRegistrationOptions struct {
	TextDocumentRegistrationOptions
	SaveOptions
}

//---------------------------------------------------------
// Window
//---------------------------------------------------------

type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}
