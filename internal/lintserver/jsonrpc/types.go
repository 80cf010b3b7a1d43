package jsonrpc

import (
	"fmt"

	"github.com/goccy/go-json"
)

const JSONRPC_VERSION = "2.0"

type BaseMessage struct {
	Jsonrpc string `json:"jsonrpc"`
}

type RequestMessage struct {
	BaseMessage
	ID     interface{}     `json:"id,omitempty"` // int or string, nil for notifications
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type NotificationMessage struct {
	BaseMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ResponseMessage struct {
	BaseMessage
	ID     interface{}     `json:"id"`
	Result interface{}     `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
	RawRes json.RawMessage `json:"-"`
}

// incomingMessage is the shape used to decode any message read from the
// connection before its kind (request, notification, response) is known.
type incomingMessage struct {
	BaseMessage
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (r ResponseError) Error() string {
	return fmt.Sprintf("code: %d, message: %s, data: %v", r.Code, r.Message, r.Data)
}

type CancelParams struct {
	ID interface{} `json:"id"`
}

const (
	ParseErrorCode           = -32700
	InvalidRequestCode       = -32600
	MethodNotFoundCode       = -32601
	InvalidParamsCode        = -32602
	InternalErrorCode        = -32603
	ServerNotInitializedCode = -32002
	RequestCancelledCode     = -32800
)

var (
	ParseError = ResponseError{
		Code:    ParseErrorCode,
		Message: "ParseError",
	}
	InvalidRequest = ResponseError{
		Code:    InvalidRequestCode,
		Message: "InvalidRequest",
	}
	MethodNotFound = ResponseError{
		Code:    MethodNotFoundCode,
		Message: "MethodNotFound",
	}
	InvalidParams = ResponseError{
		Code:    InvalidParamsCode,
		Message: "InvalidParams",
	}
	InternalError = ResponseError{
		Code:    InternalErrorCode,
		Message: "InternalError",
	}
	ServerNotInitialized = ResponseError{
		Code:    ServerNotInitializedCode,
		Message: "ServerNotInitialized",
	}
	RequestCancelled = ResponseError{
		Code:    RequestCancelledCode,
		Message: "RequestCancelled",
	}
)
