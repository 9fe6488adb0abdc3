package rpc

import (
	stdErrors "errors"

	rtmperrors "github.com/rtmpd/fmsgo/internal/errors"
)

// Status codes emitted by this server, per SPEC_FULL.md §6.
const (
	StatusConnectSuccess    = "NetConnection.Connect.Success"
	StatusConnectInvalidApp = "NetConnection.Connect.InvalidApp"
	StatusCallFailed        = "NetConnection.Call.Failed"
	StatusError             = "NetConnection.Error"
)

// Status is the structured result record attached to both success and
// error RPC replies (§4.6, GLOSSARY "Status").
type Status struct {
	Code        string
	Level       string
	Description string
	Extra       map[string]interface{}
}

// NewStatus builds a success-flavored Status ("status" level).
func NewStatus(code, description string) Status {
	return Status{Code: code, Level: "status", Description: description}
}

// ToAMF renders the Status as the AMF0 object wire representation.
func (s Status) ToAMF() map[string]interface{} {
	obj := map[string]interface{}{
		"code":        s.Code,
		"level":       s.Level,
		"description": s.Description,
	}
	for k, v := range s.Extra {
		obj[k] = v
	}
	return obj
}

// StatusFromError builds an error-flavored Status from a Go error, per
// SPEC_FULL.md §4.6: "uses e.code if present else a default
// NetConnection.Error, and repr(e) as description."
func StatusFromError(err error) Status {
	code := StatusError
	var de *rtmperrors.DispatchError
	if stdErrors.As(err, &de) && de.Code != "" {
		code = de.Code
	}
	return Status{Code: code, Level: "error", Description: err.Error()}
}
