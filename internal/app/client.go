// Package app implements the Application/Room dispatch model:
// resolving a connect path to an application and a room, running the
// enter/leave/create/destroy lifecycle, and routing named invokes to
// per-application handlers. The connect flow's nested closures become named
// methods on Application below.
package app

import (
	"log/slog"

	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// Client is the slice of a connection that application/room logic needs,
// implemented by internal/rtmp/conn.Connection. Keeping it an interface
// here (rather than importing the conn package directly) avoids the import
// cycle that would otherwise result from conn needing this package to
// resolve and run invoke handlers.
type Client interface {
	// ID is the process-unique connection id assigned at accept time.
	ID() string
	RemoteAddr() string
	Logger() *slog.Logger

	// SetScratch/Scratch hold the per-connection opaque state an
	// application attaches to a client (e.g. a chat nickname).
	SetScratch(v interface{})
	Scratch() interface{}

	// Invoke sends an outbound RPC call to this client, used by room
	// broadcasts (e.g. the chat application's "say" notifications).
	Invoke(name string, args ...interface{}) (*rpc.Future, error)
}
