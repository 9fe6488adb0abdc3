// Package examples bundles the two demonstration applications the server
// registers behind -app flags: echo and chat.
package examples

import (
	"fmt"

	"github.com/rtmpd/fmsgo/internal/app"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// NewEcho builds the "echo" application: a single invoke_echo handler that
// returns its arguments unchanged, exercising C6's RPC round trip with no
// room logic at all (hall-only).
func NewEcho() *app.Application {
	a := app.NewApplication("echo")
	a.RegisterInvoke("echo", func(c app.Client, argv []interface{}) (*rpc.Future, error) {
		if len(argv) == 0 {
			return rpc.Rejected(fmt.Errorf("echo requires at least one argument")), nil
		}
		return rpc.Resolved(argv), nil
	})
	return a
}
