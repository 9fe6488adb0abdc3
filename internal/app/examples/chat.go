package examples

import (
	"fmt"

	"github.com/rtmpd/fmsgo/internal/app"
	"github.com/rtmpd/fmsgo/internal/idgen"
	"github.com/rtmpd/fmsgo/internal/rtmp/rpc"
)

// chatState is the per-connection scratch value the chat application keeps
// on its clients: the chosen nickname and the room last entered, so
// invoke_say can address a broadcast without a separate client->room index.
type chatState struct {
	nick string
	room *app.Room
}

// NewChat builds the "chat" application: invoke_identify sets a nickname,
// invoke_say broadcasts a message to the caller's current room, and
// on_leave_room announces a departure to whoever remains. This is the
// canonical exerciser of C7's room membership and broadcast-snapshot rules.
func NewChat() *app.Application {
	a := app.NewApplication("chat")

	a.OnEnterRoom = func(c app.Client, room *app.Room, tail []string) (*rpc.Future, error) {
		st, _ := c.Scratch().(*chatState)
		if st == nil {
			st = &chatState{}
			c.SetScratch(st)
		}
		st.room = room
		return nil, nil
	}

	a.OnLeaveRoom = func(c app.Client, room *app.Room) {
		st, _ := c.Scratch().(*chatState)
		nick := anonymous
		if st != nil && st.nick != "" {
			nick = st.nick
		}
		room.Broadcast(c, "notice", map[string]interface{}{
			"id":   idgen.NewEventID(),
			"text": fmt.Sprintf("%s left", nick),
		})
	}

	a.RegisterInvoke("identify", func(c app.Client, argv []interface{}) (*rpc.Future, error) {
		name, _ := firstString(argv)
		if name == "" {
			name = anonymous
		}
		st, _ := c.Scratch().(*chatState)
		if st == nil {
			st = &chatState{}
			c.SetScratch(st)
		}
		st.nick = name
		return rpc.Resolved(name), nil
	})

	a.RegisterInvoke("say", func(c app.Client, argv []interface{}) (*rpc.Future, error) {
		message, _ := firstString(argv)
		st, _ := c.Scratch().(*chatState)
		if st == nil || st.room == nil {
			return rpc.Resolved(nil), nil
		}
		from := anonymous
		if st.nick != "" {
			from = st.nick
		}
		c.Logger().Debug("broadcasting chat message", "app", st.room.Application().Name, "room", st.room.Name)
		st.room.Broadcast(c, "say", map[string]interface{}{
			"id":      idgen.NewEventID(),
			"from":    from,
			"message": message,
		})
		return rpc.Resolved(nil), nil
	})

	return a
}

const anonymous = "anonymous"

func firstString(argv []interface{}) (string, bool) {
	if len(argv) == 0 {
		return "", false
	}
	s, ok := argv[0].(string)
	return s, ok
}
