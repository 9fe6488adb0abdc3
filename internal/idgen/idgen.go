// Package idgen generates process-unique identifiers for connections,
// registered hooks, and chat-application messages using github.com/google/uuid.
package idgen

import "github.com/google/uuid"

// NewConnID returns a fresh identifier for an accepted connection, attached
// to its logger and every lifecycle hook event it produces for the life of
// the connection.
func NewConnID() string { return uuid.NewString() }

// NewEventID returns a fresh identifier for a single chat-application message.
func NewEventID() string { return uuid.NewString() }
