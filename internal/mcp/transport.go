package mcp

import (
	"context"
	"encoding/json"
)

// Transport is the wire-level contract a connection is built on. The only
// implementation in this tree is StdioTransport, but the interface keeps
// the handshake/request logic in Client independent of how bytes actually
// move.
type Transport interface {
	Start(ctx context.Context) error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Events() <-chan *JSONRPCNotification
	Close() error
}
