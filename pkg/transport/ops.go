// Package transport carries operations between peer nodes.
package transport

import (
	"context"

	"p2pmessage/pkg/models"
)

// Peer-callable operation names.
const (
	OpReceiveMessage     = "receive_message"
	OpReceiveReadReceipt = "receive_read_receipt"
	OpReceiveReceipt     = "receive_receipt"
	OpTyping             = "typing"
)

// Ops lists every operation a peer may invoke.
var Ops = []string{OpReceiveMessage, OpReceiveReadReceipt, OpReceiveReceipt, OpTyping}

// ReceiveMessageRequest is the receive_message payload.
type ReceiveMessageRequest struct {
	Message models.Message    `json:"message"`
	File    *models.FileBytes `json:"file,omitempty"`
}

// TypingRequest is the typing payload; Agent is the typist.
type TypingRequest struct {
	Agent    models.AgentKey `json:"agent"`
	IsTyping bool            `json:"is_typing"`
}

// Invoker performs one synchronous call on a peer. payload is sent as JSON
// and the peer's JSON answer decoded into out when out is non-nil.
type Invoker interface {
	Invoke(ctx context.Context, peer models.AgentKey, op string, payload, out any) error
}

// Dispatcher runs an operation invoked by a peer and returns its answer.
type Dispatcher interface {
	Dispatch(ctx context.Context, from models.AgentKey, op string, body []byte) (any, error)
}
