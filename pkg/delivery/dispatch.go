package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/transport"
)

// Dispatch runs a peer-invoked operation from its JSON body.
func (c *Coordinator) Dispatch(ctx context.Context, from models.AgentKey, op string, body []byte) (any, error) {
	if from.IsZero() {
		return nil, apperr.New(apperr.KindUnauthorized, op, fmt.Errorf("caller agent key missing"))
	}
	switch op {
	case transport.OpReceiveMessage:
		var req transport.ReceiveMessageRequest
		if err := decode(op, body, &req); err != nil {
			return nil, err
		}
		return c.ReceiveMessage(ctx, from, req.Message, req.File)
	case transport.OpReceiveReadReceipt:
		var r models.Receipt
		if err := decode(op, body, &r); err != nil {
			return nil, err
		}
		return c.ReceiveReadReceipt(ctx, from, r)
	case transport.OpReceiveReceipt:
		var r models.Receipt
		if err := decode(op, body, &r); err != nil {
			return nil, err
		}
		return c.ReceiveReceipt(ctx, from, r)
	case transport.OpTyping:
		var req transport.TypingRequest
		if err := decode(op, body, &req); err != nil {
			return nil, err
		}
		return struct{}{}, c.ReceiveTyping(ctx, from, req.IsTyping)
	default:
		return nil, apperr.New(apperr.KindNotFound, op, fmt.Errorf("unknown operation"))
	}
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.InvalidInput(op, "decode body: %v", err)
	}
	return nil
}
