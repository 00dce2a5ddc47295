package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	// DefaultBatchSize applies when a request leaves batch_size unset.
	DefaultBatchSize = 25
	MaxBatchSize     = 1000
)

// EncodeCursor renders a cursor as an opaque token for clients.
func EncodeCursor(c Cursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cursor JSON: %w", err)
	}
	return &c, nil
}

// NextCursor points at the oldest message in conversant's bucket, the place
// the following page resumes from. nil when the bucket is empty.
func (r AssemblyResult) NextCursor(conversant AgentKey) *Cursor {
	var out *Cursor
	for _, id := range r.AgentMessages[conversant] {
		b, ok := r.MessageContents[id]
		if !ok {
			continue
		}
		if out == nil || b.Message.TimeSent < out.Timestamp {
			out = &Cursor{Timestamp: b.Message.TimeSent, LastID: id}
		}
	}
	return out
}
