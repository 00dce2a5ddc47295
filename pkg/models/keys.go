package models

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyLen = 32

// AgentKey identifies a participant. Value equality, usable as a map key.
type AgentKey [keyLen]byte

// ContentHash is the identity of a log record, derived from its content.
type ContentHash [keyLen]byte

func parseKey(kind, s string) ([keyLen]byte, error) {
	var out [keyLen]byte
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(keyLen) {
		return out, fmt.Errorf("%s must be %d hex characters, got %d", kind, hex.EncodedLen(keyLen), len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("%s: %w", kind, err)
	}
	return out, nil
}

func ParseAgentKey(s string) (AgentKey, error) {
	k, err := parseKey("agent key", s)
	return AgentKey(k), err
}

func (k AgentKey) String() string { return hex.EncodeToString(k[:]) }

func (k AgentKey) IsZero() bool { return k == AgentKey{} }

// Short is a log-friendly prefix of the key.
func (k AgentKey) Short() string { return k.String()[:8] }

func (k AgentKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AgentKey) UnmarshalText(b []byte) error {
	v, err := ParseAgentKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k AgentKey) Compare(o AgentKey) int { return bytes.Compare(k[:], o[:]) }

func ParseContentHash(s string) (ContentHash, error) {
	h, err := parseKey("content hash", s)
	return ContentHash(h), err
}

func (h ContentHash) String() string { return hex.EncodeToString(h[:]) }

func (h ContentHash) IsZero() bool { return h == ContentHash{} }

func (h ContentHash) Short() string { return h.String()[:8] }

func (h ContentHash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *ContentHash) UnmarshalText(b []byte) error {
	v, err := ParseContentHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}
