package transport

import (
	"fmt"
	"strings"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
)

type Level string

const (
	// any caller
	LevelUnrestricted Level = "unrestricted"
	// callers listed in the peer directory
	LevelPeers Level = "peers"
	LevelNone  Level = "none"
)

func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelUnrestricted, LevelPeers, LevelNone:
		return l, nil
	}
	return "", fmt.Errorf("unknown access level %q", s)
}

// AccessPolicy decides which peers may invoke which operations. Operations
// missing from the policy are denied.
type AccessPolicy map[string]Level

// DefaultAccessPolicy opens every receive-side operation to any caller.
func DefaultAccessPolicy() AccessPolicy {
	p := make(AccessPolicy, len(Ops))
	for _, op := range Ops {
		p[op] = LevelUnrestricted
	}
	return p
}

// PolicyFromConfig overlays configured levels onto the default policy.
func PolicyFromConfig(ops map[string]string) (AccessPolicy, error) {
	p := DefaultAccessPolicy()
	for op, raw := range ops {
		l, err := ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("access.operations.%s: %w", op, err)
		}
		p[op] = l
	}
	return p, nil
}

// Check returns an Unauthorized error when caller may not invoke op.
func (p AccessPolicy) Check(op string, caller models.AgentKey, known func(models.AgentKey) bool) error {
	switch p[op] {
	case LevelUnrestricted:
		return nil
	case LevelPeers:
		if known != nil && known(caller) {
			return nil
		}
		return apperr.New(apperr.KindUnauthorized, op, fmt.Errorf("caller %s is not a configured peer", caller.Short()))
	default:
		return apperr.New(apperr.KindUnauthorized, op, fmt.Errorf("operation not granted"))
	}
}
