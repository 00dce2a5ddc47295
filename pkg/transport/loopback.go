package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
)

// Loopback connects nodes in one process. Each node gets its own Invoker via
// For, so calls carry the right caller identity.
type Loopback struct {
	mu      sync.RWMutex
	nodes   map[models.AgentKey]Dispatcher
	offline map[models.AgentKey]bool
	policy  AccessPolicy
}

func NewLoopback() *Loopback {
	return &Loopback{
		nodes:   make(map[models.AgentKey]Dispatcher),
		offline: make(map[models.AgentKey]bool),
		policy:  DefaultAccessPolicy(),
	}
}

func (l *Loopback) Register(agent models.AgentKey, d Dispatcher) {
	l.mu.Lock()
	l.nodes[agent] = d
	l.mu.Unlock()
}

// SetOffline makes calls to agent fail as unreachable.
func (l *Loopback) SetOffline(agent models.AgentKey, offline bool) {
	l.mu.Lock()
	l.offline[agent] = offline
	l.mu.Unlock()
}

func (l *Loopback) SetPolicy(p AccessPolicy) {
	l.mu.Lock()
	l.policy = p
	l.mu.Unlock()
}

func (l *Loopback) For(self models.AgentKey) Invoker {
	return loopbackInvoker{hub: l, self: self}
}

type loopbackInvoker struct {
	hub  *Loopback
	self models.AgentKey
}

func (li loopbackInvoker) Invoke(ctx context.Context, peer models.AgentKey, op string, payload, out any) error {
	l := li.hub
	l.mu.RLock()
	d, ok := l.nodes[peer]
	offline := l.offline[peer]
	policy := l.policy
	l.mu.RUnlock()
	if !ok || offline {
		return &Error{Kind: Unreachable, Op: op, Peer: peer, Err: ErrUnknownPeer}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Kind: Unreachable, Op: op, Peer: peer, Err: err}
	}
	if err := policy.Check(op, li.self, func(models.AgentKey) bool { return true }); err != nil {
		return &Error{Kind: Unauthorized, Op: op, Peer: peer, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Kind: Other, Op: op, Peer: peer, Err: err}
	}
	res, err := d.Dispatch(ctx, li.self, op, body)
	if err != nil {
		kind := Other
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			kind = Unauthorized
		}
		return &Error{Kind: kind, Op: op, Peer: peer, Err: err}
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return &Error{Kind: Other, Op: op, Peer: peer, Err: fmt.Errorf("encode response: %w", err)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: Other, Op: op, Peer: peer, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
