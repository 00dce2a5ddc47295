package transport

import (
	"fmt"
	"strings"
	"sync"

	"p2pmessage/pkg/config"
	"p2pmessage/pkg/models"
)

// Directory maps peer agents to node base URLs.
type Directory struct {
	mu    sync.RWMutex
	peers map[models.AgentKey]string
}

func NewDirectory() *Directory {
	return &Directory{peers: make(map[models.AgentKey]string)}
}

// DirectoryFromConfig builds a directory from transport.peers.
func DirectoryFromConfig(peers []config.PeerConfig) (*Directory, error) {
	d := NewDirectory()
	for i, p := range peers {
		agent, err := models.ParseAgentKey(p.Agent)
		if err != nil {
			return nil, fmt.Errorf("peer %d: %w", i, err)
		}
		d.Set(agent, p.URL)
	}
	return d, nil
}

func (d *Directory) Set(agent models.AgentKey, baseURL string) {
	d.mu.Lock()
	d.peers[agent] = strings.TrimRight(baseURL, "/")
	d.mu.Unlock()
}

func (d *Directory) Lookup(agent models.AgentKey) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.peers[agent]
	return u, ok
}

// Known reports whether agent is a configured peer.
func (d *Directory) Known(agent models.AgentKey) bool {
	_, ok := d.Lookup(agent)
	return ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
