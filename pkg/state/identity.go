package state

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"p2pmessage/pkg/models"
)

const identityFile = "agent.key"

// LoadOrCreateAgentKey reads the node's agent key from dir, generating and
// persisting a random one on first start.
func LoadOrCreateAgentKey(dir string) (models.AgentKey, bool, error) {
	fname := filepath.Join(dir, identityFile)
	raw, err := os.ReadFile(fname)
	if err == nil {
		key, perr := models.ParseAgentKey(strings.TrimSpace(string(raw)))
		if perr != nil {
			return models.AgentKey{}, false, fmt.Errorf("identity file %s: %w", fname, perr)
		}
		return key, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return models.AgentKey{}, false, fmt.Errorf("read identity: %w", err)
	}

	var key models.AgentKey
	if _, err := rand.Read(key[:]); err != nil {
		return models.AgentKey{}, false, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return models.AgentKey{}, false, fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(fname, []byte(hex.EncodeToString(key[:])+"\n"), 0o600); err != nil {
		return models.AgentKey{}, false, fmt.Errorf("write identity: %w", err)
	}
	return key, true, nil
}
