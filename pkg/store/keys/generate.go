package keys

import (
	"fmt"
	"strconv"
	"strings"
)

func PadPosition(pos uint64) string {
	return fmt.Sprintf("%0*d", PositionPadWidth, pos)
}

func GenEntryKey(kind string, pos uint64) string {
	return fmt.Sprintf(EntryKey, kind, PadPosition(pos))
}

func GenEntryPrefix(kind string) string {
	return fmt.Sprintf(EntryPrefix, kind)
}

// UpperBound is the smallest key greater than every key with prefix.
func UpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}

type EntryKeyParts struct {
	Kind     string
	Position uint64
}

func ParseEntryKey(key string) (EntryKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "log" || parts[1] == "" {
		return EntryKeyParts{}, fmt.Errorf("invalid entry key: %q", key)
	}
	if len(parts[2]) != PositionPadWidth {
		return EntryKeyParts{}, fmt.Errorf("invalid entry position width: %q", key)
	}
	pos, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return EntryKeyParts{}, fmt.Errorf("invalid entry position: %w", err)
	}
	return EntryKeyParts{Kind: parts[1], Position: pos}, nil
}
