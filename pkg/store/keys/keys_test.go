package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryKeyRoundTrip(t *testing.T) {
	k := GenEntryKey("message", 42)
	assert.Equal(t, "log:message:00000000000000000042", k)

	parts, err := ParseEntryKey(k)
	require.NoError(t, err)
	assert.Equal(t, EntryKeyParts{Kind: "message", Position: 42}, parts)
}

func TestEntryKeysSortByPosition(t *testing.T) {
	assert.Less(t, GenEntryKey("receipt", 9), GenEntryKey("receipt", 10))
	assert.Less(t, GenEntryKey("receipt", 99999), string(UpperBound(GenEntryPrefix("receipt"))))
}

func TestParseEntryKeyRejects(t *testing.T) {
	for _, k := range []string{"", "log:message", "log::00000000000000000001", "t:message:00000000000000000001", "log:message:12"} {
		_, err := ParseEntryKey(k)
		assert.Error(t, err, k)
	}
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("log:message;"), UpperBound("log:message:"))
	assert.Nil(t, UpperBound(string([]byte{0xff, 0xff})))
}
