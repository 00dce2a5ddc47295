package models

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Property: a message hashes the same before and after a JSON round trip,
// and hashing one message is unaffected by any other message.
func TestMessageHashPurity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("hash survives serialization round trip", prop.ForAll(
		func(text string, ts int64, a, b uint8) bool {
			m := Message{Author: key(a), Receiver: key(b), Payload: TextPayload(text), TimeSent: Timestamp(ts)}
			h1, err := m.Hash()
			if err != nil {
				return false
			}
			raw, err := json.Marshal(m)
			if err != nil {
				return false
			}
			var back Message
			if err := json.Unmarshal(raw, &back); err != nil {
				return false
			}
			h2, err := back.Hash()
			return err == nil && h1 == h2
		},
		gen.AlphaString(),
		gen.Int64Range(0, 1<<52),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.Property("hash ignores unrelated entities", prop.ForAll(
		func(text, other string) bool {
			m := Message{Author: key(1), Receiver: key(2), Payload: TextPayload(text), TimeSent: 1}
			before, _ := m.Hash()
			unrelated := Message{Author: key(2), Receiver: key(1), Payload: TextPayload(other), TimeSent: 2}
			_, _ = unrelated.Hash()
			after, _ := m.Hash()
			return before == after
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestHashRejectsRoundedIntegers(t *testing.T) {
	base := Message{Author: key(1), Receiver: key(2), Payload: TextPayload("hi")}

	edge := base
	edge.TimeSent = MaxSafeInt
	prev := base
	prev.TimeSent = MaxSafeInt - 1
	he, err := edge.Hash()
	require.NoError(t, err)
	hp, err := prev.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, he, hp)

	for _, ts := range []Timestamp{MaxSafeInt + 1, MaxSafeInt + 2, -MaxSafeInt - 1} {
		m := base
		m.TimeSent = ts
		_, err := m.Hash()
		assert.Error(t, err, "time_sent %d", ts)
	}

	r := Receipt{ID: ContentHash{3}, Status: Delivered(MaxSafeInt + 2)}
	_, err = r.Hash()
	assert.Error(t, err)
}

// Property: distinct in-range send times never share a hash.
func TestMessageHashSeparatesSendTimes(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("adjacent timestamps hash apart", prop.ForAll(
		func(ts int64) bool {
			a := Message{Author: key(1), Receiver: key(2), Payload: TextPayload("x"), TimeSent: Timestamp(ts)}
			b := a
			b.TimeSent++
			ha, errA := a.Hash()
			hb, errB := b.Hash()
			return errA == nil && errB == nil && ha != hb
		},
		gen.Int64Range(MaxSafeInt-1<<20, MaxSafeInt-1),
	))

	properties.TestingRun(t)
}
