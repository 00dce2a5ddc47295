package assembly

import (
	"context"
	"testing"
	"time"

	"p2pmessage/pkg/models"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/timeutil"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: no bucket from LatestMessages ever holds more than the batch size,
// and every bucketed id has a bundle.
func TestLatestMessagesBatchCap(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("bucket never exceeds batch size", prop.ForAll(
		func(peers []uint8, batch int) bool {
			clock := timeutil.NewManual(time.Unix(1_700_000_000, 0))
			log := store.NewMemoryLog(clock)
			ctx := context.Background()
			for i, p := range peers {
				peer := agent(p%5 + 2)
				m := models.Message{Author: peer, Receiver: self, Payload: models.TextPayload("x"), TimeSent: models.TimestampFromSeconds(int64(i))}
				if i%2 == 0 {
					m.Author, m.Receiver = self, peer
				}
				if _, err := log.Append(ctx, store.KindMessage, m); err != nil {
					return false
				}
			}
			res, err := New(log, self, clock).LatestMessages(ctx, batch)
			if err != nil {
				return false
			}
			total := 0
			for _, ids := range res.AgentMessages {
				if len(ids) > batch {
					return false
				}
				for _, id := range ids {
					if _, ok := res.MessageContents[id]; !ok {
						return false
					}
				}
				total += len(ids)
			}
			return total == res.Count()
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(1, 8),
	))

	properties.Property("day window keeps only that day", prop.ForAll(
		func(offsets []int64, day int64) bool {
			clock := timeutil.NewManual(time.Unix(1_700_000_000, 0))
			log := store.NewMemoryLog(clock)
			ctx := context.Background()
			for i, off := range offsets {
				m := models.Message{Author: agent(2), Receiver: self, Payload: models.TextPayload("x"), TimeSent: models.TimestampFromSeconds(day*86400 + off), ReplyTo: nil}
				m.Payload.Text = string(rune('a' + i%26))
				if _, err := log.Append(ctx, store.KindMessage, m); err != nil {
					return false
				}
			}
			res, err := New(log, self, clock).MessagesByDay(ctx, models.FilterByAgentDay{Conversant: agent(2), Day: models.TimestampFromSeconds(day*86400 + 43200)})
			if err != nil {
				return false
			}
			for _, b := range res.MessageContents {
				off := b.Message.TimeSent.Seconds() - day*86400
				if off < 0 || off > 86399 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-2*86400, 2*86400)),
		gen.Int64Range(0, 30_000),
	))

	properties.TestingRun(t)
}
