// Package assembly turns scans of the local log into paged, per-conversant
// conversation views with receipts and reply threads attached.
//
// Nothing is indexed: every call rescans the message log (and the receipt
// log once at the end).
package assembly

import (
	"context"
	"sort"
	"time"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/timeutil"
)

type Engine struct {
	log   store.Log
	self  models.AgentKey
	clock timeutil.Clock
}

func New(log store.Log, self models.AgentKey, clock timeutil.Clock) *Engine {
	if clock == nil {
		clock = timeutil.System
	}
	return &Engine{log: log, self: self, clock: clock}
}

func (e *Engine) Self() models.AgentKey { return e.self }

// visitFunc sees each message with its hash. Returning store.ErrStopScan ends the scan.
type visitFunc func(id models.ContentHash, m models.Message) error

func (e *Engine) scanMessages(ctx context.Context, op string, order store.Order, fn visitFunc) error {
	err := store.ScanAs(ctx, e.log, store.KindMessage, order, func(m models.Message, _ store.Record) error {
		id, err := m.Hash()
		if err != nil {
			return err
		}
		return fn(id, m)
	})
	if err != nil {
		return apperr.Persistence(op, err)
	}
	return nil
}

// finish attaches receipts, then replies, and returns the result.
func (e *Engine) finish(ctx context.Context, op string, acc *accumulator, started time.Time) (models.AssemblyResult, error) {
	if len(acc.res.MessageContents) > 0 {
		err := store.ScanAs(ctx, e.log, store.KindReceipt, store.OldestFirst, func(r models.Receipt, _ store.Record) error {
			if !acc.wants(r.ID) {
				return nil
			}
			h, err := r.Hash()
			if err != nil {
				return err
			}
			acc.attachReceipt(h, r)
			return nil
		})
		if err != nil {
			return models.AssemblyResult{}, apperr.Persistence(op, err)
		}
	}
	acc.attachReplies()
	res := acc.result()
	logger.Debug("assembly_done", "op", op, "messages", res.Count(), "receipts", len(res.ReceiptContents), "took", time.Since(started))
	return res, nil
}

// LatestMessages returns up to batchSize of the most recent messages of every
// conversation, one bucket per conversant.
func (e *Engine) LatestMessages(ctx context.Context, batchSize int) (models.AssemblyResult, error) {
	const op = "latest_messages"
	if batchSize <= 0 {
		return models.AssemblyResult{}, apperr.InvalidInput(op, "batch_size must be positive, got %d", batchSize)
	}
	started := time.Now()
	acc := newAccumulator()
	err := e.scanMessages(ctx, op, store.NewestFirst, func(id models.ContentHash, m models.Message) error {
		key := m.Conversant(e.self)
		if acc.bucketLen(key) >= batchSize {
			return nil
		}
		acc.insert(key, id, m)
		acc.registerReply(id, m)
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}
	return e.finish(ctx, op, acc, started)
}

// NextBatch pages backwards through one conversation from a cursor.
//
// The predicate is (before-or-at cursor AND not the cursor message) OR
// (no cursor AND conversant match). With a cursor the conversant is not
// checked, which differs from AdjacentMessages. Clients depend on both
// shapes, so they are kept distinct.
func (e *Engine) NextBatch(ctx context.Context, f models.FilterByBatch) (models.AssemblyResult, error) {
	const op = "next_batch"
	if err := f.Validate(); err != nil {
		return models.AssemblyResult{}, err
	}
	started := time.Now()
	acc := newAccumulator(f.Conversant)
	err := e.scanMessages(ctx, op, store.NewestFirst, func(id models.ContentHash, m models.Message) error {
		before := f.Cursor != nil && m.TimeSent <= f.Cursor.Timestamp && id != f.Cursor.LastID
		fresh := f.Cursor == nil && m.Involves(f.Conversant)
		if !(before || fresh) || !f.PayloadType.Matches(m.Payload) {
			return nil
		}
		acc.registerReply(id, m)
		if acc.insert(f.Conversant, id, m) >= f.BatchSize {
			return store.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}
	return e.finish(ctx, op, acc, started)
}

type pending struct {
	id  models.ContentHash
	msg models.Message
}

// AdjacentMessages returns a page of one conversation around a cursor:
// messages older than the cursor up to batchSize, plus the most recent
// batchSize of the messages at or after it.
//
// The predicate is (no cursor OR not the cursor message) AND conversant
// match. See NextBatch for how the two differ.
func (e *Engine) AdjacentMessages(ctx context.Context, f models.FilterByBatch) (models.AssemblyResult, error) {
	const op = "adjacent_messages"
	if err := f.Validate(); err != nil {
		return models.AssemblyResult{}, err
	}
	started := time.Now()
	boundary := models.TimestampFrom(e.clock.Now())
	if f.Cursor != nil {
		boundary = f.Cursor.Timestamp
	}

	acc := newAccumulator(f.Conversant)
	var newer []pending
	err := e.scanMessages(ctx, op, store.NewestFirst, func(id models.ContentHash, m models.Message) error {
		if !((f.Cursor == nil || id != f.Cursor.LastID) && m.Involves(f.Conversant)) {
			return nil
		}
		if !f.PayloadType.Matches(m.Payload) {
			return nil
		}
		acc.registerReply(id, m)
		if m.TimeSent >= boundary {
			newer = append(newer, pending{id: id, msg: m})
			return nil
		}
		if acc.insert(f.Conversant, id, m) >= f.BatchSize {
			return store.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}

	// newer was filled newest first; keep the most recent BatchSize in chronological order
	for i, j := 0, len(newer)-1; i < j; i, j = i+1, j-1 {
		newer[i], newer[j] = newer[j], newer[i]
	}
	if len(newer) > f.BatchSize {
		logger.Debug("adjacent_newer_truncated", "kept", f.BatchSize, "dropped", len(newer)-f.BatchSize)
		newer = newer[len(newer)-f.BatchSize:]
	}
	for _, p := range newer {
		acc.insert(f.Conversant, p.id, p.msg)
	}
	return e.finish(ctx, op, acc, started)
}

// MessagesByDay returns every message with the conversant sent during the
// UTC day holding f.Day, bounds inclusive at second granularity.
func (e *Engine) MessagesByDay(ctx context.Context, f models.FilterByAgentDay) (models.AssemblyResult, error) {
	const op = "messages_by_day"
	if err := f.Validate(); err != nil {
		return models.AssemblyResult{}, err
	}
	started := time.Now()
	start, end := f.Day.DayWindow()
	acc := newAccumulator(f.Conversant)
	err := e.scanMessages(ctx, op, store.OldestFirst, func(id models.ContentHash, m models.Message) error {
		sec := m.TimeSent.Seconds()
		if sec < start || sec > end || !m.Involves(f.Conversant) || !f.PayloadType.Matches(m.Payload) {
			return nil
		}
		acc.insert(f.Conversant, id, m)
		acc.registerReply(id, m)
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}
	return e.finish(ctx, op, acc, started)
}

// AllMessages returns the whole message log in log order, bucketed per conversant.
func (e *Engine) AllMessages(ctx context.Context) (models.AssemblyResult, error) {
	const op = "all_messages"
	started := time.Now()
	acc := newAccumulator()
	err := e.scanMessages(ctx, op, store.OldestFirst, func(id models.ContentHash, m models.Message) error {
		acc.insert(m.Conversant(e.self), id, m)
		acc.registerReply(id, m)
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}
	return e.finish(ctx, op, acc, started)
}

// MessagesFromAgents returns every message exchanged with each listed agent,
// one bucket per distinct agent even when it is empty.
func (e *Engine) MessagesFromAgents(ctx context.Context, agents []models.AgentKey) (models.AssemblyResult, error) {
	const op = "messages_from_agents"
	agents = DedupeAgents(agents)
	if len(agents) == 0 {
		return models.AssemblyResult{}, apperr.InvalidInput(op, "at least one agent is required")
	}
	started := time.Now()
	wanted := make(map[models.AgentKey]struct{}, len(agents))
	for _, a := range agents {
		wanted[a] = struct{}{}
	}
	acc := newAccumulator(agents...)
	err := e.scanMessages(ctx, op, store.OldestFirst, func(id models.ContentHash, m models.Message) error {
		key := m.Conversant(e.self)
		if _, ok := wanted[key]; !ok {
			return nil
		}
		acc.insert(key, id, m)
		acc.registerReply(id, m)
		return nil
	})
	if err != nil {
		return models.AssemblyResult{}, err
	}
	return e.finish(ctx, op, acc, started)
}

// DedupeAgents sorts agents and drops zero keys and duplicates.
func DedupeAgents(agents []models.AgentKey) []models.AgentKey {
	out := make([]models.AgentKey, 0, len(agents))
	for _, a := range agents {
		if !a.IsZero() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	n := 0
	for i, a := range out {
		if i == 0 || a != out[n-1] {
			out[n] = a
			n++
		}
	}
	return out[:n]
}
