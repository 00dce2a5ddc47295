// Package delivery runs the two-peer handshake: send, receive, read receipts
// and typing presence.
package delivery

import (
	"context"
	"fmt"
	"sync"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/receipts"
	"p2pmessage/pkg/signals"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/state/telemetry"
	"p2pmessage/pkg/store"
	"p2pmessage/pkg/timeutil"
	"p2pmessage/pkg/transport"
)

type Options struct {
	Self    models.AgentKey
	Log     store.Log
	Invoker transport.Invoker
	Emitter signals.Emitter
	Clock   timeutil.Clock
	// Telemetry receives step timings; nil disables them.
	Telemetry *telemetry.Telemetry
}

// Coordinator owns the local side of every peer exchange. Local scan and
// append sequences run one at a time; remote calls are made without the lock.
type Coordinator struct {
	self       models.AgentKey
	log        store.Log
	invoker    transport.Invoker
	emitter    signals.Emitter
	clock      timeutil.Clock
	reconciler *receipts.Reconciler
	tel        *telemetry.Telemetry

	mu sync.Mutex
}

func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = timeutil.System
	}
	if opts.Emitter == nil {
		opts.Emitter = signals.Discard
	}
	return &Coordinator{
		self:       opts.Self,
		log:        opts.Log,
		invoker:    opts.Invoker,
		emitter:    opts.Emitter,
		clock:      opts.Clock,
		reconciler: receipts.NewReconciler(opts.Log),
		tel:        opts.Telemetry,
	}
}

func (c *Coordinator) Self() models.AgentKey { return c.self }

func (c *Coordinator) now() models.Timestamp { return models.TimestampFrom(c.clock.Now()) }

// Send builds a message, hands it to the receiver and, once the receiver
// acknowledges, commits message, receipt and file locally in that order.
// Nothing is written locally when the handshake fails.
func (c *Coordinator) Send(ctx context.Context, in models.MessageInput) (models.Message, models.Receipt, error) {
	tr := c.tel.Track("send_message")
	msg, receipt, err := c.send(ctx, in, tr)
	tr.Fail(err)
	tr.Finish()
	return msg, receipt, err
}

func (c *Coordinator) send(ctx context.Context, in models.MessageInput, tr *telemetry.Trace) (models.Message, models.Receipt, error) {
	const op = "send_message"
	if in.Receiver.IsZero() {
		return models.Message{}, models.Receipt{}, apperr.InvalidInput(op, "receiver is required")
	}
	if in.Receiver == c.self {
		return models.Message{}, models.Receipt{}, apperr.InvalidInput(op, "cannot send to self")
	}
	payload, file, err := in.Payload.Build()
	if err != nil {
		return models.Message{}, models.Receipt{}, err
	}
	msg := models.Message{
		Author:   c.self,
		Receiver: in.Receiver,
		Payload:  payload,
		TimeSent: c.now(),
		ReplyTo:  in.ReplyTo,
	}
	hash, err := msg.Hash()
	if err != nil {
		return models.Message{}, models.Receipt{}, apperr.New(apperr.KindInvalidInput, op, err)
	}

	tr.Mark("build")

	var receipt models.Receipt
	req := transport.ReceiveMessageRequest{Message: msg, File: file}
	if err := c.invoker.Invoke(ctx, in.Receiver, transport.OpReceiveMessage, req, &receipt); err != nil {
		logger.Warn("send_failed", "message", hash.Short(), "receiver", in.Receiver.Short(), "error", err)
		return models.Message{}, models.Receipt{}, transport.AsAppError(op, err)
	}
	if receipt.ID != hash || receipt.Status.Kind != models.StatusDelivered {
		return models.Message{}, models.Receipt{}, apperr.New(apperr.KindRemoteFailure, op,
			fmt.Errorf("receiver acknowledged %s with status %q, want delivered for %s", receipt.ID.Short(), receipt.Status.Kind, hash.Short()))
	}
	tr.Mark("remote")

	c.mu.Lock()
	err = c.commit(ctx, msg, receipt, file)
	c.mu.Unlock()
	tr.Mark("commit")
	if err != nil {
		logger.Error("send_commit_failed", "message", hash.Short(), "receiver", in.Receiver.Short(), "error", err)
		return models.Message{}, models.Receipt{}, apperr.Inconsistent(op, err)
	}
	logger.Info("message_sent", "message", hash.Short(), "receiver", in.Receiver.Short(), "kind", msg.Payload.Kind)
	return msg, receipt, nil
}

// commit appends message, receipt and the optional file. Callers hold mu.
func (c *Coordinator) commit(ctx context.Context, msg models.Message, receipt models.Receipt, file *models.FileBytes) error {
	if _, err := c.log.Append(ctx, store.KindMessage, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if _, err := c.log.Append(ctx, store.KindReceipt, receipt); err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	if file != nil {
		if _, err := c.log.Append(ctx, store.KindFileBytes, file); err != nil {
			return fmt.Errorf("append file: %w", err)
		}
	}
	return nil
}

// ReceiveMessage is the receiver half of Send. It commits the message with a
// delivered receipt, notifies local subscribers and returns the receipt.
func (c *Coordinator) ReceiveMessage(ctx context.Context, from models.AgentKey, msg models.Message, file *models.FileBytes) (models.Receipt, error) {
	tr := c.tel.Track("receive_message")
	receipt, err := c.receiveMessage(ctx, from, msg, file, tr)
	tr.Fail(err)
	tr.Finish()
	return receipt, err
}

func (c *Coordinator) receiveMessage(ctx context.Context, from models.AgentKey, msg models.Message, file *models.FileBytes, tr *telemetry.Trace) (models.Receipt, error) {
	const op = "receive_message"
	if msg.Receiver != c.self {
		return models.Receipt{}, apperr.InvalidInput(op, "message is addressed to %s", msg.Receiver.Short())
	}
	if msg.Author != from {
		return models.Receipt{}, apperr.InvalidInput(op, "author %s does not match caller %s", msg.Author.Short(), from.Short())
	}
	if err := msg.Payload.Validate(); err != nil {
		return models.Receipt{}, err
	}
	if file != nil && msg.Payload.Metadata != nil && msg.Payload.Metadata.FileHash != models.HashBytes(file.Data) {
		return models.Receipt{}, apperr.InvalidInput(op, "file bytes do not match file_hash")
	}
	hash, err := msg.Hash()
	if err != nil {
		return models.Receipt{}, apperr.New(apperr.KindInvalidInput, op, err)
	}
	receipt := models.Receipt{ID: hash, Status: models.Delivered(c.now())}
	receiptHash, err := receipt.Hash()
	if err != nil {
		return models.Receipt{}, apperr.New(apperr.KindInvalidInput, op, err)
	}

	tr.Mark("validate")

	c.mu.Lock()
	err = c.commit(ctx, msg, receipt, file)
	tr.Mark("commit")
	var reply *models.ReplyDescriptor
	if err == nil && msg.ReplyTo != nil {
		reply = c.resolveReply(ctx, *msg.ReplyTo)
		tr.Mark("resolve_reply")
	}
	c.mu.Unlock()
	if err != nil {
		return models.Receipt{}, apperr.Persistence(op, err)
	}

	logger.Info("message_received", "message", hash.Short(), "author", from.Short(), "reply", reply != nil)
	sig := models.MessageArrived(
		models.HashedMessage{Hash: hash, Message: msg, ReplyTo: reply},
		models.HashedReceipt{Hash: receiptHash, Receipt: receipt},
	)
	c.emit(ctx, sig)
	return receipt, nil
}

// resolveReply finds the replied-to message in the local log. A miss, or a
// failed scan, yields no reply context.
func (c *Coordinator) resolveReply(ctx context.Context, parent models.ContentHash) *models.ReplyDescriptor {
	var found *models.ReplyDescriptor
	err := store.ScanAs(ctx, c.log, store.KindMessage, store.NewestFirst, func(m models.Message, _ store.Record) error {
		h, err := m.Hash()
		if err != nil {
			return err
		}
		if h == parent {
			found = models.DescribeReply(h, m)
			return store.ErrStopScan
		}
		return nil
	})
	if err != nil {
		logger.Warn("reply_resolve_failed", "parent", parent.Short(), "error", err)
		return nil
	}
	if found == nil {
		logger.Debug("reply_parent_missing", "parent", parent.Short())
	}
	return found
}

// MarkRead commits a read receipt for messageID locally, then sends it to
// the message's sender and returns the sender's reconciliation result.
func (c *Coordinator) MarkRead(ctx context.Context, messageID models.ContentHash, sender models.AgentKey) (models.ReconciliationResult, error) {
	tr := c.tel.Track("read_message")
	res, err := c.markRead(ctx, messageID, sender, tr)
	tr.Fail(err)
	tr.Finish()
	return res, err
}

func (c *Coordinator) markRead(ctx context.Context, messageID models.ContentHash, sender models.AgentKey, tr *telemetry.Trace) (models.ReconciliationResult, error) {
	const op = "read_message"
	if messageID.IsZero() {
		return nil, apperr.InvalidInput(op, "message id is required")
	}
	if sender.IsZero() || sender == c.self {
		return nil, apperr.InvalidInput(op, "sender must be another agent")
	}
	receipt := models.Receipt{ID: messageID, Status: models.Read(c.now())}

	c.mu.Lock()
	_, err := c.log.Append(ctx, store.KindReceipt, receipt)
	c.mu.Unlock()
	tr.Mark("commit")
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	var result models.ReconciliationResult
	err = c.invoker.Invoke(ctx, sender, transport.OpReceiveReadReceipt, receipt, &result)
	tr.Mark("remote")
	if err != nil {
		logger.Warn("read_receipt_not_delivered", "message", messageID.Short(), "sender", sender.Short(), "error", err)
		return nil, transport.AsAppError(op, err)
	}
	if result == nil {
		result = models.ReconciliationResult{}
	}
	logger.Info("message_read", "message", messageID.Short(), "sender", sender.Short(), "committed", len(result))
	return result, nil
}

// ReceiveReadReceipt reconciles a read receipt from a peer and notifies
// local subscribers with what was newly committed.
func (c *Coordinator) ReceiveReadReceipt(ctx context.Context, from models.AgentKey, r models.Receipt) (models.ReconciliationResult, error) {
	return c.receiveReceipts(ctx, "receive_read_receipt", from, r)
}

// ReceiveReceipt is the delivery-notice path: same handling as a read receipt.
func (c *Coordinator) ReceiveReceipt(ctx context.Context, from models.AgentKey, r models.Receipt) (models.ReconciliationResult, error) {
	return c.receiveReceipts(ctx, "receive_receipt", from, r)
}

func (c *Coordinator) receiveReceipts(ctx context.Context, op string, from models.AgentKey, rs ...models.Receipt) (models.ReconciliationResult, error) {
	tr := c.tel.Track(op)
	defer tr.Finish()
	c.mu.Lock()
	result, err := c.reconciler.Reconcile(ctx, rs)
	c.mu.Unlock()
	tr.Mark("reconcile")
	if err != nil {
		tr.Fail(err)
		return result, err
	}
	logger.Info("receipts_received", "op", op, "from", from.Short(), "committed", len(result))
	c.emit(ctx, models.ReceiptsArrived(result))
	return result, nil
}

// SetTyping tells peer and local subscribers whether this node's user is typing.
func (c *Coordinator) SetTyping(ctx context.Context, peer models.AgentKey, isTyping bool) error {
	const op = "typing"
	if peer.IsZero() {
		return apperr.InvalidInput(op, "agent is required")
	}
	c.emit(ctx, models.Typing(c.self, isTyping))
	req := transport.TypingRequest{Agent: c.self, IsTyping: isTyping}
	if err := c.invoker.Invoke(ctx, peer, transport.OpTyping, req, nil); err != nil {
		return transport.AsAppError(op, err)
	}
	return nil
}

// ReceiveTyping relays a peer's typing flag to local subscribers. The
// typist is always the caller.
func (c *Coordinator) ReceiveTyping(ctx context.Context, from models.AgentKey, isTyping bool) error {
	c.emit(ctx, models.Typing(from, isTyping))
	return nil
}

func (c *Coordinator) emit(ctx context.Context, sig models.Signal) {
	if err := c.emitter.Emit(ctx, sig); err != nil {
		logger.Warn("signal_emit_failed", "name", sig.Name(), "error", err)
	}
}
