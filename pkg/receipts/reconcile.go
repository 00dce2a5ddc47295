// Package receipts merges incoming receipts into the local receipt log
// without ever moving a message's status backwards from read.
package receipts

import (
	"context"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/store"
)

type Reconciler struct {
	log store.Log
}

func NewReconciler(log store.Log) *Reconciler {
	return &Reconciler{log: log}
}

// workingSet is keyed by referenced message id and remembers first-seen order.
type workingSet struct {
	byID  map[models.ContentHash]models.Receipt
	order []models.ContentHash
}

func newWorkingSet(incoming []models.Receipt) *workingSet {
	ws := &workingSet{byID: make(map[models.ContentHash]models.Receipt, len(incoming))}
	for _, r := range incoming {
		if _, seen := ws.byID[r.ID]; !seen {
			ws.order = append(ws.order, r.ID)
		}
		// later duplicates replace earlier ones
		ws.byID[r.ID] = r
	}
	return ws
}

func (ws *workingSet) drop(id models.ContentHash) { delete(ws.byID, id) }

func (ws *workingSet) empty() bool { return len(ws.byID) == 0 }

// Reconcile commits the incoming receipts whose message is not already read
// locally and returns them keyed by referenced message id. On an append
// failure the returned result holds what was committed before it.
func (r *Reconciler) Reconcile(ctx context.Context, incoming []models.Receipt) (models.ReconciliationResult, error) {
	const op = "reconcile_receipts"
	result := models.ReconciliationResult{}
	if len(incoming) == 0 {
		return result, nil
	}
	for _, rc := range incoming {
		if rc.ID.IsZero() {
			return result, apperr.InvalidInput(op, "receipt without message id")
		}
	}

	ws := newWorkingSet(incoming)
	err := store.ScanAs(ctx, r.log, store.KindReceipt, store.OldestFirst, func(local models.Receipt, _ store.Record) error {
		if _, pending := ws.byID[local.ID]; pending && local.Status.IsRead() {
			ws.drop(local.ID)
		}
		if ws.empty() {
			return store.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return result, apperr.Persistence(op, err)
	}

	for _, id := range ws.order {
		rc, ok := ws.byID[id]
		if !ok {
			continue
		}
		if _, err := r.log.Append(ctx, store.KindReceipt, rc); err != nil {
			logger.Error("receipt_commit_failed", "message", id.Short(), "committed", len(result), "error", err)
			return result, apperr.Persistence(op, err)
		}
		result[id] = rc
	}
	logger.Debug("receipts_reconciled", "incoming", len(incoming), "committed", len(result))
	return result, nil
}
