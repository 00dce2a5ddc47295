package receipts

import (
	"context"
	"errors"
	"testing"

	"p2pmessage/pkg/apperr"
	"p2pmessage/pkg/models"
	"p2pmessage/pkg/store"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgID(b byte) models.ContentHash {
	var h models.ContentHash
	h[0] = b
	h[31] = 0x7f
	return h
}

func ts(sec int64) models.Timestamp { return models.TimestampFromSeconds(sec) }

func localReceipts(t *testing.T, log store.Log) []models.Receipt {
	t.Helper()
	out, err := store.Collect[models.Receipt](context.Background(), log, store.KindReceipt, store.OldestFirst)
	require.NoError(t, err)
	return out
}

func TestReconcileCommitsNewReceipts(t *testing.T) {
	log := store.NewMemoryLog(nil)
	r := NewReconciler(log)

	in := []models.Receipt{
		{ID: msgID(1), Status: models.Delivered(ts(10))},
		{ID: msgID(2), Status: models.Read(ts(11))},
	}
	res, err := r.Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.ReconciliationResult{msgID(1): in[0], msgID(2): in[1]}, res)
	assert.Equal(t, in, localReceipts(t, log))
}

func TestReconcileReadTwiceIsIdempotent(t *testing.T) {
	log := store.NewMemoryLog(nil)
	r := NewReconciler(log)
	read := models.Receipt{ID: msgID(1), Status: models.Read(ts(20))}

	first, err := r.Reconcile(context.Background(), []models.Receipt{read})
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := r.Reconcile(context.Background(), []models.Receipt{read})
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, localReceipts(t, log), 1)
}

func TestReconcileNeverDowngradesRead(t *testing.T) {
	log := store.NewMemoryLog(nil)
	_, err := log.Append(context.Background(), store.KindReceipt, models.Receipt{ID: msgID(1), Status: models.Read(ts(5))})
	require.NoError(t, err)
	_, err = log.Append(context.Background(), store.KindReceipt, models.Receipt{ID: msgID(2), Status: models.Delivered(ts(5))})
	require.NoError(t, err)

	res, err := NewReconciler(log).Reconcile(context.Background(), []models.Receipt{
		{ID: msgID(1), Status: models.Delivered(ts(9))},
		{ID: msgID(2), Status: models.Read(ts(9))},
	})
	require.NoError(t, err)
	assert.NotContains(t, res, msgID(1))
	assert.Contains(t, res, msgID(2))
}

func TestReconcileLaterDuplicateWins(t *testing.T) {
	log := store.NewMemoryLog(nil)
	res, err := NewReconciler(log).Reconcile(context.Background(), []models.Receipt{
		{ID: msgID(1), Status: models.Delivered(ts(1))},
		{ID: msgID(1), Status: models.Read(ts(2))},
	})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[msgID(1)].Status.IsRead())
	assert.Len(t, localReceipts(t, log), 1)
}

func TestReconcileRejectsMissingID(t *testing.T) {
	_, err := NewReconciler(store.NewMemoryLog(nil)).Reconcile(context.Background(), []models.Receipt{{Status: models.Sent()}})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

type failingLog struct {
	store.Log
	allow int
}

func (f *failingLog) Append(ctx context.Context, kind store.EntryKind, v any) (store.Position, error) {
	if f.allow == 0 {
		return 0, errors.New("disk full")
	}
	f.allow--
	return f.Log.Append(ctx, kind, v)
}

func TestReconcileReportsPartialCommit(t *testing.T) {
	log := &failingLog{Log: store.NewMemoryLog(nil), allow: 1}
	res, err := NewReconciler(log).Reconcile(context.Background(), []models.Receipt{
		{ID: msgID(1), Status: models.Read(ts(1))},
		{ID: msgID(2), Status: models.Read(ts(1))},
	})
	require.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, models.ReconciliationResult{msgID(1): {ID: msgID(1), Status: models.Read(ts(1))}}, res)
}

// Property: after reconciling any batch, reconciling the read receipts of
// that batch again commits nothing.
func TestReconcileIdempotenceProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	properties.Property("second pass of read receipts is empty", prop.ForAll(
		func(ids []uint8) bool {
			log := store.NewMemoryLog(nil)
			r := NewReconciler(log)
			var batch []models.Receipt
			for i, id := range ids {
				batch = append(batch, models.Receipt{ID: msgID(id), Status: models.Read(ts(int64(i)))})
			}
			if _, err := r.Reconcile(context.Background(), batch); err != nil {
				return false
			}
			again, err := r.Reconcile(context.Background(), batch)
			return err == nil && len(again) == 0
		},
		gen.SliceOf(gen.UInt8()),
	))
	properties.TestingRun(t)
}
