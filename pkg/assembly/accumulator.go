package assembly

import (
	"p2pmessage/pkg/models"
)

// accumulator owns the three co-indexed maps of an AssemblyResult plus the
// reply pairs gathered during a scan. Only its methods write to the maps, so
// every bucketed id always has a bundle and every attached receipt a content
// entry.
type accumulator struct {
	res models.AssemblyResult
	// parent hash -> reply hashes, in scan order
	replies map[models.ContentHash][]models.ContentHash
	parents []models.ContentHash
}

func newAccumulator(buckets ...models.AgentKey) *accumulator {
	a := &accumulator{
		res:     models.NewAssemblyResult(),
		replies: make(map[models.ContentHash][]models.ContentHash),
	}
	for _, b := range buckets {
		a.res.AgentMessages[b] = []models.ContentHash{}
	}
	return a
}

func (a *accumulator) bucketLen(key models.AgentKey) int {
	return len(a.res.AgentMessages[key])
}

// insert adds a message to key's bucket, creating the bucket on first use,
// and returns the bucket length after insertion. A message already present
// in the result is not inserted twice.
func (a *accumulator) insert(key models.AgentKey, id models.ContentHash, m models.Message) int {
	if _, ok := a.res.MessageContents[id]; ok {
		return a.bucketLen(key)
	}
	a.res.AgentMessages[key] = append(a.res.AgentMessages[key], id)
	a.res.MessageContents[id] = &models.MessageBundle{Message: m, Receipts: []models.ContentHash{}}
	return len(a.res.AgentMessages[key])
}

func (a *accumulator) registerReply(id models.ContentHash, m models.Message) {
	if m.ReplyTo == nil {
		return
	}
	parent := *m.ReplyTo
	if _, seen := a.replies[parent]; !seen {
		a.parents = append(a.parents, parent)
	}
	a.replies[parent] = append(a.replies[parent], id)
}

// attachReplies resolves reply pairs against the assembled contents. A parent
// missing from this result drops its pairs; a reply missing from this result
// is left off its parent's list.
func (a *accumulator) attachReplies() {
	for _, parent := range a.parents {
		pb, ok := a.res.MessageContents[parent]
		if !ok {
			continue
		}
		desc := models.DescribeReply(parent, pb.Message)
		for _, id := range a.replies[parent] {
			rb, ok := a.res.MessageContents[id]
			if !ok {
				continue
			}
			rb.ReplyTo = desc
			pb.Replies = append(pb.Replies, id)
		}
	}
}

// wants reports whether a receipt referencing id belongs in the result.
func (a *accumulator) wants(id models.ContentHash) bool {
	_, ok := a.res.MessageContents[id]
	return ok
}

func (a *accumulator) attachReceipt(hash models.ContentHash, r models.Receipt) {
	b, ok := a.res.MessageContents[r.ID]
	if !ok {
		return
	}
	if _, dup := a.res.ReceiptContents[hash]; dup {
		return
	}
	a.res.ReceiptContents[hash] = r
	b.Receipts = append(b.Receipts, hash)
}

func (a *accumulator) result() models.AssemblyResult { return a.res }
