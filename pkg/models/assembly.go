package models

// ReplyDescriptor is the enriched view of a parent message shown on a reply.
type ReplyDescriptor struct {
	Hash     ContentHash `json:"hash"`
	Author   AgentKey    `json:"author"`
	Receiver AgentKey    `json:"receiver"`
	Payload  Payload     `json:"payload"`
	TimeSent Timestamp   `json:"time_sent"`
}

func DescribeReply(hash ContentHash, m Message) *ReplyDescriptor {
	return &ReplyDescriptor{
		Hash:     hash,
		Author:   m.Author,
		Receiver: m.Receiver,
		Payload:  m.Payload,
		TimeSent: m.TimeSent,
	}
}

// MessageBundle is a message plus what assembly attached to it.
type MessageBundle struct {
	Message  Message          `json:"message"`
	Receipts []ContentHash    `json:"receipts"`
	ReplyTo  *ReplyDescriptor `json:"reply_to_message"`
	Replies  []ContentHash    `json:"replies,omitempty"`
}

// AssemblyResult holds three co-indexed maps. Every id in AgentMessages has
// a MessageContents entry, and every receipt id in a bundle has a
// ReceiptContents entry.
type AssemblyResult struct {
	AgentMessages   map[AgentKey][]ContentHash     `json:"agent_messages"`
	MessageContents map[ContentHash]*MessageBundle `json:"message_contents"`
	ReceiptContents map[ContentHash]Receipt        `json:"receipt_contents"`
}

func NewAssemblyResult() AssemblyResult {
	return AssemblyResult{
		AgentMessages:   make(map[AgentKey][]ContentHash),
		MessageContents: make(map[ContentHash]*MessageBundle),
		ReceiptContents: make(map[ContentHash]Receipt),
	}
}

// Count is the number of distinct messages in the result.
func (r AssemblyResult) Count() int { return len(r.MessageContents) }
