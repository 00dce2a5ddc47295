package models

type SignalKind string

const (
	SignalMessage SignalKind = "message"
	SignalReceipt SignalKind = "receipt"
	SignalTyping  SignalKind = "typing"
)

// HashedMessage pairs a message with its hash and resolved reply context.
type HashedMessage struct {
	Hash    ContentHash      `json:"hash"`
	Message Message          `json:"message"`
	ReplyTo *ReplyDescriptor `json:"reply_to_message"`
}

type HashedReceipt struct {
	Hash    ContentHash `json:"hash"`
	Receipt Receipt     `json:"receipt"`
}

// Signal is a notification for local subscribers. Which fields are set depends on Kind.
type Signal struct {
	Kind     SignalKind           `json:"kind"`
	Message  *HashedMessage       `json:"message,omitempty"`
	Receipt  *HashedReceipt       `json:"receipt,omitempty"`
	Receipts ReconciliationResult `json:"receipts"`
	Agent    *AgentKey            `json:"agent,omitempty"`
	IsTyping *bool                `json:"is_typing,omitempty"`
}

// Name is the event name clients subscribe to.
func (s Signal) Name() string {
	switch s.Kind {
	case SignalMessage:
		return "RECEIVE_P2P_MESSAGE"
	case SignalReceipt:
		return "RECEIVE_P2P_RECEIPT"
	case SignalTyping:
		return "P2P_TYPING_SIGNAL"
	default:
		return string(s.Kind)
	}
}

func MessageArrived(msg HashedMessage, receipt HashedReceipt) Signal {
	return Signal{Kind: SignalMessage, Message: &msg, Receipt: &receipt}
}

func ReceiptsArrived(r ReconciliationResult) Signal {
	if r == nil {
		r = ReconciliationResult{}
	}
	return Signal{Kind: SignalReceipt, Receipts: r}
}

func Typing(agent AgentKey, isTyping bool) Signal {
	return Signal{Kind: SignalTyping, Agent: &agent, IsTyping: &isTyping}
}
