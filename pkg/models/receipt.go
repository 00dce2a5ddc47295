package models

type StatusKind string

const (
	StatusSent      StatusKind = "sent"
	StatusDelivered StatusKind = "delivered"
	StatusRead      StatusKind = "read"
)

// Status progresses sent -> delivered -> read. Delivered and read carry a timestamp.
type Status struct {
	Kind      StatusKind `json:"status"`
	Timestamp Timestamp  `json:"timestamp,omitempty"`
}

func Sent() Status                  { return Status{Kind: StatusSent} }
func Delivered(at Timestamp) Status { return Status{Kind: StatusDelivered, Timestamp: at} }
func Read(at Timestamp) Status      { return Status{Kind: StatusRead, Timestamp: at} }

func (s Status) IsRead() bool { return s.Kind == StatusRead }

// Rank orders statuses along the progression.
func (s Status) Rank() int {
	switch s.Kind {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Receipt acknowledges the message whose hash is ID. Its own identity is Hash().
type Receipt struct {
	ID     ContentHash `json:"id"`
	Status Status      `json:"status"`
}

func (r Receipt) Hash() (ContentHash, error) { return HashOf(r) }

// ReconciliationResult holds newly committed receipts keyed by referenced message id.
type ReconciliationResult map[ContentHash]Receipt
