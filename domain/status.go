package domain

// Status is the sender-visible aggregate of a message's receipts.
// It only moves forward: sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) Rank() int {
	switch s {
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

// After reports whether s is strictly further along than other.
func (s Status) After(other Status) bool {
	return s.Rank() > other.Rank()
}

// Aggregate applies the receipt rule over the recipients of a message:
// read when every recipient read it, delivered when every recipient has
// at least a delivery receipt, sent otherwise.
// An empty recipient set is vacuously read.
func Aggregate(recipients []string, delivered, read map[string]struct{}) Status {
	allRead, allDelivered := true, true
	for _, userID := range recipients {
		_, r := read[userID]
		_, d := delivered[userID]
		if !r {
			allRead = false
		}
		if !d && !r {
			allDelivered = false
		}
	}
	switch {
	case allRead:
		return StatusRead
	case allDelivered:
		return StatusDelivered
	default:
		return StatusSent
	}
}
