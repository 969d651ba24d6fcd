package idgen

import (
	"strings"

	"github.com/google/uuid"
)

const (
	JobIDPrefix         = "j-"
	TransactionIDPrefix = "txn-"
	BidIDPrefix         = "bid-"
	DecisionIDPrefix    = "dec-"
	OrderIDPrefix       = "order-"
)

func NewJobID() string {
	return JobIDPrefix + uuid.NewString()
}

func NewTransactionID() string {
	return TransactionIDPrefix + uuid.NewString()
}

func NewBidID() string {
	return BidIDPrefix + uuid.NewString()
}

func NewDecisionID() string {
	return DecisionIDPrefix + uuid.NewString()
}

func NewOrderID() string {
	return OrderIDPrefix + uuid.NewString()
}

// ShortID truncates a prefixed uuid to something readable in logs: the
// prefix plus the first uuid segment.
func ShortID(id string) string {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 3 {
		return id
	}
	return parts[0] + "-" + parts[1]
}
