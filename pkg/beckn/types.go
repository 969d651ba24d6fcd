package beckn

import (
	"encoding/json"

	"github.com/gridshift-project/gridshift/pkg/models"
)

const (
	ProtocolDomain  = "energy:compute"
	ProtocolVersion = "1.1.0"
	RequestTTL      = "PT30M"
)

// Context is the protocol envelope header carried on every exchange. The
// transaction ID is generated once per job execution attempt and reused
// for every step; the message ID is fresh per request.
type Context struct {
	Domain        string `json:"domain"`
	Action        string `json:"action"`
	Version       string `json:"version"`
	BapID         string `json:"bap_id"`
	BapURI        string `json:"bap_uri"`
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	Timestamp     string `json:"timestamp"`
	TTL           string `json:"ttl"`
}

// Request is a signed protocol request.
type Request struct {
	Context Context     `json:"context"`
	Message interface{} `json:"message"`
}

// Response is a counterparty reply. Message stays raw so each step decodes
// only what it needs.
type Response struct {
	Context Context         `json:"context,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// SearchIntent describes the assignment's resource/time/region needs in a
// discovery request.
type SearchIntent struct {
	Region    string           `json:"region"`
	StartHour int              `json:"start_hour"`
	EndHour   int              `json:"end_hour"`
	Resources models.Resources `json:"resources"`
	EnergyKWh float64          `json:"energy_kwh"`
}

// Offer is one concrete compute slot offered by a provider.
type Offer struct {
	ProviderID string `json:"provider_id"`
	ItemID     string `json:"item_id"`
}

// Catalog is the offer list a counterparty may return from search.
type Catalog struct {
	Offers []Offer `json:"offers"`
}

// OrderDetails is the order body for init and confirm.
type OrderDetails struct {
	Offer     Offer  `json:"offer"`
	JobID     string `json:"job_id"`
	Region    string `json:"region"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Status    string `json:"status,omitempty"`
}

// OrderAck is the order acknowledgement a counterparty may return from
// init or confirm.
type OrderAck struct {
	Order struct {
		ID string `json:"id"`
	} `json:"order"`
}

type searchMessage struct {
	Intent SearchIntent `json:"intent"`
}

type selectMessage struct {
	Offer Offer `json:"offer"`
}

type orderMessage struct {
	Order OrderDetails `json:"order"`
}

type statusMessage struct {
	OrderID string `json:"order_id"`
}
