package models

import "time"

// TransactionState is the protocol state machine position of one job's
// execution attempt.
type TransactionState string

const (
	TransactionStateCreated     TransactionState = "created"
	TransactionStateSearched    TransactionState = "searched"
	TransactionStateSelected    TransactionState = "selected"
	TransactionStateInitialized TransactionState = "initialized"
	TransactionStateConfirmed   TransactionState = "confirmed"
	TransactionStateAborted     TransactionState = "aborted"
)

func (s TransactionState) IsTerminal() bool {
	return s == TransactionStateConfirmed || s == TransactionStateAborted
}

// ProtocolStep names one request/response exchange with the counterparty.
type ProtocolStep string

const (
	StepSearch  ProtocolStep = "search"
	StepSelect  ProtocolStep = "select"
	StepInit    ProtocolStep = "init"
	StepConfirm ProtocolStep = "confirm"
	StepStatus  ProtocolStep = "status"
)

// StepRecord is one attempted protocol step, successful or not.
type StepRecord struct {
	Step        ProtocolStep `json:"step"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Error       string       `json:"error,omitempty"`
}

// Transaction tracks one job execution attempt through the external
// protocol. Terminal once confirmed or aborted; never reused across jobs.
type Transaction struct {
	ID    string           `json:"id"`
	JobID string           `json:"job_id"`
	State TransactionState `json:"state"`
	Steps []StepRecord     `json:"steps"`

	OrderID     string    `json:"order_id,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at,omitempty"`
	AbortReason string    `json:"abort_reason,omitempty"`
}

// RecordStep appends one step attempt to the ordered step log.
func (t *Transaction) RecordStep(step ProtocolStep, startedAt, completedAt time.Time, err error) {
	rec := StepRecord{Step: step, StartedAt: startedAt, CompletedAt: completedAt}
	if err != nil {
		rec.Error = err.Error()
	}
	t.Steps = append(t.Steps, rec)
}

// Abort moves the transaction to its terminal failed state, recording the
// step that failed and why.
func (t *Transaction) Abort(step ProtocolStep, err error) {
	t.State = TransactionStateAborted
	t.AbortReason = string(step) + ": " + err.Error()
}
