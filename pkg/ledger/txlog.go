package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/gridshift-project/gridshift/pkg/models"
)

const transactionsFile = "transactions.jsonl"

// StepEntry is one protocol step attempt in the transaction trail.
type StepEntry struct {
	Timestamp     time.Time           `json:"timestamp"`
	TransactionID string              `json:"transaction_id"`
	JobID         string              `json:"job_id"`
	Step          models.ProtocolStep `json:"step"`
	Outcome       string              `json:"outcome"`
	Error         string              `json:"error,omitempty"`
}

// TransactionLog appends every protocol step attempt to
// transactions.jsonl, one line per attempt, failures included.
type TransactionLog struct {
	path  string
	clock clock.Clock
	mu    sync.Mutex
}

func NewTransactionLog(dir string, clk clock.Clock) (*TransactionLog, error) {
	if clk == nil {
		clk = clock.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating ledger directory %s", dir)
	}
	return &TransactionLog{
		path:  filepath.Join(dir, transactionsFile),
		clock: clk,
	}, nil
}

// LogStep records one step attempt. Called for every step the
// orchestrator starts, whatever the outcome.
func (t *TransactionLog) LogStep(transactionID, jobID string, step models.ProtocolStep, stepErr error) error {
	entry := StepEntry{
		Timestamp:     t.clock.Now().UTC(),
		TransactionID: transactionID,
		JobID:         jobID,
		Step:          step,
		Outcome:       "ok",
	}
	if stepErr != nil {
		entry.Outcome = "error"
		entry.Error = stepErr.Error()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encoding step entry")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening transaction log")
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "appending step entry")
	}
	return nil
}
