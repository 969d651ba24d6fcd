package beckn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/gridshift-project/gridshift/pkg/jobstore"
	"github.com/gridshift-project/gridshift/pkg/models"
	"github.com/gridshift-project/gridshift/pkg/util/idgen"
)

const (
	DefaultMaxConcurrent = 4
	DefaultStepTimeout   = 30 * time.Second
	DefaultRetryBudget   = 3
)

// ProtocolClient is the five protocol exchanges the orchestrator drives.
// Satisfied by *Client; tests substitute their own.
type ProtocolClient interface {
	Search(ctx context.Context, transactionID string, intent SearchIntent) (*Response, error)
	Select(ctx context.Context, transactionID string, offer Offer) (*Response, error)
	Init(ctx context.Context, transactionID string, order OrderDetails) (*Response, error)
	Confirm(ctx context.Context, transactionID string, order OrderDetails) (*Response, error)
	Status(ctx context.Context, transactionID, orderID string) (*Response, error)
}

var _ ProtocolClient = &Client{}

// StepLogger receives every protocol step attempt, successful or not. The
// orchestrator never skips a log call for a step it started.
type StepLogger interface {
	LogStep(transactionID, jobID string, step models.ProtocolStep, stepErr error) error
}

type OrchestratorParams struct {
	Client  ProtocolClient
	Store   jobstore.Store
	StepLog StepLogger

	// MaxConcurrent bounds how many assignments execute their protocol
	// sequence in parallel.
	MaxConcurrent int
	// StepTimeout bounds a single step exchange.
	StepTimeout time.Duration
	// RetryBudget is how many consecutive aborted attempts a job may
	// accumulate across cycles before it is marked failed.
	RetryBudget int
	Clock       clock.Clock
}

// Orchestrator executes confirmed schedule assignments against the
// counterparty: search, select, init, confirm, then a best-effort status
// probe. Each assignment gets its own transaction; a failure aborts only
// that transaction.
type Orchestrator struct {
	client  ProtocolClient
	store   jobstore.Store
	stepLog StepLogger

	maxConcurrent int
	stepTimeout   time.Duration
	retryBudget   int
	clock         clock.Clock

	mu       sync.Mutex
	failures map[string]int
}

func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	if params.MaxConcurrent <= 0 {
		params.MaxConcurrent = DefaultMaxConcurrent
	}
	if params.StepTimeout <= 0 {
		params.StepTimeout = DefaultStepTimeout
	}
	if params.RetryBudget <= 0 {
		params.RetryBudget = DefaultRetryBudget
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Orchestrator{
		client:        params.Client,
		store:         params.Store,
		stepLog:       params.StepLog,
		maxConcurrent: params.MaxConcurrent,
		stepTimeout:   params.StepTimeout,
		retryBudget:   params.RetryBudget,
		clock:         params.Clock,
		failures:      make(map[string]int),
	}
}

// ExecuteSchedule runs the protocol sequence for every assignment in the
// schedule, best-effort placements included. It always returns one
// transaction per assignment; aborted transactions carry the failing step.
func (o *Orchestrator) ExecuteSchedule(ctx context.Context, schedule *models.Schedule) []*models.Transaction {
	transactions := make([]*models.Transaction, len(schedule.Assignments))
	sem := make(chan struct{}, o.maxConcurrent)
	var wg sync.WaitGroup
	for i, assignment := range schedule.Assignments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, assignment models.Assignment) {
			defer wg.Done()
			defer func() { <-sem }()
			transactions[i] = o.executeOne(ctx, assignment)
		}(i, assignment)
	}
	wg.Wait()
	return transactions
}

// executeOne drives one assignment through search, select, init and
// confirm. Steps run in order and the sequence stops at the first failure.
func (o *Orchestrator) executeOne(ctx context.Context, assignment models.Assignment) *models.Transaction {
	job, err := o.store.Get(ctx, assignment.JobID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("JobID", assignment.JobID).
			Msg("assignment refers to unknown job, skipping")
		txn := &models.Transaction{
			ID:    idgen.NewTransactionID(),
			JobID: assignment.JobID,
			State: models.TransactionStateCreated,
		}
		txn.Abort(models.StepSearch, err)
		return txn
	}

	txn := &models.Transaction{
		ID:    idgen.NewTransactionID(),
		JobID: job.ID,
		State: models.TransactionStateCreated,
	}
	logger := log.Ctx(ctx).With().
		Str("TransactionID", txn.ID).
		Str("JobID", job.ID).
		Str("Region", assignment.Region).
		Logger()

	offer, err := o.search(ctx, txn, job, assignment)
	if err != nil {
		o.abort(ctx, txn, job, models.StepSearch, err)
		return txn
	}
	txn.State = models.TransactionStateSearched

	if err := o.selectOffer(ctx, txn, offer); err != nil {
		o.abort(ctx, txn, job, models.StepSelect, err)
		return txn
	}
	txn.State = models.TransactionStateSelected

	order := OrderDetails{
		Offer:     offer,
		JobID:     job.ID,
		Region:    assignment.Region,
		StartHour: assignment.StartHour,
		EndHour:   assignment.EndHour,
	}
	orderID, err := o.initOrder(ctx, txn, order)
	if err != nil {
		o.abort(ctx, txn, job, models.StepInit, err)
		return txn
	}
	txn.State = models.TransactionStateInitialized

	order.Status = "confirmed"
	if err := o.confirm(ctx, txn, order); err != nil {
		o.abort(ctx, txn, job, models.StepConfirm, err)
		return txn
	}
	// The order ID stays local until the counterparty confirms it, so an
	// aborted transaction never carries an order it does not hold.
	txn.State = models.TransactionStateConfirmed
	txn.OrderID = orderID
	txn.ConfirmedAt = o.clock.Now().UTC()
	o.resetFailures(job.ID)

	if err := o.store.UpdateStatus(ctx, jobstore.UpdateStatusRequest{
		JobID:          job.ID,
		ExpectedStatus: models.JobStatusPending,
		NewStatus:      models.JobStatusScheduled,
	}); err != nil {
		logger.Warn().Err(err).Msg("confirmed order but could not mark job scheduled")
	}
	logger.Info().Str("OrderID", txn.OrderID).Msg("order confirmed")

	// The order stands regardless of the probe's outcome.
	o.probeStatus(ctx, txn)
	return txn
}

func (o *Orchestrator) search(ctx context.Context, txn *models.Transaction, job models.Job, assignment models.Assignment) (Offer, error) {
	intent := SearchIntent{
		Region:    assignment.Region,
		StartHour: assignment.StartHour,
		EndHour:   assignment.EndHour,
		Resources: job.Resources,
		EnergyKWh: job.EnergyKWh,
	}
	response, err := o.step(ctx, txn, models.StepSearch, func(stepCtx context.Context) (*Response, error) {
		return o.client.Search(stepCtx, txn.ID, intent)
	})
	if err != nil {
		return Offer{}, err
	}

	var catalog struct {
		Catalog Catalog `json:"catalog"`
	}
	if len(response.Message) > 0 {
		if err := json.Unmarshal(response.Message, &catalog); err != nil {
			return Offer{}, fmt.Errorf("decoding catalog: %w", err)
		}
	}
	if len(catalog.Catalog.Offers) > 0 {
		return catalog.Catalog.Offers[0], nil
	}

	// Counterparties in discovery-only deployments return an empty
	// catalog. Synthesize a deterministic offer so the order is
	// reconstructable from the transaction ID alone.
	return Offer{
		ProviderID: "provider-" + assignment.Region,
		ItemID:     "slot-" + idgen.ShortID(txn.ID),
	}, nil
}

func (o *Orchestrator) selectOffer(ctx context.Context, txn *models.Transaction, offer Offer) error {
	_, err := o.step(ctx, txn, models.StepSelect, func(stepCtx context.Context) (*Response, error) {
		return o.client.Select(stepCtx, txn.ID, offer)
	})
	return err
}

func (o *Orchestrator) initOrder(ctx context.Context, txn *models.Transaction, order OrderDetails) (string, error) {
	response, err := o.step(ctx, txn, models.StepInit, func(stepCtx context.Context) (*Response, error) {
		return o.client.Init(stepCtx, txn.ID, order)
	})
	if err != nil {
		return "", err
	}

	var ack OrderAck
	if len(response.Message) > 0 {
		if err := json.Unmarshal(response.Message, &ack); err == nil && ack.Order.ID != "" {
			return ack.Order.ID, nil
		}
	}
	return idgen.NewOrderID(), nil
}

func (o *Orchestrator) confirm(ctx context.Context, txn *models.Transaction, order OrderDetails) error {
	_, err := o.step(ctx, txn, models.StepConfirm, func(stepCtx context.Context) (*Response, error) {
		return o.client.Confirm(stepCtx, txn.ID, order)
	})
	return err
}

// probeStatus issues the post-confirm status check. A probe failure is
// recorded but never unwinds the confirmed order.
func (o *Orchestrator) probeStatus(ctx context.Context, txn *models.Transaction) {
	_, err := o.step(ctx, txn, models.StepStatus, func(stepCtx context.Context) (*Response, error) {
		return o.client.Status(stepCtx, txn.ID, txn.OrderID)
	})
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("TransactionID", txn.ID).
			Msg("status probe failed after confirm")
	}
}

// step runs one exchange under the step timeout and records the attempt on
// the transaction and in the step log before returning.
func (o *Orchestrator) step(ctx context.Context, txn *models.Transaction, step models.ProtocolStep,
	call func(context.Context) (*Response, error)) (*Response, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	startedAt := o.clock.Now().UTC()
	response, err := call(stepCtx)
	completedAt := o.clock.Now().UTC()

	txn.RecordStep(step, startedAt, completedAt, err)
	if o.stepLog != nil {
		if logErr := o.stepLog.LogStep(txn.ID, txn.JobID, step, err); logErr != nil {
			log.Ctx(ctx).Warn().Err(logErr).Str("TransactionID", txn.ID).
				Msg("failed to append to transaction log")
		}
	}
	return response, err
}

// abort terminates the transaction at the failing step and charges the
// job's retry budget. A job that accumulates RetryBudget consecutive
// aborts is marked failed and will not be rescheduled.
func (o *Orchestrator) abort(ctx context.Context, txn *models.Transaction, job models.Job, step models.ProtocolStep, err error) {
	txn.Abort(step, err)
	log.Ctx(ctx).Warn().Err(err).
		Str("TransactionID", txn.ID).
		Str("JobID", job.ID).
		Str("Step", string(step)).
		Msg("transaction aborted")

	o.mu.Lock()
	o.failures[job.ID]++
	exhausted := o.failures[job.ID] >= o.retryBudget
	o.mu.Unlock()

	if exhausted {
		if updateErr := o.store.UpdateStatus(ctx, jobstore.UpdateStatusRequest{
			JobID:          job.ID,
			ExpectedStatus: models.JobStatusPending,
			NewStatus:      models.JobStatusFailed,
		}); updateErr != nil {
			log.Ctx(ctx).Warn().Err(updateErr).Str("JobID", job.ID).
				Msg("could not mark job failed after exhausting retries")
			return
		}
		log.Ctx(ctx).Warn().Str("JobID", job.ID).Int("Attempts", o.retryBudget).
			Msg("job exhausted its retry budget")
	}
}

func (o *Orchestrator) resetFailures(jobID string) {
	o.mu.Lock()
	delete(o.failures, jobID)
	o.mu.Unlock()
}
