//go:build unit || !integration

package beckn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/gridshift-project/gridshift/pkg/jobstore/inmemory"
	"github.com/gridshift-project/gridshift/pkg/logger"
	"github.com/gridshift-project/gridshift/pkg/models"
)

// fakeClient acks everything unless a step is told to fail.
type fakeClient struct {
	mu       sync.Mutex
	calls    []models.ProtocolStep
	failStep models.ProtocolStep
	failErr  error
	catalog  *Catalog
	orderID  string
}

func (f *fakeClient) record(step models.ProtocolStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, step)
	if step == f.failStep {
		return f.failErr
	}
	return nil
}

func (f *fakeClient) stepCalls() []models.ProtocolStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ProtocolStep(nil), f.calls...)
}

func (f *fakeClient) Search(context.Context, string, SearchIntent) (*Response, error) {
	if err := f.record(models.StepSearch); err != nil {
		return nil, err
	}
	if f.catalog != nil {
		message, _ := json.Marshal(map[string]interface{}{"catalog": f.catalog})
		return &Response{Message: message}, nil
	}
	return &Response{}, nil
}

func (f *fakeClient) Select(context.Context, string, Offer) (*Response, error) {
	if err := f.record(models.StepSelect); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (f *fakeClient) Init(context.Context, string, OrderDetails) (*Response, error) {
	if err := f.record(models.StepInit); err != nil {
		return nil, err
	}
	if f.orderID != "" {
		message, _ := json.Marshal(map[string]interface{}{"order": map[string]string{"id": f.orderID}})
		return &Response{Message: message}, nil
	}
	return &Response{}, nil
}

func (f *fakeClient) Confirm(context.Context, string, OrderDetails) (*Response, error) {
	if err := f.record(models.StepConfirm); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (f *fakeClient) Status(context.Context, string, string) (*Response, error) {
	if err := f.record(models.StepStatus); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

type recordingStepLog struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingStepLog) LogStep(_, jobID string, step models.ProtocolStep, stepErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if stepErr != nil {
		outcome = "error"
	}
	r.entries = append(r.entries, jobID+"/"+string(step)+"/"+outcome)
	return nil
}

type OrchestratorSuite struct {
	suite.Suite
	ctx     context.Context
	store   *inmemory.Store
	client  *fakeClient
	stepLog *recordingStepLog
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.store = inmemory.NewStore()
	s.client = &fakeClient{}
	s.stepLog = &recordingStepLog{}
}

func (s *OrchestratorSuite) orchestrator() *Orchestrator {
	return NewOrchestrator(OrchestratorParams{
		Client:      s.client,
		Store:       s.store,
		StepLog:     s.stepLog,
		RetryBudget: 2,
	})
}

func (s *OrchestratorSuite) addJob(id string) {
	s.Require().NoError(s.store.Create(s.ctx, models.Job{
		ID:            id,
		Priority:      5,
		DurationHours: 1,
		DeadlineHour:  4,
		CanDefer:      true,
	}))
}

func (s *OrchestratorSuite) schedule(jobIDs ...string) *models.Schedule {
	schedule := &models.Schedule{}
	for _, id := range jobIDs {
		schedule.Assignments = append(schedule.Assignments, models.Assignment{
			JobID: id, Region: "north", StartHour: 2, EndHour: 3,
		})
	}
	return schedule
}

func (s *OrchestratorSuite) TestHappyPath() {
	s.addJob("j-1")

	transactions := s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	txn := transactions[0]
	s.Equal(models.TransactionStateConfirmed, txn.State)
	s.NotEmpty(txn.OrderID)
	s.False(txn.ConfirmedAt.IsZero())

	// all five steps ran, in order, and all were logged
	s.Equal([]models.ProtocolStep{
		models.StepSearch, models.StepSelect, models.StepInit, models.StepConfirm, models.StepStatus,
	}, s.client.stepCalls())
	s.Len(s.stepLog.entries, 5)

	job, err := s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusScheduled, job.Status)
}

func (s *OrchestratorSuite) TestOrderIDFromCounterparty() {
	s.addJob("j-1")
	s.client.orderID = "order-upstream"

	transactions := s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	s.Equal("order-upstream", transactions[0].OrderID)
}

func (s *OrchestratorSuite) TestCatalogOfferUsed() {
	s.addJob("j-1")
	s.client.catalog = &Catalog{Offers: []Offer{{ProviderID: "p-real", ItemID: "i-1"}}}

	transactions := s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	s.Equal(models.TransactionStateConfirmed, transactions[0].State)
}

func (s *OrchestratorSuite) TestBestEffortAssignmentsExecuted() {
	s.addJob("j-1")
	schedule := s.schedule("j-1")
	schedule.Assignments[0].BestEffort = true

	// a best-effort placement still goes through the full protocol
	transactions := s.orchestrator().ExecuteSchedule(s.ctx, schedule)
	s.Require().Len(transactions, 1)
	s.Equal(models.TransactionStateConfirmed, transactions[0].State)
	s.Len(s.client.stepCalls(), 5)

	job, err := s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusScheduled, job.Status)
}

func (s *OrchestratorSuite) TestStepFailureIsolatedToOneJob() {
	s.addJob("j-ok")
	s.addJob("j-bad")
	s.client.failStep = models.StepConfirm
	s.client.failErr = errors.New("provider rejected order")

	// confirm fails for both, but the failure never leaks across jobs
	transactions := s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-ok", "j-bad"))
	s.Require().Len(transactions, 2)
	for _, txn := range transactions {
		s.Equal(models.TransactionStateAborted, txn.State)
		s.Contains(txn.AbortReason, "confirm")
		s.Empty(txn.OrderID)
		s.True(txn.ConfirmedAt.IsZero())
	}

	// both jobs stay pending for the next cycle
	for _, id := range []string{"j-ok", "j-bad"} {
		job, err := s.store.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.JobStatusPending, job.Status)
	}
}

func (s *OrchestratorSuite) TestFailedStepStillLogged() {
	s.addJob("j-1")
	s.client.failStep = models.StepSelect
	s.client.failErr = errors.New("boom")

	s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Contains(s.stepLog.entries, "j-1/search/ok")
	s.Contains(s.stepLog.entries, "j-1/select/error")
}

func (s *OrchestratorSuite) TestRetryBudgetExhaustionFailsJob() {
	s.addJob("j-1")
	s.client.failStep = models.StepSearch
	s.client.failErr = errors.New("discovery down")

	orchestrator := s.orchestrator()

	transactions := orchestrator.ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	s.Equal(models.TransactionStateAborted, transactions[0].State)
	job, err := s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusPending, job.Status, "one abort leaves budget for another attempt")

	transactions = orchestrator.ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	s.Equal(models.TransactionStateAborted, transactions[0].State)
	job, err = s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, job.Status, "second consecutive abort uses up a budget of 2")
}

func (s *OrchestratorSuite) TestConfirmResetsFailureCount() {
	s.addJob("j-1")
	orchestrator := NewOrchestrator(OrchestratorParams{
		Client:      s.client,
		Store:       s.store,
		StepLog:     s.stepLog,
		RetryBudget: 3,
	})

	// two aborts leave the job one failure short of its budget
	s.client.failStep = models.StepSearch
	s.client.failErr = errors.New("flaky")
	orchestrator.ExecuteSchedule(s.ctx, s.schedule("j-1"))
	orchestrator.ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Equal(2, orchestrator.failures["j-1"])

	// a confirmed order clears the count entirely
	s.client.failStep = ""
	orchestrator.ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.NotContains(orchestrator.failures, "j-1")
	job, err := s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusScheduled, job.Status)
}

func (s *OrchestratorSuite) TestStatusProbeFailureDoesNotUnwindConfirm() {
	s.addJob("j-1")
	s.client.failStep = models.StepStatus
	s.client.failErr = errors.New("status endpoint flaky")

	transactions := s.orchestrator().ExecuteSchedule(s.ctx, s.schedule("j-1"))
	s.Require().Len(transactions, 1)
	s.Equal(models.TransactionStateConfirmed, transactions[0].State)

	job, err := s.store.Get(s.ctx, "j-1")
	s.Require().NoError(err)
	s.Equal(models.JobStatusScheduled, job.Status)
}
