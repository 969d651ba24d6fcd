package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gridshift-project/gridshift/pkg/agent"
	"github.com/gridshift-project/gridshift/pkg/beckn"
	"github.com/gridshift-project/gridshift/pkg/bidstrategy"
	"github.com/gridshift-project/gridshift/pkg/config"
	"github.com/gridshift-project/gridshift/pkg/forecast"
	"github.com/gridshift-project/gridshift/pkg/forecaster"
	"github.com/gridshift-project/gridshift/pkg/jobstore/inmemory"
	"github.com/gridshift-project/gridshift/pkg/ledger"
	"github.com/gridshift-project/gridshift/pkg/optimizer"
	"github.com/gridshift-project/gridshift/pkg/simulator"
)

func newServeCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := loadConfigFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, once bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, _, err := buildAgent(cfg)
	if err != nil {
		return err
	}

	if once {
		return a.RunCycle(ctx)
	}
	if err := a.Run(ctx, cfg.CycleInterval); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildAgent wires the full pipeline from configuration: store, forecast
// ingestion, optimizer, protocol orchestrator, ledger, simulated inputs.
func buildAgent(cfg *config.Config) (*agent.Agent, *ledger.Ledger, error) {
	store := inmemory.NewStore()

	synthetic := forecast.NewSyntheticSource(cfg.Regions, cfg.Forecast.Seed)
	ingestor := forecast.NewIngestor(forecast.IngestorParams{
		Regions:       cfg.Regions,
		Price:         synthetic,
		Carbon:        synthetic,
		Events:        synthetic,
		Fallback:      synthetic,
		SourceTimeout: cfg.Forecast.SourceTimeout,
		CacheTTL:      cfg.Forecast.CacheTTL,
	})

	ranker := forecaster.NewRanker(forecaster.WithWindowCount(cfg.Optimizer.WindowCount))
	valuator := bidstrategy.NewValuator(bidstrategy.WithRevenueShare(cfg.Optimizer.RevenueShare))
	planner := optimizer.New(optimizer.Params{
		Ranker:             ranker,
		Valuator:           valuator,
		MaxForecastWorkers: cfg.Optimizer.MaxForecastWorkers,
		DefaultRegion:      cfg.DefaultRegion,
	})

	signer, err := beckn.NewEd25519Signer(cfg.Counterparty.SubscriberID, nil)
	if err != nil {
		return nil, nil, err
	}
	client, err := beckn.NewClient(beckn.ClientParams{
		BaseURL:      cfg.Counterparty.BaseURL,
		SubscriberID: cfg.Counterparty.SubscriberID,
		Signer:       signer,
		RetryMax:     cfg.Counterparty.RetryMax,
	})
	if err != nil {
		return nil, nil, err
	}

	decisions, err := ledger.NewLedger(ledger.Params{Dir: cfg.DataDir})
	if err != nil {
		return nil, nil, err
	}
	txLog, err := ledger.NewTransactionLog(cfg.DataDir, nil)
	if err != nil {
		return nil, nil, err
	}

	executor := beckn.NewOrchestrator(beckn.OrchestratorParams{
		Client:        client,
		Store:         store,
		StepLog:       txLog,
		MaxConcurrent: cfg.Counterparty.MaxConcurrent,
		StepTimeout:   cfg.Counterparty.StepTimeout,
		RetryBudget:   cfg.Counterparty.RetryBudget,
	})

	jobs := simulator.NewJobSource(simulator.JobSourceParams{
		Seed:         cfg.Simulator.Seed,
		MinJobs:      cfg.Simulator.MinJobs,
		MaxJobs:      cfg.Simulator.MaxJobs,
		Regions:      cfg.Regions,
		HorizonHours: cfg.HorizonHours,
	})
	capacitySource := simulator.NewStaticCapacity(nil)

	log.Info().Str("DataDir", cfg.DataDir).Str("Counterparty", cfg.Counterparty.BaseURL).
		Msg("pipeline wired")

	return agent.New(agent.Params{
		Store:        store,
		Jobs:         jobs,
		Capacity:     capacitySource,
		Forecast:     ingestor,
		Planner:      planner,
		Executor:     executor,
		Recorder:     decisions,
		HorizonHours: cfg.HorizonHours,
	}), decisions, nil
}
