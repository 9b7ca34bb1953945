package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedrun-hq/speedrun-executor/pkg/account"
	"github.com/speedrun-hq/speedrun-executor/pkg/bundler"
	"github.com/speedrun-hq/speedrun-executor/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-executor/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-executor/pkg/config"
	"github.com/speedrun-hq/speedrun-executor/pkg/execution"
	"github.com/speedrun-hq/speedrun-executor/pkg/health"
	"github.com/speedrun-hq/speedrun-executor/pkg/logger"
	"github.com/speedrun-hq/speedrun-executor/pkg/models"
	"github.com/speedrun-hq/speedrun-executor/pkg/orchestrator"
	"github.com/speedrun-hq/speedrun-executor/pkg/signer"
	"github.com/speedrun-hq/speedrun-executor/pkg/validators"
)

// feeRefreshInterval is how often chain fees are refreshed in the background
const feeRefreshInterval = 15 * time.Second

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	lg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		lg.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	path := cfg.TxFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := run(ctx, cfg, path, lg); err != nil {
		lg.Error("Execution failed: %v", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path string, lg logger.Logger) error {
	if path == "" {
		return fmt.Errorf("no transaction: set TX_FILE or pass a file path")
	}
	tx, err := readTransaction(path)
	if err != nil {
		return err
	}

	p := cfg.Protocol()
	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		lg,
	)

	orchOpts := []orchestrator.Option{orchestrator.WithCircuitBreaker(breaker)}
	if cfg.OrchestratorRateLimit > 0 {
		burst := int(math.Ceil(cfg.OrchestratorRateLimit))
		orchOpts = append(orchOpts, orchestrator.WithRateLimit(cfg.OrchestratorRateLimit, burst))
	}
	orch := orchestrator.New(cfg.OrchestratorURL, cfg.OrchestratorAPIKey, lg, orchOpts...)

	owners, err := ownerSigners(cfg)
	if err != nil {
		return err
	}
	sessions, err := sessionSigners(cfg)
	if err != nil {
		return err
	}
	resolver := validators.NewResolver(p, owners, sessions)

	var opts []execution.Option
	chainStatus := make(map[uint64]health.ChainStatus)
	bundlers := make(map[uint64]bool)
	for chainID, chainCfg := range cfg.Chains {
		client, err := chainclient.New(ctx, chainID, chainCfg.RPCURL, chainCfg.GasMultiplier, p.EntryPoint, lg)
		if err != nil {
			return fmt.Errorf("failed to connect to chain %d: %v", chainID, err)
		}
		routine := chainclient.NewFeeUpdateRoutine(client, feeRefreshInterval)
		routine.Start()
		defer routine.Stop()
		chainStatus[chainID] = client

		if !chainCfg.HasBundler() {
			opts = append(opts, execution.WithChain(chainID, client, nil))
			continue
		}
		b, err := bundler.Dial(ctx, chainCfg.BundlerURL, chainID, p.EntryPoint, lg)
		if err != nil {
			return fmt.Errorf("failed to connect to bundler for chain %d: %v", chainID, err)
		}
		defer b.Close()
		bundlers[chainID] = true
		opts = append(opts, execution.WithChain(chainID, client, b))
	}

	healthServer := health.NewServer(cfg.MetricsPort, cfg.MetricsAPIKey, chainStatus, bundlers, breaker, lg)
	go healthServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Failed to stop health server: %v", err)
		}
	}()

	acct := &account.StaticProvider{
		Account:     cfg.Account.Address,
		FactoryAddr: cfg.Account.Factory,
		FactoryData: cfg.Account.FactoryData,
	}
	executor := execution.New(execution.Config{
		Protocol:               p,
		PollInterval:           cfg.PollInterval,
		AcceptPreconfirmations: cfg.AcceptPreconfirmations,
	}, acct, resolver, orch, lg, opts...)

	lg.InfoWithChain(tx.TargetChain, "Executing transaction for %s with %d calls", cfg.Account.Address.Hex(), len(tx.Calls))
	outcome, err := executor.Execute(ctx, tx)
	healthServer.SetLastExecution(lastExecution(outcome, err))
	if err != nil {
		return err
	}

	switch r := outcome.Result.(type) {
	case *models.IntentResult:
		lg.InfoWithChain(r.TargetChain, "Intent %s %s, fill transaction %s", r.ID, outcome.Status, outcome.FillTransactionHash.Hex())
	case *models.UserOpResult:
		lg.InfoWithChain(r.TargetChain, "User operation %s %s in transaction %s", r.Hash.Hex(), outcome.Status, outcome.FillTransactionHash.Hex())
	}
	return nil
}

func ownerSigners(cfg *config.Config) (*models.OwnerSigners, error) {
	keys, err := ecdsaSigners(cfg.OwnerPrivateKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid OWNER_PRIVATE_KEYS: %v", err)
	}
	return &models.OwnerSigners{Kind: models.OwnerECDSA, Threshold: cfg.OwnerThreshold, ECDSA: keys}, nil
}

// sessionSigners builds the default session from SESSION_PRIVATE_KEYS, nil when unset
func sessionSigners(cfg *config.Config) (*models.SessionSigners, error) {
	if len(cfg.SessionPrivateKeys) == 0 {
		return nil, nil
	}
	keys, err := ecdsaSigners(cfg.SessionPrivateKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_PRIVATE_KEYS: %v", err)
	}
	owners := &models.OwnerSigners{Kind: models.OwnerECDSA, Threshold: uint64(len(keys)), ECDSA: keys}
	module, err := validators.Ownable(owners.Threshold, owners.Addresses())
	if err != nil {
		return nil, err
	}
	return &models.SessionSigners{Session: &models.Session{
		SessionValidator:         module.Address,
		SessionValidatorInitData: module.InitData,
		Owners:                   owners,
	}}, nil
}

func ecdsaSigners(keys []string) ([]*signer.ECDSA, error) {
	out := make([]*signer.ECDSA, 0, len(keys))
	for i, k := range keys {
		s, err := signer.NewECDSAFromHex(k)
		if err != nil {
			return nil, fmt.Errorf("key %d: %v", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func lastExecution(outcome *execution.Outcome, err error) health.Execution {
	e := health.Execution{Finished: time.Now()}
	if outcome != nil {
		e.Status = string(outcome.Status)
		switch r := outcome.Result.(type) {
		case *models.IntentResult:
			e.Mode, e.ID = execution.ModeIntent.String(), r.ID
		case *models.UserOpResult:
			e.Mode, e.ID = execution.ModeUserOp.String(), r.Hash.Hex()
		}
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
