package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl-market/internal/adapters/outbound/evm"
	"github.com/archon-research/stl-market/internal/adapters/outbound/memory"
	"github.com/archon-research/stl-market/internal/adapters/outbound/signer"
	snssink "github.com/archon-research/stl-market/internal/adapters/outbound/sns"
	"github.com/archon-research/stl-market/internal/adapters/outbound/substrate"
	"github.com/archon-research/stl-market/internal/adapters/outbound/telemetry"
	"github.com/archon-research/stl-market/internal/config"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/pkg/confirm"
	"github.com/archon-research/stl-market/internal/pkg/env"
	"github.com/archon-research/stl-market/internal/ports/outbound"
	"github.com/archon-research/stl-market/internal/services/market"
)

// Simulated deployment used when --simulate runs without a config file.
const (
	simulatedContract           = "0x5c03d3976ad16f50451d95113728e0229c50cab8"
	simulatedEscrow             = "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y"
	simulatedExistentialDeposit = "333333333"
)

// runtime is everything a trade command needs, wired from configuration.
type runtime struct {
	cfg    *config.Config
	bridge *bridge.Bridge
	market *market.Service
	sink   outbound.EventSink
	signer outbound.Signer
	logger *slog.Logger

	// ledger is set in simulation only.
	ledger *memory.Ledger

	closers []func(context.Context) error
}

// loadConfig reads --config (or defaults), applies MARKETCTL_* environment
// overrides and the selected network, and validates the result.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Defaults()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Confirm.MaxAttempts = env.GetInt("MARKETCTL_CONFIRM_ATTEMPTS", cfg.Confirm.MaxAttempts)
	cfg.Confirm.Delay = env.GetDuration("MARKETCTL_CONFIRM_DELAY", cfg.Confirm.Delay)
	cfg.Events.SNSTopicARN = env.Get("MARKETCTL_SNS_TOPIC_ARN", cfg.Events.SNSTopicARN)

	simulate := ctx.Bool(simulateFlag.Name)
	if simulate {
		if cfg.Market.ContractAddress == "" {
			cfg.Market.ContractAddress = simulatedContract
		}
		if cfg.Market.EscrowAddress == "" {
			cfg.Market.EscrowAddress = simulatedEscrow
		}
		if cfg.Settlement.ExistentialDeposit == "" {
			cfg.Settlement.ExistentialDeposit = simulatedExistentialDeposit
		}
	}

	key := ctx.String(networkFlag.Name)
	if key == "" {
		key = cfg.Network
	}
	if !simulate && (key != "" || cfg.Asset.RPCURL == "") {
		network, err := config.SelectNetwork(config.NetworksFromEnv(os.Environ()), key)
		if err != nil {
			return nil, err
		}
		cfg.ApplyNetwork(network)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// newRuntime wires the market service against RPC endpoints, or against an
// in-memory ledger with --simulate.
func newRuntime(ctx *cli.Context) (*runtime, error) {
	logger := newLogger(ctx)
	if ctx.Bool(yesFlag.Name) && !ctx.Bool(simulateFlag.Name) {
		return nil, errors.New("--yes is only allowed with --simulate")
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	addressBridge, err := bridge.New(cfg.SS58Prefix)
	if err != nil {
		return nil, err
	}
	existentialDeposit, err := cfg.ExistentialDeposit()
	if err != nil {
		return nil, err
	}
	minDisplay, err := cfg.MinDisplay()
	if err != nil {
		return nil, err
	}
	confirmByOperation, err := confirmOverrides(cfg.Confirm.Overrides)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, bridge: addressBridge, logger: logger}
	contractAddress := common.HexToAddress(cfg.Market.ContractAddress)

	var (
		asset      outbound.AssetChain
		settlement outbound.SettlementChain
		contract   outbound.MarketContract
		nft        outbound.NFTReader
	)
	if ctx.Bool(simulateFlag.Name) {
		ledger, err := memory.NewLedger(memory.LedgerConfig{
			Bridge:             addressBridge,
			ContractAddress:    contractAddress,
			EscrowAddress:      cfg.Market.EscrowAddress,
			ExistentialDeposit: existentialDeposit,
			GasPrice:           big.NewInt(1_000_000_000),
		})
		if err != nil {
			return nil, err
		}
		rt.ledger = ledger
		asset, settlement, contract, nft = ledger, ledger, ledger, ledger
	} else {
		assetClient, settlementClient, reader, err := rt.dialChains(ctx.Context, existentialDeposit)
		if err != nil {
			rt.close(ctx.Context)
			return nil, err
		}
		asset, settlement, contract, nft = assetClient, settlementClient, reader, assetClient
	}

	metrics, err := rt.initTelemetry(ctx.Context)
	if err != nil {
		rt.close(ctx.Context)
		return nil, err
	}

	rt.market, err = market.NewService(market.Config{
		ContractAddress:    contractAddress,
		EscrowAddress:      cfg.Market.EscrowAddress,
		CurrencyCode:       common.HexToAddress(cfg.Market.CurrencyCode),
		GasLimit:           cfg.Market.GasLimit,
		Decimals:           cfg.Settlement.Decimals,
		MinDisplay:         minDisplay,
		Symbol:             cfg.Settlement.Symbol,
		Confirm:            confirm.Config{MaxAttempts: cfg.Confirm.MaxAttempts, Delay: cfg.Confirm.Delay},
		ConfirmByOperation: confirmByOperation,
		Metrics:            metrics,
		Logger:             logger,
	}, addressBridge, asset, settlement, contract, nft)
	if err != nil {
		rt.close(ctx.Context)
		return nil, err
	}

	if err := rt.initSink(ctx.Context, ctx.Bool(simulateFlag.Name)); err != nil {
		rt.close(ctx.Context)
		return nil, err
	}

	if ctx.Bool(yesFlag.Name) {
		rt.signer = &autoSigner{out: ctx.App.Writer}
	} else {
		prompt, err := signer.NewPrompt(signer.Config{In: ctx.App.Reader, Out: ctx.App.Writer, Logger: logger})
		if err != nil {
			rt.close(ctx.Context)
			return nil, err
		}
		rt.signer = prompt
		rt.closers = append(rt.closers, func(context.Context) error { return prompt.Close() })
	}

	return rt, nil
}

func (rt *runtime) dialChains(ctx context.Context, existentialDeposit *big.Int) (*substrate.Client, *substrate.Client, *evm.Contract, error) {
	cfg := rt.cfg
	if cfg.Asset.RPCURL == "" || cfg.Asset.EVMRPCURL == "" || cfg.Settlement.RPCURL == "" {
		return nil, nil, nil, errors.New("asset.rpc_url, asset.evm_rpc_url and settlement.rpc_url are required outside simulation")
	}
	limit := rate.Limit(cfg.RPC.RateLimit)

	assetRPC, err := rpc.DialContext(ctx, cfg.Asset.RPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial asset chain: %w", err)
	}
	rt.closers = append(rt.closers, closeRPC(assetRPC))

	settlementRPC, err := rpc.DialContext(ctx, cfg.Settlement.RPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial settlement chain: %w", err)
	}
	rt.closers = append(rt.closers, closeRPC(settlementRPC))

	evmClient, err := ethclient.DialContext(ctx, cfg.Asset.EVMRPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial evm endpoint: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error {
		evmClient.Close()
		return nil
	})

	asset, err := substrate.NewClient(substrate.Config{
		Bridge:    rt.bridge,
		RateLimit: limit,
		RateBurst: cfg.RPC.RateBurst,
		Logger:    rt.logger.With("chain", "asset"),
	}, assetRPC)
	if err != nil {
		return nil, nil, nil, err
	}
	settlement, err := substrate.NewClient(substrate.Config{
		Bridge:             rt.bridge,
		ExistentialDeposit: existentialDeposit,
		RateLimit:          limit,
		RateBurst:          cfg.RPC.RateBurst,
		Logger:             rt.logger.With("chain", "settlement"),
	}, settlementRPC)
	if err != nil {
		return nil, nil, nil, err
	}
	contract, err := evm.NewContract(evm.Config{
		ContractAddress: common.HexToAddress(cfg.Market.ContractAddress),
		RateLimit:       limit,
		RateBurst:       cfg.RPC.RateBurst,
		Logger:          rt.logger,
	}, evmClient)
	if err != nil {
		return nil, nil, nil, err
	}
	return asset, settlement, contract, nil
}

func closeRPC(client *rpc.Client) func(context.Context) error {
	return func(context.Context) error {
		client.Close()
		return nil
	}
}

func (rt *runtime) initTelemetry(ctx context.Context) (*telemetry.Metrics, error) {
	shutdown, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:  rt.cfg.Telemetry.ServiceName,
		Environment:  rt.cfg.Telemetry.Environment,
		OTLPEndpoint: rt.cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	shutdown, err = telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:  rt.cfg.Telemetry.ServiceName,
		Environment:  rt.cfg.Telemetry.Environment,
		OTLPEndpoint: rt.cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	return telemetry.NewMetrics(nil)
}

func (rt *runtime) initSink(ctx context.Context, simulate bool) error {
	if simulate {
		rt.sink = memory.NewEventSink()
		return nil
	}
	if rt.cfg.Events.SNSTopicARN == "" {
		return nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if rt.cfg.Events.Region != "" {
		opts = append(opts, awsconfig.WithRegion(rt.cfg.Events.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	sink, err := snssink.NewEventSink(awssns.NewFromConfig(awsCfg), snssink.Config{
		TopicARN: rt.cfg.Events.SNSTopicARN,
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}
	rt.sink = sink
	return nil
}

// close releases every resource in reverse order of acquisition.
func (rt *runtime) close(ctx context.Context) {
	if rt.sink != nil {
		if err := rt.sink.Close(); err != nil {
			rt.logger.Warn("closing event sink", "error", err)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("shutdown", "error", err)
		}
	}
	rt.closers = nil
}

// confirmOverrides maps configured operation names to polling budgets.
func confirmOverrides(overrides map[string]config.ConfirmLimit) (map[market.Operation]confirm.Config, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	known := make(map[market.Operation]bool)
	for _, op := range market.Operations() {
		known[op] = true
	}
	out := make(map[market.Operation]confirm.Config, len(overrides))
	for name, limit := range overrides {
		op := market.Operation(name)
		if !known[op] {
			return nil, fmt.Errorf("confirm.overrides: unknown operation %q", name)
		}
		out[op] = confirm.Config{MaxAttempts: limit.MaxAttempts, Delay: limit.Delay}
	}
	return out, nil
}
