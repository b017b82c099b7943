// Package market implements the trade-action library: whitelisting, listing,
// depositing, buying, delisting and transferring NFTs across the asset and
// settlement chains.
//
// Every operation follows the same shape: re-check its precondition, build an
// unsigned transaction, hand it to the caller's signer, submit, then poll the
// chain until the expected state is visible. A precondition that already holds
// makes the operation a successful no-op, so a failed flow can always be
// restarted from its first step.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/amount"
	"github.com/archon-research/stl-market/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/pkg/confirm"
	"github.com/archon-research/stl-market/internal/ports/inbound"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Operation names a market operation. The names double as metric labels.
type Operation string

const (
	OpAddToWhiteList  Operation = "add_to_whitelist"
	OpLockNFTForSale  Operation = "lock_nft_for_sale"
	OpSendNFTToMarket Operation = "send_nft_to_contract"
	OpSetForSale      Operation = "set_for_fix_price_sale"
	OpAddDeposit      Operation = "add_deposit"
	OpBuyToken        Operation = "buy_token"
	OpCancelSell      Operation = "cancel_sell"
	OpUnlockNFT       Operation = "unlock_nft"
	OpTransferToken   Operation = "transfer_token"
)

// Operations lists every operation name.
func Operations() []Operation {
	return []Operation{
		OpAddToWhiteList, OpLockNFTForSale, OpSendNFTToMarket, OpSetForSale, OpAddDeposit,
		OpBuyToken, OpCancelSell, OpUnlockNFT, OpTransferToken,
	}
}

const (
	statusNoop      = "noop"
	statusSubmitted = "submitted"
	statusError     = "error"
)

// nonFungiblePieces is the transfer amount for a whole non-fungible token.
const nonFungiblePieces = 1

// DefaultCurrencyCode is the market contract's marker for the settlement
// chain's native currency.
var DefaultCurrencyCode = common.HexToAddress("0x0000000000000000000000000000000000000001")

// Config holds configuration for the market service.
type Config struct {
	// ContractAddress is the market contract behind the execution shim.
	ContractAddress common.Address

	// EscrowAddress is the settlement-chain account that funds deposits.
	EscrowAddress string

	// CurrencyCode is passed to addAsk as the ask currency.
	CurrencyCode common.Address

	// GasLimit is attached to every execution-shim call.
	GasLimit uint64

	// Decimals of the settlement currency.
	Decimals int32

	// MinDisplay is the smallest amount shown in messages for a positive value.
	MinDisplay decimal.Decimal

	// Symbol of the settlement currency, used in messages.
	Symbol string

	// Confirm is the default polling budget.
	Confirm confirm.Config

	// ConfirmByOperation overrides Confirm for individual operations.
	ConfirmByOperation map[Operation]confirm.Config

	// Metrics is optional.
	Metrics outbound.MetricsRecorder

	// Logger is the structured logger.
	Logger *slog.Logger
}

// ConfigDefaults returns the default configuration. Contract and escrow
// addresses have no default.
func ConfigDefaults() Config {
	return Config{
		CurrencyCode: DefaultCurrencyCode,
		GasLimit:     2_500_000,
		Decimals:     12,
		MinDisplay:   amount.DefaultMinDisplay,
		Symbol:       "KSM",
		Confirm:      confirm.ConfigDefaults(),
		Logger:       slog.Default(),
	}
}

// Service implements inbound.MarketOperations.
type Service struct {
	config      Config
	bridge      *bridge.Bridge
	asset       outbound.AssetChain
	settlement  outbound.SettlementChain
	contract    outbound.MarketContract
	nft         outbound.NFTReader
	marketABI   *abi.ABI
	nonFungible *abi.ABI
	logger      *slog.Logger
}

var _ inbound.MarketOperations = (*Service)(nil)

// NewService creates a market service. nft may be nil; operations that need
// to read a token then fail with entity.ErrDependencyMissing.
func NewService(
	config Config,
	addressBridge *bridge.Bridge,
	asset outbound.AssetChain,
	settlement outbound.SettlementChain,
	contract outbound.MarketContract,
	nft outbound.NFTReader,
) (*Service, error) {
	if addressBridge == nil {
		return nil, fmt.Errorf("address bridge is required")
	}
	if asset == nil {
		return nil, fmt.Errorf("asset chain is required")
	}
	if settlement == nil {
		return nil, fmt.Errorf("settlement chain is required")
	}
	if contract == nil {
		return nil, fmt.Errorf("market contract is required")
	}
	if config.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	if config.EscrowAddress == "" {
		return nil, fmt.Errorf("escrow address is required")
	}

	defaults := ConfigDefaults()
	if config.CurrencyCode == (common.Address{}) {
		config.CurrencyCode = defaults.CurrencyCode
	}
	if config.GasLimit == 0 {
		config.GasLimit = defaults.GasLimit
	}
	if config.Decimals == 0 {
		config.Decimals = defaults.Decimals
	}
	if config.MinDisplay.IsZero() {
		config.MinDisplay = defaults.MinDisplay
	}
	if config.Symbol == "" {
		config.Symbol = defaults.Symbol
	}
	if config.Confirm.MaxAttempts == 0 {
		config.Confirm = defaults.Confirm
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	marketABI, err := abis.GetMarketplaceABI()
	if err != nil {
		return nil, fmt.Errorf("loading marketplace ABI: %w", err)
	}
	nonFungible, err := abis.GetNonFungibleABI()
	if err != nil {
		return nil, fmt.Errorf("loading non-fungible ABI: %w", err)
	}

	return &Service{
		config:      config,
		bridge:      addressBridge,
		asset:       asset,
		settlement:  settlement,
		contract:    contract,
		nft:         nft,
		marketABI:   marketABI,
		nonFungible: nonFungible,
		logger:      config.Logger.With("component", "market"),
	}, nil
}

// FormatAmount renders a smallest-unit settlement amount for display.
func (s *Service) FormatAmount(v *big.Int) string {
	return amount.Format(v, s.config.Decimals, s.config.MinDisplay)
}

// ParseAmount converts a decimal settlement amount into smallest units.
func (s *Service) ParseAmount(text string) (*big.Int, error) {
	return amount.Parse(text, s.config.Decimals)
}

// ShimAddress returns the execution-shim address of a primary account.
func (s *Service) ShimAddress(account string) (common.Address, error) {
	return s.bridge.DeriveShimAddress(account)
}

// run tracks one operation call for logging and metrics.
type run struct {
	s         *Service
	op        Operation
	start     time.Time
	submitted bool
	logger    *slog.Logger
}

func (s *Service) begin(op Operation, attrs ...any) *run {
	return &run{
		s:      s,
		op:     op,
		start:  time.Now(),
		logger: s.logger.With(append([]any{"operation", string(op)}, attrs...)...),
	}
}

// end must be deferred with a pointer to the operation's named error result.
func (r *run) end(ctx context.Context, errp *error) {
	status := statusNoop
	switch {
	case *errp != nil:
		status = statusError
		r.logger.Warn("operation failed", "error", *errp, "duration", time.Since(r.start))
	case r.submitted:
		status = statusSubmitted
		r.logger.Info("operation confirmed", "duration", time.Since(r.start))
	default:
		r.logger.Debug("precondition already satisfied")
	}
	if r.s.config.Metrics != nil {
		r.s.config.Metrics.RecordOperation(ctx, string(r.op), status, time.Since(r.start))
	}
}

// execute signs and submits tx, then waits until confirmed reports true.
// A timeout never triggers a resubmission.
func (r *run) execute(ctx context.Context, tx entity.UnsignedTx, opts outbound.TxOptions, confirmed confirm.Predicate) error {
	if opts.Signer == nil {
		return fmt.Errorf("%w: transaction options carry no signer", entity.ErrDependencyMissing)
	}
	signed, err := opts.Signer.Sign(ctx, tx)
	if err != nil {
		return err
	}
	if signed == nil {
		return fmt.Errorf("%s: %w", r.op, entity.ErrSigningCancelled)
	}

	receipt, err := r.s.submitter(tx.Chain, opts).Submit(ctx, signed)
	if err != nil {
		return err
	}
	r.submitted = true
	r.logger.Info("transaction submitted", "chain", tx.Chain, "hash", receipt.Hash)

	cfg := r.s.confirmConfig(r.op)
	cfg.OnAttempt = func(n int) {
		r.logger.Debug("awaiting confirmation", "attempt", n)
	}
	evaluations := 0
	err = confirm.Until(ctx, cfg, func(ctx context.Context) (bool, error) {
		evaluations++
		return confirmed(ctx)
	})
	if r.s.config.Metrics != nil {
		r.s.config.Metrics.RecordConfirmationAttempts(ctx, string(r.op), evaluations)
	}
	return err
}

func (s *Service) submitter(chain entity.Chain, opts outbound.TxOptions) outbound.Submitter {
	if opts.Sender != nil {
		return opts.Sender
	}
	if chain == entity.ChainSettlement {
		return s.settlement
	}
	return s.asset
}

func (s *Service) confirmConfig(op Operation) confirm.Config {
	if cfg, ok := s.config.ConfirmByOperation[op]; ok {
		return cfg
	}
	return s.config.Confirm
}

// evmTx wraps an ABI-encoded contract call into an asset-chain evm.call from
// the caller's shim address.
func (s *Service) evmTx(ctx context.Context, account string, source, target common.Address, input []byte) (entity.UnsignedTx, error) {
	gasPrice, err := s.contract.GasPrice(ctx)
	if err != nil {
		return entity.UnsignedTx{}, err
	}
	return entity.UnsignedTx{
		Chain:  entity.ChainAsset,
		Origin: account,
		Call:   entity.EVMCall(source, target, input, s.config.GasLimit, gasPrice),
	}, nil
}

func (s *Service) requireNFT() error {
	if s.nft == nil {
		return fmt.Errorf("%w: nft reader is not configured", entity.ErrDependencyMissing)
	}
	return nil
}

// owner reads the current owner of ref.
func (s *Service) owner(ctx context.Context, ref entity.TokenRef) (entity.CrossAccountID, error) {
	token, err := s.nft.GetToken(ctx, ref)
	if err != nil {
		return entity.CrossAccountID{}, err
	}
	if token == nil {
		return entity.CrossAccountID{}, fmt.Errorf("token %s: %w", ref, entity.ErrTokenNotFound)
	}
	return token.Owner, nil
}

func (s *Service) order(ctx context.Context, ref entity.TokenRef) (entity.Order, common.Address, error) {
	collection, err := bridge.CollectionAddress(int64(ref.CollectionID))
	if err != nil {
		return entity.Order{}, common.Address{}, err
	}
	order, err := s.contract.GetOrder(ctx, collection, ref.TokenID)
	if err != nil {
		return entity.Order{}, common.Address{}, err
	}
	return order, collection, nil
}

func tokenID(ref entity.TokenRef) *big.Int {
	return new(big.Int).SetUint64(uint64(ref.TokenID))
}
