package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/domain/entity"
)

// NFTReader looks tokens up on the asset chain. GetToken returns
// (nil, nil) when the token does not exist.
type NFTReader interface {
	GetToken(ctx context.Context, ref entity.TokenRef) (*entity.Token, error)
}

// AssetChain is the ledger of record for NFT ownership.
type AssetChain interface {
	Submitter

	// Allowance returns how many pieces of ref owner has approved spender to move.
	// For non-fungible tokens this is 0 or 1.
	Allowance(ctx context.Context, ref entity.TokenRef, owner, spender entity.CrossAccountID) (*big.Int, error)
}

// SettlementChain holds the escrow balances that fund trades.
type SettlementChain interface {
	Submitter

	// ExistentialDeposit is the minimum balance an account must keep alive.
	ExistentialDeposit(ctx context.Context) (*big.Int, error)

	// AvailableBalance is the transferable balance of a primary address.
	AvailableBalance(ctx context.Context, account string) (*big.Int, error)
}

// MarketContract reads the market contract state behind the execution shim.
type MarketContract interface {
	// GetOrder returns the ask for (collection, tokenID). A missing ask is
	// returned as an inactive order with a zero price.
	GetOrder(ctx context.Context, collection common.Address, tokenID uint32) (entity.Order, error)

	// DepositOf returns the escrowed balance credited to a shim address.
	DepositOf(ctx context.Context, account common.Address) (*big.Int, error)

	// IsAllowListed reports whether account may call the market contract.
	IsAllowListed(ctx context.Context, account common.Address) (bool, error)

	// GasPrice is the fee cap attached to execution-shim calls.
	GasPrice(ctx context.Context) (*big.Int, error)
}
