// Package inbound contains the primary/inbound ports.
// These interfaces define the use cases that the application exposes.
package inbound

import (
	"context"
	"math/big"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// MarketOperations is the trade-action library a stage pipeline drives.
// account is always a primary (SS58) address; every operation that submits
// takes the caller's TxOptions and re-checks its precondition first, so
// calling it again after a partial failure is safe.
type MarketOperations interface {
	CheckWhiteListed(ctx context.Context, account string) (bool, error)
	AddToWhiteList(ctx context.Context, account string, opts outbound.TxOptions) error
	LockNFTForSale(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	SendNFTToSmartContract(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	SetForFixPriceSale(ctx context.Context, account string, ref entity.TokenRef, price *big.Int, opts outbound.TxOptions) error
	AddDeposit(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	BuyToken(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	CancelSell(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	UnlockNFT(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) error
	TransferToken(ctx context.Context, from, to string, ref entity.TokenRef, opts outbound.TxOptions) error
}
