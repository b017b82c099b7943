package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// simulatedSeller owns the listings that simulated buys purchase.
var simulatedSeller = common.HexToAddress("0x00000000000000000000000000000000000dead1")

// autoSigner approves every request. It produces no real signatures, which
// the in-memory ledger does not check.
type autoSigner struct {
	out io.Writer
}

var _ outbound.Signer = (*autoSigner)(nil)

func (s *autoSigner) Sign(ctx context.Context, tx entity.UnsignedTx) (*entity.SignedTx, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %w", err)
	}
	fmt.Fprintf(s.out, "signed %s.%s on %s chain\n", tx.Call.Pallet, tx.Call.Method, tx.Chain)
	return &entity.SignedTx{Tx: tx, Raw: raw}, nil
}

func (s *autoSigner) SignMessage(ctx context.Context, account string, message []byte) ([]byte, error) {
	sum := blake2b.Sum256(append([]byte(account), message...))
	return sum[:], nil
}

// seedBalance funds account with --sim-balance in simulation.
func (rt *runtime) seedBalance(ctx *cli.Context, account string) error {
	if rt.ledger == nil {
		return nil
	}
	balance, err := rt.market.ParseAmount(ctx.String(simBalanceFlag.Name))
	if err != nil {
		return fmt.Errorf("sim-balance: %w", err)
	}
	rt.ledger.SetBalance(account, balance)
	return nil
}

// seedToken mints ref to owner in simulation.
func (rt *runtime) seedToken(ref entity.TokenRef, owner entity.CrossAccountID) {
	if rt.ledger == nil {
		return
	}
	rt.ledger.SetToken(ref, owner)
}

// seedListing puts ref on sale by seller at --sim-price in simulation, with
// the token held by the market contract as after a real listing.
func (rt *runtime) seedListing(ctx *cli.Context, ref entity.TokenRef, seller common.Address) error {
	if rt.ledger == nil {
		return nil
	}
	price, err := rt.market.ParseAmount(ctx.String(simPriceFlag.Name))
	if err != nil {
		return fmt.Errorf("sim-price: %w", err)
	}
	contract := common.HexToAddress(rt.cfg.Market.ContractAddress)
	rt.ledger.SetToken(ref, entity.EthereumAccount(contract))
	return rt.ledger.SetOrder(ref, entity.Order{Owner: seller, Price: price, Active: true})
}
