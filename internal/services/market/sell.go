package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// LockNFTForSale moves the token from the account to the account's own shim
// address so that the market contract can later take custody of it.
func (s *Service) LockNFTForSale(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpLockNFTForSale, "account", account, "token", ref.String())
	defer r.end(ctx, &err)

	if err := s.requireNFT(); err != nil {
		return err
	}
	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}

	onShim := func(ctx context.Context) (bool, error) {
		owner, err := s.owner(ctx, ref)
		if err != nil {
			return false, err
		}
		return owner.IsEthereum() && owner.Ethereum() == shim, nil
	}

	locked, err := onShim(ctx)
	if err != nil {
		return err
	}
	if locked {
		return nil
	}

	tx := entity.UnsignedTx{
		Chain:  entity.ChainAsset,
		Origin: account,
		Call:   entity.UniqueTransfer(entity.EthereumAccount(shim), ref, nonFungiblePieces),
	}
	return r.execute(ctx, tx, opts, onShim)
}

// SendNFTToSmartContract approves the market contract to move the token.
func (s *Service) SendNFTToSmartContract(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpSendNFTToMarket, "account", account, "token", ref.String())
	defer r.end(ctx, &err)

	if err := s.requireNFT(); err != nil {
		return err
	}
	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}
	owner, err := s.owner(ctx, ref)
	if err != nil {
		return err
	}
	owner, err = s.bridge.NormalizeCrossAccountID(owner)
	if err != nil {
		return err
	}
	spender := entity.EthereumAccount(s.config.ContractAddress)

	approved := func(ctx context.Context) (bool, error) {
		allowance, err := s.asset.Allowance(ctx, ref, owner, spender)
		if err != nil {
			return false, err
		}
		return allowance != nil && allowance.Cmp(big.NewInt(nonFungiblePieces)) == 0, nil
	}

	ok, err := approved(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	collection, err := bridge.CollectionAddress(int64(ref.CollectionID))
	if err != nil {
		return err
	}
	input, err := s.nonFungible.Pack("approve", s.config.ContractAddress, tokenID(ref))
	if err != nil {
		return fmt.Errorf("encoding approve: %w", err)
	}
	tx, err := s.evmTx(ctx, account, shim, collection, input)
	if err != nil {
		return err
	}
	return r.execute(ctx, tx, opts, approved)
}

// SetForFixPriceSale places an ask at price, in smallest settlement units.
func (s *Service) SetForFixPriceSale(ctx context.Context, account string, ref entity.TokenRef, price *big.Int, opts outbound.TxOptions) (err error) {
	r := s.begin(OpSetForSale, "account", account, "token", ref.String(), "price", price.String())
	defer r.end(ctx, &err)

	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("price %v: %w", price, entity.ErrOutOfRange)
	}
	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}
	order, collection, err := s.order(ctx, ref)
	if err != nil {
		return err
	}
	if order.Active && order.Owner == shim && order.Price != nil && order.Price.Cmp(price) == 0 {
		return nil
	}

	input, err := s.marketABI.Pack("addAsk", price, s.config.CurrencyCode, collection, tokenID(ref))
	if err != nil {
		return fmt.Errorf("encoding addAsk: %w", err)
	}
	tx, err := s.evmTx(ctx, account, shim, s.config.ContractAddress, input)
	if err != nil {
		return err
	}
	return r.execute(ctx, tx, opts, func(ctx context.Context) (bool, error) {
		order, _, err := s.order(ctx, ref)
		if err != nil {
			return false, err
		}
		return order.Active && order.Owner == shim && order.Price != nil && order.Price.Cmp(price) == 0, nil
	})
}
