package market

import (
	"context"
	"fmt"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// CancelSell withdraws the active ask of ref. The contract returns the token
// to the seller's shim address; UnlockNFT moves it back to the primary
// address.
func (s *Service) CancelSell(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpCancelSell, "account", account, "token", ref.String())
	defer r.end(ctx, &err)

	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}
	order, collection, err := s.order(ctx, ref)
	if err != nil {
		return err
	}
	if !order.Active {
		return nil
	}

	input, err := s.marketABI.Pack("cancelAsk", collection, tokenID(ref))
	if err != nil {
		return fmt.Errorf("encoding cancelAsk: %w", err)
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
		return !order.Active, nil
	})
}

// UnlockNFT moves the token from the account's shim address back to the
// account's primary address.
func (s *Service) UnlockNFT(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpUnlockNFT, "account", account, "token", ref.String())
	defer r.end(ctx, &err)

	if err := s.requireNFT(); err != nil {
		return err
	}
	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}
	primary, err := s.bridge.NormalizeCrossAccountID(entity.SubstrateAccount(account))
	if err != nil {
		return err
	}

	onPrimary := func(ctx context.Context) (bool, error) {
		owner, err := s.owner(ctx, ref)
		if err != nil {
			return false, err
		}
		return owner.IsSubstrate() && s.bridge.SamePrimary(owner.Substrate(), account), nil
	}

	unlocked, err := onPrimary(ctx)
	if err != nil {
		return err
	}
	if unlocked {
		return nil
	}

	tx := entity.UnsignedTx{
		Chain:  entity.ChainAsset,
		Origin: account,
		Call:   entity.UniqueTransferFrom(entity.EthereumAccount(shim), primary, ref, nonFungiblePieces),
	}
	return r.execute(ctx, tx, opts, onPrimary)
}
