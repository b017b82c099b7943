package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// AddDeposit tops the account's escrow deposit up to the ask price of ref.
// It fails with an *entity.InsufficientBalanceError, carrying the shortfall,
// when the settlement balance cannot cover it.
func (s *Service) AddDeposit(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpAddDeposit, "account", account, "token", ref.String())
	defer r.end(ctx, &err)

	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return err
	}
	deposit, err := s.contract.DepositOf(ctx, shim)
	if err != nil {
		return err
	}
	order, _, err := s.order(ctx, ref)
	if err != nil {
		return err
	}
	if !order.Active || order.Price == nil || order.Price.Sign() == 0 {
		return fmt.Errorf("token %s: %w", ref, entity.ErrNoActiveOrder)
	}
	price := order.Price
	if price.Cmp(deposit) <= 0 {
		return nil
	}

	needed := new(big.Int).Sub(price, deposit)
	available, err := s.settlement.AvailableBalance(ctx, account)
	if err != nil {
		return err
	}
	if available.Cmp(needed) < 0 {
		return &entity.InsufficientBalanceError{
			Required:      needed,
			Available:     available,
			RequiredText:  s.FormatAmount(needed),
			AvailableText: s.FormatAmount(available),
			Symbol:        s.config.Symbol,
		}
	}

	tx := entity.UnsignedTx{
		Chain:  entity.ChainSettlement,
		Origin: account,
		Call:   entity.BalancesTransfer(s.config.EscrowAddress, needed),
	}
	return r.execute(ctx, tx, opts, func(ctx context.Context) (bool, error) {
		deposit, err := s.contract.DepositOf(ctx, shim)
		if err != nil {
			return false, err
		}
		return price.Cmp(deposit) <= 0, nil
	})
}

// BuyToken settles the active ask of ref from the account's deposit. The
// token is delivered to the buyer's shim address.
func (s *Service) BuyToken(ctx context.Context, account string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpBuyToken, "account", account, "token", ref.String())
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
	if s.bridge.IsOwnedBy(owner, account) {
		return nil
	}

	order, collection, err := s.order(ctx, ref)
	if err != nil {
		return err
	}
	if !order.Active {
		return fmt.Errorf("token %s: %w", ref, entity.ErrNoActiveOrder)
	}

	input, err := s.marketABI.Pack("buyKSM", collection, tokenID(ref), shim, shim)
	if err != nil {
		return fmt.Errorf("encoding buyKSM: %w", err)
	}
	tx, err := s.evmTx(ctx, account, shim, s.config.ContractAddress, input)
	if err != nil {
		return err
	}
	return r.execute(ctx, tx, opts, func(ctx context.Context) (bool, error) {
		owner, err := s.owner(ctx, ref)
		if err != nil {
			return false, err
		}
		return owner.IsEthereum() && owner.Ethereum() == shim, nil
	})
}
