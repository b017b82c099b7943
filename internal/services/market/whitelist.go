package market

import (
	"context"
	"fmt"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// CheckWhiteListed reports whether the account's shim address is on the
// market contract's allow-list. It never submits anything.
func (s *Service) CheckWhiteListed(ctx context.Context, account string) (bool, error) {
	shim, err := s.bridge.DeriveShimAddress(account)
	if err != nil {
		return false, err
	}
	return s.contract.IsAllowListed(ctx, shim)
}

// AddToWhiteList pays the existential deposit into escrow on the settlement
// chain; the escrow operator then allow-lists the payer's shim address.
func (s *Service) AddToWhiteList(ctx context.Context, account string, opts outbound.TxOptions) (err error) {
	r := s.begin(OpAddToWhiteList, "account", account)
	defer r.end(ctx, &err)

	listed, err := s.CheckWhiteListed(ctx, account)
	if err != nil {
		return err
	}
	if listed {
		return nil
	}

	minDeposit, err := s.settlement.ExistentialDeposit(ctx)
	if err != nil {
		return err
	}
	if minDeposit == nil || minDeposit.Sign() <= 0 {
		return fmt.Errorf("existential deposit %v: %w", minDeposit, entity.ErrOutOfRange)
	}
	tx := entity.UnsignedTx{
		Chain:  entity.ChainSettlement,
		Origin: account,
		Call:   entity.BalancesTransfer(s.config.EscrowAddress, minDeposit),
	}
	return r.execute(ctx, tx, opts, func(ctx context.Context) (bool, error) {
		return s.CheckWhiteListed(ctx, account)
	})
}
