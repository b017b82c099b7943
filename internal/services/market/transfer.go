package market

import (
	"context"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// TransferToken gives the token to another primary account.
//
// When from still holds the token on its primary address a plain transfer is
// used. When the token sits on from's shim address the transfer is sourced
// from the shim instead. If to already owns the token in either
// representation nothing is submitted.
func (s *Service) TransferToken(ctx context.Context, from, to string, ref entity.TokenRef, opts outbound.TxOptions) (err error) {
	r := s.begin(OpTransferToken, "from", from, "to", to, "token", ref.String())
	defer r.end(ctx, &err)

	if err := s.requireNFT(); err != nil {
		return err
	}
	fromShim, err := s.bridge.DeriveShimAddress(from)
	if err != nil {
		return err
	}
	recipient, err := s.bridge.NormalizeCrossAccountID(entity.SubstrateAccount(to))
	if err != nil {
		return err
	}

	owner, err := s.owner(ctx, ref)
	if err != nil {
		return err
	}
	if s.bridge.IsOwnedBy(owner, to) {
		return nil
	}

	call := entity.UniqueTransfer(recipient, ref, nonFungiblePieces)
	if owner.IsEthereum() && owner.Ethereum() == fromShim {
		call = entity.UniqueTransferFrom(entity.EthereumAccount(fromShim), recipient, ref, nonFungiblePieces)
	}

	tx := entity.UnsignedTx{Chain: entity.ChainAsset, Origin: from, Call: call}
	return r.execute(ctx, tx, opts, func(ctx context.Context) (bool, error) {
		owner, err := s.owner(ctx, ref)
		if err != nil {
			return false, err
		}
		return s.bridge.IsOwnedBy(owner, to), nil
	})
}
