package stages

import (
	"context"
	"math/big"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/ports/inbound"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Flow names used in logs and stage events.
const (
	FlowWhiteList  = "whitelist"
	FlowSell       = "sell"
	FlowBuy        = "buy"
	FlowCancelSell = "cancel_sell"
	FlowTransfer   = "transfer"
)

// Session is the account a flow acts for and the options its transactions
// are signed and submitted with.
type Session struct {
	Account string
	Options outbound.TxOptions
}

// WhiteListStages registers the account with the market contract.
func WhiteListStages(ops inbound.MarketOperations, session Session) []Stage {
	return []Stage{whiteListStage(ops, session)}
}

// SellStages lists ref for a fixed price.
func SellStages(ops inbound.MarketOperations, session Session, ref entity.TokenRef, price *big.Int) []Stage {
	return []Stage{
		whiteListStage(ops, session),
		{
			Title:       "Prepare NFT for sale",
			Description: "Move the NFT to your execution address",
			Action: func(ctx context.Context) error {
				return ops.LockNFTForSale(ctx, session.Account, ref, session.Options)
			},
		},
		{
			Title:       "Approve market contract",
			Description: "Allow the market contract to take the NFT",
			Action: func(ctx context.Context) error {
				return ops.SendNFTToSmartContract(ctx, session.Account, ref, session.Options)
			},
		},
		{
			Title:       "Put on sale",
			Description: "Create the fixed-price ask",
			Action: func(ctx context.Context) error {
				return ops.SetForFixPriceSale(ctx, session.Account, ref, price, session.Options)
			},
		},
	}
}

// BuyStages buys ref at its listed price and returns it to the buyer's
// primary account.
func BuyStages(ops inbound.MarketOperations, session Session, ref entity.TokenRef) []Stage {
	return []Stage{
		whiteListStage(ops, session),
		{
			Title:       "Add deposit",
			Description: "Top up your market deposit to cover the price",
			Action: func(ctx context.Context) error {
				return ops.AddDeposit(ctx, session.Account, ref, session.Options)
			},
		},
		{
			Title:       "Buy NFT",
			Description: "Pay for the NFT from your deposit",
			Action: func(ctx context.Context) error {
				return ops.BuyToken(ctx, session.Account, ref, session.Options)
			},
		},
		unlockStage(ops, session, ref),
	}
}

// CancelSellStages withdraws the ask and returns the NFT to the seller.
func CancelSellStages(ops inbound.MarketOperations, session Session, ref entity.TokenRef) []Stage {
	return []Stage{
		{
			Title:       "Cancel sale",
			Description: "Withdraw the ask from the market contract",
			Action: func(ctx context.Context) error {
				return ops.CancelSell(ctx, session.Account, ref, session.Options)
			},
		},
		unlockStage(ops, session, ref),
	}
}

// TransferStages sends ref to another primary account.
func TransferStages(ops inbound.MarketOperations, session Session, to string, ref entity.TokenRef) []Stage {
	return []Stage{
		{
			Title:       "Transfer NFT",
			Description: "Send the NFT to " + to,
			Action: func(ctx context.Context) error {
				return ops.TransferToken(ctx, session.Account, to, ref, session.Options)
			},
		},
	}
}

func whiteListStage(ops inbound.MarketOperations, session Session) Stage {
	return Stage{
		Title:       "Register sponsorship",
		Description: "Add your account to the market allow list",
		Action: func(ctx context.Context) error {
			return ops.AddToWhiteList(ctx, session.Account, session.Options)
		},
	}
}

func unlockStage(ops inbound.MarketOperations, session Session, ref entity.TokenRef) Stage {
	return Stage{
		Title:       "Return NFT",
		Description: "Move the NFT back to your account",
		Action: func(ctx context.Context) error {
			return ops.UnlockNFT(ctx, session.Account, ref, session.Options)
		},
	}
}
