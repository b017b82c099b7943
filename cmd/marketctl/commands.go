package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/archon-research/stl-market/internal/config"
	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/amount"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/ports/outbound"
	"github.com/archon-research/stl-market/internal/services/stages"
)

var (
	accountFlag = &cli.StringFlag{
		Name:     "account",
		Usage:    "primary (SS58) address the flow acts for",
		EnvVars:  []string{"MARKETCTL_ACCOUNT"},
		Required: true,
	}
	collectionFlag = &cli.StringFlag{
		Name:     "collection",
		Usage:    "collection id",
		Required: true,
	}
	tokenFlag = &cli.StringFlag{
		Name:     "token",
		Usage:    "token id within the collection",
		Required: true,
	}
	priceFlag = &cli.StringFlag{
		Name:     "price",
		Usage:    "asking price in settlement currency, e.g. 1.5",
		Required: true,
	}
	toFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "recipient primary (SS58) address",
		Required: true,
	}
	messageFlag = &cli.StringFlag{
		Name:     "message",
		Usage:    "text to sign",
		Required: true,
	}
	simPriceFlag = &cli.StringFlag{
		Name:  "sim-price",
		Usage: "price of the simulated listing",
		Value: "1",
	}
)

var commandNetworks = &cli.Command{
	Name:  "networks",
	Usage: "List the networks declared through NET_<KEY>_NAME and NET_<KEY>_API",
	Action: func(ctx *cli.Context) error {
		networks := config.NetworksFromEnv(os.Environ())
		if len(networks) == 0 {
			fmt.Fprintln(ctx.App.Writer, "no networks configured")
			return nil
		}
		for _, n := range networks {
			fmt.Fprintf(ctx.App.Writer, "%s\t%s\t%s\n", n.Key, n.Name, n.APIEndpoint)
		}
		return nil
	},
}

var commandDeriveAddress = &cli.Command{
	Name:      "derive-address",
	Usage:     "Print the execution-shim address of a primary account",
	ArgsUsage: "<ss58 address or 0x public key>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return errors.New("expected exactly one address")
		}
		cfg, err := lenientConfig(ctx)
		if err != nil {
			return err
		}
		b, err := bridge.New(cfg.SS58Prefix)
		if err != nil {
			return err
		}
		key, err := b.PublicKey(ctx.Args().First())
		if err != nil {
			return err
		}
		primary, err := b.PrimaryAddress(key)
		if err != nil {
			return err
		}
		shim, err := b.DeriveShimAddress(primary)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "primary: %s\nshim:    %s\n", primary, shim.Hex())
		return nil
	},
}

var commandCollectionAddress = &cli.Command{
	Name:      "collection-address",
	Usage:     "Print the execution-shim address of a collection",
	ArgsUsage: "<collection id>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return errors.New("expected exactly one collection id")
		}
		id, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
		if err != nil {
			return fmt.Errorf("collection id: %w", err)
		}
		addr, err := bridge.CollectionAddress(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, addr.Hex())
		return nil
	},
}

var commandFormatAmount = &cli.Command{
	Name:      "format-amount",
	Usage:     "Format a settlement amount given in smallest units",
	ArgsUsage: "<amount>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return errors.New("expected exactly one amount")
		}
		cfg, err := lenientConfig(ctx)
		if err != nil {
			return err
		}
		minDisplay, err := cfg.MinDisplay()
		if err != nil {
			return err
		}
		v, ok := new(big.Int).SetString(ctx.Args().First(), 10)
		if !ok {
			return fmt.Errorf("%q is not an integer amount", ctx.Args().First())
		}
		fmt.Fprintf(ctx.App.Writer, "%s %s\n", amount.Format(v, cfg.Settlement.Decimals, minDisplay), cfg.Settlement.Symbol)
		return nil
	},
}

var commandWhiteList = &cli.Command{
	Name:  "whitelist",
	Usage: "Register the account with the market contract",
	Flags: []cli.Flag{accountFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			if err := rt.seedBalance(ctx, account); err != nil {
				return err
			}
			return rt.runFlow(ctx, stages.FlowWhiteList, stages.WhiteListStages(rt.market, rt.session(account)))
		})
	},
}

var commandSell = &cli.Command{
	Name:  "sell",
	Usage: "List an NFT for a fixed price",
	Flags: []cli.Flag{accountFlag, collectionFlag, tokenFlag, priceFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			ref, err := tokenRef(ctx)
			if err != nil {
				return err
			}
			price, err := rt.market.ParseAmount(ctx.String(priceFlag.Name))
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			if err := rt.seedBalance(ctx, account); err != nil {
				return err
			}
			rt.seedToken(ref, entity.SubstrateAccount(account))
			return rt.runFlow(ctx, stages.FlowSell, stages.SellStages(rt.market, rt.session(account), ref, price))
		})
	},
}

var commandBuy = &cli.Command{
	Name:  "buy",
	Usage: "Buy a listed NFT",
	Flags: []cli.Flag{accountFlag, collectionFlag, tokenFlag, simPriceFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			ref, err := tokenRef(ctx)
			if err != nil {
				return err
			}
			if err := rt.seedBalance(ctx, account); err != nil {
				return err
			}
			if err := rt.seedListing(ctx, ref, simulatedSeller); err != nil {
				return err
			}
			return rt.runFlow(ctx, stages.FlowBuy, stages.BuyStages(rt.market, rt.session(account), ref))
		})
	},
}

var commandCancel = &cli.Command{
	Name:  "cancel",
	Usage: "Withdraw an NFT from sale and return it",
	Flags: []cli.Flag{accountFlag, collectionFlag, tokenFlag, simPriceFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			ref, err := tokenRef(ctx)
			if err != nil {
				return err
			}
			if rt.ledger != nil {
				seller, err := rt.market.ShimAddress(account)
				if err != nil {
					return err
				}
				if err := rt.seedListing(ctx, ref, seller); err != nil {
					return err
				}
			}
			return rt.runFlow(ctx, stages.FlowCancelSell, stages.CancelSellStages(rt.market, rt.session(account), ref))
		})
	},
}

var commandTransfer = &cli.Command{
	Name:  "transfer",
	Usage: "Transfer an NFT to another account",
	Flags: []cli.Flag{accountFlag, toFlag, collectionFlag, tokenFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			ref, err := tokenRef(ctx)
			if err != nil {
				return err
			}
			rt.seedToken(ref, entity.SubstrateAccount(account))
			stageList := stages.TransferStages(rt.market, rt.session(account), ctx.String(toFlag.Name), ref)
			return rt.runFlow(ctx, stages.FlowTransfer, stageList)
		})
	},
}

var commandSignMessage = &cli.Command{
	Name:  "sign-message",
	Usage: "Sign a text message with the account",
	Flags: []cli.Flag{accountFlag, messageFlag},
	Action: func(ctx *cli.Context) error {
		return withRuntime(ctx, func(rt *runtime, account string) error {
			signature, err := rt.signer.SignMessage(ctx.Context, account, []byte(ctx.String(messageFlag.Name)))
			if err != nil {
				return err
			}
			if signature == nil {
				return entity.ErrSigningCancelled
			}
			fmt.Fprintf(ctx.App.Writer, "signature: %s\n", hexutil.Encode(signature))
			return nil
		})
	},
}

// lenientConfig loads --config when given, without requiring a deployment.
func lenientConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String(configFlag.Name)
	if path == "" {
		return config.Defaults(), nil
	}
	return config.LoadWithDefaults(path)
}

func withRuntime(ctx *cli.Context, fn func(rt *runtime, account string) error) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx.Context))

	account := ctx.String(accountFlag.Name)
	if _, err := rt.bridge.PublicKey(account); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	return fn(rt, account)
}

func tokenRef(ctx *cli.Context) (entity.TokenRef, error) {
	return entity.ParseTokenRef(ctx.String(collectionFlag.Name), ctx.String(tokenFlag.Name))
}

func (rt *runtime) session(account string) stages.Session {
	return stages.Session{
		Account: account,
		Options: outbound.TxOptions{Signer: rt.signer},
	}
}

// runFlow executes a stage pipeline and prints every stage transition.
func (rt *runtime) runFlow(ctx *cli.Context, name string, stageList []stages.Stage) error {
	out := ctx.App.Writer
	total := len(stageList)
	pipeline, err := stages.New(stages.Config{
		Name:   name,
		Sink:   rt.sink,
		Logger: rt.logger,
		OnChange: func(event outbound.StageEvent) {
			if event.Index < 0 {
				return
			}
			if event.Status == string(stages.StatusError) {
				fmt.Fprintf(out, "[%d/%d] %s: error: %s\n", event.Index+1, total, event.Title, event.Error)
				return
			}
			fmt.Fprintf(out, "[%d/%d] %s: %s\n", event.Index+1, total, event.Title, event.Status)
		},
	}, stageList)
	if err != nil {
		return err
	}

	if err := pipeline.Initiate(ctx.Context); err != nil {
		return fmt.Errorf("%s flow failed: %w", name, err)
	}
	fmt.Fprintf(out, "%s flow completed\n", name)
	return nil
}
