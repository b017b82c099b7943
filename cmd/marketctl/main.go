// Command marketctl drives NFT trades between the asset chain and the
// settlement chain.
//
// Every trade command runs a staged flow: each stage re-checks its
// precondition, asks for a signature and waits until the chain shows the
// expected state. A flow that failed part-way can simply be run again.
//
// Usage:
//
//	marketctl --config market.yaml sell --account <ss58> --collection 7 --token 1 --price 1.5
//	marketctl --simulate --yes buy --account <ss58> --collection 7 --token 1
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/archon-research/stl-market/internal/pkg/env"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to the YAML configuration file",
		EnvVars: []string{"MARKETCTL_CONFIG"},
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "network key declared through NET_<KEY>_* variables (default: first)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error (default: $LOG_LEVEL, then warn)",
	}
	simulateFlag = &cli.BoolFlag{
		Name:  "simulate",
		Usage: "run against an in-memory ledger instead of RPC endpoints",
	}
	yesFlag = &cli.BoolFlag{
		Name:  "yes",
		Usage: "sign every request without asking (simulation only)",
	}
	simBalanceFlag = &cli.StringFlag{
		Name:  "sim-balance",
		Usage: "settlement balance given to the acting account in simulation",
		Value: "10",
	}
)

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "marketctl",
		Usage:     "settle NFT trades across the asset and settlement chains",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			configFlag,
			networkFlag,
			logLevelFlag,
			simulateFlag,
			yesFlag,
			simBalanceFlag,
		},
		Commands: []*cli.Command{
			commandNetworks,
			commandDeriveAddress,
			commandCollectionAddress,
			commandFormatAmount,
			commandWhiteList,
			commandSell,
			commandBuy,
			commandCancel,
			commandTransfer,
			commandSignMessage,
		},
	}
}

func newLogger(ctx *cli.Context) *slog.Logger {
	level := env.ParseLogLevel(ctx.String(logLevelFlag.Name), env.LogLevel(slog.LevelWarn))
	return slog.New(slog.NewTextHandler(ctx.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// A signal cancels the running flow; deferred cleanup still runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
