package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/sysaction"
	"github.com/urfave/cli/v2"
)

var remarkEventFlag = &cli.BoolFlag{
	Name:  "event",
	Usage: "emit a Remarked event carrying the hash of the remark",
}

var commandEncode = &cli.Command{
	Name:  "encode",
	Usage: "build the call data of a system action",
	Subcommands: []*cli.Command{
		{
			Name:      "remark",
			Usage:     "encode a SYSTEM_REMARK action",
			ArgsUsage: "<text>",
			Flags:     []cli.Flag{remarkEventFlag},
			Action:    encodeRemark,
		},
		{
			Name:      "transfer",
			Usage:     "encode a BALANCES_TRANSFER action",
			ArgsUsage: "<to> <amount>",
			Action:    encodeTransfer,
		},
	},
}

func encodeRemark(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected one argument, have %d", ctx.NArg())
	}
	kind := sysaction.ActionSystemRemark
	if ctx.Bool(remarkEventFlag.Name) {
		kind = sysaction.ActionSystemRemarkWithEvent
	}
	data, err := sysaction.MakeSysAction(kind, &sysaction.RemarkPayload{Remark: []byte(ctx.Args().First())})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, hexutil.Encode(data))
	return nil
}

func encodeTransfer(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("expected <to> <amount>, have %d arguments", ctx.NArg())
	}
	to, err := parseAccount(ctx.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid recipient: %v", err)
	}
	amount, err := uint256.FromDecimal(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid amount: %v", err)
	}
	data, err := sysaction.MakeSysAction(sysaction.ActionBalancesTransfer, &sysaction.TransferPayload{To: to, Amount: amount})
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, hexutil.Encode(data))
	return nil
}
