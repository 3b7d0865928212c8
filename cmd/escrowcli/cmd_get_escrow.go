package main

import (
	"context"

	"github.com/urfave/cli"

	"github.com/p2pmmx/escrowd/escrowrpc"
)

var getEscrowCommand = cli.Command{
	Name:      "escrow",
	Category:  "Escrows",
	Usage:     "Show a single escrow by ID.",
	ArgsUsage: "escrow-id",
	Action:    actionDecorator(getEscrow),
}

func getEscrow(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "escrow")
	}

	client, cleanup, err := getEscrowAdminClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.GetEscrow(context.Background(), &escrowrpc.GetEscrowRequest{
		EscrowId: ctx.Args().Get(0),
	})
	if err != nil {
		return err
	}

	printRespJSON(resp)
	return nil
}
