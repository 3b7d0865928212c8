package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	"github.com/p2pmmx/escrowd/escrowrpc"
)

var listEscrowsCommand = cli.Command{
	Name:      "escrows",
	Category:  "Escrows",
	Usage:     "List escrows, optionally filtered by status.",
	ArgsUsage: "[status]",
	Description: `
	With no argument, lists every escrow known to the coordinator
	regardless of status. Passing a status (e.g. "awaiting_deposit",
	"completed") restricts the listing to that status.`,
	Action: actionDecorator(listEscrows),
}

func listEscrows(ctx *cli.Context) error {
	client, cleanup, err := getEscrowAdminClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var status string
	if ctx.NArg() > 0 {
		status = ctx.Args().Get(0)
	}

	resp, err := client.ListEscrows(context.Background(), &escrowrpc.ListEscrowsRequest{
		Status: status,
	})
	if err != nil {
		return err
	}

	if ctx.GlobalBool("json") {
		printRespJSON(resp)
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Escrow ID", "Status", "Buyer", "Seller", "Token", "Chain", "Quantity"})
	for _, e := range resp.GetEscrows() {
		t.AppendRow(table.Row{
			e.EscrowId, e.Status, e.BuyerId, e.SellerId,
			e.Token, e.Chain, e.Quantity,
		})
	}
	fmt.Println(t.Render())
	return nil
}
