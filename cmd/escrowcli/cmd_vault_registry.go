package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	"github.com/p2pmmx/escrowd/escrowrpc"
)

var vaultRegistryCommand = cli.Command{
	Name:     "contracts",
	Category: "Vault Registry",
	Usage:    "List every token/chain contract deployment escrowd knows about.",
	Action:   actionDecorator(vaultRegistry),
}

func vaultRegistry(ctx *cli.Context) error {
	client, cleanup, err := getEscrowAdminClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.GetVaultRegistry(context.Background(), &escrowrpc.GetVaultRegistryRequest{})
	if err != nil {
		return err
	}

	if ctx.GlobalBool("json") {
		printRespJSON(resp)
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Token", "Chain", "Address", "Fee %", "Status", "Group ID"})
	for _, c := range resp.Contracts {
		t.AppendRow(table.Row{c.Token, c.Chain, c.Address, c.FeePercent, c.Status, c.GroupId})
	}
	fmt.Println(t.Render())
	return nil
}
