package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	"github.com/p2pmmx/escrowd/escrowrpc"
)

var listRoomsCommand = cli.Command{
	Name:     "rooms",
	Category: "Rooms",
	Usage:    "List every room in the pool and its current lease state.",
	Action:   actionDecorator(listRooms),
}

func listRooms(ctx *cli.Context) error {
	client, cleanup, err := getEscrowAdminClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.ListRooms(context.Background(), &escrowrpc.ListRoomsRequest{})
	if err != nil {
		return err
	}

	if ctx.GlobalBool("json") {
		printRespJSON(resp)
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Room ID", "Status", "Assigned Escrow", "Invite Link"})
	for _, r := range resp.Rooms {
		t.AppendRow(table.Row{r.Id, r.Status, r.AssignedEscrowId, r.InviteLink})
	}
	fmt.Println(t.Render())
	return nil
}
