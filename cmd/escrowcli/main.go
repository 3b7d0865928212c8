// escrowcli is the operator's command-line client for escrowd's admin
// gRPC surface (escrowrpc): a single urfave/cli.App dispatching to one
// subcommand per RPC, rendering results either as pretty tables or raw
// JSON.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "escrowcli"
	app.Usage = "inspect a running escrowd instance"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:10090",
			Usage: "escrowd's admin gRPC listen address",
		},
		cli.StringFlag{
			Name:  "macaroonpath",
			Value: "admin.macaroon",
			Usage: "path to the admin macaroon",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "print raw JSON instead of a table",
		},
	}

	app.Commands = []cli.Command{
		listEscrowsCommand,
		getEscrowCommand,
		listRoomsCommand,
		vaultRegistryCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "[escrowcli]", err)
		os.Exit(1)
	}
}
