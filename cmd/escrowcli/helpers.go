package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/p2pmmx/escrowd/escrowrpc"
	"github.com/urfave/cli"
)

// actionDecorator wraps a subcommand action so any error it returns is
// reported through main's single error path rather than each subcommand
// formatting its own failure message.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := f(c); err != nil {
			return fmt.Errorf("%s: %w", c.Command.Name, err)
		}
		return nil
	}
}

// macaroonCreds attaches the hex-encoded admin macaroon to every outgoing
// RPC, the client-side half of server.go's macaroonUnaryServerInterceptor.
type macaroonCreds struct {
	raw []byte
}

func (m macaroonCreds) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": hex.EncodeToString(m.raw)}, nil
}

func (m macaroonCreds) RequireTransportSecurity() bool {
	return false
}

// getClientConn dials rpcserver and returns a connection with the admin
// macaroon wired in as per-RPC credentials.
func getClientConn(ctx *cli.Context) (*grpc.ClientConn, error) {
	macPath := ctx.GlobalString("macaroonpath")
	macBytes, err := os.ReadFile(macPath)
	if err != nil {
		return nil, fmt.Errorf("reading macaroon from %s: %w", macPath, err)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(macaroonCreds{raw: macBytes}),
	}

	conn, err := grpc.Dial(ctx.GlobalString("rpcserver"), opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing escrowd: %w", err)
	}
	return conn, nil
}

func getEscrowAdminClient(ctx *cli.Context) (escrowrpc.EscrowAdminClient, func(), error) {
	conn, err := getClientConn(ctx)
	if err != nil {
		return nil, nil, err
	}
	return escrowrpc.NewEscrowAdminClient(conn), func() { conn.Close() }, nil
}

// printRespJSON marshals resp with indentation and writes it to stdout, the
// fallback rendering every subcommand uses when --json is passed.
func printRespJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshaling response:", err)
		return
	}
	fmt.Println(string(b))
}
