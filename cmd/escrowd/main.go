// escrowd is the coordinator daemon: it loads configuration, opens the
// escrow database, dials every configured chain, and wires the trade
// state machine, room pool, vault registry, and deposit watcher together
// behind the admin gRPC surface in escrowrpc. A chat front-end is an
// external collaborator the operator injects separately (see
// chatadapter); this binary only runs the coordination core.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"google.golang.org/grpc"

	"github.com/p2pmmx/escrowd"
	"github.com/p2pmmx/escrowd/build"
	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/chatadapter"
	"github.com/p2pmmx/escrowd/chain/evmdriver"
	"github.com/p2pmmx/escrowd/chain/trondriver"
	"github.com/p2pmmx/escrowd/depositwatcher"
	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowdconf"
	"github.com/p2pmmx/escrowd/escrowrpc"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/schedule"
	"github.com/p2pmmx/escrowd/tradefsm"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// nativeDecimals is the gateway's decimals table for the stablecoins this
// coordinator supports: 18 on BSC, ETH and Polygon, 6 on Tron's TRC-20
// USDT/USDC. Contract rows carry no decimals of their own, so this table
// is the only source.
func nativeDecimals() chain.DecimalsTable {
	table := chain.DecimalsTable{}
	for _, c := range []chain.Chain{chain.BSC, chain.ETH, chain.Polygon} {
		table[chain.TokenChainKey{Token: chain.USDT, Chain: c}] = 18
		table[chain.TokenChainKey{Token: chain.USDC, Chain: c}] = 18
	}
	table[chain.TokenChainKey{Token: chain.USDT, Chain: chain.Tron}] = 6
	table[chain.TokenChainKey{Token: chain.USDC, Chain: chain.Tron}] = 6
	return table
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "[escrowd]", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := escrowdconf.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logWriter := build.NewRotatingLogWriter()
	if err := logWriter.InitLogRotator(filepath.Join(".", "logs", "escrowd.log"), 10*1024*1024, 3); err != nil {
		return fmt.Errorf("init log rotator: %w", err)
	}
	escrowd.SetupLoggers(logWriter)

	db, err := escrowdb.Open(cfg.DBURI)
	if err != nil {
		return fmt.Errorf("open escrow database: %w", err)
	}
	defer db.Close()

	gateway, err := buildGateway(cfg)
	if err != nil {
		return fmt.Errorf("build chain gateway: %w", err)
	}

	registry := vaultregistry.New()
	contracts, err := vaultregistry.LoadFromDB(db)
	if err != nil {
		return fmt.Errorf("load vault registry: %w", err)
	}
	if err := registry.Reload(contracts); err != nil {
		return fmt.Errorf("reload vault registry: %w", err)
	}

	// chatAdapter is left nil here: the chat-platform client is an
	// external collaborator the operator supplies at deployment time
	// (see chatadapter's doc comment), not something this binary builds.
	// A real deployment replaces this with a constructed Adapter before
	// calling roompool.New/tradefsm.NewManager.
	var chatAdapter chatadapter.Adapter

	roomStore := roompool.NewDBStore(db)
	pool := roompool.New(roomStore, chatAdapter)

	scheduler := schedule.New()
	defer scheduler.Close()

	// explorer is left nil: no block-explorer fallback is configured by
	// default, so a scan that returns no transfers is simply reported
	// empty (depositwatcher.New's own documented behavior for a nil
	// ExplorerFallback).
	watcher := depositwatcher.New(gateway, nil, depositwatcher.Config{})
	defer watcher.Close()

	escrowStore := tradefsm.NewStore(db)

	limits := tradefsm.Limits{
		MinTradeAmount: cfg.MinTradeAmount,
		MaxTradeAmount: cfg.MaxTradeAmount,
	}

	manager := tradefsm.NewManager(
		escrowStore, gateway, registry, pool, scheduler, chatAdapter, watcher,
		limits, cfg.EscrowFeePercent,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watcher.Run(ctx)
	go drainFires(ctx, manager, scheduler)
	go drainDeposits(ctx, manager, watcher)

	macaroonRootKey, err := loadOrCreateMacaroonRootKey(filepath.Join(".", "macaroon_root.key"))
	if err != nil {
		return fmt.Errorf("load macaroon root key: %w", err)
	}
	if err := writeAdminMacaroonFile(macaroonRootKey, filepath.Join(".", "admin.macaroon")); err != nil {
		return fmt.Errorf("bake admin macaroon: %w", err)
	}

	lis, err := net.Listen("tcp", "localhost:10090")
	if err != nil {
		return fmt.Errorf("listen for admin rpc: %w", err)
	}

	opts := escrowrpc.ServerOptions(escrowd.RPCLog(), macaroonRootKey)
	grpcServer := grpc.NewServer(opts...)
	escrowrpc.RegisterEscrowAdminServer(grpcServer, escrowrpc.NewServer(escrowStore, roomStore, registry))
	escrowrpc.RegisterMetrics(grpcServer)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			fmt.Fprintln(os.Stderr, "[escrowd] admin rpc server stopped:", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	grpcServer.GracefulStop()
	cancel()
	return nil
}

// buildGateway dials one driver per chain configured with a non-empty RPC
// URL, preferring the EVM driver for BSC/ETH/Polygon and the Tron driver
// for Tron.
func buildGateway(cfg *escrowdconf.Config) (*chain.Gateway, error) {
	drivers := map[chain.Chain]chain.Driver{}

	for _, c := range []chain.Chain{chain.BSC, chain.ETH, chain.Polygon} {
		url, err := cfg.EVMRPCURL(string(c))
		if err != nil || url == "" {
			continue
		}
		driver, err := evmdriver.New(context.Background(), evmdriver.Config{
			RPCURL:              url,
			HotWalletPrivateKey: cfg.HotWalletPrivateKey,
			GasLimit:            300000,
		})
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", c, err)
		}
		drivers[c] = driver
	}

	if cfg.TronRPCURL != "" {
		driver, err := trondriver.New(trondriver.Config{
			FullNodeURL:            cfg.TronRPCURL,
			HotWalletPrivateKeyHex: cfg.TRCPrivateKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dial tron: %w", err)
		}
		drivers[chain.Tron] = driver
	}

	return chain.NewGateway(drivers, nativeDecimals()), nil
}

// drainFires forwards every scheduler fire to the manager until ctx is
// canceled, the background loop that turns deposit-window and release
// timers into state transitions.
func drainFires(ctx context.Context, manager *tradefsm.Manager, scheduler *schedule.Scheduler) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-scheduler.Fires():
			if err := manager.HandleTimerFire(ctx, f); err != nil {
				fmt.Fprintln(os.Stderr, "[escrowd] timer fire:", err)
			}
		}
	}
}

// drainDeposits forwards every observed chain deposit to the manager
// until ctx is canceled.
func drainDeposits(ctx context.Context, manager *tradefsm.Manager, watcher *depositwatcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-watcher.Deposits():
			if err := manager.HandleDeposit(d); err != nil {
				fmt.Fprintln(os.Stderr, "[escrowd] deposit:", err)
			}
		}
	}
}

// loadOrCreateMacaroonRootKey reads a 32-byte signing key from path,
// generating and persisting one on first run, the same bootstrap step
// lnd performs for its own macaroon.db root key.
func loadOrCreateMacaroonRootKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(data) == 32 {
		return data, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate macaroon root key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("persist macaroon root key: %w", err)
	}
	return key, nil
}

// writeAdminMacaroonFile bakes the single admin macaroon and writes it to
// path if it doesn't already exist, so operators can point escrowcli at
// it without an extra provisioning step.
func writeAdminMacaroonFile(rootKey []byte, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	mac, err := escrowrpc.BakeAdminMacaroon(rootKey, "admin")
	if err != nil {
		return err
	}
	return os.WriteFile(path, mac, 0o600)
}
