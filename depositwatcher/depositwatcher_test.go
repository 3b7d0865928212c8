package depositwatcher

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chain"
)

type fakeDriver struct {
	transfers []chain.Transfer
}

func (f *fakeDriver) ReleaseFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	return nil, nil
}
func (f *fakeDriver) RefundFunds(ctx context.Context, vault, to string, amt decimal.Decimal, override *big.Int) (*chain.ReleaseResult, error) {
	return nil, nil
}
func (f *fakeDriver) WithdrawToken(ctx context.Context, vault, erc20, to string) (*chain.ReleaseResult, error) {
	return nil, nil
}
func (f *fakeDriver) GetTokenBalance(ctx context.Context, erc20, address string) (decimal.Decimal, error) {
	return decimal.Decimal{}, nil
}
func (f *fakeDriver) GetTokenTransfersViaRPC(ctx context.Context, erc20, to string, fromBlock uint64) ([]chain.Transfer, error) {
	return f.transfers, nil
}
func (f *fakeDriver) GetLatestBlockNumber(ctx context.Context) (uint64, error) { return 100, nil }
func (f *fakeDriver) GetFeeSettings(ctx context.Context, vault string) (*chain.FeeSettings, error) {
	return nil, nil
}

func TestWatcherDeliversNewTransferOnce(t *testing.T) {
	driver := &fakeDriver{transfers: []chain.Transfer{
		{TxHash: "0xabc", LogIndex: 0, To: "0xvault", BlockNumber: 10},
	}}
	gw := chain.NewGateway(map[chain.Chain]chain.Driver{chain.BSC: driver}, chain.DecimalsTable{})
	w := New(gw, nil, Config{PollInterval: time.Hour})
	defer w.Close()

	w.Subscribe("escrow-1", chain.BSC, "0xvault", "0xtoken", 0)
	w.ScanNow(context.Background())

	select {
	case d := <-w.Deposits():
		require.Equal(t, "escrow-1", d.EscrowID)
		require.Equal(t, "0xabc", d.Transfer.TxHash)
	case <-time.After(time.Second):
		t.Fatal("no deposit delivered")
	}

	// Scanning again with the same transfer set must not re-deliver.
	w.ScanNow(context.Background())
	select {
	case d := <-w.Deposits():
		t.Fatalf("unexpected duplicate delivery: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	driver := &fakeDriver{}
	gw := chain.NewGateway(map[chain.Chain]chain.Driver{chain.BSC: driver}, chain.DecimalsTable{})
	w := New(gw, nil, Config{PollInterval: time.Hour})
	defer w.Close()

	w.Subscribe("escrow-1", chain.BSC, "0xvault", "0xtoken", 0)
	w.Unsubscribe("escrow-1")

	driver.transfers = []chain.Transfer{{TxHash: "0xnew", To: "0xvault", BlockNumber: 11}}
	w.ScanNow(context.Background())

	select {
	case d := <-w.Deposits():
		t.Fatalf("unexpected delivery after unsubscribe: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}
