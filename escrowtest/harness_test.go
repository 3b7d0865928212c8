package escrowtest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/depositwatcher"
)

func TestHarnessDrivesHappyPathToRelease(t *testing.T) {
	h := New(t)
	ctx := context.Background()

	id := h.NewDraft("buyer-1", "", "chat-1")
	require.NoError(t, h.Manager.Approve(ctx, id, "buyer-1"))
	require.NoError(t, h.Manager.Approve(ctx, id, "seller-1"))

	e, err := h.Store.Load(id)
	require.NoError(t, err)
	require.NotEmpty(t, e.DepositAddress)

	full := decimal.NewFromInt(100).Shift(18).BigInt()
	require.NoError(t, h.Manager.HandleDeposit(depositwatcher.Deposit{
		EscrowID: id,
		Transfer: chain.Transfer{TxHash: "0xdeposit1", To: e.DepositAddress, ValueBase: full, BlockNumber: 5},
	}))

	require.NoError(t, h.Manager.MarkFiatSent(id))
	require.NoError(t, h.Manager.MarkFiatReceived(id))

	require.NoError(t, h.Manager.ConfirmRelease(ctx, id, "buyer-1"))
	require.NoError(t, h.Manager.ConfirmRelease(ctx, id, "seller-1"))

	got, err := h.Store.Load(id)
	require.NoError(t, err)
	require.Equal(t, "0xrelease", got.ReleaseTransactionHash)
	require.Len(t, h.Driver.Released, 1)
}
