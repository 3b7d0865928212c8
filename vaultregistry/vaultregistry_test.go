package vaultregistry

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/escrowerr"
)

func pt25() decimal.Decimal { return decimal.NewFromFloat(0.25) }

func TestResolvePrefersRoomPinnedOverTier(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Reload([]*Contract{
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xpinned", FeePercent: pt25(), FeeBasisPoints: 25,
			Status: StatusDeployed, GroupID: "room-1",
		},
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xtiered", FeePercent: pt25(), FeeBasisPoints: 25,
			Status: StatusDeployed,
		},
	}))

	c, err := reg.Resolve(chain.USDT, chain.BSC, pt25(), "room-1")
	require.NoError(t, err)
	require.Equal(t, "0xpinned", c.Address)

	c, err = reg.Resolve(chain.USDT, chain.BSC, pt25(), "room-2")
	require.NoError(t, err)
	require.Equal(t, "0xtiered", c.Address)
}

func TestResolveFallsBackToLegacyMap(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Reload([]*Contract{
		{
			Name: "EscrowVault", Token: chain.USDC, Chain: chain.Polygon,
			Address: "0xlegacy", FeePercent: decimal.NewFromFloat(0.5), FeeBasisPoints: 50,
			Status: StatusDeployed, GroupID: "room-legacy",
		},
	}))

	c, err := reg.Resolve(chain.USDC, chain.Polygon, decimal.NewFromFloat(0.9), "room-legacy")
	require.NoError(t, err)
	require.Equal(t, "0xlegacy", c.Address)
}

func TestResolveNotFound(t *testing.T) {
	reg := New()
	_, err := reg.Resolve(chain.USDT, chain.ETH, pt25(), "")
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.NotFound))
}

func TestReloadRejectsFeeDisagreement(t *testing.T) {
	reg := New()
	err := reg.Reload([]*Contract{
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xbad", FeePercent: pt25(), FeeBasisPoints: 999,
			Status: StatusDeployed,
		},
	})
	require.Error(t, err)
	require.True(t, escrowerr.Is(err, escrowerr.Internal))
}

func TestReloadIgnoresRetiredOnResolve(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Reload([]*Contract{
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xretired", FeePercent: pt25(), FeeBasisPoints: 25,
			Status: StatusRetired,
		},
	}))
	_, err := reg.Resolve(chain.USDT, chain.BSC, pt25(), "")
	require.Error(t, err)
}
