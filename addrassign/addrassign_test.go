package addrassign

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

func TestNormalizeChainAliases(t *testing.T) {
	require.Equal(t, chain.BSC, NormalizeChain("bnb"))
	require.Equal(t, chain.BSC, NormalizeChain("BEP-20"))
	require.Equal(t, chain.ETH, NormalizeChain("ethereum"))
	require.Equal(t, chain.Polygon, NormalizeChain("matic"))
	require.Equal(t, chain.Tron, NormalizeChain("trc20"))
	require.Equal(t, chain.Chain("UNKNOWNCHAIN"), NormalizeChain("unknownChain"))
}

func TestAssignResolvesThroughRegistry(t *testing.T) {
	reg := vaultregistry.New()
	fee := decimal.NewFromFloat(0.25)
	require.NoError(t, reg.Reload([]*vaultregistry.Contract{
		{
			Name: "EscrowVault", Token: chain.USDT, Chain: chain.BSC,
			Address: "0xvault", FeePercent: fee, FeeBasisPoints: 25,
			Status: vaultregistry.StatusDeployed,
		},
	}))

	a, err := Assign(reg, chain.USDT, "BNB", fee, "")
	require.NoError(t, err)
	require.Equal(t, "0xvault", a.Address)
	require.Equal(t, chain.BSC, a.Chain)
}
