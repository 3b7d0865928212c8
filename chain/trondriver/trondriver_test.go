package trondriver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	// USDT TRC-20 contract address, a well-known fixed Tron address.
	const addr = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

	hexAddr, err := base58ToHex(addr)
	require.NoError(t, err)
	require.Len(t, hexAddr, 42)

	back, err := hexToBase58(hexAddr)
	require.NoError(t, err)
	require.Equal(t, addr, back)
}

func TestBase58ToHexRejectsGarbage(t *testing.T) {
	_, err := base58ToHex("not-a-tron-address")
	require.Error(t, err)
}

func TestClassifyTronError(t *testing.T) {
	require.Nil(t, classifyTronError(nil))
}
