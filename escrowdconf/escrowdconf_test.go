package escrowdconf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBotToken(t *testing.T) {
	_, err := Load([]string{"--adminuserid=1"})
	require.Error(t, err)
}

func TestLoadAcceptsMinimalValidArgs(t *testing.T) {
	cfg, err := Load([]string{
		"--botoken=abc123",
		"--adminuserid=42",
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", cfg.BotToken)
	require.Equal(t, uint32(30), cfg.DepositAddressTTLMinutes)
}

func TestEVMRPCURLLookup(t *testing.T) {
	cfg := &Config{EVMRPCURLs: []ChainRPC{{Chain: "BSC", URL: "https://bsc.example"}}}
	url, err := cfg.EVMRPCURL("BSC")
	require.NoError(t, err)
	require.Equal(t, "https://bsc.example", url)

	_, err = cfg.EVMRPCURL("ETH")
	require.Error(t, err)
}
