package trondriver

// vaultABIJSON mirrors evmdriver's vault ABI; Tron's TVM is ABI-compatible
// with the EVM, so the same function/parameter encoding applies, only the
// address byte layout (0x41-prefixed, base58check-rendered) differs.
const vaultABIJSON = `[
	{"type":"function","name":"release","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"refund","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"withdrawToken","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"to","type":"address"}],
	 "outputs":[]},
	{"type":"function","name":"feePercent","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"accumulatedFees","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"feeWallet1","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// erc20ABIJSON mirrors evmdriver's TRC-20 surface (TRC-20 is the same
// ABI shape as ERC-20).
const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`
