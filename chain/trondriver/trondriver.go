// Package trondriver implements chain.Driver for Tron over the full
// node's HTTP API (wallet/triggersmartcontract, wallet/getnowblock). Tron
// has no official Go SDK in this project's dependency stack, so the
// driver speaks the documented JSON-over-HTTP surface directly and reuses
// go-ethereum's ABI encoder for parameter packing since the TVM is
// ABI-compatible with the EVM.
package trondriver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/escrowerr"
)

// Config holds everything needed to address a Tron full node.
type Config struct {
	// FullNodeURL is the base URL of the Tron full node HTTP API, e.g.
	// https://api.trongrid.io.
	FullNodeURL string

	// APIKey, when set, is sent as TRON-PRO-API-KEY (TronGrid access).
	APIKey string

	// HotWalletPrivateKeyHex signs release/refund/withdraw transactions.
	HotWalletPrivateKeyHex string

	// HTTPClient overrides the default client; nil uses a 15s timeout.
	HTTPClient *http.Client
}

// Driver is the Tron implementation of chain.Driver.
type Driver struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	privateKeyHex string
	fromAddrHex   string // 41-prefixed hex form of the hot wallet's base58 address

	vaultABI abi.ABI
	erc20ABI abi.ABI
}

var _ chain.Driver = (*Driver)(nil)

// New builds a Driver and derives the hot wallet's address from its key.
func New(cfg Config) (*Driver, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	keyHex := strings.TrimPrefix(cfg.HotWalletPrivateKeyHex, "0x")
	priv, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, escrowerr.Internalf(err, "parse tron hot wallet key")
	}
	pub := priv.PublicKey
	ethAddr := crypto.PubkeyToAddress(pub)
	// Tron addresses are the Keccak/secp256k1-derived EVM address with a
	// 0x41 prefix byte in place of EVM's bare 20 bytes.
	fromAddrHex := "41" + hex.EncodeToString(ethAddr.Bytes())

	vaultABI, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return nil, escrowerr.Internalf(err, "parse vault abi")
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, escrowerr.Internalf(err, "parse erc20 abi")
	}

	return &Driver{
		baseURL:       strings.TrimSuffix(cfg.FullNodeURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    httpClient,
		privateKeyHex: keyHex,
		fromAddrHex:   fromAddrHex,
		vaultABI:      vaultABI,
		erc20ABI:      erc20ABI,
	}, nil
}

// base58ToHex converts a Tron base58check address (T...) to its 41-prefixed
// hex form, as the full node's trigger API expects.
func base58ToHex(addr string) (string, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return "", escrowerr.Validationf("invalid tron address %q: %v", addr, err)
	}
	if len(decoded) < 25 {
		return "", escrowerr.Validationf("invalid tron address %q: too short", addr)
	}
	// Strip the trailing 4-byte checksum.
	return hex.EncodeToString(decoded[:len(decoded)-4]), nil
}

// hexToBase58 is the inverse of base58ToHex, appending the
// double-SHA256 checksum suffix Tron's base58check addresses require.
func hexToBase58(addrHex string) (string, error) {
	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return "", escrowerr.Internalf(err, "decode tron address hex")
	}
	return base58.Encode(append(raw, sha256Checksum(raw)...)), nil
}

func sha256Checksum(raw []byte) []byte {
	first := sha256.Sum256(raw)
	second := sha256.Sum256(first[:])
	return second[:4]
}

func classifyTronError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "revert"),
		strings.Contains(msg, "contract_validate_error"),
		strings.Contains(msg, "bandwidth"):
		return escrowerr.Revertedf(err, "tron call reverted")
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "server_busy"):
		return escrowerr.Transientf(err, "tron rpc error")
	default:
		return escrowerr.Internalf(err, "tron call failed")
	}
}

func (d *Driver) doPost(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return escrowerr.Internalf(err, "encode tron request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return escrowerr.Internalf(err, "build tron request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return escrowerr.Transientf(err, "tron http request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return escrowerr.Transientf(err, "read tron response")
	}
	if resp.StatusCode >= 500 {
		return escrowerr.Transientf(fmt.Errorf("status %d: %s", resp.StatusCode, respBody), "tron node error")
	}
	if resp.StatusCode >= 400 {
		return escrowerr.Revertedf(fmt.Errorf("status %d: %s", resp.StatusCode, respBody), "tron request rejected")
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return escrowerr.Internalf(err, "decode tron response")
		}
	}
	return nil
}

type triggerConstantResult struct {
	Result struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
	ConstantResult []string `json:"constant_result"`
}

// triggerConstant calls a read-only (constant) contract method and
// returns the raw ABI-encoded return data.
func (d *Driver) triggerConstant(ctx context.Context, contractAddr, method string, packed []byte) ([]byte, error) {
	contractHex, err := base58ToHex(contractAddr)
	if err != nil {
		return nil, err
	}
	req := map[string]interface{}{
		"owner_address":     d.fromAddrHex,
		"contract_address":  contractHex,
		"function_selector": method,
		"parameter":         hex.EncodeToString(packed),
		"visible":           false,
	}
	var res triggerConstantResult
	if err := d.doPost(ctx, "/wallet/triggerconstantcontract", req, &res); err != nil {
		return nil, err
	}
	if !res.Result.Result {
		return nil, escrowerr.Revertedf(fmt.Errorf(res.Result.Message), "tron constant call reverted")
	}
	if len(res.ConstantResult) == 0 {
		return nil, escrowerr.Internalf(nil, "tron constant call returned no data")
	}
	return hex.DecodeString(res.ConstantResult[0])
}

type triggerSmartContractResult struct {
	Result struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
	} `json:"result"`
	Transaction json.RawMessage `json:"transaction"`
	TxID        string          `json:"txID"`
}

// triggerSmartContract builds, signs, and broadcasts a state-changing
// call. Tron transactions are short-lived (2 minute expiration), so no
// nonce races are possible across concurrent calls the way EVM has them;
// the signer lock still serializes sends to keep bandwidth/energy
// accounting simple to reason about.
func (d *Driver) triggerSmartContract(ctx context.Context, contractAddr, method string, packed []byte) (string, error) {
	contractHex, err := base58ToHex(contractAddr)
	if err != nil {
		return "", err
	}
	req := map[string]interface{}{
		"owner_address":     d.fromAddrHex,
		"contract_address":  contractHex,
		"function_selector": method,
		"parameter":         hex.EncodeToString(packed),
		"fee_limit":         150_000_000,
		"call_value":        0,
		"visible":           false,
	}
	var built triggerSmartContractResult
	if err := d.doPost(ctx, "/wallet/triggersmartcontract", req, &built); err != nil {
		return "", err
	}
	if !built.Result.Result {
		return "", escrowerr.Revertedf(fmt.Errorf(built.Result.Message), "tron build transaction reverted")
	}

	signedRaw, err := d.signTransaction(built.Transaction)
	if err != nil {
		return "", err
	}

	var broadcastRes struct {
		Result  bool   `json:"result"`
		Message string `json:"message"`
		TxID    string `json:"txid"`
	}
	if err := d.doPost(ctx, "/wallet/broadcasttransaction", json.RawMessage(signedRaw), &broadcastRes); err != nil {
		return "", err
	}
	if !broadcastRes.Result {
		return "", classifyTronError(fmt.Errorf(broadcastRes.Message))
	}
	return built.TxID, nil
}

// signTransaction signs the raw transaction's txID with secp256k1 and
// appends the signature, matching the shape wallet/broadcasttransaction
// expects.
func (d *Driver) signTransaction(txJSON json.RawMessage) (json.RawMessage, error) {
	var tx struct {
		TxID    string          `json:"txID"`
		RawData json.RawMessage `json:"raw_data"`
	}
	if err := json.Unmarshal(txJSON, &tx); err != nil {
		return nil, escrowerr.Internalf(err, "decode unsigned tron transaction")
	}
	digest, err := hex.DecodeString(tx.TxID)
	if err != nil {
		return nil, escrowerr.Internalf(err, "decode tron txid")
	}
	priv, err := crypto.HexToECDSA(d.privateKeyHex)
	if err != nil {
		return nil, escrowerr.Internalf(err, "load tron signing key")
	}
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, escrowerr.Internalf(err, "sign tron transaction")
	}

	var out map[string]interface{}
	if err := json.Unmarshal(txJSON, &out); err != nil {
		return nil, escrowerr.Internalf(err, "re-decode unsigned tron transaction")
	}
	out["signature"] = []string{hex.EncodeToString(sig)}
	signed, err := json.Marshal(out)
	if err != nil {
		return nil, escrowerr.Internalf(err, "encode signed tron transaction")
	}
	return signed, nil
}

func packAddress(addrBase58 string) (common.Address, error) {
	hexAddr, err := base58ToHex(addrBase58)
	if err != nil {
		return common.Address{}, err
	}
	// Drop the leading 0x41 Tron prefix byte; the ABI encoder expects a
	// bare 20-byte EVM-shaped address.
	trimmed := strings.TrimPrefix(hexAddr, "41")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return common.Address{}, escrowerr.Internalf(err, "decode tron address body")
	}
	return common.BytesToAddress(b), nil
}

// ReleaseFunds implements chain.Driver.
func (d *Driver) ReleaseFunds(ctx context.Context, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*chain.ReleaseResult, error) {
	amount := baseUnitsOverride
	if amount == nil {
		amount = amountHuman.BigInt()
	}
	toAddr, err := packAddress(to)
	if err != nil {
		return nil, err
	}
	packed, err := d.vaultABI.Pack("release", toAddr, amount)
	if err != nil {
		return nil, escrowerr.Internalf(err, "encode release call")
	}
	txID, err := d.triggerSmartContract(ctx, vault, "release(address,uint256)", packed[4:])
	if err != nil {
		return nil, err
	}
	return &chain.ReleaseResult{TransactionHash: txID}, nil
}

// RefundFunds implements chain.Driver.
func (d *Driver) RefundFunds(ctx context.Context, vault, to string, amountHuman decimal.Decimal, baseUnitsOverride *big.Int) (*chain.ReleaseResult, error) {
	amount := baseUnitsOverride
	if amount == nil {
		amount = amountHuman.BigInt()
	}
	toAddr, err := packAddress(to)
	if err != nil {
		return nil, err
	}
	packed, err := d.vaultABI.Pack("refund", toAddr, amount)
	if err != nil {
		return nil, escrowerr.Internalf(err, "encode refund call")
	}
	txID, err := d.triggerSmartContract(ctx, vault, "refund(address,uint256)", packed[4:])
	if err != nil {
		return nil, err
	}
	return &chain.ReleaseResult{TransactionHash: txID}, nil
}

// WithdrawToken implements chain.Driver.
func (d *Driver) WithdrawToken(ctx context.Context, vault, erc20, to string) (*chain.ReleaseResult, error) {
	tokenAddr, err := packAddress(erc20)
	if err != nil {
		return nil, err
	}
	toAddr, err := packAddress(to)
	if err != nil {
		return nil, err
	}
	packed, err := d.vaultABI.Pack("withdrawToken", tokenAddr, toAddr)
	if err != nil {
		return nil, escrowerr.Internalf(err, "encode withdrawToken call")
	}
	txID, err := d.triggerSmartContract(ctx, vault, "withdrawToken(address,address)", packed[4:])
	if err != nil {
		return nil, err
	}
	return &chain.ReleaseResult{TransactionHash: txID}, nil
}

// GetTokenBalance implements chain.Driver.
func (d *Driver) GetTokenBalance(ctx context.Context, erc20, address string) (decimal.Decimal, error) {
	addr, err := packAddress(address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	packed, err := d.erc20ABI.Pack("balanceOf", addr)
	if err != nil {
		return decimal.Decimal{}, escrowerr.Internalf(err, "encode balanceOf call")
	}
	raw, err := d.triggerConstant(ctx, erc20, "balanceOf(address)", packed[4:])
	if err != nil {
		return decimal.Decimal{}, err
	}
	results, err := d.erc20ABI.Unpack("balanceOf", raw)
	if err != nil {
		return decimal.Decimal{}, escrowerr.Internalf(err, "decode balanceOf result")
	}
	dec, err := d.erc20Decimals(ctx, erc20)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(results[0].(*big.Int), -int32(dec)), nil
}

func (d *Driver) erc20Decimals(ctx context.Context, erc20 string) (uint8, error) {
	packed, err := d.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, escrowerr.Internalf(err, "encode decimals call")
	}
	raw, err := d.triggerConstant(ctx, erc20, "decimals()", packed[4:])
	if err != nil {
		return 0, err
	}
	results, err := d.erc20ABI.Unpack("decimals", raw)
	if err != nil {
		return 0, escrowerr.Internalf(err, "decode decimals result")
	}
	return results[0].(uint8), nil
}

type tronGrpcEvent struct {
	TransactionID   string `json:"transaction_id"`
	BlockNumber     uint64 `json:"block_number"`
	Result          struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Value string `json:"value"`
	} `json:"result"`
}

// GetTokenTransfersViaRPC implements chain.Driver using TronGrid's
// contract event index (/v1/contracts/{addr}/events), the equivalent of
// an EVM FilterLogs scan when no direct log-topic API is exposed.
func (d *Driver) GetTokenTransfersViaRPC(ctx context.Context, erc20, to string, fromBlock uint64) ([]chain.Transfer, error) {
	contractHex, err := base58ToHex(erc20)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/v1/contracts/%s/events?event_name=Transfer&only_confirmed=true&min_block_timestamp=0", contractHex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, escrowerr.Internalf(err, "build tron event query")
	}
	if d.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", d.apiKey)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, escrowerr.Transientf(err, "tron event query failed")
	}
	defer resp.Body.Close()

	var parsed struct {
		Data []tronGrpcEvent `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, escrowerr.Internalf(err, "decode tron event response")
	}

	dec, err := d.erc20Decimals(ctx, erc20)
	if err != nil {
		return nil, err
	}

	transfers := make([]chain.Transfer, 0, len(parsed.Data))
	for i, ev := range parsed.Data {
		if ev.BlockNumber < fromBlock {
			continue
		}
		destBase58, cerr := hexToBase58("41" + strings.TrimPrefix(ev.Result.To, "41"))
		if cerr != nil {
			continue
		}
		value, ok := new(big.Int).SetString(ev.Result.Value, 10)
		if !ok {
			continue
		}
		if !strings.EqualFold(destBase58, to) {
			continue
		}
		transfers = append(transfers, chain.Transfer{
			From:         ev.Result.From,
			To:           destBase58,
			ValueDecimal: decimal.NewFromBigInt(value, -int32(dec)),
			ValueBase:    value,
			TxHash:       ev.TransactionID,
			LogIndex:     uint(i),
			BlockNumber:  ev.BlockNumber,
		})
	}
	return transfers, nil
}

// GetLatestBlockNumber implements chain.Driver.
func (d *Driver) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	var res struct {
		BlockHeader struct {
			RawData struct {
				Number uint64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := d.doPost(ctx, "/wallet/getnowblock", map[string]interface{}{}, &res); err != nil {
		return 0, err
	}
	return res.BlockHeader.RawData.Number, nil
}

// GetFeeSettings implements chain.Driver.
func (d *Driver) GetFeeSettings(ctx context.Context, vault string) (*chain.FeeSettings, error) {
	feePct, err := d.callVaultView(ctx, vault, "feePercent")
	if err != nil {
		return nil, err
	}
	accumulated, err := d.callVaultView(ctx, vault, "accumulatedFees")
	if err != nil {
		return nil, err
	}
	wallet, err := d.callVaultView(ctx, vault, "feeWallet1")
	if err != nil {
		return nil, err
	}
	walletHex := "41" + common.BytesToAddress(wallet.Bytes()).Hex()[2:]
	walletB58, err := hexToBase58(walletHex)
	if err != nil {
		return nil, err
	}
	return &chain.FeeSettings{
		FeeWallet:             walletB58,
		FeePercentBasisPoints: uint32(feePct.Uint64()),
		AccumulatedBase:       accumulated,
	}, nil
}

func (d *Driver) callVaultView(ctx context.Context, vault, method string) (*big.Int, error) {
	sig := method + "()"
	raw, err := d.triggerConstant(ctx, vault, sig, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}
