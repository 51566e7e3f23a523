package onchain

// erc20.go — Polygon RPC client for the two on-chain concerns the engine has:
//
//   - USDC.e balanceOf() as an alternative bankroll source (the CLOB's
//     balance-allowance endpoint is the default, but it only sees collateral
//     the exchange already knows about)
//   - one-time ERC1155 + ERC20 approvals so the exchange contracts can move
//     tokens and collateral when a live order matches

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Exchange contracts that need ERC1155 setApprovalForAll
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	negRiskAdapter  = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	approvalGasLimit = uint64(80_000)
)

var (
	erc20ABI   abi.ABI
	erc1155ABI abi.ABI
)

func init() {
	var err error

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "setApprovalForAll",
			"type": "function",
			"inputs": [
				{"name": "operator", "type": "address"},
				{"name": "approved", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}
}

// Client talks to a Polygon RPC node for balance reads and approval setup.
type Client struct {
	client     *ethclient.Client
	privateKey []byte
	address    common.Address
}

// NewClient connects to the given Polygon RPC. privateKeyHex may carry a
// 0x prefix; the derived address is the signer, not necessarily the funder.
func NewClient(rpcURL, privateKeyHex string) (*Client, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain: decode private key: %w", err)
	}

	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}

	return &Client{
		client:     client,
		privateKey: pkBytes,
		address:    crypto.PubkeyToAddress(privKey.PublicKey),
	}, nil
}

// USDCBalance returns the USDC.e balance of the given address in dollars.
func (c *Client) USDCBalance(ctx context.Context, address string) (float64, error) {
	callData, err := erc20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("onchain.USDCBalance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("onchain.USDCBalance: call: %w", err)
	}

	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("onchain.USDCBalance: unpack: %w", err)
	}
	micro, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("onchain.USDCBalance: unexpected type %T", vals[0])
	}

	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(micro), big.NewFloat(1e6)).Float64()
	return bal, nil
}

// EnsureApprovals checks and sets, once, everything live trading needs:
//
//   - ERC1155 setApprovalForAll on the exchange contracts, so matched SELLs
//     can move conditional tokens
//   - ERC20 USDC.e approve on both exchanges, so matched BUYs can pull
//     collateral
//
// Safe to call on every start; it only sends transactions for approvals
// that are missing.
func (c *Client) EnsureApprovals(ctx context.Context) error {
	operators := []string{normalExchange, negRiskExchange, negRiskAdapter}

	for _, op := range operators {
		approved, err := c.isApprovedForAll(ctx, common.HexToAddress(op))
		if err != nil {
			return fmt.Errorf("onchain: check ERC1155 approval for %s: %w", op, err)
		}
		if approved {
			slog.Debug("Aprobación ERC1155 ya concedida", "operator", op)
			continue
		}

		callData, err := erc1155ABI.Pack("setApprovalForAll", common.HexToAddress(op), true)
		if err != nil {
			return fmt.Errorf("onchain: pack setApprovalForAll: %w", err)
		}
		slog.Info("Concediendo aprobación ERC1155", "operator", op)
		if err := c.sendTx(ctx, common.HexToAddress(ctfAddress), callData); err != nil {
			return fmt.Errorf("onchain: set ERC1155 approval for %s: %w", op, err)
		}
	}

	exchanges := []string{normalExchange, negRiskExchange}
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	minAllowance := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000)) // 1M USDC.e

	for _, ex := range exchanges {
		allowance, err := c.erc20Allowance(ctx, common.HexToAddress(ex))
		if err != nil {
			return fmt.Errorf("onchain: check USDC.e allowance for %s: %w", ex, err)
		}
		if allowance.Cmp(minAllowance) >= 0 {
			slog.Debug("Allowance USDC.e suficiente", "exchange", ex)
			continue
		}

		callData, err := erc20ABI.Pack("approve", common.HexToAddress(ex), maxUint256)
		if err != nil {
			return fmt.Errorf("onchain: pack approve: %w", err)
		}
		slog.Info("Concediendo allowance USDC.e", "exchange", ex)
		if err := c.sendTx(ctx, common.HexToAddress(usdcEAddress), callData); err != nil {
			return fmt.Errorf("onchain: set USDC.e approval for %s: %w", ex, err)
		}
	}

	return nil
}

func (c *Client) isApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", c.address, operator)
	if err != nil {
		return false, err
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ctfAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, err
	}

	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	return vals[0].(bool), nil
}

func (c *Client) erc20Allowance(ctx context.Context, spender common.Address) (*big.Int, error) {
	callData, err := erc20ABI.Pack("allowance", c.address, spender)
	if err != nil {
		return nil, err
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, err
	}

	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil || len(vals) == 0 {
		return big.NewInt(0), err
	}
	return vals[0].(*big.Int), nil
}

// sendTx signs, sends and confirms an approval transaction.
func (c *Client) sendTx(ctx context.Context, to common.Address, callData []byte) error {
	privKey, err := crypto.ToECDSA(c.privateKey)
	if err != nil {
		return err
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), approvalGasLimit, gasPrice, callData)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(polygonChainID)), privKey)
	if err != nil {
		return err
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return err
	}

	receiptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	receipt, err := c.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return fmt.Errorf("wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("tx %s reverted", signed.Hash().Hex())
	}
	return nil
}

// gasPrice applies a 10% buffer for faster inclusion, with a 30 gwei
// fallback when the node refuses to suggest.
func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return big.NewInt(30_000_000_000), nil
	}
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	return buffered.Div(buffered, big.NewInt(10)), nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}
