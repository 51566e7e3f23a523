package polymarket

// trading.go — Real order execution via Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth.
// Orders are submitted as FAK (fill-and-kill) taker orders: we cross the
// spread at the quoted price and any unfilled remainder cancels itself,
// so the bot never leaves resting orders behind.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

// balanceReader lee el balance USDC on-chain de una dirección. Lo implementa
// el adapter de onchain; inyectado para no acoplar este paquete al RPC.
type balanceReader interface {
	USDCBalance(ctx context.Context, address string) (float64, error)
}

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth          *AuthClient
	chain         balanceReader
	balanceSource string
}

// NewTradingClient creates a TradingClient. chain puede ser nil si
// balanceSource es "clob".
func NewTradingClient(auth *AuthClient, chain balanceReader, balanceSource string) *TradingClient {
	return &TradingClient{auth: auth, chain: chain, balanceSource: balanceSource}
}

// PlaceOrder signs and submits a FAK taker order to the CLOB.
func (tc *TradingClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(req.TokenID, req.Price, req.Shares, req.Side, req.NegRisk)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(req.Side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "FAK",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place order: post: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("place order: %w", domain.ClassifyOrderReject(resp.ErrorMsg))
	}

	// En la respuesta del matching los amounts vienen en unidades humanas:
	// para BUY lo recibido (taking) son shares, para SELL lo entregado (making).
	matched := parseAmount(resp.TakingAmount)
	if req.Side == domain.OrderSell {
		matched = parseAmount(resp.MakingAmount)
	}

	return domain.PlacedOrder{
		OrderID:       resp.OrderID,
		Status:        resp.Status,
		MatchedShares: matched,
	}, nil
}

// GetBalance returns the USDC balance available for trading. Depending on
// configuration it reads the CLOB collateral balance or the on-chain
// USDC.e balance of the funder wallet.
func (tc *TradingClient) GetBalance(ctx context.Context) (float64, error) {
	if tc.balanceSource == "onchain" && tc.chain != nil {
		return tc.chain.USDCBalance(ctx, tc.auth.Funder())
	}

	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return 0, fmt.Errorf("get balance: creds: %w", err)
	}

	path := fmt.Sprintf("/balance-allowance?asset_type=COLLATERAL&signature_type=%d",
		int(tc.auth.signatureType))

	var resp clobBalanceResponse
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return parseUSDC(resp.Balance), nil
}

// Positions returns the funder wallet's open positions from the Data API.
func (tc *TradingClient) Positions(ctx context.Context) ([]domain.ExternalPosition, error) {
	return tc.auth.FetchPositions(ctx, tc.auth.Funder())
}

// MarketResolution reports whether a market resolved and which outcome won.
func (tc *TradingClient) MarketResolution(ctx context.Context, conditionID string) (domain.Resolution, error) {
	return tc.auth.FetchResolution(ctx, conditionID)
}

// parseUSDC converts a micro-USDC string (e.g., "1000000") to USDC float.
func parseUSDC(s string) float64 {
	if s == "" {
		return 0
	}
	n := new(big.Int)
	n.SetString(s, 10)
	f, _ := new(big.Float).SetInt(n).Float64()
	return f / 1_000_000
}

// parseAmount parses a human-units decimal string ("12.5") as float64.
func parseAmount(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
