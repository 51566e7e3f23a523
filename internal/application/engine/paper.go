package engine

// paper.go — ejecutor simulado para dry run: misma interfaz que el trading
// real, fills completos al precio pedido y balance en memoria.

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

type paperHolding struct {
	conditionID string
	shares      float64
	avgPrice    float64
	lastPrice   float64 // último precio de orden visto, proxy de mark
}

// PaperExecutor implementa ports.OrderExecutor sin tocar el exchange. Las
// órdenes cruzan enteras al precio pedido, el balance vive en memoria y
// nada resuelve: sirve para validar el pipeline completo sin riesgo.
type PaperExecutor struct {
	mu       sync.Mutex
	balance  float64
	holdings map[string]*paperHolding // token ID → holding
}

// NewPaperExecutor crea un ejecutor simulado con el balance inicial dado.
func NewPaperExecutor(balance float64) *PaperExecutor {
	return &PaperExecutor{
		balance:  balance,
		holdings: make(map[string]*paperHolding),
	}
}

// PlaceOrder simula un fill completo. Rechaza compras sin balance y ventas
// de shares que no existen con el mismo error tipado que el exchange real,
// para que la reconciliación del motor se ejercite igual en dry run.
func (p *PaperExecutor) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Side {
	case domain.OrderBuy:
		cost := req.Shares * req.Price
		if cost > p.balance {
			return domain.PlacedOrder{}, &domain.APIError{
				Kind: domain.ErrInsufficientBalance, Msg: "paper: not enough balance",
			}
		}
		h, ok := p.holdings[req.TokenID]
		if !ok {
			h = &paperHolding{conditionID: req.ConditionID}
			p.holdings[req.TokenID] = h
		}
		total := h.shares + req.Shares
		h.avgPrice = (h.avgPrice*h.shares + req.Price*req.Shares) / total
		h.shares = total
		h.lastPrice = req.Price
		p.balance -= cost

	case domain.OrderSell:
		h, ok := p.holdings[req.TokenID]
		if !ok || h.shares < req.Shares {
			return domain.PlacedOrder{}, &domain.APIError{
				Kind: domain.ErrInsufficientBalance, Msg: "paper: not enough balance",
			}
		}
		h.shares -= req.Shares
		h.lastPrice = req.Price
		p.balance += req.Shares * req.Price
		if h.shares <= 0 {
			delete(p.holdings, req.TokenID)
		}
	}

	return domain.PlacedOrder{
		OrderID:       "paper-" + uuid.NewString()[:8],
		Status:        "matched",
		MatchedShares: req.Shares,
	}, nil
}

// GetBalance devuelve el balance simulado.
func (p *PaperExecutor) GetBalance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// Positions devuelve los holdings simulados en el formato del exchange.
func (p *PaperExecutor) Positions(ctx context.Context) ([]domain.ExternalPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.ExternalPosition, 0, len(p.holdings))
	for tokenID, h := range p.holdings {
		out = append(out, domain.ExternalPosition{
			TokenID:     tokenID,
			ConditionID: h.conditionID,
			Shares:      h.shares,
			AvgPrice:    h.avgPrice,
			CurPrice:    h.lastPrice,
		})
	}
	return out, nil
}

// MarketResolution en dry run nunca resuelve: las posiciones simuladas se
// cierran por salida anticipada o quedan abiertas.
func (p *PaperExecutor) MarketResolution(ctx context.Context, conditionID string) (domain.Resolution, error) {
	return domain.Resolution{}, nil
}
