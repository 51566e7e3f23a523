package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// mapGammaMarkets convierte los DTOs de Gamma a domain.Market, descartando
// los que no tienen exactamente dos tokens utilizables.
func mapGammaMarkets(raw []gammaMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, gm := range raw {
		m, ok := mapGammaMarket(gm)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
// Devuelve false si el mercado no trae dos tokens con sus dos outcomes.
func mapGammaMarket(gm gammaMarket) (domain.Market, bool) {
	tokenIDs := decodeStringArray(gm.ClobTokenIDs)
	outcomes := decodeStringArray(gm.Outcomes)
	prices := decodeStringArray(gm.OutcomePrices)
	if len(tokenIDs) != 2 || len(outcomes) != 2 {
		return domain.Market{}, false
	}

	m := domain.Market{
		ConditionID: gm.ConditionID,
		QuestionID:  gm.QuestionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		NegRisk:     gm.NegRisk,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}

	for i := 0; i < 2; i++ {
		m.Tokens[i] = domain.Token{
			TokenID: tokenIDs[i],
			Outcome: outcomes[i],
		}
		if i < len(prices) {
			if p, err := strconv.ParseFloat(prices[i], 64); err == nil {
				m.Tokens[i].Price = p
			}
		}
	}

	m.GameTime = parseGammaTime(gm.GameStartTime)
	m.EndDate = parseGammaTime(gm.EndDateISO)

	return m, true
}

// decodeStringArray decodifica los campos doblemente codificados de Gamma:
// un string JSON que contiene un array JSON de strings.
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// parseGammaTime intenta los formatos de fecha que usa Gamma.
// Polymarket mezcla varios según el campo y la antigüedad del mercado.
func parseGammaTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05+00",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapResolution traduce el estado de un mercado CLOB a domain.Resolution.
// Un mercado cerrado sin flag winner en ningún token se reporta resuelto
// con ganador desconocido.
func mapResolution(cm clobMarket) domain.Resolution {
	res := domain.Resolution{Resolved: cm.Closed}
	for _, t := range cm.Tokens {
		if t.Winner {
			res.Resolved = true
			res.WinningOutcome = t.Outcome
			break
		}
	}
	return res
}

// mapPositions convierte las posiciones de la Data API al modelo de dominio.
func mapPositions(raw []rawDataPosition) []domain.ExternalPosition {
	out := make([]domain.ExternalPosition, 0, len(raw))
	for _, rp := range raw {
		size, _ := rp.Size.Float64()
		avg, _ := rp.AvgPrice.Float64()
		cur, _ := rp.CurPrice.Float64()
		out = append(out, domain.ExternalPosition{
			TokenID:     rp.Asset,
			ConditionID: rp.ConditionID,
			Title:       rp.Title,
			Outcome:     rp.Outcome,
			Shares:      size,
			AvgPrice:    avg,
			CurPrice:    cur,
		})
	}
	return out
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		ob := domain.OrderBook{
			TokenID: r.AssetID,
			Bids:    mapBookEntries(r.Bids, false),
			Asks:    mapBookEntries(r.Asks, true),
		}
		result[r.AssetID] = ob
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}
