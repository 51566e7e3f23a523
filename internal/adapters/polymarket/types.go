package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// clobMarket es la respuesta de GET /markets/{condition_id}.
// El array de tokens trae el flag winner cuando el mercado resolvió.
type clobMarket struct {
	ConditionID string      `json:"condition_id"`
	QuestionID  string      `json:"question_id"`
	Question    string      `json:"question"`
	Tokens      []clobToken `json:"tokens"`
	NegRisk     bool        `json:"neg_risk"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
}

// clobToken representa un token (un resultado) en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// clobBalanceResponse es la respuesta de GET /balance-allowance.
type clobBalanceResponse struct {
	Balance string `json:"balance"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket es un mercado deportivo según Gamma. Varios campos llegan
// doblemente codificados: clobTokenIds, outcomes y outcomePrices son
// strings JSON que contienen arrays JSON.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	QuestionID    string      `json:"questionID"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	EndDateISO    string      `json:"endDateIso"`
	GameStartTime string      `json:"gameStartTime"`
	ClobTokenIDs  string      `json:"clobTokenIds"`
	Outcomes      string      `json:"outcomes"`
	OutcomePrices string      `json:"outcomePrices"`
	Volume        json.Number `json:"volume"`
	NegRisk       bool        `json:"negRisk"`
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}

// --- Data API ---

// rawDataPosition es una posición según GET /positions de la Data API.
type rawDataPosition struct {
	Asset       string      `json:"asset"`
	ConditionID string      `json:"conditionId"`
	Title       string      `json:"title"`
	Outcome     string      `json:"outcome"`
	Size        json.Number `json:"size"`
	AvgPrice    json.Number `json:"avgPrice"`
	CurPrice    json.Number `json:"curPrice"`
	Redeemable  bool        `json:"redeemable"`
}
