package polymarket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/sharpbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/sharpbot/internal/domain"
)

func newTestClient(srv *httptest.Server) *polymarket.Client {
	return polymarket.NewClient(srv.URL, srv.URL, srv.URL, nil)
}

const orderBooksFixture = `[
	{
		"asset_id": "token_lakers_001",
		"bids": [
			{"price": "0.68", "size": "150"},
			{"price": "0.70", "size": "200"}
		],
		"asks": [
			{"price": "0.74", "size": "80"},
			{"price": "0.72", "size": "120"}
		]
	},
	{
		"asset_id": "token_celtics_001",
		"bids": [
			{"price": "0.27", "size": "300"}
		],
		"asks": [
			{"price": "0.29", "size": "250"}
		]
	}
]`

func TestFetchOrderBooks_Batch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/books", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(orderBooksFixture))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	books, err := client.FetchOrderBooks(context.Background(), []string{"token_lakers_001", "token_celtics_001"})

	require.NoError(t, err)
	require.Len(t, books, 2)

	lakers, ok := books["token_lakers_001"]
	require.True(t, ok)
	// Bids ordenados de mayor a menor, asks de menor a mayor
	assert.InDelta(t, 0.70, lakers.BestBid(), 0.001)
	assert.InDelta(t, 0.72, lakers.BestAsk(), 0.001)
	assert.InDelta(t, 0.71, lakers.Midpoint(), 0.001)
	assert.InDelta(t, 0.02, lakers.Spread(), 0.001)
	// 0.72×120 + 0.74×80 dentro de la banda de 2¢ sobre el mejor ask
	assert.InDelta(t, 145.6, lakers.AskDepthUSDC(0.02), 0.01)
	// 0.70×200 + 0.68×150 dentro de la banda de 2¢ bajo el mejor bid
	assert.InDelta(t, 242.0, lakers.BidDepthUSDC(0.02), 0.01)

	celtics, ok := books["token_celtics_001"]
	require.True(t, ok)
	assert.InDelta(t, 0.27, celtics.BestBid(), 0.001)
	assert.InDelta(t, 0.29, celtics.BestAsk(), 0.001)
}

func TestFetchOrderBooks_BatchSplitting(t *testing.T) {
	// Los batches se piden en paralelo: contador atómico.
	var callCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		// Devuelve array vacío para simplificar
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]any{})
	}))
	defer srv.Close()

	client := newTestClient(srv)

	// 25 token_ids → debe hacer 2 requests (batch de 20 + batch de 5)
	tokenIDs := make([]string, 25)
	for i := range tokenIDs {
		tokenIDs[i] = "token_" + string(rune('a'+i%26))
	}

	_, err := client.FetchOrderBooks(context.Background(), tokenIDs)
	require.NoError(t, err)
	assert.Equal(t, int32(2), callCount.Load(), "debe hacer 2 requests batch para 25 tokens")
}

func TestFetchOrderBooks_ShortRetryBudget(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.FetchOrderBooks(context.Background(), []string{"token_lakers_001"})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "el pricing corta tras un solo reintento")
}

func TestFetchResolution_Winner(t *testing.T) {
	fixture := `{
		"condition_id": "0xcond001",
		"question": "Lakers vs. Celtics",
		"tokens": [
			{"token_id": "token_lakers_001", "outcome": "Lakers", "price": 1.0, "winner": true},
			{"token_id": "token_celtics_001", "outcome": "Celtics", "price": 0.0, "winner": false}
		],
		"active": false,
		"closed": true
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/0xcond001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	res, err := client.FetchResolution(context.Background(), "0xcond001")

	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, "Lakers", res.WinningOutcome)
}

func TestFetchResolution_OpenMarket(t *testing.T) {
	fixture := `{
		"condition_id": "0xcond002",
		"tokens": [
			{"token_id": "t1", "outcome": "Lakers", "price": 0.7, "winner": false},
			{"token_id": "t2", "outcome": "Celtics", "price": 0.3, "winner": false}
		],
		"active": true,
		"closed": false
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	res, err := client.FetchResolution(context.Background(), "0xcond002")

	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Empty(t, res.WinningOutcome)
}

func TestFetchResolution_NotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.FetchResolution(context.Background(), "0xmissing")

	require.Error(t, err)
	assert.Equal(t, domain.ErrNotFound, domain.KindOf(err))
	assert.Equal(t, 1, calls, "los 404 no se reintentan")
}
