package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/sharpbot/internal/adapters/storage"
	"github.com/alejandrodnm/sharpbot/internal/domain"
)

func makePosition(id, tokenID string) domain.Position {
	return domain.Position{
		ID:          id,
		EventID:     "ev001",
		Sport:       "basketball_nba",
		HomeTeam:    "Los Angeles Lakers",
		AwayTeam:    "Boston Celtics",
		Outcome:     "Lakers",
		TokenID:     tokenID,
		ConditionID: "0xcond001",
		NegRisk:     true,
		Shares:      100,
		AvgPrice:    0.50,
		CostBasis:   50,
		EntryEdge:   0.06,
		OrderID:     "order-abc",
		Status:      domain.StatusOpen,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func newLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	db, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLedger_OpenAndGetByToken(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))

	got, ok, err := db.OpenByToken(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "pos1", got.ID)
	assert.Equal(t, "Lakers", got.Outcome)
	assert.True(t, got.NegRisk)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.InDelta(t, 100, got.Shares, 0.001)
	assert.InDelta(t, 0.50, got.AvgPrice, 0.001)
	assert.InDelta(t, 50, got.CostBasis, 0.001)
	assert.InDelta(t, 0.06, got.EntryEdge, 0.0001)
	assert.Nil(t, got.ResolvedAt)
}

func TestLedger_OpenByToken_Missing(t *testing.T) {
	db := newLedger(t)

	_, ok, err := db.OpenByToken(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_OneOpenRowPerToken(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))

	// Segunda fila open para el mismo token → la rechaza el índice único
	err := db.Open(ctx, makePosition("pos2", "tok1"))
	assert.Error(t, err)
}

func TestLedger_Accumulate(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	require.NoError(t, db.Accumulate(ctx, "pos1", 50, 0.60))

	got, ok, err := db.OpenByToken(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, ok)

	// (100*0.50 + 50*0.60) / 150 = 0.5333…
	assert.InDelta(t, 150, got.Shares, 0.001)
	assert.InDelta(t, 0.5333, got.AvgPrice, 0.001)
	assert.InDelta(t, 80, got.CostBasis, 0.001)
}

func TestLedger_UpdateHoldings(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	require.NoError(t, db.UpdateHoldings(ctx, "pos1", 80, 0.55))

	got, _, err := db.OpenByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.InDelta(t, 80, got.Shares, 0.001)
	assert.InDelta(t, 0.55, got.AvgPrice, 0.001)
	assert.InDelta(t, 44, got.CostBasis, 0.001)
}

func TestLedger_Settle(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	require.NoError(t, db.Settle(ctx, "pos1", domain.StatusWon, 1.0, 50, now))

	// Ya no está open
	_, ok, err := db.OpenByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := db.History(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusWon, history[0].Status)
	assert.InDelta(t, 1.0, history[0].ExitPrice, 0.001)
	assert.InDelta(t, 50, history[0].Profit, 0.001)
	require.NotNil(t, history[0].ResolvedAt)
}

func TestLedger_SettleTerminalRowFails(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	require.NoError(t, db.Settle(ctx, "pos1", domain.StatusSold, 0.70, 20, now))

	// Una fila terminal nunca se reabre ni se re-cierra
	err := db.Settle(ctx, "pos1", domain.StatusWon, 1.0, 50, now)
	assert.Error(t, err)
}

func TestLedger_SettleRejectsNonTerminal(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	err := db.Settle(ctx, "pos1", domain.StatusOpen, 0, 0, time.Now())
	assert.Error(t, err)
}

func TestLedger_OpenPositions(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))
	require.NoError(t, db.Open(ctx, makePosition("pos2", "tok2")))
	require.NoError(t, db.Open(ctx, makePosition("pos3", "tok3")))
	require.NoError(t, db.Settle(ctx, "pos3", domain.StatusLost, 0, -50, time.Now()))

	open, err := db.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestLedger_KnownToken(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx, makePosition("pos1", "tok1")))

	known, err := db.KnownToken(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, known)

	// Sigue siendo conocido tras cerrar: las filas terminales cuentan
	require.NoError(t, db.Settle(ctx, "pos1", domain.StatusLost, 0, -50, time.Now()))
	known, err = db.KnownToken(ctx, "tok1")
	require.NoError(t, err)
	assert.True(t, known)

	known, err = db.KnownToken(ctx, "tok-desconocido")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestLedger_History_Range(t *testing.T) {
	db := newLedger(t)
	ctx := context.Background()

	old := makePosition("pos_old", "tok_old")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, db.Open(ctx, old))
	require.NoError(t, db.Open(ctx, makePosition("pos_new", "tok_new")))

	history, err := db.History(ctx,
		time.Now().UTC().Add(-time.Hour),
		time.Now().UTC().Add(time.Hour),
	)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "pos_new", history[0].ID)
}
