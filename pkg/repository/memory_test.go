package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(restaurantID string) *models.Table {
	return &models.Table{ID: NewID(), RestaurantID: restaurantID, Code: models.DefaultCode, Call: models.CallNone}
}

func TestMemoryRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := newTable("r1")
	require.NoError(t, m.CreateTable(ctx, tbl))

	boom := errors.New("boom")
	err := m.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		cur, err := tx.GetTable(ctx, tbl.ID)
		require.NoError(t, err)
		cur.Occupied = true
		require.NoError(t, tx.ReplaceTable(ctx, cur))
		require.NoError(t, tx.SaveOrder(ctx, &models.Order{ID: NewID(), TableID: tbl.ID, RestaurantID: "r1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.GetTable(ctx, tbl.ID)
	require.NoError(t, err)
	assert.False(t, got.Occupied)
	assert.Equal(t, int64(1), got.Version)

	orders, err := m.ListOrders(ctx, OrderQuery{TableIDs: []string{tbl.ID}})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMemoryRunInTxCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := newTable("r1")
	require.NoError(t, m.CreateTable(ctx, tbl))

	err := m.RunInTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.RunInTx(ctx, func(ctx context.Context, inner Repository) error {
			return inner.DeleteTables(ctx, []string{tbl.ID})
		})
	})
	require.NoError(t, err)

	_, err = m.GetTable(ctx, tbl.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReplaceTableStale(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := newTable("r1")
	require.NoError(t, m.CreateTable(ctx, tbl))

	a, _ := m.GetTable(ctx, tbl.ID)
	b, _ := m.GetTable(ctx, tbl.ID)
	require.NoError(t, m.ReplaceTable(ctx, a))
	assert.Equal(t, int64(2), a.Version)
	assert.ErrorIs(t, m.ReplaceTable(ctx, b), ErrStale)
}

func TestMemoryEmptyFilterMatchesNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateTable(ctx, newTable("r1")))
	require.NoError(t, m.CreateTable(ctx, newTable("r1")))

	all, err := m.FindTables(ctx, TableQuery{RestaurantID: "r1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := m.FindTables(ctx, TableQuery{RestaurantID: "r1", IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, m.SaveOrder(ctx, &models.Order{ID: NewID(), TableID: all[0].ID, RestaurantID: "r1"}))
	require.NoError(t, m.DeleteOrders(ctx, OrderQuery{TableIDs: []string{}}))
	orders, err := m.ListOrders(ctx, OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMemoryOneOrderPerTableAndWaiter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveActiveOrder(ctx, &models.ActiveOrder{ID: NewID(), TableID: "t1", WaiterID: "w1"}))
	err := m.SaveActiveOrder(ctx, &models.ActiveOrder{ID: NewID(), TableID: "t1", WaiterID: "w1"})
	assert.ErrorIs(t, err, ErrStale)
	require.NoError(t, m.SaveActiveOrder(ctx, &models.ActiveOrder{ID: NewID(), TableID: "t1", WaiterID: "w2"}))
}

func TestMemoryProductLineFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveOrder(ctx, &models.Order{ID: NewID(), TableID: "t1", Lines: models.Lines{
		Products: []models.Line{{ProductID: "p1", Quantity: 1}},
	}}))
	require.NoError(t, m.SaveOrder(ctx, &models.Order{ID: NewID(), TableID: "t2", Lines: models.Lines{
		Products: []models.Line{{ProductID: "p2", Quantity: 1}},
	}}))

	got, err := m.ListOrders(ctx, OrderQuery{ProductIDs: []string{"p1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].TableID)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrStale
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrStale
	})
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, maxAttempts, calls)
}

func TestDescribe(t *testing.T) {
	assert.NoError(t, Describe(nil, "table"))
	assert.True(t, apperr.Is(Describe(ErrNotFound, "table"), apperr.NotFound))
	assert.True(t, apperr.Is(Describe(ErrStale, "table"), apperr.Conflict))

	forbidden := apperr.Forbiddenf("nope")
	assert.Same(t, forbidden, Describe(forbidden, "table"))
	assert.Equal(t, apperr.Internal, apperr.KindOf(Describe(errors.New("io"), "table")))
}
