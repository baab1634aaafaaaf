package ledger

import (
	"context"
	"testing"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLines(t *testing.T) {
	in := []models.Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 1},
	}
	want := []models.Line{{ProductID: "p1", Quantity: 5}, {ProductID: "p2", Quantity: 1}}
	assert.Equal(t, want, MergeLines(in))

	reordered := []models.Line{in[2], in[1], in[0]}
	got := MergeLines(reordered)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, want, got)
}

func TestMergeLinesDropsNonPositive(t *testing.T) {
	got := MergeLines([]models.Line{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: -2},
		{ProductID: "p2", Quantity: 0},
	})
	assert.Empty(t, got)
}

func TestPrice(t *testing.T) {
	f := testkit.New(t)
	tea := f.Product(t, "Tea", 2.5)
	cake := f.Product(t, "Cake", 4)

	lines, err := Price(context.Background(), f.Repo, f.Restaurant.ID, []models.Line{
		{ProductID: tea.ID, Quantity: 2},
		{ProductID: tea.ID, Quantity: 3},
		{ProductID: cake.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines.Products, 2)
	assert.Equal(t, models.Line{ProductID: tea.ID, Quantity: 5, Price: 12.5}, lines.Products[0])
	assert.Equal(t, models.Line{ProductID: cake.ID, Quantity: 1, Price: 4}, lines.Products[1])
	assert.Equal(t, 16.5, lines.TotalPrice)
	assert.Equal(t, 6, lines.TotalItems)
}

func TestPriceRejectsUnavailable(t *testing.T) {
	f := testkit.New(t)
	p := f.Product(t, "Soup", 5)
	p.Available = false
	require.NoError(t, f.Repo.UpdateProduct(context.Background(), p))

	_, err := Price(context.Background(), f.Repo, f.Restaurant.ID, []models.Line{{ProductID: p.ID, Quantity: 1}})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = Price(context.Background(), f.Repo, "other-restaurant", []models.Line{{ProductID: p.ID, Quantity: 1}})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestSetLine(t *testing.T) {
	lines := []models.Line{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}}

	assert.Equal(t, []models.Line{{ProductID: "a", Quantity: 4}, {ProductID: "b", Quantity: 2}}, setLine(lines, "a", 4))
	assert.Equal(t, []models.Line{{ProductID: "b", Quantity: 2}}, setLine(lines, "a", 0))
	assert.Equal(t, 3, len(setLine(lines, "c", 1)))
}
