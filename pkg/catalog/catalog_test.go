package catalog

import (
	"context"
	"testing"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/ledger"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func orderFor(t *testing.T, f *testkit.Fixture, tbl *models.Table, p *models.Product) {
	require.NoError(t, f.Repo.SaveOrder(context.Background(), &models.Order{
		ID:           repository.NewID(),
		RestaurantID: tbl.RestaurantID,
		TableID:      tbl.ID,
		WaiterID:     tbl.WaiterID,
		Lines: models.Lines{
			Products:   []models.Line{{ProductID: p.ID, Quantity: 1, Price: p.Price}},
			TotalPrice: p.Price,
			TotalItems: 1,
		},
	}))
}

func TestDeleteCategoryGuardedUntilClose(t *testing.T) {
	ctx := context.Background()
	f := testkit.New(t)
	svc := NewService(f.Coord, f.Logger)
	waiter := f.Waiter()
	tea := f.Product(t, "Tea", 2)
	seated := f.Table(t, testkit.Seated(waiter, "4821"))
	orderFor(t, f, seated, tea)

	idle := f.Table(t, nil)
	b, err := f.Repo.GetBasket(ctx, idle.ID)
	require.NoError(t, err)
	b.Lines = models.Lines{Products: []models.Line{{ProductID: tea.ID, Quantity: 2, Price: 4}}, TotalPrice: 4, TotalItems: 2}
	require.NoError(t, f.Repo.ReplaceBasket(ctx, b))

	err = svc.DeleteCategory(ctx, f.Director, f.Category.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	_, err = f.Repo.GetProduct(ctx, f.Restaurant.ID, tea.ID)
	require.NoError(t, err)

	_, err = svc.UpdateCategory(ctx, f.Director, f.Category.ID, CategoryInput{Name: ptr("Hot drinks")})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	_, err = f.Coord.CloseTable(ctx, waiter, seated.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, f.Director, f.Category.ID))

	_, err = f.Repo.GetCategory(ctx, f.Restaurant.ID, f.Category.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.Repo.GetProduct(ctx, f.Restaurant.ID, tea.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	b, err = f.Repo.GetBasket(ctx, idle.ID)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Zero(t, b.TotalPrice)

	archives, err := f.Repo.ListArchiveOrders(ctx, repository.ArchiveQuery{TableID: seated.ID})
	require.NoError(t, err)
	assert.Len(t, archives, 1)
	assert.Len(t, f.Events.Named(notify.EventCategoryDeleted), 3)
}

func TestDeleteProductReleasesIdleOrders(t *testing.T) {
	ctx := context.Background()
	f := testkit.New(t)
	svc := NewService(f.Coord, f.Logger)
	tea := f.Product(t, "Tea", 2)
	idle := f.Table(t, nil)
	orderFor(t, f, idle, tea)

	require.NoError(t, svc.DeleteProduct(ctx, f.Director, tea.ID))
	orders, err := f.Repo.ListOrders(ctx, repository.OrderQuery{TableIDs: []string{idle.ID}})
	require.NoError(t, err)
	assert.Empty(t, orders)

	err = svc.DeleteProduct(ctx, f.Director, tea.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestUpdateProductGuard(t *testing.T) {
	ctx := context.Background()
	f := testkit.New(t)
	svc := NewService(f.Coord, f.Logger)
	tea := f.Product(t, "Tea", 2)
	orderFor(t, f, f.Table(t, testkit.Seated(f.Waiter(), "4821")), tea)

	_, err := svc.UpdateProduct(ctx, f.Director, tea.ID, ProductInput{Price: ptr(3.0)})
	assert.True(t, apperr.Is(err, apperr.Conflict))

	cake := f.Product(t, "Cake", 5)
	got, err := svc.UpdateProduct(ctx, f.Director, cake.ID, ProductInput{Price: ptr(6.0), Available: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.Price)
	assert.False(t, got.Available)

	_, err = svc.UpdateProduct(ctx, f.Director, cake.ID, ProductInput{Price: ptr(-1.0)})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	f := testkit.New(t)
	svc := NewService(f.Coord, f.Logger)

	_, err := svc.CreateProduct(ctx, f.Director, ProductInput{Name: ptr("Soup"), Price: ptr(4.0)})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.CreateProduct(ctx, f.Director, ProductInput{Name: ptr("Soup"), Price: ptr(4.0), CategoryID: ptr(repository.NewID())})
	assert.True(t, apperr.Is(err, apperr.Validation))

	p, err := svc.CreateProduct(ctx, f.Director, ProductInput{Name: ptr("Soup"), Price: ptr(4.0), CategoryID: &f.Category.ID})
	require.NoError(t, err)
	assert.True(t, p.Available)
	assert.Equal(t, models.NoPhoto, p.Photo)
	assert.ElementsMatch(t, audience(f.Restaurant.ID), f.Events.Topics(notify.EventNewProduct))

	available, err := svc.ListProducts(ctx, f.Restaurant.ID, ProductFilter{Available: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, available, 1)

	menu, err := svc.ListCategories(ctx, f.Restaurant.ID)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Len(t, menu[0].Products, 1)
}

func TestCreateCategoryDefaultsPhoto(t *testing.T) {
	f := testkit.New(t)
	svc := NewService(f.Coord, f.Logger)

	c, err := svc.CreateCategory(context.Background(), f.Director, CategoryInput{Name: ptr(" Desserts ")})
	require.NoError(t, err)
	assert.Equal(t, "Desserts", c.Name)
	assert.Equal(t, models.NoPhoto, c.Photo)

	_, err = svc.CreateCategory(context.Background(), models.Actor{Role: models.RoleAdmin}, CategoryInput{Name: ptr("X")})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestGuardedWritesCollideWithOrderEdits(t *testing.T) {
	ctx := context.Background()
	writes := testkit.NewWriteLog(repository.NewMemory())
	f := testkit.WithRepo(t, writes)
	svc := NewService(f.Coord, f.Logger)
	orders := ledger.NewService(f.Coord, f.Logger)
	soup := f.Product(t, "Soup", 4)
	waiter := f.Waiter()
	tbl := f.Table(t, testkit.Seated(waiter, "4821"))
	key := "product/" + soup.ID

	// Each catalog write runs against a state where no order holds soup, the
	// same state a concurrent order edit starts from.
	_, err := svc.UpdateProduct(ctx, f.Director, soup.ID, ProductInput{Price: ptr(5.0)})
	require.NoError(t, err)
	assert.Contains(t, writes.Take(), key)

	_, err = svc.UpdateCategory(ctx, f.Director, f.Category.ID, CategoryInput{Name: ptr("Mains")})
	require.NoError(t, err)
	assert.Contains(t, writes.Take(), key)

	_, err = orders.AddActiveLine(ctx, waiter, ledger.LineInput{TableID: tbl.ID, ProductID: soup.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Contains(t, writes.Take(), key)

	// Once the edit is committed the guard sees it.
	assert.True(t, apperr.Is(svc.DeleteProduct(ctx, f.Director, soup.ID), apperr.Conflict))
	writes.Take()

	spare := f.Product(t, "Bread", 1)
	require.NoError(t, svc.DeleteProduct(ctx, f.Director, spare.ID))
	assert.Contains(t, writes.Take(), "product/"+spare.ID)
}
