// Package testkit builds in-memory service stacks for tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/serial"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Epoch is the fixed time the fixture clock reports.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type Fixture struct {
	Repo   repository.Repository
	Events *notify.Recorder
	Coord  *lifecycle.Coordinator
	Logger *zap.Logger

	Restaurant *models.Restaurant
	Director   models.Actor
	Category   *models.Category
	Type       *models.TableType
}

// New returns a fixture over a fresh memory store, seeded with one
// restaurant, one table type and one category.
func New(t testing.TB) *Fixture {
	return WithRepo(t, repository.NewMemory())
}

// WithRepo is New over repo. repo must be empty.
func WithRepo(t testing.TB, repo repository.Repository) *Fixture {
	t.Helper()
	logger := zap.NewNop()
	serializer := serial.NewActorSerializer(logger, 5*time.Second)
	t.Cleanup(func() { serializer.Close() })

	events := &notify.Recorder{}
	coord := lifecycle.NewCoordinator(repo, serializer, events, logger).
		WithClock(func() time.Time { return Epoch })

	f := &Fixture{Repo: repo, Events: events, Coord: coord, Logger: logger}
	ctx := context.Background()

	f.Restaurant = &models.Restaurant{ID: repository.NewID(), Name: "Bistro", CreatedAt: Epoch, UpdatedAt: Epoch}
	require.NoError(t, repo.CreateRestaurant(ctx, f.Restaurant))
	f.Director = models.Actor{ID: repository.NewID(), Role: models.RoleDirector, RestaurantID: f.Restaurant.ID}

	f.Type = &models.TableType{ID: repository.NewID(), Name: "Hall", RestaurantID: f.Restaurant.ID}
	require.NoError(t, repo.CreateTableType(ctx, f.Type))

	f.Category = &models.Category{ID: repository.NewID(), Name: "Drinks", RestaurantID: f.Restaurant.ID}
	require.NoError(t, repo.CreateCategory(ctx, f.Category))
	return f
}

// Waiter returns a waiter actor of the fixture restaurant.
func (f *Fixture) Waiter() models.Actor {
	return models.Actor{ID: repository.NewID(), Role: models.RoleWaiter, RestaurantID: f.Restaurant.ID}
}

// Table stores a table with its basket. edit may adjust the table first.
func (f *Fixture) Table(t testing.TB, edit func(*models.Table)) *models.Table {
	t.Helper()
	tbl := &models.Table{
		ID:           repository.NewID(),
		Name:         "T" + repository.NewID()[18:],
		TypeID:       f.Type.ID,
		RestaurantID: f.Restaurant.ID,
		Code:         models.DefaultCode,
		Call:         models.CallNone,
		CreatedAt:    Epoch,
		UpdatedAt:    Epoch,
	}
	if edit != nil {
		edit(tbl)
	}
	ctx := context.Background()
	require.NoError(t, f.Repo.CreateTable(ctx, tbl))
	require.NoError(t, f.Repo.CreateBasket(ctx, &models.Basket{
		ID:           repository.NewID(),
		RestaurantID: tbl.RestaurantID,
		TableID:      tbl.ID,
		Lines:        models.Lines{Products: []models.Line{}},
	}))
	return tbl
}

// Product stores an available product of the fixture category.
func (f *Fixture) Product(t testing.TB, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:           repository.NewID(),
		Name:         name,
		Price:        price,
		Available:    true,
		CategoryID:   f.Category.ID,
		Unit:         "pcs",
		RestaurantID: f.Restaurant.ID,
	}
	require.NoError(t, f.Repo.CreateProduct(context.Background(), p))
	return p
}

// Reload reads the table back from the store.
func (f *Fixture) Reload(t testing.TB, id string) *models.Table {
	t.Helper()
	tbl, err := f.Repo.GetTable(context.Background(), id)
	require.NoError(t, err)
	return tbl
}

// Seated returns an edit func for an occupied table served by waiter.
func Seated(waiter models.Actor, code string) func(*models.Table) {
	return func(t *models.Table) {
		t.Occupied = true
		t.Code = code
		t.WaiterID = waiter.ID
		t.CallID = waiter.ID
	}
}
