package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/registry"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newService(t *testing.T) (*Service, *testkit.Fixture, *identity.Directory) {
	return newServiceOn(t, repository.NewMemory())
}

func newServiceOn(t *testing.T, repo repository.Repository) (*Service, *testkit.Fixture, *identity.Directory) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	dir, err := identity.NewDirectory(db)
	require.NoError(t, err)

	f := testkit.WithRepo(t, repo)
	return NewService(f.Coord, dir, identity.NewTokens("secret", time.Hour), f.Logger), f, dir
}

func TestLoginAndMe(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)

	d, err := svc.CreateDirector(ctx, f.Restaurant.ID, StaffInput{Login: "boss", Password: "boss-pass"})
	require.NoError(t, err)

	sess, err := svc.Login(ctx, "boss", "boss-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, d.ID, sess.Staff.ID)

	me, err := svc.Me(ctx, sess.Staff.Actor())
	require.NoError(t, err)
	assert.Equal(t, models.RoleDirector, me.Role)

	_, err = svc.CreateDirector(ctx, repository.NewID(), StaffInput{Login: "ghost", Password: "ghost-pass"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteWaiter(t *testing.T) {
	ctx := context.Background()
	svc, f, dir := newService(t)

	w, err := svc.CreateWaiter(ctx, f.Director, StaffInput{Login: "ann", Password: "ann-pass"})
	require.NoError(t, err)
	waiter := w.Actor()

	tbl := f.Table(t, func(tb *models.Table) { tb.WaiterID = waiter.ID })
	require.NoError(t, f.Repo.SaveOrder(ctx, &models.Order{
		ID:           repository.NewID(),
		RestaurantID: f.Restaurant.ID,
		TableID:      tbl.ID,
		WaiterID:     waiter.ID,
		Lines:        models.Lines{Products: []models.Line{}},
	}))
	require.NoError(t, f.Repo.CreateArchiveOrder(ctx, &models.ArchiveOrder{
		ID:           repository.NewID(),
		RestaurantID: f.Restaurant.ID,
		TableID:      tbl.ID,
		WaiterID:     waiter.ID,
		TotalPrice:   12,
		CreatedAt:    testkit.Epoch,
	}))

	err = svc.DeleteWaiter(ctx, f.Director, waiter.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict))
	_, err = dir.Get(ctx, waiter.ID)
	require.NoError(t, err)

	cur := f.Reload(t, tbl.ID)
	cur.WaiterID = ""
	require.NoError(t, f.Repo.ReplaceTable(ctx, cur))

	other := models.Actor{ID: repository.NewID(), Role: models.RoleDirector, RestaurantID: repository.NewID()}
	assert.True(t, apperr.Is(svc.DeleteWaiter(ctx, other, waiter.ID), apperr.NotFound))

	require.NoError(t, svc.DeleteWaiter(ctx, f.Director, waiter.ID))

	orders, err := f.Repo.ListOrders(ctx, repository.OrderQuery{RestaurantID: f.Restaurant.ID})
	require.NoError(t, err)
	assert.Empty(t, orders)
	archives, err := f.Repo.ListArchiveOrders(ctx, repository.ArchiveQuery{RestaurantID: f.Restaurant.ID})
	require.NoError(t, err)
	assert.Empty(t, archives)
	_, err = dir.Get(ctx, waiter.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteWaiterReleasesAcceptedCall(t *testing.T) {
	ctx := context.Background()
	svc, f, dir := newService(t)
	tables := registry.NewService(f.Coord, dir, "http://localhost", f.Logger)

	w, err := svc.CreateWaiter(ctx, f.Director, StaffInput{Login: "ann", Password: "ann-pass"})
	require.NoError(t, err)
	now := testkit.Epoch
	tbl := f.Table(t, func(tb *models.Table) {
		tb.Occupied, tb.Code = true, "4821"
		tb.Call, tb.CallTime = models.CallCalling, &now
	})
	_, err = tables.AcceptCall(ctx, w.Actor(), tbl.ID)
	require.NoError(t, err)
	f.Events.Reset()

	require.NoError(t, svc.DeleteWaiter(ctx, f.Director, w.ID))

	got := f.Reload(t, tbl.ID)
	assert.Equal(t, models.CallNone, got.Call)
	assert.Empty(t, got.CallID)
	assert.Nil(t, got.CallTime)
	assert.ElementsMatch(t,
		[]string{notify.Table(tbl.ID), notify.Waiters(f.Restaurant.ID), notify.Directors(f.Restaurant.ID)},
		f.Events.Topics(notify.EventCallDeclined))

	other := f.Waiter()
	occupied, err := tables.OccupyTable(ctx, other, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, occupied.WaiterID)
}

func TestDeleteWaiterCollidesWithAssignment(t *testing.T) {
	ctx := context.Background()
	writes := testkit.NewWriteLog(repository.NewMemory())
	svc, f, dir := newServiceOn(t, writes)
	tables := registry.NewService(f.Coord, dir, "http://localhost", f.Logger)

	w, err := svc.CreateWaiter(ctx, f.Director, StaffInput{Login: "ann", Password: "ann-pass"})
	require.NoError(t, err)
	tbl := f.Table(t, nil)
	calling := testkit.Epoch
	other := f.Table(t, func(tb *models.Table) {
		tb.Occupied, tb.Code = true, "4821"
		tb.Call, tb.CallTime = models.CallCalling, &calling
	})
	key := "staff/" + w.ID
	writes.Take()

	// The delete and each assignment below start from a state where the
	// waiter serves nothing, so only a shared write keeps them apart.
	require.NoError(t, svc.DeleteWaiter(ctx, f.Director, w.ID))
	assert.Contains(t, writes.Take(), key)

	_, err = tables.OccupyTable(ctx, w.Actor(), tbl.ID)
	require.NoError(t, err)
	assert.Contains(t, writes.Take(), key)

	_, err = tables.AcceptCall(ctx, w.Actor(), other.ID)
	require.NoError(t, err)
	assert.Contains(t, writes.Take(), key)
}

func TestDeleteRestaurantCascades(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)

	_, err := svc.CreateDirector(ctx, f.Restaurant.ID, StaffInput{Login: "boss", Password: "boss-pass"})
	require.NoError(t, err)
	f.Table(t, nil)
	f.Product(t, "Tea", 2)

	keep, err := svc.CreateRestaurant(ctx, RestaurantInput{Name: ptr("Other")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRestaurant(ctx, f.Restaurant.ID))

	_, err = svc.GetRestaurant(ctx, f.Restaurant.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	tables, err := f.Repo.FindTables(ctx, repository.TableQuery{RestaurantID: f.Restaurant.ID})
	require.NoError(t, err)
	assert.Empty(t, tables)
	products, err := f.Repo.FindProducts(ctx, repository.ProductQuery{RestaurantID: f.Restaurant.ID})
	require.NoError(t, err)
	assert.Empty(t, products)
	_, err = svc.Login(ctx, "boss", "boss-pass")
	assert.True(t, apperr.Is(err, apperr.Unauthorized))

	all, err := svc.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)
}

func TestRestaurantValidation(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)

	_, err := svc.CreateRestaurant(ctx, RestaurantInput{})
	assert.True(t, apperr.Is(err, apperr.Validation))

	_, err = svc.UpdateRestaurant(ctx, f.Restaurant.ID, RestaurantInput{Name: ptr("  ")})
	assert.True(t, apperr.Is(err, apperr.Validation))

	r, err := svc.UpdateRestaurant(ctx, f.Restaurant.ID, RestaurantInput{Name: ptr(" Cafe "), Address: ptr("Main st 1")})
	require.NoError(t, err)
	assert.Equal(t, "Cafe", r.Name)
	assert.Equal(t, "Main st 1", r.Address)
}

func ptr[T any](v T) *T { return &v }
