package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staffMap map[string]*identity.Staff

func (m staffMap) Get(ctx context.Context, id string) (*identity.Staff, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return nil, apperr.NotFoundf("staff member not found")
}

func newService(t *testing.T) (*Service, *testkit.Fixture, staffMap) {
	f := testkit.New(t)
	staff := staffMap{}
	return NewService(f.Coord, staff, "https://dine.example.com/", f.Logger), f, staff
}

func (m staffMap) add(a models.Actor) models.Actor {
	m[a.ID] = &identity.Staff{ID: a.ID, Role: a.Role, RestaurantID: a.RestaurantID}
	return a
}

func TestSetSessionCode(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, nil)

	_, err := svc.SetSessionCode(ctx, f.Director, tbl.ID, "12a4")
	assert.True(t, apperr.Is(err, apperr.Validation))

	got, err := svc.SetSessionCode(ctx, f.Director, tbl.ID, "4821")
	require.NoError(t, err)
	assert.True(t, got.Occupied)
	assert.Equal(t, "4821", f.Reload(t, tbl.ID).Code)

	_, err = svc.SetSessionCode(ctx, f.Director, tbl.ID, "1111")
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.Equal(t, "4821", f.Reload(t, tbl.ID).Code)
}

func TestJoinSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, testkit.Seated(f.Waiter(), "4821"))
	before := f.Reload(t, tbl.ID)

	first, err := svc.JoinSession(ctx, tbl.ID, "4821")
	require.NoError(t, err)
	second, err := svc.JoinSession(ctx, tbl.ID, "4821")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, before, f.Reload(t, tbl.ID))
	assert.Empty(t, f.Events.Events())

	_, err = svc.JoinSession(ctx, tbl.ID, "0000")
	assert.True(t, apperr.Is(err, apperr.Unauthorized))

	_, err = svc.JoinSession(ctx, repository.NewID(), "4821")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestJoinSessionUnoccupied(t *testing.T) {
	svc, f, _ := newService(t)
	tbl := f.Table(t, nil)

	_, err := svc.JoinSession(context.Background(), tbl.ID, models.DefaultCode)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestOccupiedTableCannotBeEdited(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, testkit.Seated(f.Waiter(), "4821"))
	name := "Terrace"

	_, err := svc.UpdateTable(ctx, f.Director, tbl.ID, TableInput{Name: &name})
	assert.True(t, apperr.Is(err, apperr.Conflict))
	assert.True(t, apperr.Is(svc.DeleteTable(ctx, f.Director, tbl.ID), apperr.Conflict))
	assert.Equal(t, tbl.Name, f.Reload(t, tbl.ID).Name)

	_, err = f.Coord.CloseTable(ctx, f.Director, tbl.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateTable(ctx, f.Director, tbl.ID, TableInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Terrace", updated.Name)
	require.NoError(t, svc.DeleteTable(ctx, f.Director, tbl.ID))
	_, err = f.Repo.GetTable(ctx, tbl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOccupyKeepsDefaultCode(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, nil)

	got, err := svc.OccupyTable(ctx, f.Waiter(), tbl.ID)
	require.NoError(t, err)
	assert.True(t, got.Occupied)
	assert.Equal(t, models.DefaultCode, got.Code)

	_, err = svc.JoinSession(ctx, tbl.ID, models.DefaultCode)
	assert.NoError(t, err)
	_, err = svc.SetSessionCode(ctx, f.Director, tbl.ID, "4821")
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestCallWaiter(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, func(tb *models.Table) { tb.Occupied, tb.Code = true, "4821" })

	_, err := svc.CallWaiter(ctx, tbl.ID, "1111")
	assert.True(t, apperr.Is(err, apperr.Unauthorized))

	got, err := svc.CallWaiter(ctx, tbl.ID, "4821")
	require.NoError(t, err)
	assert.Equal(t, models.CallCalling, got.Call)
	require.NotNil(t, got.CallTime)
	assert.Equal(t, testkit.Epoch, *got.CallTime)

	assert.ElementsMatch(t,
		[]string{notify.Waiters(f.Restaurant.ID), notify.Directors(f.Restaurant.ID)},
		f.Events.Topics(notify.EventCallWaiter))
	assert.Equal(t, []string{notify.Table(tbl.ID)}, f.Events.Topics(notify.EventActiveCall))
}

func TestConcurrentAcceptCall(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	now := testkit.Epoch
	tbl := f.Table(t, func(tb *models.Table) {
		tb.Occupied, tb.Code = true, "4821"
		tb.Call, tb.CallTime = models.CallCalling, &now
	})

	waiters := []models.Actor{f.Waiter(), f.Waiter()}
	errs := make([]error, len(waiters))
	var wg sync.WaitGroup
	for i, w := range waiters {
		wg.Add(1)
		go func(i int, w models.Actor) {
			defer wg.Done()
			_, errs[i] = svc.AcceptCall(ctx, w, tbl.ID)
		}(i, w)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.Conflict), err.Error())
	}
	assert.Equal(t, 1, winners)

	got := f.Reload(t, tbl.ID)
	assert.Equal(t, models.CallAccepted, got.Call)
	assert.Contains(t, []string{waiters[0].ID, waiters[1].ID}, got.CallID)
	assert.Len(t, f.Events.Named(notify.EventCallAccepted), 3)
}

func TestAcceptCallWithoutCall(t *testing.T) {
	svc, f, _ := newService(t)
	tbl := f.Table(t, nil)

	_, err := svc.AcceptCall(context.Background(), f.Waiter(), tbl.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestDeclineCall(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	waiter := f.Waiter()
	now := testkit.Epoch
	tbl := f.Table(t, func(tb *models.Table) {
		tb.Occupied, tb.Code = true, "4821"
		tb.Call, tb.CallTime = models.CallCalling, &now
	})
	_, err := svc.AcceptCall(ctx, waiter, tbl.ID)
	require.NoError(t, err)

	_, err = svc.DeclineCall(ctx, f.Waiter(), tbl.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	got, err := svc.DeclineCall(ctx, waiter, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallNone, got.Call)
	assert.Nil(t, got.CallTime)
	assert.Empty(t, got.CallID)
}

func TestOccupyAdoptsUnassignedOrders(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, func(tb *models.Table) { tb.Occupied, tb.Code = true, "4821" })
	require.NoError(t, f.Repo.SaveActiveOrder(ctx, &models.ActiveOrder{
		ID: repository.NewID(), RestaurantID: tbl.RestaurantID, TableID: tbl.ID,
		Lines: models.Lines{Products: []models.Line{{ProductID: "p", Quantity: 1, Price: 3}}, TotalPrice: 3, TotalItems: 1},
	}))
	waiter := f.Waiter()

	got, err := svc.OccupyTable(ctx, waiter, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, waiter.ID, got.WaiterID)
	assert.Equal(t, waiter.ID, got.CallID)

	a, err := f.Repo.GetActiveOrder(ctx, tbl.ID, waiter.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, a.TotalPrice)
	_, err = f.Repo.GetActiveOrder(ctx, tbl.ID, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.OccupyTable(ctx, f.Waiter(), tbl.ID)
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestListCalls(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	me, other := f.Waiter(), f.Waiter()
	now := testkit.Epoch

	open := f.Table(t, func(tb *models.Table) { tb.Call, tb.CallTime = models.CallCalling, &now })
	mine := f.Table(t, func(tb *models.Table) { tb.Call, tb.CallID = models.CallAccepted, me.ID })
	f.Table(t, func(tb *models.Table) { tb.Call, tb.CallID = models.CallAccepted, other.ID })
	f.Table(t, func(tb *models.Table) { tb.Call, tb.CallID = models.CallCalling, other.ID })

	calls, err := svc.ListCalls(ctx, me)
	require.NoError(t, err)
	ids := []string{}
	for _, c := range calls {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{open.ID, mine.ID}, ids)
}

func TestCreateTableWithWaiter(t *testing.T) {
	ctx := context.Background()
	svc, f, staff := newService(t)
	waiter := staff.add(f.Waiter())
	name := " Patio 1 "

	stranger := repository.NewID()
	_, err := svc.CreateTable(ctx, f.Director, TableInput{Name: &name, TypeID: &f.Type.ID, WaiterID: &stranger})
	assert.True(t, apperr.Is(err, apperr.Validation))

	tbl, err := svc.CreateTable(ctx, f.Director, TableInput{Name: &name, TypeID: &f.Type.ID, WaiterID: &waiter.ID})
	require.NoError(t, err)
	assert.Equal(t, "Patio 1", tbl.Name)
	assert.True(t, tbl.SetWaiterByAdmin)
	assert.Equal(t, "https://dine.example.com/connect/"+tbl.ID, tbl.QRCode)

	b, err := f.Repo.GetBasket(ctx, tbl.ID)
	require.NoError(t, err)
	assert.True(t, b.Empty())

	otherType := repository.NewID()
	_, err = svc.CreateTable(ctx, f.Director, TableInput{Name: &name, TypeID: &otherType})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestDeleteTableRemovesBasket(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newService(t)
	tbl := f.Table(t, nil)

	require.NoError(t, svc.DeleteTable(ctx, f.Director, tbl.ID))
	_, err := f.Repo.GetTable(ctx, tbl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.Repo.GetBasket(ctx, tbl.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
