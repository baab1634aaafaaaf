package ledger

import (
	"context"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
)

// scope narrows an order query to what actor may see of the table.
func scope(actor models.Actor, t *models.Table) repository.OrderQuery {
	q := repository.OrderQuery{RestaurantID: t.RestaurantID, TableIDs: []string{t.ID}}
	if actor.Role == models.RoleWaiter {
		q.WaiterIDs = []string{actor.ID}
	}
	return q
}

// ActiveOrders lists the table's active orders. Waiters see their own only.
func (s *Service) ActiveOrders(ctx context.Context, actor models.Actor, tableID string) ([]*models.ActiveOrder, error) {
	t, err := lifecycle.LoadTable(ctx, s.repo, actor, tableID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActiveOrders(ctx, scope(actor, t))
}

// ApprovedOrders lists the table's approved orders. Waiters see their own only.
func (s *Service) ApprovedOrders(ctx context.Context, actor models.Actor, tableID string) ([]*models.Order, error) {
	t, err := lifecycle.LoadTable(ctx, s.repo, actor, tableID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, scope(actor, t))
}

type WaiterOrders struct {
	ActiveOrder *models.ActiveOrder `json:"activeOrders,omitempty"`
	TotalOrder  *models.Order       `json:"totalOrders,omitempty"`
}

// WaiterOrders returns the acting waiter's active and approved order on the
// table.
func (s *Service) WaiterOrders(ctx context.Context, actor models.Actor, tableID string) (*WaiterOrders, error) {
	if tableID == "" {
		return nil, apperr.Validationf("table is required")
	}
	t, err := lifecycle.LoadTable(ctx, s.repo, actor, tableID)
	if err != nil {
		return nil, err
	}
	q := repository.OrderQuery{RestaurantID: t.RestaurantID, TableIDs: []string{t.ID}, WaiterIDs: []string{actor.ID}}

	res := &WaiterOrders{}
	actives, err := s.repo.ListActiveOrders(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(actives) > 0 {
		res.ActiveOrder = actives[0]
	}
	orders, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		res.TotalOrder = orders[0]
	}
	return res, nil
}

// Archives lists archived orders of the restaurant, or of one table when
// tableID is set.
func (s *Service) Archives(ctx context.Context, actor models.Actor, tableID string) ([]*models.ArchiveOrder, error) {
	q := repository.ArchiveQuery{RestaurantID: actor.RestaurantID}
	if tableID != "" {
		t, err := lifecycle.LoadTable(ctx, s.repo, actor, tableID)
		if err != nil {
			return nil, err
		}
		q.RestaurantID = t.RestaurantID
		q.TableID = t.ID
	}
	if q.RestaurantID == "" {
		return nil, apperr.Validationf("restaurant is required")
	}
	return s.repo.ListArchiveOrders(ctx, q)
}
