package lifecycle

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

// CloseTable ends the table's session. Approved orders with a total are
// archived, every order document of the table is removed, the basket is
// emptied and the table reset, all in one transaction.
func (c *Coordinator) CloseTable(ctx context.Context, actor models.Actor, tableID string) (*models.Table, error) {
	var closed *models.Table
	err := c.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *Outbox) error {
		t, err := LoadTable(ctx, tx, actor, tableID)
		if err != nil {
			return err
		}
		// Any waiter may close a table nobody serves.
		if actor.Role == models.RoleWaiter && t.WaiterID != "" && t.WaiterID != actor.ID {
			return apperr.Forbiddenf("table %s is served by another waiter", tableID)
		}

		byTable := repository.OrderQuery{TableIDs: []string{t.ID}}
		actives, err := tx.ListActiveOrders(ctx, byTable)
		if err != nil {
			return err
		}
		for _, a := range actives {
			if !a.Empty() {
				return apperr.Conflictf("table %s has active orders", tableID)
			}
		}
		if t.HasActiveOrder {
			return apperr.Conflictf("table %s has active orders", tableID)
		}

		orders, err := tx.ListOrders(ctx, byTable)
		if err != nil {
			return err
		}
		now := c.now()
		for _, o := range orders {
			if o.TotalPrice == 0 {
				continue
			}
			archive, err := c.snapshot(ctx, tx, o)
			if err != nil {
				return err
			}
			archive.CreatedAt = now
			if err := tx.CreateArchiveOrder(ctx, archive); err != nil {
				return err
			}
		}

		if err := tx.DeleteActiveOrders(ctx, byTable); err != nil {
			return err
		}
		if err := tx.DeleteOrders(ctx, byTable); err != nil {
			return err
		}
		if err := emptyBasket(ctx, tx, t.ID); err != nil {
			return err
		}

		t.Reset()
		t.UpdatedAt = now
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		closed = t

		// A kept waiter is told directly, otherwise every waiter is.
		payload := map[string]interface{}{"id": t.ID, "waiter": t.WaiterID}
		out.Add(notify.EventClosedTable, payload,
			notify.Directors(t.RestaurantID), notify.Table(t.ID), WaiterTopic(t))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (c *Coordinator) snapshot(ctx context.Context, tx repository.Repository, o *models.Order) (*models.ArchiveOrder, error) {
	ids := make([]string, 0, len(o.Products))
	for _, l := range o.Products {
		ids = append(ids, l.ProductID)
	}
	products, err := tx.FindProducts(ctx, repository.ProductQuery{RestaurantID: o.RestaurantID, IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]models.ArchivedLine, 0, len(o.Products))
	for _, l := range o.Products {
		snap := models.ProductSnapshot{ID: l.ProductID}
		if p, ok := byID[l.ProductID]; ok {
			snap = p.Snapshot()
		} else if l.Quantity > 0 {
			snap.Price = l.Price / float64(l.Quantity)
		}
		lines = append(lines, models.ArchivedLine{Product: snap, Quantity: l.Quantity, Price: l.Price})
	}

	return &models.ArchiveOrder{
		ID:           repository.NewID(),
		TableID:      o.TableID,
		WaiterID:     o.WaiterID,
		RestaurantID: o.RestaurantID,
		TotalOrders:  lines,
		TotalPrice:   o.TotalPrice,
		TotalItems:   o.TotalItems,
	}, nil
}

func emptyBasket(ctx context.Context, tx repository.Repository, tableID string) error {
	b, err := tx.GetBasket(ctx, tableID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if b.Empty() {
		return nil
	}
	b.Lines = models.Lines{Products: []models.Line{}}
	return tx.ReplaceBasket(ctx, b)
}
