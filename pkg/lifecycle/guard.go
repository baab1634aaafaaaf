package lifecycle

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/repository"
)

// EnsureProductsReleased fails with Conflict while any active or approved
// order referencing one of productIDs belongs to an occupied table. It must
// run inside the transaction that mutates the products. The products are
// claimed first, so an order edit pricing one of them cannot commit
// alongside the caller.
func EnsureProductsReleased(ctx context.Context, tx repository.Repository, restaurantID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	for _, id := range productIDs {
		// Unavailable products cannot be priced, so there is nothing to claim.
		if _, err := tx.ClaimProduct(ctx, restaurantID, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	q := repository.OrderQuery{RestaurantID: restaurantID, ProductIDs: productIDs}

	tableIDs := map[string]bool{}
	orders, err := tx.ListOrders(ctx, q)
	if err != nil {
		return err
	}
	for _, o := range orders {
		tableIDs[o.TableID] = true
	}
	actives, err := tx.ListActiveOrders(ctx, q)
	if err != nil {
		return err
	}
	for _, a := range actives {
		tableIDs[a.TableID] = true
	}
	if len(tableIDs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(tableIDs))
	for id := range tableIDs {
		ids = append(ids, id)
	}
	occupied := true
	tables, err := tx.FindTables(ctx, repository.TableQuery{IDs: ids, Occupied: &occupied})
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return apperr.Conflictf("product is in an active order of table %s", tables[0].Name)
	}
	return nil
}
