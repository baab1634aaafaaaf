// Package catalog manages the menu of a restaurant: categories and the
// products in them.
package catalog

import (
	"context"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"go.uber.org/zap"
)

type Service struct {
	coord  *lifecycle.Coordinator
	repo   repository.Repository
	logger *zap.Logger
}

func NewService(coord *lifecycle.Coordinator, logger *zap.Logger) *Service {
	return &Service{
		coord:  coord,
		repo:   coord.Repository(),
		logger: logger.Named("catalog"),
	}
}

// audience is every room that shows the menu of restaurantID.
func audience(restaurantID string) []string {
	return []string{notify.Restaurant(restaurantID), notify.Directors(restaurantID), notify.Waiters(restaurantID)}
}

func requireRestaurant(restaurantID string) error {
	if restaurantID == "" {
		return apperr.Validationf("restaurant is required")
	}
	return nil
}

// releaseProducts removes products from every order document that still
// holds them. Callers run EnsureProductsReleased first, so only documents
// of unoccupied tables are left to clean up.
func releaseProducts(ctx context.Context, tx repository.Repository, restaurantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := repository.OrderQuery{RestaurantID: restaurantID, ProductIDs: ids}
	if err := tx.DeleteActiveOrders(ctx, q); err != nil {
		return err
	}
	if err := tx.DeleteOrders(ctx, q); err != nil {
		return err
	}

	baskets, err := tx.ListBaskets(ctx, repository.BasketQuery{RestaurantID: restaurantID, ProductIDs: ids})
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	for _, b := range baskets {
		b.Lines = b.Lines.Without(drop)
		if err := tx.ReplaceBasket(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
