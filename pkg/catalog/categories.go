package catalog

import (
	"context"
	"strings"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

type CategoryInput struct {
	Name  *string `json:"name"`
	Photo *string `json:"photo"`
}

func (s *Service) CreateCategory(ctx context.Context, actor models.Actor, in CategoryInput) (*models.Category, error) {
	if err := requireRestaurant(actor.RestaurantID); err != nil {
		return nil, err
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validationf("name is required")
	}

	now := s.coord.Now()
	c := &models.Category{
		ID:           repository.NewID(),
		Name:         strings.TrimSpace(*in.Name),
		Photo:        models.NoPhoto,
		RestaurantID: actor.RestaurantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Photo != nil && *in.Photo != "" {
		c.Photo = *in.Photo
	}
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		if err := tx.CreateCategory(ctx, c); err != nil {
			return err
		}
		out.Add(notify.EventCategoryCreated, c, audience(c.RestaurantID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns the menu of a restaurant: every category with its
// products.
func (s *Service) ListCategories(ctx context.Context, restaurantID string) ([]*models.CategoryView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.FindProducts(ctx, repository.ProductQuery{RestaurantID: restaurantID})
	if err != nil {
		return nil, err
	}

	byCategory := map[string][]*models.Product{}
	for _, p := range products {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}
	views := make([]*models.CategoryView, 0, len(categories))
	for _, c := range categories {
		v := &models.CategoryView{Category: *c, Products: byCategory[c.ID]}
		if v.Products == nil {
			v.Products = []*models.Product{}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) GetCategory(ctx context.Context, restaurantID, id string) (*models.CategoryView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	c, err := s.repo.GetCategory(ctx, restaurantID, id)
	if err != nil {
		return nil, repository.Describe(err, "category "+id)
	}
	products, err := s.repo.FindProducts(ctx, repository.ProductQuery{RestaurantID: restaurantID, CategoryID: id})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*models.Product{}
	}
	return &models.CategoryView{Category: *c, Products: products}, nil
}

// UpdateCategory renames a category or changes its photo. It fails while a
// product of the category is on an order of an occupied table.
func (s *Service) UpdateCategory(ctx context.Context, actor models.Actor, id string, in CategoryInput) (*models.Category, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validationf("name must not be empty")
	}
	var result *models.Category
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		c, err := tx.GetCategory(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "category "+id)
		}
		ids, err := productIDs(ctx, tx, c)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureProductsReleased(ctx, tx, c.RestaurantID, ids); err != nil {
			return err
		}

		if in.Name != nil {
			c.Name = strings.TrimSpace(*in.Name)
		}
		if in.Photo != nil && *in.Photo != "" {
			c.Photo = *in.Photo
		}
		c.UpdatedAt = s.coord.Now()
		if err := tx.UpdateCategory(ctx, c); err != nil {
			return err
		}
		result = c
		out.Add(notify.EventCategoryUpdated, c, audience(c.RestaurantID)...)
		return nil
	})
	return result, err
}

// DeleteCategory removes a category with its products and every order line
// that references them. It fails while any of those products is on an order
// of an occupied table.
func (s *Service) DeleteCategory(ctx context.Context, actor models.Actor, id string) error {
	return s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		c, err := tx.GetCategory(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "category "+id)
		}
		ids, err := productIDs(ctx, tx, c)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureProductsReleased(ctx, tx, c.RestaurantID, ids); err != nil {
			return err
		}

		if err := releaseProducts(ctx, tx, c.RestaurantID, ids); err != nil {
			return err
		}
		if err := tx.DeleteProducts(ctx, c.RestaurantID, ids); err != nil {
			return err
		}
		if err := tx.DeleteCategory(ctx, c.RestaurantID, c.ID); err != nil {
			return err
		}
		out.Add(notify.EventCategoryDeleted, map[string]interface{}{"id": c.ID, "products": ids},
			audience(c.RestaurantID)...)
		return nil
	})
}

func productIDs(ctx context.Context, tx repository.Repository, c *models.Category) ([]string, error) {
	products, err := tx.FindProducts(ctx, repository.ProductQuery{RestaurantID: c.RestaurantID, CategoryID: c.ID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
