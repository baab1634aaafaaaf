package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

type ProductInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Photo       *string  `json:"photo"`
	Price       *float64 `json:"price"`
	OldPrice    *float64 `json:"oldPrice"`
	Sale        *bool    `json:"sale"`
	Available   *bool    `json:"available"`
	CategoryID  *string  `json:"category"`
	Unit        *string  `json:"unit"`
}

type ProductFilter struct {
	CategoryID string
	Available  *bool
}

// apply copies the set fields of in onto p.
func (in ProductInput) apply(p *models.Product) error {
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return apperr.Validationf("name must not be empty")
		}
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Photo != nil && *in.Photo != "" {
		p.Photo = *in.Photo
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return apperr.Validationf("price must be positive")
		}
		p.Price = *in.Price
	}
	if in.OldPrice != nil {
		if *in.OldPrice < 0 {
			return apperr.Validationf("old price must not be negative")
		}
		p.OldPrice = *in.OldPrice
	}
	if in.Sale != nil {
		p.Sale = *in.Sale
	}
	if in.Available != nil {
		p.Available = *in.Available
	}
	if in.Unit != nil {
		p.Unit = *in.Unit
	}
	return nil
}

func checkCategory(ctx context.Context, tx repository.Repository, restaurantID, id string) error {
	_, err := tx.GetCategory(ctx, restaurantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Validationf("category %s does not belong to this restaurant", id)
	}
	return err
}

func (s *Service) CreateProduct(ctx context.Context, actor models.Actor, in ProductInput) (*models.Product, error) {
	if err := requireRestaurant(actor.RestaurantID); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, apperr.Validationf("name is required")
	}
	if in.Price == nil {
		return nil, apperr.Validationf("price is required")
	}
	if in.CategoryID == nil || *in.CategoryID == "" {
		return nil, apperr.Validationf("category is required")
	}

	now := s.coord.Now()
	p := &models.Product{
		ID:           repository.NewID(),
		Photo:        models.NoPhoto,
		Available:    true,
		CategoryID:   *in.CategoryID,
		RestaurantID: actor.RestaurantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}

	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		if err := checkCategory(ctx, tx, p.RestaurantID, p.CategoryID); err != nil {
			return err
		}
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		out.Add(notify.EventNewProduct, p, audience(p.RestaurantID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	p, err := s.repo.GetProduct(ctx, restaurantID, id)
	if err != nil {
		return nil, repository.Describe(err, "product "+id)
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, restaurantID string, f ProductFilter) ([]*models.Product, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	products, err := s.repo.FindProducts(ctx, repository.ProductQuery{RestaurantID: restaurantID, CategoryID: f.CategoryID})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if f.Available != nil && p.Available != *f.Available {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateProduct edits a product. It fails while the product is on an order
// of an occupied table, since that would change what the table is billed.
func (s *Service) UpdateProduct(ctx context.Context, actor models.Actor, id string, in ProductInput) (*models.Product, error) {
	var result *models.Product
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		p, err := tx.GetProduct(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "product "+id)
		}
		if err := lifecycle.EnsureProductsReleased(ctx, tx, p.RestaurantID, []string{p.ID}); err != nil {
			return err
		}
		if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
			if err := checkCategory(ctx, tx, p.RestaurantID, *in.CategoryID); err != nil {
				return err
			}
			p.CategoryID = *in.CategoryID
		}
		if err := in.apply(p); err != nil {
			return err
		}
		p.UpdatedAt = s.coord.Now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		result = p
		out.Add(notify.EventUpdateProduct, p, audience(p.RestaurantID)...)
		return nil
	})
	return result, err
}

func (s *Service) DeleteProduct(ctx context.Context, actor models.Actor, id string) error {
	return s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		p, err := tx.GetProduct(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "product "+id)
		}
		ids := []string{p.ID}
		if err := lifecycle.EnsureProductsReleased(ctx, tx, p.RestaurantID, ids); err != nil {
			return err
		}
		if err := releaseProducts(ctx, tx, p.RestaurantID, ids); err != nil {
			return err
		}
		if err := tx.DeleteProducts(ctx, p.RestaurantID, ids); err != nil {
			return err
		}
		out.Add(notify.EventDeleteProduct, map[string]string{"id": p.ID, "category": p.CategoryID},
			audience(p.RestaurantID)...)
		return nil
	})
}
