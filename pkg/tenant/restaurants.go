// Package tenant manages restaurants and the staff that work for them.
package tenant

import (
	"context"
	"strings"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
	"go.uber.org/zap"
)

type Service struct {
	coord  *lifecycle.Coordinator
	repo   repository.Repository
	dir    *identity.Directory
	tokens *identity.Tokens
	logger *zap.Logger
}

func NewService(coord *lifecycle.Coordinator, dir *identity.Directory, tokens *identity.Tokens, logger *zap.Logger) *Service {
	return &Service{
		coord:  coord,
		repo:   coord.Repository(),
		dir:    dir,
		tokens: tokens,
		logger: logger.Named("tenant"),
	}
}

type RestaurantInput struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Location *string `json:"location"`
	Photo    *string `json:"photo"`
}

func (in RestaurantInput) apply(r *models.Restaurant) error {
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return apperr.Validationf("name must not be empty")
		}
		r.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		r.Address = *in.Address
	}
	if in.Location != nil {
		r.Location = *in.Location
	}
	if in.Photo != nil && *in.Photo != "" {
		r.Photo = *in.Photo
	}
	return nil
}

func (s *Service) CreateRestaurant(ctx context.Context, in RestaurantInput) (*models.Restaurant, error) {
	if in.Name == nil {
		return nil, apperr.Validationf("name is required")
	}
	now := s.coord.Now()
	r := &models.Restaurant{
		ID:        repository.NewID(),
		Photo:     models.NoPhoto,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(r); err != nil {
		return nil, err
	}
	if err := s.repo.CreateRestaurant(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("Restaurant created", zap.String("restaurant_id", r.ID), zap.String("name", r.Name))
	return r, nil
}

func (s *Service) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	return s.repo.ListRestaurants(ctx)
}

func (s *Service) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		return nil, repository.Describe(err, "restaurant "+id)
	}
	return r, nil
}

func (s *Service) UpdateRestaurant(ctx context.Context, id string, in RestaurantInput) (*models.Restaurant, error) {
	var result *models.Restaurant
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		r, err := tx.GetRestaurant(ctx, id)
		if err != nil {
			return repository.Describe(err, "restaurant "+id)
		}
		if err := in.apply(r); err != nil {
			return err
		}
		r.UpdatedAt = s.coord.Now()
		if err := tx.UpdateRestaurant(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// DeleteRestaurant removes the restaurant with everything it owns. Store
// documents go in one transaction; staff accounts are removed afterwards.
func (s *Service) DeleteRestaurant(ctx context.Context, id string) error {
	var tableIDs []string
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		if _, err := tx.GetRestaurant(ctx, id); err != nil {
			return repository.Describe(err, "restaurant "+id)
		}
		tables, err := tx.FindTables(ctx, repository.TableQuery{RestaurantID: id})
		if err != nil {
			return err
		}
		tableIDs = make([]string, 0, len(tables))
		for _, t := range tables {
			tableIDs = append(tableIDs, t.ID)
		}
		if err := tx.PurgeRestaurant(ctx, id); err != nil {
			return err
		}
		return tx.DeleteRestaurant(ctx, id)
	})
	if err != nil {
		return err
	}
	s.coord.Forget(tableIDs...)

	if err := s.dir.DeleteByRestaurant(ctx, id); err != nil {
		s.logger.Error("Failed to delete staff of restaurant", zap.String("restaurant_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("Restaurant deleted", zap.String("restaurant_id", id))
	return nil
}
