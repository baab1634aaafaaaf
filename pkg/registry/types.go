package registry

import (
	"context"
	"strings"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

func (s *Service) CreateTableType(ctx context.Context, actor models.Actor, name string) (*models.TableType, error) {
	if err := requireRestaurant(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("name is required")
	}

	now := s.coord.Now()
	tt := &models.TableType{
		ID:           repository.NewID(),
		Name:         name,
		RestaurantID: actor.RestaurantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		if err := tx.CreateTableType(ctx, tt); err != nil {
			return err
		}
		out.Add(notify.EventNewTableType, tt, notify.Directors(tt.RestaurantID), notify.Waiters(tt.RestaurantID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tt, nil
}

// ListTableTypes returns the restaurant's table types with their tables.
func (s *Service) ListTableTypes(ctx context.Context, actor models.Actor) ([]*models.TableTypeView, error) {
	if err := requireRestaurant(actor); err != nil {
		return nil, err
	}
	types, err := s.repo.ListTableTypes(ctx, actor.RestaurantID)
	if err != nil {
		return nil, err
	}
	tables, err := s.repo.FindTables(ctx, repository.TableQuery{RestaurantID: actor.RestaurantID})
	if err != nil {
		return nil, err
	}

	byType := map[string][]*models.Table{}
	for _, t := range tables {
		byType[t.TypeID] = append(byType[t.TypeID], t)
	}
	out := make([]*models.TableTypeView, 0, len(types))
	for _, tt := range types {
		v := &models.TableTypeView{TableType: *tt, Tables: byType[tt.ID]}
		if v.Tables == nil {
			v.Tables = []*models.Table{}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) GetTableType(ctx context.Context, actor models.Actor, id string) (*models.TableTypeView, error) {
	tt, err := s.repo.GetTableType(ctx, actor.RestaurantID, id)
	if err != nil {
		return nil, repository.Describe(err, "table type "+id)
	}
	tables, err := s.repo.FindTables(ctx, repository.TableQuery{RestaurantID: actor.RestaurantID, TypeID: id})
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []*models.Table{}
	}
	return &models.TableTypeView{TableType: *tt, Tables: tables}, nil
}

func (s *Service) UpdateTableType(ctx context.Context, actor models.Actor, id, name string) (*models.TableType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("name is required")
	}
	var result *models.TableType
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		tt, err := tx.GetTableType(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "table type "+id)
		}
		tt.Name = name
		tt.UpdatedAt = s.coord.Now()
		if err := tx.UpdateTableType(ctx, tt); err != nil {
			return err
		}
		result = tt
		out.Add(notify.EventUpdateTableType, tt, notify.Directors(tt.RestaurantID), notify.Waiters(tt.RestaurantID))
		return nil
	})
	return result, err
}

// DeleteTableType removes the type with its tables and everything recorded
// for them. It fails while any of its tables is occupied.
func (s *Service) DeleteTableType(ctx context.Context, actor models.Actor, id string) error {
	var tableIDs []string
	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		tt, err := tx.GetTableType(ctx, actor.RestaurantID, id)
		if err != nil {
			return repository.Describe(err, "table type "+id)
		}
		tables, err := tx.FindTables(ctx, repository.TableQuery{RestaurantID: tt.RestaurantID, TypeID: tt.ID})
		if err != nil {
			return err
		}
		tableIDs = make([]string, 0, len(tables))
		for _, t := range tables {
			if t.Occupied {
				return apperr.Conflictf("table %s of this type is occupied", t.Name)
			}
			tableIDs = append(tableIDs, t.ID)
		}

		if err := purgeTables(ctx, tx, tt.RestaurantID, tableIDs); err != nil {
			return err
		}
		if err := tx.DeleteTableType(ctx, tt.RestaurantID, tt.ID); err != nil {
			return err
		}
		out.Add(notify.EventDeleteTableType, map[string]string{"id": tt.ID},
			notify.Directors(tt.RestaurantID), notify.Waiters(tt.RestaurantID))
		return nil
	})
	if err != nil {
		return err
	}
	s.coord.Forget(tableIDs...)
	return nil
}

// purgeTables deletes tables and every document that belongs to them.
func purgeTables(ctx context.Context, tx repository.Repository, restaurantID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.DeleteBaskets(ctx, repository.BasketQuery{RestaurantID: restaurantID, TableIDs: ids}); err != nil {
		return err
	}
	orders := repository.OrderQuery{RestaurantID: restaurantID, TableIDs: ids}
	if err := tx.DeleteActiveOrders(ctx, orders); err != nil {
		return err
	}
	if err := tx.DeleteOrders(ctx, orders); err != nil {
		return err
	}
	for _, id := range ids {
		if err := tx.DeleteArchiveOrders(ctx, repository.ArchiveQuery{RestaurantID: restaurantID, TableID: id}); err != nil {
			return err
		}
	}
	return tx.DeleteTables(ctx, ids)
}
