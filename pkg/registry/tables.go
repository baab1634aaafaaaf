package registry

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

type TableInput struct {
	Name     *string `json:"name"`
	TypeID   *string `json:"typeOfTable"`
	WaiterID *string `json:"waiter"`
}

type TableFilter struct {
	TypeID   string
	Occupied *bool
}

// CreateTable creates the table and its empty basket together.
func (s *Service) CreateTable(ctx context.Context, actor models.Actor, in TableInput) (*models.Table, error) {
	if err := requireRestaurant(actor); err != nil {
		return nil, err
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validationf("name is required")
	}
	if in.TypeID == nil || *in.TypeID == "" {
		return nil, apperr.Validationf("type of table is required")
	}
	if in.WaiterID != nil && *in.WaiterID != "" {
		if err := s.checkWaiter(ctx, actor.RestaurantID, *in.WaiterID); err != nil {
			return nil, err
		}
	}

	now := s.coord.Now()
	t := &models.Table{
		ID:           repository.NewID(),
		Name:         strings.TrimSpace(*in.Name),
		TypeID:       *in.TypeID,
		RestaurantID: actor.RestaurantID,
		Code:         models.DefaultCode,
		Call:         models.CallNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.QRCode = s.qrCode(t.ID)
	if in.WaiterID != nil && *in.WaiterID != "" {
		t.WaiterID = *in.WaiterID
		t.CallID = *in.WaiterID
		t.SetWaiterByAdmin = true
	}

	err := s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		if _, err := tx.GetTableType(ctx, t.RestaurantID, t.TypeID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Validationf("type of table %s does not belong to this restaurant", t.TypeID)
			}
			return err
		}
		if t.WaiterID != "" {
			if err := tx.ClaimStaff(ctx, t.RestaurantID, t.WaiterID); err != nil {
				return err
			}
		}
		if err := tx.CreateTable(ctx, t); err != nil {
			return err
		}
		basket := &models.Basket{
			ID:           repository.NewID(),
			RestaurantID: t.RestaurantID,
			TableID:      t.ID,
			Lines:        models.Lines{Products: []models.Line{}},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateBasket(ctx, basket); err != nil {
			return err
		}
		out.Add(notify.EventNewTable, t, notify.Directors(t.RestaurantID), notify.Waiters(t.RestaurantID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) summarize(ctx context.Context, tables []*models.Table) ([]*models.TableView, error) {
	views := make([]*models.TableView, 0, len(tables))
	if len(tables) == 0 {
		return views, nil
	}
	ids := make([]string, 0, len(tables))
	for _, t := range tables {
		ids = append(ids, t.ID)
	}
	q := repository.OrderQuery{TableIDs: ids}
	actives, err := s.repo.ListActiveOrders(ctx, q)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		views = append(views, models.Summarize(t, actives, orders))
	}
	return views, nil
}

func (s *Service) GetTable(ctx context.Context, actor models.Actor, id string) (*models.TableView, error) {
	t, err := lifecycle.LoadTable(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	views, err := s.summarize(ctx, []*models.Table{t})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) ListTables(ctx context.Context, actor models.Actor, f TableFilter) ([]*models.TableView, error) {
	if err := requireRestaurant(actor); err != nil {
		return nil, err
	}
	tables, err := s.repo.FindTables(ctx, repository.TableQuery{
		RestaurantID: actor.RestaurantID,
		TypeID:       f.TypeID,
		Occupied:     f.Occupied,
	})
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, tables)
}

// WaiterTables lists the occupied tables served by the acting waiter.
func (s *Service) WaiterTables(ctx context.Context, actor models.Actor, typeID string) ([]*models.TableView, error) {
	occupied := true
	tables, err := s.repo.FindTables(ctx, repository.TableQuery{
		RestaurantID: actor.RestaurantID,
		WaiterID:     actor.ID,
		TypeID:       typeID,
		Occupied:     &occupied,
	})
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, tables)
}

// UpdateTable edits an unoccupied table. Assigning a waiter makes the
// assignment survive table close; an empty waiter removes it.
func (s *Service) UpdateTable(ctx context.Context, actor models.Actor, id string, in TableInput) (*models.Table, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validationf("name must not be empty")
	}
	if in.WaiterID != nil && *in.WaiterID != "" {
		if err := s.checkWaiter(ctx, actor.RestaurantID, *in.WaiterID); err != nil {
			return nil, err
		}
	}

	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if t.Occupied {
			return apperr.Conflictf("table %s is occupied", t.Name)
		}

		if in.Name != nil {
			t.Name = strings.TrimSpace(*in.Name)
		}
		if in.TypeID != nil && *in.TypeID != t.TypeID {
			if _, err := tx.GetTableType(ctx, t.RestaurantID, *in.TypeID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.Validationf("type of table %s does not belong to this restaurant", *in.TypeID)
				}
				return err
			}
			t.TypeID = *in.TypeID
		}
		if in.WaiterID != nil {
			if *in.WaiterID != "" {
				if err := tx.ClaimStaff(ctx, t.RestaurantID, *in.WaiterID); err != nil {
					return err
				}
			}
			t.WaiterID = *in.WaiterID
			t.CallID = *in.WaiterID
			t.SetWaiterByAdmin = *in.WaiterID != ""
		}
		t.UpdatedAt = s.coord.Now()
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		result = t

		out.Add(notify.EventUpdateTable, t, notify.Directors(t.RestaurantID), notify.Waiters(t.RestaurantID))
		return nil
	})
	return result, err
}

// DeleteTable removes an unoccupied table with its basket, orders and
// archive.
func (s *Service) DeleteTable(ctx context.Context, actor models.Actor, id string) error {
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if t.Occupied {
			return apperr.Conflictf("table %s is occupied", t.Name)
		}
		if err := purgeTables(ctx, tx, t.RestaurantID, []string{t.ID}); err != nil {
			return err
		}
		out.Add(notify.EventDeletedTable, map[string]string{"id": t.ID},
			notify.Directors(t.RestaurantID), notify.Waiters(t.RestaurantID), notify.Table(t.ID))
		return nil
	})
	if err != nil {
		return err
	}
	s.coord.Forget(id)
	return nil
}

// CloseTable ends the table's session. See lifecycle.Coordinator.CloseTable.
func (s *Service) CloseTable(ctx context.Context, actor models.Actor, id string) (*models.Table, error) {
	return s.coord.CloseTable(ctx, actor, id)
}
