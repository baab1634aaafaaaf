package tenant

import (
	"context"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"go.uber.org/zap"
)

type StaffInput struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type Session struct {
	Token string          `json:"token"`
	Staff *identity.Staff `json:"user"`
}

func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	st, err := s.dir.Authenticate(ctx, login, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(st)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Staff: st}, nil
}

func (s *Service) Me(ctx context.Context, actor models.Actor) (*identity.Staff, error) {
	return s.dir.Get(ctx, actor.ID)
}

// CreateDirector adds a director account to an existing restaurant.
func (s *Service) CreateDirector(ctx context.Context, restaurantID string, in StaffInput) (*identity.Staff, error) {
	if _, err := s.repo.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, repository.Describe(err, "restaurant "+restaurantID)
	}
	return s.dir.Create(ctx, identity.NewStaff{
		Login:        in.Login,
		Name:         in.Name,
		Password:     in.Password,
		Role:         models.RoleDirector,
		RestaurantID: restaurantID,
	})
}

func (s *Service) CreateWaiter(ctx context.Context, actor models.Actor, in StaffInput) (*identity.Staff, error) {
	if actor.RestaurantID == "" {
		return nil, apperr.Validationf("restaurant is required")
	}
	st, err := s.dir.Create(ctx, identity.NewStaff{
		Login:        in.Login,
		Name:         in.Name,
		Password:     in.Password,
		Role:         models.RoleWaiter,
		RestaurantID: actor.RestaurantID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Waiter created", zap.String("waiter_id", st.ID), zap.String("restaurant_id", st.RestaurantID))
	return st, nil
}

func (s *Service) ListWaiters(ctx context.Context, actor models.Actor) ([]*identity.Staff, error) {
	if actor.RestaurantID == "" {
		return nil, apperr.Validationf("restaurant is required")
	}
	return s.dir.List(ctx, actor.RestaurantID, models.RoleWaiter)
}

// DeleteWaiter removes a waiter who no longer serves any table, together
// with the orders and archives recorded under them. Calls the waiter had
// accepted on unserved tables are handed back to everyone.
func (s *Service) DeleteWaiter(ctx context.Context, actor models.Actor, id string) error {
	st, err := s.dir.Get(ctx, id)
	if err != nil {
		return err
	}
	if st.Role != models.RoleWaiter || st.RestaurantID != actor.RestaurantID {
		return apperr.NotFoundf("waiter %s not found", id)
	}

	var released []string
	err = s.coord.Atomic(ctx, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		released = released[:0]
		if err := tx.ClaimStaff(ctx, st.RestaurantID, st.ID); err != nil {
			return err
		}
		tables, err := tx.FindTables(ctx, repository.TableQuery{RestaurantID: st.RestaurantID, WaiterID: st.ID})
		if err != nil {
			return err
		}
		if len(tables) > 0 {
			return apperr.Conflictf("waiter is assigned to table %s", tables[0].Name)
		}

		calls, err := tx.FindTables(ctx, repository.TableQuery{RestaurantID: st.RestaurantID, CallID: st.ID})
		if err != nil {
			return err
		}
		now := s.coord.Now()
		for _, t := range calls {
			declined := t.Call == models.CallAccepted
			if declined {
				t.Call = models.CallNone
				t.CallTime = nil
			}
			t.CallID = ""
			t.UpdatedAt = now
			if err := tx.ReplaceTable(ctx, t); err != nil {
				return err
			}
			released = append(released, t.ID)
			if declined {
				payload := map[string]interface{}{"id": t.ID, "name": t.Name, "waiter": st.ID}
				out.Add(notify.EventCallDeclined, payload,
					notify.Table(t.ID), notify.Waiters(t.RestaurantID), notify.Directors(t.RestaurantID))
			}
		}

		waiters := []string{st.ID}
		q := repository.OrderQuery{RestaurantID: st.RestaurantID, WaiterIDs: waiters}
		if err := tx.DeleteActiveOrders(ctx, q); err != nil {
			return err
		}
		if err := tx.DeleteOrders(ctx, q); err != nil {
			return err
		}
		return tx.DeleteArchiveOrders(ctx, repository.ArchiveQuery{RestaurantID: st.RestaurantID, WaiterIDs: waiters})
	})
	if err != nil {
		return err
	}
	if len(released) > 0 {
		s.logger.Info("Released calls of deleted waiter", zap.String("waiter_id", st.ID), zap.Strings("table_ids", released))
	}
	return s.dir.Delete(ctx, st.ID)
}
