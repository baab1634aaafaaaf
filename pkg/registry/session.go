package registry

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

// SetSessionCode opens a customer session on an unoccupied table.
func (s *Service) SetSessionCode(ctx context.Context, actor models.Actor, id, code string) (*models.Table, error) {
	if !codePattern.MatchString(code) {
		return nil, apperr.Validationf("code must be 4 digits")
	}
	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if t.Occupied {
			return apperr.Conflictf("table %s is already occupied", t.Name)
		}
		t.Code = code
		t.Occupied = true
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

// JoinSession lets a customer holding the code into an occupied table. It
// has no side effects.
func (s *Service) JoinSession(ctx context.Context, id, code string) (*models.TableView, error) {
	t, err := s.repo.GetTable(ctx, id)
	if err != nil {
		return nil, repository.Describe(err, "table "+id)
	}
	if !t.Occupied {
		return nil, apperr.Unauthorizedf("table %s has no open session", id)
	}
	if t.Code != code {
		return nil, apperr.Unauthorizedf("invalid code for table %s", id)
	}
	views, err := s.summarize(ctx, []*models.Table{t})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// CallWaiter raises a call from a seated customer.
func (s *Service) CallWaiter(ctx context.Context, id, code string) (*models.Table, error) {
	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := tx.GetTable(ctx, id)
		if err != nil {
			return repository.Describe(err, "table "+id)
		}
		if !t.Occupied || t.Code != code {
			return apperr.Unauthorizedf("invalid session for table %s", id)
		}
		now := s.coord.Now()
		t.Call = models.CallCalling
		t.CallTime = &now
		t.UpdatedAt = now
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		result = t

		payload := map[string]interface{}{"id": t.ID, "name": t.Name, "callTime": now}
		out.Add(notify.EventCallWaiter, payload, lifecycle.WaiterTopic(t), notify.Directors(t.RestaurantID))
		out.Add(notify.EventActiveCall, payload, notify.Table(t.ID))
		return nil
	})
	return result, err
}

// AcceptCall claims the table's call for the acting waiter. The first waiter
// to accept wins; later accepts by others fail with Conflict.
func (s *Service) AcceptCall(ctx context.Context, actor models.Actor, id string) (*models.Table, error) {
	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		switch {
		case t.Call == models.CallCalling && (t.CallID == "" || t.CallID == actor.ID):
		case t.Call == models.CallAccepted && t.CallID == actor.ID:
		case t.Call == models.CallNone:
			return apperr.Conflictf("table %s has no pending call", t.Name)
		default:
			return apperr.Conflictf("call of table %s is already accepted by another waiter", t.Name)
		}

		if err := tx.ClaimStaff(ctx, t.RestaurantID, actor.ID); err != nil {
			return err
		}
		t.Call = models.CallAccepted
		t.CallID = actor.ID
		t.UpdatedAt = s.coord.Now()
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		result = t

		payload := map[string]interface{}{"id": t.ID, "name": t.Name, "waiter": actor.ID}
		out.Add(notify.EventCallAccepted, payload,
			notify.Table(t.ID), notify.Waiters(t.RestaurantID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

// DeclineCall drops the call held by the acting waiter.
func (s *Service) DeclineCall(ctx context.Context, actor models.Actor, id string) (*models.Table, error) {
	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if t.CallID != actor.ID {
			return apperr.Forbiddenf("call of table %s is not yours", t.Name)
		}

		t.Call = models.CallNone
		t.CallTime = nil
		if t.WaiterID == "" {
			t.CallID = ""
		}
		t.UpdatedAt = s.coord.Now()
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		result = t

		payload := map[string]interface{}{"id": t.ID, "name": t.Name, "waiter": actor.ID}
		out.Add(notify.EventCallDeclined, payload,
			notify.Table(t.ID), notify.Waiters(t.RestaurantID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

// OccupyTable seats the acting waiter at the table. Orders placed before a
// waiter was assigned are handed over to them.
func (s *Service) OccupyTable(ctx context.Context, actor models.Actor, id string) (*models.Table, error) {
	var result *models.Table
	err := s.coord.Mutate(ctx, id, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := lifecycle.LoadTable(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if t.WaiterID != "" && t.WaiterID != actor.ID {
			return apperr.Conflictf("table %s is already served by another waiter", t.Name)
		}
		if t.Call == models.CallAccepted && t.CallID != "" && t.CallID != actor.ID {
			return apperr.Conflictf("call of table %s is already accepted by another waiter", t.Name)
		}

		if err := tx.ClaimStaff(ctx, t.RestaurantID, actor.ID); err != nil {
			return err
		}
		if t.WaiterID == "" {
			if err := adoptOrders(ctx, tx, t, actor.ID); err != nil {
				return err
			}
		}
		t.WaiterID = actor.ID
		t.Call = models.CallNone
		t.CallTime = nil
		t.CallID = actor.ID
		t.Occupied = true
		t.UpdatedAt = s.coord.Now()
		if err := tx.ReplaceTable(ctx, t); err != nil {
			return err
		}
		result = t

		payload := map[string]interface{}{"id": t.ID, "waiter": actor.ID}
		out.Add(notify.EventTableOccupied, payload,
			notify.Table(t.ID), notify.Waiters(t.RestaurantID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

// adoptOrders moves waiter-less orders of t to waiterID.
func adoptOrders(ctx context.Context, tx repository.Repository, t *models.Table, waiterID string) error {
	if a, err := tx.GetActiveOrder(ctx, t.ID, ""); err == nil {
		a.WaiterID = waiterID
		if err := tx.SaveActiveOrder(ctx, a); err != nil {
			return err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if o, err := tx.GetOrder(ctx, t.ID, ""); err == nil {
		o.WaiterID = waiterID
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// ListCalls returns the calls the acting waiter should see: ones accepted by
// them and pending ones nobody owns yet.
func (s *Service) ListCalls(ctx context.Context, actor models.Actor) ([]*models.Table, error) {
	tables, err := s.repo.FindTables(ctx, repository.TableQuery{
		RestaurantID: actor.RestaurantID,
		Calls:        []models.CallStatus{models.CallCalling, models.CallAccepted},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Table, 0, len(tables))
	for _, t := range tables {
		switch {
		case t.Call == models.CallAccepted && t.CallID == actor.ID:
		case t.Call == models.CallCalling && (t.CallID == "" || t.CallID == actor.ID):
		default:
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
