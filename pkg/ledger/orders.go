package ledger

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
)

func (s *Service) editActive(ctx context.Context, actor models.Actor, tableID string, edit func(lines []models.Line) []models.Line) (*models.ActiveOrder, error) {
	var result *models.ActiveOrder
	err := s.coord.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := servedTable(ctx, tx, actor, tableID)
		if err != nil {
			return err
		}
		a, err := getActive(ctx, tx, t, actor.ID)
		if err != nil {
			return err
		}

		priced, err := Price(ctx, tx, t.RestaurantID, edit(a.Products))
		if err != nil {
			return err
		}
		if a.Version == 0 && priced.Empty() {
			return apperr.NotFoundf("table %s has no active order", tableID)
		}
		now := s.coord.Now()
		a.Lines = priced
		a.UpdatedAt = now
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if err := tx.SaveActiveOrder(ctx, a); err != nil {
			return err
		}
		if err := s.syncActiveFlag(ctx, tx, t, out); err != nil {
			return err
		}
		result = a

		out.Add(notify.EventUpdateActiveOrder, a, notify.Table(t.ID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

// AddActiveLine adds quantity of a product to the waiter's active order.
func (s *Service) AddActiveLine(ctx context.Context, actor models.Actor, in LineInput) (*models.ActiveOrder, error) {
	if err := validateLine(in.ProductID, in.Quantity); err != nil {
		return nil, err
	}
	return s.editActive(ctx, actor, in.TableID, func(lines []models.Line) []models.Line {
		return addLine(lines, in.ProductID, in.Quantity)
	})
}

// SetActiveLine sets the quantity of a product. Zero or less removes it.
func (s *Service) SetActiveLine(ctx context.Context, actor models.Actor, in LineInput) (*models.ActiveOrder, error) {
	if in.ProductID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editActive(ctx, actor, in.TableID, func(lines []models.Line) []models.Line {
		return setLine(lines, in.ProductID, in.Quantity)
	})
}

func (s *Service) RemoveActiveLine(ctx context.Context, actor models.Actor, tableID, productID string) (*models.ActiveOrder, error) {
	if productID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editActive(ctx, actor, tableID, func(lines []models.Line) []models.Line {
		return setLine(lines, productID, 0)
	})
}

// ApproveOrder merges the waiter's active order into the approved order of
// the table and empties the active order.
func (s *Service) ApproveOrder(ctx context.Context, actor models.Actor, tableID string) (*models.Order, error) {
	var result *models.Order
	err := s.coord.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := servedTable(ctx, tx, actor, tableID)
		if err != nil {
			return err
		}
		a, err := tx.GetActiveOrder(ctx, t.ID, actor.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if a == nil || a.Empty() {
			return apperr.Validationf("active order of table %s is empty", tableID)
		}

		o, err := getOrder(ctx, tx, t, actor.ID)
		if err != nil {
			return err
		}
		priced, err := Price(ctx, tx, t.RestaurantID, append(append([]models.Line(nil), o.Products...), a.Products...))
		if err != nil {
			return err
		}
		now := s.coord.Now()
		o.Lines = priced
		o.UpdatedAt = now
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}

		a.Lines = models.Lines{Products: []models.Line{}}
		a.UpdatedAt = now
		if err := tx.SaveActiveOrder(ctx, a); err != nil {
			return err
		}
		if err := s.syncActiveFlag(ctx, tx, t, out); err != nil {
			return err
		}
		result = o

		out.Add(notify.EventUpdateOrder, o, notify.Table(t.ID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

func (s *Service) editApproved(ctx context.Context, actor models.Actor, tableID string, edit func(lines []models.Line) []models.Line) (*models.Order, error) {
	var result *models.Order
	err := s.coord.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := servedTable(ctx, tx, actor, tableID)
		if err != nil {
			return err
		}
		o, err := tx.GetOrder(ctx, t.ID, actor.ID)
		if err != nil {
			return repository.Describe(err, "approved order of table "+tableID)
		}

		priced, err := Price(ctx, tx, t.RestaurantID, edit(o.Products))
		if err != nil {
			return err
		}
		o.Lines = priced
		o.UpdatedAt = s.coord.Now()
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		result = o

		out.Add(notify.EventUpdateOrder, o, notify.Table(t.ID), notify.Directors(t.RestaurantID))
		return nil
	})
	return result, err
}

// SetApprovedLine corrects the quantity of a product on the approved order.
// Zero or less removes it.
func (s *Service) SetApprovedLine(ctx context.Context, actor models.Actor, in LineInput) (*models.Order, error) {
	if in.ProductID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editApproved(ctx, actor, in.TableID, func(lines []models.Line) []models.Line {
		return setLine(lines, in.ProductID, in.Quantity)
	})
}

func (s *Service) RemoveApprovedLine(ctx context.Context, actor models.Actor, tableID, productID string) (*models.Order, error) {
	if productID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editApproved(ctx, actor, tableID, func(lines []models.Line) []models.Line {
		return setLine(lines, productID, 0)
	})
}
