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

func (s *Service) GetBasket(ctx context.Context, tableID, code string) (*models.Basket, error) {
	t, err := sessionTable(ctx, s.repo, tableID, code)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.GetBasket(ctx, t.ID)
	if err != nil {
		return nil, repository.Describe(err, "basket of table "+tableID)
	}
	return b, nil
}

// editBasket applies edit to the basket lines and re-prices the result.
func (s *Service) editBasket(ctx context.Context, tableID, code string, edit func(lines []models.Line) []models.Line) (*models.Basket, error) {
	var result *models.Basket
	err := s.coord.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := sessionTable(ctx, tx, tableID, code)
		if err != nil {
			return err
		}
		b, err := tx.GetBasket(ctx, t.ID)
		if err != nil {
			return repository.Describe(err, "basket of table "+tableID)
		}

		priced, err := Price(ctx, tx, t.RestaurantID, edit(b.Products))
		if err != nil {
			return err
		}
		b.Lines = priced
		b.UpdatedAt = s.coord.Now()
		if err := tx.ReplaceBasket(ctx, b); err != nil {
			return err
		}
		result = b

		out.Add(notify.EventUpdateBasket, b, notify.Table(t.ID))
		return nil
	})
	return result, err
}

func (s *Service) AddToBasket(ctx context.Context, code string, in LineInput) (*models.Basket, error) {
	if err := validateLine(in.ProductID, in.Quantity); err != nil {
		return nil, err
	}
	return s.editBasket(ctx, in.TableID, code, func(lines []models.Line) []models.Line {
		return addLine(lines, in.ProductID, in.Quantity)
	})
}

// UpdateBasketLine sets the quantity of a product. Zero or less removes it.
func (s *Service) UpdateBasketLine(ctx context.Context, code string, in LineInput) (*models.Basket, error) {
	if in.ProductID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editBasket(ctx, in.TableID, code, func(lines []models.Line) []models.Line {
		return setLine(lines, in.ProductID, in.Quantity)
	})
}

func (s *Service) RemoveBasketLine(ctx context.Context, code, tableID, productID string) (*models.Basket, error) {
	if productID == "" {
		return nil, apperr.Validationf("product is required")
	}
	return s.editBasket(ctx, tableID, code, func(lines []models.Line) []models.Line {
		return setLine(lines, productID, 0)
	})
}

func (s *Service) ClearBasket(ctx context.Context, tableID, code string) (*models.Basket, error) {
	return s.editBasket(ctx, tableID, code, func([]models.Line) []models.Line {
		return nil
	})
}

// SubmitOrder moves the basket into the active order of the table's current
// waiter, creating it when needed, and empties the basket.
func (s *Service) SubmitOrder(ctx context.Context, tableID, code string) (*models.ActiveOrder, error) {
	var result *models.ActiveOrder
	err := s.coord.Mutate(ctx, tableID, func(ctx context.Context, tx repository.Repository, out *lifecycle.Outbox) error {
		t, err := sessionTable(ctx, tx, tableID, code)
		if err != nil {
			return err
		}
		b, err := tx.GetBasket(ctx, t.ID)
		if err != nil {
			return repository.Describe(err, "basket of table "+tableID)
		}
		if b.Empty() {
			return apperr.Validationf("basket is empty")
		}

		a, err := getActive(ctx, tx, t, t.WaiterID)
		if err != nil {
			return err
		}
		priced, err := Price(ctx, tx, t.RestaurantID, append(append([]models.Line(nil), a.Products...), b.Products...))
		if err != nil {
			return err
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

		b.Lines = models.Lines{Products: []models.Line{}}
		b.UpdatedAt = now
		if err := tx.ReplaceBasket(ctx, b); err != nil {
			return err
		}
		if err := s.syncActiveFlag(ctx, tx, t, out); err != nil {
			return err
		}
		result = a

		out.Add(notify.EventUpdateBasket, b, notify.Table(t.ID))
		out.Add(notify.EventUpdateActiveOrder, a, notify.Table(t.ID), lifecycle.WaiterTopic(t))
		return nil
	})
	return result, err
}

// ClientOrders is what a seated customer sees: the active order while one is
// open and the approved order.
type ClientOrders struct {
	ActiveOrder *models.ActiveOrder `json:"activeOrders,omitempty"`
	TotalOrder  *models.Order       `json:"totalOrders,omitempty"`
}

func (s *Service) ClientOrders(ctx context.Context, tableID, code string) (*ClientOrders, error) {
	t, err := sessionTable(ctx, s.repo, tableID, code)
	if err != nil {
		return nil, err
	}
	res := &ClientOrders{}
	if t.HasActiveOrder {
		a, err := s.repo.GetActiveOrder(ctx, t.ID, t.WaiterID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		res.ActiveOrder = a
	}
	o, err := s.repo.GetOrder(ctx, t.ID, t.WaiterID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	res.TotalOrder = o
	return res, nil
}
