// Package ledger owns the order stages of a table: the customer basket, the
// active order the kitchen works on and the approved, billable order.
package ledger

import (
	"context"
	"errors"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
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
		logger: logger.Named("ledger"),
	}
}

// LineInput names a product and quantity on one of the table's orders.
type LineInput struct {
	TableID   string `json:"table"`
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// sessionTable loads a table for a customer holding its session code.
func sessionTable(ctx context.Context, tx repository.Repository, tableID, code string) (*models.Table, error) {
	t, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return nil, repository.Describe(err, "table "+tableID)
	}
	if !t.Occupied || t.Code != code {
		return nil, apperr.Unauthorizedf("invalid session for table %s", tableID)
	}
	return t, nil
}

// servedTable loads a table the acting waiter serves.
func servedTable(ctx context.Context, tx repository.Repository, actor models.Actor, tableID string) (*models.Table, error) {
	t, err := lifecycle.LoadTable(ctx, tx, actor, tableID)
	if err != nil {
		return nil, err
	}
	if t.WaiterID != actor.ID {
		return nil, apperr.Forbiddenf("table %s is not served by you", tableID)
	}
	if !t.Occupied {
		return nil, apperr.Conflictf("table %s is not occupied", tableID)
	}
	return t, nil
}

func getActive(ctx context.Context, tx repository.Repository, t *models.Table, waiterID string) (*models.ActiveOrder, error) {
	a, err := tx.GetActiveOrder(ctx, t.ID, waiterID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.ActiveOrder{
			ID:           repository.NewID(),
			RestaurantID: t.RestaurantID,
			TableID:      t.ID,
			WaiterID:     waiterID,
			Lines:        models.Lines{Products: []models.Line{}},
		}, nil
	}
	return a, err
}

func getOrder(ctx context.Context, tx repository.Repository, t *models.Table, waiterID string) (*models.Order, error) {
	o, err := tx.GetOrder(ctx, t.ID, waiterID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Order{
			ID:           repository.NewID(),
			RestaurantID: t.RestaurantID,
			TableID:      t.ID,
			WaiterID:     waiterID,
			Lines:        models.Lines{Products: []models.Line{}},
		}, nil
	}
	return o, err
}

// syncActiveFlag recomputes hasActiveOrder from the table's active orders and
// queues the matching event when it flips.
func (s *Service) syncActiveFlag(ctx context.Context, tx repository.Repository, t *models.Table, out *lifecycle.Outbox) error {
	actives, err := tx.ListActiveOrders(ctx, repository.OrderQuery{TableIDs: []string{t.ID}})
	if err != nil {
		return err
	}
	has := false
	for _, a := range actives {
		if !a.Empty() {
			has = true
			break
		}
	}
	if has == t.HasActiveOrder {
		return nil
	}

	t.HasActiveOrder = has
	t.UpdatedAt = s.coord.Now()
	if err := tx.ReplaceTable(ctx, t); err != nil {
		return err
	}

	payload := map[string]interface{}{"id": t.ID, "name": t.Name}
	event := notify.EventNoActiveOrder
	if has {
		event = notify.EventNewActiveOrder
	}
	out.Add(event, payload, lifecycle.WaiterTopic(t), notify.Directors(t.RestaurantID), notify.Table(t.ID))
	return nil
}
