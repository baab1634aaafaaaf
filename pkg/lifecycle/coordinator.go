// Package lifecycle orders and commits every state change of a table. All
// table mutations run through Coordinator.Mutate: serialized per table,
// retried on optimistic conflicts and committed in one transaction, with
// notifications sent only after commit.
package lifecycle

import (
	"context"
	"time"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/serial"
	"go.uber.org/zap"
)

type pending struct {
	name    string
	payload interface{}
	topics  []string
}

// Outbox collects events during a mutation. They are emitted once the
// transaction committed and dropped otherwise.
type Outbox struct {
	events []pending
}

func (o *Outbox) Add(name string, payload interface{}, topics ...string) {
	o.events = append(o.events, pending{name: name, payload: payload, topics: topics})
}

func (o *Outbox) flush(ctx context.Context, emitter notify.Emitter) {
	for _, e := range o.events {
		emitter.Emit(ctx, e.name, e.payload, e.topics...)
	}
}

// MutateFunc runs inside the table's transaction. It may run more than once.
type MutateFunc func(ctx context.Context, tx repository.Repository, out *Outbox) error

type Coordinator struct {
	repo    repository.Repository
	serial  serial.Serializer
	emitter notify.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewCoordinator(repo repository.Repository, serializer serial.Serializer, emitter notify.Emitter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		repo:    repo,
		serial:  serializer,
		emitter: emitter,
		logger:  logger.Named("lifecycle"),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

func (c *Coordinator) Now() time.Time {
	return c.now()
}

func (c *Coordinator) Repository() repository.Repository {
	return c.repo
}

func (c *Coordinator) Emitter() notify.Emitter {
	return c.emitter
}

// Mutate runs fn for tableID. Calls must not nest for the same table.
func (c *Coordinator) Mutate(ctx context.Context, tableID string, fn MutateFunc) error {
	var out *Outbox
	err := c.serial.Do(ctx, tableID, func(ctx context.Context) error {
		return repository.Retry(ctx, func(ctx context.Context) error {
			out = &Outbox{}
			return c.repo.RunInTx(ctx, func(ctx context.Context, tx repository.Repository) error {
				return fn(ctx, tx, out)
			})
		})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			c.logger.Error("Table mutation failed", zap.String("table_id", tableID), zap.Error(err))
		}
		return err
	}
	out.flush(ctx, c.emitter)
	return nil
}

// Atomic runs fn in one transaction without table serialization. Used for
// mutations that span many tables, such as catalog and tenant cascades.
func (c *Coordinator) Atomic(ctx context.Context, fn MutateFunc) error {
	var out *Outbox
	err := repository.Retry(ctx, func(ctx context.Context) error {
		out = &Outbox{}
		return c.repo.RunInTx(ctx, func(ctx context.Context, tx repository.Repository) error {
			return fn(ctx, tx, out)
		})
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			c.logger.Error("Atomic mutation failed", zap.Error(err))
		}
		return err
	}
	out.flush(ctx, c.emitter)
	return nil
}

// Forget releases per-table resources of deleted tables.
func (c *Coordinator) Forget(tableIDs ...string) {
	for _, id := range tableIDs {
		c.serial.Forget(id)
	}
}

// LoadTable reads a table inside tx and checks that actor may see it.
func LoadTable(ctx context.Context, tx repository.Repository, actor models.Actor, id string) (*models.Table, error) {
	t, err := tx.GetTable(ctx, id)
	if err != nil {
		return nil, repository.Describe(err, "table "+id)
	}
	if actor.Role != models.RoleAdmin && t.RestaurantID != actor.RestaurantID {
		return nil, apperr.NotFoundf("table %s not found", id)
	}
	if actor.Role == models.RoleAdmin && actor.RestaurantID != "" && t.RestaurantID != actor.RestaurantID {
		return nil, apperr.NotFoundf("table %s not found", id)
	}
	return t, nil
}

// WaiterTopic is the audience for events meant for whoever serves t: the
// assigned waiter, or every waiter of the restaurant.
func WaiterTopic(t *models.Table) string {
	if t.WaiterID != "" {
		return notify.Staff(t.WaiterID)
	}
	return notify.Waiters(t.RestaurantID)
}
