package testkit

import (
	"context"
	"sync"

	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
)

// WriteLog records the documents written through it, keyed "product/<id>",
// "staff/<id>" or "table/<id>". On a snapshot-isolated store two
// transactions whose write sets overlap cannot both commit, so tests use it
// to check that racing operations collide.
type WriteLog struct {
	repository.Repository
	mu     *sync.Mutex
	writes *[]string
}

func NewWriteLog(repo repository.Repository) *WriteLog {
	return &WriteLog{Repository: repo, mu: &sync.Mutex{}, writes: &[]string{}}
}

func (w *WriteLog) record(keys ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.writes = append(*w.writes, keys...)
}

// Take returns the writes recorded since the last call.
func (w *WriteLog) Take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := *w.writes
	*w.writes = nil
	return out
}

func (w *WriteLog) RunInTx(ctx context.Context, fn repository.TxFunc) error {
	return w.Repository.RunInTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		return fn(ctx, &WriteLog{Repository: tx, mu: w.mu, writes: w.writes})
	})
}

func (w *WriteLog) ClaimProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	p, err := w.Repository.ClaimProduct(ctx, restaurantID, id)
	if err == nil {
		w.record("product/" + id)
	}
	return p, err
}

func (w *WriteLog) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := w.Repository.UpdateProduct(ctx, p); err != nil {
		return err
	}
	w.record("product/" + p.ID)
	return nil
}

func (w *WriteLog) DeleteProducts(ctx context.Context, restaurantID string, ids []string) error {
	if err := w.Repository.DeleteProducts(ctx, restaurantID, ids); err != nil {
		return err
	}
	for _, id := range ids {
		w.record("product/" + id)
	}
	return nil
}

func (w *WriteLog) ClaimStaff(ctx context.Context, restaurantID, staffID string) error {
	if err := w.Repository.ClaimStaff(ctx, restaurantID, staffID); err != nil {
		return err
	}
	w.record("staff/" + staffID)
	return nil
}

func (w *WriteLog) ReplaceTable(ctx context.Context, t *models.Table) error {
	if err := w.Repository.ReplaceTable(ctx, t); err != nil {
		return err
	}
	w.record("table/" + t.ID)
	return nil
}
