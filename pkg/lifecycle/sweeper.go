package lifecycle

import (
	"context"
	"time"

	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/repository"
	"go.uber.org/zap"
)

// Sweeper declines calls nobody answered within the expiry.
type Sweeper struct {
	coord    *Coordinator
	expiry   time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(coord *Coordinator, expiry, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		coord:    coord,
		expiry:   expiry,
		interval: interval,
		logger:   logger.Named("sweeper"),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Call sweeper started",
		zap.Duration("expiry", s.expiry),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Call sweeper stopped")
			return nil
		case <-ticker.C:
			n, err := s.SweepOnce(ctx, s.coord.Now())
			if err != nil {
				s.logger.Error("Call sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Expired calls", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce expires the calls that are overdue at now and returns how many
// it reset. Each table is re-checked inside its own transaction so a call
// accepted after the scan is left alone.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	tables, err := s.coord.repo.FindTables(ctx, repository.TableQuery{
		Calls: []models.CallStatus{models.CallCalling},
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, scanned := range tables {
		if !scanned.CallExpired(now, s.expiry) {
			continue
		}
		reset := false
		err := s.coord.Mutate(ctx, scanned.ID, func(ctx context.Context, tx repository.Repository, out *Outbox) error {
			reset = false
			t, err := tx.GetTable(ctx, scanned.ID)
			if err != nil {
				return err
			}
			if !t.CallExpired(now, s.expiry) {
				return nil
			}

			t.Call = models.CallNone
			t.CallTime = nil
			if t.WaiterID == "" {
				t.CallID = ""
			}
			t.UpdatedAt = now
			if err := tx.ReplaceTable(ctx, t); err != nil {
				return err
			}
			reset = true

			payload := map[string]interface{}{"id": t.ID, "name": t.Name}
			out.Add(notify.EventCallDeclined, payload, notify.Table(t.ID), notify.Waiters(t.RestaurantID))
			expiredTo := []string{notify.Directors(t.RestaurantID)}
			if t.WaiterID != "" {
				expiredTo = append(expiredTo, notify.Staff(t.WaiterID))
			}
			out.Add(notify.EventCallExpired, payload, expiredTo...)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			s.logger.Warn("Failed to expire call", zap.String("table_id", scanned.ID), zap.Error(err))
			continue
		}
		if reset {
			expired++
		}
	}
	return expired, nil
}
