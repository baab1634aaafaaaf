// Package registry manages tables: their types, occupancy, customer session
// codes and waiter calls.
package registry

import (
	"context"
	"regexp"
	"strings"

	"github.com/example/dinein/pkg/apperr"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/repository"
	"go.uber.org/zap"
)

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// StaffLookup resolves staff members for waiter assignment.
type StaffLookup interface {
	Get(ctx context.Context, id string) (*identity.Staff, error)
}

type Service struct {
	coord     *lifecycle.Coordinator
	repo      repository.Repository
	staff     StaffLookup
	publicURL string
	logger    *zap.Logger
}

func NewService(coord *lifecycle.Coordinator, staff StaffLookup, publicURL string, logger *zap.Logger) *Service {
	return &Service{
		coord:     coord,
		repo:      coord.Repository(),
		staff:     staff,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.Named("registry"),
	}
}

func (s *Service) qrCode(tableID string) string {
	return s.publicURL + "/connect/" + tableID
}

// checkWaiter verifies that id is a waiter of restaurantID.
func (s *Service) checkWaiter(ctx context.Context, restaurantID, id string) error {
	st, err := s.staff.Get(ctx, id)
	if apperr.Is(err, apperr.NotFound) {
		return apperr.Validationf("waiter %s does not exist", id)
	}
	if err != nil {
		return err
	}
	if st.Role != models.RoleWaiter || st.RestaurantID != restaurantID {
		return apperr.Validationf("waiter %s does not exist", id)
	}
	return nil
}

func requireRestaurant(actor models.Actor) error {
	if actor.RestaurantID == "" {
		return apperr.Validationf("restaurant is required")
	}
	return nil
}
