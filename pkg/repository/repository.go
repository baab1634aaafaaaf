package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/dinein/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrStale is returned when a versioned write lost against a concurrent
	// writer, or an insert hit a unique key another writer created first.
	ErrStale = errors.New("document was modified concurrently")
)

// TxFunc runs against a repository bound to the surrounding transaction.
type TxFunc func(ctx context.Context, repo Repository) error

type TableQuery struct {
	RestaurantID string
	IDs          []string
	TypeID       string
	WaiterID     string
	CallID       string
	Occupied     *bool
	// Assigned filters on whether a waiter is set.
	Assigned *bool
	Calls    []models.CallStatus
}

type OrderQuery struct {
	RestaurantID string
	TableIDs     []string
	WaiterIDs    []string
	ProductIDs   []string
}

type BasketQuery struct {
	RestaurantID string
	TableIDs     []string
	ProductIDs   []string
}

type ArchiveQuery struct {
	RestaurantID string
	TableID      string
	WaiterIDs    []string
}

type ProductQuery struct {
	RestaurantID string
	IDs          []string
	CategoryID   string
}

type Repository interface {
	// RunInTx executes fn atomically. Calls made through the repo handed to
	// fn either all commit or none do. Nested calls join the outer transaction.
	RunInTx(ctx context.Context, fn TxFunc) error

	CreateRestaurant(ctx context.Context, r *models.Restaurant) error
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]*models.Restaurant, error)
	UpdateRestaurant(ctx context.Context, r *models.Restaurant) error
	DeleteRestaurant(ctx context.Context, id string) error
	// PurgeRestaurant removes every document owned by the restaurant.
	PurgeRestaurant(ctx context.Context, id string) error

	CreateTableType(ctx context.Context, t *models.TableType) error
	GetTableType(ctx context.Context, restaurantID, id string) (*models.TableType, error)
	ListTableTypes(ctx context.Context, restaurantID string) ([]*models.TableType, error)
	UpdateTableType(ctx context.Context, t *models.TableType) error
	DeleteTableType(ctx context.Context, restaurantID, id string) error

	CreateTable(ctx context.Context, t *models.Table) error
	GetTable(ctx context.Context, id string) (*models.Table, error)
	FindTables(ctx context.Context, q TableQuery) ([]*models.Table, error)
	// ReplaceTable writes t if its stored version still equals t.Version and
	// bumps the version, otherwise it returns ErrStale.
	ReplaceTable(ctx context.Context, t *models.Table) error
	DeleteTables(ctx context.Context, ids []string) error

	CreateBasket(ctx context.Context, b *models.Basket) error
	GetBasket(ctx context.Context, tableID string) (*models.Basket, error)
	ListBaskets(ctx context.Context, q BasketQuery) ([]*models.Basket, error)
	ReplaceBasket(ctx context.Context, b *models.Basket) error
	DeleteBaskets(ctx context.Context, q BasketQuery) error

	GetActiveOrder(ctx context.Context, tableID, waiterID string) (*models.ActiveOrder, error)
	ListActiveOrders(ctx context.Context, q OrderQuery) ([]*models.ActiveOrder, error)
	// SaveActiveOrder inserts when Version is zero and replaces otherwise.
	SaveActiveOrder(ctx context.Context, o *models.ActiveOrder) error
	DeleteActiveOrders(ctx context.Context, q OrderQuery) error

	GetOrder(ctx context.Context, tableID, waiterID string) (*models.Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]*models.Order, error)
	SaveOrder(ctx context.Context, o *models.Order) error
	DeleteOrders(ctx context.Context, q OrderQuery) error

	CreateArchiveOrder(ctx context.Context, a *models.ArchiveOrder) error
	ListArchiveOrders(ctx context.Context, q ArchiveQuery) ([]*models.ArchiveOrder, error)
	DeleteArchiveOrders(ctx context.Context, q ArchiveQuery) error

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, restaurantID, id string) (*models.Category, error)
	ListCategories(ctx context.Context, restaurantID string) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, restaurantID, id string) error

	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, restaurantID, id string) (*models.Product, error)
	FindProducts(ctx context.Context, q ProductQuery) ([]*models.Product, error)
	// ClaimProduct returns an available product and writes to it inside the
	// transaction, so a concurrent update or delete of the product conflicts
	// with the caller. Products that exist but are not available give
	// ErrNotFound.
	ClaimProduct(ctx context.Context, restaurantID, id string) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProducts(ctx context.Context, restaurantID string, ids []string) error

	// ClaimStaff writes a per-staff marker inside the transaction. Writers
	// that assign a staff member to a table and the staff removal both claim
	// it, so they cannot commit concurrently.
	ClaimStaff(ctx context.Context, restaurantID, staffID string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewID returns a fresh document id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

const maxAttempts = 5

// Retry runs fn again while it fails with ErrStale.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(ctx); !errors.Is(err, ErrStale) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, err)
}
