package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	colRestaurants = "restaurants"
	colTableTypes  = "tabletypes"
	colTables      = "tables"
	colBaskets     = "baskets"
	colActives     = "activeorders"
	colOrders      = "orders"
	colArchives    = "archiveorders"
	colCategories  = "categories"
	colProducts    = "products"
	colStaffClaims = "staffclaims"
)

// MongoRepository stores every document in MongoDB. Transactions need a
// replica set deployment.
type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	m := &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoRepository) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		colTables: {
			{Keys: bson.D{{Key: "restaurant", Value: 1}, {Key: "typeOfTable", Value: 1}}},
			{Keys: bson.D{{Key: "waiter", Value: 1}}},
			{Keys: bson.D{{Key: "call", Value: 1}}},
		},
		colBaskets: {
			{Keys: bson.D{{Key: "table", Value: 1}}, Options: unique},
		},
		colActives: {
			{Keys: bson.D{{Key: "table", Value: 1}, {Key: "waiter", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "products.product", Value: 1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "table", Value: 1}, {Key: "waiter", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "products.product", Value: 1}}},
		},
		colArchives: {
			{Keys: bson.D{{Key: "restaurant", Value: 1}, {Key: "table", Value: 1}}},
		},
		colProducts: {
			{Keys: bson.D{{Key: "restaurant", Value: 1}, {Key: "category", Value: 1}}},
		},
		colStaffClaims: {
			{Keys: bson.D{{Key: "restaurant", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := m.database.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) RunInTx(ctx context.Context, fn TxFunc) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, m)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, m)
	}, opts)
	return err
}

func (m *MongoRepository) col(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrStale
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M) ([]*T, error) {
	cursor, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func insert(ctx context.Context, c *mongo.Collection, doc interface{}) error {
	_, err := c.InsertOne(ctx, doc)
	return translate(err)
}

func replaceScoped(ctx context.Context, c *mongo.Collection, filter bson.M, doc interface{}) error {
	res, err := c.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// replaceVersioned writes doc only if the stored version is still version.
func replaceVersioned(ctx context.Context, c *mongo.Collection, id string, version int64, doc interface{}) error {
	res, err := c.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := c.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStale
}

func deleteScoped(ctx context.Context, c *mongo.Collection, filter bson.M) error {
	res, err := c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteMany(ctx context.Context, c *mongo.Collection, filter bson.M) error {
	_, err := c.DeleteMany(ctx, filter)
	return err
}

// in adds an $in clause when values is non-nil. An empty slice matches nothing.
func in(filter bson.M, key string, values []string) {
	if values != nil {
		filter[key] = bson.M{"$in": values}
	}
}

func eq(filter bson.M, key, value string) {
	if value != "" {
		filter[key] = value
	}
}

// Restaurants

func (m *MongoRepository) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	return insert(ctx, m.col(colRestaurants), r)
}

func (m *MongoRepository) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	return findOne[models.Restaurant](ctx, m.col(colRestaurants), bson.M{"_id": id})
}

func (m *MongoRepository) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	return findAll[models.Restaurant](ctx, m.col(colRestaurants), bson.M{})
}

func (m *MongoRepository) UpdateRestaurant(ctx context.Context, r *models.Restaurant) error {
	return replaceScoped(ctx, m.col(colRestaurants), bson.M{"_id": r.ID}, r)
}

func (m *MongoRepository) DeleteRestaurant(ctx context.Context, id string) error {
	return deleteScoped(ctx, m.col(colRestaurants), bson.M{"_id": id})
}

func (m *MongoRepository) PurgeRestaurant(ctx context.Context, id string) error {
	for _, name := range []string{colTableTypes, colTables, colBaskets, colActives, colOrders, colArchives, colCategories, colProducts, colStaffClaims} {
		if err := deleteMany(ctx, m.col(name), bson.M{"restaurant": id}); err != nil {
			return fmt.Errorf("failed to purge %s: %w", name, err)
		}
	}
	return nil
}

// Table types

func (m *MongoRepository) CreateTableType(ctx context.Context, t *models.TableType) error {
	return insert(ctx, m.col(colTableTypes), t)
}

func (m *MongoRepository) GetTableType(ctx context.Context, restaurantID, id string) (*models.TableType, error) {
	return findOne[models.TableType](ctx, m.col(colTableTypes), bson.M{"_id": id, "restaurant": restaurantID})
}

func (m *MongoRepository) ListTableTypes(ctx context.Context, restaurantID string) ([]*models.TableType, error) {
	return findAll[models.TableType](ctx, m.col(colTableTypes), bson.M{"restaurant": restaurantID})
}

func (m *MongoRepository) UpdateTableType(ctx context.Context, t *models.TableType) error {
	return replaceScoped(ctx, m.col(colTableTypes), bson.M{"_id": t.ID, "restaurant": t.RestaurantID}, t)
}

func (m *MongoRepository) DeleteTableType(ctx context.Context, restaurantID, id string) error {
	return deleteScoped(ctx, m.col(colTableTypes), bson.M{"_id": id, "restaurant": restaurantID})
}

// Tables

func (m *MongoRepository) CreateTable(ctx context.Context, t *models.Table) error {
	t.Version = 1
	return insert(ctx, m.col(colTables), t)
}

func (m *MongoRepository) GetTable(ctx context.Context, id string) (*models.Table, error) {
	return findOne[models.Table](ctx, m.col(colTables), bson.M{"_id": id})
}

func (m *MongoRepository) FindTables(ctx context.Context, q TableQuery) ([]*models.Table, error) {
	filter := bson.M{}
	eq(filter, "restaurant", q.RestaurantID)
	in(filter, "_id", q.IDs)
	eq(filter, "typeOfTable", q.TypeID)
	eq(filter, "waiter", q.WaiterID)
	eq(filter, "callId", q.CallID)
	if q.Occupied != nil {
		filter["occupied"] = *q.Occupied
	}
	if q.Assigned != nil {
		if *q.Assigned {
			filter["waiter"] = bson.M{"$ne": ""}
		} else {
			filter["waiter"] = ""
		}
	}
	if len(q.Calls) > 0 {
		filter["call"] = bson.M{"$in": q.Calls}
	}
	return findAll[models.Table](ctx, m.col(colTables), filter)
}

func (m *MongoRepository) ReplaceTable(ctx context.Context, t *models.Table) error {
	next := *t
	next.Version++
	if err := replaceVersioned(ctx, m.col(colTables), t.ID, t.Version, &next); err != nil {
		return err
	}
	t.Version = next.Version
	return nil
}

func (m *MongoRepository) DeleteTables(ctx context.Context, ids []string) error {
	return deleteMany(ctx, m.col(colTables), bson.M{"_id": bson.M{"$in": ids}})
}

// Baskets

func basketFilter(q BasketQuery) bson.M {
	filter := bson.M{}
	eq(filter, "restaurant", q.RestaurantID)
	in(filter, "table", q.TableIDs)
	in(filter, "products.product", q.ProductIDs)
	return filter
}

func (m *MongoRepository) CreateBasket(ctx context.Context, b *models.Basket) error {
	b.Version = 1
	return insert(ctx, m.col(colBaskets), b)
}

func (m *MongoRepository) GetBasket(ctx context.Context, tableID string) (*models.Basket, error) {
	return findOne[models.Basket](ctx, m.col(colBaskets), bson.M{"table": tableID})
}

func (m *MongoRepository) ListBaskets(ctx context.Context, q BasketQuery) ([]*models.Basket, error) {
	return findAll[models.Basket](ctx, m.col(colBaskets), basketFilter(q))
}

func (m *MongoRepository) ReplaceBasket(ctx context.Context, b *models.Basket) error {
	next := *b
	next.Version++
	if err := replaceVersioned(ctx, m.col(colBaskets), b.ID, b.Version, &next); err != nil {
		return err
	}
	b.Version = next.Version
	return nil
}

func (m *MongoRepository) DeleteBaskets(ctx context.Context, q BasketQuery) error {
	return deleteMany(ctx, m.col(colBaskets), basketFilter(q))
}

// Active orders and orders

func orderFilter(q OrderQuery) bson.M {
	filter := bson.M{}
	eq(filter, "restaurant", q.RestaurantID)
	in(filter, "table", q.TableIDs)
	in(filter, "waiter", q.WaiterIDs)
	in(filter, "products.product", q.ProductIDs)
	return filter
}

// save inserts a fresh document or replaces a versioned one. The caller's
// version is bumped only after the write succeeded.
func save(ctx context.Context, c *mongo.Collection, id string, version *int64, doc interface{}) error {
	old := *version
	*version = old + 1
	var err error
	if old == 0 {
		err = insert(ctx, c, doc)
	} else {
		err = replaceVersioned(ctx, c, id, old, doc)
	}
	if err != nil {
		*version = old
	}
	return err
}

func (m *MongoRepository) GetActiveOrder(ctx context.Context, tableID, waiterID string) (*models.ActiveOrder, error) {
	return findOne[models.ActiveOrder](ctx, m.col(colActives), bson.M{"table": tableID, "waiter": waiterID})
}

func (m *MongoRepository) ListActiveOrders(ctx context.Context, q OrderQuery) ([]*models.ActiveOrder, error) {
	return findAll[models.ActiveOrder](ctx, m.col(colActives), orderFilter(q))
}

func (m *MongoRepository) SaveActiveOrder(ctx context.Context, o *models.ActiveOrder) error {
	return save(ctx, m.col(colActives), o.ID, &o.Version, o)
}

func (m *MongoRepository) DeleteActiveOrders(ctx context.Context, q OrderQuery) error {
	return deleteMany(ctx, m.col(colActives), orderFilter(q))
}

func (m *MongoRepository) GetOrder(ctx context.Context, tableID, waiterID string) (*models.Order, error) {
	return findOne[models.Order](ctx, m.col(colOrders), bson.M{"table": tableID, "waiter": waiterID})
}

func (m *MongoRepository) ListOrders(ctx context.Context, q OrderQuery) ([]*models.Order, error) {
	return findAll[models.Order](ctx, m.col(colOrders), orderFilter(q))
}

func (m *MongoRepository) SaveOrder(ctx context.Context, o *models.Order) error {
	return save(ctx, m.col(colOrders), o.ID, &o.Version, o)
}

func (m *MongoRepository) DeleteOrders(ctx context.Context, q OrderQuery) error {
	return deleteMany(ctx, m.col(colOrders), orderFilter(q))
}

// Archive

func archiveFilter(q ArchiveQuery) bson.M {
	filter := bson.M{}
	eq(filter, "restaurant", q.RestaurantID)
	eq(filter, "table", q.TableID)
	in(filter, "waiter", q.WaiterIDs)
	return filter
}

func (m *MongoRepository) CreateArchiveOrder(ctx context.Context, a *models.ArchiveOrder) error {
	return insert(ctx, m.col(colArchives), a)
}

func (m *MongoRepository) ListArchiveOrders(ctx context.Context, q ArchiveQuery) ([]*models.ArchiveOrder, error) {
	return findAll[models.ArchiveOrder](ctx, m.col(colArchives), archiveFilter(q))
}

func (m *MongoRepository) DeleteArchiveOrders(ctx context.Context, q ArchiveQuery) error {
	return deleteMany(ctx, m.col(colArchives), archiveFilter(q))
}

// Categories

func (m *MongoRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	return insert(ctx, m.col(colCategories), c)
}

func (m *MongoRepository) GetCategory(ctx context.Context, restaurantID, id string) (*models.Category, error) {
	return findOne[models.Category](ctx, m.col(colCategories), bson.M{"_id": id, "restaurant": restaurantID})
}

func (m *MongoRepository) ListCategories(ctx context.Context, restaurantID string) ([]*models.Category, error) {
	return findAll[models.Category](ctx, m.col(colCategories), bson.M{"restaurant": restaurantID})
}

func (m *MongoRepository) UpdateCategory(ctx context.Context, c *models.Category) error {
	return replaceScoped(ctx, m.col(colCategories), bson.M{"_id": c.ID, "restaurant": c.RestaurantID}, c)
}

func (m *MongoRepository) DeleteCategory(ctx context.Context, restaurantID, id string) error {
	return deleteScoped(ctx, m.col(colCategories), bson.M{"_id": id, "restaurant": restaurantID})
}

// Products

func (m *MongoRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	return insert(ctx, m.col(colProducts), p)
}

func (m *MongoRepository) GetProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	return findOne[models.Product](ctx, m.col(colProducts), bson.M{"_id": id, "restaurant": restaurantID})
}

func (m *MongoRepository) FindProducts(ctx context.Context, q ProductQuery) ([]*models.Product, error) {
	filter := bson.M{}
	eq(filter, "restaurant", q.RestaurantID)
	in(filter, "_id", q.IDs)
	eq(filter, "category", q.CategoryID)
	return findAll[models.Product](ctx, m.col(colProducts), filter)
}

// ClaimProduct bumps the product's claim counter. Under snapshot isolation
// two transactions writing the same document cannot both commit, which is
// what keeps order edits and catalog guards apart.
func (m *MongoRepository) ClaimProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	var out models.Product
	err := m.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "restaurant": restaurantID, "available": true},
		bson.M{"$inc": bson.M{"claims": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (m *MongoRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	return replaceScoped(ctx, m.col(colProducts), bson.M{"_id": p.ID, "restaurant": p.RestaurantID}, p)
}

func (m *MongoRepository) DeleteProducts(ctx context.Context, restaurantID string, ids []string) error {
	return deleteMany(ctx, m.col(colProducts), bson.M{"restaurant": restaurantID, "_id": bson.M{"$in": ids}})
}

// Staff claims

func (m *MongoRepository) ClaimStaff(ctx context.Context, restaurantID, staffID string) error {
	_, err := m.col(colStaffClaims).UpdateOne(ctx,
		bson.M{"_id": staffID},
		bson.M{"$inc": bson.M{"claims": 1}, "$set": bson.M{"restaurant": restaurantID}},
		options.Update().SetUpsert(true))
	return translate(err)
}
