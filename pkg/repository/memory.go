package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/example/dinein/pkg/models"
)

type memData struct {
	restaurants map[string]*models.Restaurant
	tableTypes  map[string]*models.TableType
	tables      map[string]*models.Table
	baskets     map[string]*models.Basket
	actives     map[string]*models.ActiveOrder
	orders      map[string]*models.Order
	archives    map[string]*models.ArchiveOrder
	categories  map[string]*models.Category
	products    map[string]*models.Product
}

func newMemData() *memData {
	return &memData{
		restaurants: map[string]*models.Restaurant{},
		tableTypes:  map[string]*models.TableType{},
		tables:      map[string]*models.Table{},
		baskets:     map[string]*models.Basket{},
		actives:     map[string]*models.ActiveOrder{},
		orders:      map[string]*models.Order{},
		archives:    map[string]*models.ArchiveOrder{},
		categories:  map[string]*models.Category{},
		products:    map[string]*models.Product{},
	}
}

func copyMap[T any](src map[string]*T, cp func(*T) *T) map[string]*T {
	dst := make(map[string]*T, len(src))
	for k, v := range src {
		dst[k] = cp(v)
	}
	return dst
}

func (d *memData) clone() *memData {
	return &memData{
		restaurants: copyMap(d.restaurants, copyRestaurant),
		tableTypes:  copyMap(d.tableTypes, copyTableType),
		tables:      copyMap(d.tables, copyTable),
		baskets:     copyMap(d.baskets, copyBasket),
		actives:     copyMap(d.actives, copyActive),
		orders:      copyMap(d.orders, copyOrder),
		archives:    copyMap(d.archives, copyArchive),
		categories:  copyMap(d.categories, copyCategory),
		products:    copyMap(d.products, copyProduct),
	}
}

func copyRestaurant(r *models.Restaurant) *models.Restaurant { c := *r; return &c }
func copyTableType(t *models.TableType) *models.TableType    { c := *t; return &c }
func copyCategory(x *models.Category) *models.Category       { c := *x; return &c }
func copyProduct(p *models.Product) *models.Product          { c := *p; return &c }

func copyTable(t *models.Table) *models.Table {
	c := *t
	if t.CallTime != nil {
		ct := *t.CallTime
		c.CallTime = &ct
	}
	return &c
}

func copyLines(l models.Lines) models.Lines {
	l.Products = append([]models.Line(nil), l.Products...)
	return l
}

func copyBasket(b *models.Basket) *models.Basket {
	c := *b
	c.Lines = copyLines(b.Lines)
	return &c
}

func copyActive(o *models.ActiveOrder) *models.ActiveOrder {
	c := *o
	c.Lines = copyLines(o.Lines)
	return &c
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Lines = copyLines(o.Lines)
	return &c
}

func copyArchive(a *models.ArchiveOrder) *models.ArchiveOrder {
	c := *a
	c.TotalOrders = append([]models.ArchivedLine(nil), a.TotalOrders...)
	return &c
}

// Memory is an in-process Repository. Transactions work on a copy of the
// data that replaces the live copy on commit; one transaction runs at a time.
type Memory struct {
	mu   *sync.Mutex
	data **memData
	tx   *memData
}

func NewMemory() *Memory {
	data := newMemData()
	return &Memory{mu: &sync.Mutex{}, data: &data}
}

// view returns the data to operate on and a release func.
func (m *Memory) view() (*memData, func()) {
	if m.tx != nil {
		return m.tx, func() {}
	}
	m.mu.Lock()
	return *m.data, m.mu.Unlock
}

func (m *Memory) RunInTx(ctx context.Context, fn TxFunc) error {
	if m.tx != nil {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	txRepo := &Memory{mu: m.mu, data: m.data, tx: (*m.data).clone()}
	if err := fn(ctx, txRepo); err != nil {
		return err
	}
	*m.data = txRepo.tx
	return nil
}

func (m *Memory) ClaimStaff(ctx context.Context, restaurantID, staffID string) error { return nil }

func (m *Memory) Ping(ctx context.Context) error  { return nil }
func (m *Memory) Close(ctx context.Context) error { return nil }

func sortedValues[T any](src map[string]*T, keep func(*T) bool, cp func(*T) *T) []*T {
	keys := make([]string, 0, len(src))
	for k, v := range src {
		if keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		out = append(out, cp(src[k]))
	}
	return out
}

// set builds a filter. A nil slice means no filter, an empty one matches
// nothing.
func set(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

func match(filter map[string]bool, v string) bool {
	return filter == nil || filter[v]
}

func matchLines(filter map[string]bool, l models.Lines) bool {
	return filter == nil || l.References(filter)
}

// Restaurants

func (m *Memory) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	d, release := m.view()
	defer release()
	if _, ok := d.restaurants[r.ID]; ok {
		return ErrStale
	}
	d.restaurants[r.ID] = copyRestaurant(r)
	return nil
}

func (m *Memory) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	d, release := m.view()
	defer release()
	r, ok := d.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRestaurant(r), nil
}

func (m *Memory) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	d, release := m.view()
	defer release()
	return sortedValues(d.restaurants, func(*models.Restaurant) bool { return true }, copyRestaurant), nil
}

func (m *Memory) UpdateRestaurant(ctx context.Context, r *models.Restaurant) error {
	d, release := m.view()
	defer release()
	if _, ok := d.restaurants[r.ID]; !ok {
		return ErrNotFound
	}
	d.restaurants[r.ID] = copyRestaurant(r)
	return nil
}

func (m *Memory) DeleteRestaurant(ctx context.Context, id string) error {
	d, release := m.view()
	defer release()
	if _, ok := d.restaurants[id]; !ok {
		return ErrNotFound
	}
	delete(d.restaurants, id)
	return nil
}

func deleteWhere[T any](src map[string]*T, drop func(*T) bool) {
	for k, v := range src {
		if drop(v) {
			delete(src, k)
		}
	}
}

func (m *Memory) PurgeRestaurant(ctx context.Context, id string) error {
	d, release := m.view()
	defer release()
	deleteWhere(d.tableTypes, func(x *models.TableType) bool { return x.RestaurantID == id })
	deleteWhere(d.tables, func(x *models.Table) bool { return x.RestaurantID == id })
	deleteWhere(d.baskets, func(x *models.Basket) bool { return x.RestaurantID == id })
	deleteWhere(d.actives, func(x *models.ActiveOrder) bool { return x.RestaurantID == id })
	deleteWhere(d.orders, func(x *models.Order) bool { return x.RestaurantID == id })
	deleteWhere(d.archives, func(x *models.ArchiveOrder) bool { return x.RestaurantID == id })
	deleteWhere(d.categories, func(x *models.Category) bool { return x.RestaurantID == id })
	deleteWhere(d.products, func(x *models.Product) bool { return x.RestaurantID == id })
	return nil
}

// Table types

func (m *Memory) CreateTableType(ctx context.Context, t *models.TableType) error {
	d, release := m.view()
	defer release()
	if _, ok := d.tableTypes[t.ID]; ok {
		return ErrStale
	}
	d.tableTypes[t.ID] = copyTableType(t)
	return nil
}

func (m *Memory) GetTableType(ctx context.Context, restaurantID, id string) (*models.TableType, error) {
	d, release := m.view()
	defer release()
	t, ok := d.tableTypes[id]
	if !ok || t.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	return copyTableType(t), nil
}

func (m *Memory) ListTableTypes(ctx context.Context, restaurantID string) ([]*models.TableType, error) {
	d, release := m.view()
	defer release()
	return sortedValues(d.tableTypes, func(t *models.TableType) bool { return t.RestaurantID == restaurantID }, copyTableType), nil
}

func (m *Memory) UpdateTableType(ctx context.Context, t *models.TableType) error {
	d, release := m.view()
	defer release()
	cur, ok := d.tableTypes[t.ID]
	if !ok || cur.RestaurantID != t.RestaurantID {
		return ErrNotFound
	}
	d.tableTypes[t.ID] = copyTableType(t)
	return nil
}

func (m *Memory) DeleteTableType(ctx context.Context, restaurantID, id string) error {
	d, release := m.view()
	defer release()
	t, ok := d.tableTypes[id]
	if !ok || t.RestaurantID != restaurantID {
		return ErrNotFound
	}
	delete(d.tableTypes, id)
	return nil
}

// Tables

func (m *Memory) CreateTable(ctx context.Context, t *models.Table) error {
	d, release := m.view()
	defer release()
	if _, ok := d.tables[t.ID]; ok {
		return ErrStale
	}
	t.Version = 1
	d.tables[t.ID] = copyTable(t)
	return nil
}

func (m *Memory) GetTable(ctx context.Context, id string) (*models.Table, error) {
	d, release := m.view()
	defer release()
	t, ok := d.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTable(t), nil
}

func (m *Memory) FindTables(ctx context.Context, q TableQuery) ([]*models.Table, error) {
	d, release := m.view()
	defer release()
	ids := set(q.IDs)
	calls := map[models.CallStatus]bool{}
	for _, c := range q.Calls {
		calls[c] = true
	}
	keep := func(t *models.Table) bool {
		if q.RestaurantID != "" && t.RestaurantID != q.RestaurantID {
			return false
		}
		if !match(ids, t.ID) {
			return false
		}
		if q.TypeID != "" && t.TypeID != q.TypeID {
			return false
		}
		if q.WaiterID != "" && t.WaiterID != q.WaiterID {
			return false
		}
		if q.CallID != "" && t.CallID != q.CallID {
			return false
		}
		if q.Occupied != nil && t.Occupied != *q.Occupied {
			return false
		}
		if q.Assigned != nil && (t.WaiterID != "") != *q.Assigned {
			return false
		}
		if len(calls) > 0 && !calls[t.Call] {
			return false
		}
		return true
	}
	return sortedValues(d.tables, keep, copyTable), nil
}

func (m *Memory) ReplaceTable(ctx context.Context, t *models.Table) error {
	d, release := m.view()
	defer release()
	cur, ok := d.tables[t.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != t.Version {
		return ErrStale
	}
	t.Version++
	d.tables[t.ID] = copyTable(t)
	return nil
}

func (m *Memory) DeleteTables(ctx context.Context, ids []string) error {
	d, release := m.view()
	defer release()
	for _, id := range ids {
		delete(d.tables, id)
	}
	return nil
}

// Baskets

func (m *Memory) CreateBasket(ctx context.Context, b *models.Basket) error {
	d, release := m.view()
	defer release()
	for _, cur := range d.baskets {
		if cur.TableID == b.TableID {
			return ErrStale
		}
	}
	b.Version = 1
	d.baskets[b.ID] = copyBasket(b)
	return nil
}

func (m *Memory) GetBasket(ctx context.Context, tableID string) (*models.Basket, error) {
	d, release := m.view()
	defer release()
	for _, b := range d.baskets {
		if b.TableID == tableID {
			return copyBasket(b), nil
		}
	}
	return nil, ErrNotFound
}

func memBasketFilter(q BasketQuery) func(*models.Basket) bool {
	tables, products := set(q.TableIDs), set(q.ProductIDs)
	return func(b *models.Basket) bool {
		return (q.RestaurantID == "" || b.RestaurantID == q.RestaurantID) &&
			match(tables, b.TableID) && matchLines(products, b.Lines)
	}
}

func (m *Memory) ListBaskets(ctx context.Context, q BasketQuery) ([]*models.Basket, error) {
	d, release := m.view()
	defer release()
	return sortedValues(d.baskets, memBasketFilter(q), copyBasket), nil
}

func (m *Memory) ReplaceBasket(ctx context.Context, b *models.Basket) error {
	d, release := m.view()
	defer release()
	cur, ok := d.baskets[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != b.Version {
		return ErrStale
	}
	b.Version++
	d.baskets[b.ID] = copyBasket(b)
	return nil
}

func (m *Memory) DeleteBaskets(ctx context.Context, q BasketQuery) error {
	d, release := m.view()
	defer release()
	deleteWhere(d.baskets, memBasketFilter(q))
	return nil
}

// Active orders

func memOrderFilter(q OrderQuery) func(restaurantID, tableID, waiterID string, l models.Lines) bool {
	tables, waiters, products := set(q.TableIDs), set(q.WaiterIDs), set(q.ProductIDs)
	return func(restaurantID, tableID, waiterID string, l models.Lines) bool {
		return (q.RestaurantID == "" || restaurantID == q.RestaurantID) &&
			match(tables, tableID) && match(waiters, waiterID) && matchLines(products, l)
	}
}

func (m *Memory) GetActiveOrder(ctx context.Context, tableID, waiterID string) (*models.ActiveOrder, error) {
	d, release := m.view()
	defer release()
	for _, o := range d.actives {
		if o.TableID == tableID && o.WaiterID == waiterID {
			return copyActive(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListActiveOrders(ctx context.Context, q OrderQuery) ([]*models.ActiveOrder, error) {
	d, release := m.view()
	defer release()
	f := memOrderFilter(q)
	return sortedValues(d.actives, func(o *models.ActiveOrder) bool {
		return f(o.RestaurantID, o.TableID, o.WaiterID, o.Lines)
	}, copyActive), nil
}

func (m *Memory) SaveActiveOrder(ctx context.Context, o *models.ActiveOrder) error {
	d, release := m.view()
	defer release()
	if o.Version == 0 {
		for _, cur := range d.actives {
			if cur.TableID == o.TableID && cur.WaiterID == o.WaiterID && cur.ID != o.ID {
				return ErrStale
			}
		}
		if _, ok := d.actives[o.ID]; ok {
			return ErrStale
		}
	} else {
		cur, ok := d.actives[o.ID]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != o.Version {
			return ErrStale
		}
		for _, other := range d.actives {
			if other.ID != o.ID && other.TableID == o.TableID && other.WaiterID == o.WaiterID {
				return ErrStale
			}
		}
	}
	o.Version++
	d.actives[o.ID] = copyActive(o)
	return nil
}

func (m *Memory) DeleteActiveOrders(ctx context.Context, q OrderQuery) error {
	d, release := m.view()
	defer release()
	f := memOrderFilter(q)
	deleteWhere(d.actives, func(o *models.ActiveOrder) bool {
		return f(o.RestaurantID, o.TableID, o.WaiterID, o.Lines)
	})
	return nil
}

// Orders

func (m *Memory) GetOrder(ctx context.Context, tableID, waiterID string) (*models.Order, error) {
	d, release := m.view()
	defer release()
	for _, o := range d.orders {
		if o.TableID == tableID && o.WaiterID == waiterID {
			return copyOrder(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListOrders(ctx context.Context, q OrderQuery) ([]*models.Order, error) {
	d, release := m.view()
	defer release()
	f := memOrderFilter(q)
	return sortedValues(d.orders, func(o *models.Order) bool {
		return f(o.RestaurantID, o.TableID, o.WaiterID, o.Lines)
	}, copyOrder), nil
}

func (m *Memory) SaveOrder(ctx context.Context, o *models.Order) error {
	d, release := m.view()
	defer release()
	if o.Version == 0 {
		if _, ok := d.orders[o.ID]; ok {
			return ErrStale
		}
	} else {
		cur, ok := d.orders[o.ID]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != o.Version {
			return ErrStale
		}
	}
	for _, other := range d.orders {
		if other.ID != o.ID && other.TableID == o.TableID && other.WaiterID == o.WaiterID {
			return ErrStale
		}
	}
	o.Version++
	d.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *Memory) DeleteOrders(ctx context.Context, q OrderQuery) error {
	d, release := m.view()
	defer release()
	f := memOrderFilter(q)
	deleteWhere(d.orders, func(o *models.Order) bool {
		return f(o.RestaurantID, o.TableID, o.WaiterID, o.Lines)
	})
	return nil
}

// Archive

func memArchiveFilter(q ArchiveQuery) func(*models.ArchiveOrder) bool {
	waiters := set(q.WaiterIDs)
	return func(a *models.ArchiveOrder) bool {
		return (q.RestaurantID == "" || a.RestaurantID == q.RestaurantID) &&
			(q.TableID == "" || a.TableID == q.TableID) && match(waiters, a.WaiterID)
	}
}

func (m *Memory) CreateArchiveOrder(ctx context.Context, a *models.ArchiveOrder) error {
	d, release := m.view()
	defer release()
	if _, ok := d.archives[a.ID]; ok {
		return ErrStale
	}
	d.archives[a.ID] = copyArchive(a)
	return nil
}

func (m *Memory) ListArchiveOrders(ctx context.Context, q ArchiveQuery) ([]*models.ArchiveOrder, error) {
	d, release := m.view()
	defer release()
	return sortedValues(d.archives, memArchiveFilter(q), copyArchive), nil
}

func (m *Memory) DeleteArchiveOrders(ctx context.Context, q ArchiveQuery) error {
	d, release := m.view()
	defer release()
	deleteWhere(d.archives, memArchiveFilter(q))
	return nil
}

// Categories

func (m *Memory) CreateCategory(ctx context.Context, c *models.Category) error {
	d, release := m.view()
	defer release()
	if _, ok := d.categories[c.ID]; ok {
		return ErrStale
	}
	d.categories[c.ID] = copyCategory(c)
	return nil
}

func (m *Memory) GetCategory(ctx context.Context, restaurantID, id string) (*models.Category, error) {
	d, release := m.view()
	defer release()
	c, ok := d.categories[id]
	if !ok || c.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	return copyCategory(c), nil
}

func (m *Memory) ListCategories(ctx context.Context, restaurantID string) ([]*models.Category, error) {
	d, release := m.view()
	defer release()
	return sortedValues(d.categories, func(c *models.Category) bool { return c.RestaurantID == restaurantID }, copyCategory), nil
}

func (m *Memory) UpdateCategory(ctx context.Context, c *models.Category) error {
	d, release := m.view()
	defer release()
	cur, ok := d.categories[c.ID]
	if !ok || cur.RestaurantID != c.RestaurantID {
		return ErrNotFound
	}
	d.categories[c.ID] = copyCategory(c)
	return nil
}

func (m *Memory) DeleteCategory(ctx context.Context, restaurantID, id string) error {
	d, release := m.view()
	defer release()
	c, ok := d.categories[id]
	if !ok || c.RestaurantID != restaurantID {
		return ErrNotFound
	}
	delete(d.categories, id)
	return nil
}

// Products

func (m *Memory) CreateProduct(ctx context.Context, p *models.Product) error {
	d, release := m.view()
	defer release()
	if _, ok := d.products[p.ID]; ok {
		return ErrStale
	}
	d.products[p.ID] = copyProduct(p)
	return nil
}

func (m *Memory) GetProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	d, release := m.view()
	defer release()
	p, ok := d.products[id]
	if !ok || p.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	return copyProduct(p), nil
}

func (m *Memory) FindProducts(ctx context.Context, q ProductQuery) ([]*models.Product, error) {
	d, release := m.view()
	defer release()
	ids := set(q.IDs)
	return sortedValues(d.products, func(p *models.Product) bool {
		return (q.RestaurantID == "" || p.RestaurantID == q.RestaurantID) &&
			match(ids, p.ID) &&
			(q.CategoryID == "" || p.CategoryID == q.CategoryID)
	}, copyProduct), nil
}

// ClaimProduct is a plain lookup here: transactions never overlap.
func (m *Memory) ClaimProduct(ctx context.Context, restaurantID, id string) (*models.Product, error) {
	d, release := m.view()
	defer release()
	p, ok := d.products[id]
	if !ok || p.RestaurantID != restaurantID || !p.Available {
		return nil, ErrNotFound
	}
	return copyProduct(p), nil
}

func (m *Memory) UpdateProduct(ctx context.Context, p *models.Product) error {
	d, release := m.view()
	defer release()
	cur, ok := d.products[p.ID]
	if !ok || cur.RestaurantID != p.RestaurantID {
		return ErrNotFound
	}
	d.products[p.ID] = copyProduct(p)
	return nil
}

func (m *Memory) DeleteProducts(ctx context.Context, restaurantID string, ids []string) error {
	d, release := m.view()
	defer release()
	drop := set(ids)
	deleteWhere(d.products, func(p *models.Product) bool {
		return p.RestaurantID == restaurantID && drop[p.ID]
	})
	return nil
}
