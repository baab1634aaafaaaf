package models

import (
	"time"
)

// Line is one product entry of a basket or order. Price is the line price
// (unit price x quantity) as computed at the last save.
type Line struct {
	ProductID string  `bson:"product" json:"product"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Price     float64 `bson:"price" json:"price"`
}

// Lines holds the priced content shared by baskets and orders.
type Lines struct {
	Products   []Line  `bson:"products" json:"products"`
	TotalPrice float64 `bson:"totalPrice" json:"totalPrice"`
	TotalItems int     `bson:"totalItems" json:"totalItems"`
}

func (l Lines) Empty() bool {
	return len(l.Products) == 0
}

// Find returns the index of the line for productID, or -1.
func (l Lines) Find(productID string) int {
	for i, p := range l.Products {
		if p.ProductID == productID {
			return i
		}
	}
	return -1
}

func (l Lines) References(productIDs map[string]bool) bool {
	for _, p := range l.Products {
		if productIDs[p.ProductID] {
			return true
		}
	}
	return false
}

// Without returns the lines minus those of productIDs, with totals recounted
// from the remaining line prices.
func (l Lines) Without(productIDs map[string]bool) Lines {
	out := Lines{Products: make([]Line, 0, len(l.Products))}
	for _, p := range l.Products {
		if productIDs[p.ProductID] {
			continue
		}
		out.Products = append(out.Products, p)
		out.TotalPrice += p.Price
		out.TotalItems += p.Quantity
	}
	return out
}

// Basket is the customer-side draft of a table. One per table.
type Basket struct {
	ID           string `bson:"_id" json:"id"`
	RestaurantID string `bson:"restaurant" json:"restaurant"`
	TableID      string `bson:"table" json:"table"`
	Lines        `bson:",inline"`
	Version      int64     `bson:"version" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ActiveOrder is the submitted, kitchen-visible order of a (table, waiter)
// pair. WaiterID is empty while nobody serves the table.
type ActiveOrder struct {
	ID           string `bson:"_id" json:"id"`
	RestaurantID string `bson:"restaurant" json:"restaurant"`
	TableID      string `bson:"table" json:"table"`
	WaiterID     string `bson:"waiter" json:"waiter"`
	Lines        `bson:",inline"`
	Version      int64     `bson:"version" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Order is the approved, billable order of a (table, waiter) pair.
type Order struct {
	ID           string `bson:"_id" json:"id"`
	RestaurantID string `bson:"restaurant" json:"restaurant"`
	TableID      string `bson:"table" json:"table"`
	WaiterID     string `bson:"waiter" json:"waiter"`
	Lines        `bson:",inline"`
	Version      int64     `bson:"version" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ProductSnapshot freezes the catalog data of a product at archive time.
type ProductSnapshot struct {
	ID    string  `bson:"_id" json:"id"`
	Name  string  `bson:"name" json:"name"`
	Price float64 `bson:"price" json:"price"`
	Unit  string  `bson:"unit" json:"unit"`
}

type ArchivedLine struct {
	Product  ProductSnapshot `bson:"product" json:"product"`
	Quantity int             `bson:"quantity" json:"quantity"`
	Price    float64         `bson:"price" json:"price"`
}

// ArchiveOrder is written once when a table is closed with a billable total
// and never changes afterwards.
type ArchiveOrder struct {
	ID           string         `bson:"_id" json:"id"`
	TableID      string         `bson:"table" json:"table"`
	WaiterID     string         `bson:"waiter" json:"waiter"`
	RestaurantID string         `bson:"restaurant" json:"restaurant"`
	TotalOrders  []ArchivedLine `bson:"totalOrders" json:"totalOrders"`
	TotalPrice   float64        `bson:"totalPrice" json:"totalPrice"`
	TotalItems   int            `bson:"totalItems" json:"totalItems"`
	CreatedAt    time.Time      `bson:"createdAt" json:"createdAt"`
}
