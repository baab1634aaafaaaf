package models

import (
	"time"
)

const NoPhoto = "no-photo.jpg"

type Restaurant struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Address   string    `bson:"address" json:"address"`
	Location  string    `bson:"location" json:"location"`
	Photo     string    `bson:"photo" json:"photo"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Category struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Photo        string    `bson:"photo" json:"photo"`
	RestaurantID string    `bson:"restaurant" json:"restaurant"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Product struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Description  string    `bson:"description" json:"description"`
	Photo        string    `bson:"photo" json:"photo"`
	Price        float64   `bson:"price" json:"price"`
	OldPrice     float64   `bson:"oldPrice" json:"oldPrice"`
	Sale         bool      `bson:"sale" json:"sale"`
	Available    bool      `bson:"available" json:"available"`
	CategoryID   string    `bson:"category" json:"category"`
	Unit         string    `bson:"unit" json:"unit"`
	RestaurantID string    `bson:"restaurant" json:"restaurant"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price, Unit: p.Unit}
}

// CategoryView is a category with its products, as served to menus.
type CategoryView struct {
	Category
	Products []*Product `json:"products"`
}

type TableTypeView struct {
	TableType
	Tables []*Table `json:"tables"`
}
