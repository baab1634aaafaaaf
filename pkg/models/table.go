package models

import (
	"time"
)

type CallStatus string

const (
	CallNone     CallStatus = "none"
	CallCalling  CallStatus = "calling"
	CallAccepted CallStatus = "accepted"
)

// DefaultCode is the passcode of a table without a running session.
const DefaultCode = "0000"

type TableType struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	RestaurantID string    `bson:"restaurant" json:"restaurant"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Table is the unit of the service lifecycle. Code is never serialized to
// clients. Version guards every write (see repository.ErrStale).
type Table struct {
	ID               string     `bson:"_id" json:"id"`
	Name             string     `bson:"name" json:"name"`
	TypeID           string     `bson:"typeOfTable" json:"typeOfTable"`
	RestaurantID     string     `bson:"restaurant" json:"restaurant"`
	Occupied         bool       `bson:"occupied" json:"occupied"`
	WaiterID         string     `bson:"waiter" json:"waiter"`
	SetWaiterByAdmin bool       `bson:"setWaiterByAdmin" json:"setWaiterByAdmin"`
	Code             string     `bson:"code" json:"-"`
	Call             CallStatus `bson:"call" json:"call"`
	CallID           string     `bson:"callId" json:"callId"`
	CallTime         *time.Time `bson:"callTime" json:"callTime"`
	HasActiveOrder   bool       `bson:"hasActiveOrder" json:"hasActiveOrder"`
	QRCode           string     `bson:"qrCode" json:"qrCode"`
	Version          int64      `bson:"version" json:"-"`
	CreatedAt        time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Reset puts the table back into the unoccupied state. The waiter survives
// only when it was assigned by a director.
func (t *Table) Reset() {
	t.Occupied = false
	t.Call = CallNone
	t.CallTime = nil
	t.Code = DefaultCode
	t.HasActiveOrder = false
	if !t.SetWaiterByAdmin {
		t.WaiterID = ""
		t.CallID = ""
	}
}

// CallExpired reports whether a pending call is older than threshold at now.
// A calling table without a call time is always expired.
func (t *Table) CallExpired(now time.Time, threshold time.Duration) bool {
	if t.Call != CallCalling {
		return false
	}
	if t.CallTime == nil {
		return true
	}
	return !t.CallTime.After(now.Add(-threshold))
}

// TableView is a table plus totals derived from its related orders.
type TableView struct {
	Table
	ActivePrice float64 `json:"activePrice"`
	ActiveItems int     `json:"activeItems"`
	TotalPrice  float64 `json:"totalPrice"`
	TotalItems  int     `json:"totalItems"`
}

// Summarize derives the view totals from already loaded orders. Nothing here
// is persisted.
func Summarize(t *Table, active []*ActiveOrder, approved []*Order) *TableView {
	v := &TableView{Table: *t}
	for _, a := range active {
		if a.TableID != t.ID {
			continue
		}
		v.ActivePrice += a.TotalPrice
		v.ActiveItems += a.TotalItems
	}
	for _, o := range approved {
		if o.TableID != t.ID {
			continue
		}
		v.TotalPrice += o.TotalPrice
		v.TotalItems += o.TotalItems
	}
	return v
}
