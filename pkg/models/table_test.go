package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-5 * time.Minute)
	fresh := now.Add(-30 * time.Second)

	tests := []struct {
		name  string
		table Table
		want  bool
	}{
		{"calling past threshold", Table{Call: CallCalling, CallTime: &old}, true},
		{"calling within threshold", Table{Call: CallCalling, CallTime: &fresh}, false},
		{"calling without time", Table{Call: CallCalling}, true},
		{"accepted long ago", Table{Call: CallAccepted, CallTime: &old}, false},
		{"no call", Table{Call: CallNone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table.CallExpired(now, 3*time.Minute))
		})
	}
}

func TestResetKeepsAdminWaiter(t *testing.T) {
	now := time.Now()
	tbl := Table{
		Occupied: true, Code: "1234", Call: CallAccepted, CallTime: &now, HasActiveOrder: true,
		WaiterID: "w1", CallID: "w1", SetWaiterByAdmin: true,
	}
	tbl.Reset()

	assert.False(t, tbl.Occupied)
	assert.Equal(t, DefaultCode, tbl.Code)
	assert.Equal(t, CallNone, tbl.Call)
	assert.Nil(t, tbl.CallTime)
	assert.False(t, tbl.HasActiveOrder)
	assert.Equal(t, "w1", tbl.WaiterID)
	assert.Equal(t, "w1", tbl.CallID)

	tbl.SetWaiterByAdmin = false
	tbl.Reset()
	assert.Empty(t, tbl.WaiterID)
	assert.Empty(t, tbl.CallID)
}

func TestSummarize(t *testing.T) {
	tbl := &Table{ID: "t1"}
	active := []*ActiveOrder{
		{TableID: "t1", Lines: Lines{TotalPrice: 10, TotalItems: 2}},
		{TableID: "t2", Lines: Lines{TotalPrice: 99, TotalItems: 9}},
	}
	approved := []*Order{
		{TableID: "t1", Lines: Lines{TotalPrice: 7.5, TotalItems: 3}},
		{TableID: "t1", Lines: Lines{TotalPrice: 2.5, TotalItems: 1}},
	}

	v := Summarize(tbl, active, approved)
	assert.Equal(t, 10.0, v.ActivePrice)
	assert.Equal(t, 2, v.ActiveItems)
	assert.Equal(t, 10.0, v.TotalPrice)
	assert.Equal(t, 4, v.TotalItems)
}

func TestLinesWithout(t *testing.T) {
	l := Lines{Products: []Line{
		{ProductID: "a", Quantity: 2, Price: 4},
		{ProductID: "b", Quantity: 1, Price: 3},
	}, TotalPrice: 7, TotalItems: 3}

	got := l.Without(map[string]bool{"a": true})
	assert.Equal(t, []Line{{ProductID: "b", Quantity: 1, Price: 3}}, got.Products)
	assert.Equal(t, 3.0, got.TotalPrice)
	assert.Equal(t, 1, got.TotalItems)
	assert.Len(t, l.Products, 2)
}
