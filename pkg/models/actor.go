package models

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleWaiter   Role = "waiter"
)

// Actor is an authenticated staff member together with the restaurant it
// acts in. Admins get RestaurantID from the request.
type Actor struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	RestaurantID string `json:"restaurant"`
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
