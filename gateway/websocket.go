package gateway

import (
	"github.com/example/dinein/pkg/models"
	"github.com/example/dinein/pkg/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// rooms lists the notification topics a connection joins.
func rooms(actor models.Actor) []string {
	switch actor.Role {
	case models.RoleAdmin:
		return []string{notify.TopicAdmins}
	case models.RoleDirector:
		return []string{notify.Directors(actor.RestaurantID)}
	case models.RoleWaiter:
		return []string{notify.Waiters(actor.RestaurantID), notify.Staff(actor.ID)}
	}
	return nil
}

// serveWS upgrades to a websocket joined to the caller's rooms. Staff are
// known from their token; customers prove their seat with table and code.
func (g *Gateway) serveWS(c *gin.Context) {
	var topics []string
	if _, ok := c.Get(actorKey); ok {
		topics = rooms(actorOf(c))
	} else {
		t, err := g.svc.Registry.JoinSession(c.Request.Context(), c.Query("table"), c.Query("code"))
		if err != nil {
			g.fail(c, err)
			return
		}
		topics = []string{notify.Restaurant(t.RestaurantID), notify.Table(t.ID)}
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	g.svc.Hub.Attach(conn, topics)
	g.logger.Debug("Websocket connected", zap.Strings("rooms", topics))
}
