package gateway

import (
	"net/http"

	"github.com/example/dinein/pkg/tenant"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if !g.bind(c, &req) {
		return
	}
	session, err := g.svc.Tenant.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (g *Gateway) me(c *gin.Context) {
	st, err := g.svc.Tenant.Me(c.Request.Context(), actorOf(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (g *Gateway) createRestaurant(c *gin.Context) {
	var req tenant.RestaurantInput
	if !g.bind(c, &req) {
		return
	}
	r, err := g.svc.Tenant.CreateRestaurant(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (g *Gateway) listRestaurants(c *gin.Context) {
	rs, err := g.svc.Tenant.ListRestaurants(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (g *Gateway) getRestaurant(c *gin.Context) {
	r, err := g.svc.Tenant.GetRestaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (g *Gateway) updateRestaurant(c *gin.Context) {
	var req tenant.RestaurantInput
	if !g.bind(c, &req) {
		return
	}
	r, err := g.svc.Tenant.UpdateRestaurant(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (g *Gateway) deleteRestaurant(c *gin.Context) {
	if err := g.svc.Tenant.DeleteRestaurant(c.Request.Context(), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (g *Gateway) createDirector(c *gin.Context) {
	var req tenant.StaffInput
	if !g.bind(c, &req) {
		return
	}
	st, err := g.svc.Tenant.CreateDirector(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (g *Gateway) listWaiters(c *gin.Context) {
	ws, err := g.svc.Tenant.ListWaiters(c.Request.Context(), actorOf(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (g *Gateway) createWaiter(c *gin.Context) {
	var req tenant.StaffInput
	if !g.bind(c, &req) {
		return
	}
	st, err := g.svc.Tenant.CreateWaiter(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (g *Gateway) deleteWaiter(c *gin.Context) {
	if err := g.svc.Tenant.DeleteWaiter(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
