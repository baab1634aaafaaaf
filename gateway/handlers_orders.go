package gateway

import (
	"net/http"

	"github.com/example/dinein/pkg/ledger"
	"github.com/gin-gonic/gin"
)

type tableRequest struct {
	TableID string `json:"table" binding:"required"`
}

type lineRequest struct {
	TableID   string `json:"table" binding:"required"`
	ProductID string `json:"product" binding:"required"`
}

// sessionRequest carries the table session code of a customer.
type sessionRequest struct {
	TableID string `json:"table" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

type basketLineRequest struct {
	ledger.LineInput
	Code string `json:"code"`
}

func (g *Gateway) activeOrders(c *gin.Context) {
	orders, err := g.svc.Ledger.ActiveOrders(c.Request.Context(), actorOf(c), c.Query("table"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) addActiveLine(c *gin.Context) {
	var req ledger.LineInput
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.AddActiveLine(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) setActiveLine(c *gin.Context) {
	var req ledger.LineInput
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.SetActiveLine(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) removeActiveLine(c *gin.Context) {
	var req lineRequest
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.RemoveActiveLine(c.Request.Context(), actorOf(c), req.TableID, req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) approveOrder(c *gin.Context) {
	var req tableRequest
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.ApproveOrder(c.Request.Context(), actorOf(c), req.TableID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) approvedOrders(c *gin.Context) {
	orders, err := g.svc.Ledger.ApprovedOrders(c.Request.Context(), actorOf(c), c.Query("table"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) setApprovedLine(c *gin.Context) {
	var req ledger.LineInput
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.SetApprovedLine(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) removeApprovedLine(c *gin.Context) {
	var req lineRequest
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.RemoveApprovedLine(c.Request.Context(), actorOf(c), req.TableID, req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) waiterOrders(c *gin.Context) {
	res, err := g.svc.Ledger.WaiterOrders(c.Request.Context(), actorOf(c), c.Query("table"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (g *Gateway) getBasket(c *gin.Context) {
	b, err := g.svc.Ledger.GetBasket(c.Request.Context(), c.Query("table"), c.Query("code"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (g *Gateway) addToBasket(c *gin.Context) {
	var req basketLineRequest
	if !g.bind(c, &req) {
		return
	}
	b, err := g.svc.Ledger.AddToBasket(c.Request.Context(), req.Code, req.LineInput)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (g *Gateway) updateBasketLine(c *gin.Context) {
	var req basketLineRequest
	if !g.bind(c, &req) {
		return
	}
	b, err := g.svc.Ledger.UpdateBasketLine(c.Request.Context(), req.Code, req.LineInput)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (g *Gateway) removeBasketLine(c *gin.Context) {
	var req basketLineRequest
	if !g.bind(c, &req) {
		return
	}
	b, err := g.svc.Ledger.RemoveBasketLine(c.Request.Context(), req.Code, req.TableID, req.ProductID)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (g *Gateway) clearBasket(c *gin.Context) {
	var req sessionRequest
	if !g.bind(c, &req) {
		return
	}
	b, err := g.svc.Ledger.ClearBasket(c.Request.Context(), req.TableID, req.Code)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (g *Gateway) submitOrder(c *gin.Context) {
	var req sessionRequest
	if !g.bind(c, &req) {
		return
	}
	o, err := g.svc.Ledger.SubmitOrder(c.Request.Context(), req.TableID, req.Code)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (g *Gateway) clientOrders(c *gin.Context) {
	res, err := g.svc.Ledger.ClientOrders(c.Request.Context(), c.Query("table"), c.Query("code"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
