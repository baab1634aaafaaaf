package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/dinein/pkg/registry"
	"github.com/gin-gonic/gin"
)

type nameRequest struct {
	Name string `json:"name"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (g *Gateway) listTableTypes(c *gin.Context) {
	ts, err := g.svc.Registry.ListTableTypes(c.Request.Context(), actorOf(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (g *Gateway) createTableType(c *gin.Context) {
	var req nameRequest
	if !g.bind(c, &req) {
		return
	}
	tt, err := g.svc.Registry.CreateTableType(c.Request.Context(), actorOf(c), req.Name)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tt)
}

func (g *Gateway) getTableType(c *gin.Context) {
	tt, err := g.svc.Registry.GetTableType(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tt)
}

func (g *Gateway) updateTableType(c *gin.Context) {
	var req nameRequest
	if !g.bind(c, &req) {
		return
	}
	tt, err := g.svc.Registry.UpdateTableType(c.Request.Context(), actorOf(c), c.Param("id"), req.Name)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tt)
}

func (g *Gateway) deleteTableType(c *gin.Context) {
	if err := g.svc.Registry.DeleteTableType(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (g *Gateway) listTables(c *gin.Context) {
	f := registry.TableFilter{TypeID: c.Query("type")}
	if v := c.Query("occupied"); v != "" {
		occupied, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "occupied must be true or false"})
			return
		}
		f.Occupied = &occupied
	}
	ts, err := g.svc.Registry.ListTables(c.Request.Context(), actorOf(c), f)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (g *Gateway) createTable(c *gin.Context) {
	var req registry.TableInput
	if !g.bind(c, &req) {
		return
	}
	t, err := g.svc.Registry.CreateTable(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (g *Gateway) getTable(c *gin.Context) {
	t, err := g.svc.Registry.GetTable(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) updateTable(c *gin.Context) {
	var req registry.TableInput
	if !g.bind(c, &req) {
		return
	}
	t, err := g.svc.Registry.UpdateTable(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) deleteTable(c *gin.Context) {
	if err := g.svc.Registry.DeleteTable(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (g *Gateway) closeTable(c *gin.Context) {
	t, err := g.svc.Registry.CloseTable(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) setSessionCode(c *gin.Context) {
	var req codeRequest
	if !g.bind(c, &req) {
		return
	}
	t, err := g.svc.Registry.SetSessionCode(c.Request.Context(), actorOf(c), c.Param("id"), req.Code)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) joinSession(c *gin.Context) {
	var req codeRequest
	if !g.bind(c, &req) {
		return
	}
	t, err := g.svc.Registry.JoinSession(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) callWaiter(c *gin.Context) {
	var req codeRequest
	if !g.bind(c, &req) {
		return
	}
	if _, err := g.svc.Registry.CallWaiter(c.Request.Context(), c.Param("id"), req.Code); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (g *Gateway) tableArchive(c *gin.Context) {
	as, err := g.svc.Ledger.Archives(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, as)
}

func (g *Gateway) restaurantArchive(c *gin.Context) {
	as, err := g.svc.Ledger.Archives(c.Request.Context(), actorOf(c), "")
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, as)
}

func (g *Gateway) waiterTables(c *gin.Context) {
	ts, err := g.svc.Registry.WaiterTables(c.Request.Context(), actorOf(c), c.Query("type"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (g *Gateway) occupyTable(c *gin.Context) {
	t, err := g.svc.Registry.OccupyTable(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) acceptCall(c *gin.Context) {
	t, err := g.svc.Registry.AcceptCall(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) declineCall(c *gin.Context) {
	t, err := g.svc.Registry.DeclineCall(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (g *Gateway) waiterCalls(c *gin.Context) {
	ts, err := g.svc.Registry.ListCalls(c.Request.Context(), actorOf(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}
