package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/dinein/pkg/catalog"
	"github.com/gin-gonic/gin"
)

// restaurantOf picks the restaurant of a public catalog read: the query
// parameter, or the caller's own restaurant.
func restaurantOf(c *gin.Context) string {
	if r := c.Query("restaurant"); r != "" {
		return r
	}
	return actorOf(c).RestaurantID
}

func (g *Gateway) listCategories(c *gin.Context) {
	cs, err := g.svc.Catalog.ListCategories(c.Request.Context(), restaurantOf(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (g *Gateway) getCategory(c *gin.Context) {
	cat, err := g.svc.Catalog.GetCategory(c.Request.Context(), restaurantOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (g *Gateway) createCategory(c *gin.Context) {
	var req catalog.CategoryInput
	if !g.bind(c, &req) {
		return
	}
	cat, err := g.svc.Catalog.CreateCategory(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (g *Gateway) updateCategory(c *gin.Context) {
	var req catalog.CategoryInput
	if !g.bind(c, &req) {
		return
	}
	cat, err := g.svc.Catalog.UpdateCategory(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (g *Gateway) deleteCategory(c *gin.Context) {
	if err := g.svc.Catalog.DeleteCategory(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (g *Gateway) listProducts(c *gin.Context) {
	f := catalog.ProductFilter{CategoryID: c.Query("category")}
	if v := c.Query("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "available must be true or false"})
			return
		}
		f.Available = &available
	}
	ps, err := g.svc.Catalog.ListProducts(c.Request.Context(), restaurantOf(c), f)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (g *Gateway) getProduct(c *gin.Context) {
	p, err := g.svc.Catalog.GetProduct(c.Request.Context(), restaurantOf(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req catalog.ProductInput
	if !g.bind(c, &req) {
		return
	}
	p, err := g.svc.Catalog.CreateProduct(c.Request.Context(), actorOf(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var req catalog.ProductInput
	if !g.bind(c, &req) {
		return
	}
	p, err := g.svc.Catalog.UpdateProduct(c.Request.Context(), actorOf(c), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.svc.Catalog.DeleteProduct(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
