package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/dinein/pkg/catalog"
	"github.com/example/dinein/pkg/config"
	"github.com/example/dinein/pkg/identity"
	"github.com/example/dinein/pkg/ledger"
	"github.com/example/dinein/pkg/lifecycle"
	"github.com/example/dinein/pkg/notify"
	"github.com/example/dinein/pkg/registry"
	"github.com/example/dinein/pkg/repository"
	"github.com/example/dinein/pkg/serial"
	"github.com/example/dinein/pkg/tenant"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const adminPassword = "admin-pass"

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:         "dinein-test",
			Host:         "127.0.0.1",
			PublicURL:    "http://localhost",
			AllowOrigins: []string{"*"},
		},
		Lifecycle: config.LifecycleConfig{RequestTimeout: 5 * time.Second},
	}

	store := repository.NewMemory()
	serializer := serial.NewActorSerializer(log, 5*time.Second)
	t.Cleanup(func() { serializer.Close() })
	hub := notify.NewHub(log)
	coord := lifecycle.NewCoordinator(store, serializer, notify.NewEmitter(hub, log), log)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	dir, err := identity.NewDirectory(db)
	require.NoError(t, err)
	require.NoError(t, dir.SeedAdmin(context.Background(), "admin", adminPassword))
	tokens := identity.NewTokens("test-secret", time.Hour)

	return NewGateway(cfg, log, Services{
		Tenant:   tenant.NewService(coord, dir, tokens, log),
		Catalog:  catalog.NewService(coord, log),
		Registry: registry.NewService(coord, dir, cfg.Server.PublicURL, log),
		Ledger:   ledger.NewService(coord, log),
		Tokens:   tokens,
		Hub:      hub,
		Store:    store,
	})
}

func call(t *testing.T, g *Gateway, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)
	return w
}

// expect asserts the status and decodes the body into a generic map.
func expect(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]interface{} {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	out := map[string]interface{}{}
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return out
}

func login(t *testing.T, g *Gateway, user, password string) string {
	t.Helper()
	body := expect(t, call(t, g, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": user, "password": password}), http.StatusOK)
	return body["token"].(string)
}

type restaurantSetup struct {
	restaurantID string
	director     string
	waiter       string
	tableID      string
	productID    string
}

func setupRestaurant(t *testing.T, g *Gateway) restaurantSetup {
	admin := login(t, g, "admin", adminPassword)
	r := expect(t, call(t, g, http.MethodPost, "/api/v1/restaurants", admin,
		map[string]string{"name": "Bistro"}), http.StatusCreated)
	rid := r["id"].(string)
	expect(t, call(t, g, http.MethodPost, "/api/v1/restaurants/"+rid+"/directors", admin,
		map[string]string{"login": "boss", "password": "boss-pass"}), http.StatusCreated)

	director := login(t, g, "boss", "boss-pass")
	tt := expect(t, call(t, g, http.MethodPost, "/api/v1/tables/type", director,
		map[string]string{"name": "Hall"}), http.StatusCreated)
	tbl := expect(t, call(t, g, http.MethodPost, "/api/v1/tables", director,
		map[string]string{"name": "T1", "typeOfTable": tt["id"].(string)}), http.StatusCreated)
	cat := expect(t, call(t, g, http.MethodPost, "/api/v1/categories", director,
		map[string]string{"name": "Drinks"}), http.StatusCreated)
	p := expect(t, call(t, g, http.MethodPost, "/api/v1/products", director,
		map[string]interface{}{"name": "Tea", "price": 2, "category": cat["id"]}), http.StatusCreated)
	expect(t, call(t, g, http.MethodPost, "/api/v1/waiters", director,
		map[string]string{"login": "ann", "password": "ann-pass"}), http.StatusCreated)

	return restaurantSetup{
		restaurantID: rid,
		director:     director,
		waiter:       login(t, g, "ann", "ann-pass"),
		tableID:      tbl["id"].(string),
		productID:    p["id"].(string),
	}
}

func TestHealth(t *testing.T) {
	g := newTestGateway(t)
	body := expect(t, call(t, g, http.MethodGet, "/health", "", nil), http.StatusOK)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "dinein-test", body["service"])
}

func TestAuthErrors(t *testing.T) {
	g := newTestGateway(t)

	expect(t, call(t, g, http.MethodGet, "/api/v1/tables", "", nil), http.StatusUnauthorized)
	expect(t, call(t, g, http.MethodGet, "/api/v1/tables", "not-a-token", nil), http.StatusUnauthorized)
	expect(t, call(t, g, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": "admin", "password": "wrong-pass"}), http.StatusUnauthorized)
	expect(t, call(t, g, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"login": "admin"}), http.StatusBadRequest)

	s := setupRestaurant(t, g)
	expect(t, call(t, g, http.MethodPost, "/api/v1/tables", s.waiter,
		map[string]string{"name": "T2"}), http.StatusForbidden)
	expect(t, call(t, g, http.MethodGet, "/api/v1/restaurants", s.director, nil), http.StatusForbidden)
	expect(t, call(t, g, http.MethodGet, "/api/v1/waiter/tables", s.director, nil), http.StatusForbidden)

	me := expect(t, call(t, g, http.MethodGet, "/api/v1/auth/me", s.waiter, nil), http.StatusOK)
	assert.Equal(t, "ann", me["login"])
	assert.NotContains(t, me, "PasswordHash")
}

func TestServiceFlow(t *testing.T) {
	g := newTestGateway(t)
	s := setupRestaurant(t, g)
	table := "/api/v1/tables/" + s.tableID

	expect(t, call(t, g, http.MethodPost, table+"/join", "", map[string]string{"code": "4821"}), http.StatusUnauthorized)
	expect(t, call(t, g, http.MethodPut, table+"/code", s.director, map[string]string{"code": "4821"}), http.StatusOK)
	expect(t, call(t, g, http.MethodPut, table+"/code", s.director, map[string]string{"code": "1111"}), http.StatusConflict)

	view := expect(t, call(t, g, http.MethodPost, table+"/join", "", map[string]string{"code": "4821"}), http.StatusOK)
	assert.Equal(t, true, view["occupied"])
	assert.NotContains(t, view, "code")

	expect(t, call(t, g, http.MethodPost, "/api/v1/clients/basket", "", map[string]interface{}{
		"table": s.tableID, "product": s.productID, "quantity": 2, "code": "4821",
	}), http.StatusOK)
	active := expect(t, call(t, g, http.MethodPost, "/api/v1/clients/orders", "",
		map[string]string{"table": s.tableID, "code": "4821"}), http.StatusCreated)
	assert.Equal(t, 4.0, active["totalPrice"])

	expect(t, call(t, g, http.MethodPut, table, s.director, map[string]string{"name": "T9"}), http.StatusConflict)
	expect(t, call(t, g, http.MethodPost, table+"/close", s.director, nil), http.StatusConflict)

	expect(t, call(t, g, http.MethodPut, "/api/v1/waiter/tables/"+s.tableID, s.waiter, nil), http.StatusOK)
	order := expect(t, call(t, g, http.MethodPost, "/api/v1/orders/approve", s.waiter,
		map[string]string{"table": s.tableID}), http.StatusOK)
	assert.Equal(t, 4.0, order["totalPrice"])

	closed := expect(t, call(t, g, http.MethodPost, table+"/close", s.waiter, nil), http.StatusOK)
	assert.Equal(t, false, closed["occupied"])

	w := call(t, g, http.MethodGet, "/api/v1/archive", s.director, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var archive []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archive))
	require.Len(t, archive, 1)
	assert.Equal(t, 4.0, archive[0]["totalPrice"])
}

func TestCustomerWebsocket(t *testing.T) {
	g := newTestGateway(t)
	s := setupRestaurant(t, g)
	expect(t, call(t, g, http.MethodPut, "/api/v1/tables/"+s.tableID+"/code", s.director,
		map[string]string{"code": "4821"}), http.StatusOK)

	srv := httptest.NewServer(g.Handler())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?table=" + s.tableID

	_, resp, err := websocket.DefaultDialer.Dial(base+"&code=0000", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"&code=4821", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		return g.svc.Hub.Subscribers(notify.Table(s.tableID)) == 1
	}, time.Second, 10*time.Millisecond)

	expect(t, call(t, g, http.MethodPost, "/api/v1/tables/"+s.tableID+"/call", "",
		map[string]string{"code": "4821"}), http.StatusOK)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg struct {
		Event string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, notify.EventActiveCall, msg.Event)
}
