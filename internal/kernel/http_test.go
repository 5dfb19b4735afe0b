package kernel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/internal/kernel"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/middleware"
	"github.com/freshbulk/storefront/pkg/storage"
	"github.com/freshbulk/storefront/pkg/testkit"
	"github.com/freshbulk/storefront/pkg/workerpool"
	"github.com/freshbulk/storefront/pkg/ws"
)

type app struct {
	db     *gorm.DB
	kernel *kernel.Kernel
	client *testkit.Client
}

func newApp(t *testing.T, opts ...func(*kernel.Deps)) *app {
	t.Helper()

	db := testkit.NewDB(t)
	disk, err := storage.NewLocalDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	deps := kernel.Deps{
		DB:    db,
		Cache: cache.NewMemoryStore(),
		Disk:  disk,
		Audit: audit.NewMemoryRecorder(),
		Hub:   hub,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	k, err := kernel.New(deps)
	require.NoError(t, err)

	_, _, err = k.Auth.EnsureAdmin(ctx, services.RegisterInput{
		Email:    "admin@freshbulk.test",
		Password: "admin-pass",
	})
	require.NoError(t, err)

	return &app{db: db, kernel: k, client: testkit.NewClient(t, k.Handler())}
}

func (a *app) admin(t *testing.T) *testkit.Client {
	t.Helper()
	c := a.client.Fork()
	res := c.Post("/auth/login", map[string]string{"email": "admin@freshbulk.test", "password": "admin-pass"})
	testkit.AssertStatus(t, res, http.StatusOK)
	return c
}

func (a *app) buyer(t *testing.T, email string) *testkit.Client {
	t.Helper()
	c := a.client.Fork()
	res := c.Post("/auth/register", map[string]string{"name": "Buyer", "email": email, "password": "buyer-pass"})
	testkit.AssertStatus(t, res, http.StatusCreated)
	return c
}

func (a *app) product(t *testing.T, admin *testkit.Client, name string, price float64) uint {
	t.Helper()
	res := admin.Post("/products", map[string]any{"name": name, "price": price})
	testkit.AssertStatus(t, res, http.StatusCreated)
	var p models.Product
	res.JSON(t, &p)
	return p.ID
}

func orderBody(productID uint, quantity int) map[string]any {
	return map[string]any{
		"items":           []map[string]any{{"productId": productID, "quantity": quantity}},
		"deliveryDetails": map[string]string{"name": "A", "contact": "555", "address": "1 Rd"},
	}
}

func (a *app) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, a.db.Model(model).Count(&n).Error)
	return n
}

func TestCarrotOrderScenario(t *testing.T) {
	a := newApp(t)
	testkit.RunScenario(t, a.client, "testdata/carrot_order.json")
}

func TestAnonymousCallersAreRejected(t *testing.T) {
	a := newApp(t)
	c := a.client

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/products"},
		{http.MethodPut, "/products/1"},
		{http.MethodDelete, "/products/1"},
		{http.MethodPost, "/products/1/image"},
		{http.MethodGet, "/orders"},
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders/1"},
		{http.MethodPut, "/orders/1"},
		{http.MethodGet, "/orders/1/history"},
	} {
		res := c.Do(tc.method, tc.path, `{}`)
		testkit.AssertError(t, res, http.StatusUnauthorized, "Unauthorized")
	}

	testkit.AssertStatus(t, c.Get("/products"), http.StatusOK)
}

func TestBuyersCannotManageProducts(t *testing.T) {
	a := newApp(t)
	id := a.product(t, a.admin(t), "Leeks", 1.10)
	buyer := a.buyer(t, "b@freshbulk.test")

	testkit.AssertStatus(t, buyer.Post("/products", map[string]any{"name": "Kale", "price": 2}), http.StatusUnauthorized)
	testkit.AssertStatus(t, buyer.Delete("/products/1"), http.StatusUnauthorized)
	testkit.AssertStatus(t, buyer.Get("/products/1"), http.StatusOK)
	assert.EqualValues(t, 1, id)
}

func TestProductLifecycle(t *testing.T) {
	a := newApp(t)
	admin := a.admin(t)

	testkit.AssertError(t, admin.Post("/products", map[string]any{"name": "Kale"}), http.StatusBadRequest, "Name and price are required")

	id := a.product(t, admin, "Kale", 3)
	a.product(t, admin, "Beets", 1.4)

	res := a.client.Get("/products")
	testkit.AssertSubset(t, `[{"name":"Beets"},{"name":"Kale"}]`, res)

	res = admin.Put("/products/999", map[string]any{"name": "Kale", "price": 3})
	testkit.AssertError(t, res, http.StatusNotFound, "Product not found")

	res = admin.Delete("/products/1")
	testkit.AssertSubset(t, `{"message":"Product deleted successfully"}`, res)
	testkit.AssertError(t, a.client.Get("/products/1"), http.StatusNotFound, "Product not found")
	testkit.AssertSubset(t, `[{"name":"Beets"}]`, a.client.Get("/products"))
	assert.EqualValues(t, 1, id)
}

func TestOrderValidation(t *testing.T) {
	a := newApp(t)
	carrot := a.product(t, a.admin(t), "Carrot", 2.5)
	buyer := a.buyer(t, "b@freshbulk.test")

	res := buyer.Post("/orders", map[string]any{
		"items":           []any{},
		"deliveryDetails": map[string]string{"name": "A", "contact": "555", "address": "1 Rd"},
	})
	testkit.AssertError(t, res, http.StatusBadRequest, "Items array is required and cannot be empty")

	res = buyer.Post("/orders", map[string]any{
		"items":           []map[string]any{{"productId": carrot, "quantity": 10}},
		"deliveryDetails": map[string]string{"name": "A", "contact": "555"},
	})
	testkit.AssertError(t, res, http.StatusBadRequest, "Name, contact, and address are required in delivery details")

	res = buyer.Post("/orders", orderBody(carrot, 0))
	testkit.AssertError(t, res, http.StatusBadRequest, "Each item must have a valid productId and quantity > 0")

	assert.Zero(t, a.count(t, &models.Order{}))
}

func TestOrderWithMissingProductLeavesNothingBehind(t *testing.T) {
	a := newApp(t)
	admin := a.admin(t)
	carrot := a.product(t, admin, "Carrot", 2.5)
	onion := a.product(t, admin, "Onion", 1.1)
	buyer := a.buyer(t, "b@freshbulk.test")

	res := buyer.Post("/orders", map[string]any{
		"items": []map[string]any{
			{"productId": carrot, "quantity": 1},
			{"productId": 4242, "quantity": 1},
			{"productId": onion, "quantity": 1},
		},
		"deliveryDetails": map[string]string{"name": "A", "contact": "555", "address": "1 Rd"},
	})
	testkit.AssertError(t, res, http.StatusInternalServerError, "Failed to create order")

	assert.Zero(t, a.count(t, &models.Order{}))
	assert.Zero(t, a.count(t, &models.OrderItem{}))
}

func TestDuplicateRegistration(t *testing.T) {
	a := newApp(t)
	a.buyer(t, "dup@freshbulk.test")

	res := a.client.Fork().Post("/auth/register", map[string]string{"name": "Again", "email": "dup@freshbulk.test", "password": "x"})
	testkit.AssertError(t, res, http.StatusConflict, "User already exists")

	res = a.client.Fork().Post("/auth/register", map[string]string{"email": "new@freshbulk.test"})
	testkit.AssertError(t, res, http.StatusBadRequest, "Name, email, and password are required")
}

func TestSessionLifecycle(t *testing.T) {
	a := newApp(t)
	c := a.client.Fork()

	testkit.AssertSubset(t, `{"user":null}`, c.Get("/auth/me"))

	testkit.AssertError(t, c.Post("/auth/login", map[string]string{"email": "admin@freshbulk.test", "password": "nope"}),
		http.StatusUnauthorized, "Invalid credentials")
	testkit.AssertError(t, c.Post("/auth/login", map[string]string{"email": "admin@freshbulk.test"}),
		http.StatusBadRequest, "Email and password are required")

	res := c.Post("/auth/login", map[string]string{"email": "admin@freshbulk.test", "password": "admin-pass"})
	testkit.AssertStatus(t, res, http.StatusOK)
	assert.NotContains(t, string(res.Body), "password")
	testkit.AssertSubset(t, `{"user":{"email":"admin@freshbulk.test","role":"admin"}}`, c.Get("/auth/me"))

	testkit.AssertSubset(t, `{"message":"Logged out successfully"}`, c.Post("/auth/logout", nil))
	testkit.AssertSubset(t, `{"user":null}`, c.Get("/auth/me"))

	// A bare user id is not a session.
	forged := a.client.Fork()
	res = forged.Do(http.MethodGet, "/auth/me", nil, http.Header{"Cookie": {"session=1"}})
	testkit.AssertSubset(t, `{"user":null}`, res)
}

func TestProductImageUpload(t *testing.T) {
	a := newApp(t)
	admin := a.admin(t)
	id := a.product(t, admin, "Carrot", 2.5)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	body, contentType := multipartImage(t, png)
	res := admin.Do(http.MethodPost, "/products/1/image", body, http.Header{"Content-Type": {contentType}})
	testkit.AssertStatus(t, res, http.StatusOK)

	var p models.Product
	res.JSON(t, &p)
	require.NotNil(t, p.ImageURL)
	assert.True(t, strings.HasPrefix(*p.ImageURL, "/storage/products/1/"), *p.ImageURL)
	assert.True(t, strings.HasSuffix(*p.ImageURL, ".png"), *p.ImageURL)
	assert.EqualValues(t, 1, id)

	served := a.client.Get(*p.ImageURL)
	testkit.AssertStatus(t, served, http.StatusOK)
	assert.Equal(t, png, served.Body)

	body, contentType = multipartImage(t, []byte("just some text"))
	res = admin.Do(http.MethodPost, "/products/1/image", body, http.Header{"Content-Type": {contentType}})
	testkit.AssertError(t, res, http.StatusBadRequest, "Image must be a JPEG, PNG or WebP file")
}

func multipartImage(t *testing.T, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.bin")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestLiveTracking(t *testing.T) {
	a := newApp(t)
	admin := a.admin(t)
	carrot := a.product(t, admin, "Carrot", 2.5)
	buyer := a.buyer(t, "b@freshbulk.test")

	res := buyer.Post("/orders", orderBody(carrot, 3))
	testkit.AssertStatus(t, res, http.StatusCreated)
	var order models.Order
	res.JSON(t, &order)

	// Strangers are refused before the upgrade.
	stranger := a.buyer(t, "s@freshbulk.test")
	testkit.AssertStatus(t, stranger.Get("/orders/1/live"), http.StatusUnauthorized)

	dialer := websocket.Dialer{Jar: buyer.Jar(), HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(buyer.URL("/orders/1/live"), "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	type update struct {
		OrderID uint   `json:"order_id"`
		Status  string `json:"status"`
	}
	read := func() update {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var u update
		require.NoError(t, json.Unmarshal(raw, &u))
		return u
	}

	assert.Equal(t, update{OrderID: order.ID, Status: "Pending"}, read())

	testkit.AssertStatus(t, admin.Put("/orders/1", map[string]string{"status": "In Progress"}), http.StatusOK)
	assert.Equal(t, update{OrderID: order.ID, Status: "In Progress"}, read())
}

func TestHistoryWithPooledEvents(t *testing.T) {
	pool := workerpool.New("events", 4, 256)
	a := newApp(t, func(d *kernel.Deps) { d.Pool = pool })
	admin := a.admin(t)
	carrot := a.product(t, admin, "Carrot", 2.5)
	buyer := a.buyer(t, "b@freshbulk.test")

	const orders = 20
	ids := make([]uint, 0, orders)
	for range orders {
		res := buyer.Post("/orders", orderBody(carrot, 1))
		testkit.AssertStatus(t, res, http.StatusCreated)
		var o models.Order
		res.JSON(t, &o)
		ids = append(ids, o.ID)
	}
	for _, id := range ids {
		path := "/orders/" + strconv.FormatUint(uint64(id), 10)
		testkit.AssertStatus(t, admin.Put(path, map[string]string{"status": "In Progress"}), http.StatusOK)
		testkit.AssertStatus(t, admin.Put(path, map[string]string{"status": "Delivered"}), http.StatusOK)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	type entry struct {
		At    time.Time      `json:"at"`
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	for _, id := range ids {
		res := buyer.Get("/orders/" + strconv.FormatUint(uint64(id), 10) + "/history")
		testkit.AssertStatus(t, res, http.StatusOK)
		var history []entry
		res.JSON(t, &history)

		require.Len(t, history, 3, "order %d", id)
		assert.Equal(t, "order.created", history[0].Event)
		assert.Equal(t, "In Progress", history[1].Data["status"])
		assert.Equal(t, "Delivered", history[2].Data["status"])
		for i := 1; i < len(history); i++ {
			assert.False(t, history[i].At.Before(history[i-1].At), "order %d entry %d", id, i)
		}
	}
}

type countingStore struct {
	cache.Store
	exists atomic.Int64
}

func (s *countingStore) Exists(ctx context.Context, key string) (bool, error) {
	s.exists.Add(1)
	return s.Store.Exists(ctx, key)
}

func TestThrottledRequestsSkipSessionLookup(t *testing.T) {
	store := &countingStore{Store: cache.NewMemoryStore()}
	a := newApp(t, func(d *kernel.Deps) {
		d.Cache = store
		d.Limiter = middleware.NewRateLimiter(3, time.Minute)
	})
	buyer := a.buyer(t, "b@freshbulk.test")

	testkit.AssertStatus(t, buyer.Get("/orders"), http.StatusOK)
	testkit.AssertStatus(t, buyer.Get("/orders"), http.StatusOK)
	lookups := store.exists.Load()
	require.Positive(t, lookups)

	testkit.AssertError(t, buyer.Get("/orders"), http.StatusTooManyRequests, "Too many requests")
	assert.Equal(t, lookups, store.exists.Load())
}

func TestGraphQLCatalog(t *testing.T) {
	a := newApp(t)
	a.product(t, a.admin(t), "Garlic", 6.75)

	res := a.client.Post("/graphql", map[string]string{"query": `{ products { id name price } product(id: 99) { name } }`})
	testkit.AssertStatus(t, res, http.StatusOK)
	testkit.AssertSubset(t, `{"data":{"products":[{"id":1,"name":"Garlic","price":6.75}],"product":null}}`, res)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	testkit.AssertSubset(t, `{"status":"ok","checks":{"database":"ok"}}`, a.client.Get("/healthz"))

	carrot := a.product(t, a.admin(t), "Carrot", 2.5)
	testkit.AssertStatus(t, a.buyer(t, "b@freshbulk.test").Post("/orders", orderBody(carrot, 1)), http.StatusCreated)

	res := a.client.Get("/metrics")
	testkit.AssertStatus(t, res, http.StatusOK)
	assert.Contains(t, string(res.Body), "freshbulk_orders_created_total")
	assert.Contains(t, string(res.Body), "freshbulk_http_requests_total")
}

func TestUnknownRoutesAnswerJSON(t *testing.T) {
	a := newApp(t)
	testkit.AssertError(t, a.client.Get("/nope"), http.StatusNotFound, "Not found")

	res := a.client.Do(http.MethodPatch, "/products", `{}`)
	testkit.AssertError(t, res, http.StatusMethodNotAllowed, "Method not allowed")
}

func TestRouteTable(t *testing.T) {
	a := newApp(t)
	names := map[string]bool{}
	for _, r := range a.kernel.Routes() {
		names[r.Name] = true
	}
	for _, want := range []string{"auth.register", "products.store", "orders.status", "orders.live", "graphql"} {
		assert.True(t, names[want], want)
	}
}
