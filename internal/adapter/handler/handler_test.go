package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stockflow/internal/adapter/events"
	"github.com/rl1809/stockflow/internal/adapter/storage"
	"github.com/rl1809/stockflow/internal/core/service"
)

type testApp struct {
	server  *httptest.Server
	handler *HTTPHandler
	auth    *service.AuthService
	catalog *service.CatalogService
	cart    *service.CartService
	sales   *service.SaleService
	cache   *storage.MemoryCache
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ctx := context.Background()
	db, err := storage.OpenSQL(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "stockflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewSQLAdapter(db, storage.DialectSQLite)
	require.NoError(t, store.Migrate(ctx))

	log := zerolog.Nop()
	cache := storage.NewMemoryCache()
	catalog := service.NewCatalogService(store, cache, log)
	cart := service.NewCartService(store, cache, cache, log)
	sales := service.NewSaleService(store, store, cart, events.NewLogPublisher(log), log, 100)
	auth := service.NewAuthService(store, cache, log, time.Hour)

	sales.StartWorkers(2)
	t.Cleanup(sales.Close)

	h := NewHTTPHandler(auth, catalog, cart, sales, log)
	h.AddHealthCheck("database", store.Ping)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)

	return &testApp{
		server:  server,
		handler: h,
		auth:    auth,
		catalog: catalog,
		cart:    cart,
		sales:   sales,
		cache:   cache,
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (a *testApp) do(t *testing.T, c call) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(c.method, a.server.URL+c.path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// api performs a JSON call and decodes the response envelope, and Data into
// out when out is non-nil.
func (a *testApp) api(t *testing.T, c call, out any) (int, apiResponse) {
	t.Helper()

	resp, data := a.do(t, c)
	var env apiResponse
	require.NoError(t, json.Unmarshal(data, &env), "body: %s", data)
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, env
}

// registerOwner registers a business and returns the owner's bearer token.
func (a *testApp) registerOwner(t *testing.T, email string) string {
	t.Helper()

	var session struct {
		Token string `json:"token"`
	}
	status, env := a.api(t, call{method: http.MethodPost, path: "/api/v1/auth/register", body: service.RegisterInput{
		BusinessName:    "Mama Put Stores",
		Phone:           "+234 800 000 0000",
		Email:           email,
		OwnerName:       "Ada",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}}, &session)
	require.Equal(t, http.StatusCreated, status, env.Message)
	require.NotEmpty(t, session.Token)
	return session.Token
}
