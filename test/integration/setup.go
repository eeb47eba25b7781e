package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"online-shop/internal/database"
	"online-shop/internal/handler"
	"online-shop/internal/metrics"
	"online-shop/internal/middleware"
	"online-shop/internal/model"
	"online-shop/internal/payment"
	"online-shop/internal/repository"
	"online-shop/internal/router"
	"online-shop/internal/service"

	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey      = "test-api-key"
	testSessionName = "shop-session"
	testSecret      = "integration-session-secret-32-bytes!"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB creates a PostgreSQL test container with the schema applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{Container: postgresContainer, Pool: pool}
}

// SeedUser inserts a customer profile and returns its id.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email, fullName, phone string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, full_name, phone) VALUES ($1, $2, $3) RETURNING id`,
		email, fullName, phone,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return id
}

// SeedProduct inserts a product and returns its id.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, title, price string, stock int) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO products (title, price, stock) VALUES ($1, $2::numeric, $3) RETURNING id`,
		title, price, stock,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", title, err)
	}
	return id
}

// StockOf reads the current stock of a product.
func StockOf(t *testing.T, pool *pgxpool.Pool, productID int64) int {
	t.Helper()

	var stock int
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// CleanupDB removes all rows and resets the sequences.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE outbox, order_items, orders, basket_items, products, categories, users, delivery_settings
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}
}

// PaymentProvider is a fake payment API. Set Fail to answer 503.
type PaymentProvider struct {
	Server *httptest.Server
	Fail   atomic.Bool
	Calls  atomic.Int32
}

func newPaymentProvider(t *testing.T) *PaymentProvider {
	t.Helper()

	p := &PaymentProvider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Calls.Add(1)
		if p.Fail.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}

		var body struct {
			OrderID int64 `json:"order_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": fmt.Sprintf("pay_%d", body.OrderID),
			"confirmation": map[string]string{
				"confirmation_url": fmt.Sprintf("https://pay.example.com/%d", body.OrderID),
			},
		})
	}))
	t.Cleanup(p.Server.Close)
	return p
}

// TestServer is the fully wired API backed by the test database.
type TestServer struct {
	Handler  http.Handler
	Sessions *sessions.CookieStore
	Payments *PaymentProvider
	Settings service.DeliverySettingsService
}

func setupTestServer(t *testing.T, testDB *TestDB) *TestServer {
	t.Helper()

	logger := zerolog.Nop()
	pool := testDB.Pool
	payments := newPaymentProvider(t)

	productRepo := repository.NewProductRepository(pool, logger)
	basketRepo := repository.NewBasketRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	gateway := payment.NewHTTPGateway(payments.Server.URL, 5*time.Second, logger)
	t.Cleanup(gateway.Close)

	settingsService := service.NewDeliverySettingsService(repository.NewSettingsRepository(pool, logger), model.DefaultDeliverySettings(), logger)
	productService := service.NewProductService(productRepo, logger)
	basketService := service.NewBasketService(basketRepo, productRepo, logger)
	orderService := service.NewOrderService(service.OrderDeps{
		Orders:         orderRepo,
		Products:       productRepo,
		Baskets:        basketRepo,
		Users:          repository.NewUserRepository(pool, logger),
		Outbox:         repository.NewOutboxRepository(pool, logger),
		Settings:       settingsService,
		Gateway:        gateway,
		Currency:       "RUB",
		PaymentTimeout: 5 * time.Second,
	}, logger)

	store := sessions.NewCookieStore([]byte(testSecret))

	h := router.New(router.Handlers{
		Health:   handler.NewHealthHandler(pool, logger),
		Product:  handler.NewProductHandler(productService, logger),
		Basket:   handler.NewBasketHandler(basketService, logger),
		Order:    handler.NewOrderHandler(orderService, nil, logger),
		Settings: handler.NewSettingsHandler(settingsService, logger),
	}, router.Options{
		APIKey:      testAPIKey,
		Sessions:    store,
		SessionName: testSessionName,
		Metrics:     metrics.New(),
	}, logger)

	return &TestServer{Handler: h, Sessions: store, Payments: payments, Settings: settingsService}
}

// sessionCookie issues the cookie a logged-in customer would carry.
func (s *TestServer) sessionCookie(t *testing.T, userID int64) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := s.Sessions.New(req, testSessionName)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	session.Values[middleware.SessionUserKey] = userID
	if err := session.Save(req, rec); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	return rec.Result().Cookies()[0]
}
