package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testCheckoutFees() domain.CheckoutFees {
	return domain.CheckoutFees{
		ShippingFee:     decimal.NewFromInt(1000),
		PlatformFeeRate: decimal.NewFromFloat(0.10),
	}
}

// fixture helpers

func seedUser(t *testing.T, repo *Repository, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := repo.db.Exec(
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`,
		id, name, name+"-"+id[:8]+"@example.cm")
	require.NoError(t, err)
	return id
}

func seedAddress(t *testing.T, repo *Repository, userID string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := repo.db.Exec(
		`INSERT INTO addresses (id, user_id, line1, city, phone) VALUES ($1, $2, 'Rue 1.234', 'Douala', '+237670000001')`,
		id, userID)
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, repo *Repository, sellerID string, price int64, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := repo.db.Exec(
		`INSERT INTO products (id, seller_id, title, price, stock) VALUES ($1, $2, $3, $4, $5)`,
		id, sellerID, "Product "+id[:8], price, stock)
	require.NoError(t, err)
	return id
}

func deactivateProduct(t *testing.T, repo *Repository, productID string) {
	t.Helper()
	_, err := repo.db.Exec(`UPDATE products SET is_active = FALSE WHERE id = $1`, productID)
	require.NoError(t, err)
}

type cartLine struct {
	productID string
	sellerID  string
	quantity  int
	unitPrice int64
}

func seedCart(t *testing.T, repo *Repository, userID string, lines ...cartLine) string {
	t.Helper()
	cartID := uuid.NewString()
	_, err := repo.db.Exec(
		`INSERT INTO carts (id, user_id, status) VALUES ($1, $2, 'active')`,
		cartID, userID)
	require.NoError(t, err)

	for _, line := range lines {
		_, err := repo.db.Exec(`
			INSERT INTO cart_items (id, cart_id, product_id, seller_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), cartID, line.productID, line.sellerID,
			line.quantity, line.unitPrice, line.unitPrice*int64(line.quantity))
		require.NoError(t, err)
	}
	return cartID
}

func productStock(t *testing.T, repo *Repository, productID string) int {
	t.Helper()
	var stock int
	require.NoError(t, repo.db.QueryRow(
		`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock))
	return stock
}

func cartStatus(t *testing.T, repo *Repository, cartID string) string {
	t.Helper()
	var status string
	require.NoError(t, repo.db.QueryRow(
		`SELECT status FROM carts WHERE id = $1`, cartID).Scan(&status))
	return status
}

func countRows(t *testing.T, repo *Repository, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, repo.db.QueryRow(query, args...).Scan(&n))
	return n
}
